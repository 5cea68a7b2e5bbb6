package usecase

import (
	"context"
	"fmt"
	"time"

	"shop/internal/domain/model"
	"shop/internal/infra/momo"
	"shop/internal/metrics"
	repo "shop/internal/repository"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

// PaymentGateway creates redirect payments and records every attempt in the settlement log.
type PaymentGateway struct {
	provider PaymentProvider
	txlog    repo.PaymentTransactionRepository
	metrics  *metrics.OrderMetrics
	logger   *log.Entry

	newRequestID func() string
}

func NewPaymentGateway(
	provider PaymentProvider,
	txlog repo.PaymentTransactionRepository,
	m *metrics.OrderMetrics,
	logger *log.Entry,
) *PaymentGateway {
	if logger == nil {
		logger = log.WithField("component", "payment_gateway")
	}
	return &PaymentGateway{
		provider:     provider,
		txlog:        txlog,
		metrics:      m,
		logger:       logger,
		newRequestID: uuid.NewString,
	}
}

func (g *PaymentGateway) Configured() bool {
	return g.provider != nil && g.provider.Configured()
}

// CreateRedirectPayment returns the URL the customer is sent to.
// The REQUEST row is written before the provider is called, so a callback for an
// attempt whose response was lost still resolves through the settlement log.
func (g *PaymentGateway) CreateRedirectPayment(ctx context.Context, order model.Order) (string, error) {
	if !g.Configured() {
		return "", wrapError(KindGatewayUnavailable, momo.ErrNotConfigured, "payment gateway is not configured")
	}

	providerOrderID := g.provider.NewProviderOrderID()
	requestID := g.newRequestID()
	extraData := momo.Correlation{OrderID: order.ID}.Encode()
	orderID := order.ID

	_, err := g.txlog.Create(ctx, model.PaymentTransaction{
		Kind:            model.PaymentTransactionRequest,
		Provider:        g.provider.Name(),
		ProviderOrderID: providerOrderID,
		RequestID:       requestID,
		Amount:          order.TotalAmount,
		ExtraData:       extraData,
		OrderRefID:      &orderID,
	})
	if err != nil {
		return "", internal(err, "record payment request")
	}

	logger := g.logger.WithFields(log.Fields{
		"order_id":          order.ID,
		"provider_order_id": providerOrderID,
		"request_id":        requestID,
	})

	start := time.Now()
	resp, err := g.provider.CreatePayment(ctx, momo.PaymentRequest{
		ProviderOrderID: providerOrderID,
		RequestID:       requestID,
		Amount:          order.TotalAmount.ProviderString(),
		OrderInfo:       fmt.Sprintf("Payment for order #%d", order.ID),
		ExtraData:       extraData,
	})
	g.metrics.GatewayCall(err == nil, time.Since(start))
	if err != nil {
		logger.WithError(err).Warn("create payment failed")
		return "", wrapError(KindGatewayUnavailable, err, "payment gateway request failed")
	}

	logger.Info("payment created")
	return resp.PayURL, nil
}
