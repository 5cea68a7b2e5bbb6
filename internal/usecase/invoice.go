package usecase

import (
	"context"

	"shop/internal/domain/model"
	"shop/internal/metrics"

	log "github.com/sirupsen/logrus"
)

// dispatchInvoice is best-effort: a failed delivery is logged and counted, never returned.
func dispatchInvoice(ctx context.Context, n Notifier, m *metrics.OrderMetrics, logger *log.Entry, order model.Order) {
	if n == nil {
		return
	}
	err := n.SendInvoice(ctx, order)
	m.InvoiceDispatched(err == nil)
	if err != nil {
		logger.WithError(err).WithField("order_id", order.ID).Warn("invoice delivery failed")
	}
}

// dispatchPaidInvoice sends only when the customer left an email.
func dispatchPaidInvoice(ctx context.Context, n Notifier, m *metrics.OrderMetrics, logger *log.Entry, order model.Order) {
	if order.CustomerEmail == "" {
		return
	}
	dispatchInvoice(ctx, n, m, logger, order)
}
