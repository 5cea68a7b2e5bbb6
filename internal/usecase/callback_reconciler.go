package usecase

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"shop/internal/domain/model"
	"shop/internal/infra/momo"
	"shop/internal/metrics"
	repo "shop/internal/repository"

	log "github.com/sirupsen/logrus"
)

// CallbackResult is what the provider gets back. The endpoint answers 200 either way.
type CallbackResult struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

var errAmountMismatch = errors.New("callback amount does not match order total")

// CallbackReconciler applies provider callbacks to orders at most once.
type CallbackReconciler struct {
	provider PaymentProvider
	txlog    repo.PaymentTransactionRepository
	tx       repo.TransactionManager
	notifier Notifier
	metrics  *metrics.OrderMetrics
	logger   *log.Entry
}

func NewCallbackReconciler(
	provider PaymentProvider,
	txlog repo.PaymentTransactionRepository,
	tx repo.TransactionManager,
	notifier Notifier,
	m *metrics.OrderMetrics,
	logger *log.Entry,
) *CallbackReconciler {
	if logger == nil {
		logger = log.WithField("component", "callback")
	}
	return &CallbackReconciler{
		provider: provider,
		txlog:    txlog,
		tx:       tx,
		notifier: notifier,
		metrics:  m,
		logger:   logger,
	}
}

// HandleProviderCallback never returns an error: every failure becomes a
// CallbackResult with Success=false. Every payload is appended to the settlement
// log, valid signature or not, before anything else happens.
func (rc *CallbackReconciler) HandleProviderCallback(ctx context.Context, cb momo.Callback) CallbackResult {
	logger := rc.logger.WithFields(log.Fields{
		"provider_order_id": cb.OrderID,
		"request_id":        cb.RequestID,
		"result_code":       cb.ResultCode.String(),
	})

	valid := rc.provider != nil && rc.provider.VerifyCallback(cb)
	orderRef := rc.resolveOrderRef(ctx, cb, logger)

	if _, err := rc.txlog.Create(ctx, rc.callbackRecord(cb, valid, orderRef, logger)); err != nil {
		logger.WithError(err).Error("record callback")
		rc.metrics.CallbackReceived("error")
		return CallbackResult{Success: false, Message: "could not record callback"}
	}

	if !valid {
		logger.Warn("invalid callback signature")
		rc.metrics.CallbackReceived("invalid_signature")
		return CallbackResult{Success: false, Message: "Invalid signature"}
	}

	if !cb.Succeeded() || orderRef == nil {
		if orderRef == nil {
			logger.Warn("callback could not be resolved to an order")
		}
		rc.metrics.CallbackReceived("ignored")
		return CallbackResult{Success: true, Message: "IPN processed"}
	}

	order, confirmed, err := rc.confirm(ctx, *orderRef, cb)
	switch {
	case errors.Is(err, errAmountMismatch):
		logger.WithError(err).WithField("order_id", *orderRef).Error("callback amount mismatch")
		rc.metrics.CallbackReceived("error")
		return CallbackResult{Success: false, Message: "Amount mismatch"}
	case errors.Is(err, ErrNotFound):
		logger.WithField("order_id", *orderRef).Warn("callback for unknown order")
		rc.metrics.CallbackReceived("ignored")
		return CallbackResult{Success: true, Message: "IPN processed"}
	case err != nil:
		logger.WithError(err).Error("apply callback")
		rc.metrics.CallbackReceived("error")
		return CallbackResult{Success: false, Message: "internal error"}
	}

	if !confirmed {
		rc.metrics.CallbackReceived("duplicate")
		return CallbackResult{Success: true, Message: "IPN processed"}
	}

	rc.metrics.CallbackReceived("confirmed")
	rc.metrics.StatusChanged(string(model.OrderStatusPaid))
	logger.WithField("order_id", order.ID).Info("order paid")
	dispatchPaidInvoice(ctx, rc.notifier, rc.metrics, rc.logger, order)

	return CallbackResult{Success: true, Message: fmt.Sprintf("Order %d payment confirmed", order.ID)}
}

// resolveOrderRef tries the correlation blob first and the settlement log second.
func (rc *CallbackReconciler) resolveOrderRef(ctx context.Context, cb momo.Callback, logger *log.Entry) *int64 {
	c, err := momo.DecodeCorrelation(cb.ExtraData)
	if err == nil {
		id := c.OrderID
		return &id
	}
	logger.WithError(err).Debug("correlation not usable, falling back to settlement log")

	if cb.OrderID == "" {
		return nil
	}
	row, err := rc.txlog.FindResolvedByProviderOrderID(ctx, cb.OrderID)
	if err != nil {
		if !errors.Is(err, repo.ErrNotFound) {
			logger.WithError(err).Warn("settlement log lookup failed")
		}
		return nil
	}
	return row.OrderRefID
}

func (rc *CallbackReconciler) callbackRecord(cb momo.Callback, valid bool, orderRef *int64, logger *log.Entry) model.PaymentTransaction {
	provider := momo.ProviderName
	if rc.provider != nil {
		provider = rc.provider.Name()
	}
	row := model.PaymentTransaction{
		Kind:            model.PaymentTransactionCallback,
		Provider:        provider,
		ProviderOrderID: cb.OrderID,
		RequestID:       cb.RequestID,
		PayType:         cb.PayType,
		Message:         cb.Message,
		ExtraData:       cb.ExtraData,
		Signature:       cb.Signature,
		SignatureValid:  valid,
		OrderRefID:      orderRef,
	}
	if amount, err := model.ParseMoney(cb.Amount.String()); err == nil {
		row.Amount = amount
	} else {
		logger.WithError(err).Warn("callback amount is not a number")
	}
	if transID := cb.TransID.String(); transID != "" {
		row.TransID = &transID
	}
	if code, err := strconv.Atoi(cb.ResultCode.String()); err == nil {
		row.ResultCode = &code
	}
	return row
}

// confirm moves PENDING -> PAID with a conditional update. confirmed is false
// when the order was already settled, which makes repeated delivery a no-op.
// The paid amount must equal what was requested from the provider for this
// provider order id; the order total is only used when no request was logged.
func (rc *CallbackReconciler) confirm(ctx context.Context, orderID int64, cb momo.Callback) (model.Order, bool, error) {
	requested, known, err := rc.requestedAmount(ctx, cb.OrderID, orderID)
	if err != nil {
		return model.Order{}, false, err
	}

	var (
		out       model.Order
		confirmed bool
	)
	err = rc.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		order, err := lockOrder(ctx, r, orderID)
		if err != nil {
			return err
		}
		out = order
		if order.Status != model.OrderStatusPending {
			return nil
		}

		expected := order.TotalAmount
		if known {
			expected = requested
		}
		amount, err := model.ParseMoney(cb.Amount.String())
		if err != nil || amount != expected {
			return fmt.Errorf("%w: order %d expected %s, callback %s", errAmountMismatch, orderID, expected, cb.Amount)
		}
		if expected != order.TotalAmount {
			rc.logger.WithFields(log.Fields{
				"order_id":  orderID,
				"requested": expected.String(),
				"total":     order.TotalAmount.String(),
			}).Warn("order total changed after the payment request")
		}

		ok, err := r.Orders().UpdateStatusIf(ctx, orderID, model.OrderStatusPending, model.OrderStatusPaid)
		if err != nil {
			return internal(err, "update order status")
		}
		if !ok {
			return nil
		}
		out.Status = model.OrderStatusPaid
		confirmed = true
		return nil
	})
	if err != nil {
		return model.Order{}, false, err
	}
	return out, confirmed, nil
}

// requestedAmount looks up the amount sent to the provider. known is false when
// no request for this order was logged under providerOrderID.
func (rc *CallbackReconciler) requestedAmount(ctx context.Context, providerOrderID string, orderID int64) (model.Money, bool, error) {
	if providerOrderID == "" {
		return 0, false, nil
	}
	row, err := rc.txlog.FindRequestByProviderOrderID(ctx, providerOrderID)
	if errors.Is(err, repo.ErrNotFound) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, internal(err, "find payment request")
	}
	if row.OrderRefID == nil || *row.OrderRefID != orderID {
		return 0, false, nil
	}
	return row.Amount, true, nil
}
