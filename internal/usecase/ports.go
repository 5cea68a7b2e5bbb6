package usecase

import (
	"context"

	"shop/internal/domain/model"
	"shop/internal/infra/momo"
)

// Notifier delivers the invoice for a finalized order. Delivery is best-effort:
// errors are logged by the caller and never undo the order.
type Notifier interface {
	SendInvoice(ctx context.Context, order model.Order) error
}

// PaymentProvider is the redirect-payment gateway. *momo.Client implements it.
type PaymentProvider interface {
	Name() string
	Configured() bool
	NewProviderOrderID() string
	CreatePayment(ctx context.Context, req momo.PaymentRequest) (momo.PaymentResponse, error)
	VerifyCallback(cb momo.Callback) bool
}

// OrderValidator checks request shape before any transaction opens.
type OrderValidator interface {
	ValidatePlace(in PlaceOrderInput) error
	ValidateEdit(in EditOrderInput) error
}
