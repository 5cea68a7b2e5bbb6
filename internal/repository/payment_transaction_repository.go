package repository

import (
	"context"

	"shop/internal/domain/model"
)

// Settlement transaction log. Append-only.
type PaymentTransactionRepository interface {
	Create(ctx context.Context, tx model.PaymentTransaction) (model.PaymentTransaction, error)

	// oldest row for providerOrderID that carries an internal order reference
	FindResolvedByProviderOrderID(ctx context.Context, providerOrderID string) (model.PaymentTransaction, error)
	// the REQUEST row written before providerOrderID was sent to the provider
	FindRequestByProviderOrderID(ctx context.Context, providerOrderID string) (model.PaymentTransaction, error)

	ListByOrderRef(ctx context.Context, orderID int64) ([]model.PaymentTransaction, error)
}
