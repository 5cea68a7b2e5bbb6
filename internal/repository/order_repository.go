package repository

import (
	"context"

	"shop/internal/domain/model"
)

type OrderRepository interface {
	FindByID(ctx context.Context, orderID int64) (model.Order, error)
	// row lock until the surrounding transaction ends
	FindByIDForUpdate(ctx context.Context, orderID int64) (model.Order, error)
	List(ctx context.Context) ([]model.Order, error)
	Create(ctx context.Context, order model.Order) (int64, error)

	// customer fields and total; status only moves through UpdateStatusIf
	Update(ctx context.Context, order model.Order) error
	// conditional move; false when the order is not in `from` anymore
	UpdateStatusIf(ctx context.Context, orderID int64, from, to model.OrderStatus) (bool, error)
	SetPaymentURL(ctx context.Context, orderID int64, url string) error

	Delete(ctx context.Context, orderID int64) error
}
