package repository

import "context"

// The only writers of products.stock.
type InventoryRepository interface {
	// decrements only when stock >= qty; false means not enough stock
	DecreaseStockIfEnough(ctx context.Context, productID int64, qty int64) (bool, error)

	// restore on edit/cancel
	IncreaseStock(ctx context.Context, productID int64, qty int64) error
}
