package repository

import "context"

// Repositories bound to one open transaction.
type TxRepos interface {
	Orders() OrderRepository
	OrderItems() OrderItemRepository
	Inventory() InventoryRepository
	Products() ProductRepository
}

// TransactionManager hides begin/commit/rollback from the usecase.
// fn returning an error (or panicking) rolls back every write made through r.
type TransactionManager interface {
	WithinTx(ctx context.Context, fn func(r TxRepos) error) error
}
