package repository

import (
	"context"
	"errors"

	"shop/internal/domain/model"
)

var ErrNotFound = errors.New("not found")

// Read side of the catalog. The catalog itself is owned by another module.
type ProductRepository interface {
	FindByID(ctx context.Context, id int64) (model.Product, error)
}
