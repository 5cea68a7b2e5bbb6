package repository

import (
	"context"

	"shop/internal/domain/model"
	repo "shop/internal/repository"

	"gorm.io/gorm"
)

type paymentTransactionGormRepository struct {
	db *gorm.DB
}

func NewPaymentTransactionGormRepository(db *gorm.DB) repo.PaymentTransactionRepository {
	return &paymentTransactionGormRepository{db: db}
}

func (r *paymentTransactionGormRepository) Create(ctx context.Context, tx model.PaymentTransaction) (model.PaymentTransaction, error) {
	if err := r.db.WithContext(ctx).Create(&tx).Error; err != nil {
		return model.PaymentTransaction{}, err
	}
	return tx, nil
}

func (r *paymentTransactionGormRepository) FindResolvedByProviderOrderID(ctx context.Context, providerOrderID string) (model.PaymentTransaction, error) {
	var tx model.PaymentTransaction
	err := r.db.WithContext(ctx).
		Where("provider_order_id = ? AND order_ref_id IS NOT NULL", providerOrderID).
		Order("id asc").
		First(&tx).Error
	if isNotFound(err) {
		return model.PaymentTransaction{}, repo.ErrNotFound
	}
	if err != nil {
		return model.PaymentTransaction{}, err
	}
	return tx, nil
}

func (r *paymentTransactionGormRepository) FindRequestByProviderOrderID(ctx context.Context, providerOrderID string) (model.PaymentTransaction, error) {
	var tx model.PaymentTransaction
	err := r.db.WithContext(ctx).
		Where("provider_order_id = ? AND kind = ?", providerOrderID, model.PaymentTransactionRequest).
		Order("id asc").
		First(&tx).Error
	if isNotFound(err) {
		return model.PaymentTransaction{}, repo.ErrNotFound
	}
	if err != nil {
		return model.PaymentTransaction{}, err
	}
	return tx, nil
}

// oldest first, so the forensic trail reads top-down
func (r *paymentTransactionGormRepository) ListByOrderRef(ctx context.Context, orderID int64) ([]model.PaymentTransaction, error) {
	var txs []model.PaymentTransaction
	if err := r.db.WithContext(ctx).
		Where("order_ref_id = ?", orderID).
		Order("id asc").
		Find(&txs).Error; err != nil {
		return nil, err
	}
	return txs, nil
}
