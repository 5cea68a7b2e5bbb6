package model

import "time"

type PaymentTransactionKind string

const (
	// outbound payment-creation request
	PaymentTransactionRequest PaymentTransactionKind = "REQUEST"
	// inbound provider callback (IPN)
	PaymentTransactionCallback PaymentTransactionKind = "CALLBACK"
)

// Settlement log row. Insert-only: never updated after Create.
type PaymentTransaction struct {
	ID              int64                  `gorm:"primaryKey;autoIncrement" json:"id"`
	Kind            PaymentTransactionKind `gorm:"type:varchar(20);not null" json:"kind"`
	Provider        string                 `gorm:"type:varchar(50);not null;default:'MoMo'" json:"provider"`
	ProviderOrderID string                 `gorm:"type:varchar(100);index" json:"provider_order_id"`
	RequestID       string                 `gorm:"type:varchar(100)" json:"request_id"`
	TransID         *string                `gorm:"type:varchar(100)" json:"trans_id,omitempty"`
	Amount          Money                  `gorm:"not null" json:"amount"`
	PayType         string                 `gorm:"type:varchar(50)" json:"pay_type,omitempty"`
	ResultCode      *int                   `json:"result_code,omitempty"`
	Message         string                 `gorm:"type:text" json:"message,omitempty"`
	ExtraData       string                 `gorm:"type:text" json:"extra_data,omitempty"`
	Signature       string                 `gorm:"type:text" json:"signature,omitempty"`
	SignatureValid  bool                   `gorm:"not null;default:false" json:"signature_valid"`
	OrderRefID      *int64                 `gorm:"index" json:"order_ref_id,omitempty"`
	CreatedAt       time.Time              `gorm:"not null;autoCreateTime" json:"created_at"`
}
