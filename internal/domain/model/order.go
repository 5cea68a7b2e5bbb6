package model

import (
	"fmt"
	"time"
)

type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "PENDING"
	OrderStatusPaid      OrderStatus = "PAID"
	OrderStatusCancelled OrderStatus = "CANCELLED"
)

// ParseOrderStatus accepts only the three known statuses.
func ParseOrderStatus(s string) (OrderStatus, error) {
	switch st := OrderStatus(s); st {
	case OrderStatusPending, OrderStatusPaid, OrderStatusCancelled:
		return st, nil
	}
	return "", fmt.Errorf("unknown order status %q", s)
}

// PENDING is the only non-terminal state.
var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusPending: {OrderStatusPaid, OrderStatusCancelled},
}

// CanTransition reports whether from -> to is an allowed edge.
// Staying in the same state is not an edge.
func (from OrderStatus) CanTransition(to OrderStatus) bool {
	for _, next := range orderTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

func (s OrderStatus) IsTerminal() bool {
	return len(orderTransitions[s]) == 0
}

type PaymentMethod string

const (
	// pay on delivery
	PaymentMethodCOD PaymentMethod = "COD"
	// third-party redirect payment (MoMo)
	PaymentMethodRedirect PaymentMethod = "REDIRECT"
)

// ParsePaymentMethod maps the wire value. "MOMO" is kept as an alias of REDIRECT
// for older clients; empty defaults to COD.
func ParsePaymentMethod(s string) (PaymentMethod, error) {
	switch s {
	case "", string(PaymentMethodCOD):
		return PaymentMethodCOD, nil
	case string(PaymentMethodRedirect), "MOMO":
		return PaymentMethodRedirect, nil
	}
	return "", fmt.Errorf("unknown payment method %q", s)
}

type Order struct {
	ID              int64         `gorm:"primaryKey;autoIncrement" json:"id"`
	CustomerName    string        `gorm:"type:varchar(255);not null" json:"customer_name"`
	CustomerPhone   string        `gorm:"type:varchar(30);not null" json:"customer_phone"`
	CustomerAddress string        `gorm:"type:varchar(512);not null" json:"customer_address"`
	CustomerEmail   string        `gorm:"type:varchar(255)" json:"customer_email,omitempty"`
	TotalAmount     Money         `gorm:"not null" json:"total_amount"`
	Status          OrderStatus   `gorm:"type:varchar(20);not null;index" json:"status"`
	PaymentMethod   PaymentMethod `gorm:"type:varchar(20);not null" json:"payment_method"`
	PaymentURL      *string       `gorm:"type:varchar(512)" json:"payment_url,omitempty"`
	CreatedAt       time.Time     `gorm:"not null;autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time     `gorm:"not null;autoUpdateTime" json:"updated_at"`

	// hydrated by the usecase, not a column
	Items []OrderItem `gorm:"-" json:"items"`
}

// ItemsTotal sums the line totals of the hydrated items.
func (o Order) ItemsTotal() Money {
	var total Money
	for _, it := range o.Items {
		total += it.LineTotal()
	}
	return total
}
