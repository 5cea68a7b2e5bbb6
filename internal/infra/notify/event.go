package notify

import (
	"time"

	"shop/internal/domain/model"
)

const EventInvoiceRequested = "invoice.requested"

// InvoiceLine is one rendered row of the invoice.
type InvoiceLine struct {
	ProductID int64       `json:"product_id"`
	Name      string      `json:"name"`
	UnitPrice model.Money `json:"unit_price"`
	Quantity  int64       `json:"quantity"`
	LineTotal model.Money `json:"line_total"`
}

// InvoiceEvent carries everything an external mailer needs to render and send the invoice.
type InvoiceEvent struct {
	EventType       string              `json:"event_type"`
	OrderID         int64               `json:"order_id"`
	CustomerName    string              `json:"customer_name"`
	CustomerPhone   string              `json:"customer_phone"`
	CustomerAddress string              `json:"customer_address"`
	CustomerEmail   string              `json:"customer_email,omitempty"`
	PaymentMethod   model.PaymentMethod `json:"payment_method"`
	Status          model.OrderStatus   `json:"status"`
	Total           model.Money         `json:"total"`
	Lines           []InvoiceLine       `json:"lines"`
	OrderedAt       time.Time           `json:"ordered_at"`
	Timestamp       time.Time           `json:"timestamp"`
}

func NewInvoiceEvent(order model.Order, now time.Time) InvoiceEvent {
	lines := make([]InvoiceLine, 0, len(order.Items))
	for _, it := range order.Items {
		lines = append(lines, InvoiceLine{
			ProductID: it.ProductID,
			Name:      it.ProductNameSnapshot,
			UnitPrice: it.UnitPriceSnapshot,
			Quantity:  it.Quantity,
			LineTotal: it.LineTotal(),
		})
	}
	return InvoiceEvent{
		EventType:       EventInvoiceRequested,
		OrderID:         order.ID,
		CustomerName:    order.CustomerName,
		CustomerPhone:   order.CustomerPhone,
		CustomerAddress: order.CustomerAddress,
		CustomerEmail:   order.CustomerEmail,
		PaymentMethod:   order.PaymentMethod,
		Status:          order.Status,
		Total:           order.TotalAmount,
		Lines:           lines,
		OrderedAt:       order.CreatedAt,
		Timestamp:       now,
	}
}
