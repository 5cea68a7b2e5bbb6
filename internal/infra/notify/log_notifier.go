package notify

import (
	"context"

	"shop/internal/domain/model"

	log "github.com/sirupsen/logrus"
)

// LogNotifier writes the invoice summary to the log. Used when no broker is configured.
type LogNotifier struct {
	logger *log.Entry
}

func NewLogNotifier(logger *log.Entry) *LogNotifier {
	if logger == nil {
		logger = log.WithField("component", "invoice")
	}
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) SendInvoice(ctx context.Context, order model.Order) error {
	n.logger.WithFields(log.Fields{
		"order_id":       order.ID,
		"customer_email": order.CustomerEmail,
		"total":          order.TotalAmount.String(),
		"lines":          len(order.Items),
		"status":         order.Status,
	}).Info("invoice ready")
	return nil
}
