package usecase

import (
	"context"
	"errors"

	"shop/internal/domain/model"
	"shop/internal/metrics"
	repo "shop/internal/repository"

	log "github.com/sirupsen/logrus"
)

type OrderUsecase struct {
	tx        repo.TransactionManager
	txlog     repo.PaymentTransactionRepository
	gateway   *PaymentGateway
	notifier  Notifier
	validator OrderValidator
	metrics   *metrics.OrderMetrics
	logger    *log.Entry
}

func NewOrderUsecase(
	tx repo.TransactionManager,
	txlog repo.PaymentTransactionRepository,
	gateway *PaymentGateway,
	notifier Notifier,
	validator OrderValidator,
	m *metrics.OrderMetrics,
	logger *log.Entry,
) *OrderUsecase {
	if logger == nil {
		logger = log.WithField("component", "order")
	}
	return &OrderUsecase{
		tx:        tx,
		txlog:     txlog,
		gateway:   gateway,
		notifier:  notifier,
		validator: validator,
		metrics:   m,
		logger:    logger,
	}
}

type ItemInput struct {
	ProductID int64
	Quantity  int64
}

type PlaceOrderInput struct {
	CustomerName    string
	CustomerPhone   string
	CustomerAddress string
	CustomerEmail   string
	PaymentMethod   model.PaymentMethod
	Items           []ItemInput

	// total claimed by the client; only checked against the minimum,
	// the stored total is always recomputed from price snapshots
	TotalAmount model.Money
}

type PlaceOrderOutput struct {
	Order  model.Order `json:"order"`
	PayURL string      `json:"payUrl,omitempty"`
}

// EditOrderInput: nil fields keep their current value. A nil Items leaves the
// lines and the inventory untouched; a non-nil empty Items is rejected.
type EditOrderInput struct {
	CustomerName    *string
	CustomerPhone   *string
	CustomerAddress *string
	CustomerEmail   *string
	Items           []ItemInput
}

// FinalizePaymentInput identifies the order by internal id or by provider order id.
// Order is used to synthesize a paid order when neither resolves.
type FinalizePaymentInput struct {
	OrderID         int64
	ProviderOrderID string
	Order           PlaceOrderInput
}

// PlaceOrder reserves stock and persists the order in one transaction, then
// either sends the invoice (COD) or creates the redirect payment.
// When the gateway fails after commit, the committed order is returned with the error.
func (u *OrderUsecase) PlaceOrder(ctx context.Context, in PlaceOrderInput) (PlaceOrderOutput, error) {
	if len(in.Items) == 0 {
		return PlaceOrderOutput{}, newError(KindValidation, "order must contain at least one item")
	}
	if in.PaymentMethod == "" {
		in.PaymentMethod = model.PaymentMethodCOD
	}
	if err := u.validate(in); err != nil {
		return PlaceOrderOutput{}, err
	}

	redirect := in.PaymentMethod == model.PaymentMethodRedirect
	if redirect && !u.gateway.Configured() {
		return PlaceOrderOutput{}, newError(KindGatewayUnavailable, "payment gateway is not configured")
	}

	status := model.OrderStatusPaid
	if redirect {
		status = model.OrderStatusPending
	}

	order, err := u.createOrder(ctx, in, status)
	if err != nil {
		return PlaceOrderOutput{}, err
	}

	out := PlaceOrderOutput{Order: order}
	if !redirect {
		dispatchInvoice(ctx, u.notifier, u.metrics, u.logger, order)
		return out, nil
	}

	url, err := u.attachPayment(ctx, order)
	if err != nil {
		return out, err
	}
	out.PayURL = url
	out.Order.PaymentURL = &url
	return out, nil
}

// CreatePaidOrder places an already settled redirect-payment order without
// calling the gateway. The caller decides about the invoice.
func (u *OrderUsecase) CreatePaidOrder(ctx context.Context, in PlaceOrderInput) (model.Order, error) {
	if len(in.Items) == 0 {
		return model.Order{}, newError(KindValidation, "order must contain at least one item")
	}
	in.PaymentMethod = model.PaymentMethodRedirect
	if err := u.validate(in); err != nil {
		return model.Order{}, err
	}
	return u.createOrder(ctx, in, model.OrderStatusPaid)
}

// RetryPayment creates a fresh provider payment for a PENDING redirect order.
func (u *OrderUsecase) RetryPayment(ctx context.Context, orderID int64) (PlaceOrderOutput, error) {
	order, err := u.FindOne(ctx, orderID)
	if err != nil {
		return PlaceOrderOutput{}, err
	}
	if order.PaymentMethod != model.PaymentMethodRedirect {
		return PlaceOrderOutput{}, newError(KindValidation, "order %d is not a redirect-payment order", orderID)
	}
	if order.Status != model.OrderStatusPending {
		return PlaceOrderOutput{}, newError(KindInvalidTransition, "order %d is %s, payment can only be retried while PENDING", orderID, order.Status)
	}

	url, err := u.attachPayment(ctx, order)
	if err != nil {
		return PlaceOrderOutput{Order: order}, err
	}
	order.PaymentURL = &url
	return PlaceOrderOutput{Order: order, PayURL: url}, nil
}

// EditOrder restores the stock of the current lines before consuming the new
// ones, so the inventory moves by the difference only.
func (u *OrderUsecase) EditOrder(ctx context.Context, orderID int64, in EditOrderInput) (model.Order, error) {
	if in.Items != nil && len(in.Items) == 0 {
		return model.Order{}, newError(KindValidation, "order must contain at least one item")
	}
	if u.validator != nil {
		if err := u.validator.ValidateEdit(in); err != nil {
			return model.Order{}, wrapError(KindValidation, err, err.Error())
		}
	}

	var out model.Order
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		order, err := lockOrder(ctx, r, orderID)
		if err != nil {
			return err
		}
		if order.Status == model.OrderStatusCancelled {
			return newError(KindInvalidTransition, "order %d is cancelled and cannot be edited", orderID)
		}

		if in.Items != nil {
			if err := restoreLines(ctx, r, order.Items); err != nil {
				return err
			}
			if err := r.OrderItems().DeleteByOrderID(ctx, orderID); err != nil {
				return internal(err, "delete order items")
			}
			lines, total, err := reserveLines(ctx, r, in.Items)
			if err != nil {
				return err
			}
			if err := r.OrderItems().CreateBulk(ctx, orderID, lines); err != nil {
				return internal(err, "create order items")
			}
			order.TotalAmount = total
		}

		applyCustomer(&order, in)
		if err := r.Orders().Update(ctx, order); err != nil {
			return internal(err, "update order")
		}

		out, err = loadOrder(ctx, r, orderID)
		return err
	})
	if err != nil {
		u.countStockConflict(err)
		return model.Order{}, err
	}

	u.logger.WithField("order_id", orderID).Info("order edited")
	return out, nil
}

// CancelOrder removes the order and gives its stock back. Returns the order as it
// was before deletion. A CANCELLED order already gave its stock back.
func (u *OrderUsecase) CancelOrder(ctx context.Context, orderID int64) (model.Order, error) {
	var snapshot model.Order
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		order, err := lockOrder(ctx, r, orderID)
		if err != nil {
			return err
		}
		if order.Status != model.OrderStatusCancelled {
			if err := restoreLines(ctx, r, order.Items); err != nil {
				return err
			}
		}
		if err := r.OrderItems().DeleteByOrderID(ctx, orderID); err != nil {
			return internal(err, "delete order items")
		}
		if err := r.Orders().Delete(ctx, orderID); err != nil {
			return internal(err, "delete order")
		}
		snapshot = order
		return nil
	})
	if err != nil {
		return model.Order{}, err
	}

	u.logger.WithField("order_id", orderID).Info("order removed")
	return snapshot, nil
}

// TransitionStatus moves the order along the state machine. Asking for the
// current status is a no-op. Moving to PAID sends the invoice when an email is known.
func (u *OrderUsecase) TransitionStatus(ctx context.Context, orderID int64, to model.OrderStatus) (model.Order, error) {
	order, changed, err := u.transition(ctx, orderID, to)
	if err != nil {
		return model.Order{}, err
	}
	if changed && to == model.OrderStatusPaid {
		dispatchPaidInvoice(ctx, u.notifier, u.metrics, u.logger, order)
	}
	return order, nil
}

// FinalizePayment confirms a payment the browser came back from. The invoice goes
// out only when this call moved the order to PAID or created it.
func (u *OrderUsecase) FinalizePayment(ctx context.Context, in FinalizePaymentInput) (model.Order, error) {
	if in.OrderID < 0 {
		return model.Order{}, newError(KindValidation, "invalid order id")
	}

	var (
		order   model.Order
		changed bool
		err     error
	)

	switch {
	case in.OrderID > 0:
		order, changed, err = u.transition(ctx, in.OrderID, model.OrderStatusPaid)

	case in.ProviderOrderID != "":
		order, err = u.FindByProviderOrderID(ctx, in.ProviderOrderID)
		switch {
		case err == nil:
			order, changed, err = u.transition(ctx, order.ID, model.OrderStatusPaid)
		case errors.Is(err, ErrNotFound):
			u.logger.WithField("provider_order_id", in.ProviderOrderID).
				Warn("no order for provider order id, creating a paid order")
			order, err = u.CreatePaidOrder(ctx, in.Order)
			changed = err == nil
		}

	default:
		order, err = u.CreatePaidOrder(ctx, in.Order)
		changed = err == nil
	}
	if err != nil {
		return model.Order{}, err
	}

	if changed {
		dispatchPaidInvoice(ctx, u.notifier, u.metrics, u.logger, order)
	}
	return order, nil
}

func (u *OrderUsecase) FindAll(ctx context.Context) ([]model.Order, error) {
	var out []model.Order
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		orders, err := r.Orders().List(ctx)
		if err != nil {
			return internal(err, "list orders")
		}
		for i := range orders {
			items, err := r.OrderItems().ListByOrderID(ctx, orders[i].ID)
			if err != nil {
				return internal(err, "list order items")
			}
			orders[i].Items = items
		}
		out = orders
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (u *OrderUsecase) FindOne(ctx context.Context, orderID int64) (model.Order, error) {
	var out model.Order
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		order, err := loadOrder(ctx, r, orderID)
		out = order
		return err
	})
	if err != nil {
		return model.Order{}, err
	}
	return out, nil
}

// FindByProviderOrderID resolves the order through the settlement log.
func (u *OrderUsecase) FindByProviderOrderID(ctx context.Context, providerOrderID string) (model.Order, error) {
	row, err := u.txlog.FindResolvedByProviderOrderID(ctx, providerOrderID)
	if errors.Is(err, repo.ErrNotFound) || (err == nil && row.OrderRefID == nil) {
		return model.Order{}, newError(KindNotFound, "no order for provider order id %s", providerOrderID)
	}
	if err != nil {
		return model.Order{}, internal(err, "find payment transaction")
	}
	return u.FindOne(ctx, *row.OrderRefID)
}

// ListTransactions reads the settlement log of one order. Rows outlive the order.
func (u *OrderUsecase) ListTransactions(ctx context.Context, orderID int64) ([]model.PaymentTransaction, error) {
	rows, err := u.txlog.ListByOrderRef(ctx, orderID)
	if err != nil {
		return nil, internal(err, "list payment transactions")
	}
	return rows, nil
}

func (u *OrderUsecase) validate(in PlaceOrderInput) error {
	if u.validator == nil {
		return nil
	}
	if err := u.validator.ValidatePlace(in); err != nil {
		return wrapError(KindValidation, err, err.Error())
	}
	return nil
}

func (u *OrderUsecase) createOrder(ctx context.Context, in PlaceOrderInput, status model.OrderStatus) (model.Order, error) {
	var out model.Order
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		lines, total, err := reserveLines(ctx, r, in.Items)
		if err != nil {
			return err
		}

		orderID, err := r.Orders().Create(ctx, model.Order{
			CustomerName:    in.CustomerName,
			CustomerPhone:   in.CustomerPhone,
			CustomerAddress: in.CustomerAddress,
			CustomerEmail:   in.CustomerEmail,
			TotalAmount:     total,
			Status:          status,
			PaymentMethod:   in.PaymentMethod,
		})
		if err != nil {
			return internal(err, "create order")
		}
		if err := r.OrderItems().CreateBulk(ctx, orderID, lines); err != nil {
			return internal(err, "create order items")
		}

		out, err = loadOrder(ctx, r, orderID)
		return err
	})
	if err != nil {
		u.countStockConflict(err)
		return model.Order{}, err
	}

	u.metrics.OrderPlaced(string(out.PaymentMethod))
	u.logger.WithFields(log.Fields{
		"order_id":       out.ID,
		"status":         out.Status,
		"payment_method": out.PaymentMethod,
		"total":          out.TotalAmount.String(),
	}).Info("order placed")
	return out, nil
}

// attachPayment runs the gateway and stores the redirect URL on the order.
func (u *OrderUsecase) attachPayment(ctx context.Context, order model.Order) (string, error) {
	url, err := u.gateway.CreateRedirectPayment(ctx, order)
	if err != nil {
		return "", err
	}
	err = u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		return r.Orders().SetPaymentURL(ctx, order.ID, url)
	})
	if err != nil {
		return "", internal(err, "store payment url")
	}
	return url, nil
}

func (u *OrderUsecase) transition(ctx context.Context, orderID int64, to model.OrderStatus) (model.Order, bool, error) {
	var (
		out     model.Order
		changed bool
	)
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		order, err := lockOrder(ctx, r, orderID)
		if err != nil {
			return err
		}
		if order.Status == to {
			out = order
			return nil
		}
		if !order.Status.CanTransition(to) {
			return newError(KindInvalidTransition, "order %d cannot move from %s to %s", orderID, order.Status, to)
		}

		if to == model.OrderStatusCancelled {
			if err := restoreLines(ctx, r, order.Items); err != nil {
				return err
			}
		}

		ok, err := r.Orders().UpdateStatusIf(ctx, orderID, order.Status, to)
		if err != nil {
			return internal(err, "update order status")
		}
		if !ok {
			return newError(KindInvalidTransition, "order %d changed status concurrently", orderID)
		}

		order.Status = to
		out = order
		changed = true
		return nil
	})
	if err != nil {
		return model.Order{}, false, err
	}

	if changed {
		u.metrics.StatusChanged(string(to))
		u.logger.WithFields(log.Fields{"order_id": orderID, "status": to}).Info("order status changed")
	}
	return out, changed, nil
}

func (u *OrderUsecase) countStockConflict(err error) {
	if errors.Is(err, ErrInsufficientStock) {
		u.metrics.StockConflict()
	}
}

func applyCustomer(order *model.Order, in EditOrderInput) {
	if in.CustomerName != nil {
		order.CustomerName = *in.CustomerName
	}
	if in.CustomerPhone != nil {
		order.CustomerPhone = *in.CustomerPhone
	}
	if in.CustomerAddress != nil {
		order.CustomerAddress = *in.CustomerAddress
	}
	if in.CustomerEmail != nil {
		order.CustomerEmail = *in.CustomerEmail
	}
}

// loadOrder returns the order with its lines and their products.
func loadOrder(ctx context.Context, r repo.TxRepos, orderID int64) (model.Order, error) {
	return hydrateOrder(ctx, r, orderID, r.Orders().FindByID)
}

// lockOrder is loadOrder holding the order row until the transaction ends.
// Every path that moves stock for an existing order goes through it.
func lockOrder(ctx context.Context, r repo.TxRepos, orderID int64) (model.Order, error) {
	return hydrateOrder(ctx, r, orderID, r.Orders().FindByIDForUpdate)
}

func hydrateOrder(
	ctx context.Context,
	r repo.TxRepos,
	orderID int64,
	find func(ctx context.Context, orderID int64) (model.Order, error),
) (model.Order, error) {
	order, err := find(ctx, orderID)
	if errors.Is(err, repo.ErrNotFound) {
		return model.Order{}, newError(KindNotFound, "order %d not found", orderID)
	}
	if err != nil {
		return model.Order{}, internal(err, "find order")
	}
	items, err := r.OrderItems().ListByOrderID(ctx, orderID)
	if err != nil {
		return model.Order{}, internal(err, "list order items")
	}
	order.Items = items
	return order, nil
}

// reserveLines decrements stock for every line and snapshots the current price.
// Any error must roll the surrounding transaction back.
func reserveLines(ctx context.Context, r repo.TxRepos, items []ItemInput) ([]model.OrderItem, model.Money, error) {
	lines := make([]model.OrderItem, 0, len(items))
	var total model.Money

	for _, it := range items {
		p, err := r.Products().FindByID(ctx, it.ProductID)
		if errors.Is(err, repo.ErrNotFound) || (err == nil && !p.IsActive) {
			return nil, 0, newError(KindNotFound, "product %d not found", it.ProductID)
		}
		if err != nil {
			return nil, 0, internal(err, "find product")
		}

		ok, err := r.Inventory().DecreaseStockIfEnough(ctx, it.ProductID, it.Quantity)
		if err != nil {
			return nil, 0, internal(err, "decrease stock")
		}
		if !ok {
			return nil, 0, newError(KindInsufficientStock, "not enough stock for product %d", it.ProductID)
		}

		lines = append(lines, model.OrderItem{
			ProductID:           p.ID,
			ProductNameSnapshot: p.Name,
			UnitPriceSnapshot:   p.Price,
			Quantity:            it.Quantity,
		})
		total += p.Price.Mul(it.Quantity)
	}
	return lines, total, nil
}

// restoreLines gives every line's quantity back to its product.
func restoreLines(ctx context.Context, r repo.TxRepos, items []model.OrderItem) error {
	for _, it := range items {
		if err := r.Inventory().IncreaseStock(ctx, it.ProductID, it.Quantity); err != nil {
			if errors.Is(err, repo.ErrNotFound) {
				return newError(KindNotFound, "product %d not found", it.ProductID)
			}
			return internal(err, "restore stock")
		}
	}
	return nil
}
