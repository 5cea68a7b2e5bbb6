package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"shop/internal/domain/model"
	"shop/internal/infra/momo"
	"shop/internal/usecase"

	"github.com/labstack/echo/v4"
)

// OrderService is the part of *usecase.OrderUsecase the routes use.
type OrderService interface {
	PlaceOrder(ctx context.Context, in usecase.PlaceOrderInput) (usecase.PlaceOrderOutput, error)
	EditOrder(ctx context.Context, orderID int64, in usecase.EditOrderInput) (model.Order, error)
	CancelOrder(ctx context.Context, orderID int64) (model.Order, error)
	TransitionStatus(ctx context.Context, orderID int64, to model.OrderStatus) (model.Order, error)
	FinalizePayment(ctx context.Context, in usecase.FinalizePaymentInput) (model.Order, error)
	RetryPayment(ctx context.Context, orderID int64) (usecase.PlaceOrderOutput, error)
	FindAll(ctx context.Context) ([]model.Order, error)
	FindOne(ctx context.Context, orderID int64) (model.Order, error)
	ListTransactions(ctx context.Context, orderID int64) ([]model.PaymentTransaction, error)
}

type CallbackService interface {
	HandleProviderCallback(ctx context.Context, cb momo.Callback) usecase.CallbackResult
}

type OrderHandler struct {
	uc        OrderService
	callbacks CallbackService
}

func NewOrderHandler(uc OrderService, callbacks CallbackService) *OrderHandler {
	return &OrderHandler{uc: uc, callbacks: callbacks}
}

type OrderItemRequest struct {
	ProductID int64 `json:"product_id"`
	Quantity  int64 `json:"quantity"`
}

type OrderCreateRequest struct {
	CustomerName    string             `json:"customer_name"`
	CustomerPhone   string             `json:"customer_phone"`
	CustomerAddress string             `json:"customer_address"`
	CustomerEmail   string             `json:"customer_email"`
	PaymentMethod   string             `json:"payment_method"`
	Items           []OrderItemRequest `json:"items"`
	TotalAmount     model.Money        `json:"total_amount"`
}

// omitted fields keep their value; omitted items keep the lines
type OrderEditRequest struct {
	CustomerName    *string            `json:"customer_name"`
	CustomerPhone   *string            `json:"customer_phone"`
	CustomerAddress *string            `json:"customer_address"`
	CustomerEmail   *string            `json:"customer_email"`
	Items           []OrderItemRequest `json:"items"`
}

type OrderStatusUpdateRequest struct {
	Status string `json:"status"`
}

type FinalizeRequest struct {
	OrderCreateRequest
	OrderID         int64  `json:"order_id"`
	ProviderOrderID string `json:"provider_order_id"`
}

type MoMoOrderResponse struct {
	PayURL  string      `json:"payUrl"`
	OrderID int64       `json:"orderId"`
	Order   model.Order `json:"order"`
}

// returned with 503 when the order was saved but the gateway failed
type PaymentPendingResponse struct {
	Error   string `json:"error"`
	OrderID int64  `json:"order_id"`
}

func (h *OrderHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/orders")

	g.POST("", h.create)
	g.POST("/momo", h.createMoMo)
	g.POST("/momo/ipn", h.ipn)
	g.POST("/finalize", h.finalize)
	g.GET("", h.list)
	g.GET("/:id", h.detail)
	g.GET("/:id/transactions", h.transactions)
	g.PATCH("/:id", h.edit)
	g.PATCH("/:id/status", h.updateStatus)
	g.POST("/:id/payment", h.retryPayment)
	g.DELETE("/:id", h.remove)
}

func (h *OrderHandler) create(c echo.Context) error {
	var req OrderCreateRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid body"})
	}
	in, err := req.toInput()
	if err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
	}

	out, err := h.uc.PlaceOrder(c.Request().Context(), in)
	if err != nil {
		return writePlaceError(c, out, err)
	}
	return c.JSON(http.StatusCreated, out)
}

func (h *OrderHandler) createMoMo(c echo.Context) error {
	var req OrderCreateRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid body"})
	}
	req.PaymentMethod = string(model.PaymentMethodRedirect)
	in, err := req.toInput()
	if err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
	}

	out, err := h.uc.PlaceOrder(c.Request().Context(), in)
	if err != nil {
		return writePlaceError(c, out, err)
	}
	return c.JSON(http.StatusCreated, MoMoOrderResponse{
		PayURL:  out.PayURL,
		OrderID: out.Order.ID,
		Order:   out.Order,
	})
}

// ipn always answers 200 so the provider does not retry on our errors
func (h *OrderHandler) ipn(c echo.Context) error {
	var cb momo.Callback
	if err := c.Bind(&cb); err != nil {
		return c.JSON(http.StatusOK, usecase.CallbackResult{Success: false, Message: "invalid body"})
	}
	return c.JSON(http.StatusOK, h.callbacks.HandleProviderCallback(c.Request().Context(), cb))
}

func (h *OrderHandler) finalize(c echo.Context) error {
	var req FinalizeRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid body"})
	}
	// synthesized orders are always redirect payments
	req.PaymentMethod = string(model.PaymentMethodRedirect)
	order, err := req.OrderCreateRequest.toInput()
	if err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
	}

	out, err := h.uc.FinalizePayment(c.Request().Context(), usecase.FinalizePaymentInput{
		OrderID:         req.OrderID,
		ProviderOrderID: req.ProviderOrderID,
		Order:           order,
	})
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *OrderHandler) list(c echo.Context) error {
	out, err := h.uc.FindAll(c.Request().Context())
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *OrderHandler) detail(c echo.Context) error {
	id, ok := parseID(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid id"})
	}

	out, err := h.uc.FindOne(c.Request().Context(), id)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *OrderHandler) transactions(c echo.Context) error {
	id, ok := parseID(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid id"})
	}

	out, err := h.uc.ListTransactions(c.Request().Context(), id)
	if err != nil {
		return writeError(c, err)
	}
	if out == nil {
		out = []model.PaymentTransaction{}
	}
	return c.JSON(http.StatusOK, out)
}

func (h *OrderHandler) edit(c echo.Context) error {
	id, ok := parseID(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid id"})
	}
	var req OrderEditRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid body"})
	}

	in := usecase.EditOrderInput{
		CustomerName:    req.CustomerName,
		CustomerPhone:   req.CustomerPhone,
		CustomerAddress: req.CustomerAddress,
		CustomerEmail:   req.CustomerEmail,
	}
	if req.Items != nil {
		in.Items = toItems(req.Items)
	}

	out, err := h.uc.EditOrder(c.Request().Context(), id, in)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *OrderHandler) updateStatus(c echo.Context) error {
	id, ok := parseID(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid id"})
	}
	var req OrderStatusUpdateRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid body"})
	}
	status, err := model.ParseOrderStatus(req.Status)
	if err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid status"})
	}

	out, err := h.uc.TransitionStatus(c.Request().Context(), id, status)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *OrderHandler) retryPayment(c echo.Context) error {
	id, ok := parseID(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid id"})
	}

	out, err := h.uc.RetryPayment(c.Request().Context(), id)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, MoMoOrderResponse{
		PayURL:  out.PayURL,
		OrderID: out.Order.ID,
		Order:   out.Order,
	})
}

func (h *OrderHandler) remove(c echo.Context) error {
	id, ok := parseID(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid id"})
	}

	out, err := h.uc.CancelOrder(c.Request().Context(), id)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (r OrderCreateRequest) toInput() (usecase.PlaceOrderInput, error) {
	method, err := model.ParsePaymentMethod(r.PaymentMethod)
	if err != nil {
		return usecase.PlaceOrderInput{}, errors.New("invalid payment_method")
	}
	return usecase.PlaceOrderInput{
		CustomerName:    r.CustomerName,
		CustomerPhone:   r.CustomerPhone,
		CustomerAddress: r.CustomerAddress,
		CustomerEmail:   r.CustomerEmail,
		PaymentMethod:   method,
		Items:           toItems(r.Items),
		TotalAmount:     r.TotalAmount,
	}, nil
}

func toItems(reqs []OrderItemRequest) []usecase.ItemInput {
	items := make([]usecase.ItemInput, 0, len(reqs))
	for _, it := range reqs {
		items = append(items, usecase.ItemInput{ProductID: it.ProductID, Quantity: it.Quantity})
	}
	return items
}

// the order is committed even when the gateway fails; tell the client which one
func writePlaceError(c echo.Context, out usecase.PlaceOrderOutput, err error) error {
	if out.Order.ID != 0 && errors.Is(err, usecase.ErrGatewayUnavailable) {
		oe, _ := usecase.AsOrderError(err)
		return c.JSON(http.StatusServiceUnavailable, PaymentPendingResponse{Error: oe.Message, OrderID: out.Order.ID})
	}
	return writeError(c, err)
}

func parseID(c echo.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}
