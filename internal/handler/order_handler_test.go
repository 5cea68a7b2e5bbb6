package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"shop/internal/domain/model"
	"shop/internal/infra/momo"
	"shop/internal/usecase"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// =====================
// mocks
// =====================

type OrderServiceMock struct{ mock.Mock }

func (m *OrderServiceMock) PlaceOrder(ctx context.Context, in usecase.PlaceOrderInput) (usecase.PlaceOrderOutput, error) {
	args := m.Called(ctx, in)
	out, _ := args.Get(0).(usecase.PlaceOrderOutput)
	return out, args.Error(1)
}

func (m *OrderServiceMock) EditOrder(ctx context.Context, orderID int64, in usecase.EditOrderInput) (model.Order, error) {
	args := m.Called(ctx, orderID, in)
	out, _ := args.Get(0).(model.Order)
	return out, args.Error(1)
}

func (m *OrderServiceMock) CancelOrder(ctx context.Context, orderID int64) (model.Order, error) {
	args := m.Called(ctx, orderID)
	out, _ := args.Get(0).(model.Order)
	return out, args.Error(1)
}

func (m *OrderServiceMock) TransitionStatus(ctx context.Context, orderID int64, to model.OrderStatus) (model.Order, error) {
	args := m.Called(ctx, orderID, to)
	out, _ := args.Get(0).(model.Order)
	return out, args.Error(1)
}

func (m *OrderServiceMock) FinalizePayment(ctx context.Context, in usecase.FinalizePaymentInput) (model.Order, error) {
	args := m.Called(ctx, in)
	out, _ := args.Get(0).(model.Order)
	return out, args.Error(1)
}

func (m *OrderServiceMock) RetryPayment(ctx context.Context, orderID int64) (usecase.PlaceOrderOutput, error) {
	args := m.Called(ctx, orderID)
	out, _ := args.Get(0).(usecase.PlaceOrderOutput)
	return out, args.Error(1)
}

func (m *OrderServiceMock) FindAll(ctx context.Context) ([]model.Order, error) {
	args := m.Called(ctx)
	out, _ := args.Get(0).([]model.Order)
	return out, args.Error(1)
}

func (m *OrderServiceMock) FindOne(ctx context.Context, orderID int64) (model.Order, error) {
	args := m.Called(ctx, orderID)
	out, _ := args.Get(0).(model.Order)
	return out, args.Error(1)
}

func (m *OrderServiceMock) ListTransactions(ctx context.Context, orderID int64) ([]model.PaymentTransaction, error) {
	args := m.Called(ctx, orderID)
	out, _ := args.Get(0).([]model.PaymentTransaction)
	return out, args.Error(1)
}

type CallbackServiceMock struct{ mock.Mock }

func (m *CallbackServiceMock) HandleProviderCallback(ctx context.Context, cb momo.Callback) usecase.CallbackResult {
	args := m.Called(ctx, cb)
	return args.Get(0).(usecase.CallbackResult)
}

// =====================
// helpers
// =====================

func newTestServer() (*echo.Echo, *OrderServiceMock, *CallbackServiceMock) {
	e := echo.New()
	svc := &OrderServiceMock{}
	cbs := &CallbackServiceMock{}
	NewOrderHandler(svc, cbs).RegisterRoutes(e)
	return e, svc, cbs
}

func doJSON(e *echo.Echo, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body.Error
}

const createBody = `{
	"customer_name": "Nguyen An",
	"customer_phone": "0900000000",
	"customer_address": "12 Le Loi",
	"customer_email": "an@example.com",
	"payment_method": "COD",
	"items": [{"product_id": 1, "quantity": 2}],
	"total_amount": 20
}`

// =====================
// tests
// =====================

func TestCreateOrder_Created(t *testing.T) {
	e, svc, _ := newTestServer()

	svc.On("PlaceOrder", mock.Anything, mock.MatchedBy(func(in usecase.PlaceOrderInput) bool {
		return in.PaymentMethod == model.PaymentMethodCOD &&
			in.TotalAmount == 2000 &&
			len(in.Items) == 1 && in.Items[0].ProductID == 1 && in.Items[0].Quantity == 2
	})).Return(usecase.PlaceOrderOutput{Order: model.Order{ID: 9, Status: model.OrderStatusPaid, TotalAmount: 2000}}, nil)

	rec := doJSON(e, http.MethodPost, "/orders", createBody)

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Contains(t, rec.Body.String(), `"total_amount":20.00`)
	svc.AssertExpectations(t)
}

func TestCreateOrder_ErrorKinds(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
	}{
		{"validation", &usecase.OrderError{Kind: usecase.KindValidation, Message: "bad"}, http.StatusBadRequest},
		{"not found", &usecase.OrderError{Kind: usecase.KindNotFound, Message: "product 1 not found"}, http.StatusNotFound},
		{"stock", &usecase.OrderError{Kind: usecase.KindInsufficientStock, Message: "not enough"}, http.StatusConflict},
		{"gateway", &usecase.OrderError{Kind: usecase.KindGatewayUnavailable, Message: "not configured"}, http.StatusServiceUnavailable},
		{"internal", &usecase.OrderError{Kind: usecase.KindInternal, Message: "db", Err: errors.New("conn reset")}, http.StatusInternalServerError},
		{"plain", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, svc, _ := newTestServer()
			svc.On("PlaceOrder", mock.Anything, mock.Anything).Return(usecase.PlaceOrderOutput{}, tt.err)

			rec := doJSON(e, http.MethodPost, "/orders", createBody)

			assert.Equal(t, tt.status, rec.Code)
			if tt.status == http.StatusInternalServerError {
				assert.Equal(t, "internal error", decodeError(t, rec))
			}
		})
	}
}

func TestCreateOrder_BadInput(t *testing.T) {
	e, svc, _ := newTestServer()

	rec := doJSON(e, http.MethodPost, "/orders", `{"items": [`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(e, http.MethodPost, "/orders", `{"payment_method": "CARD", "items": []}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid payment_method", decodeError(t, rec))

	svc.AssertNotCalled(t, "PlaceOrder", mock.Anything, mock.Anything)
}

func TestCreateMoMoOrder(t *testing.T) {
	e, svc, _ := newTestServer()
	url := "https://pay.example/1"

	svc.On("PlaceOrder", mock.Anything, mock.MatchedBy(func(in usecase.PlaceOrderInput) bool {
		return in.PaymentMethod == model.PaymentMethodRedirect
	})).Return(usecase.PlaceOrderOutput{
		Order:  model.Order{ID: 5, Status: model.OrderStatusPending, PaymentURL: &url},
		PayURL: url,
	}, nil)

	rec := doJSON(e, http.MethodPost, "/orders/momo", createBody)

	require.Equal(t, http.StatusCreated, rec.Code)
	var body MoMoOrderResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, url, body.PayURL)
	assert.Equal(t, int64(5), body.OrderID)
}

func TestCreateMoMoOrder_GatewayFailureAfterCommit(t *testing.T) {
	e, svc, _ := newTestServer()

	svc.On("PlaceOrder", mock.Anything, mock.Anything).Return(
		usecase.PlaceOrderOutput{Order: model.Order{ID: 5, Status: model.OrderStatusPending}},
		&usecase.OrderError{Kind: usecase.KindGatewayUnavailable, Message: "payment gateway request failed"},
	)

	rec := doJSON(e, http.MethodPost, "/orders/momo", createBody)

	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	var body PaymentPendingResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, int64(5), body.OrderID)
}

func TestIPN_AlwaysOK(t *testing.T) {
	e, _, cbs := newTestServer()

	cbs.On("HandleProviderCallback", mock.Anything, mock.MatchedBy(func(cb momo.Callback) bool {
		return cb.OrderID == "MOMO1" && cb.Amount.String() == "50000" && cb.ResultCode.String() == "0"
	})).Return(usecase.CallbackResult{Success: false, Message: "Invalid signature"})

	rec := doJSON(e, http.MethodPost, "/orders/momo/ipn",
		`{"orderId":"MOMO1","amount":50000,"resultCode":0,"transId":4088878653,"signature":"x"}`)

	assert.Equal(t, http.StatusOK, rec.Code)
	var body usecase.CallbackResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.False(t, body.Success)
	assert.Equal(t, "Invalid signature", body.Message)

	rec = doJSON(e, http.MethodPost, "/orders/momo/ipn", `not json`)
	assert.Equal(t, http.StatusOK, rec.Code)
	cbs.AssertNumberOfCalls(t, "HandleProviderCallback", 1)
}

func TestFinalize(t *testing.T) {
	e, svc, _ := newTestServer()

	svc.On("FinalizePayment", mock.Anything, mock.MatchedBy(func(in usecase.FinalizePaymentInput) bool {
		return in.ProviderOrderID == "MOMO1" && in.OrderID == 0 &&
			in.Order.PaymentMethod == model.PaymentMethodRedirect && in.Order.CustomerName == "Nguyen An"
	})).Return(model.Order{ID: 3, Status: model.OrderStatusPaid}, nil)

	rec := doJSON(e, http.MethodPost, "/orders/finalize",
		`{"provider_order_id":"MOMO1","customer_name":"Nguyen An","items":[{"product_id":1,"quantity":1}],"total_amount":20}`)

	assert.Equal(t, http.StatusOK, rec.Code)
	svc.AssertExpectations(t)
}

func TestListAndDetail(t *testing.T) {
	e, svc, _ := newTestServer()

	svc.On("FindAll", mock.Anything).Return([]model.Order{{ID: 2}, {ID: 1}}, nil)
	svc.On("FindOne", mock.Anything, int64(1)).Return(model.Order{ID: 1}, nil)
	svc.On("FindOne", mock.Anything, int64(404)).Return(model.Order{}, &usecase.OrderError{Kind: usecase.KindNotFound, Message: "order 404 not found"})

	rec := doJSON(e, http.MethodGet, "/orders", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	var orders []model.Order
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &orders))
	assert.Len(t, orders, 2)

	rec = doJSON(e, http.MethodGet, "/orders/1", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(e, http.MethodGet, "/orders/404", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "order 404 not found", decodeError(t, rec))

	rec = doJSON(e, http.MethodGet, "/orders/abc", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestTransactions_EmptyIsArray(t *testing.T) {
	e, svc, _ := newTestServer()
	svc.On("ListTransactions", mock.Anything, int64(7)).Return(nil, nil)

	rec := doJSON(e, http.MethodGet, "/orders/7/transactions", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())
}

func TestEdit_ItemsPresenceIsPreserved(t *testing.T) {
	e, svc, _ := newTestServer()

	svc.On("EditOrder", mock.Anything, int64(4), mock.MatchedBy(func(in usecase.EditOrderInput) bool {
		return in.Items == nil && in.CustomerName != nil && *in.CustomerName == "Binh" && in.CustomerPhone == nil
	})).Return(model.Order{ID: 4}, nil).Once()
	svc.On("EditOrder", mock.Anything, int64(4), mock.MatchedBy(func(in usecase.EditOrderInput) bool {
		return in.Items != nil && len(in.Items) == 0
	})).Return(model.Order{}, &usecase.OrderError{Kind: usecase.KindValidation, Message: "order must contain at least one item"}).Once()

	rec := doJSON(e, http.MethodPatch, "/orders/4", `{"customer_name":"Binh"}`)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(e, http.MethodPatch, "/orders/4", `{"items":[]}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	svc.AssertExpectations(t)
}

func TestUpdateStatus(t *testing.T) {
	e, svc, _ := newTestServer()

	svc.On("TransitionStatus", mock.Anything, int64(3), model.OrderStatusPaid).
		Return(model.Order{ID: 3, Status: model.OrderStatusPaid}, nil)
	svc.On("TransitionStatus", mock.Anything, int64(3), model.OrderStatusPending).
		Return(model.Order{}, &usecase.OrderError{Kind: usecase.KindInvalidTransition, Message: "order 3 cannot move from PAID to PENDING"})

	rec := doJSON(e, http.MethodPatch, "/orders/3/status", `{"status":"PAID"}`)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(e, http.MethodPatch, "/orders/3/status", `{"status":"PENDING"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = doJSON(e, http.MethodPatch, "/orders/3/status", `{"status":"SHIPPED"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid status", decodeError(t, rec))
}

func TestRetryPaymentAndRemove(t *testing.T) {
	e, svc, _ := newTestServer()

	svc.On("RetryPayment", mock.Anything, int64(8)).
		Return(usecase.PlaceOrderOutput{Order: model.Order{ID: 8}, PayURL: "https://pay.example/8"}, nil)
	svc.On("CancelOrder", mock.Anything, int64(8)).
		Return(model.Order{ID: 8, Status: model.OrderStatusPending}, nil)

	rec := doJSON(e, http.MethodPost, "/orders/8/payment", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "https://pay.example/8")

	rec = doJSON(e, http.MethodDelete, "/orders/8", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	svc.AssertExpectations(t)
}
