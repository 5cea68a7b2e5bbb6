package momo

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"sync"
	"time"

	"shop/internal/config"

	log "github.com/sirupsen/logrus"
)

const ProviderName = "MoMo"

var (
	// ErrNotConfigured is returned before any network call when credentials are missing.
	ErrNotConfigured = errors.New("momo: payment gateway is not configured")
	// ErrRejected means the provider answered but refused to create the payment.
	ErrRejected = errors.New("momo: payment request rejected")
)

// PaymentRequest is what the caller decides; the client fills in partner data and the signature.
type PaymentRequest struct {
	ProviderOrderID string
	RequestID       string
	Amount          string
	OrderInfo       string
	ExtraData       string
}

type PaymentResponse struct {
	PartnerCode  string `json:"partnerCode"`
	OrderID      string `json:"orderId"`
	RequestID    string `json:"requestId"`
	Amount       int64  `json:"amount"`
	ResponseTime int64  `json:"responseTime"`
	Message      string `json:"message"`
	ResultCode   int    `json:"resultCode"`
	PayURL       string `json:"payUrl"`
	Deeplink     string `json:"deeplink,omitempty"`
	QRCodeURL    string `json:"qrCodeUrl,omitempty"`
}

// Callback is the IPN body. Numeric fields stay json.Number so the canonical
// string is rebuilt from exactly what the provider sent.
type Callback struct {
	PartnerCode  string      `json:"partnerCode"`
	OrderID      string      `json:"orderId"`
	RequestID    string      `json:"requestId"`
	Amount       json.Number `json:"amount"`
	OrderInfo    string      `json:"orderInfo"`
	OrderType    string      `json:"orderType"`
	TransID      json.Number `json:"transId"`
	ResultCode   json.Number `json:"resultCode"`
	Message      string      `json:"message"`
	PayType      string      `json:"payType"`
	ResponseTime json.Number `json:"responseTime"`
	ExtraData    string      `json:"extraData"`
	Signature    string      `json:"signature"`
}

// Succeeded is true for resultCode 0.
func (cb Callback) Succeeded() bool {
	code, err := strconv.Atoi(cb.ResultCode.String())
	return err == nil && code == 0
}

// request body sent to /v2/gateway/api/create
type createBody struct {
	PartnerCode  string `json:"partnerCode"`
	PartnerName  string `json:"partnerName"`
	StoreID      string `json:"storeId"`
	RequestID    string `json:"requestId"`
	Amount       string `json:"amount"`
	OrderID      string `json:"orderId"`
	OrderInfo    string `json:"orderInfo"`
	RedirectURL  string `json:"redirectUrl"`
	IPNURL       string `json:"ipnUrl"`
	Lang         string `json:"lang"`
	RequestType  string `json:"requestType"`
	AutoCapture  bool   `json:"autoCapture"`
	ExtraData    string `json:"extraData"`
	OrderGroupID string `json:"orderGroupId"`
	Signature    string `json:"signature"`
}

type Client struct {
	cfg    config.MoMoConfig
	http   *http.Client
	logger *log.Entry
	now    func() time.Time

	mu     sync.Mutex
	lastID int64
}

func NewClient(cfg config.MoMoConfig, logger *log.Entry) *Client {
	if logger == nil {
		logger = log.WithField("component", "momo")
	}
	return &Client{
		cfg:    cfg,
		http:   &http.Client{Timeout: cfg.Timeout},
		logger: logger,
		now:    time.Now,
	}
}

func (c *Client) Name() string { return ProviderName }

func (c *Client) Configured() bool { return c.cfg.Configured() }

// NewProviderOrderID is partner code + a millisecond stamp that never repeats
// within this process, even for two calls in the same millisecond.
func (c *Client) NewProviderOrderID() string {
	c.mu.Lock()
	defer c.mu.Unlock()

	id := c.now().UnixMilli()
	if id <= c.lastID {
		id = c.lastID + 1
	}
	c.lastID = id
	return c.cfg.PartnerCode + strconv.FormatInt(id, 10)
}

// CreatePayment signs and sends the request and returns the provider's answer.
// A transport error or timeout is returned as is; the caller may retry with a new order id.
func (c *Client) CreatePayment(ctx context.Context, req PaymentRequest) (PaymentResponse, error) {
	if !c.Configured() {
		return PaymentResponse{}, ErrNotConfigured
	}

	body := createBody{
		PartnerCode: c.cfg.PartnerCode,
		PartnerName: c.cfg.PartnerName,
		StoreID:     c.cfg.StoreID,
		RequestID:   req.RequestID,
		Amount:      req.Amount,
		OrderID:     req.ProviderOrderID,
		OrderInfo:   req.OrderInfo,
		RedirectURL: c.cfg.RedirectURL,
		IPNURL:      c.cfg.IPNURL,
		Lang:        c.cfg.Lang,
		RequestType: c.cfg.RequestType,
		AutoCapture: true,
		ExtraData:   req.ExtraData,
	}
	body.Signature = Sign(c.cfg.SecretKey, createCanonical(c.cfg.AccessKey, body))

	payload, err := json.Marshal(body)
	if err != nil {
		return PaymentResponse{}, fmt.Errorf("momo: marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.Endpoint, bytes.NewReader(payload))
	if err != nil {
		return PaymentResponse{}, fmt.Errorf("momo: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return PaymentResponse{}, fmt.Errorf("momo: create payment %s: %w", req.ProviderOrderID, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return PaymentResponse{}, fmt.Errorf("momo: read response: %w", err)
	}

	var out PaymentResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return PaymentResponse{}, fmt.Errorf("momo: decode response (http %d): %w", resp.StatusCode, err)
	}

	c.logger.WithFields(log.Fields{
		"provider_order_id": req.ProviderOrderID,
		"http_status":       resp.StatusCode,
		"result_code":       out.ResultCode,
	}).Debug("create payment answered")

	if out.ResultCode != 0 || out.PayURL == "" {
		return out, fmt.Errorf("%w: resultCode=%d message=%q", ErrRejected, out.ResultCode, out.Message)
	}
	return out, nil
}

// VerifyCallback recomputes the IPN signature. Always false when unconfigured.
func (c *Client) VerifyCallback(cb Callback) bool {
	if !c.Configured() || cb.Signature == "" {
		return false
	}
	expected := Sign(c.cfg.SecretKey, callbackCanonical(c.cfg.AccessKey, cb))
	return equalSignature(expected, cb.Signature)
}

// SignCallback produces the signature the provider would attach to cb.
func (c *Client) SignCallback(cb Callback) string {
	return Sign(c.cfg.SecretKey, callbackCanonical(c.cfg.AccessKey, cb))
}
