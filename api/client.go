package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/google/uuid"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/vietpos/terminal/core"
)

// Client talks to the POS backend over HTTP. It is safe for concurrent
// use; the bearer token may be swapped at any time via SetToken.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     core.Logger
	deviceID   string

	mu    sync.RWMutex
	token string
}

// ClientOption configures a Client
type ClientOption func(*Client)

// WithHTTPClient overrides the underlying HTTP client. Useful in tests.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithLogger sets the client logger
func WithLogger(logger core.Logger) ClientOption {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithDeviceID tags every request with a terminal identifier
func WithDeviceID(id string) ClientOption {
	return func(c *Client) {
		c.deviceID = id
	}
}

// NewClient creates a backend client from configuration. Outbound
// requests carry trace context via the otelhttp transport.
func NewClient(cfg *core.Config, opts ...ClientOption) *Client {
	c := &Client{
		baseURL: strings.TrimRight(cfg.Backend.BaseURL, "/"),
		httpClient: &http.Client{
			Timeout:   cfg.Backend.HTTPTimeout.Std(),
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		logger:   &core.NoOpLogger{},
		deviceID: cfg.DeviceID,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SetToken installs the bearer token attached to subsequent requests
func (c *Client) SetToken(token string) {
	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
}

// ClearToken removes the bearer token
func (c *Client) ClearToken() {
	c.SetToken("")
}

func (c *Client) currentToken() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

// errorBody is the backend's error envelope
type errorBody struct {
	Message string `json:"message"`
}

// doJSON performs one JSON round trip. A nil body sends no payload and
// a nil out discards the response body.
func (c *Client) doJSON(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return core.NewClientError("api."+method+" "+path, "encode", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return core.NewClientError("api."+method+" "+path, "request", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", uuid.New().String())
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.deviceID != "" {
		req.Header.Set("X-Device-ID", c.deviceID)
	}
	if token := c.currentToken(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("Backend request failed", map[string]interface{}{
			"method": method,
			"path":   path,
			"error":  err.Error(),
		})
		if ctx.Err() != nil {
			return &core.ClientError{
				Op:   method + " " + path,
				Kind: "network",
				Err:  fmt.Errorf("%w: %v", core.ErrTimeout, err),
			}
		}
		return &core.ClientError{
			Op:      method + " " + path,
			Kind:    "network",
			Message: "cannot reach the POS backend",
			Err:     fmt.Errorf("%w: %v", core.ErrConnectionFailed, err),
		}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return c.statusError(method, path, resp)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return &core.ClientError{
				Op:   method + " " + path,
				Kind: "decode",
				Err:  fmt.Errorf("%w: decoding response: %v", core.ErrRequestFailed, err),
			}
		}
	}
	return nil
}

// statusError maps a non-2xx response to a sentinel-wrapped ClientError,
// preferring the backend's own message when it sends one.
func (c *Client) statusError(method, path string, resp *http.Response) error {
	var eb errorBody
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	_ = json.Unmarshal(data, &eb)

	var sentinel error
	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		sentinel = core.ErrNotAuthenticated
	case resp.StatusCode == http.StatusForbidden:
		sentinel = core.ErrNotAuthenticated
	case resp.StatusCode == http.StatusNotFound:
		sentinel = core.ErrOrderNotFound
	case resp.StatusCode >= 500:
		sentinel = core.ErrRequestFailed
	default:
		sentinel = core.ErrRequestFailed
	}

	c.logger.Warn("Backend returned error status", map[string]interface{}{
		"method":  method,
		"path":    path,
		"status":  resp.StatusCode,
		"message": eb.Message,
	})

	return &core.ClientError{
		Op:      method + " " + path,
		Kind:    "http",
		Message: eb.Message,
		Err:     fmt.Errorf("%w: status %d", sentinel, resp.StatusCode),
	}
}

// ListProducts fetches the full catalog
func (c *Client) ListProducts(ctx context.Context) ([]Product, error) {
	var products []Product
	if err := c.doJSON(ctx, http.MethodGet, "/api/products", nil, &products); err != nil {
		return nil, err
	}
	return products, nil
}

// CreateOrder submits an order and returns the backend's record of it.
// A response without an order id is rejected.
func (c *Client) CreateOrder(ctx context.Context, req CreateOrderRequest) (*Order, error) {
	var order Order
	if err := c.doJSON(ctx, http.MethodPost, "/api/orders", req, &order); err != nil {
		return nil, err
	}
	if order.ID == "" {
		return nil, &core.ClientError{
			Op:      "api.CreateOrder",
			Kind:    "order",
			Message: "backend did not return an order id",
			Err:     core.ErrMissingOrderID,
		}
	}
	c.logger.Info("Order created", map[string]interface{}{
		"order_id":    order.ID,
		"total_price": order.TotalPrice,
	})
	return &order, nil
}

// GetOrder fetches a single order by id
func (c *Client) GetOrder(ctx context.Context, orderID string) (*Order, error) {
	var order Order
	path := "/api/orders/" + url.PathEscape(orderID)
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &order); err != nil {
		return nil, err
	}
	return &order, nil
}

// RequestQR asks the backend to generate a payment QR for the order
func (c *Client) RequestQR(ctx context.Context, orderID string) (*QRResponse, error) {
	var qr QRResponse
	if err := c.doJSON(ctx, http.MethodPost, "/api/orders/payment/qr", QRRequest{OrderID: orderID}, &qr); err != nil {
		return nil, err
	}
	return &qr, nil
}

// CheckPayment polls the bank-transfer gateway for the order's status
func (c *Client) CheckPayment(ctx context.Context, orderID string) (*PaymentStatusResponse, error) {
	var status PaymentStatusResponse
	if err := c.doJSON(ctx, http.MethodPost, "/api/orders/payment/check-casso", QRRequest{OrderID: orderID}, &status); err != nil {
		return nil, err
	}
	return &status, nil
}

// ConfirmPayment records a cash settlement for the order
func (c *Client) ConfirmPayment(ctx context.Context, req ConfirmPaymentRequest) (*PaymentStatusResponse, error) {
	var status PaymentStatusResponse
	if err := c.doJSON(ctx, http.MethodPatch, "/api/orders/payment/confirm", req, &status); err != nil {
		return nil, err
	}
	return &status, nil
}

// InvoiceURL returns the printable invoice location for an order
func (c *Client) InvoiceURL(orderID string) string {
	return c.baseURL + "/api/orders/" + url.PathEscape(orderID) + "/invoice"
}

// DashboardStats fetches sales aggregates for the given range
func (c *Client) DashboardStats(ctx context.Context, rng TimeRange) (*DashboardStats, error) {
	if !rng.Valid() {
		return nil, &core.ClientError{
			Op:      "api.DashboardStats",
			Kind:    "request",
			Message: fmt.Sprintf("unknown time range %q", rng),
			Err:     core.ErrInvalidConfiguration,
		}
	}
	var stats DashboardStats
	path := "/api/orders/stats/dashboard?range=" + url.QueryEscape(string(rng))
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &stats); err != nil {
		return nil, err
	}
	return &stats, nil
}

// Login authenticates the operator and returns the issued token
func (c *Client) Login(ctx context.Context, req LoginRequest) (*LoginResponse, error) {
	var out LoginResponse
	if err := c.doJSON(ctx, http.MethodPost, "/api/auth/login", req, &out); err != nil {
		return nil, err
	}
	if out.Token == "" {
		return nil, &core.ClientError{
			Op:      "api.Login",
			Kind:    "auth",
			Message: "login succeeded but no token was returned",
			Err:     core.ErrInvalidCredentials,
		}
	}
	return &out, nil
}

// LoginHistory fetches login records for every user
func (c *Client) LoginHistory(ctx context.Context) ([]UserLoginHistory, error) {
	var history []UserLoginHistory
	if err := c.doJSON(ctx, http.MethodGet, "/api/auth/login-history", nil, &history); err != nil {
		return nil, err
	}
	return history, nil
}
