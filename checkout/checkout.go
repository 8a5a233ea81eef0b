// Package checkout turns a cart into a submitted order and drives the
// payment flow to settlement, by cash entry or by QR transfer with
// background status polling.
package checkout

import (
	"context"
	"time"

	"github.com/vietpos/terminal/api"
	"github.com/vietpos/terminal/cart"
	"github.com/vietpos/terminal/core"
	"github.com/vietpos/terminal/telemetry"
)

// Backend is the slice of the API client checkout depends on
type Backend interface {
	CreateOrder(ctx context.Context, req api.CreateOrderRequest) (*api.Order, error)
	GetOrder(ctx context.Context, orderID string) (*api.Order, error)
	RequestQR(ctx context.Context, orderID string) (*api.QRResponse, error)
	CheckPayment(ctx context.Context, orderID string) (*api.PaymentStatusResponse, error)
	ConfirmPayment(ctx context.Context, req api.ConfirmPaymentRequest) (*api.PaymentStatusResponse, error)
	InvoiceURL(orderID string) string
}

// Checkout submits orders and creates payment flows
type Checkout struct {
	backend      Backend
	logger       core.Logger
	telemetry    core.Telemetry
	pollInterval time.Duration
}

// Option configures a Checkout
type Option func(*Checkout)

// WithLogger sets the checkout logger
func WithLogger(logger core.Logger) Option {
	return func(c *Checkout) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithTelemetry sets the telemetry provider
func WithTelemetry(t core.Telemetry) Option {
	return func(c *Checkout) {
		if t != nil {
			c.telemetry = t
		}
	}
}

// WithPollInterval overrides the QR polling interval
func WithPollInterval(d time.Duration) Option {
	return func(c *Checkout) {
		if d > 0 {
			c.pollInterval = d
		}
	}
}

// New creates a Checkout from configuration
func New(backend Backend, cfg *core.Config, opts ...Option) *Checkout {
	c := &Checkout{
		backend:      backend,
		logger:       &core.NoOpLogger{},
		telemetry:    &core.NoOpTelemetry{},
		pollInterval: cfg.Payment.PollInterval.Std(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Submit posts the cart as a new order and returns a payment flow for
// it. An empty cart is rejected before any network call is made.
func (c *Checkout) Submit(ctx context.Context, crt *cart.Cart) (*Payment, error) {
	if crt.IsEmpty() {
		return nil, &core.ClientError{
			Op:      "checkout.Submit",
			Kind:    "order",
			Message: "cart is empty",
			Err:     core.ErrEmptyCart,
		}
	}

	ctx, span := c.telemetry.StartSpan(ctx, "checkout.submit")
	defer span.End()

	order, err := c.backend.CreateOrder(ctx, api.CreateOrderRequest{
		Products:      crt.Items(),
		PaymentMethod: api.PaymentQR,
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	span.SetAttribute("order_id", order.ID)
	span.SetAttribute("total_price", order.TotalPrice)
	c.telemetry.RecordMetric(telemetry.MetricOrdersCreated, 1, nil)
	c.logger.Info("Order submitted", map[string]interface{}{
		"order_id":    order.ID,
		"total_price": order.TotalPrice,
		"lines":       crt.Len(),
	})

	return c.newPayment(order.ID, order.TotalPrice), nil
}

// Resume builds a payment flow for an already-submitted order,
// fetching its total from the backend.
func (c *Checkout) Resume(ctx context.Context, orderID string) (*Payment, error) {
	order, err := c.backend.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	p := c.newPayment(order.ID, order.TotalPrice)
	if order.Status.IsTerminal() {
		p.state = StateSettled
	}
	return p, nil
}

func (c *Checkout) newPayment(orderID string, total int64) *Payment {
	return &Payment{
		backend:      c.backend,
		logger:       c.logger,
		telemetry:    c.telemetry,
		pollInterval: c.pollInterval,
		orderID:      orderID,
		total:        total,
		state:        StateMethodUnselected,
		stopChan:     make(chan struct{}),
	}
}
