package checkout

import (
	"context"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/vietpos/terminal/api"
	"github.com/vietpos/terminal/core"
	"github.com/vietpos/terminal/telemetry"
)

// State is the payment flow state for one order
type State string

const (
	// StateMethodUnselected means no payment method has been chosen yet
	StateMethodUnselected State = "method_unselected"
	// StateCashEntry means cash was chosen and the received amount is
	// being entered
	StateCashEntry State = "cash_entry"
	// StateQRPending means a QR was generated and the transfer has not
	// been observed yet
	StateQRPending State = "qr_pending"
	// StateSettled means the order is paid
	StateSettled State = "settled"
)

// Payment drives one order from method selection to settlement.
// Safe for concurrent use; the QR poller runs on its own goroutine.
type Payment struct {
	backend      Backend
	logger       core.Logger
	telemetry    core.Telemetry
	pollInterval time.Duration
	orderID      string

	mu       sync.Mutex
	state    State
	method   api.PaymentMethod
	total    int64
	received int64
	qrURL    string
	polling  bool
	stopChan chan struct{}
	wg       sync.WaitGroup
}

// OrderID returns the order this payment settles
func (p *Payment) OrderID() string {
	return p.orderID
}

// Total returns the order total in VND
func (p *Payment) Total() int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.total
}

// State returns the current flow state
func (p *Payment) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Method returns the selected payment method, empty if none yet
func (p *Payment) Method() api.PaymentMethod {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.method
}

// Settled reports whether the order is paid
func (p *Payment) Settled() bool {
	return p.State() == StateSettled
}

// QRUrl returns the generated QR image location, empty if none
func (p *Payment) QRUrl() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.qrURL
}

// InvoiceURL returns the printable invoice location for the order
func (p *Payment) InvoiceURL() string {
	return p.backend.InvoiceURL(p.orderID)
}

// RefreshTotal re-reads the order total from the backend
func (p *Payment) RefreshTotal(ctx context.Context) error {
	order, err := p.backend.GetOrder(ctx, p.orderID)
	if err != nil {
		return err
	}
	p.mu.Lock()
	p.total = order.TotalPrice
	p.mu.Unlock()
	return nil
}

// SelectCash switches the flow to cash entry. The method may be
// changed again until the order settles; any previously entered
// amount is discarded. An active QR poller must be stopped first.
func (p *Payment) SelectCash() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.state == StateSettled {
		return p.invalidTransition("SelectCash")
	}
	if p.polling {
		return &core.ClientError{
			Op:      "payment.SelectCash",
			Kind:    "payment",
			OrderID: p.orderID,
			Message: "stop the QR poller before switching methods",
			Err:     core.ErrInvalidPaymentState,
		}
	}
	p.state = StateCashEntry
	p.method = api.PaymentCash
	p.received = 0
	return nil
}

// SelectQR switches the flow to QR transfer and asks the backend for a
// QR image. Calling it again regenerates the QR for the same order.
func (p *Payment) SelectQR(ctx context.Context) (string, error) {
	p.mu.Lock()
	if p.state == StateSettled {
		err := p.invalidTransition("SelectQR")
		p.mu.Unlock()
		return "", err
	}
	p.mu.Unlock()

	qr, err := p.backend.RequestQR(ctx, p.orderID)
	if err != nil {
		return "", err
	}

	p.mu.Lock()
	p.state = StateQRPending
	p.method = api.PaymentQR
	p.received = 0
	p.qrURL = qr.QRUrl
	p.mu.Unlock()

	p.logger.Info("QR generated", map[string]interface{}{
		"order_id": p.orderID,
		"qr_url":   qr.QRUrl,
	})
	return qr.QRUrl, nil
}

// EnterReceived records the cash amount handed over by the customer
// and returns the change due. Input that does not start with digits
// counts as zero, so the change can be negative while the operator is
// still typing.
func (p *Payment) EnterReceived(input string) (int64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.state != StateCashEntry {
		return 0, p.invalidTransition("EnterReceived")
	}
	p.received = parseAmount(input)
	return p.received - p.total, nil
}

// CashReceived returns the last entered cash amount
func (p *Payment) CashReceived() int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.received
}

// Change returns the change due for the entered amount
func (p *Payment) Change() int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.received - p.total
}

// CanConfirm reports whether the entered cash covers the total
func (p *Payment) CanConfirm() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state == StateCashEntry && p.received >= p.total
}

// ConfirmCash records the cash settlement with the backend. The
// entered amount must cover the order total.
func (p *Payment) ConfirmCash(ctx context.Context) error {
	p.mu.Lock()
	if p.state != StateCashEntry {
		err := p.invalidTransition("ConfirmCash")
		p.mu.Unlock()
		return err
	}
	if p.received < p.total {
		p.mu.Unlock()
		return &core.ClientError{
			Op:      "payment.ConfirmCash",
			Kind:    "payment",
			OrderID: p.orderID,
			Message: "cash received does not cover the total",
			Err:     core.ErrInsufficientCash,
		}
	}
	received := p.received
	change := p.received - p.total
	p.mu.Unlock()

	ctx, span := p.telemetry.StartSpan(ctx, "payment.confirm_cash")
	defer span.End()
	span.SetAttribute("order_id", p.orderID)
	span.SetAttribute("cash_received", received)

	resp, err := p.backend.ConfirmPayment(ctx, api.ConfirmPaymentRequest{
		OrderID:       p.orderID,
		PaymentMethod: api.PaymentCash,
		CashReceived:  received,
		Change:        change,
	})
	if err != nil {
		span.RecordError(err)
		return err
	}
	if !resp.Settled() {
		return &core.ClientError{
			Op:      "payment.ConfirmCash",
			Kind:    "payment",
			OrderID: p.orderID,
			Message: "backend did not accept the cash settlement",
			Err:     core.ErrPaymentPending,
		}
	}

	p.markSettled(api.PaymentCash)
	return nil
}

// StartPolling launches the QR status poller. It checks the backend
// every poll interval until the transfer is observed, the context is
// cancelled, or Stop is called. The callback runs on the poller
// goroutine once when the order settles and must not call Stop.
func (p *Payment) StartPolling(ctx context.Context, onSettled func()) error {
	p.mu.Lock()
	if p.state != StateQRPending {
		err := p.invalidTransition("StartPolling")
		p.mu.Unlock()
		return err
	}
	if p.polling {
		p.mu.Unlock()
		return &core.ClientError{
			Op:      "payment.StartPolling",
			Kind:    "payment",
			OrderID: p.orderID,
			Message: "poller already running",
			Err:     core.ErrInvalidPaymentState,
		}
	}
	p.polling = true
	stop := make(chan struct{})
	p.stopChan = stop
	p.mu.Unlock()

	p.wg.Add(1)
	go p.pollLoop(ctx, stop, onSettled)

	p.logger.Info("Payment poller started", map[string]interface{}{
		"order_id": p.orderID,
		"interval": p.pollInterval.String(),
	})
	return nil
}

// Stop halts the QR poller and waits for it to exit. Stopping a
// poller that is not running is a no-op.
func (p *Payment) Stop() {
	p.mu.Lock()
	if !p.polling {
		p.mu.Unlock()
		return
	}
	p.polling = false
	close(p.stopChan)
	p.mu.Unlock()

	p.wg.Wait()
}

func (p *Payment) pollLoop(ctx context.Context, stop chan struct{}, onSettled func()) {
	defer p.wg.Done()

	ticker := time.NewTicker(p.pollInterval)
	defer ticker.Stop()

	attempt := 0
	for {
		select {
		case <-ticker.C:
			attempt++
			if p.checkOnce(ctx, attempt) {
				p.finishPolling()
				if onSettled != nil {
					onSettled()
				}
				return
			}
		case <-stop:
			return
		case <-ctx.Done():
			p.finishPolling()
			p.logger.Info("Payment poller cancelled", map[string]interface{}{
				"order_id": p.orderID,
			})
			return
		}
	}
}

// checkOnce performs one poll attempt. Transport errors are logged and
// the poller keeps going; only a paid status ends the loop.
func (p *Payment) checkOnce(ctx context.Context, attempt int) bool {
	ctx, span := p.telemetry.StartSpan(ctx, "payment.poll")
	defer span.End()
	span.SetAttribute("order_id", p.orderID)
	span.SetAttribute("attempt", attempt)

	p.telemetry.RecordMetric(telemetry.MetricPollAttempts, 1, map[string]string{
		"order_id": p.orderID,
	})

	resp, err := p.backend.CheckPayment(ctx, p.orderID)
	if err != nil {
		span.RecordError(err)
		p.logger.Warn("Payment check failed", map[string]interface{}{
			"order_id": p.orderID,
			"attempt":  attempt,
			"error":    err.Error(),
		})
		return false
	}
	if !resp.Settled() {
		return false
	}

	p.markSettled(api.PaymentQR)
	return true
}

// CheckNow performs one immediate status check outside the polling
// schedule. It returns true when the order has settled.
func (p *Payment) CheckNow(ctx context.Context) (bool, error) {
	p.mu.Lock()
	if p.state == StateSettled {
		p.mu.Unlock()
		return true, nil
	}
	if p.state != StateQRPending {
		err := p.invalidTransition("CheckNow")
		p.mu.Unlock()
		return false, err
	}
	p.mu.Unlock()

	resp, err := p.backend.CheckPayment(ctx, p.orderID)
	if err != nil {
		return false, err
	}
	if !resp.Settled() {
		return false, nil
	}
	p.markSettled(api.PaymentQR)
	return true, nil
}

// finishPolling clears the polling flag after a natural loop exit
func (p *Payment) finishPolling() {
	p.mu.Lock()
	p.polling = false
	p.mu.Unlock()
}

func (p *Payment) markSettled(method api.PaymentMethod) {
	p.mu.Lock()
	if p.state == StateSettled {
		p.mu.Unlock()
		return
	}
	p.state = StateSettled
	p.method = method
	p.mu.Unlock()

	p.telemetry.RecordMetric(telemetry.MetricPaymentsSettled, 1, map[string]string{
		"method": string(method),
	})
	p.logger.Info("Payment settled", map[string]interface{}{
		"order_id": p.orderID,
		"method":   string(method),
	})
}

func (p *Payment) invalidTransition(op string) error {
	return &core.ClientError{
		Op:      "payment." + op,
		Kind:    "payment",
		OrderID: p.orderID,
		Message: "operation not allowed in state " + string(p.state),
		Err:     core.ErrInvalidPaymentState,
	}
}

// parseAmount reads a leading integer from operator input. Anything
// that does not start with digits counts as zero, matching how a till
// treats a half-typed amount.
func parseAmount(input string) int64 {
	s := strings.TrimSpace(input)
	end := 0
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	if end == 0 {
		return 0
	}
	n, err := strconv.ParseInt(s[:end], 10, 64)
	if err != nil {
		return 0
	}
	return n
}
