// Command posterm is the cafe point-of-sale terminal. It talks to the
// POS backend: browse the menu, build an order, settle it by cash or
// QR transfer, and review revenue stats.
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/vietpos/terminal/api"
	"github.com/vietpos/terminal/auth"
	"github.com/vietpos/terminal/cart"
	"github.com/vietpos/terminal/catalog"
	"github.com/vietpos/terminal/checkout"
	"github.com/vietpos/terminal/core"
	"github.com/vietpos/terminal/dashboard"
	"github.com/vietpos/terminal/resilience"
	"github.com/vietpos/terminal/telemetry"
)

type terminal struct {
	logger   core.Logger
	client   *api.Client
	session  *auth.Session
	catalog  *catalog.Catalog
	cart     *cart.Cart
	checkout *checkout.Checkout
	board    *dashboard.Dashboard
	retry    *resilience.RetryConfig
	breaker  *resilience.CircuitBreaker

	lines   chan string
	stdout  *bufio.Writer
	current string // category filter on the menu
}

func main() {
	configPath := flag.String("config", "", "path to a JSON or YAML config file")
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger := core.NewConsoleLogger(cfg.Logging)

	provider, err := telemetry.NewProvider(cfg.Telemetry)
	if err != nil {
		log.Fatalf("Failed to initialize telemetry: %v", err)
	}

	store, err := core.NewStore(cfg.TokenStore)
	if err != nil {
		log.Fatalf("Failed to open token store: %v", err)
	}

	client := api.NewClient(cfg, api.WithLogger(logger))

	term := &terminal{
		logger:  logger,
		client:  client,
		session: auth.NewSession(client, client, store, cfg, auth.WithLogger(logger)),
		catalog: catalog.New(client, logger),
		cart:    cart.New(),
		checkout: checkout.New(client, cfg,
			checkout.WithLogger(logger),
			checkout.WithTelemetry(provider),
		),
		board:   dashboard.New(client, logger),
		retry:   resilience.FromConfig(cfg.Retry),
		breaker: resilience.NewCircuitBreaker(resilience.DefaultCircuitBreakerConfig("pos-backend")),
		lines:   make(chan string),
		stdout:  bufio.NewWriter(os.Stdout),
	}
	term.breaker.SetLogger(logger)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	go term.readStdin(ctx)

	if err := term.run(ctx); err != nil && ctx.Err() == nil {
		log.Fatalf("Terminal error: %v", err)
	}

	if err := provider.Shutdown(context.Background()); err != nil {
		logger.Warn("Telemetry shutdown failed", map[string]interface{}{
			"error": err.Error(),
		})
	}
}

func loadConfig(path string) (*core.Config, error) {
	if path != "" {
		return core.LoadFromFile(path)
	}
	return core.NewConfig()
}

// readStdin feeds operator input into the lines channel so flows can
// wait on input and background events at the same time.
func (t *terminal) readStdin(ctx context.Context) {
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		select {
		case t.lines <- scanner.Text():
		case <-ctx.Done():
			return
		}
	}
	close(t.lines)
}

func (t *terminal) printf(format string, args ...interface{}) {
	fmt.Fprintf(t.stdout, format, args...)
	t.stdout.Flush()
}

// readLine blocks for the next input line. ok is false when stdin
// closed or the context was cancelled.
func (t *terminal) readLine(ctx context.Context) (string, bool) {
	select {
	case line, ok := <-t.lines:
		return strings.TrimSpace(line), ok
	case <-ctx.Done():
		return "", false
	}
}

func (t *terminal) run(ctx context.Context) error {
	t.printf("posterm %s\n", core.Version)

	if err := t.ensureLoggedIn(ctx); err != nil {
		return err
	}

	if err := t.catalog.Load(ctx); err != nil {
		t.printf("Could not load the menu: %v\n", userMessage(err))
	}

	t.printf("Type 'help' for commands.\n")
	for {
		t.printf("> ")
		line, ok := t.readLine(ctx)
		if !ok {
			return nil
		}
		if line == "" {
			continue
		}

		fields := strings.Fields(line)
		cmd, args := fields[0], fields[1:]

		switch cmd {
		case "help":
			t.printHelp()
		case "menu", "products":
			t.showMenu(args)
		case "categories":
			t.printf("%s\n", strings.Join(t.catalog.Categories(), "  "))
		case "reload":
			// Operator asked for a refresh, so transient failures are
			// worth retrying with backoff
			err := resilience.RetryWithCircuitBreaker(ctx, t.retry, t.breaker, func() error {
				return t.catalog.Load(ctx)
			})
			if err != nil {
				t.printf("Reload failed: %v\n", userMessage(err))
			}
		case "add":
			t.addToCart(args)
		case "remove":
			t.removeFromCart(args)
		case "cart":
			t.showCart()
		case "clear":
			t.cart.Clear()
			t.printf("Cart cleared.\n")
		case "checkout":
			t.runCheckout(ctx)
		case "dashboard", "stats":
			t.showDashboard(ctx, args)
		case "history":
			t.showHistory(ctx)
		case "logout":
			if err := t.session.Logout(ctx); err != nil {
				t.printf("Logout failed: %v\n", userMessage(err))
				continue
			}
			t.printf("Logged out.\n")
			if err := t.ensureLoggedIn(ctx); err != nil {
				return err
			}
		case "quit", "exit":
			return nil
		default:
			t.printf("Unknown command %q. Type 'help'.\n", cmd)
		}
	}
}

func (t *terminal) printHelp() {
	t.printf(`Commands:
  menu [category]    show the menu, optionally filtered
  categories         list categories
  reload             reload the menu from the backend
  add <product#>     add one unit to the cart
  remove <product#>  remove one unit from the cart
  cart               show the cart
  clear              empty the cart
  checkout           submit the order and take payment
  dashboard [range]  revenue stats (week or month)
  history            login history
  logout             end the session
  quit               exit
`)
}

func (t *terminal) showMenu(args []string) {
	if len(args) > 0 {
		t.current = args[0]
	}
	products := t.catalog.Filter(t.current)
	if len(products) == 0 {
		t.printf("No products. Try 'reload' or another category.\n")
		return
	}
	for i, p := range products {
		t.printf("%3d. %-24s %12s  [%s]\n", i+1, p.Name, dashboard.FormatVND(p.Price), p.Category)
	}
}

// menuProduct resolves a 1-based menu index in the current filter
func (t *terminal) menuProduct(args []string) (api.Product, bool) {
	if len(args) == 0 {
		t.printf("Which product? Use the number from 'menu'.\n")
		return api.Product{}, false
	}
	n, err := strconv.Atoi(args[0])
	products := t.catalog.Filter(t.current)
	if err != nil || n < 1 || n > len(products) {
		t.printf("No product %q on the menu.\n", args[0])
		return api.Product{}, false
	}
	return products[n-1], true
}

func (t *terminal) addToCart(args []string) {
	p, ok := t.menuProduct(args)
	if !ok {
		return
	}
	t.cart.Add(p)
	t.printf("%s x%d in cart. Total %s\n", p.Name, t.cart.Quantity(p.ID), dashboard.FormatVND(t.cart.Total()))
}

func (t *terminal) removeFromCart(args []string) {
	p, ok := t.menuProduct(args)
	if !ok {
		return
	}
	t.cart.Remove(p.ID)
	t.printf("%s x%d in cart. Total %s\n", p.Name, t.cart.Quantity(p.ID), dashboard.FormatVND(t.cart.Total()))
}

func (t *terminal) showCart() {
	lines := t.cart.Lines()
	if len(lines) == 0 {
		t.printf("Cart is empty.\n")
		return
	}
	for _, l := range lines {
		t.printf("  %-24s %s x %d = %s\n", l.Product.Name,
			dashboard.FormatVND(l.Product.Price), l.Quantity, dashboard.FormatVND(l.Subtotal()))
	}
	t.printf("Total: %s\n", dashboard.FormatVND(t.cart.Total()))
}

func (t *terminal) ensureLoggedIn(ctx context.Context) error {
	resumed, err := t.session.Resume(ctx)
	if err != nil {
		t.logger.Warn("Session resume failed", map[string]interface{}{
			"error": err.Error(),
		})
	}
	if resumed {
		t.printf("Session restored.\n")
		return nil
	}

	for !t.session.LoggedIn() {
		t.printf("Email: ")
		email, ok := t.readLine(ctx)
		if !ok {
			return ctx.Err()
		}
		t.printf("Password: ")
		password, ok := t.readLine(ctx)
		if !ok {
			return ctx.Err()
		}

		if err := t.session.Login(ctx, email, password, nil); err != nil {
			t.printf("Login failed: %v\n", userMessage(err))
			continue
		}
		t.printf("Logged in.\n")
	}
	return nil
}

func (t *terminal) runCheckout(ctx context.Context) {
	payment, err := t.checkout.Submit(ctx, t.cart)
	if err != nil {
		t.printf("Cannot submit order: %v\n", userMessage(err))
		return
	}
	t.printf("Order %s submitted. Total %s\n", payment.OrderID(), dashboard.FormatVND(payment.Total()))

	for !payment.Settled() {
		t.printf("Payment method (cash/qr/abort): ")
		choice, ok := t.readLine(ctx)
		if !ok {
			return
		}
		switch choice {
		case "cash":
			t.runCashPayment(ctx, payment)
		case "qr":
			t.runQRPayment(ctx, payment)
		case "abort":
			t.printf("Order %s left unpaid.\n", payment.OrderID())
			return
		default:
			t.printf("Choose cash, qr or abort.\n")
		}
	}

	t.cart.Clear()
	t.offerInvoice(ctx, payment)
}

func (t *terminal) runCashPayment(ctx context.Context, payment *checkout.Payment) {
	if err := payment.SelectCash(); err != nil {
		t.printf("%v\n", userMessage(err))
		return
	}

	for {
		t.printf("Cash received (total %s, 'back' to switch): ", dashboard.FormatVND(payment.Total()))
		input, ok := t.readLine(ctx)
		if !ok || input == "back" {
			return
		}

		change, err := payment.EnterReceived(input)
		if err != nil {
			t.printf("%v\n", userMessage(err))
			return
		}
		if !payment.CanConfirm() {
			t.printf("Not enough: short by %s\n", dashboard.FormatVND(-change))
			continue
		}

		t.printf("Change due: %s. Confirm? (y/n): ", dashboard.FormatVND(change))
		answer, ok := t.readLine(ctx)
		if !ok {
			return
		}
		if answer != "y" {
			continue
		}

		if err := payment.ConfirmCash(ctx); err != nil {
			t.printf("Confirmation failed: %v\n", userMessage(err))
			continue
		}
		t.printf("Paid in cash. Change %s\n", dashboard.FormatVND(change))
		return
	}
}

func (t *terminal) runQRPayment(ctx context.Context, payment *checkout.Payment) {
	url, err := payment.SelectQR(ctx)
	if err != nil {
		t.printf("Cannot generate QR: %v\n", userMessage(err))
		return
	}
	t.printf("Show this QR to the customer: %s\n", url)

	settled := make(chan struct{})
	if err := payment.StartPolling(ctx, func() { close(settled) }); err != nil {
		t.printf("%v\n", userMessage(err))
		return
	}
	defer payment.Stop()

	t.printf("Waiting for the transfer ('check' to poll now, 'back' to switch method)\n")
	for {
		select {
		case <-settled:
			t.printf("Transfer received, order paid.\n")
			return
		case <-ctx.Done():
			return
		case line, ok := <-t.lines:
			if !ok {
				return
			}
			switch strings.TrimSpace(line) {
			case "check":
				done, err := payment.CheckNow(ctx)
				if err != nil {
					t.printf("Check failed: %v\n", userMessage(err))
					continue
				}
				if done {
					t.printf("Transfer received, order paid.\n")
					return
				}
				t.printf("Not paid yet.\n")
			case "back":
				return
			case "qr":
				// Regenerate in case the customer's app rejected the image
				if url, err = payment.SelectQR(ctx); err == nil {
					t.printf("New QR: %s\n", url)
				}
			}
		}
	}
}

func (t *terminal) offerInvoice(ctx context.Context, payment *checkout.Payment) {
	t.printf("Print invoice? (y/n): ")
	answer, ok := t.readLine(ctx)
	if ok && answer == "y" {
		t.printf("Invoice: %s\n", payment.InvoiceURL())
	}
}

func (t *terminal) showDashboard(ctx context.Context, args []string) {
	rng := api.RangeWeek
	if len(args) > 0 {
		rng = api.TimeRange(args[0])
	}

	var report *dashboard.Report
	err := resilience.RetryWithCircuitBreaker(ctx, t.retry, t.breaker, func() error {
		var ferr error
		report, ferr = t.board.Fetch(ctx, rng)
		return ferr
	})
	if err != nil {
		t.printf("Cannot load stats: %v\n", userMessage(err))
		return
	}

	stats := report.Stats
	t.printf("Revenue (%s): %s over %d orders, average %s\n",
		rng, dashboard.FormatVND(stats.TotalRevenue), stats.TotalOrders,
		dashboard.FormatVND(int64(stats.AverageOrderValue)))

	series := report.ChartSeries()
	for i, label := range series.Labels {
		t.printf("  %s  %s\n", label, dashboard.FormatVND(series.Values[i]))
	}
	if len(stats.TopProducts) > 0 {
		t.printf("Top products:\n")
		for _, p := range stats.TopProducts {
			t.printf("  %-24s x%-4d %s\n", p.Name, p.TotalQuantity, dashboard.FormatVND(p.TotalRevenue))
		}
	}
}

func (t *terminal) showHistory(ctx context.Context) {
	history, err := t.session.History(ctx)
	if err != nil {
		t.printf("Cannot load login history: %v\n", userMessage(err))
		return
	}
	for _, user := range history {
		t.printf("%s <%s>\n", user.Name, user.Email)
		for _, rec := range user.LoginHistory {
			t.printf("  %s  %s\n", rec.Timestamp, auth.LocationLabel(rec))
		}
	}
}

// userMessage prefers the operator-facing message on structured errors
func userMessage(err error) string {
	var ce *core.ClientError
	if errors.As(err, &ce) {
		return ce.UserMessage()
	}
	return err.Error()
}
