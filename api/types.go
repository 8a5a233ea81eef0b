// Package api implements the REST client for the POS backend.
//
// All request and response shapes mirror the backend's JSON contract,
// including its MongoDB-style "_id" identifiers. Monetary amounts are
// integer VND; the currency has no sub-unit.
package api

import "fmt"

// OrderStatus is the lifecycle status of an order as reported by the backend.
type OrderStatus string

const (
	StatusPending OrderStatus = "pending"
	StatusPaid    OrderStatus = "paid"
)

// IsTerminal returns true if the status represents a settled order.
func (s OrderStatus) IsTerminal() bool {
	return s == StatusPaid
}

// PaymentMethod identifies how an order is settled.
type PaymentMethod string

const (
	PaymentCash PaymentMethod = "cash"
	PaymentQR   PaymentMethod = "qr"
)

// Product is a sellable catalog entry.
type Product struct {
	ID          string `json:"_id"`
	Name        string `json:"name"`
	Price       int64  `json:"price"`
	ImageURL    string `json:"imageUrl"`
	Category    string `json:"category"`
	Description string `json:"description"`
}

// OrderItem is one product line inside an order submission.
type OrderItem struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
}

// CreateOrderRequest is the payload for POST /api/orders.
type CreateOrderRequest struct {
	Products      []OrderItem   `json:"products"`
	PaymentMethod PaymentMethod `json:"paymentMethod"`
}

// Order is the backend's view of a submitted order.
type Order struct {
	ID            string        `json:"_id"`
	TotalPrice    int64         `json:"totalPrice"`
	Status        OrderStatus   `json:"status"`
	PaymentMethod PaymentMethod `json:"paymentMethod,omitempty"`
	CreatedAt     string        `json:"createdAt,omitempty"`
}

// QRRequest asks the backend to generate a payment QR for an order.
type QRRequest struct {
	OrderID string `json:"orderId"`
}

// QRResponse carries the rendered QR image location.
type QRResponse struct {
	QRUrl string `json:"qrUrl"`
}

// PaymentStatusResponse is returned by the payment check and confirm
// endpoints. Settlement is signalled either by Status or by Message,
// depending on the endpoint.
type PaymentStatusResponse struct {
	Status  OrderStatus `json:"status,omitempty"`
	Message string      `json:"message,omitempty"`
}

// Settled reports whether the response indicates a completed payment.
func (r *PaymentStatusResponse) Settled() bool {
	return r.Status == StatusPaid || r.Message == "Payment confirmed successfully"
}

// ConfirmPaymentRequest is the payload for PATCH /api/orders/payment/confirm.
type ConfirmPaymentRequest struct {
	OrderID       string        `json:"orderId"`
	PaymentMethod PaymentMethod `json:"paymentMethod"`
	CashReceived  int64         `json:"cashReceived"`
	Change        int64         `json:"change"`
}

// DailySale is one bucket of the dashboard revenue series.
type DailySale struct {
	Date  string `json:"date"`
	Total int64  `json:"total"`
}

// TopProduct is a best-seller entry in the dashboard stats.
type TopProduct struct {
	ID            string `json:"_id"`
	Name          string `json:"name"`
	TotalQuantity int    `json:"totalQuantity"`
	TotalRevenue  int64  `json:"totalRevenue"`
}

// DashboardStats aggregates sales over the requested range.
type DashboardStats struct {
	TotalRevenue      int64        `json:"totalRevenue"`
	TotalOrders       int          `json:"totalOrders"`
	AverageOrderValue float64      `json:"averageOrderValue"`
	DailySales        []DailySale  `json:"dailySales"`
	TopProducts       []TopProduct `json:"topProducts"`
}

// Coordinates is an optional device location attached to a login.
type Coordinates struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// MapsURL returns a Google Maps link for the coordinates.
func (c Coordinates) MapsURL() string {
	return fmt.Sprintf("https://www.google.com/maps?q=%f,%f", c.Latitude, c.Longitude)
}

// LoginRequest is the payload for POST /api/auth/login.
// Location is omitted when the device position is unknown.
type LoginRequest struct {
	Email    string       `json:"email"`
	Password string       `json:"password"`
	Location *Coordinates `json:"location,omitempty"`
}

// LoginResponse carries the session token issued on login.
type LoginResponse struct {
	Token string `json:"token"`
}

// LoginRecord is one login event in a user's history.
type LoginRecord struct {
	Timestamp   string       `json:"timestamp"`
	LocationStr string       `json:"locationStr"`
	Location    *Coordinates `json:"location,omitempty"`
}

// UserLoginHistory groups login records per user.
type UserLoginHistory struct {
	ID           string        `json:"_id"`
	Name         string        `json:"name"`
	Email        string        `json:"email"`
	LoginHistory []LoginRecord `json:"loginHistory"`
}

// TimeRange selects the dashboard aggregation window.
type TimeRange string

const (
	RangeWeek  TimeRange = "week"
	RangeMonth TimeRange = "month"
)

// Valid reports whether the range is one the backend understands.
func (r TimeRange) Valid() bool {
	return r == RangeWeek || r == RangeMonth
}
