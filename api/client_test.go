package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vietpos/terminal/core"
)

func testClient(t *testing.T, handler http.Handler) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	cfg := core.DefaultConfig()
	cfg.Backend.BaseURL = srv.URL
	return NewClient(cfg), srv
}

func TestListProducts(t *testing.T) {
	client, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/api/products", r.URL.Path)
		json.NewEncoder(w).Encode([]Product{
			{ID: "p1", Name: "Ca phe sua", Price: 25000, Category: "drinks"},
			{ID: "p2", Name: "Banh mi", Price: 30000, Category: "food"},
		})
	}))

	products, err := client.ListProducts(context.Background())
	require.NoError(t, err)
	require.Len(t, products, 2)
	assert.Equal(t, "p1", products[0].ID)
	assert.Equal(t, int64(25000), products[0].Price)
}

func TestCreateOrder(t *testing.T) {
	client, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/orders", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.NotEmpty(t, r.Header.Get("X-Request-ID"))

		var req CreateOrderRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Len(t, req.Products, 1)
		assert.Equal(t, "p1", req.Products[0].ProductID)
		assert.Equal(t, 2, req.Products[0].Quantity)
		assert.Equal(t, PaymentQR, req.PaymentMethod)

		json.NewEncoder(w).Encode(Order{ID: "ord-1", TotalPrice: 50000, Status: StatusPending})
	}))

	order, err := client.CreateOrder(context.Background(), CreateOrderRequest{
		Products:      []OrderItem{{ProductID: "p1", Quantity: 2}},
		PaymentMethod: PaymentQR,
	})
	require.NoError(t, err)
	assert.Equal(t, "ord-1", order.ID)
	assert.Equal(t, int64(50000), order.TotalPrice)
}

func TestCreateOrderMissingID(t *testing.T) {
	client, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{"totalPrice": 50000})
	}))

	_, err := client.CreateOrder(context.Background(), CreateOrderRequest{
		Products:      []OrderItem{{ProductID: "p1", Quantity: 1}},
		PaymentMethod: PaymentQR,
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrMissingOrderID)
}

func TestBackendErrorMessageSurfaced(t *testing.T) {
	client, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]string{"message": "product out of stock"})
	}))

	_, err := client.CreateOrder(context.Background(), CreateOrderRequest{
		Products:      []OrderItem{{ProductID: "p1", Quantity: 1}},
		PaymentMethod: PaymentQR,
	})
	require.Error(t, err)

	var ce *core.ClientError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "product out of stock", ce.UserMessage())
}

func TestBearerTokenAttached(t *testing.T) {
	var gotAuth string
	client, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		json.NewEncoder(w).Encode([]Product{})
	}))

	_, err := client.ListProducts(context.Background())
	require.NoError(t, err)
	assert.Empty(t, gotAuth)

	client.SetToken("jwt-123")
	_, err = client.ListProducts(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Bearer jwt-123", gotAuth)

	client.ClearToken()
	_, err = client.ListProducts(context.Background())
	require.NoError(t, err)
	assert.Empty(t, gotAuth)
}

func TestUnauthorizedMapsToAuthError(t *testing.T) {
	client, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		json.NewEncoder(w).Encode(map[string]string{"message": "token expired"})
	}))

	_, err := client.LoginHistory(context.Background())
	require.Error(t, err)
	assert.True(t, core.IsAuthError(err))
}

func TestOrderNotFound(t *testing.T) {
	client, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))

	_, err := client.GetOrder(context.Background(), "missing")
	require.Error(t, err)
	assert.True(t, core.IsNotFound(err))
}

func TestRequestQR(t *testing.T) {
	client, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/orders/payment/qr", r.URL.Path)

		var req QRRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "ord-1", req.OrderID)

		json.NewEncoder(w).Encode(QRResponse{QRUrl: "https://img.vietqr.io/ord-1.png"})
	}))

	qr, err := client.RequestQR(context.Background(), "ord-1")
	require.NoError(t, err)
	assert.Equal(t, "https://img.vietqr.io/ord-1.png", qr.QRUrl)
}

func TestCheckPayment(t *testing.T) {
	client, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/orders/payment/check-casso", r.URL.Path)
		json.NewEncoder(w).Encode(PaymentStatusResponse{Status: StatusPaid})
	}))

	status, err := client.CheckPayment(context.Background(), "ord-1")
	require.NoError(t, err)
	assert.True(t, status.Settled())
}

func TestConfirmPayment(t *testing.T) {
	client, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPatch, r.Method)
		assert.Equal(t, "/api/orders/payment/confirm", r.URL.Path)

		var req ConfirmPaymentRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, PaymentCash, req.PaymentMethod)
		assert.Equal(t, int64(150000), req.CashReceived)
		assert.Equal(t, int64(20000), req.Change)

		// Some backend versions answer with a message instead of a status
		json.NewEncoder(w).Encode(PaymentStatusResponse{Message: "Payment confirmed successfully"})
	}))

	status, err := client.ConfirmPayment(context.Background(), ConfirmPaymentRequest{
		OrderID:       "ord-1",
		PaymentMethod: PaymentCash,
		CashReceived:  150000,
		Change:        20000,
	})
	require.NoError(t, err)
	assert.True(t, status.Settled())
}

func TestPaymentStatusSettled(t *testing.T) {
	assert.True(t, (&PaymentStatusResponse{Status: StatusPaid}).Settled())
	assert.True(t, (&PaymentStatusResponse{Message: "Payment confirmed successfully"}).Settled())
	assert.False(t, (&PaymentStatusResponse{Status: StatusPending}).Settled())
	assert.False(t, (&PaymentStatusResponse{}).Settled())
}

func TestDashboardStats(t *testing.T) {
	client, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/orders/stats/dashboard", r.URL.Path)
		assert.Equal(t, "month", r.URL.Query().Get("range"))
		json.NewEncoder(w).Encode(DashboardStats{
			TotalRevenue: 1250000,
			TotalOrders:  42,
			DailySales:   []DailySale{{Date: "2026-08-01", Total: 400000}},
			TopProducts:  []TopProduct{{ID: "p1", Name: "Ca phe sua", TotalQuantity: 30, TotalRevenue: 750000}},
		})
	}))

	stats, err := client.DashboardStats(context.Background(), RangeMonth)
	require.NoError(t, err)
	assert.Equal(t, int64(1250000), stats.TotalRevenue)
	assert.Equal(t, 42, stats.TotalOrders)
	require.Len(t, stats.TopProducts, 1)
	assert.Equal(t, 30, stats.TopProducts[0].TotalQuantity)
}

func TestDashboardStatsRejectsUnknownRange(t *testing.T) {
	called := false
	client, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))

	_, err := client.DashboardStats(context.Background(), TimeRange("year"))
	require.Error(t, err)
	assert.False(t, called, "invalid range must not hit the backend")
}

func TestLogin(t *testing.T) {
	client, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/auth/login", r.URL.Path)

		var req LoginRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "staff@pos.vn", req.Email)
		require.NotNil(t, req.Location)
		assert.InDelta(t, 10.762622, req.Location.Latitude, 1e-9)

		json.NewEncoder(w).Encode(LoginResponse{Token: "jwt-abc"})
	}))

	out, err := client.Login(context.Background(), LoginRequest{
		Email:    "staff@pos.vn",
		Password: "secret",
		Location: &Coordinates{Latitude: 10.762622, Longitude: 106.660172},
	})
	require.NoError(t, err)
	assert.Equal(t, "jwt-abc", out.Token)
}

func TestLoginOmitsLocationWhenUnknown(t *testing.T) {
	client, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var raw map[string]json.RawMessage
		require.NoError(t, json.NewDecoder(r.Body).Decode(&raw))
		_, hasLocation := raw["location"]
		assert.False(t, hasLocation)
		json.NewEncoder(w).Encode(LoginResponse{Token: "jwt-abc"})
	}))

	_, err := client.Login(context.Background(), LoginRequest{Email: "a@b.c", Password: "p"})
	require.NoError(t, err)
}

func TestLoginWithoutToken(t *testing.T) {
	client, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{})
	}))

	_, err := client.Login(context.Background(), LoginRequest{Email: "a@b.c", Password: "p"})
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrInvalidCredentials)
}

func TestLoginHistory(t *testing.T) {
	client, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/auth/login-history", r.URL.Path)
		json.NewEncoder(w).Encode([]UserLoginHistory{
			{
				ID:    "u1",
				Name:  "Nguyen Van A",
				Email: "a@pos.vn",
				LoginHistory: []LoginRecord{
					{Timestamp: "2026-08-28T09:00:00Z", LocationStr: "Ho Chi Minh City"},
					{Timestamp: "2026-08-29T09:00:00Z", LocationStr: "Unknown", Location: &Coordinates{Latitude: 1, Longitude: 2}},
				},
			},
		})
	}))

	history, err := client.LoginHistory(context.Background())
	require.NoError(t, err)
	require.Len(t, history, 1)
	require.Len(t, history[0].LoginHistory, 2)
	assert.Nil(t, history[0].LoginHistory[0].Location)
	require.NotNil(t, history[0].LoginHistory[1].Location)
}

func TestInvoiceURL(t *testing.T) {
	cfg := core.DefaultConfig()
	cfg.Backend.BaseURL = "https://pos.example.com/"
	client := NewClient(cfg)

	assert.Equal(t, "https://pos.example.com/api/orders/ord-1/invoice", client.InvoiceURL("ord-1"))
}

func TestConnectionFailure(t *testing.T) {
	cfg := core.DefaultConfig()
	cfg.Backend.BaseURL = "http://127.0.0.1:1"
	client := NewClient(cfg)

	_, err := client.ListProducts(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrConnectionFailed)
	assert.True(t, core.IsRetryable(err))
}
