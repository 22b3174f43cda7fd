package payment

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stripe/stripe-go/v74"

	"myride/internal/types"
)

func TestHTTPGateway_CreateCheckout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/payment/create-checkout-session" {
			t.Errorf("%s %s", r.Method, r.URL.Path)
		}
		var body checkoutBody
		json.NewDecoder(r.Body).Decode(&body)
		if body.Service != "MyRide Taxi (4-Seater)" || body.Amount != 59850 || body.Currency != "inr" {
			t.Errorf("body = %+v", body)
		}
		w.Write([]byte(`{"id":"cs_test_123"}`))
	}))
	defer srv.Close()

	g := NewHTTPGateway(srv.URL+"/api", time.Second)
	h, err := g.CreateCheckout(context.Background(), Request{
		Service: "MyRide Taxi (4-Seater)",
		Amount:  types.FromMajor(598.5, "inr"),
	})
	if err != nil {
		t.Fatalf("CreateCheckout: %v", err)
	}
	if h.SessionID != "cs_test_123" || h.URL != "" {
		t.Fatalf("handoff = %+v", h)
	}
}

func TestHTTPGateway_RejectedVerbatim(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":"Amount must be at least ₹50.00 inr"}`))
	}))
	defer srv.Close()

	_, err := NewHTTPGateway(srv.URL, time.Second).CreateCheckout(context.Background(), Request{
		Service: "MyRide Bike",
		Amount:  types.FromMajor(40, "inr"),
	})
	var rej *RejectedError
	if !errors.As(err, &rej) || rej.Message != "Amount must be at least ₹50.00 inr" {
		t.Fatalf("err = %v", err)
	}
}

func TestRequestValidate(t *testing.T) {
	g := NewHTTPGateway("http://unused", time.Second)
	if _, err := g.CreateCheckout(context.Background(), Request{Amount: types.FromMajor(10, "")}); !errors.Is(err, ErrInvalidRequest) {
		t.Errorf("missing service err = %v", err)
	}
	if _, err := g.CreateCheckout(context.Background(), Request{Service: "x"}); !errors.Is(err, ErrInvalidRequest) {
		t.Errorf("zero amount err = %v", err)
	}
}

func newStripeBackend(url string) stripe.Backend {
	return stripe.GetBackendWithConfig(stripe.APIBackend, &stripe.BackendConfig{
		URL:               stripe.String(url),
		MaxNetworkRetries: stripe.Int64(0),
		LeveledLogger:     &stripe.LeveledLogger{Level: stripe.LevelNull},
	})
}

func TestStripeGateway_CreateCheckout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/checkout/sessions" {
			t.Errorf("path = %s", r.URL.Path)
		}
		r.ParseForm()
		if r.Form.Get("line_items[0][price_data][unit_amount]") != "68113" ||
			r.Form.Get("line_items[0][price_data][currency]") != "inr" ||
			r.Form.Get("mode") != "payment" {
			t.Errorf("form = %v", r.Form)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":"cs_test_abc","object":"checkout.session","url":"https://checkout.stripe.com/c/pay/cs_test_abc"}`))
	}))
	defer srv.Close()

	g := NewStripeGateway("sk_test_x", "http://localhost/success", "http://localhost/cancel", newStripeBackend(srv.URL))
	h, err := g.CreateCheckout(context.Background(), Request{
		Service: "MyRide Taxi (4-Seater)",
		Amount:  types.Money{Amount: 68113, Currency: "inr"},
	})
	if err != nil {
		t.Fatalf("CreateCheckout: %v", err)
	}
	if h.SessionID != "cs_test_abc" || h.URL == "" {
		t.Fatalf("handoff = %+v", h)
	}
}

func TestStripeGateway_Rejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":{"type":"invalid_request_error","message":"Invalid currency: xyz"}}`))
	}))
	defer srv.Close()

	g := NewStripeGateway("sk_test_x", "s", "c", newStripeBackend(srv.URL))
	_, err := g.CreateCheckout(context.Background(), Request{Service: "x", Amount: types.Money{Amount: 100, Currency: "xyz"}})
	var rej *RejectedError
	if !errors.As(err, &rej) || rej.Message != "Invalid currency: xyz" {
		t.Fatalf("err = %v", err)
	}
}
