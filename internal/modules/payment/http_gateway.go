package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"myride/internal/observability"
)

// HTTPGateway posts to the backend's checkout-session endpoint.
type HTTPGateway struct {
	baseURL    string
	httpClient *http.Client
}

func NewHTTPGateway(baseURL string, timeout time.Duration) *HTTPGateway {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPGateway{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

type checkoutBody struct {
	Service  string `json:"service"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
}

type checkoutReply struct {
	URL     string `json:"url"`
	ID      string `json:"id"`
	Error   string `json:"error"`
	Message string `json:"message"`
}

func (g *HTTPGateway) CreateCheckout(ctx context.Context, req Request) (Handoff, error) {
	if err := req.Validate(); err != nil {
		return Handoff{}, err
	}
	b, err := json.Marshal(checkoutBody{
		Service:  req.Service,
		Amount:   req.Amount.Amount,
		Currency: req.Amount.Currency,
	})
	if err != nil {
		return Handoff{}, err
	}
	hreq, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/payment/create-checkout-session", bytes.NewReader(b))
	if err != nil {
		return Handoff{}, err
	}
	hreq.Header.Set("Content-Type", "application/json")

	resp, err := g.httpClient.Do(hreq)
	if err != nil {
		observability.PaymentHandoffs.WithLabelValues("error").Inc()
		return Handoff{}, fmt.Errorf("payment gateway: %w", err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return Handoff{}, fmt.Errorf("payment gateway: %w", err)
	}

	var reply checkoutReply
	decodeErr := json.Unmarshal(raw, &reply)
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		observability.PaymentHandoffs.WithLabelValues("rejected").Inc()
		msg := reply.Error
		if msg == "" {
			msg = reply.Message
		}
		if msg == "" {
			msg = strings.TrimSpace(string(raw))
		}
		if msg == "" {
			msg = resp.Status
		}
		return Handoff{}, &RejectedError{Provider: "payment backend", Message: msg}
	}
	if decodeErr != nil {
		observability.PaymentHandoffs.WithLabelValues("error").Inc()
		return Handoff{}, fmt.Errorf("payment gateway: decode: %w", decodeErr)
	}
	if reply.URL == "" && reply.ID == "" {
		observability.PaymentHandoffs.WithLabelValues("error").Inc()
		return Handoff{}, fmt.Errorf("payment gateway: reply has neither url nor id")
	}
	observability.PaymentHandoffs.WithLabelValues("ok").Inc()
	return Handoff{URL: reply.URL, SessionID: reply.ID}, nil
}
