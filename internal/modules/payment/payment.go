// README: Payment hand-off: creates a hosted checkout session for the chosen offer.
package payment

import (
	"context"
	"errors"
	"fmt"

	"myride/internal/types"
)

var ErrInvalidRequest = errors.New("invalid payment request")

// Request describes what the rider is paying for. Amount is in minor units.
type Request struct {
	Service string      `json:"service"`
	Amount  types.Money `json:"amount"`
}

func (r Request) Validate() error {
	if r.Service == "" {
		return fmt.Errorf("%w: service is required", ErrInvalidRequest)
	}
	if r.Amount.Amount <= 0 {
		return fmt.Errorf("%w: amount must be positive", ErrInvalidRequest)
	}
	return nil
}

// Handoff tells the client where to continue. URL is empty when the gateway
// only returned a session id.
type Handoff struct {
	URL       string `json:"url,omitempty"`
	SessionID string `json:"session_id,omitempty"`
}

// RejectedError is a refusal from the payment provider. Message is shown to the
// rider as-is.
type RejectedError struct {
	Provider string
	Message  string
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("%s rejected checkout: %s", e.Provider, e.Message)
}

// Gateway creates checkout sessions.
type Gateway interface {
	CreateCheckout(ctx context.Context, req Request) (Handoff, error)
}
