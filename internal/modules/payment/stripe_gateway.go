package payment

import (
	"context"
	"errors"
	"fmt"

	"github.com/stripe/stripe-go/v74"
	"github.com/stripe/stripe-go/v74/checkout/session"

	"myride/internal/observability"
)

// StripeGateway creates Stripe Checkout sessions directly.
type StripeGateway struct {
	client     session.Client
	successURL string
	cancelURL  string
}

// NewStripeGateway builds a gateway for apiKey. A nil backend uses the live API.
func NewStripeGateway(apiKey, successURL, cancelURL string, backend stripe.Backend) *StripeGateway {
	if backend == nil {
		backend = stripe.GetBackend(stripe.APIBackend)
	}
	return &StripeGateway{
		client:     session.Client{B: backend, Key: apiKey},
		successURL: successURL,
		cancelURL:  cancelURL,
	}
}

func (g *StripeGateway) CreateCheckout(ctx context.Context, req Request) (Handoff, error) {
	if err := req.Validate(); err != nil {
		return Handoff{}, err
	}
	params := &stripe.CheckoutSessionParams{
		Mode:       stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL: stripe.String(g.successURL),
		CancelURL:  stripe.String(g.cancelURL),
		LineItems: []*stripe.CheckoutSessionLineItemParams{{
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency: stripe.String(req.Amount.Currency),
				ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
					Name: stripe.String(req.Service),
				},
				UnitAmount: stripe.Int64(req.Amount.Amount),
			},
			Quantity: stripe.Int64(1),
		}},
	}
	params.Context = ctx

	s, err := g.client.New(params)
	if err != nil {
		var se *stripe.Error
		if errors.As(err, &se) {
			observability.PaymentHandoffs.WithLabelValues("rejected").Inc()
			return Handoff{}, &RejectedError{Provider: "stripe", Message: se.Msg}
		}
		observability.PaymentHandoffs.WithLabelValues("error").Inc()
		return Handoff{}, fmt.Errorf("stripe checkout: %w", err)
	}
	observability.PaymentHandoffs.WithLabelValues("ok").Inc()
	return Handoff{URL: s.URL, SessionID: s.ID}, nil
}
