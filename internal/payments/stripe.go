// Package payments adapts Stripe Checkout to the Stardust purchase flow.
package payments

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"glxy/internal/domain"

	"github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/checkout/session"
	"github.com/stripe/stripe-go/v79/webhook"
)

const (
	// SignatureTolerance is how old a signed delivery may be
	SignatureTolerance = 5 * time.Minute

	checkoutObject = "checkout.session"
)

var ErrNotConfigured = fmt.Errorf("stripe: %w", domain.ErrProviderNotConfigured)

// Verifier checks the stripe-signature header of webhook deliveries
type Verifier struct {
	secret    string
	tolerance time.Duration
}

func NewVerifier(secret string) *Verifier {
	return &Verifier{secret: secret, tolerance: SignatureTolerance}
}

// Verify authenticates payload and reduces it to a CheckoutEvent. Events
// that do not carry a checkout session come back with an empty SessionID.
func (v *Verifier) Verify(payload []byte, signature string) (*domain.CheckoutEvent, error) {
	if v.secret == "" {
		return nil, ErrNotConfigured
	}
	event, err := webhook.ConstructEventWithOptions(payload, signature, v.secret, webhook.ConstructEventOptions{
		Tolerance:                v.tolerance,
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return nil, err
	}

	out := &domain.CheckoutEvent{ID: event.ID, Type: string(event.Type)}
	if event.Data == nil || len(event.Data.Raw) == 0 {
		return out, nil
	}
	if obj, _ := event.Data.Object["object"].(string); obj != checkoutObject {
		return out, nil
	}

	var cs stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &cs); err != nil {
		return nil, fmt.Errorf("decode checkout session: %w", err)
	}
	out.SessionID = cs.ID
	out.PaymentStatus = string(cs.PaymentStatus)
	out.Metadata = cs.Metadata
	return out, nil
}

// Checkout creates hosted checkout sessions for Stardust packs
type Checkout struct {
	client     session.Client
	successURL string
	cancelURL  string
}

// NewCheckout uses the default Stripe backend unless one is given
func NewCheckout(secretKey, successURL, cancelURL string, backend stripe.Backend) *Checkout {
	if backend == nil {
		backend = stripe.GetBackend(stripe.APIBackend)
	}
	return &Checkout{
		client:     session.Client{B: backend, Key: secretKey},
		successURL: successURL,
		cancelURL:  cancelURL,
	}
}

func (c *Checkout) CreateSession(ctx context.Context, req domain.CheckoutRequest) (*domain.CheckoutSession, error) {
	if c.client.Key == "" {
		return nil, ErrNotConfigured
	}
	params := &stripe.CheckoutSessionParams{
		Mode:               stripe.String(string(stripe.CheckoutSessionModePayment)),
		PaymentMethodTypes: stripe.StringSlice([]string{"card"}),
		ClientReferenceID:  stripe.String(req.UserID),
		SuccessURL:         stripe.String(c.successURL),
		CancelURL:          stripe.String(c.cancelURL),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency: stripe.String(string(stripe.CurrencyUSD)),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name:        stripe.String(fmt.Sprintf("%d Stardust", req.Stardust)),
						Description: stripe.String("Stardust for GLXY planets"),
					},
					UnitAmount: stripe.Int64(req.AmountUSD * 100),
				},
				Quantity: stripe.Int64(1),
			},
		},
	}
	params.Context = ctx
	params.AddMetadata("userId", req.UserID)
	params.AddMetadata("stardustAmount", strconv.FormatInt(req.Stardust, 10))

	cs, err := c.client.New(params)
	if err != nil {
		return nil, fmt.Errorf("create checkout session: %w", err)
	}
	return &domain.CheckoutSession{SessionID: cs.ID, URL: cs.URL, Stardust: req.Stardust}, nil
}
