// Package payments wraps the Stripe client so services depend on a narrow
// interface instead of the SDK.
package payments

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
	"github.com/stripe/stripe-go/v76/webhook"
)

// Stripe event types the reconciler cares about.
const (
	EventPaymentSucceeded = "payment_intent.succeeded"
	EventPaymentFailed    = "payment_intent.payment_failed"
)

// Intent is the subset of a payment intent the service needs.
type Intent struct {
	ID           string
	ClientSecret string
	Amount       int64
}

// Event is a verified webhook event with order identity recovered from the
// intent metadata.
type Event struct {
	ID       string
	Type     string
	IntentID string
	Metadata map[string]string
}

// Gateway is the payment processor boundary.
type Gateway interface {
	// CreateIntent creates a payment intent for the given amount in minor
	// currency units, embedding metadata for webhook reconciliation.
	CreateIntent(ctx context.Context, amount int64, metadata map[string]string) (*Intent, error)
	// VerifyEvent checks the signature over the raw payload and parses the
	// event. The payload must be the exact bytes received on the wire.
	VerifyEvent(payload []byte, signatureHeader string) (*Event, error)
}

type stripeGateway struct {
	api           *client.API
	webhookSecret string
}

// NewStripeGateway builds a Gateway backed by the Stripe API.
func NewStripeGateway(secretKey, webhookSecret string) Gateway {
	api := &client.API{}
	api.Init(secretKey, nil)
	return &stripeGateway{api: api, webhookSecret: webhookSecret}
}

func (g *stripeGateway) CreateIntent(ctx context.Context, amount int64, metadata map[string]string) (*Intent, error) {
	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(amount),
		Currency: stripe.String(string(stripe.CurrencyCOP)),
	}
	params.Context = ctx
	for k, v := range metadata {
		params.AddMetadata(k, v)
	}

	pi, err := g.api.PaymentIntents.New(params)
	if err != nil {
		return nil, fmt.Errorf("failed to create payment intent: %w", err)
	}

	return &Intent{
		ID:           pi.ID,
		ClientSecret: pi.ClientSecret,
		Amount:       pi.Amount,
	}, nil
}

func (g *stripeGateway) VerifyEvent(payload []byte, signatureHeader string) (*Event, error) {
	stripeEvent, err := webhook.ConstructEvent(payload, signatureHeader, g.webhookSecret)
	if err != nil {
		return nil, fmt.Errorf("webhook signature verification failed: %w", err)
	}

	event := &Event{
		ID:       stripeEvent.ID,
		Type:     string(stripeEvent.Type),
		Metadata: map[string]string{},
	}

	// Intent metadata carries orderId/orderNumber/userId; other event types
	// may not have a payment intent payload at all, which is fine.
	var pi stripe.PaymentIntent
	if err := json.Unmarshal(stripeEvent.Data.Raw, &pi); err == nil {
		event.IntentID = pi.ID
		if pi.Metadata != nil {
			event.Metadata = pi.Metadata
		}
	}

	return event, nil
}
