package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/stripe/stripe-go/v80"
	"github.com/stripe/stripe-go/v80/paymentintent"
	"github.com/stripe/stripe-go/v80/refund"
	"github.com/stripe/stripe-go/v80/webhook"
)

// StripeProvider implements PaymentProvider on Stripe PaymentIntents.
type StripeProvider struct {
	webhookSecret string
}

func NewStripeProvider(secretKey, webhookSecret string) *StripeProvider {
	stripe.Key = secretKey
	return &StripeProvider{webhookSecret: webhookSecret}
}

// CreateIntent creates a PaymentIntent carrying our reference both as
// metadata (read back from callbacks) and as the idempotency key, so a
// retried call cannot create a second charge.
func (p *StripeProvider) CreateIntent(ctx context.Context, amount int64, currency, reference string) (*IntentInfo, error) {
	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(amount),
		Currency: stripe.String(currency),
	}
	params.Context = ctx
	params.AddMetadata("reference", reference)
	params.SetIdempotencyKey(reference)

	pi, err := paymentintent.New(params)
	if err != nil {
		return nil, err
	}
	return &IntentInfo{
		ProviderPaymentID: pi.ID,
		ClientSecret:      pi.ClientSecret,
	}, nil
}

// Refund reverses a charge keyed by the original PaymentIntent id.
func (p *StripeProvider) Refund(ctx context.Context, providerPaymentID string, amount int64, reason string) (string, error) {
	params := &stripe.RefundParams{
		PaymentIntent: stripe.String(providerPaymentID),
		Amount:        stripe.Int64(amount),
	}
	params.Context = ctx
	params.AddMetadata("reason", reason)

	r, err := refund.New(params)
	if err != nil {
		return "", err
	}
	return r.ID, nil
}

// ParseCallback verifies the webhook signature and normalizes the event.
func (p *StripeProvider) ParseCallback(r *http.Request) (*CallbackEvent, error) {
	payload, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, err
	}
	r.Body = io.NopCloser(bytes.NewBuffer(payload))

	event, err := webhook.ConstructEvent(payload, r.Header.Get("Stripe-Signature"), p.webhookSecret)
	if err != nil {
		return nil, err
	}

	evt := &CallbackEvent{Raw: payload}
	switch event.Type {
	case "payment_intent.succeeded":
		evt.Type = CallbackSucceeded
	case "payment_intent.payment_failed":
		evt.Type = CallbackFailed
	default:
		// Acknowledged but not processed.
		return evt, nil
	}

	var pi stripe.PaymentIntent
	if err := json.Unmarshal(event.Data.Raw, &pi); err != nil {
		return nil, err
	}
	evt.ProviderPaymentID = pi.ID
	evt.Reference = pi.Metadata["reference"]
	return evt, nil
}
