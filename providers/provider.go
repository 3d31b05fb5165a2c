package providers

import (
	"context"
	"net/http"
)

// Callback outcomes reported by the provider.
const (
	CallbackSucceeded = "succeeded"
	CallbackFailed    = "failed"
)

// CallbackEvent is a provider notification normalized to what the
// reconciliation engine needs. Type is empty for event kinds the engine does
// not handle; such callbacks are acknowledged and ignored.
type CallbackEvent struct {
	Type              string
	Reference         string
	ProviderPaymentID string
	Raw               []byte
}

// IntentInfo is what the caller forwards to the client to complete payment.
type IntentInfo struct {
	ProviderPaymentID string `json:"provider_payment_id"`
	ClientSecret      string `json:"client_secret,omitempty"`
}

// PaymentProvider abstracts the external payment gateway. It moves money;
// the reconciliation engine owns all order/deposit state.
type PaymentProvider interface {
	CreateIntent(ctx context.Context, amount int64, currency, reference string) (*IntentInfo, error)
	Refund(ctx context.Context, providerPaymentID string, amount int64, reason string) (string, error)
	ParseCallback(r *http.Request) (*CallbackEvent, error)
}
