// Package payment talks to the external payment providers: Stripe for cards
// and PayPal for wallet payments. Both adapters turn every transport or
// provider failure into an apperr PaymentGateway error carrying the provider
// message; nothing here ever reports success by default.
package payment

import (
	"context"
	"encoding/json"
)

const (
	// CardSucceeded is the payment intent status that allows booking.
	CardSucceeded = "succeeded"
	// WalletCompleted is the order status that allows booking.
	WalletCompleted = "COMPLETED"
)

// Intent is a card payment intent.
type Intent struct {
	ID           string `json:"id"`
	ClientSecret string `json:"clientSecret"`
	Amount       int64  `json:"amount"`
	Currency     string `json:"currency"`
	Status       string `json:"status"`
}

// Order is a wallet order awaiting buyer approval.
type Order struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Links  []Link `json:"links,omitempty"`
}

type Link struct {
	Href   string `json:"href"`
	Rel    string `json:"rel"`
	Method string `json:"method,omitempty"`
}

// Capture is the outcome of capturing an approved wallet order.
type Capture struct {
	ID     string          `json:"id"`
	Status string          `json:"status"`
	Raw    json.RawMessage `json:"raw,omitempty"`
}

// CardGateway is the card provider: create, reprice and query an intent.
type CardGateway interface {
	CreateIntent(ctx context.Context, amountMinor int64, currency string) (Intent, error)
	UpdateIntent(ctx context.Context, id string, amountMinor int64) (Intent, error)
	IntentStatus(ctx context.Context, id string) (string, error)
}

// WalletGateway is the wallet provider: create and capture an order.
type WalletGateway interface {
	CreateOrder(ctx context.Context, amountMinor int64, currency string) (Order, error)
	CaptureOrder(ctx context.Context, id string) (Capture, error)
}
