package model

import "time"

const (
	ProviderStripe = "stripe"
	ProviderPayPal = "paypal"
)

// PendingPayment is the checkout attempt parked in a session between quoting
// and capture. It is consumed exactly once.
type PendingPayment struct {
	Provider    string    `json:"provider"`
	ExternalID  string    `json:"externalId"`
	AmountMinor int64     `json:"amountMinor"`
	Draft       *Draft    `json:"draft,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}

const (
	RefundPending = "PENDING"
)

// RefundRequest records a captured payment that could not be turned into a
// booking and must be paid back.
type RefundRequest struct {
	ID          string
	Provider    string
	ExternalID  string
	UserID      string
	AmountMinor int64
	Reason      string
	Status      string
	CreatedAt   time.Time
}
