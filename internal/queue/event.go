// Package queue defines the domain events exchanged over RabbitMQ together
// with their publisher and the background consumer.
package queue

const (
	BookingConfirmedQueue = "booking.confirmed"
	RefundRequestedQueue  = "payment.refund_requested"
	PasswordResetQueue    = "password.reset_requested"
)

// BookingConfirmedEvent is published once a booking has been committed. It
// carries enough for downstream consumers to log or notify without querying
// the primary database.
type BookingConfirmedEvent struct {
	BookingID   string `json:"booking_id"`
	UserID      string `json:"user_id"`
	UserName    string `json:"user_name"`
	UserSurname string `json:"user_surname"`
	BeachID     string `json:"beach_id"`
	BeachName   string `json:"beach_name"`
	Row         string `json:"row"`
	Index       int    `json:"index"`
	Date        string `json:"date"`
	Chairs      int    `json:"chairs"`
	Price       int    `json:"price"`
	PaymentRef  string `json:"payment_ref,omitempty"`
	ConfirmedAt string `json:"confirmed_at"`
}

// RefundRequestedEvent is published when a captured payment could not be
// turned into a booking.
type RefundRequestedEvent struct {
	RefundID    string `json:"refund_id"`
	Provider    string `json:"provider"`
	ExternalID  string `json:"external_id"`
	UserID      string `json:"user_id"`
	AmountMinor int64  `json:"amount_minor"`
	Reason      string `json:"reason"`
	RequestedAt string `json:"requested_at"`
}

// PasswordResetRequestedEvent hands a freshly issued reset token to the
// delivery side. The token never appears in an HTTP response.
type PasswordResetRequestedEvent struct {
	UserID      string `json:"user_id"`
	Email       string `json:"email"`
	Token       string `json:"token"`
	ExpiresAt   string `json:"expires_at"`
	RequestedAt string `json:"requested_at"`
}
