// Package apperr defines the domain error vocabulary shared by every layer.
// An *Error carries a Kind (the family it belongs to) and a stable Code that
// clients can switch on. Two errors match under errors.Is when their codes
// are equal, so wrapped sentinels still compare against the package values.
package apperr

import (
	"errors"
	"fmt"
)

type Kind string

const (
	KindValidation      Kind = "validation"
	KindAuth            Kind = "auth"
	KindCredential      Kind = "credential"
	KindBookingConflict Kind = "booking_conflict"
	KindToken           Kind = "token"
	KindPaymentGateway  Kind = "payment_gateway"
	KindInternal        Kind = "internal"
)

type Error struct {
	Kind    Kind
	Code    string
	Message string
	// Detail is an optional machine readable payload returned to clients.
	Detail map[string]any
	Err    error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return e.Code + ": " + e.Message
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

// With returns a copy of e that wraps cause.
func (e *Error) With(cause error) *Error {
	cp := *e
	cp.Err = cause
	return &cp
}

// WithDetail returns a copy of e carrying an extra detail entry.
func (e *Error) WithDetail(key string, value any) *Error {
	cp := *e
	cp.Detail = make(map[string]any, len(e.Detail)+1)
	for k, v := range e.Detail {
		cp.Detail[k] = v
	}
	cp.Detail[key] = value
	return &cp
}

func New(kind Kind, code, msg string) *Error {
	return &Error{Kind: kind, Code: code, Message: msg}
}

// Validation builds a validation error with a specific message.
func Validation(msg string) *Error {
	return &Error{Kind: KindValidation, Code: CodeValidation, Message: msg}
}

// Gateway wraps a payment provider failure.
func Gateway(provider, msg string, cause error) *Error {
	return &Error{
		Kind:    KindPaymentGateway,
		Code:    CodePaymentGateway,
		Message: provider + ": " + msg,
		Err:     cause,
	}
}

// From extracts the *Error in err's chain. ok is false for foreign errors.
func From(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

const (
	CodeValidation         = "ValidationError"
	CodePaymentGateway     = "PaymentGatewayError"
	CodeInternal           = "InternalError"
	CodeChargedButUnbooked = "ChargedButUnbooked"
)

var (
	ErrNotLoggedIn     = New(KindAuth, "NotLoggedIn", "user not logged")
	ErrAlreadyLoggedIn = New(KindAuth, "AlreadyLoggedIn", "user already logged")
	ErrForbidden       = New(KindAuth, "Forbidden", "forbidden")

	ErrBadCredentials     = New(KindCredential, "BadCredentials", "wrong credentials")
	ErrEmailNotPresent    = New(KindCredential, "EmailNotPresent", "no user registered with this email")
	ErrUserAlreadyPresent = New(KindCredential, "UserAlreadyPresent", "user already present")

	ErrSeatAlreadyBooked    = New(KindBookingConflict, "SeatAlreadyBooked", "seat already booked")
	ErrSeatNotBooked        = New(KindBookingConflict, "SeatNotBooked", "seat not booked")
	ErrDeletionNotPermitted = New(KindBookingConflict, "DeletionNotPermitted", "booking belongs to another user")
	ErrSeatNotFound         = New(KindValidation, "SeatNotFound", "seat does not exist")
	ErrBookingNotFound      = New(KindBookingConflict, "BookingNotFound", "booking not found")
	// ErrChargedButUnbooked is raised when a payment was captured but no
	// booking could be written for it. The payment has been flagged for refund.
	ErrChargedButUnbooked = New(KindBookingConflict, CodeChargedButUnbooked, "payment captured but booking failed, refund requested")

	ErrTokenNotValid       = New(KindToken, "TokenNotValid", "token not valid")
	ErrTokenExpired        = New(KindToken, "TokenExpired", "token expired")
	ErrTokenAlreadyPresent = New(KindToken, "TokenAlreadyPresent", "a reset token is already outstanding")

	ErrNoPendingPayment    = New(KindPaymentGateway, "NoPendingPayment", "no pending payment for this session")
	ErrDraftMissing        = New(KindValidation, "DraftMissing", "no seat selection attached to the pending payment")
	ErrOrderMismatch       = New(KindBookingConflict, "OrderMismatch", "order does not match the pending payment")
	ErrPaymentNotCompleted = New(KindPaymentGateway, "PaymentNotCompleted", "payment not completed")

	ErrInternal = New(KindInternal, CodeInternal, "internal server error")
)
