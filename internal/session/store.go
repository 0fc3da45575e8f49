// Package session keeps logged-in sessions and the pending payment attached
// to each of them. A pending payment is taken out of the store atomically so
// a checkout draft can only ever be consumed once.
package session

import (
	"context"
	"errors"
	"time"

	"github.com/iliyamo/beach-seat-reservation/internal/model"
)

var (
	ErrNotFound  = errors.New("session: not found")
	ErrNoPending = errors.New("session: no pending payment")
)

// Session is the server-side state behind a session cookie.
type Session struct {
	ID        string         `json:"id"`
	User      model.Customer `json:"user"`
	CreatedAt time.Time      `json:"createdAt"`
}

type Store interface {
	Save(ctx context.Context, s Session, ttl time.Duration) error
	Get(ctx context.Context, id string) (Session, error)
	Delete(ctx context.Context, id string) error

	PutPending(ctx context.Context, sid string, p model.PendingPayment, ttl time.Duration) error
	GetPending(ctx context.Context, sid string) (model.PendingPayment, error)
	// TakePending returns and removes the pending payment in one step.
	TakePending(ctx context.Context, sid string) (model.PendingPayment, error)
	DropPending(ctx context.Context, sid string) error
}
