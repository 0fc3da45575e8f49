package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/iliyamo/beach-seat-reservation/internal/model"
)

// RefundRepo persists payments that were captured but could not be booked.
type RefundRepo struct {
	db *sql.DB
}

func NewRefundRepo(db *sql.DB) *RefundRepo { return &RefundRepo{db: db} }

// Flag records a refund request for the payment. Flagging the same payment
// twice returns the request created first.
func (r *RefundRepo) Flag(ctx context.Context, req model.RefundRequest) (model.RefundRequest, error) {
	const op = "repository.RefundRepo.Flag"

	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	if req.Status == "" {
		req.Status = model.RefundPending
	}
	if req.CreatedAt.IsZero() {
		req.CreatedAt = time.Now().UTC()
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO refund_requests (id, provider, external_id, user_id, amount_minor, reason, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		req.ID, req.Provider, req.ExternalID, req.UserID, req.AmountMinor, req.Reason, req.Status, req.CreatedAt)
	if err == nil {
		return req, nil
	}
	if !isDuplicateKey(err) {
		return model.RefundRequest{}, fmt.Errorf("%s: %w", op, err)
	}
	existing, err := r.Get(ctx, req.Provider, req.ExternalID)
	if err != nil {
		return model.RefundRequest{}, fmt.Errorf("%s: %w", op, err)
	}
	return existing, nil
}

// Get returns the refund request for a provider payment id.
func (r *RefundRepo) Get(ctx context.Context, provider, externalID string) (model.RefundRequest, error) {
	var req model.RefundRequest
	err := r.db.QueryRowContext(ctx, `
		SELECT id, provider, external_id, user_id, amount_minor, reason, status, created_at
		FROM refund_requests WHERE provider = ? AND external_id = ?`, provider, externalID).
		Scan(&req.ID, &req.Provider, &req.ExternalID, &req.UserID, &req.AmountMinor, &req.Reason, &req.Status, &req.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return model.RefundRequest{}, fmt.Errorf("refund request %s/%s: %w", provider, externalID, err)
	}
	return req, err
}

// ListPending returns the refund requests still waiting to be settled.
func (r *RefundRepo) ListPending(ctx context.Context) ([]model.RefundRequest, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, provider, external_id, user_id, amount_minor, reason, status, created_at
		FROM refund_requests WHERE status = ? ORDER BY created_at`, model.RefundPending)
	if err != nil {
		return nil, fmt.Errorf("repository.RefundRepo.ListPending: %w", err)
	}
	defer rows.Close()

	out := []model.RefundRequest{}
	for rows.Next() {
		var req model.RefundRequest
		if err := rows.Scan(&req.ID, &req.Provider, &req.ExternalID, &req.UserID, &req.AmountMinor, &req.Reason, &req.Status, &req.CreatedAt); err != nil {
			return nil, fmt.Errorf("repository.RefundRepo.ListPending: scan: %w", err)
		}
		out = append(out, req)
	}
	return out, rows.Err()
}
