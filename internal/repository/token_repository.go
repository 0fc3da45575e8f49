package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/iliyamo/beach-seat-reservation/internal/apperr"
	"github.com/iliyamo/beach-seat-reservation/internal/model"
)

// Password reset tokens live on the users row: at most one per user, with
// reset_token NULL while no reset is outstanding.

// IssueResetToken stores token for the user owning email, valid until now+ttl.
// An unexpired outstanding token makes it fail with
// apperr.ErrTokenAlreadyPresent; an expired one is replaced.
func (r *UserRepo) IssueResetToken(ctx context.Context, email, token string, now time.Time, ttl time.Duration) (model.ResetToken, error) {
	const op = "repository.UserRepo.IssueResetToken"

	out := model.ResetToken{Token: token, ExpiresAt: now.Add(ttl).UTC()}
	err := InTx(ctx, r.DB, func(tx *sql.Tx) error {
		a, err := r.getOne(ctx, tx, "email = ?", NormalizeEmail(email), apperr.ErrEmailNotPresent)
		if err != nil {
			return err
		}
		if a.ResetToken != "" && now.Before(a.ResetExpiresAt) {
			return apperr.ErrTokenAlreadyPresent
		}
		// the guard on the previous token makes a concurrent issue lose the race
		res, err := tx.ExecContext(ctx, `
			UPDATE users SET reset_token = ?, reset_expires_at = ?, updated_at = ?
			WHERE id = ? AND (reset_token IS NULL OR reset_token = ?)`,
			token, out.ExpiresAt, now.UTC(), a.ID, a.ResetToken)
		if err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return apperr.ErrTokenAlreadyPresent
		}
		return nil
	})
	if err != nil {
		return model.ResetToken{}, err
	}
	return out, nil
}

// ConsumeResetToken sets a new password hash for the holder of token and
// clears the token. An expired token is cleared and reported as
// apperr.ErrTokenExpired.
func (r *UserRepo) ConsumeResetToken(ctx context.Context, token, passwordHash string, now time.Time) error {
	const op = "repository.UserRepo.ConsumeResetToken"

	if token == "" {
		return apperr.ErrTokenNotValid
	}

	var expired bool
	err := InTx(ctx, r.DB, func(tx *sql.Tx) error {
		a, err := r.getOne(ctx, tx, "reset_token = ?", token, apperr.ErrTokenNotValid)
		if err != nil {
			return err
		}
		if !now.Before(a.ResetExpiresAt) {
			expired = true
			return r.clearResetToken(ctx, tx, a.ID, now)
		}
		if _, err := tx.ExecContext(ctx,
			"UPDATE users SET password_hash = ?, reset_token = NULL, reset_expires_at = NULL, updated_at = ? WHERE id = ?",
			passwordHash, now.UTC(), a.ID); err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
		return nil
	})
	if err != nil {
		return err
	}
	if expired {
		return apperr.ErrTokenExpired
	}
	return nil
}

func (r *UserRepo) clearResetToken(ctx context.Context, tx *sql.Tx, userID string, now time.Time) error {
	_, err := tx.ExecContext(ctx,
		"UPDATE users SET reset_token = NULL, reset_expires_at = NULL, updated_at = ? WHERE id = ?",
		now.UTC(), userID)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("repository.UserRepo.clearResetToken: %w", err)
	}
	return nil
}
