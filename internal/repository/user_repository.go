package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/iliyamo/beach-seat-reservation/internal/apperr"
	"github.com/iliyamo/beach-seat-reservation/internal/model"
)

type UserRepo struct{ DB *sql.DB }

func NewUserRepo(db *sql.DB) *UserRepo { return &UserRepo{DB: db} }

// NewAccount carries the fields collected at signup.
type NewAccount struct {
	Name         string
	Surname      string
	Email        string
	Tel          string
	PasswordHash string
	Role         string
}

const userColumns = `id, name, surname, email, tel, password_hash, role, reset_token, reset_expires_at, created_at, updated_at`

func scanAccount(s interface{ Scan(...any) error }) (model.Account, error) {
	var (
		a       model.Account
		token   sql.NullString
		expires sql.NullTime
	)
	err := s.Scan(&a.ID, &a.Name, &a.Surname, &a.Email, &a.Tel, &a.PasswordHash, &a.Role,
		&token, &expires, &a.CreatedAt, &a.UpdatedAt)
	a.ResetToken = token.String
	if expires.Valid {
		a.ResetExpiresAt = expires.Time
	}
	return a, err
}

// NormalizeEmail lower-cases and trims an address before storage or lookup.
func NormalizeEmail(email string) string { return strings.ToLower(strings.TrimSpace(email)) }

// Create inserts a user. A taken email or phone number yields
// apperr.ErrUserAlreadyPresent.
func (r *UserRepo) Create(ctx context.Context, in NewAccount) (model.Account, error) {
	now := time.Now().UTC()
	a := model.Account{
		ID:           uuid.NewString(),
		Name:         strings.TrimSpace(in.Name),
		Surname:      strings.TrimSpace(in.Surname),
		Email:        NormalizeEmail(in.Email),
		Tel:          strings.TrimSpace(in.Tel),
		PasswordHash: in.PasswordHash,
		Role:         in.Role,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if a.Role == "" {
		a.Role = model.RoleCustomer
	}
	_, err := r.DB.ExecContext(ctx, `
		INSERT INTO users (id, name, surname, email, tel, password_hash, role, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.Name, a.Surname, a.Email, a.Tel, a.PasswordHash, a.Role, a.CreatedAt, a.UpdatedAt)
	if err != nil {
		if isDuplicateKey(err) {
			return model.Account{}, apperr.ErrUserAlreadyPresent.With(err)
		}
		return model.Account{}, fmt.Errorf("repository.UserRepo.Create: %w", err)
	}
	return a, nil
}

// GetByEmail fetches a user by normalized email, or apperr.ErrEmailNotPresent.
func (r *UserRepo) GetByEmail(ctx context.Context, email string) (model.Account, error) {
	return r.getOne(ctx, r.DB, "email = ?", NormalizeEmail(email), apperr.ErrEmailNotPresent)
}

// GetByID fetches a user by id, or apperr.ErrNotLoggedIn when the account is gone.
func (r *UserRepo) GetByID(ctx context.Context, id string) (model.Account, error) {
	return r.getOne(ctx, r.DB, "id = ?", id, apperr.ErrNotLoggedIn)
}

func (r *UserRepo) getOne(ctx context.Context, q querier, where string, arg any, missing error) (model.Account, error) {
	row := q.QueryRowContext(ctx, "SELECT "+userColumns+" FROM users WHERE "+where, arg)
	a, err := scanAccount(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Account{}, missing
		}
		return model.Account{}, fmt.Errorf("repository.UserRepo.get: %w", err)
	}
	return a, nil
}

// UpdateInfo changes the display data and email of a user and returns the
// updated account.
func (r *UserRepo) UpdateInfo(ctx context.Context, id, name, surname, email string) (model.Account, error) {
	res, err := r.DB.ExecContext(ctx,
		"UPDATE users SET name = ?, surname = ?, email = ?, updated_at = ? WHERE id = ?",
		strings.TrimSpace(name), strings.TrimSpace(surname), NormalizeEmail(email), time.Now().UTC(), id)
	if err != nil {
		if isDuplicateKey(err) {
			return model.Account{}, apperr.ErrUserAlreadyPresent.With(err)
		}
		return model.Account{}, fmt.Errorf("repository.UserRepo.UpdateInfo: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return model.Account{}, apperr.ErrNotLoggedIn
	}
	return r.GetByID(ctx, id)
}
