package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/iliyamo/beach-seat-reservation/internal/apperr"
	"github.com/iliyamo/beach-seat-reservation/internal/model"
)

// BookingRepo provides access to the bookings table. The unique constraint on
// (beach_id, row_label, seat_index, res_date) is what prevents double
// booking; Insert reports its violation as apperr.ErrSeatAlreadyBooked.
type BookingRepo struct {
	db *sql.DB
}

func NewBookingRepo(db *sql.DB) *BookingRepo { return &BookingRepo{db: db} }

const bookingColumns = `id, beach_id, user_id, user_name, user_surname, row_label, seat_index,
	res_date, chairs, price, receipt, payment_ref, created_at`

func scanBooking(s interface{ Scan(...any) error }) (model.Booking, error) {
	var b model.Booking
	err := s.Scan(&b.ID, &b.BeachID, &b.UserID, &b.UserName, &b.UserSurname, &b.Row, &b.Index,
		&b.Date, &b.Chairs, &b.Price, &b.Receipt, &b.PaymentRef, &b.CreatedAt)
	return b, err
}

// InsertTx writes b inside tx.
func (r *BookingRepo) InsertTx(ctx context.Context, tx *sql.Tx, b model.Booking) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO bookings (`+bookingColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		b.ID, b.BeachID, b.UserID, b.UserName, b.UserSurname, b.Row, b.Index,
		b.Date, b.Chairs, b.Price, b.Receipt, b.PaymentRef, b.CreatedAt)
	if err != nil {
		if isDuplicateKey(err) {
			return apperr.ErrSeatAlreadyBooked.With(err)
		}
		return fmt.Errorf("repository.BookingRepo.Insert: %w", err)
	}
	return nil
}

// FindActive returns the booking holding key on date, or apperr.ErrSeatNotBooked.
func (r *BookingRepo) FindActive(ctx context.Context, key model.SeatKey, date string) (model.Booking, error) {
	return r.findActive(ctx, r.db, key, date)
}

// FindActiveTx is FindActive inside a caller-owned transaction.
func (r *BookingRepo) FindActiveTx(ctx context.Context, tx *sql.Tx, key model.SeatKey, date string) (model.Booking, error) {
	return r.findActive(ctx, tx, key, date)
}

func (r *BookingRepo) findActive(ctx context.Context, q querier, key model.SeatKey, date string) (model.Booking, error) {
	row := q.QueryRowContext(ctx, `
		SELECT `+bookingColumns+`
		FROM bookings
		WHERE beach_id = ? AND row_label = ? AND seat_index = ? AND res_date = ?`,
		key.BeachID, key.Row, key.Index, date)
	b, err := scanBooking(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Booking{}, apperr.ErrSeatNotBooked
		}
		return model.Booking{}, fmt.Errorf("repository.BookingRepo.FindActive: %w", err)
	}
	return b, nil
}

// GetByID returns a booking by id, or apperr.ErrBookingNotFound.
func (r *BookingRepo) GetByID(ctx context.Context, id string) (model.Booking, error) {
	row := r.db.QueryRowContext(ctx, "SELECT "+bookingColumns+" FROM bookings WHERE id = ?", id)
	b, err := scanBooking(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Booking{}, apperr.ErrBookingNotFound
		}
		return model.Booking{}, fmt.Errorf("repository.BookingRepo.GetByID: %w", err)
	}
	return b, nil
}

// DeleteOwnedTx removes the booking on key/date if it belongs to userID and
// reports whether a row was removed.
func (r *BookingRepo) DeleteOwnedTx(ctx context.Context, tx *sql.Tx, key model.SeatKey, date, userID string) (bool, error) {
	res, err := tx.ExecContext(ctx, `
		DELETE FROM bookings
		WHERE beach_id = ? AND row_label = ? AND seat_index = ? AND res_date = ? AND user_id = ?`,
		key.BeachID, key.Row, key.Index, date, userID)
	if err != nil {
		return false, fmt.Errorf("repository.BookingRepo.DeleteOwned: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("repository.BookingRepo.DeleteOwned: %w", err)
	}
	return n > 0, nil
}

// ListForUser returns the user's bookings in insertion order.
func (r *BookingRepo) ListForUser(ctx context.Context, userID string) ([]model.Booking, error) {
	const op = "repository.BookingRepo.ListForUser"

	rows, err := r.db.QueryContext(ctx, `
		SELECT `+bookingColumns+`
		FROM bookings
		WHERE user_id = ?
		ORDER BY created_at ASC, id ASC`, userID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	out := []model.Booking{}
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: scan: %w", op, err)
		}
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return out, nil
}

// BeachName returns the display name of a beach.
func (r *BookingRepo) BeachName(ctx context.Context, beachID string) (string, error) {
	var name string
	err := r.db.QueryRowContext(ctx, "SELECT name FROM beaches WHERE id = ?", beachID).Scan(&name)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", fmt.Errorf("repository.BookingRepo.BeachName: unknown beach %q", beachID)
		}
		return "", fmt.Errorf("repository.BookingRepo.BeachName: %w", err)
	}
	return name, nil
}
