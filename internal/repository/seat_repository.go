package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/iliyamo/beach-seat-reservation/internal/model"
)

// SeatRepo reads the seat catalog and maintains per-date occupancy marks.
// A mark exists in seat_reservations iff a booking holds that seat and date.
type SeatRepo struct {
	db *sql.DB
}

func NewSeatRepo(db *sql.DB) *SeatRepo { return &SeatRepo{db: db} }

// ListSeats returns every seat of the beach ordered by row descending then
// index ascending, each with its reserved dates in ascending order.
func (r *SeatRepo) ListSeats(ctx context.Context, beachID string) ([]model.Seat, error) {
	const op = "repository.SeatRepo.ListSeats"

	rows, err := r.db.QueryContext(ctx, `
		SELECT s.row_label, s.seat_index, sr.res_date
		FROM seats s
		LEFT JOIN seat_reservations sr
		  ON sr.beach_id = s.beach_id AND sr.row_label = s.row_label AND sr.seat_index = s.seat_index
		WHERE s.beach_id = ?
		ORDER BY s.row_label DESC, s.seat_index ASC, sr.res_date ASC`, beachID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var seats []model.Seat
	for rows.Next() {
		var (
			row   string
			index int
			date  sql.NullString
		)
		if err := rows.Scan(&row, &index, &date); err != nil {
			return nil, fmt.Errorf("%s: scan: %w", op, err)
		}
		n := len(seats)
		if n == 0 || seats[n-1].Row != row || seats[n-1].Index != index {
			seats = append(seats, model.Seat{
				SeatKey:      model.SeatKey{BeachID: beachID, Row: row, Index: index},
				Reservations: []string{},
			})
			n++
		}
		if date.Valid {
			seats[n-1].Reservations = append(seats[n-1].Reservations, date.String)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return seats, nil
}

// Exists reports whether key names a provisioned seat.
func (r *SeatRepo) Exists(ctx context.Context, key model.SeatKey) (bool, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM seats WHERE beach_id = ? AND row_label = ? AND seat_index = ?",
		key.BeachID, key.Row, key.Index).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("repository.SeatRepo.Exists: %w", err)
	}
	return n > 0, nil
}

// OccupancyForDate counts the seats reserved on date.
func (r *SeatRepo) OccupancyForDate(ctx context.Context, beachID, date string) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM seat_reservations WHERE beach_id = ? AND res_date = ?",
		beachID, date).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("repository.SeatRepo.OccupancyForDate: %w", err)
	}
	return n, nil
}

// OccupancyBetween counts reserved seats per date for from <= date < to.
// Dates without reservations are absent from the result.
func (r *SeatRepo) OccupancyBetween(ctx context.Context, beachID, from, to string) (map[string]int, error) {
	const op = "repository.SeatRepo.OccupancyBetween"

	rows, err := r.db.QueryContext(ctx, `
		SELECT res_date, COUNT(*)
		FROM seat_reservations
		WHERE beach_id = ? AND res_date >= ? AND res_date < ?
		GROUP BY res_date`, beachID, from, to)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	out := make(map[string]int)
	for rows.Next() {
		var (
			date string
			n    int
		)
		if err := rows.Scan(&date, &n); err != nil {
			return nil, fmt.Errorf("%s: scan: %w", op, err)
		}
		out[date] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return out, nil
}

// MarkOccupied adds date to the seat's reservations. Marking twice is a no-op.
func (r *SeatRepo) MarkOccupied(ctx context.Context, key model.SeatKey, date string) error {
	return r.markOccupied(ctx, r.db, key, date)
}

// MarkOccupiedTx is MarkOccupied inside a caller-owned transaction.
func (r *SeatRepo) MarkOccupiedTx(ctx context.Context, tx *sql.Tx, key model.SeatKey, date string) error {
	return r.markOccupied(ctx, tx, key, date)
}

func (r *SeatRepo) markOccupied(ctx context.Context, q querier, key model.SeatKey, date string) error {
	_, err := q.ExecContext(ctx,
		"INSERT INTO seat_reservations (beach_id, row_label, seat_index, res_date) VALUES (?, ?, ?, ?)",
		key.BeachID, key.Row, key.Index, date)
	if err != nil && !isDuplicateKey(err) {
		return fmt.Errorf("repository.SeatRepo.MarkOccupied: %w", err)
	}
	return nil
}

// ClearOccupied removes date from the seat's reservations. Clearing an absent
// mark is a no-op.
func (r *SeatRepo) ClearOccupied(ctx context.Context, key model.SeatKey, date string) error {
	return r.clearOccupied(ctx, r.db, key, date)
}

// ClearOccupiedTx is ClearOccupied inside a caller-owned transaction.
func (r *SeatRepo) ClearOccupiedTx(ctx context.Context, tx *sql.Tx, key model.SeatKey, date string) error {
	return r.clearOccupied(ctx, tx, key, date)
}

func (r *SeatRepo) clearOccupied(ctx context.Context, q querier, key model.SeatKey, date string) error {
	_, err := q.ExecContext(ctx,
		"DELETE FROM seat_reservations WHERE beach_id = ? AND row_label = ? AND seat_index = ? AND res_date = ?",
		key.BeachID, key.Row, key.Index, date)
	if err != nil {
		return fmt.Errorf("repository.SeatRepo.ClearOccupied: %w", err)
	}
	return nil
}

// ResetAllOccupancy clears every reservation mark of the beach. Bookings are
// removed in the same transaction so no booking is left without its mark.
// It returns the number of cleared marks.
func (r *SeatRepo) ResetAllOccupancy(ctx context.Context, beachID string) (int64, error) {
	const op = "repository.SeatRepo.ResetAllOccupancy"

	var cleared int64
	err := InTx(ctx, r.db, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, "DELETE FROM seat_reservations WHERE beach_id = ?", beachID)
		if err != nil {
			return fmt.Errorf("%s: marks: %w", op, err)
		}
		if cleared, err = res.RowsAffected(); err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
		if _, err := tx.ExecContext(ctx, "DELETE FROM bookings WHERE beach_id = ?", beachID); err != nil {
			return fmt.Errorf("%s: bookings: %w", op, err)
		}
		return nil
	})
	return cleared, err
}
