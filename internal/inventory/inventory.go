// Package inventory answers seat and availability questions for the venue.
package inventory

import (
	"context"
	"fmt"
	"time"

	"github.com/iliyamo/beach-seat-reservation/internal/model"
)

// SeatStore is the persistence needed by Service.
type SeatStore interface {
	ListSeats(ctx context.Context, beachID string) ([]model.Seat, error)
	OccupancyForDate(ctx context.Context, beachID, date string) (int, error)
	OccupancyBetween(ctx context.Context, beachID, from, to string) (map[string]int, error)
	ResetAllOccupancy(ctx context.Context, beachID string) (int64, error)
}

type Service struct {
	seats   SeatStore
	beachID string
	origin  time.Time
	days    int
}

// New builds a Service reporting occupancy for days days from origin
// (YYYY-MM-DD).
func New(seats SeatStore, beachID, origin string, days int) (*Service, error) {
	start, err := time.Parse(time.DateOnly, origin)
	if err != nil {
		return nil, fmt.Errorf("inventory: origin: %w", err)
	}
	return &Service{seats: seats, beachID: beachID, origin: start, days: days}, nil
}

// Seats returns the seat map grouped by row, rows in descending order.
func (s *Service) Seats(ctx context.Context) ([]model.SeatRow, error) {
	seats, err := s.seats.ListSeats(ctx, s.beachID)
	if err != nil {
		return nil, err
	}
	return GroupByRow(seats), nil
}

// GroupByRow splits an ordered seat list into consecutive rows. Rows are
// numbered from 1 in the order they appear.
func GroupByRow(seats []model.Seat) []model.SeatRow {
	rows := []model.SeatRow{}
	for _, seat := range seats {
		if n := len(rows); n == 0 || rows[n-1].Row != seat.Row {
			rows = append(rows, model.SeatRow{
				Row:   seat.Row,
				Label: RowLabel(n + 1),
				Seats: []model.Seat{},
			})
		}
		last := &rows[len(rows)-1]
		last.Seats = append(last.Seats, seat)
	}
	return rows
}

// RowLabel is the display name of the n-th row.
func RowLabel(n int) string { return fmt.Sprintf("%d Fila", n) }

// Flatten renders grouped rows the legacy way: each row's label string
// followed by its seats.
func Flatten(rows []model.SeatRow) []any {
	var total int
	for _, r := range rows {
		total += len(r.Seats) + 1
	}
	out := make([]any, 0, total)
	for _, r := range rows {
		out = append(out, r.Label)
		for _, seat := range r.Seats {
			out = append(out, seat)
		}
	}
	return out
}

// OccupancyForDate counts the seats reserved on date.
func (s *Service) OccupancyForDate(ctx context.Context, date string) (int, error) {
	return s.seats.OccupancyForDate(ctx, s.beachID, date)
}

// OccupancyHorizon returns one reserved-seat count per day over the fixed
// window starting at the configured origin.
func (s *Service) OccupancyHorizon(ctx context.Context) ([]int, error) {
	from := s.origin.Format(time.DateOnly)
	to := s.origin.AddDate(0, 0, s.days).Format(time.DateOnly)

	counts, err := s.seats.OccupancyBetween(ctx, s.beachID, from, to)
	if err != nil {
		return nil, err
	}
	out := make([]int, s.days)
	for i := range out {
		out[i] = counts[s.origin.AddDate(0, 0, i).Format(time.DateOnly)]
	}
	return out, nil
}

// Reset clears every reservation of the venue.
func (s *Service) Reset(ctx context.Context) (int64, error) {
	return s.seats.ResetAllOccupancy(ctx, s.beachID)
}
