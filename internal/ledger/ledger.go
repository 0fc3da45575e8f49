// Package ledger owns booking records. Creating a booking inserts the ledger
// row and the seat occupancy mark in one transaction; the unique key on
// (beach, row, index, date) decides which of two concurrent requests wins.
package ledger

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/iliyamo/beach-seat-reservation/internal/apperr"
	"github.com/iliyamo/beach-seat-reservation/internal/lib/logger/sl"
	"github.com/iliyamo/beach-seat-reservation/internal/model"
	"github.com/iliyamo/beach-seat-reservation/internal/payment"
	"github.com/iliyamo/beach-seat-reservation/internal/queue"
	"github.com/iliyamo/beach-seat-reservation/internal/repository"
)

// Sealer encrypts receipt payloads.
type Sealer interface {
	Encrypt(plaintext []byte) (string, error)
	Decrypt(sealed string) ([]byte, error)
}

// EventPublisher announces committed bookings.
type EventPublisher interface {
	PublishBookingConfirmed(ctx context.Context, ev queue.BookingConfirmedEvent) error
}

type Service struct {
	db       *sql.DB
	seats    *repository.SeatRepo
	bookings *repository.BookingRepo
	sealer   Sealer
	events   EventPublisher
	log      *slog.Logger
	beachID  string
	now      func() time.Time
}

func New(db *sql.DB, sealer Sealer, events EventPublisher, log *slog.Logger, beachID string) *Service {
	if events == nil {
		events = queue.NopPublisher{}
	}
	return &Service{
		db:       db,
		seats:    repository.NewSeatRepo(db),
		bookings: repository.NewBookingRepo(db),
		sealer:   sealer,
		events:   events,
		log:      log,
		beachID:  beachID,
		now:      time.Now,
	}
}

// BeachID is the venue served by this ledger.
func (s *Service) BeachID() string { return s.beachID }

func (s *Service) key(row string, index int) model.SeatKey {
	return model.SeatKey{BeachID: s.beachID, Row: row, Index: index}
}

// FindActive returns the booking on the seat and date, or apperr.ErrSeatNotBooked.
func (s *Service) FindActive(ctx context.Context, row string, index int, date string) (model.Booking, error) {
	return s.bookings.FindActive(ctx, s.key(row, index), date)
}

// CreateBooking books the seat in d for c. It fails with
// apperr.ErrSeatAlreadyBooked when the seat is taken on that date.
// paymentRef links the booking to the payment that paid for it, if any.
func (s *Service) CreateBooking(ctx context.Context, c model.Customer, d model.Draft, paymentRef string) (model.BookingView, error) {
	const op = "ledger.CreateBooking"
	log := s.log.With(slog.String("op", op), slog.String("user_id", c.ID))

	key := s.key(d.Row, d.Index)
	ok, err := s.seats.Exists(ctx, key)
	if err != nil {
		return model.BookingView{}, fmt.Errorf("%s: %w", op, err)
	}
	if !ok {
		return model.BookingView{}, apperr.ErrSeatNotFound
	}
	beachName, err := s.bookings.BeachName(ctx, s.beachID)
	if err != nil {
		return model.BookingView{}, fmt.Errorf("%s: %w", op, err)
	}

	b := model.Booking{
		ID:          uuid.NewString(),
		BeachID:     s.beachID,
		UserID:      c.ID,
		UserName:    c.Name,
		UserSurname: c.Surname,
		Row:         d.Row,
		Index:       d.Index,
		Date:        d.Date,
		Chairs:      d.Chairs,
		Price:       payment.CalculateOrderAmount(d.Chairs),
		PaymentRef:  paymentRef,
		CreatedAt:   s.now().UTC().Truncate(time.Second),
	}
	if b.Receipt, err = s.seal(b); err != nil {
		return model.BookingView{}, fmt.Errorf("%s: %w", op, err)
	}

	err = repository.InTx(ctx, s.db, func(tx *sql.Tx) error {
		if err := s.bookings.InsertTx(ctx, tx, b); err != nil {
			return err
		}
		return s.seats.MarkOccupiedTx(ctx, tx, key, b.Date)
	})
	if err != nil {
		if errors.Is(err, apperr.ErrSeatAlreadyBooked) {
			log.Info("seat already booked", slog.String("seat", key.String()), slog.String("date", d.Date))
			return model.BookingView{}, apperr.ErrSeatAlreadyBooked
		}
		return model.BookingView{}, fmt.Errorf("%s: %w", op, err)
	}

	log.Info("booking created", slog.String("booking_id", b.ID), slog.String("seat", key.String()), slog.String("date", b.Date))
	s.announce(ctx, b, beachName)
	return b.View(beachName), nil
}

func (s *Service) seal(b model.Booking) (string, error) {
	payload, err := json.Marshal(model.ReceiptPayload{
		ID:          b.ID,
		BeachID:     b.BeachID,
		UserID:      b.UserID,
		UserName:    b.UserName,
		UserSurname: b.UserSurname,
		Date:        b.Date,
		PlaceRow:    b.Row,
		PlaceIndex:  b.Index,
		Chairs:      b.Chairs,
		Price:       b.Price,
		Added:       b.CreatedAt,
	})
	if err != nil {
		return "", fmt.Errorf("marshal receipt: %w", err)
	}
	return s.sealer.Encrypt(payload)
}

// announce publishes the confirmation. The booking is already committed, so
// a broker failure is only logged.
func (s *Service) announce(ctx context.Context, b model.Booking, beachName string) {
	ev := queue.BookingConfirmedEvent{
		BookingID:   b.ID,
		UserID:      b.UserID,
		UserName:    b.UserName,
		UserSurname: b.UserSurname,
		BeachID:     b.BeachID,
		BeachName:   beachName,
		Row:         b.Row,
		Index:       b.Index,
		Date:        b.Date,
		Chairs:      b.Chairs,
		Price:       b.Price,
		PaymentRef:  b.PaymentRef,
		ConfirmedAt: b.CreatedAt.Format(time.RFC3339),
	}
	if err := s.events.PublishBookingConfirmed(context.WithoutCancel(ctx), ev); err != nil {
		s.log.Warn("publish booking.confirmed failed", slog.String("booking_id", b.ID), sl.Err(err))
	}
}

// DeleteBooking cancels c's booking of the seat on date and frees the seat.
func (s *Service) DeleteBooking(ctx context.Context, c model.Customer, row string, index int, date string) error {
	const op = "ledger.DeleteBooking"

	key := s.key(row, index)
	err := repository.InTx(ctx, s.db, func(tx *sql.Tx) error {
		removed, err := s.bookings.DeleteOwnedTx(ctx, tx, key, date, c.ID)
		if err != nil {
			return err
		}
		if !removed {
			if _, err := s.bookings.FindActiveTx(ctx, tx, key, date); err != nil {
				return err
			}
			return apperr.ErrDeletionNotPermitted
		}
		return s.seats.ClearOccupiedTx(ctx, tx, key, date)
	})
	if err != nil {
		if _, ok := apperr.From(err); ok {
			return err
		}
		return fmt.Errorf("%s: %w", op, err)
	}

	s.log.Info("booking deleted", slog.String("op", op), slog.String("user_id", c.ID),
		slog.String("seat", key.String()), slog.String("date", date))
	return nil
}

// ListForUser returns the user's bookings for display.
func (s *Service) ListForUser(ctx context.Context, userID string) ([]model.BookingView, error) {
	bookings, err := s.bookings.ListForUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	beachName, err := s.bookings.BeachName(ctx, s.beachID)
	if err != nil {
		return nil, err
	}
	out := make([]model.BookingView, 0, len(bookings))
	for _, b := range bookings {
		out = append(out, b.View(beachName))
	}
	return out, nil
}

// Receipt opens the sealed receipt of one of userID's bookings.
func (s *Service) Receipt(ctx context.Context, userID, bookingID string) (model.ReceiptPayload, error) {
	b, err := s.bookings.GetByID(ctx, bookingID)
	if err != nil {
		return model.ReceiptPayload{}, err
	}
	if b.UserID != userID {
		// do not reveal that someone else's booking exists
		return model.ReceiptPayload{}, apperr.ErrBookingNotFound
	}
	plain, err := s.sealer.Decrypt(b.Receipt)
	if err != nil {
		return model.ReceiptPayload{}, fmt.Errorf("ledger.Receipt: %w", err)
	}
	var p model.ReceiptPayload
	if err := json.Unmarshal(plain, &p); err != nil {
		return model.ReceiptPayload{}, fmt.Errorf("ledger.Receipt: %w", err)
	}
	return p, nil
}
