// Package checkout runs the reservation commit protocol: a payment is quoted,
// priced against the selected seat, confirmed with the provider and only then
// turned into a booking. The pending payment lives in the session and is
// taken out exactly once, whether the attempt commits or fails.
package checkout

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/iliyamo/beach-seat-reservation/internal/apperr"
	"github.com/iliyamo/beach-seat-reservation/internal/lib/logger/sl"
	"github.com/iliyamo/beach-seat-reservation/internal/model"
	"github.com/iliyamo/beach-seat-reservation/internal/payment"
	"github.com/iliyamo/beach-seat-reservation/internal/queue"
	"github.com/iliyamo/beach-seat-reservation/internal/session"
)

// Booker commits a paid draft to the ledger.
type Booker interface {
	CreateBooking(ctx context.Context, c model.Customer, d model.Draft, paymentRef string) (model.BookingView, error)
}

// RefundFlagger persists refund requests.
type RefundFlagger interface {
	Flag(ctx context.Context, req model.RefundRequest) (model.RefundRequest, error)
}

type RefundPublisher interface {
	PublishRefundRequested(ctx context.Context, ev queue.RefundRequestedEvent) error
}

type Options struct {
	Currency string
	// Timeout bounds every provider call.
	Timeout time.Duration
	// PendingTTL is how long an unconfirmed payment stays in the session.
	PendingTTL time.Duration
	// CommitTimeout bounds the booking and the refund flag written after a
	// captured payment. Both ignore cancellation of the request context.
	CommitTimeout time.Duration
}

type Service struct {
	card    payment.CardGateway
	wallet  payment.WalletGateway
	store   session.Store
	booker  Booker
	refunds RefundFlagger
	events  RefundPublisher
	opts    Options
	log     *slog.Logger
	now     func() time.Time
}

func New(card payment.CardGateway, wallet payment.WalletGateway, store session.Store, booker Booker,
	refunds RefundFlagger, events RefundPublisher, opts Options, log *slog.Logger) *Service {
	if events == nil {
		events = queue.NopPublisher{}
	}
	if opts.Currency == "" {
		opts.Currency = "eur"
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 15 * time.Second
	}
	if opts.PendingTTL <= 0 {
		opts.PendingTTL = 30 * time.Minute
	}
	if opts.CommitTimeout <= 0 {
		opts.CommitTimeout = 10 * time.Second
	}
	return &Service{
		card:    card,
		wallet:  wallet,
		store:   store,
		booker:  booker,
		refunds: refunds,
		events:  events,
		opts:    opts,
		log:     log,
		now:     time.Now,
	}
}

// gateway runs fn under the provider timeout. A deadline hit is reported as
// a gateway failure.
func gateway[T any](ctx context.Context, s *Service, provider string, fn func(context.Context) (T, error)) (T, error) {
	ctx, cancel := context.WithTimeout(ctx, s.opts.Timeout)
	defer cancel()

	v, err := fn(ctx)
	if err == nil {
		return v, nil
	}
	if _, ok := apperr.From(err); ok {
		return v, err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return v, apperr.Gateway(provider, "timed out", err)
	}
	return v, apperr.Gateway(provider, err.Error(), err)
}

// Quote opens a card payment for a single chair and parks it in the session.
func (s *Service) Quote(ctx context.Context, sid string) (payment.Intent, error) {
	amount := payment.MinorUnits(payment.CalculateOrderAmount(1))
	intent, err := gateway(ctx, s, model.ProviderStripe, func(ctx context.Context) (payment.Intent, error) {
		return s.card.CreateIntent(ctx, amount, s.opts.Currency)
	})
	if err != nil {
		return payment.Intent{}, err
	}

	p := model.PendingPayment{
		Provider:    model.ProviderStripe,
		ExternalID:  intent.ID,
		AmountMinor: amount,
		CreatedAt:   s.now().UTC(),
	}
	if err := s.store.PutPending(ctx, sid, p, s.opts.PendingTTL); err != nil {
		return payment.Intent{}, fmt.Errorf("checkout.Quote: %w", err)
	}
	s.log.Debug("card payment quoted", slog.String("intent_id", intent.ID))
	return intent, nil
}

// Price reprices the quoted card payment to the draft and attaches the draft.
func (s *Service) Price(ctx context.Context, sid string, d model.Draft) (payment.Intent, error) {
	p, err := s.store.GetPending(ctx, sid)
	if err != nil {
		if errors.Is(err, session.ErrNoPending) {
			return payment.Intent{}, apperr.ErrNoPendingPayment
		}
		return payment.Intent{}, fmt.Errorf("checkout.Price: %w", err)
	}
	if p.Provider != model.ProviderStripe {
		return payment.Intent{}, apperr.ErrNoPendingPayment
	}

	amount := payment.MinorUnits(payment.CalculateOrderAmount(d.Chairs))
	intent, err := gateway(ctx, s, model.ProviderStripe, func(ctx context.Context) (payment.Intent, error) {
		return s.card.UpdateIntent(ctx, p.ExternalID, amount)
	})
	if err != nil {
		return payment.Intent{}, err
	}

	p.AmountMinor = amount
	p.Draft = &d
	if err := s.store.PutPending(ctx, sid, p, s.opts.PendingTTL); err != nil {
		return payment.Intent{}, fmt.Errorf("checkout.Price: %w", err)
	}
	return intent, nil
}

// ConfirmCard consumes the pending card payment and books the draft when the
// provider reports the intent as succeeded.
func (s *Service) ConfirmCard(ctx context.Context, sid string, c model.Customer) (model.BookingView, error) {
	p, err := s.take(ctx, sid, model.ProviderStripe)
	if err != nil {
		return model.BookingView{}, err
	}
	log := s.log.With(slog.String("op", "checkout.ConfirmCard"), slog.String("intent_id", p.ExternalID), slog.String("user_id", c.ID))

	status, err := gateway(ctx, s, model.ProviderStripe, func(ctx context.Context) (string, error) {
		return s.card.IntentStatus(ctx, p.ExternalID)
	})
	if err != nil {
		log.Warn("card status query failed", sl.Err(err))
		return model.BookingView{}, err
	}
	if status != payment.CardSucceeded {
		log.Info("card payment not completed", slog.String("status", status))
		return model.BookingView{}, apperr.ErrPaymentNotCompleted.WithDetail("status", status)
	}
	return s.commit(ctx, c, p)
}

// OpenWalletOrder creates a wallet order for the draft and parks it in the
// session, replacing any earlier pending payment.
func (s *Service) OpenWalletOrder(ctx context.Context, sid string, d model.Draft) (payment.Order, error) {
	amount := payment.MinorUnits(payment.CalculateOrderAmount(d.Chairs))
	order, err := gateway(ctx, s, model.ProviderPayPal, func(ctx context.Context) (payment.Order, error) {
		return s.wallet.CreateOrder(ctx, amount, s.opts.Currency)
	})
	if err != nil {
		return payment.Order{}, err
	}

	p := model.PendingPayment{
		Provider:    model.ProviderPayPal,
		ExternalID:  order.ID,
		AmountMinor: amount,
		Draft:       &d,
		CreatedAt:   s.now().UTC(),
	}
	if err := s.store.PutPending(ctx, sid, p, s.opts.PendingTTL); err != nil {
		return payment.Order{}, fmt.Errorf("checkout.OpenWalletOrder: %w", err)
	}
	return order, nil
}

// CaptureWallet consumes the pending wallet order, captures it and books the
// draft when the capture completes. orderID may be empty; when set it must
// name the pending order.
func (s *Service) CaptureWallet(ctx context.Context, sid string, c model.Customer, orderID string) (model.BookingView, error) {
	p, err := s.take(ctx, sid, model.ProviderPayPal)
	if err != nil {
		return model.BookingView{}, err
	}
	if orderID != "" && orderID != p.ExternalID {
		return model.BookingView{}, apperr.ErrOrderMismatch
	}
	log := s.log.With(slog.String("op", "checkout.CaptureWallet"), slog.String("order_id", p.ExternalID), slog.String("user_id", c.ID))

	capture, err := gateway(ctx, s, model.ProviderPayPal, func(ctx context.Context) (payment.Capture, error) {
		return s.wallet.CaptureOrder(ctx, p.ExternalID)
	})
	if err != nil {
		log.Warn("wallet capture failed", sl.Err(err))
		return model.BookingView{}, err
	}
	if capture.Status != payment.WalletCompleted {
		log.Info("wallet payment not completed", slog.String("status", capture.Status))
		return model.BookingView{}, apperr.ErrPaymentNotCompleted.
			WithDetail("status", capture.Status).
			WithDetail("capture", capture.Raw)
	}
	return s.commit(ctx, c, p)
}

// take removes the pending payment from the session. It is gone after this
// call regardless of how the attempt ends.
func (s *Service) take(ctx context.Context, sid, provider string) (model.PendingPayment, error) {
	p, err := s.store.TakePending(ctx, sid)
	if err != nil {
		if errors.Is(err, session.ErrNoPending) {
			return model.PendingPayment{}, apperr.ErrNoPendingPayment
		}
		return model.PendingPayment{}, fmt.Errorf("checkout: take pending: %w", err)
	}
	if p.Provider != provider {
		return model.PendingPayment{}, apperr.ErrNoPendingPayment
	}
	if p.Draft == nil {
		return model.PendingPayment{}, apperr.ErrDraftMissing
	}
	return p, nil
}

// commit books a paid draft. Any booking failure after the money was
// captured flags the payment for refund and surfaces ErrChargedButUnbooked,
// with the ledger error kept as its cause.
func (s *Service) commit(ctx context.Context, c model.Customer, p model.PendingPayment) (model.BookingView, error) {
	ctx = context.WithoutCancel(ctx)
	bookCtx, cancel := context.WithTimeout(ctx, s.opts.CommitTimeout)
	view, err := s.booker.CreateBooking(bookCtx, c, *p.Draft, p.ExternalID)
	cancel()
	if err == nil {
		return view, nil
	}

	reason, cause := "booking failed", "BookingFailed"
	if errors.Is(err, apperr.ErrSeatAlreadyBooked) {
		reason, cause = "seat already booked", apperr.ErrSeatAlreadyBooked.Code
	} else if e, ok := apperr.From(err); ok {
		cause = e.Code
	}

	log := s.log.With(slog.String("op", "checkout.commit"), slog.String("provider", p.Provider),
		slog.String("external_id", p.ExternalID), slog.String("user_id", c.ID))

	ctx, cancel = context.WithTimeout(ctx, s.opts.CommitTimeout)
	defer cancel()

	req, ferr := s.refunds.Flag(ctx, model.RefundRequest{
		Provider:    p.Provider,
		ExternalID:  p.ExternalID,
		UserID:      c.ID,
		AmountMinor: p.AmountMinor,
		Reason:      reason,
		CreatedAt:   s.now().UTC(),
	})
	if ferr != nil {
		log.Error("charged but unbooked, refund flag failed", sl.Err(errors.Join(err, ferr)))
		return model.BookingView{}, apperr.ErrChargedButUnbooked.With(errors.Join(err, ferr)).WithDetail("cause", cause)
	}
	log.Warn("charged but unbooked, refund requested", slog.String("refund_id", req.ID), slog.String("cause", cause), sl.Err(err))

	ev := queue.RefundRequestedEvent{
		RefundID:    req.ID,
		Provider:    req.Provider,
		ExternalID:  req.ExternalID,
		UserID:      req.UserID,
		AmountMinor: req.AmountMinor,
		Reason:      req.Reason,
		RequestedAt: req.CreatedAt.Format(time.RFC3339),
	}
	if perr := s.events.PublishRefundRequested(ctx, ev); perr != nil {
		log.Warn("publish payment.refund_requested failed", sl.Err(perr))
	}
	return model.BookingView{}, apperr.ErrChargedButUnbooked.With(err).
		WithDetail("refundId", req.ID).
		WithDetail("cause", cause)
}
