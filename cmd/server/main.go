package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/iliyamo/beach-seat-reservation/internal/checkout"
	"github.com/iliyamo/beach-seat-reservation/internal/config"
	"github.com/iliyamo/beach-seat-reservation/internal/database"
	"github.com/iliyamo/beach-seat-reservation/internal/handler"
	"github.com/iliyamo/beach-seat-reservation/internal/inventory"
	"github.com/iliyamo/beach-seat-reservation/internal/ledger"
	"github.com/iliyamo/beach-seat-reservation/internal/lib/logger/sl"
	"github.com/iliyamo/beach-seat-reservation/internal/lib/logger/slogpretty"
	"github.com/iliyamo/beach-seat-reservation/internal/middleware"
	"github.com/iliyamo/beach-seat-reservation/internal/payment"
	"github.com/iliyamo/beach-seat-reservation/internal/queue"
	"github.com/iliyamo/beach-seat-reservation/internal/receipt"
	"github.com/iliyamo/beach-seat-reservation/internal/repository"
	"github.com/iliyamo/beach-seat-reservation/internal/router"
	"github.com/iliyamo/beach-seat-reservation/internal/session"
)

// events is what the booking, checkout and account flows publish.
type events interface {
	ledger.EventPublisher
	checkout.RefundPublisher
	handler.ResetNotifier
}

func main() {
	cfg := config.MustLoad()
	log := setupLogger(cfg.Env)
	log.Info("starting beach reservation server", slog.String("env", cfg.Env))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.Open(cfg.DB)
	if err != nil {
		log.Error("failed to open database", sl.Err(err))
		os.Exit(1)
	}
	defer db.Close()

	if err := database.Migrate(ctx, db); err != nil {
		log.Error("failed to migrate database", sl.Err(err))
		os.Exit(1)
	}
	if err := database.ProvisionBeach(ctx, db, cfg.Beach.ID, cfg.Beach.Name); err != nil {
		log.Error("failed to provision beach", sl.Err(err))
		os.Exit(1)
	}

	codec, err := receipt.NewCodec(cfg.ReceiptKey)
	if err != nil {
		log.Error("invalid QR_KEY", sl.Err(err))
		os.Exit(1)
	}

	rdb := config.NewRedisClient(cfg.Redis)
	var store session.Store
	if rdb != nil {
		defer rdb.Close()
		store = session.NewRedisStore(rdb, "beach")
		log.Info("redis connected", slog.String("addr", cfg.Redis.Address()))
	} else {
		mem := session.NewMemoryStore()
		go mem.RunSweeper(ctx, time.Minute)
		store = mem
		log.Warn("redis unavailable, using in-memory sessions; rate limit and cache disabled")
	}

	var pub events = queue.NopPublisher{}
	if cfg.Queue.Enabled {
		pub = queue.NewPublisher(cfg.Queue.URL, log)
		consumer := &queue.Consumer{URL: cfg.Queue.URL, Dir: "logs", Log: log}
		go func() {
			if err := consumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Error("queue consumer stopped", sl.Err(err))
			}
		}()
	}

	inv, err := inventory.New(repository.NewSeatRepo(db), cfg.Beach.ID, cfg.Occupancy.Origin, cfg.Occupancy.Days)
	if err != nil {
		log.Error("failed to init inventory", sl.Err(err))
		os.Exit(1)
	}
	book := ledger.New(db, codec, pub, log, cfg.Beach.ID)
	refunds := repository.NewRefundRepo(db)

	hc := &http.Client{Timeout: cfg.Payment.Timeout}
	co := checkout.New(
		payment.NewStripeClient(cfg.Payment.StripeAPIURL, cfg.Payment.StripeSecretKey, hc),
		payment.NewPayPalClient(cfg.Payment.PayPalAPIURL, cfg.Payment.PayPalClientID, cfg.Payment.PayPalClientSecret, hc),
		store, book, refunds, pub,
		checkout.Options{
			Currency:      cfg.Payment.Currency,
			Timeout:       cfg.Payment.Timeout,
			PendingTTL:    cfg.Payment.PendingTTL,
			CommitTimeout: cfg.Payment.CommitTimeout,
		},
		log,
	)

	e := router.New(router.Deps{
		Auth:       handler.NewAuthHandler(cfg, repository.NewUserRepo(db), store, pub, log),
		Places:     handler.NewPlaceHandler(inv),
		Bookings:   handler.NewBookingHandler(book, cfg.AllowUnpaidBooking),
		Payments:   handler.NewPaymentHandler(co),
		Admin:      handler.NewAdminHandler(inv, refunds, log),
		Health:     handler.Health(db, rdb),
		Session:    middleware.LoadSession(store, cfg.Session.Secret, cfg.Session.CookieName, log),
		RateLimit:  middleware.NewTokenBucket(cfg.RateLimit, rdb, log),
		Cache:      middleware.NewRedisCache(cfg.Cache, rdb, log),
		Purge:      middleware.PurgeCache(cfg.Cache, rdb, log),
		CORSOrigin: cfg.CORSOrigin,
	}, log)

	addr := ":" + cfg.Port
	go func() {
		log.Info("listening", slog.String("addr", addr))
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server failed", sl.Err(err))
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", sl.Err(err))
	}
	log.Info("server stopped")
}

func setupLogger(env string) *slog.Logger {
	var log *slog.Logger

	switch env {
	case config.EnvDev:
		log = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
	case config.EnvProd:
		log = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	default:
		log = setupPrettySlog()
	}
	return log
}

func setupPrettySlog() *slog.Logger {
	opts := slogpretty.PrettyHandlerOptions{
		SlogOpts: &slog.HandlerOptions{Level: slog.LevelDebug},
	}
	return slog.New(opts.NewPrettyHandler(os.Stdout))
}
