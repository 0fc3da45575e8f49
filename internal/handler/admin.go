package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/beach-seat-reservation/internal/inventory"
	"github.com/iliyamo/beach-seat-reservation/internal/middleware"
	"github.com/iliyamo/beach-seat-reservation/internal/repository"
)

type refundView struct {
	ID          string    `json:"id"`
	Provider    string    `json:"provider"`
	ExternalID  string    `json:"externalId"`
	UserID      string    `json:"userId"`
	AmountMinor int64     `json:"amountMinor"`
	Reason      string    `json:"reason"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"createdAt"`
}

// AdminHandler serves the ADMIN-only maintenance endpoints.
type AdminHandler struct {
	Inventory *inventory.Service
	Refunds   *repository.RefundRepo
	Log       *slog.Logger
}

func NewAdminHandler(inv *inventory.Service, refunds *repository.RefundRepo, log *slog.Logger) *AdminHandler {
	return &AdminHandler{Inventory: inv, Refunds: refunds, Log: log}
}

// DeleteAllBookings wipes every reservation of the venue.
func (h *AdminHandler) DeleteAllBookings(c echo.Context) error {
	s, _ := middleware.SessionFrom(c)

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	n, err := h.Inventory.Reset(ctx)
	if err != nil {
		return err
	}
	h.Log.Warn("all bookings deleted", slog.String("admin_id", s.User.ID), slog.Int64("cleared", n))
	return c.JSON(http.StatusOK, echo.Map{"msg": "ok", "cleared": n})
}

// PendingRefunds lists captured payments still waiting to be paid back.
func (h *AdminHandler) PendingRefunds(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	reqs, err := h.Refunds.ListPending(ctx)
	if err != nil {
		return err
	}
	out := make([]refundView, 0, len(reqs))
	for _, r := range reqs {
		out = append(out, refundView(r))
	}
	return c.JSON(http.StatusOK, out)
}
