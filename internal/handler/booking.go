package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/beach-seat-reservation/internal/apperr"
	"github.com/iliyamo/beach-seat-reservation/internal/ledger"
	"github.com/iliyamo/beach-seat-reservation/internal/middleware"
	"github.com/iliyamo/beach-seat-reservation/internal/model"
)

// bookingReq selects a seat. column is the row letter A-J and row is the
// position 1-15 inside it.
type bookingReq struct {
	Row    flexString `json:"row" validate:"required,seatrow"`
	Column string     `json:"column" validate:"required,seatcolumn"`
	Date   string     `json:"date" validate:"required,datetime=2006-01-02"`
	Chair  flexString `json:"chair" validate:"required,chair"`
}

func (r bookingReq) draft() model.Draft {
	index, _ := strconv.Atoi(string(r.Row))
	chairs, _ := strconv.Atoi(string(r.Chair))
	return model.Draft{Row: r.Column, Index: index, Date: r.Date, Chairs: chairs}
}

type cancelReq struct {
	Row    flexString `json:"row" validate:"required,seatrow"`
	Column string     `json:"column" validate:"required,seatcolumn"`
	Date   string     `json:"date" validate:"required,datetime=2006-01-02"`
}

type BookingHandler struct {
	Ledger *ledger.Service
	// AllowUnpaid enables POST /book, which books without a payment.
	AllowUnpaid bool
}

func NewBookingHandler(l *ledger.Service, allowUnpaid bool) *BookingHandler {
	return &BookingHandler{Ledger: l, AllowUnpaid: allowUnpaid}
}

// Booked lists the caller's bookings.
func (h *BookingHandler) Booked(c echo.Context) error {
	s, _ := middleware.SessionFrom(c)

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	views, err := h.Ledger.ListForUser(ctx, s.User.ID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, views)
}

// Book reserves a seat directly.
func (h *BookingHandler) Book(c echo.Context) error {
	if !h.AllowUnpaid {
		return apperr.ErrForbidden
	}
	s, _ := middleware.SessionFrom(c)
	var req bookingReq
	if err := bind(c, &req); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	view, err := h.Ledger.CreateBooking(ctx, s.User, req.draft(), "")
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, view)
}

// Cancel deletes one of the caller's bookings.
func (h *BookingHandler) Cancel(c echo.Context) error {
	s, _ := middleware.SessionFrom(c)
	var req cancelReq
	if err := bind(c, &req); err != nil {
		return err
	}
	index, _ := strconv.Atoi(string(req.Row))

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	if err := h.Ledger.DeleteBooking(ctx, s.User, req.Column, index, req.Date); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{"msg": "booking deleted"})
}

// Receipt decrypts the receipt of one of the caller's bookings.
func (h *BookingHandler) Receipt(c echo.Context) error {
	s, _ := middleware.SessionFrom(c)

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	p, err := h.Ledger.Receipt(ctx, s.User.ID, c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, p)
}
