package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/beach-seat-reservation/internal/checkout"
	"github.com/iliyamo/beach-seat-reservation/internal/middleware"
)

type captureReq struct {
	OrderID string `json:"orderID"`
}

// PaymentHandler exposes the card and wallet checkout flows. Provider calls
// are bounded by the checkout service itself.
type PaymentHandler struct {
	Service *checkout.Service
}

func NewPaymentHandler(co *checkout.Service) *PaymentHandler { return &PaymentHandler{Service: co} }

// InitPayment opens a card payment intent for the session.
func (h *PaymentHandler) InitPayment(c echo.Context) error {
	s, _ := middleware.SessionFrom(c)
	intent, err := h.Service.Quote(c.Request().Context(), s.ID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{"clientSecret": intent.ClientSecret, "paymentIntentId": intent.ID})
}

// Checkout prices the pending card payment for the selected seat.
func (h *PaymentHandler) Checkout(c echo.Context) error {
	s, _ := middleware.SessionFrom(c)
	var req bookingReq
	if err := bind(c, &req); err != nil {
		return err
	}
	intent, err := h.Service.Price(c.Request().Context(), s.ID, req.draft())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{"clientSecret": intent.ClientSecret, "amount": intent.Amount})
}

// ConfirmStripePayment books the priced seat once the card payment succeeded.
func (h *PaymentHandler) ConfirmStripePayment(c echo.Context) error {
	s, _ := middleware.SessionFrom(c)
	view, err := h.Service.ConfirmCard(c.Request().Context(), s.ID, s.User)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, view)
}

// PayPalCheckout opens a wallet order for the selected seat.
func (h *PaymentHandler) PayPalCheckout(c echo.Context) error {
	s, _ := middleware.SessionFrom(c)
	var req bookingReq
	if err := bind(c, &req); err != nil {
		return err
	}
	order, err := h.Service.OpenWalletOrder(c.Request().Context(), s.ID, req.draft())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, order)
}

// PayPalBuy captures the approved wallet order and books the seat.
func (h *PaymentHandler) PayPalBuy(c echo.Context) error {
	s, _ := middleware.SessionFrom(c)
	var req captureReq
	if c.Request().ContentLength != 0 {
		if err := c.Bind(&req); err != nil {
			return badRequest("invalid body")
		}
	}
	view, err := h.Service.CaptureWallet(c.Request().Context(), s.ID, s.User, req.OrderID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, view)
}
