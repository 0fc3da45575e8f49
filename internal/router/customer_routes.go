package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/beach-seat-reservation/internal/middleware"
)

// RegisterCustomer registers the seat, booking and payment endpoints. Every
// route requires a live session. Shared seat data may be served from the
// response cache; any successful booking change purges it.
func RegisterCustomer(e *echo.Echo, d Deps) {
	auth := middleware.RequireSession()
	cached := chain(auth, d.Cache)
	purge := chain(auth, d.Purge)

	e.GET("/place", d.Places.Place, cached...)
	e.GET("/booked-place-ratio", d.Places.BookedPlaceRatio, cached...)

	e.GET("/booked", d.Bookings.Booked, auth)
	e.POST("/book", d.Bookings.Book, purge...)
	e.DELETE("/book", d.Bookings.Cancel, purge...)
	e.GET("/booked/:id/receipt", d.Bookings.Receipt, auth)

	e.GET("/initpayment", d.Payments.InitPayment, auth)
	e.POST("/checkout", d.Payments.Checkout, auth)
	e.POST("/confirm-stripe-payment", d.Payments.ConfirmStripePayment, purge...)
	e.POST("/paypal-checkout", d.Payments.PayPalCheckout, auth)
	e.POST("/paypal-buy", d.Payments.PayPalBuy, purge...)
}
