package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/beach-seat-reservation/internal/handler"
	"github.com/iliyamo/beach-seat-reservation/internal/middleware"
	"github.com/iliyamo/beach-seat-reservation/internal/model"
)

// RegisterAdmin registers maintenance endpoints restricted to ADMIN accounts.
// purge, when set, runs after a reset so cached seat maps are dropped with
// the bookings.
func RegisterAdmin(e *echo.Echo, h *handler.AdminHandler, purge echo.MiddlewareFunc) {
	admin := []echo.MiddlewareFunc{
		middleware.RequireSession(),
		middleware.RequireRole(model.RoleAdmin),
	}
	e.GET("/delbook", h.DeleteAllBookings, chain(append(admin, purge)...)...)
	e.GET("/admin/refunds", h.PendingRefunds, admin...)
}
