// Package router assembles the echo instance: global middleware, the error
// handler and every route group.
package router

import (
	"log/slog"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/iliyamo/beach-seat-reservation/internal/handler"
	"github.com/iliyamo/beach-seat-reservation/internal/middleware"
)

// Deps carries the handlers and the middleware built from configuration.
type Deps struct {
	Auth     *handler.AuthHandler
	Places   *handler.PlaceHandler
	Bookings *handler.BookingHandler
	Payments *handler.PaymentHandler
	Admin    *handler.AdminHandler
	Health   echo.HandlerFunc

	// Session resolves the session cookie on every request.
	Session echo.MiddlewareFunc
	// RateLimit, Cache and Purge may be nil.
	RateLimit echo.MiddlewareFunc
	Cache     echo.MiddlewareFunc
	Purge     echo.MiddlewareFunc

	CORSOrigin string
}

// chain drops the nil entries of mws.
func chain(mws ...echo.MiddlewareFunc) []echo.MiddlewareFunc {
	out := make([]echo.MiddlewareFunc, 0, len(mws))
	for _, mw := range mws {
		if mw != nil {
			out = append(out, mw)
		}
	}
	return out
}

// New builds the HTTP server with all routes registered.
func New(d Deps, log *slog.Logger) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = handler.NewRequestValidator()
	e.HTTPErrorHandler = handler.ErrorHandler(log)

	e.Use(echomw.Recover())
	e.Use(echomw.RequestID())
	e.Use(middleware.RequestLogger(log))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins:     []string{d.CORSOrigin},
		AllowCredentials: true,
	}))
	e.Use(echomw.Secure())
	e.Use(chain(d.Session, d.RateLimit)...)

	RegisterRoutes(e, d.Health)
	RegisterAuth(e, d.Auth)
	RegisterCustomer(e, d)
	RegisterAdmin(e, d.Admin, d.Purge)
	return e
}

// RegisterRoutes registers routes that need no session.
func RegisterRoutes(e *echo.Echo, health echo.HandlerFunc) {
	e.GET("/healthz", health)
}

// RegisterAuth registers the account and session routes. Signup, login and
// the password reset flow are open; the handlers themselves refuse callers
// that are already logged in where that matters.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler) {
	e.POST("/signup", a.Signup)
	e.POST("/login", a.Login)
	e.POST("/logout", a.Logout)
	e.GET("/logout", a.Logout)
	e.GET("/session", a.Status)
	e.GET("/", a.Status)
	e.POST("/request-change-password", a.RequestChangePassword)
	e.POST("/change-password", a.ChangePassword)

	e.PUT("/edit-user-info", a.EditUserInfo, middleware.RequireSession())
}
