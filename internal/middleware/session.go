package middleware

import (
	"errors"
	"log/slog"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/beach-seat-reservation/internal/apperr"
	"github.com/iliyamo/beach-seat-reservation/internal/lib/logger/sl"
	"github.com/iliyamo/beach-seat-reservation/internal/session"
	"github.com/iliyamo/beach-seat-reservation/internal/utils"
)

const sessionKey = "session"

// LoadSession resolves the signed session cookie into the stored session and
// puts it in the echo context. Requests without a valid session pass through
// untouched; RequireSession decides whether that is acceptable.
func LoadSession(store session.Store, secret, cookieName string, log *slog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ck, err := c.Cookie(cookieName)
			if err != nil || ck.Value == "" {
				return next(c)
			}
			sid, err := utils.ParseSessionToken(secret, ck.Value)
			if err != nil {
				return next(c)
			}
			s, err := store.Get(c.Request().Context(), sid)
			switch {
			case err == nil:
				c.Set(sessionKey, s)
			case errors.Is(err, session.ErrNotFound):
			default:
				log.Warn("session lookup failed", slog.String("sid", sid), sl.Err(err))
			}
			return next(c)
		}
	}
}

// RequireSession rejects requests that carry no live session.
func RequireSession() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if _, ok := SessionFrom(c); !ok {
				return apperr.ErrNotLoggedIn
			}
			return next(c)
		}
	}
}

// SessionFrom returns the session loaded for this request.
func SessionFrom(c echo.Context) (session.Session, bool) {
	s, ok := c.Get(sessionKey).(session.Session)
	return s, ok
}

// SetSession replaces the session seen by the rest of the request.
func SetSession(c echo.Context, s session.Session) { c.Set(sessionKey, s) }
