package middleware

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/beach-seat-reservation/internal/apperr"
)

// RequireRole lets the request through only when the session user holds one
// of roles. It must run after RequireSession.
func RequireRole(roles ...string) echo.MiddlewareFunc {
	allowed := make(map[string]bool, len(roles))
	for _, r := range roles {
		allowed[r] = true
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			s, ok := SessionFrom(c)
			if !ok {
				return apperr.ErrNotLoggedIn
			}
			if !allowed[s.User.Role] {
				return apperr.ErrForbidden
			}
			return next(c)
		}
	}
}
