package middleware

import (
	"log/slog"
	"time"

	"github.com/labstack/echo/v4"
)

// RequestLogger writes one slog record per request once the error handler
// has produced the final status.
func RequestLogger(log *slog.Logger) echo.MiddlewareFunc {
	log = log.With(slog.String("component", "middleware/logger"))

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			if err != nil {
				c.Error(err)
			}

			req := c.Request()
			res := c.Response()
			attrs := []any{
				slog.String("method", req.Method),
				slog.String("path", req.URL.Path),
				slog.Int("status", res.Status),
				slog.Int64("bytes", res.Size),
				slog.String("remote_addr", c.RealIP()),
				slog.String("request_id", res.Header().Get(echo.HeaderXRequestID)),
				slog.String("duration", time.Since(start).String()),
			}
			switch {
			case res.Status >= 500:
				log.Error("request completed", attrs...)
			case res.Status >= 400:
				log.Warn("request completed", attrs...)
			default:
				log.Info("request completed", attrs...)
			}
			return nil
		}
	}
}
