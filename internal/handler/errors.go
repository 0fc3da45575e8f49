package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/beach-seat-reservation/internal/apperr"
	"github.com/iliyamo/beach-seat-reservation/internal/lib/logger/sl"
)

var statusByCode = map[string]int{
	apperr.CodeValidation:               http.StatusBadRequest,
	apperr.ErrSeatNotFound.Code:         http.StatusBadRequest,
	apperr.ErrDraftMissing.Code:         http.StatusBadRequest,
	apperr.ErrOrderMismatch.Code:        http.StatusConflict,
	apperr.ErrNotLoggedIn.Code:          http.StatusForbidden,
	apperr.ErrAlreadyLoggedIn.Code:      http.StatusBadRequest,
	apperr.ErrForbidden.Code:            http.StatusForbidden,
	apperr.ErrBadCredentials.Code:       http.StatusBadRequest,
	apperr.ErrEmailNotPresent.Code:      http.StatusBadRequest,
	apperr.ErrUserAlreadyPresent.Code:   http.StatusBadRequest,
	apperr.ErrSeatAlreadyBooked.Code:    http.StatusBadRequest,
	apperr.ErrSeatNotBooked.Code:        http.StatusNotFound,
	apperr.ErrBookingNotFound.Code:      http.StatusNotFound,
	apperr.ErrDeletionNotPermitted.Code: http.StatusForbidden,
	apperr.CodeChargedButUnbooked:       http.StatusConflict,
	apperr.ErrTokenNotValid.Code:        http.StatusBadRequest,
	apperr.ErrTokenExpired.Code:         http.StatusBadRequest,
	apperr.ErrTokenAlreadyPresent.Code:  http.StatusBadRequest,
	apperr.CodePaymentGateway:           http.StatusBadGateway,
	apperr.ErrPaymentNotCompleted.Code:  http.StatusForbidden,
	apperr.ErrNoPendingPayment.Code:     http.StatusInternalServerError,
}

// statusError forces a status for an error that maps differently elsewhere.
type statusError struct {
	status int
	err    error
}

func (e *statusError) Error() string { return e.err.Error() }
func (e *statusError) Unwrap() error { return e.err }

func withStatus(status int, err error) error { return &statusError{status: status, err: err} }

func validationFailed(msg string, fields map[string]string) error {
	e := apperr.Validation(msg)
	if len(fields) > 0 {
		e = e.WithDetail("fields", fields)
	}
	return e
}

func badRequest(msg string) error { return apperr.Validation(msg) }

// ErrorHandler turns handler errors into the JSON error payload
// {"error": message, "code": code, ...detail}. Unknown errors are logged and
// reported as a bare 500.
func ErrorHandler(log *slog.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}
		status, body := render(err)
		if status >= http.StatusInternalServerError {
			log.Error("request failed",
				slog.String("method", c.Request().Method),
				slog.String("path", c.Request().URL.Path),
				slog.Int("status", status),
				sl.Err(err))
		}

		if c.Request().Method == http.MethodHead {
			err = c.NoContent(status)
		} else {
			err = c.JSON(status, body)
		}
		if err != nil {
			log.Error("write error response", sl.Err(err))
		}
	}
}

func render(err error) (int, echo.Map) {
	var he *echo.HTTPError
	if errors.As(err, &he) {
		msg, ok := he.Message.(string)
		if !ok {
			msg = http.StatusText(he.Code)
		}
		return he.Code, echo.Map{"error": msg, "code": http.StatusText(he.Code)}
	}

	ae, ok := apperr.From(err)
	if !ok || ae.Kind == apperr.KindInternal {
		return http.StatusInternalServerError, echo.Map{"error": apperr.ErrInternal.Message, "code": apperr.CodeInternal}
	}
	status, ok := statusByCode[ae.Code]
	if !ok {
		status = http.StatusInternalServerError
	}
	var se *statusError
	if errors.As(err, &se) {
		status = se.status
	}

	body := echo.Map{}
	for k, v := range ae.Detail {
		body[k] = v
	}
	body["error"] = ae.Message
	body["code"] = ae.Code
	return status, body
}
