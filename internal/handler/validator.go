package handler

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
)

var (
	seatRowRe    = regexp.MustCompile(`^([1-9]|1[0-5])$`)
	seatColumnRe = regexp.MustCompile(`^[A-J]$`)
	chairRe      = regexp.MustCompile(`^[1-4]$`)
)

// RequestValidator plugs go-playground/validator into echo.
type RequestValidator struct {
	v *validator.Validate
}

func NewRequestValidator() *RequestValidator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	for tag, re := range map[string]*regexp.Regexp{
		"seatrow":    seatRowRe,
		"seatcolumn": seatColumnRe,
		"chair":      chairRe,
	} {
		re := re
		_ = v.RegisterValidation(tag, func(fl validator.FieldLevel) bool {
			return re.MatchString(fl.Field().String())
		})
	}
	return &RequestValidator{v: v}
}

// Validate returns an apperr validation error describing the first bad field.
func (rv *RequestValidator) Validate(i any) error {
	err := rv.v.Struct(i)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	msgs := make([]string, 0, len(verrs))
	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fieldMessage(fe))
		fields[fe.Field()] = fe.Tag()
	}
	return validationFailed(strings.Join(msgs, "; "), fields)
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("field %s is required", fe.Field())
	case "email":
		return fmt.Sprintf("field %s is not a valid email", fe.Field())
	case "min":
		return fmt.Sprintf("field %s must be at least %s characters", fe.Field(), fe.Param())
	case "len":
		return fmt.Sprintf("field %s must be %s characters long", fe.Field(), fe.Param())
	case "datetime":
		return fmt.Sprintf("field %s must be a YYYY-MM-DD date", fe.Field())
	default:
		return fmt.Sprintf("field %s is not valid", fe.Field())
	}
}

// flexString accepts a JSON string or number. Web clients send seat rows and
// chair counts either way.
type flexString string

func (f *flexString) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = flexString(strings.TrimSpace(s))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("expected string or number, got %s", b)
	}
	*f = flexString(n.String())
	return nil
}
