package apperr

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
)

// Error carries a machine-readable code next to the human message the
// API returns. The HTTP status is not serialized.
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"-"`
}

func (e *Error) Error() string {
	return e.Message
}

func Validation(msg string) *Error {
	return &Error{Code: "VALIDATION", Message: msg, Status: http.StatusBadRequest}
}

func Unauthorized(msg string) *Error {
	return &Error{Code: "UNAUTHORIZED", Message: msg, Status: http.StatusUnauthorized}
}

func Forbidden(msg string) *Error {
	return &Error{Code: "FORBIDDEN", Message: msg, Status: http.StatusForbidden}
}

func NotFound(msg string) *Error {
	return &Error{Code: "NOT_FOUND", Message: msg, Status: http.StatusNotFound}
}

func Conflict(msg string) *Error {
	return &Error{Code: "CONFLICT", Message: msg, Status: http.StatusConflict}
}

func InsufficientBalance(msg string) *Error {
	return &Error{Code: "INSUFFICIENT_BALANCE", Message: msg, Status: http.StatusBadRequest}
}

// HTTPErrorHandler renders *Error as {"code","message"} and keeps echo's
// behaviour for everything else.
func HTTPErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	var ae *Error
	if errors.As(err, &ae) {
		if c.Request().Method == http.MethodHead {
			_ = c.NoContent(ae.Status)
			return
		}
		_ = c.JSON(ae.Status, ae)
		return
	}

	var he *echo.HTTPError
	if errors.As(err, &he) {
		msg, ok := he.Message.(string)
		if !ok {
			msg = http.StatusText(he.Code)
		}
		_ = c.JSON(he.Code, &Error{Code: codeFor(he.Code), Message: msg})
		return
	}

	_ = c.JSON(http.StatusInternalServerError, &Error{Code: "INTERNAL", Message: "internal server error"})
}

func codeFor(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "VALIDATION"
	case http.StatusUnauthorized:
		return "UNAUTHORIZED"
	case http.StatusForbidden:
		return "FORBIDDEN"
	case http.StatusNotFound:
		return "NOT_FOUND"
	case http.StatusConflict:
		return "CONFLICT"
	default:
		return "INTERNAL"
	}
}
