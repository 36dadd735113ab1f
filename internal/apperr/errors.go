// Package apperr holds the error taxonomy shared by the storefront services:
// input rejected before any network call, and failures reported by the remote
// backend. Both are shown to the user as inline message text.
package apperr

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gofiber/fiber/v2"
)

// ErrNoToken is returned by operations that need a verified session.
var ErrNoToken = errors.New("no access token found")

// ValidationError reports client input rejected before any backend call.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Invalid builds a ValidationError for field.
func Invalid(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}

// RemoteError reports a non-2xx backend response or a transport failure.
// Status is zero for transport failures.
type RemoteError struct {
	Op      string
	Status  int
	Message string
	Err     error
}

func (e *RemoteError) Error() string {
	if e.Status == 0 {
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	}
	return fmt.Sprintf("%s: %s (status %d)", e.Op, e.Message, e.Status)
}

func (e *RemoteError) Unwrap() error { return e.Err }

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}

// IsRemote reports whether err is a RemoteError.
func IsRemote(err error) bool {
	var r *RemoteError
	return errors.As(err, &r)
}

// ToFiber maps an application error onto the HTTP error returned to the UI.
// Backend 4xx statuses pass through; backend 5xx and transport failures
// become 502 so the UI can tell them apart from its own mistakes.
func ToFiber(err error) *fiber.Error {
	var fe *fiber.Error
	if errors.As(err, &fe) {
		return fe
	}
	if errors.Is(err, ErrNoToken) {
		return fiber.NewError(http.StatusUnauthorized, err.Error())
	}
	var v *ValidationError
	if errors.As(err, &v) {
		return fiber.NewError(http.StatusBadRequest, v.Error())
	}
	var r *RemoteError
	if errors.As(err, &r) {
		if r.Status >= 400 && r.Status < 500 {
			return fiber.NewError(r.Status, r.Message)
		}
		return fiber.NewError(http.StatusBadGateway, r.Message)
	}
	return fiber.NewError(http.StatusInternalServerError, err.Error())
}
