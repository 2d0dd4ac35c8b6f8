package admission

import (
	"errors"
	"fmt"
	"net/http"
)

// Code is the stable machine-readable reason an admission request was rejected
type Code string

const (
	// CodeSlotFull means the requested time slot is at capacity; the client should
	// pick a different time rather than retry
	CodeSlotFull Code = "SLOT_FULL"
	// CodeInvalidTime means the requested time is in the past or malformed
	CodeInvalidTime Code = "INVALID_TIME"
	// CodeSellerLimit means the seller already holds a conflicting or excessive
	// reservation
	CodeSellerLimit Code = "SELLER_LIMIT"
	// CodeLockTimeout means the slot lock could not be acquired in time; no state
	// was created and the request is safe to retry as-is
	CodeLockTimeout Code = "LOCK_TIMEOUT"
)

// Error is an admission rejection with a stable code, returned synchronously to the
// caller
type Error struct {
	Code    Code   `json:"code"`
	Message string `json:"message"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func NewError(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// HTTPStatus maps an admission code onto the status the HTTP surface responds with
func (c Code) HTTPStatus() int {
	switch c {
	case CodeInvalidTime:
		return http.StatusBadRequest
	case CodeLockTimeout:
		return http.StatusServiceUnavailable
	}
	return http.StatusConflict
}

// ErrLockTimeout is returned by a Store when the per-slot lock could not be acquired
// within its bounded wait. The controller retries a small number of times before
// surfacing CodeLockTimeout to the caller.
var ErrLockTimeout = errors.New("timed out waiting for slot lock")

// ErrMissingTitle rejects a reservation payload without a title. It's a malformed
// request rather than an admission outcome, so it carries no admission code and the
// HTTP surface answers with a plain 400.
var ErrMissingTitle = errors.New("title is required")

// Sentinel errors for cancellation, mapped to HTTP statuses by the server
var (
	ErrNotFound      = errors.New("no such broadcast")
	ErrNotOwner      = errors.New("broadcast belongs to another seller")
	ErrNotCancelable = errors.New("broadcast is not in a cancelable state")
)
