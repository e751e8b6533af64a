package transport

import (
	"errors"
	"fmt"
	"time"
)

// TransientError marks a delivery failure worth retrying: a platform
// rate limit or a network blip. RetryAfter carries the platform's
// Retry-After hint when one was provided (zero otherwise).
type TransientError struct {
	Err        error
	RetryAfter time.Duration
}

func (e *TransientError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("transient: %v (retry after %s)", e.Err, e.RetryAfter)
	}
	return fmt.Sprintf("transient: %v", e.Err)
}

func (e *TransientError) Unwrap() error { return e.Err }

// PermanentError marks a delivery failure that retrying cannot fix:
// a bad chat id or a message the platform rejected as malformed.
type PermanentError struct {
	Code int // platform error code, 0 if not applicable
	Err  error
}

func (e *PermanentError) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("permanent (code %d): %v", e.Code, e.Err)
	}
	return fmt.Sprintf("permanent: %v", e.Err)
}

func (e *PermanentError) Unwrap() error { return e.Err }

// ValidationError marks a single request's payload as unusable:
// an invoice amount that did not render to an integer, a location
// without coordinates. It never outlives the request that caused it.
type ValidationError struct {
	Code string // machine-readable error code, "validation_error" if empty
	Msg  string
}

func (e *ValidationError) Error() string { return e.Msg }

func (e *ValidationError) ErrorCode() string {
	if e.Code == "" {
		return "validation_error"
	}
	return e.Code
}

func Validationf(format string, args ...any) error {
	return &ValidationError{Msg: fmt.Sprintf(format, args...)}
}

func ValidationCode(code, format string, args ...any) error {
	return &ValidationError{Code: code, Msg: fmt.Sprintf(format, args...)}
}

// IsTransient reports whether err should be retried, and the minimum
// wait the platform asked for (zero when it gave no hint).
func IsTransient(err error) (time.Duration, bool) {
	var te *TransientError
	if errors.As(err, &te) {
		return te.RetryAfter, true
	}
	return 0, false
}
