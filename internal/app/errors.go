package app

import (
	"errors"
	"fmt"
	"time"
)

// Sentinel errors mapped to HTTP statuses by the server layer. Messages that
// reach end users are written as user-facing text.
var (
	// ErrInvalidCredentials deliberately does not distinguish unknown email
	// from wrong password.
	ErrInvalidCredentials = errors.New("Invalid email or password")

	ErrEmailInUse        = errors.New("Email already in use")
	ErrInvalidResetToken = errors.New("Invalid or expired token")
	ErrNotFound          = errors.New("not found")
	ErrForbidden         = errors.New("Access denied: Insufficient permissions")
	ErrNoSample          = errors.New("No available play sample")
)

// ValidationError carries a user-facing 400 message.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func validationf(format string, args ...any) error {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

// RateLimitError reports an active contact cooldown.
type RateLimitError struct {
	Wait time.Duration
}

// WaitMinutes returns the remaining wait rounded up to whole minutes,
// never less than one.
func (e *RateLimitError) WaitMinutes() int {
	minutes := int((e.Wait + time.Minute - 1) / time.Minute)
	if minutes < 1 {
		minutes = 1
	}
	return minutes
}

func (e *RateLimitError) Error() string {
	minutes := e.WaitMinutes()
	if minutes == 1 {
		return "Please wait 1 more minute before contacting this user again"
	}
	return fmt.Sprintf("Please wait %d more minutes before contacting this user again", minutes)
}
