package service

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound mirrors store.ErrNotFound at the service boundary.
	ErrNotFound = errors.New("not found")

	// ErrConflict reports a uniqueness violation (duplicate key token or
	// duplicate admin email).
	ErrConflict = errors.New("conflict")

	// ErrInvalidCredentials covers both unknown-email and wrong-password
	// logins so the response never reveals which one failed.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// Key check outcomes. ErrKeyUnknown means the presented key matches no
	// issued key attached to a user; the other two carry the key's state.
	ErrKeyUnknown  = errors.New("unknown api key")
	ErrKeyInactive = errors.New("api key inactive")
	ErrKeyExpired  = errors.New("api key expired")
)

// ValidationError reports a rejected request payload. Its message is safe to
// return to the client verbatim.
type ValidationError struct {
	msg string
}

func (e *ValidationError) Error() string { return e.msg }

// Validationf builds a ValidationError with a formatted message.
func Validationf(format string, args ...interface{}) error {
	return &ValidationError{msg: fmt.Sprintf(format, args...)}
}

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
