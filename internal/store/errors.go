package store

import (
	"errors"
	"strings"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

// ErrConflict is returned when an insert or update violates a unique
// constraint (duplicate email, duplicate key token).
var ErrConflict = errors.New("conflict")

// conflict wraps err as ErrConflict when the underlying driver reports a
// unique-constraint violation, and returns err unchanged otherwise. Drivers
// phrase the violation differently, so this matches on message fragments.
func conflict(err error) error {
	if err == nil {
		return nil
	}
	lower := strings.ToLower(err.Error())
	switch {
	case strings.Contains(lower, "unique constraint"),
		strings.Contains(lower, "duplicate key"),
		strings.Contains(lower, "duplicate entry"),
		strings.Contains(lower, "constraint failed"):
		return ErrConflict
	}
	return err
}
