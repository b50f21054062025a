package rooms

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when the room does not exist.
	ErrNotFound = errors.New("room does not exist")
	// ErrUnauthorized is returned when a private room's password does not match.
	ErrUnauthorized = errors.New("wrong password")
	// ErrCapacityExceeded is returned when the room has no free seat.
	ErrCapacityExceeded = errors.New("room is full")
)

// ValidationError reports an invalid room field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s %s", e.Field, e.Reason)
}
