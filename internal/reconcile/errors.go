package reconcile

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound matches every *NotFoundError.
	ErrNotFound = errors.New("record not found")

	// ErrOverlayReadOnly is returned by mutations attempted while a remote
	// overlay is being shown.
	ErrOverlayReadOnly = errors.New("remote overlay is read-only")

	// ErrUnknownDeleteRequest is returned when a delete token was never
	// issued, or was already confirmed or cancelled.
	ErrUnknownDeleteRequest = errors.New("unknown delete request")
)

// NotFoundError reports a missing record id in a collection.
type NotFoundError struct {
	Kind string
	ID   int
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %d not found", e.Kind, e.ID)
}

func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}
