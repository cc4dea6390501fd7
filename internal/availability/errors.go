package availability

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrUserNotFound      = fmt.Errorf("user %w", ErrNotFound)
	ErrSlotNotFound      = fmt.Errorf("slot %w", ErrNotFound)
	ErrWriteConflict     = errors.New("conflicting write, reload and retry")
	ErrSlotUnavailable   = errors.New("slot already taken")
	ErrAuthRequired      = errors.New("authentication required")
	ErrRemoteUnavailable = errors.New("backing store unavailable")
	ErrInvalidInput      = errors.New("invalid input")
)

// remoteErr classifies a collaborator failure that is not one of ours.
func remoteErr(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrRemoteUnavailable, op, err)
}

func isDomainErr(err error) bool {
	return errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrWriteConflict) ||
		errors.Is(err, ErrSlotUnavailable) ||
		errors.Is(err, ErrInvalidInput)
}
