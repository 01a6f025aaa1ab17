package engine

import (
	"errors"
	"fmt"
)

// Error taxonomy for match operations. All of them are terminal from the
// core's point of view; only ErrContention is safe for the caller to retry.
var (
	ErrIllegalTransition = errors.New("illegal transition")
	ErrUnauthorized      = errors.New("unauthorized")
	ErrNotFound          = errors.New("not found")
	ErrContention        = errors.New("contention")
)

func illegal(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrIllegalTransition, fmt.Sprintf(format, args...))
}

func unauthorized(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrUnauthorized, fmt.Sprintf(format, args...))
}
