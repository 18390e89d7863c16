package devices

import (
	"context"
	"errors"
	"fmt"
)

var (
	ErrTimeout = errors.New("grbl: operation timed out")
	ErrClosed  = errors.New("grbl: link closed")
)

// ConnectionError is returned when the serial channel cannot be opened. It is
// fatal: the link never retries on its own.
type ConnectionError struct {
	Port string
	Err  error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("grbl: cannot open %s: %v", e.Port, e.Err)
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}

func deadlineError(op string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s: %w", op, ErrTimeout)
	}
	return fmt.Errorf("%s: %w", op, err)
}
