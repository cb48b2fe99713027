package ledger

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrRejected covers failed gas estimation, reverted transactions and contract-level refusals.
	ErrRejected = errors.New("ledger rejected transaction")
	// ErrTimeout is returned when the caller's deadline expired before confirmation.
	// The transaction may still be mined later.
	ErrTimeout = errors.New("ledger confirmation timed out")
	// ErrUnsupported is returned for operations the configured ledger cannot perform.
	ErrUnsupported = errors.New("operation not supported by ledger")
)

// wrapWait maps context expiry onto ErrTimeout and leaves other errors unchanged.
func wrapWait(ctx context.Context, op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%s: %w", op, ErrTimeout)
	}
	return fmt.Errorf("%s: %w", op, err)
}

func rejected(op, reason string) error {
	return fmt.Errorf("%s: %w: %s", op, ErrRejected, reason)
}
