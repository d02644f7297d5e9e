package state

import (
	"errors"
	"fmt"
)

// Protocol errors. Calling StartTransaction, RecordChange, Commit or
// Rollback out of order indicates an orchestration bug, not a gameplay
// condition; callers must treat these as fatal.
var (
	ErrTransactionInProgress = errors.New("transaction already in progress")
	ErrNoActiveTransaction   = errors.New("no active transaction")
	ErrWorldMismatch         = errors.New("commit world does not match transaction snapshot")
)

// IsInvariantViolation reports whether err is a transaction protocol
// violation rather than a recoverable gameplay failure.
func IsInvariantViolation(err error) bool {
	return errors.Is(err, ErrTransactionInProgress) ||
		errors.Is(err, ErrNoActiveTransaction) ||
		errors.Is(err, ErrWorldMismatch)
}

// EntityNotFoundError reports a change that references an entity absent
// from the world it is being applied to.
type EntityNotFoundError struct {
	EntityID string
}

func (e *EntityNotFoundError) Error() string {
	return fmt.Sprintf("entity %q not found in world", e.EntityID)
}
