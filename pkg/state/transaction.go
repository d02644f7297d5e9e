package state

import (
	"log/slog"

	"github.com/oklog/ulid/v2"

	"github.com/cfraser/adventure-engine/pkg/world"
)

// PreTransactionLabel is the label given to the snapshot captured when a
// transaction starts.
const PreTransactionLabel = "pre_transaction"

// StateTransaction is the all-or-nothing set of changes for exactly one
// caller-initiated action. A transaction terminates exactly once, by
// commit or by rollback, and is immutable afterwards.
type StateTransaction struct {
	ID          ulid.ULID
	Turn        int
	PreSnapshot *WorldSnapshot
	Changes     []*StateChange
	Committed   bool
	RolledBack  bool
}

// Terminal reports whether the transaction has been committed or rolled
// back.
func (t *StateTransaction) Terminal() bool {
	return t.Committed || t.RolledBack
}

// TransactionManager owns at most one in-flight transaction. It records
// changes while the transaction is open, applies them on commit, and
// restores the pre-transaction snapshot on rollback. Not safe for
// concurrent use; callers serialize access.
type TransactionManager struct {
	current *StateTransaction
	logger  *slog.Logger
}

// NewTransactionManager creates a transaction manager.
func NewTransactionManager(logger *slog.Logger) *TransactionManager {
	if logger == nil {
		logger = slog.Default()
	}
	return &TransactionManager{logger: logger}
}

// StartTransaction captures a snapshot of w and opens a fresh empty
// transaction. Fails with ErrTransactionInProgress if the previous
// transaction has not terminated.
func (tm *TransactionManager) StartTransaction(w *world.World, turn int) (*StateTransaction, error) {
	if tm.current != nil && !tm.current.Terminal() {
		return nil, ErrTransactionInProgress
	}

	tm.current = &StateTransaction{
		ID:          newChangeID(),
		Turn:        turn,
		PreSnapshot: NewSnapshot(w, turn, PreTransactionLabel),
	}

	tm.logger.Debug("Transaction started",
		"transaction_id", tm.current.ID.String(),
		"turn", turn)
	return tm.current, nil
}

// RecordChange assigns an id to the operation, appends it to the open
// transaction and returns the full record. No world is touched. Fails
// with ErrNoActiveTransaction if no transaction is open.
func (tm *TransactionManager) RecordChange(op Operation, description string) (*StateChange, error) {
	if tm.current == nil || tm.current.Terminal() {
		return nil, ErrNoActiveTransaction
	}

	change := &StateChange{
		ID:          newChangeID(),
		Turn:        tm.current.Turn,
		Description: description,
		Op:          op,
	}
	tm.current.Changes = append(tm.current.Changes, change)
	return change, nil
}

// Commit clones w, applies every recorded change to the clone in
// recorded order, marks the transaction committed and returns the clone.
// w must be the same world the transaction's snapshot was taken from.
// On an application error the transaction is left open so the caller can
// roll back; the partially mutated clone is discarded.
func (tm *TransactionManager) Commit(w *world.World) (*world.World, error) {
	if tm.current == nil || tm.current.Terminal() {
		return nil, ErrNoActiveTransaction
	}
	if !sameWorldShape(w, tm.current.PreSnapshot.world) {
		return nil, ErrWorldMismatch
	}

	clone := w.Clone()
	idx := clone.Index()
	for _, change := range tm.current.Changes {
		if err := applyChange(clone, idx, change.Op); err != nil {
			return nil, err
		}
	}

	tm.current.Committed = true
	tm.logger.Debug("Transaction committed",
		"transaction_id", tm.current.ID.String(),
		"changes", len(tm.current.Changes))
	return clone, nil
}

// Rollback marks the transaction rolled back and returns a fresh deep
// copy of the pre-transaction world. Fails with ErrNoActiveTransaction
// if no transaction is open or it has already terminated.
func (tm *TransactionManager) Rollback() (*world.World, error) {
	if tm.current == nil || tm.current.Terminal() {
		return nil, ErrNoActiveTransaction
	}

	tm.current.RolledBack = true
	tm.logger.Debug("Transaction rolled back",
		"transaction_id", tm.current.ID.String(),
		"discarded_changes", len(tm.current.Changes))
	return tm.current.PreSnapshot.RestoreWorld(), nil
}

// ChangeDescriptions returns the description of every recorded change in
// order. The just-terminated transaction remains readable until the next
// StartTransaction, so callers can collect descriptions after commit.
func (tm *TransactionManager) ChangeDescriptions() []string {
	if tm.current == nil {
		return nil
	}
	descriptions := make([]string, 0, len(tm.current.Changes))
	for _, change := range tm.current.Changes {
		descriptions = append(descriptions, change.Description)
	}
	return descriptions
}

// sameWorldShape is a cheap identity guard for Commit: committing
// against a world other than the snapshot source is undefined behavior,
// so reject worlds that visibly differ from it.
func sameWorldShape(a, b *world.World) bool {
	return a.Name == b.Name &&
		a.StartingLocation == b.StartingLocation &&
		len(a.Entities) == len(b.Entities)
}
