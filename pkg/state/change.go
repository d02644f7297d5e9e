// Package state implements the transactional mutation protocol for a
// world: snapshots, recorded changes, and all-or-nothing commit/rollback.
package state

import (
	"crypto/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/cfraser/adventure-engine/pkg/world"
)

// ChangeKind discriminates the recorded change variants.
type ChangeKind string

const (
	ChangeFieldMutation  ChangeKind = "field_mutation"
	ChangeEntityAdded    ChangeKind = "entity_added"
	ChangeEntityRemoved  ChangeKind = "entity_removed"
	ChangeNarrativeEvent ChangeKind = "narrative_event"
)

// Operation is one recorded mutation of a world. Concrete types are
// FieldMutation, EntityAdded, EntityRemoved and NarrativeEvent.
type Operation interface {
	Kind() ChangeKind
}

// FieldMutation assigns New to the field addressed by a dot-separated
// path on the entity with EntityID. Old is retained for the record only;
// application is last-write-wins in recorded order.
type FieldMutation struct {
	EntityID string
	Path     string
	Old      any
	New      any
}

func (*FieldMutation) Kind() ChangeKind { return ChangeFieldMutation }

// EntityAdded appends a full entity to the world.
type EntityAdded struct {
	Entity world.Entity
}

func (*EntityAdded) Kind() ChangeKind { return ChangeEntityAdded }

// EntityRemoved deletes the entity with EntityID from the world.
// Removing an already absent entity is a no-op.
type EntityRemoved struct {
	EntityID string
}

func (*EntityRemoved) Kind() ChangeKind { return ChangeEntityRemoved }

// NarrativeEvent records something that happened without mutating any
// entity attribute. It exists so the change log is the single source of
// narration text.
type NarrativeEvent struct {
	EntityID string
	Text     string
}

func (*NarrativeEvent) Kind() ChangeKind { return ChangeNarrativeEvent }

var (
	_ Operation = (*FieldMutation)(nil)
	_ Operation = (*EntityAdded)(nil)
	_ Operation = (*EntityRemoved)(nil)
	_ Operation = (*NarrativeEvent)(nil)
)

// StateChange is one recorded fact inside a transaction. Once recorded
// it is never modified.
type StateChange struct {
	ID          ulid.ULID
	Turn        int
	Description string
	Op          Operation
}

var (
	changeEntropy     = ulid.Monotonic(rand.Reader, 0)
	changeEntropyLock sync.Mutex
)

// newChangeID generates a monotonic ULID, so ids sort in recorded order.
func newChangeID() ulid.ULID {
	changeEntropyLock.Lock()
	defer changeEntropyLock.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now()), changeEntropy)
}
