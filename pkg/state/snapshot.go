package state

import (
	"time"

	"github.com/cfraser/adventure-engine/pkg/world"
)

// WorldSnapshot is an immutable deep copy of a world at a point in time.
// Later mutation of the source world never affects the snapshot.
type WorldSnapshot struct {
	Timestamp time.Time
	Turn      int
	Label     string

	world *world.World
}

// NewSnapshot deep-copies w into a snapshot.
func NewSnapshot(w *world.World, turn int, label string) *WorldSnapshot {
	return &WorldSnapshot{
		Timestamp: time.Now(),
		Turn:      turn,
		Label:     label,
		world:     w.Clone(),
	}
}

// RestoreWorld returns a fresh deep copy of the captured world. Each call
// returns an independent copy, so callers can never mutate the snapshot
// through its return value.
func (s *WorldSnapshot) RestoreWorld() *world.World {
	return s.world.Clone()
}
