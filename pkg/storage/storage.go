package storage

import (
	"context"

	"github.com/google/uuid"

	"github.com/cfraser/adventure-engine/pkg/session"
	"github.com/cfraser/adventure-engine/pkg/world"
)

// Storage defines a unified interface for all storage operations.
// It combines session persistence (Redis) with world template loading
// (filesystem).
type Storage interface {
	// Health and lifecycle
	Ping(ctx context.Context) error
	Close() error

	// Session operations (Redis-backed)
	SaveSession(ctx context.Context, id uuid.UUID, s *session.Session) error
	LoadSession(ctx context.Context, id uuid.UUID) (*session.Session, error)
	DeleteSession(ctx context.Context, id uuid.UUID) error

	// World template operations (filesystem-backed). Templates are
	// pre-authored worlds used when no generation backend is wanted.
	ListWorldTemplates(ctx context.Context) (map[string]string, error)
	GetWorldTemplate(ctx context.Context, filename string) (*world.World, error)
}
