package storage

import (
	"context"

	"tunveil/internal/storage/models"
)

// Storage defines the interface for data persistence
type Storage interface {
	// Settings operations. The settings table is a plain key-value store
	// with last-writer-wins semantics and no transactional guarantees;
	// callers must tolerate stale reads between a write and a later read.
	GetSetting(ctx context.Context, key string) (string, error)
	SetSetting(ctx context.Context, key, value string) error
	GetAllSettings(ctx context.Context) (map[string]string, error)

	// Session operations. One row per tunnel profile; the conflict guard
	// scans all rows to detect other active tunnels on the host.
	SaveSession(ctx context.Context, session *models.Session) error
	// GetSession returns (nil, nil) when no row exists for profile.
	GetSession(ctx context.Context, profile string) (*models.Session, error)
	ListSessions(ctx context.Context) ([]*models.Session, error)
	ClearSession(ctx context.Context, profile string) error

	// Close closes the storage connection
	Close() error
}
