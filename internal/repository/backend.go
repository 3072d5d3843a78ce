// Package repository defines storage interfaces implemented by concrete backends.
package repository

import (
	"context"

	"github.com/and161185/goph-vault/internal/model"
)

// Backend persists whole vault snapshots. Implementations are independent
// replicas; nothing here merges or reconciles them.
type Backend interface {
	// Load returns the persisted snapshot. A missing resource yields an empty
	// snapshot, never an error.
	Load(ctx context.Context) (*model.Snapshot, error)
	// Save replaces the persisted snapshot with s.
	Save(ctx context.Context, s *model.Snapshot) error
	// Probe checks the backend is reachable and writable without changing it.
	Probe(ctx context.Context) error
}

// Purger is implemented by backends that can delete their persisted snapshot.
type Purger interface {
	// Purge removes the snapshot. Purging a missing snapshot is not an error.
	Purge(ctx context.Context) error
}
