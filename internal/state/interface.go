// Package state provides SQLite-based persistence for task graphs.
package state

import (
	"io"

	"github.com/ordolabs/ordo/pkg/models"
)

// Snapshotter persists and restores the full task registry and edge set.
// Restore must reproduce exactly what was serialized.
type Snapshotter interface {
	SaveSnapshot(tasks []*models.Task) error
	LoadSnapshot() ([]*models.Task, error)
}

// Migrator handles database schema migrations.
type Migrator interface {
	// Migrate applies all pending schema migrations.
	Migrate() error
}

// Store defines the interface for task-graph persistence. It allows
// callers to work with any backend without depending on the concrete
// SQLite implementation.
type Store interface {
	io.Closer
	Migrator
	Snapshotter
	CountByStatus() (map[models.TaskStatus]int, error)
}

// Compile-time verification that DB implements all interfaces.
var (
	_ Store       = (*DB)(nil)
	_ Migrator    = (*DB)(nil)
	_ Snapshotter = (*DB)(nil)
)
