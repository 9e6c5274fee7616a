// Package state provides SQLite-based persistence for task graphs.
// A snapshot stores the full task registry and dependency edge set and
// restores them with full fidelity after a process restart.
package state

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/ordolabs/ordo/pkg/models"
)

// DB wraps an SQLite database connection with task snapshot operations.
type DB struct {
	conn *sql.DB
	path string
	mu   sync.Mutex
}

// DefaultDBPath returns the default database location under XDG data.
func DefaultDBPath() string {
	dataDir := os.Getenv("XDG_DATA_HOME")
	if dataDir == "" {
		home, _ := os.UserHomeDir()
		dataDir = filepath.Join(home, ".local", "share")
	}
	return filepath.Join(dataDir, "ordo", "ordo.db")
}

// Open opens an SQLite database at the given path.
// It creates the parent directories if they don't exist.
// WAL mode is enabled for concurrent reads.
func Open(path string) (*DB, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}
	if _, err := conn.Exec("PRAGMA foreign_keys=ON"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}

	return &DB{conn: conn, path: path}, nil
}

// Path returns the database file path.
func (db *DB) Path() string {
	return db.path
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Migrate applies the schema. Idempotent.
func (db *DB) Migrate() error {
	db.mu.Lock()
	defer db.mu.Unlock()

	schema := `
	CREATE TABLE IF NOT EXISTS tasks (
		id TEXT PRIMARY KEY,
		status TEXT NOT NULL,
		priority REAL NOT NULL,
		input TEXT NOT NULL DEFAULT '',
		result TEXT NOT NULL DEFAULT '',
		error TEXT NOT NULL DEFAULT '',
		metadata TEXT NOT NULL DEFAULT '{}',
		created_at TEXT NOT NULL,
		started_at TEXT,
		completed_at TEXT,
		seq INTEGER NOT NULL
	);
	CREATE TABLE IF NOT EXISTS task_deps (
		task_id TEXT NOT NULL REFERENCES tasks(id) ON DELETE CASCADE,
		depends_on TEXT NOT NULL,
		PRIMARY KEY (task_id, depends_on)
	);
	CREATE INDEX IF NOT EXISTS idx_tasks_status ON tasks(status);
	`
	if _, err := db.conn.Exec(schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

// SaveSnapshot replaces the stored snapshot with the given tasks and
// their dependency edges, atomically.
func (db *DB) SaveSnapshot(tasks []*models.Task) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("begin snapshot: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM task_deps"); err != nil {
		return fmt.Errorf("clear deps: %w", err)
	}
	if _, err := tx.Exec("DELETE FROM tasks"); err != nil {
		return fmt.Errorf("clear tasks: %w", err)
	}

	taskStmt, err := tx.Prepare(`
		INSERT INTO tasks (id, status, priority, input, result, error, metadata, created_at, started_at, completed_at, seq)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare task insert: %w", err)
	}
	defer taskStmt.Close()

	depStmt, err := tx.Prepare("INSERT INTO task_deps (task_id, depends_on) VALUES (?, ?)")
	if err != nil {
		return fmt.Errorf("prepare dep insert: %w", err)
	}
	defer depStmt.Close()

	for _, t := range tasks {
		metadata, err := json.Marshal(t.Metadata)
		if err != nil {
			return fmt.Errorf("encode metadata of %s: %w", t.ID, err)
		}
		if _, err := taskStmt.Exec(
			t.ID, string(t.Status), t.Priority, t.Input, t.Result, t.Error,
			string(metadata), formatTime(&t.CreatedAt), formatTime(t.StartedAt),
			formatTime(t.CompletedAt), t.Seq,
		); err != nil {
			return fmt.Errorf("insert task %s: %w", t.ID, err)
		}
		for _, depID := range t.DependsOn {
			if _, err := depStmt.Exec(t.ID, depID); err != nil {
				return fmt.Errorf("insert dep %s -> %s: %w", t.ID, depID, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit snapshot: %w", err)
	}
	return nil
}

// LoadSnapshot returns every stored task with its dependency edges, in
// creation order.
func (db *DB) LoadSnapshot() ([]*models.Task, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	rows, err := db.conn.Query(`
		SELECT id, status, priority, input, result, error, metadata, created_at, started_at, completed_at, seq
		FROM tasks ORDER BY seq`)
	if err != nil {
		return nil, fmt.Errorf("query tasks: %w", err)
	}
	defer rows.Close()

	var tasks []*models.Task
	byID := make(map[string]*models.Task)
	for rows.Next() {
		var t models.Task
		var status, metadata, createdAt string
		var startedAt, completedAt sql.NullString
		if err := rows.Scan(&t.ID, &status, &t.Priority, &t.Input, &t.Result,
			&t.Error, &metadata, &createdAt, &startedAt, &completedAt, &t.Seq); err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		t.Status = models.TaskStatus(status)
		if metadata != "" && metadata != "null" {
			if err := json.Unmarshal([]byte(metadata), &t.Metadata); err != nil {
				return nil, fmt.Errorf("decode metadata of %s: %w", t.ID, err)
			}
		}
		if t.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, fmt.Errorf("parse created_at of %s: %w", t.ID, err)
		}
		if startedAt.Valid {
			ts, err := parseTime(startedAt.String)
			if err != nil {
				return nil, fmt.Errorf("parse started_at of %s: %w", t.ID, err)
			}
			t.StartedAt = &ts
		}
		if completedAt.Valid {
			ts, err := parseTime(completedAt.String)
			if err != nil {
				return nil, fmt.Errorf("parse completed_at of %s: %w", t.ID, err)
			}
			t.CompletedAt = &ts
		}
		tasks = append(tasks, &t)
		byID[t.ID] = &t
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tasks: %w", err)
	}

	depRows, err := db.conn.Query("SELECT task_id, depends_on FROM task_deps ORDER BY task_id, depends_on")
	if err != nil {
		return nil, fmt.Errorf("query deps: %w", err)
	}
	defer depRows.Close()

	for depRows.Next() {
		var taskID, depID string
		if err := depRows.Scan(&taskID, &depID); err != nil {
			return nil, fmt.Errorf("scan dep: %w", err)
		}
		if t, ok := byID[taskID]; ok {
			t.DependsOn = append(t.DependsOn, depID)
		}
	}
	if err := depRows.Err(); err != nil {
		return nil, fmt.Errorf("iterate deps: %w", err)
	}

	return tasks, nil
}

// CountByStatus returns the number of stored tasks per status.
func (db *DB) CountByStatus() (map[models.TaskStatus]int, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	rows, err := db.conn.Query("SELECT status, COUNT(*) FROM tasks GROUP BY status")
	if err != nil {
		return nil, fmt.Errorf("query counts: %w", err)
	}
	defer rows.Close()

	counts := make(map[models.TaskStatus]int)
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("scan count: %w", err)
		}
		counts[models.TaskStatus(status)] = n
	}
	return counts, rows.Err()
}

// formatTime renders a timestamp as RFC 3339 with nanoseconds, or nil
// so SQL NULL round-trips for unset times.
func formatTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.Format(time.RFC3339Nano)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, s)
}
