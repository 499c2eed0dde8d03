// Package store provides a SQLite-backed history of generation results.
// Each persisted record is keyed by the opaque subject that made the
// request, so the history endpoint can return a caller's own generations
// across server restarts.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // register "sqlite" driver
)

// Record is one persisted generation.
type Record struct {
	// ID is the record's UUID. Assigned on save when empty.
	ID string `json:"id"`
	// Subject is the opaque authenticated-caller identity the record belongs
	// to. Never serialized: history responses are already scoped to it.
	Subject string `json:"-"`
	// Description is the request text the generation answered.
	Description string `json:"description"`
	// Provider is the cloud provider the code targets.
	Provider string `json:"provider"`
	// Explanation is the generation summary.
	Explanation string `json:"explanation"`
	// EstimatedCost is the cost label from the generation metadata.
	EstimatedCost string `json:"estimated_cost"`
	// FileHierarchy is the rendered project tree.
	FileHierarchy string `json:"file_hierarchy"`
	// Resources lists the generated resource types.
	Resources []string `json:"resources"`
	// Files is the generated file list as a pre-marshaled JSON array, so the
	// store does not depend on the pipeline's result types.
	Files json.RawMessage `json:"files"`
	// CreatedAt is when the record was persisted. Assigned on save when zero.
	CreatedAt time.Time `json:"created_at"`
}

// GenerationStore persists and retrieves generation history. Implementations
// must be safe for concurrent use.
type GenerationStore interface {
	// Save persists one generation record. Callers treat this as
	// fire-and-forget: a save failure never fails the generation itself.
	Save(ctx context.Context, rec Record) error
	// Recent returns the subject's most recent records, newest first.
	Recent(ctx context.Context, subject string, n int) ([]Record, error)
	// Ping reports whether the underlying database is reachable.
	Ping(ctx context.Context) error
	// Close releases any resources held by the store.
	Close() error
}

// SQLiteStore is a GenerationStore backed by a local SQLite database.
type SQLiteStore struct {
	// db is the underlying database connection pool.
	db *sql.DB
}

// DefaultDBPath returns the default path for the history database. It
// resolves to ~/.terracoder/history.db, creating the directory if needed.
func DefaultDBPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("store: could not determine home directory: %w", err)
	}
	dir := filepath.Join(home, ".terracoder")
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", fmt.Errorf("store: could not create %s: %w", dir, err)
	}
	return filepath.Join(dir, "history.db"), nil
}

// Open opens (or creates) a SQLiteStore at the given path and runs the schema
// migration. Use ":memory:" for an in-memory database in tests.
func Open(path string) (*SQLiteStore, error) {
	// WAL mode improves concurrent read performance and is safe for single-host use.
	dsn := path + "?_journal_mode=WAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", path, err)
	}
	// Limit to a single writer connection to avoid SQLITE_BUSY under concurrent writes.
	db.SetMaxOpenConns(1)

	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// migrate creates the schema if it does not already exist.
func (s *SQLiteStore) migrate() error {
	const ddl = `
CREATE TABLE IF NOT EXISTS generations (
    id             TEXT    PRIMARY KEY,
    subject        TEXT    NOT NULL,
    description    TEXT    NOT NULL,
    provider       TEXT    NOT NULL,
    explanation    TEXT    NOT NULL DEFAULT '',
    estimated_cost TEXT    NOT NULL DEFAULT '',
    file_hierarchy TEXT    NOT NULL DEFAULT '',
    resources      TEXT    NOT NULL DEFAULT '[]',
    files          TEXT    NOT NULL DEFAULT '[]',
    created_at     INTEGER NOT NULL  -- Unix timestamp (seconds)
);
CREATE INDEX IF NOT EXISTS idx_generations_subject_created
    ON generations (subject, created_at);
`
	if _, err := s.db.Exec(ddl); err != nil {
		return fmt.Errorf("store: migrate: %w", err)
	}
	return nil
}

// Save persists one generation record, assigning an ID and timestamp when
// the caller left them empty.
func (s *SQLiteStore) Save(ctx context.Context, rec Record) error {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}
	if rec.Files == nil {
		rec.Files = json.RawMessage("[]")
	}
	if rec.Resources == nil {
		rec.Resources = []string{}
	}
	resources, err := json.Marshal(rec.Resources)
	if err != nil {
		return fmt.Errorf("store: save: encoding resources: %w", err)
	}

	const q = `INSERT INTO generations
    (id, subject, description, provider, explanation, estimated_cost, file_hierarchy, resources, files, created_at)
    VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	if _, err := s.db.ExecContext(ctx, q,
		rec.ID, rec.Subject, rec.Description, rec.Provider, rec.Explanation,
		rec.EstimatedCost, rec.FileHierarchy, string(resources), string(rec.Files),
		rec.CreatedAt.Unix(),
	); err != nil {
		return fmt.Errorf("store: save: %w", err)
	}
	return nil
}

// Recent returns the subject's most recent records, newest first. Ties on
// the second-resolution timestamp break on insertion order via rowid, so the
// ordering stays deterministic. n defaults to 10 when not positive.
func (s *SQLiteStore) Recent(ctx context.Context, subject string, n int) ([]Record, error) {
	if n <= 0 {
		n = 10
	}

	const q = `
SELECT id, description, provider, explanation, estimated_cost, file_hierarchy, resources, files, created_at
FROM   generations
WHERE  subject = ?
ORDER  BY created_at DESC, rowid DESC
LIMIT  ?`

	rows, err := s.db.QueryContext(ctx, q, subject, n)
	if err != nil {
		return nil, fmt.Errorf("store: recent: %w", err)
	}
	defer rows.Close()

	var recs []Record
	for rows.Next() {
		var (
			rec       Record
			resources string
			files     string
			ts        int64
		)
		if err := rows.Scan(&rec.ID, &rec.Description, &rec.Provider, &rec.Explanation,
			&rec.EstimatedCost, &rec.FileHierarchy, &resources, &files, &ts); err != nil {
			return nil, fmt.Errorf("store: recent scan: %w", err)
		}
		if err := json.Unmarshal([]byte(resources), &rec.Resources); err != nil {
			return nil, fmt.Errorf("store: recent: decoding resources for %s: %w", rec.ID, err)
		}
		rec.Subject = subject
		rec.Files = json.RawMessage(files)
		rec.CreatedAt = time.Unix(ts, 0)
		recs = append(recs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: recent rows: %w", err)
	}
	return recs, nil
}

// Ping reports whether the database file is reachable and responsive.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("store: ping: %w", err)
	}
	return nil
}

// Close releases the database connection pool.
func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("store: close: %w", err)
	}
	return nil
}
