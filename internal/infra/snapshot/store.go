// Package snapshot implements the Snapshot Store (C11): a crash-only
// record of which datasets were resident in the cache, so an operator
// restarting the daemon can see what was lost rather than silently
// losing it. It never persists the dataset bytes themselves — only
// metadata — matching the core's explicit non-goal of disk persistence
// beyond crash-only snapshots.
//
// Grounded on the teacher's internal/infra/sqlite.DB: WAL-mode
// modernc.org/sqlite, a migrate() step, and a thin repository surface
// over one table.
package snapshot

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // Pure-Go SQLite driver (no CGO required)

	"github.com/plusplusoneplusplus/dfcache/internal/domain"
)

// Store wraps a SQLite connection recording dataset_snapshots rows.
type Store struct {
	db *sql.DB
}

// Open creates or opens the SQLite database at path, enabling WAL mode
// and a 5-second busy timeout.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return nil, fmt.Errorf("create snapshot dir: %w", err)
		}
	}

	dsn := path + "?_journal_mode=WAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	db.SetMaxOpenConns(1) // SQLite is single-writer

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

// Close cleanly shuts down the database.
func (s *Store) Close() error { return s.db.Close() }

func (s *Store) migrate() error {
	_, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS dataset_snapshots (
		id            TEXT PRIMARY KEY,
		created_at    INTEGER NOT NULL,
		rows          INTEGER NOT NULL,
		cols          INTEGER NOT NULL,
		dtypes_json   TEXT NOT NULL,
		memory_bytes  INTEGER NOT NULL,
		ttl_seconds   INTEGER,
		tags_json     TEXT
	)`)
	return err
}

// Record upserts a crash-only snapshot row for meta. Called by the
// manager on every successful store, never on retrieve.
func (s *Store) Record(meta domain.DatasetMetadata) error {
	dtypesJSON, err := json.Marshal(meta.Dtypes)
	if err != nil {
		return fmt.Errorf("marshal dtypes: %w", err)
	}
	var tagsJSON []byte
	if meta.Tags != nil {
		tagsJSON, err = json.Marshal(meta.Tags)
		if err != nil {
			return fmt.Errorf("marshal tags: %w", err)
		}
	}
	var ttl sql.NullInt64
	if meta.TTLSeconds != nil {
		ttl = sql.NullInt64{Int64: *meta.TTLSeconds, Valid: true}
	}

	_, err = s.db.Exec(
		`INSERT INTO dataset_snapshots (id, created_at, rows, cols, dtypes_json, memory_bytes, ttl_seconds, tags_json)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
			created_at=excluded.created_at,
			rows=excluded.rows,
			cols=excluded.cols,
			dtypes_json=excluded.dtypes_json,
			memory_bytes=excluded.memory_bytes,
			ttl_seconds=excluded.ttl_seconds,
			tags_json=excluded.tags_json`,
		meta.ID, meta.CreatedAt.Unix(), meta.Shape.Rows, meta.Shape.Cols,
		string(dtypesJSON), meta.MemoryBytes, ttl, nullableString(tagsJSON),
	)
	return err
}

// Forget removes the snapshot row for id. Called by the manager on
// delete and, through the registry's expiry callback, on TTL expiry.
// Capacity (LRU) evictions do not call it, so their rows remain.
func (s *Store) Forget(id string) error {
	_, err := s.db.Exec(`DELETE FROM dataset_snapshots WHERE id = ?`, id)
	return err
}

// List returns every recorded snapshot, most recent first. On daemon
// startup this tells the operator what was cached before the last
// crash — the data itself is gone, only the shape of the loss is
// recoverable.
func (s *Store) List() ([]domain.DatasetMetadata, error) {
	rows, err := s.db.Query(
		`SELECT id, created_at, rows, cols, dtypes_json, memory_bytes, ttl_seconds, tags_json
		 FROM dataset_snapshots ORDER BY created_at DESC`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.DatasetMetadata
	for rows.Next() {
		m, err := scanSnapshot(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// ClearAll removes every recorded snapshot. Not called by the daemon
// itself — snapshot rows persist through clean restarts too, and are
// only ever removed row-by-row via Forget — but kept as an
// administrative escape hatch for operators resetting a stale store.
func (s *Store) ClearAll() error {
	_, err := s.db.Exec(`DELETE FROM dataset_snapshots`)
	return err
}

func scanSnapshot(rows *sql.Rows) (domain.DatasetMetadata, error) {
	var (
		m            domain.DatasetMetadata
		createdAt    int64
		dtypesJSON   string
		ttl          sql.NullInt64
		tagsJSON     sql.NullString
	)
	if err := rows.Scan(&m.ID, &createdAt, &m.Shape.Rows, &m.Shape.Cols,
		&dtypesJSON, &m.MemoryBytes, &ttl, &tagsJSON); err != nil {
		return domain.DatasetMetadata{}, err
	}
	m.CreatedAt = time.Unix(createdAt, 0)
	if err := json.Unmarshal([]byte(dtypesJSON), &m.Dtypes); err != nil {
		return domain.DatasetMetadata{}, fmt.Errorf("unmarshal dtypes: %w", err)
	}
	if ttl.Valid {
		v := ttl.Int64
		m.TTLSeconds = &v
	}
	if tagsJSON.Valid && tagsJSON.String != "" {
		if err := json.Unmarshal([]byte(tagsJSON.String), &m.Tags); err != nil {
			return domain.DatasetMetadata{}, fmt.Errorf("unmarshal tags: %w", err)
		}
	}
	return m, nil
}

func nullableString(b []byte) sql.NullString {
	if b == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: string(b), Valid: true}
}
