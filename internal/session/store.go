package session

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// Store persists a small catalog of session metadata so a session can be
// looked up without walking the filesystem. This is supplemental: trace
// content lives exclusively in each session's traces.jsonl file, so the
// catalog can be deleted without losing any trace data. Nothing in this
// package rebuilds the catalog from those directories.
type Store struct {
	db *sql.DB
}

// NewStore opens (creating if needed) the catalog database at path.
func NewStore(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("session store: create directory: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("session store: open: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("session store: wal: %w", err)
	}
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) migrate() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS sessions (
			session_id      TEXT PRIMARY KEY,
			started_at      TEXT NOT NULL,
			router_strategy TEXT NOT NULL DEFAULT '',
			trace_count     INTEGER NOT NULL DEFAULT 0
		);
	`)
	if err != nil {
		return fmt.Errorf("session store: migrate: %w", err)
	}
	return nil
}

// Record inserts or updates a session's catalog row.
func (s *Store) Record(m Metadata) error {
	_, err := s.db.Exec(`
		INSERT INTO sessions (session_id, started_at, router_strategy, trace_count)
		VALUES (?, ?, ?, 0)
		ON CONFLICT(session_id) DO UPDATE SET router_strategy=excluded.router_strategy
	`, m.SessionID, m.StartedAt.Format(time.RFC3339), m.RouterStrategy)
	if err != nil {
		return fmt.Errorf("session store: record: %w", err)
	}
	return nil
}

// IncrementTraceCount bumps the recorded trace count for id by one, used
// each time a RequestTrace is successfully appended.
func (s *Store) IncrementTraceCount(id ID) error {
	_, err := s.db.Exec(`UPDATE sessions SET trace_count = trace_count + 1 WHERE session_id = ?`, string(id))
	if err != nil {
		return fmt.Errorf("session store: increment trace count: %w", err)
	}
	return nil
}

// CatalogEntry is one row of the session catalog.
type CatalogEntry struct {
	SessionID      string
	StartedAt      time.Time
	RouterStrategy string
	TraceCount     int
}

// ListSessions returns every cataloged session, most recently started
// first.
func (s *Store) ListSessions() ([]CatalogEntry, error) {
	rows, err := s.db.Query(`SELECT session_id, started_at, router_strategy, trace_count FROM sessions ORDER BY started_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("session store: list: %w", err)
	}
	defer rows.Close()

	var out []CatalogEntry
	for rows.Next() {
		var e CatalogEntry
		var startedAt string
		if err := rows.Scan(&e.SessionID, &startedAt, &e.RouterStrategy, &e.TraceCount); err != nil {
			return nil, fmt.Errorf("session store: scan: %w", err)
		}
		e.StartedAt, _ = time.Parse(time.RFC3339, startedAt)
		out = append(out, e)
	}
	return out, rows.Err()
}

// PruneOlderThan deletes the on-disk directory and catalog row for every
// session started before cutoff, returning the pruned session IDs.
func (s *Store) PruneOlderThan(muninnDir string, cutoff time.Time) ([]string, error) {
	entries, err := s.ListSessions()
	if err != nil {
		return nil, err
	}

	var pruned []string
	for _, e := range entries {
		if e.StartedAt.After(cutoff) {
			continue
		}
		if err := os.RemoveAll(Dir(muninnDir, ID(e.SessionID))); err != nil {
			return pruned, fmt.Errorf("session store: remove directory for %s: %w", e.SessionID, err)
		}
		if _, err := s.db.Exec(`DELETE FROM sessions WHERE session_id = ?`, e.SessionID); err != nil {
			return pruned, fmt.Errorf("session store: delete catalog row for %s: %w", e.SessionID, err)
		}
		pruned = append(pruned, e.SessionID)
	}
	return pruned, nil
}

// Close closes the underlying database handle.
func (s *Store) Close() error { return s.db.Close() }
