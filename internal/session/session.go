// Package session allocates the per-run identity and on-disk directory
// layout traces are written under, plus a small catalog indexing sessions
// for operational lookups. Grounded on original_source's
// crates/muninn/src/session.rs.
package session

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

// ID is a session identifier in the form
// "YYYY-MM-DDTHH-MM-SS_xxxx", a timestamp plus a short random suffix —
// sortable by start time and collision-resistant within a second.
type ID string

// Generate produces a new ID from the current time.
func Generate() ID {
	return generateAt(time.Now())
}

func generateAt(t time.Time) ID {
	suffix := uuid.New().String()[:4]
	return ID(fmt.Sprintf("%s_%s", t.UTC().Format("2006-01-02T15-04-05"), suffix))
}

// Dir returns the session directory under muninnDir/sessions/<id>.
func Dir(muninnDir string, id ID) string {
	return filepath.Join(muninnDir, "sessions", string(id))
}

// TracePath returns the path traces for this session are appended to.
func TracePath(muninnDir string, id ID) string {
	return filepath.Join(Dir(muninnDir, id), "traces.jsonl")
}

// Metadata summarizes one session; it is recorded once at startup in
// Store's catalog, which keeps its ID, start time and router strategy.
type Metadata struct {
	SessionID      string    `json:"session_id"`
	StartedAt      time.Time `json:"started_at"`
	RouterStrategy string    `json:"router_strategy,omitempty"`
	RlmModel       string    `json:"rlm_model,omitempty"`
}

// NewMetadata builds metadata for a newly started session.
func NewMetadata(id ID, routerStrategy, rlmModel string) Metadata {
	return Metadata{
		SessionID:      string(id),
		StartedAt:      time.Now(),
		RouterStrategy: routerStrategy,
		RlmModel:       rlmModel,
	}
}

// EnsureDir creates the session directory (and its muninn-dir/sessions
// ancestors) if it does not already exist.
func EnsureDir(muninnDir string, id ID) (string, error) {
	dir := Dir(muninnDir, id)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("session: create directory: %w", err)
	}
	return dir, nil
}
