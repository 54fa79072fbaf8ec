package session

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestStoreRecordAndListSessions(t *testing.T) {
	dir := t.TempDir()
	store, err := NewStore(filepath.Join(dir, "catalog.db"))
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	defer store.Close()

	m := NewMetadata("s1", "heuristic", "claude-sonnet")
	if err := store.Record(m); err != nil {
		t.Fatalf("Record: %v", err)
	}

	entries, err := store.ListSessions()
	if err != nil {
		t.Fatalf("ListSessions: %v", err)
	}
	if len(entries) != 1 || entries[0].SessionID != "s1" {
		t.Fatalf("expected one entry for s1, got %v", entries)
	}
	if entries[0].RouterStrategy != "heuristic" {
		t.Fatalf("expected router_strategy=heuristic, got %s", entries[0].RouterStrategy)
	}
}

func TestStoreIncrementTraceCount(t *testing.T) {
	dir := t.TempDir()
	store, err := NewStore(filepath.Join(dir, "catalog.db"))
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	defer store.Close()

	m := NewMetadata("s1", "llm", "")
	store.Record(m)
	store.IncrementTraceCount("s1")
	store.IncrementTraceCount("s1")

	entries, _ := store.ListSessions()
	if entries[0].TraceCount != 2 {
		t.Fatalf("expected trace_count=2, got %d", entries[0].TraceCount)
	}
}

func TestStorePruneOlderThanDeletesDirectoryAndRow(t *testing.T) {
	muninnDir := t.TempDir()
	store, err := NewStore(filepath.Join(muninnDir, "catalog.db"))
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	defer store.Close()

	old := Metadata{SessionID: "old", StartedAt: time.Now().Add(-48 * time.Hour)}
	recent := Metadata{SessionID: "recent", StartedAt: time.Now()}
	store.Record(old)
	store.Record(recent)

	if _, err := EnsureDir(muninnDir, ID("old")); err != nil {
		t.Fatalf("EnsureDir(old): %v", err)
	}
	if _, err := EnsureDir(muninnDir, ID("recent")); err != nil {
		t.Fatalf("EnsureDir(recent): %v", err)
	}

	pruned, err := store.PruneOlderThan(muninnDir, time.Now().Add(-24*time.Hour))
	if err != nil {
		t.Fatalf("PruneOlderThan: %v", err)
	}
	if len(pruned) != 1 || pruned[0] != "old" {
		t.Fatalf("expected [old] pruned, got %v", pruned)
	}

	if _, err := os.Stat(Dir(muninnDir, ID("old"))); !os.IsNotExist(err) {
		t.Fatalf("expected old session directory to be removed")
	}
	if _, err := os.Stat(Dir(muninnDir, ID("recent"))); err != nil {
		t.Fatalf("expected recent session directory to remain: %v", err)
	}

	entries, _ := store.ListSessions()
	if len(entries) != 1 || entries[0].SessionID != "recent" {
		t.Fatalf("expected only recent to remain in catalog, got %v", entries)
	}
}
