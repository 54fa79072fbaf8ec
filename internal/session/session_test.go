package session

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestGenerateAtFormat(t *testing.T) {
	id := generateAt(time.Date(2026, 1, 11, 17, 34, 52, 0, time.UTC))
	s := string(id)
	if !strings.HasPrefix(s, "2026-01-11T17-34-52_") {
		t.Fatalf("unexpected session id format: %s", s)
	}
	if len(s) != len("2026-01-11T17-34-52_")+4 {
		t.Fatalf("expected a 4-char random suffix, got %s", s)
	}
}

func TestDirAndTracePath(t *testing.T) {
	id := ID("2026-01-11T17-34-52_a3f2")
	dir := Dir("/tmp/.muninn", id)
	want := filepath.Join("/tmp/.muninn", "sessions", "2026-01-11T17-34-52_a3f2")
	if dir != want {
		t.Fatalf("expected %s, got %s", want, dir)
	}
	if TracePath("/tmp/.muninn", id) != filepath.Join(want, "traces.jsonl") {
		t.Fatalf("unexpected trace path: %s", TracePath("/tmp/.muninn", id))
	}
}

func TestEnsureDirCreatesSessionDirectory(t *testing.T) {
	base := t.TempDir()
	id := Generate()

	dir, err := EnsureDir(base, id)
	if err != nil {
		t.Fatalf("EnsureDir: %v", err)
	}
	if dir != Dir(base, id) {
		t.Fatalf("expected %s, got %s", Dir(base, id), dir)
	}
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		t.Fatalf("expected session directory to exist on disk: %v", err)
	}
}
