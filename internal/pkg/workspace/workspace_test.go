package workspace

import (
	"os"
	"path/filepath"
	"testing"
)

func TestPrepareRecreatesDirectory(t *testing.T) {
	m, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	dir, err := m.Prepare("shop")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	stale := filepath.Join(dir, "deployments", "old.war")
	if err := os.MkdirAll(filepath.Dir(stale), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(stale, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	again, err := m.Prepare("shop")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if again != dir {
		t.Fatalf("expected same directory, got %s and %s", dir, again)
	}
	entries, err := os.ReadDir(again)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Fatalf("expected empty workspace, found %d entries", len(entries))
	}
}

func TestPrepareRejectsEscapes(t *testing.T) {
	m, err := New(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	for _, id := range []string{"", "..", "../other"} {
		if _, err := m.Prepare(id); err == nil {
			t.Fatalf("expected error for identifier %q", id)
		}
	}
}
