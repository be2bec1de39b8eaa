package history

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestAppendAndRead(t *testing.T) {
	l := Open(filepath.Join(t.TempDir(), "history.jsonl"))
	base := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	for i, addr := range []string{"0xA", "0xB", "0xC"} {
		err := l.Append(Entry{
			Timestamp: base.Add(time.Duration(i) * time.Minute),
			Address:   addr,
			Status:    StatusOK,
			Rows:      i,
		})
		if err != nil {
			t.Fatalf("Append: %v", err)
		}
	}

	entries, err := l.Read(0)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(entries))
	}
	if entries[0].Address != "0xC" || entries[2].Address != "0xA" {
		t.Errorf("expected newest first, got %s..%s", entries[0].Address, entries[2].Address)
	}

	two, _ := l.Read(2)
	if len(two) != 2 {
		t.Errorf("Read(2) returned %d entries", len(two))
	}
}

func TestAppendSetsTimestamp(t *testing.T) {
	l := Open(filepath.Join(t.TempDir(), "h.jsonl"))
	if err := l.Append(Entry{Address: "0xA", Status: StatusOK}); err != nil {
		t.Fatal(err)
	}
	entries, _ := l.Read(1)
	if len(entries) != 1 || entries[0].Timestamp.IsZero() {
		t.Errorf("expected a timestamped entry, got %+v", entries)
	}
}

func TestReadMissingFile(t *testing.T) {
	l := Open(filepath.Join(t.TempDir(), "none.jsonl"))
	entries, err := l.Read(10)
	if err != nil || entries != nil {
		t.Errorf("expected nil, nil; got %v, %v", entries, err)
	}
}

func TestReadSkipsBadLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "h.jsonl")
	os.WriteFile(path, []byte("{\"address\":\"0xA\",\"status\":\"ok\"}\nnot json\n\n{\"address\":\"0xB\",\"status\":\"error\"}\n"), 0o644)

	entries, err := Open(path).Read(0)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 2 {
		t.Errorf("expected 2 valid entries, got %d", len(entries))
	}
}

func TestSearch(t *testing.T) {
	l := Open(filepath.Join(t.TempDir(), "h.jsonl"))
	l.Append(Entry{Address: "0xAbc", Status: StatusOK})
	l.Append(Entry{Address: "0xDef", Status: StatusError, Detail: "dune: submit failed: HTTP 401"})
	l.Append(Entry{Address: "0xabc", Status: StatusStale})

	hits, err := l.Search("ABC", 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(hits) != 2 {
		t.Errorf("expected 2 case-insensitive hits, got %d", len(hits))
	}

	hits, _ = l.Search("401", 0)
	if len(hits) != 1 || hits[0].Address != "0xDef" {
		t.Errorf("expected detail match, got %+v", hits)
	}

	hits, _ = l.Search("", 1)
	if len(hits) != 1 {
		t.Errorf("expected count limit, got %d", len(hits))
	}
}

func TestClear(t *testing.T) {
	l := Open(filepath.Join(t.TempDir(), "h.jsonl"))
	l.Append(Entry{Address: "0xA"})

	if err := l.Clear(); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if entries, _ := l.Read(0); len(entries) != 0 {
		t.Errorf("expected empty log, got %d", len(entries))
	}
	if err := l.Clear(); err != nil {
		t.Errorf("second Clear: %v", err)
	}
}

func TestDefaultPath(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/tmp/xdg")
	if got := DefaultPath(); got != "/tmp/xdg/ripple/history.jsonl" {
		t.Errorf("DefaultPath() = %q", got)
	}
}
