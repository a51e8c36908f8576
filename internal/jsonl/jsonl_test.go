package jsonl

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/supplysignals/supplysig/internal/model"
)

func TestReadFile_TolerantOfGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "in.jsonl")
	content := `{"a":1}
not json

{"b":2}
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	events, skipped, err := ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != 2 {
		t.Errorf("got %d events, want 2", len(events))
	}
	if skipped != 1 {
		t.Errorf("skipped = %d, want 1", skipped)
	}
}

func TestReadFile_OversizedLineCostsOnlyItself(t *testing.T) {
	path := filepath.Join(t.TempDir(), "in.jsonl")
	huge := "garbage " + strings.Repeat("x", 5<<20)
	content := `{"a":1}` + "\n" + huge + "\n" + `{"b":2}` + "\n"
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	events, skipped, err := ReadFile(path)
	if err != nil {
		t.Fatalf("an oversized line must not abort the file: %v", err)
	}
	if len(events) != 2 {
		t.Errorf("got %d events, want 2", len(events))
	}
	if skipped != 1 {
		t.Errorf("skipped = %d, want 1", skipped)
	}
}

func TestWriteFileAtomic_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "out.jsonl")

	in := []model.Event{{"a": "one"}, {"b": "two"}}
	if err := WriteFileAtomic(path, in); err != nil {
		t.Fatal(err)
	}

	events, skipped, err := ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != 2 || skipped != 0 {
		t.Errorf("got %d events (%d skipped), want 2", len(events), skipped)
	}

	// No temp files left behind.
	entries, err := os.ReadDir(filepath.Dir(path))
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Errorf("expected only the output file, found %d entries", len(entries))
	}
}

func TestWriteFileAtomic_Empty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.jsonl")
	if err := WriteFileAtomic(path, nil); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(data) != 0 {
		t.Errorf("empty write should produce an empty file, got %d bytes", len(data))
	}
}
