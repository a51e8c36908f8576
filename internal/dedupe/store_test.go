package dedupe

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func testKey() Key {
	return Key{Source: "pr", Title: "acme corp announces buyback", URL: "https://example.com/x", Date: "2025-10-05"}
}

func TestSeenStore_RecordAndSeen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seen.jsonl")
	store, err := Open(path, 7*24*time.Hour)
	if err != nil {
		t.Fatalf("open: %v", err)
	}

	fp := Fingerprint(testKey())
	if store.Seen(fp) {
		t.Error("fresh store should not have seen anything")
	}
	if err := store.Record(fp, testKey()); err != nil {
		t.Fatalf("record: %v", err)
	}
	if !store.Seen(fp) {
		t.Error("recorded fingerprint should be seen")
	}
	if store.ActiveCount() != 1 {
		t.Errorf("ActiveCount = %d, want 1", store.ActiveCount())
	}
}

func TestSeenStore_PersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seen.jsonl")
	fp := Fingerprint(testKey())

	store, err := Open(path, 7*24*time.Hour)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := store.Record(fp, testKey()); err != nil {
		t.Fatalf("record: %v", err)
	}

	reopened, err := Open(path, 7*24*time.Hour)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	if !reopened.Seen(fp) {
		t.Error("fingerprint should survive a reopen")
	}
}

func TestSeenStore_ExpiredRecordsNotLoaded(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seen.jsonl")
	old := time.Now().UTC().Add(-10 * 24 * time.Hour)
	rec := SeenRecord{Hash: "abc", FirstSeenUTC: old, LastSeenUTC: old, Key: testKey()}
	writeLines(t, path, rec)

	store, err := Open(path, 7*24*time.Hour)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if store.Seen("abc") {
		t.Error("record past TTL should not be active")
	}
	if store.ActiveCount() != 0 {
		t.Errorf("ActiveCount = %d, want 0", store.ActiveCount())
	}
}

func TestSeenStore_RepeatKeepsFirstSeen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seen.jsonl")
	store, err := Open(path, 7*24*time.Hour)
	if err != nil {
		t.Fatalf("open: %v", err)
	}

	fp := Fingerprint(testKey())
	if err := store.Record(fp, testKey()); err != nil {
		t.Fatalf("record: %v", err)
	}
	time.Sleep(10 * time.Millisecond)
	if err := store.Record(fp, testKey()); err != nil {
		t.Fatalf("record again: %v", err)
	}

	// The log should hold two lines for the same hash with identical
	// first_seen_utc and a non-decreasing last_seen_utc.
	recs := readLines(t, path)
	if len(recs) != 2 {
		t.Fatalf("expected 2 log lines, got %d", len(recs))
	}
	if !recs[0].FirstSeenUTC.Equal(recs[1].FirstSeenUTC) {
		t.Error("first_seen_utc must be immutable across re-occurrences")
	}
	if recs[1].LastSeenUTC.Before(recs[0].LastSeenUTC) {
		t.Error("last_seen_utc should not go backwards")
	}
}

func TestSeenStore_MalformedLinesSkipped(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seen.jsonl")
	now := time.Now().UTC()
	good := SeenRecord{Hash: "good", FirstSeenUTC: now, LastSeenUTC: now, Key: testKey()}
	data, _ := json.Marshal(good)
	content := "not json at all\n" + string(data) + "\n{\"hash\":\"\"}\n"
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	store, err := Open(path, 7*24*time.Hour)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if !store.Seen("good") {
		t.Error("valid record should load despite surrounding garbage")
	}
	if store.SkippedLines() != 2 {
		t.Errorf("SkippedLines = %d, want 2", store.SkippedLines())
	}
}

func TestSeenStore_OversizedLineCostsOnlyItself(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seen.jsonl")
	now := time.Now().UTC()
	good := SeenRecord{Hash: "good", FirstSeenUTC: now, LastSeenUTC: now, Key: testKey()}
	data, _ := json.Marshal(good)
	huge := "garbage " + strings.Repeat("x", 2<<20)
	content := string(data) + "\n" + huge + "\n"
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	store, err := Open(path, 7*24*time.Hour)
	if err != nil {
		t.Fatalf("an oversized line must not abort the load: %v", err)
	}
	if !store.Seen("good") {
		t.Error("valid record should load despite the oversized line")
	}
	if store.SkippedLines() != 1 {
		t.Errorf("SkippedLines = %d, want 1", store.SkippedLines())
	}
}

func TestSeenStore_CompactDropsExpired(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seen.jsonl")
	now := time.Now().UTC()
	fresh := SeenRecord{Hash: "fresh", FirstSeenUTC: now, LastSeenUTC: now, Key: testKey()}
	stale := SeenRecord{Hash: "stale", FirstSeenUTC: now.Add(-10 * 24 * time.Hour), LastSeenUTC: now, Key: testKey()}
	writeLines(t, path, fresh, stale, fresh, fresh)

	store, err := Open(path, 7*24*time.Hour)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	before := store.FileSize()
	if err := store.Compact(); err != nil {
		t.Fatalf("compact: %v", err)
	}
	if store.FileSize() >= before {
		t.Errorf("compaction should shrink the file: %d -> %d", before, store.FileSize())
	}

	recs := readLines(t, path)
	if len(recs) != 1 || recs[0].Hash != "fresh" {
		t.Errorf("compacted file should hold exactly the fresh record, got %d lines", len(recs))
	}
}

func TestSeenStore_ZeroTTL(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seen.jsonl")
	store, err := Open(path, 0)
	if err != nil {
		t.Fatalf("open: %v", err)
	}

	fp := Fingerprint(testKey())
	if err := store.Record(fp, testKey()); err != nil {
		t.Fatalf("record: %v", err)
	}
	// A zero TTL disables suppression but still journals the occurrence.
	if store.Seen(fp) {
		t.Error("zero TTL should never suppress")
	}
	if len(readLines(t, path)) != 1 {
		t.Error("occurrence should still be journaled")
	}
}

func writeLines(t *testing.T, path string, recs ...SeenRecord) {
	t.Helper()
	var sb strings.Builder
	for _, rec := range recs {
		data, err := json.Marshal(rec)
		if err != nil {
			t.Fatal(err)
		}
		sb.Write(data)
		sb.WriteByte('\n')
	}
	if err := os.WriteFile(path, []byte(sb.String()), 0644); err != nil {
		t.Fatal(err)
	}
}

func readLines(t *testing.T, path string) []SeenRecord {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	var recs []SeenRecord
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		if len(sc.Bytes()) == 0 {
			continue
		}
		var rec SeenRecord
		if err := json.Unmarshal(sc.Bytes(), &rec); err != nil {
			t.Fatalf("bad line in log: %v", err)
		}
		recs = append(recs, rec)
	}
	return recs
}
