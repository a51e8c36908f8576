// Package dedupe implements content-addressed event deduplication: a
// canonicalization-sensitive fingerprint plus a TTL-windowed, append-only
// persistent set of seen fingerprints with crash-safe compaction.
package dedupe

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// SeenRecord is one line of the backing log. FirstSeenUTC is immutable after
// creation; LastSeenUTC updates on every re-occurrence within the TTL window.
type SeenRecord struct {
	Hash         string    `json:"hash"`
	FirstSeenUTC time.Time `json:"first_seen_utc"`
	LastSeenUTC  time.Time `json:"last_seen_utc"`
	Key          Key       `json:"key"`
}

// SeenStore is an append-only JSONL dedupe store with an in-memory active
// window. Every Record call appends a full line, never rewriting existing
// ones; this trades storage growth for crash-safety and auditability.
//
// The store assumes one process, one writer, sequential access. A re-entrant
// or multi-process deployment must add external mutual exclusion around the
// backing file.
type SeenStore struct {
	path    string
	ttl     time.Duration
	active  *gocache.Cache
	skipped int
}

// Open loads the backing log at path and reconstructs the in-memory active
// set. Malformed lines are skipped, not errored on; a record is active only
// while now - first_seen_utc < ttl.
func Open(path string, ttl time.Duration) (*SeenStore, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, err
		}
	}
	s := &SeenStore{
		path:   path,
		ttl:    ttl,
		active: gocache.New(gocache.NoExpiration, 0),
	}
	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *SeenStore) load() error {
	f, err := os.Open(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	defer f.Close()

	now := time.Now().UTC()
	r := bufio.NewReader(f)
	for {
		raw, readErr := r.ReadString('\n')
		if line := bytes.TrimSpace([]byte(raw)); len(line) > 0 {
			s.loadLine(line, now)
		}
		if readErr == io.EOF {
			return nil
		}
		if readErr != nil {
			return readErr
		}
	}
}

// loadLine folds one log line into the active set. A line of any size that
// fails to parse costs only itself.
func (s *SeenStore) loadLine(line []byte, now time.Time) {
	var rec SeenRecord
	if err := json.Unmarshal(line, &rec); err != nil {
		s.skipped++
		return
	}
	if rec.Hash == "" || rec.FirstSeenUTC.IsZero() {
		s.skipped++
		return
	}
	if rec.LastSeenUTC.IsZero() {
		rec.LastSeenUTC = rec.FirstSeenUTC
	}
	remaining := s.ttl - now.Sub(rec.FirstSeenUTC)
	if remaining <= 0 {
		return
	}
	cp := rec
	// Later lines for the same hash carry the freshest state and simply
	// replace earlier ones.
	s.active.Set(rec.Hash, &cp, remaining)
}

// Seen reports whether the fingerprint is in the active window. O(1).
func (s *SeenStore) Seen(hash string) bool {
	_, found := s.active.Get(hash)
	return found
}

// Record upserts the fingerprint in the active set and durably appends the
// record's current state to the log. Repeat calls within the TTL update
// last_seen_utc only; first_seen_utc never changes.
func (s *SeenStore) Record(hash string, key Key) error {
	now := time.Now().UTC()
	rec := &SeenRecord{Hash: hash, FirstSeenUTC: now, LastSeenUTC: now, Key: key}
	if v, found := s.active.Get(hash); found {
		rec = v.(*SeenRecord)
		rec.LastSeenUTC = now
	}
	if remaining := s.ttl - now.Sub(rec.FirstSeenUTC); remaining > 0 {
		s.active.Set(hash, rec, remaining)
	}
	return s.appendLine(rec)
}

func (s *SeenStore) appendLine(rec *SeenRecord) (err error) {
	f, err := os.OpenFile(s.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := f.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	_, err = f.Write(append(data, '\n'))
	return err
}

// Compact rewrites the backing file with only records still within TTL,
// replacing it via atomic rename so readers never observe a partial file.
// Callers trigger this opportunistically once FileSize passes a threshold,
// not on every run.
func (s *SeenStore) Compact() (err error) {
	tmp := s.path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return err
	}
	defer func() {
		if f != nil {
			f.Close()
			os.Remove(tmp)
		}
	}()

	now := time.Now().UTC()
	w := bufio.NewWriter(f)
	for _, item := range s.active.Items() {
		rec := item.Object.(*SeenRecord)
		if now.Sub(rec.FirstSeenUTC) >= s.ttl {
			continue
		}
		data, err := json.Marshal(rec)
		if err != nil {
			return err
		}
		if _, err := w.Write(append(data, '\n')); err != nil {
			return err
		}
	}
	if err := w.Flush(); err != nil {
		return err
	}
	if err := f.Close(); err != nil {
		f = nil
		return err
	}
	f = nil
	return os.Rename(tmp, s.path)
}

// FileSize returns the current size of the backing log in bytes, or 0 when
// it does not exist yet.
func (s *SeenStore) FileSize() int64 {
	fi, err := os.Stat(s.path)
	if err != nil {
		return 0
	}
	return fi.Size()
}

// ActiveCount returns the number of fingerprints currently suppressing
// re-emission.
func (s *SeenStore) ActiveCount() int {
	// Items filters expired entries; ItemCount would overcount because the
	// store runs without a cleanup janitor.
	return len(s.active.Items())
}

// SkippedLines returns how many malformed lines the initial load ignored.
func (s *SeenStore) SkippedLines() int {
	return s.skipped
}
