// Package jsonl reads and writes newline-delimited JSON files. Readers are
// tolerant: malformed lines are counted and skipped, never fatal, so one bad
// record cannot abort a batch. Rewrites go through a temp file and an atomic
// rename.
package jsonl

import (
	"bufio"
	"bytes"
	"encoding/json"
	"io"
	"os"
	"path/filepath"

	"github.com/supplysignals/supplysig/internal/model"
)

// ReadFile reads every well-formed JSON object line from path. The second
// return is the number of malformed lines skipped. Lines carry no length cap;
// a bad line of any size costs only itself, never the batch.
func ReadFile(path string) ([]model.Event, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, err
	}
	defer f.Close()

	var (
		events  []model.Event
		skipped int
	)
	r := bufio.NewReader(f)
	for {
		raw, readErr := r.ReadString('\n')
		if line := bytes.TrimSpace([]byte(raw)); len(line) > 0 {
			var ev model.Event
			if err := json.Unmarshal(line, &ev); err != nil {
				skipped++
			} else {
				events = append(events, ev)
			}
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			return events, skipped, readErr
		}
	}
	return events, skipped, nil
}

// WriteFileAtomic writes one JSON line per record to a temp file in the
// target directory, then renames it over path.
func WriteFileAtomic(path string, records []model.Event) (err error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".tmp_*")
	if err != nil {
		return err
	}
	defer func() {
		if tmp != nil {
			tmp.Close()
			os.Remove(tmp.Name())
		}
	}()

	w := bufio.NewWriter(tmp)
	for _, rec := range records {
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
	if err := tmp.Close(); err != nil {
		tmp = nil
		return err
	}
	name := tmp.Name()
	tmp = nil
	return os.Rename(name, path)
}
