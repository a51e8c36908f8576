// Package harden backfills a strict UTC event_datetime_utc field onto
// normalized event records. The pass is idempotent and safe to re-run: a
// record already carrying a strictly-formatted timestamp is left untouched,
// and files are rewritten through a temp file and atomic rename.
package harden

import (
	"bufio"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/supplysignals/supplysig/internal/model"
	"github.com/supplysignals/supplysig/internal/timeparse"
)

// Totals accumulates metric counters across records and files.
type Totals struct {
	Files          int
	Records        int
	ParsedOK       int
	Backfilled     int
	ParseFail      int
	MissingOrError int
}

// Add merges another Totals into this one.
func (t *Totals) Add(o Totals) {
	t.Files += o.Files
	t.Records += o.Records
	t.ParsedOK += o.ParsedOK
	t.Backfilled += o.Backfilled
	t.ParseFail += o.ParseFail
	t.MissingOrError += o.MissingOrError
}

// Hardener applies per-source candidate timestamp fields and naive-timezone
// defaults.
type Hardener struct {
	cfg model.HardenConfig
}

// New returns a Hardener with the given per-source zone defaults.
func New(cfg model.HardenConfig) *Hardener {
	return &Hardener{cfg: cfg}
}

// candidateFields lists the timestamp fields to try for a source, in
// priority order.
func (h *Hardener) candidateFields(source string) []string {
	switch source {
	case "sec":
		return []string{"filing_datetime", "acceptance_datetime", "published_at"}
	case "pr":
		return []string{"pubDate", "published", "updated", "lastBuildDate"}
	}
	return []string{"published_at", "updated", "pubDate", "published"}
}

// naiveZone picks the IANA zone assumed for naive timestamps from a source.
// SEC filings publish in US Eastern wall-clock time.
func (h *Hardener) naiveZone(source string) string {
	switch source {
	case "sec":
		return h.cfg.SECDefaultTZ
	case "pr":
		return h.cfg.PRDefaultTZ
	}
	return h.cfg.FallbackTZ
}

// alreadyStrict reports whether the record carries a strictly-formatted
// event_datetime_utc and needs no work.
func alreadyStrict(rec model.Event) bool {
	v, ok := rec["event_datetime_utc"].(string)
	return ok && timeparse.StrictZISO.MatchString(v)
}

// HardenRecord returns a possibly-modified copy of rec with the strict UTC
// field added when possible. Existing fields are never removed. Backfilling
// from the ingestion timestamp is a distinct, lower-priority source from
// genuine event timestamps and is flagged timestamp_backfilled.
func (h *Hardener) HardenRecord(rec model.Event, totals *Totals) model.Event {
	if alreadyStrict(rec) {
		return rec
	}

	out := make(model.Event, len(rec)+3)
	for k, v := range rec {
		out[k] = v
	}
	source := strings.ToLower(strings.TrimSpace(rec.String("source")))
	fields := h.candidateFields(source)
	naiveTZ := h.naiveZone(source)

	hasCandidates := false
	outOfRange := false
	for _, f := range fields {
		raw := rec.String(f)
		if raw == "" {
			continue
		}
		hasCandidates = true
		t, err := timeparse.ParseToUTC(raw, naiveTZ)
		if err == nil {
			out["event_datetime_utc"] = timeparse.ToISOUTC(t)
			out["timestamp_source"] = f
			out["timestamp_backfilled"] = false
			totals.ParsedOK++
			return out
		}
		outOfRange = timeparse.IsKind(err, timeparse.KindOutOfRange)
	}
	if hasCandidates {
		totals.ParseFail++
		if outOfRange {
			out["timestamp_error"] = string(timeparse.KindOutOfRange)
		} else {
			out["timestamp_error"] = string(timeparse.KindUnparseable)
		}
	}

	if raw := rec.String("ingested_at_utc"); raw != "" {
		t, err := timeparse.ParseToUTC(raw, "UTC")
		if err == nil {
			out["event_datetime_utc"] = timeparse.ToISOUTC(t)
			out["timestamp_source"] = "ingested_at_utc"
			out["timestamp_backfilled"] = true
			totals.Backfilled++
			return out
		}
		totals.ParseFail++
		out["timestamp_error"] = string(timeparse.KindUnparseable)
	}

	if !hasCandidates {
		out["timestamp_error"] = string(timeparse.KindMissing)
	}
	totals.MissingOrError++
	return out
}

// ProcessFile hardens every record in a *.norm.jsonl file in place via a
// temp file and atomic rename. Blank and malformed lines pass through
// unchanged so re-runs are byte-identical.
func (h *Hardener) ProcessFile(path string) (Totals, error) {
	var totals Totals

	in, err := os.Open(path)
	if err != nil {
		return totals, err
	}
	defer in.Close()

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".tmp_*")
	if err != nil {
		return totals, err
	}
	defer func() {
		if tmp != nil {
			tmp.Close()
			os.Remove(tmp.Name())
		}
	}()

	totals.Files = 1
	w := bufio.NewWriter(tmp)
	r := bufio.NewReader(in)
	for {
		raw, readErr := r.ReadString('\n')
		if raw != "" {
			if err := h.hardenLine(w, raw, &totals); err != nil {
				return totals, err
			}
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			return totals, readErr
		}
	}
	if err := w.Flush(); err != nil {
		return totals, err
	}
	if err := tmp.Close(); err != nil {
		tmp = nil
		return totals, err
	}
	name := tmp.Name()
	tmp = nil
	return totals, os.Rename(name, path)
}

// hardenLine rewrites one raw input line. Blank and malformed lines of any
// length pass through verbatim so re-runs stay byte-identical; only
// well-formed records are re-marshaled.
func (h *Hardener) hardenLine(w *bufio.Writer, raw string, totals *Totals) error {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		_, err := w.WriteString(raw)
		return err
	}
	var rec model.Event
	if err := json.Unmarshal([]byte(trimmed), &rec); err != nil {
		totals.ParseFail++
		_, err := w.WriteString(raw)
		return err
	}

	totals.Records++
	hardened := h.HardenRecord(rec, totals)
	data, err := json.Marshal(hardened)
	if err != nil {
		return err
	}
	_, err = w.Write(append(data, '\n'))
	return err
}

// ProcessDir hardens all *.norm.jsonl files under dir.
func (h *Hardener) ProcessDir(dir string) (Totals, error) {
	var totals Totals
	paths, err := filepath.Glob(filepath.Join(dir, "*.norm.jsonl"))
	if err != nil {
		return totals, err
	}
	sort.Strings(paths)
	for _, p := range paths {
		ft, err := h.ProcessFile(p)
		totals.Add(ft)
		if err != nil {
			return totals, err
		}
	}
	return totals, nil
}
