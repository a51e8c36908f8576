// Package detect runs the rule-scoring stage over normalized events and
// emits signal records, gated by the dedupe store at the point of emission:
// only events that pass the scoring threshold are fingerprinted, so
// suppressed or low-scoring events cost no hashing work.
package detect

import (
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/supplysignals/supplysig/internal/dedupe"
	"github.com/supplysignals/supplysig/internal/jsonl"
	"github.com/supplysignals/supplysig/internal/model"
	"github.com/supplysignals/supplysig/internal/rules"
)

// Detector scores normalized events and writes dedupe-gated signal files.
// A nil Store disables dedupe entirely.
type Detector struct {
	Rules            *rules.Ruleset
	Store            *dedupe.SeenStore
	Threshold        int
	CompactThreshold int64
	Log              zerolog.Logger
}

// Result counts one stage invocation.
type Result struct {
	Files      int
	Records    int
	Emitted    int
	Suppressed int
	Skipped    int // malformed input lines
}

func (r *Result) add(o Result) {
	r.Files += o.Files
	r.Records += o.Records
	r.Emitted += o.Emitted
	r.Suppressed += o.Suppressed
	r.Skipped += o.Skipped
}

// ProcessFile scores every record in one normalized file and writes the
// emitted signals to outPath. The output is a full-file rewrite, so a fully
// deduplicated re-run produces an empty file rather than stale signals.
func (d *Detector) ProcessFile(inPath, outPath string) (Result, error) {
	var res Result
	res.Files = 1

	events, skipped, err := jsonl.ReadFile(inPath)
	if err != nil {
		return res, err
	}
	res.Skipped = skipped
	res.Records = len(events)

	signals := make([]model.Event, 0, len(events))
	for _, ev := range events {
		text := joinNonEmpty(ev.String("title"), ev.String("body"))
		hits := d.Rules.HitTags(text)
		score := d.Rules.ScoreHits(hits, ev.String("event_kind"), ev.String("event_subtype"))
		if score < d.Threshold || len(hits) == 0 {
			continue
		}

		if d.Store != nil {
			key := dedupe.KeyFor(ev, time.Now())
			fp := dedupe.Fingerprint(key)
			if d.Store.Seen(fp) {
				res.Suppressed++
				continue
			}
			if err := d.Store.Record(fp, key); err != nil {
				// Emission still happens; a write failure here only risks a
				// duplicate alert later, never a lost one.
				d.Log.Warn().Err(err).Str("fingerprint", fp).Msg("dedupe record failed")
			}
		}

		signals = append(signals, signalFor(ev, score, hits))
		res.Emitted++
	}

	if err := jsonl.WriteFileAtomic(outPath, signals); err != nil {
		return res, err
	}

	if d.Store != nil && d.CompactThreshold > 0 && d.Store.FileSize() > d.CompactThreshold {
		d.Log.Info().Int64("bytes", d.Store.FileSize()).Msg("compacting dedupe state")
		if err := d.Store.Compact(); err != nil {
			d.Log.Warn().Err(err).Msg("dedupe compaction failed")
		}
	}
	return res, nil
}

// ProcessDir runs ProcessFile over every *.norm.jsonl in inDir, writing
// matching *.signals.jsonl files into outDir.
func (d *Detector) ProcessDir(inDir, outDir string) (Result, error) {
	var total Result
	paths, err := filepath.Glob(filepath.Join(inDir, "*.norm.jsonl"))
	if err != nil {
		return total, err
	}
	sort.Strings(paths)
	for _, p := range paths {
		name := strings.TrimSuffix(filepath.Base(p), ".norm.jsonl") + ".signals.jsonl"
		outPath := filepath.Join(outDir, name)
		res, err := d.ProcessFile(p, outPath)
		total.add(res)
		if err != nil {
			return total, err
		}
		d.Log.Info().
			Str("file", filepath.Base(p)).
			Int("emitted", res.Emitted).
			Int("suppressed", res.Suppressed).
			Msg("signals detected")
	}
	return total, nil
}

// signalFor builds the emitted signal record: score and hits plus flattened
// subject and time fields so downstream fusion can group without digging
// into the nested event.
func signalFor(ev model.Event, score int, hits []string) model.Event {
	return model.Event{
		"score":              score,
		"hits":               hits,
		"source":             ev.String("source"),
		"ticker":             ev.String("canonical_ticker", "ticker"),
		"event_kind":         ev.String("event_kind"),
		"event_subtype":      ev.String("event_subtype"),
		"event_datetime_utc": ev.String("event_datetime_utc"),
		"title":              ev.String("title"),
		"first_url":          ev.FirstURL(),
		"event":              ev,
	}
}

func joinNonEmpty(parts ...string) string {
	var kept []string
	for _, p := range parts {
		if p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, " ")
}
