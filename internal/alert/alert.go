// Package alert renders dedupe-gated signals to console and CSV. Delivery
// transports beyond these (Slack, SMTP) live outside this core and consume
// the same records.
package alert

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/supplysignals/supplysig/internal/canon"
	"github.com/supplysignals/supplysig/internal/model"
)

// CSVColumns is the additive, tolerant CSV schema; missing fields become
// empty cells.
var CSVColumns = []string{
	"issuer_name",
	"ticker",
	"cik",
	"event_kind",
	"score",
	"event_datetime_utc",
	"title",
	"first_url",
	"rule_hits",
}

// Load collects alert records from every *.signals.jsonl and fused_*.jsonl
// file under signalsDir. A line may be a single alert object or carry a
// top-level "signals" or "alerts" list; both shapes are accepted.
func Load(signalsDir string) ([]model.Event, error) {
	var paths []string
	for _, pattern := range []string{"*.signals.jsonl", "fused_*.jsonl"} {
		matched, err := filepath.Glob(filepath.Join(signalsDir, pattern))
		if err != nil {
			return nil, err
		}
		paths = append(paths, matched...)
	}
	sort.Strings(paths)

	var alerts []model.Event
	for _, p := range paths {
		found, err := iterFile(p)
		if err != nil {
			return alerts, err
		}
		alerts = append(alerts, found...)
	}
	return alerts, nil
}

func iterFile(path string) ([]model.Event, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var alerts []model.Event
	r := bufio.NewReader(f)
	for {
		raw, readErr := r.ReadString('\n')
		if line := bytes.TrimSpace([]byte(raw)); len(line) > 0 {
			alerts = appendLine(alerts, line)
		}
		if readErr == io.EOF {
			return alerts, nil
		}
		if readErr != nil {
			return alerts, readErr
		}
	}
}

// appendLine unwraps one alert line: either a single object or a carrier with
// a top-level "signals" or "alerts" list. Malformed lines are dropped.
func appendLine(alerts []model.Event, line []byte) []model.Event {
	var obj model.Event
	if err := json.Unmarshal(line, &obj); err != nil {
		return alerts
	}
	for _, key := range []string{"signals", "alerts"} {
		list, ok := obj[key].([]any)
		if !ok {
			continue
		}
		for _, item := range list {
			if m, ok := item.(map[string]any); ok {
				alerts = append(alerts, model.Event(m))
			}
		}
		return alerts
	}
	return append(alerts, obj)
}

// PrintConsole writes a human-readable rendering of each alert.
func PrintConsole(w io.Writer, alerts []model.Event) int {
	n := 0
	for _, a := range alerts {
		issuer := a.String("issuer_name", "company")
		if issuer == "" {
			issuer = "Unknown issuer"
		}
		kind := a.String("event_kind", "kind")
		if kind == "" {
			kind = "event"
		}
		scoreStr := ""
		if score, ok := a.Float("score", "conviction_score"); ok {
			scoreStr = fmt.Sprintf(" score=%g", score)
		}
		title := a.String("title")
		if title == "" {
			title = "(no title)"
		}
		url := a.String("first_url", "url")
		if url == "" {
			url = "(no url)"
		}
		ts := a.String("event_datetime_utc", "ts")
		if ts == "" {
			ts = "unknown time"
		}
		fmt.Fprintf(w, "%s — %s%s\n  %s\n  %s\n  %s\n\n", issuer, kind, scoreStr, title, url, ts)
		n++
	}
	return n
}

// WriteCSV appends one row per alert to csvPath, writing the header when the
// file is new or empty.
func WriteCSV(alerts []model.Event, csvPath string) (rows int, err error) {
	if err := os.MkdirAll(filepath.Dir(csvPath), 0755); err != nil {
		return 0, err
	}
	fi, statErr := os.Stat(csvPath)
	isNew := statErr != nil || fi.Size() == 0

	f, err := os.OpenFile(csvPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return 0, err
	}
	defer func() {
		if closeErr := f.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()

	w := csv.NewWriter(f)
	if isNew {
		if err := w.Write(CSVColumns); err != nil {
			return 0, err
		}
	}
	for _, a := range alerts {
		row := make([]string, len(CSVColumns))
		for i, col := range CSVColumns {
			row[i] = cell(a, col)
		}
		if err := w.Write(row); err != nil {
			return rows, err
		}
		rows++
	}
	w.Flush()
	return rows, w.Error()
}

func cell(a model.Event, col string) string {
	if col == "rule_hits" {
		if hits := a.Strings("hits"); len(hits) > 0 {
			return strings.Join(hits, ", ")
		}
		return a.String("rule_hits")
	}
	if s := a.String(col); s != "" {
		return s
	}
	if n, ok := a.Float(col); ok {
		return fmt.Sprintf("%g", n)
	}
	return ""
}

// DedupeKey builds the per-run sink dedupe key from canonicalized issuer,
// kind, title, URL and calendar date.
func DedupeKey(a model.Event) string {
	url := a.String("first_url", "url")
	if url != "" {
		url = canon.URL(url)
	}
	ts := a.String("event_datetime_utc")
	date := ""
	if len(ts) >= 10 {
		date = ts[:10]
	}
	return strings.Join([]string{
		canon.Text(a.String("issuer_name", "company", "ticker")),
		canon.Text(a.String("event_kind", "kind", "signal_type")),
		canon.Text(a.String("title")),
		url,
		date,
	}, "|")
}

// FilterPerRun drops alerts whose dedupe key was already seen in this run.
// The second return is the number skipped.
func FilterPerRun(alerts []model.Event) ([]model.Event, int) {
	seen := make(map[string]struct{}, len(alerts))
	kept := make([]model.Event, 0, len(alerts))
	skipped := 0
	for _, a := range alerts {
		key := DedupeKey(a)
		if _, dup := seen[key]; dup {
			skipped++
			continue
		}
		seen[key] = struct{}{}
		kept = append(kept, a)
	}
	return kept, skipped
}
