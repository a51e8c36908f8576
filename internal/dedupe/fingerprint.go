package dedupe

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"

	"github.com/supplysignals/supplysig/internal/canon"
	"github.com/supplysignals/supplysig/internal/model"
	"github.com/supplysignals/supplysig/internal/timeparse"
)

// Key is the canonical identity of an event: normalized source, title and
// URL plus the UTC calendar date. Two events with equal keys must produce
// equal fingerprints.
type Key struct {
	Source string `json:"source"`
	Title  string `json:"title"`
	URL    string `json:"url"`
	Date   string `json:"date"`
}

// KeyFor builds the canonical key for an event. The date comes from the
// best-available timestamp field in priority order
// event_datetime_utc > filing_datetime > pubDate, falling back to now.
func KeyFor(ev model.Event, now time.Time) Key {
	return Key{
		Source: canon.Text(ev.String("source", "source_name")),
		Title:  canon.Text(ev.String("title", "headline")),
		URL:    canon.URL(ev.FirstURL()),
		Date:   eventDate(ev, now).Format("2006-01-02"),
	}
}

// eventDate picks the first populated timestamp field and parses it; an
// unparseable value falls straight through to now rather than trying
// lower-priority fields.
func eventDate(ev model.Event, now time.Time) time.Time {
	if raw := ev.String("event_datetime_utc", "filing_datetime", "pubDate"); raw != "" {
		if t, err := timeparse.ParseToUTC(raw, ""); err == nil {
			return t
		}
	}
	return now.UTC()
}

// Fingerprint returns the stable sha256 digest of the key's pipe-joined form.
func Fingerprint(k Key) string {
	sum := sha256.Sum256([]byte(strings.Join([]string{k.Source, k.Title, k.URL, k.Date}, "|")))
	return hex.EncodeToString(sum[:])
}
