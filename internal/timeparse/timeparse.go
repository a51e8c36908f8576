// Package timeparse provides tolerant parsing of heterogeneous date/time
// strings into strict UTC, with a sanity window and per-source naive-timezone
// defaults.
package timeparse

import (
	"errors"
	"regexp"
	"strings"
	"time"
)

// Kind classifies a timestamp parse failure.
type Kind string

const (
	KindMissing     Kind = "missing"
	KindUnparseable Kind = "unparseable"
	KindOutOfRange  Kind = "out_of_range"
)

// Error is a recoverable timestamp failure: callers flag the record and
// continue the batch.
type Error struct {
	Kind  Kind
	Input string
}

func (e *Error) Error() string {
	return "timestamp " + string(e.Kind)
}

// IsKind reports whether err is a timestamp Error of the given kind.
func IsKind(err error, k Kind) bool {
	var te *Error
	return errors.As(err, &te) && te.Kind == k
}

// StrictZISO matches the strict output format YYYY-MM-DDTHH:MM:SSZ.
// Records already carrying a matching event_datetime_utc are never rewritten.
var StrictZISO = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}T\d{2}:\d{2}:\d{2}Z$`)

// Sanity window: inclusive lower bound, exclusive upper bound.
var (
	minDT = time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)
	maxDT = time.Date(2100, 1, 1, 0, 0, 0, 0, time.UTC)
)

var (
	offsetCompact = regexp.MustCompile(`\s*([+-]\d{2}):?(\d{2})$`)
	dateTimeSpace = regexp.MustCompile(`^(\d{4}[-/]\d{2}[-/]\d{2})\s+(\d{2}:\d{2})`)
	slashDate     = regexp.MustCompile(`^\d{4}/\d{2}/\d{2}T`)
	missingSecs   = regexp.MustCompile(`^(\d{4}-\d{2}-\d{2}T\d{2}:\d{2})([+-]\d{2}:\d{2})?$`)

	hasOffset = regexp.MustCompile(`[+-]\d{2}:\d{2}$`)
	naiveISO  = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}T\d{2}:\d{2}:\d{2}(\.\d+)?$`)
	dateOnly  = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
)

// normalize rewrites common date-time quirks without changing semantics:
// compact numeric offsets gain a colon (and lose a preceding space), a
// lowercase t separator or trailing z is uppercased, a trailing Z becomes an
// explicit +00:00 offset, the space between date and time becomes T, slashes
// in the date become dashes, and missing seconds are filled with :00.
func normalize(s string) string {
	s = strings.TrimSpace(s)

	s = offsetCompact.ReplaceAllString(s, "$1:$2")

	if len(s) > 10 && s[10] == 't' {
		s = s[:10] + "T" + s[11:]
	}

	if strings.HasSuffix(s, "z") {
		s = s[:len(s)-1] + "Z"
	}
	if strings.HasSuffix(s, "Z") {
		s = s[:len(s)-1] + "+00:00"
	}

	s = dateTimeSpace.ReplaceAllString(s, "${1}T$2")

	if slashDate.MatchString(s) {
		s = strings.Replace(s, "/", "-", 2)
	}

	if m := missingSecs.FindStringSubmatch(s); m != nil {
		s = m[1] + ":00" + m[2]
	}

	return s
}

// RFC-2822 mailbox-date layouts tried against the original (non-normalized)
// string when ISO parsing fails. RSS feeds produce most of these.
var rfc2822Layouts = []string{
	time.RFC1123Z,
	time.RFC1123,
	"Mon, 2 Jan 2006 15:04:05 -0700",
	"Mon, 2 Jan 2006 15:04:05 MST",
	"2 Jan 2006 15:04:05 -0700",
	"2 Jan 2006 15:04:05 MST",
}

// ParseToUTC parses a datetime string tolerantly and returns a UTC time.
// It tries ISO-8601-like forms after a normalization pass, then falls back to
// RFC-2822 parsing of the original string. A result with no offset or zone is
// localized using the caller-supplied IANA zone name (invalid or absent names
// fall back to UTC) and converted to UTC. Results outside
// [2000-01-01, 2100-01-01) fail with kind out_of_range.
func ParseToUTC(raw string, naiveTZ string) (time.Time, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return time.Time{}, &Error{Kind: KindMissing, Input: raw}
	}

	t, naive, ok := parseISO(normalize(trimmed))
	if !ok {
		t, naive, ok = parseRFC2822(trimmed)
	}
	if !ok {
		return time.Time{}, &Error{Kind: KindUnparseable, Input: raw}
	}

	if naive {
		t = localize(t, naiveTZ)
	}

	utc := t.UTC()
	if utc.Before(minDT) || !utc.Before(maxDT) {
		return time.Time{}, &Error{Kind: KindOutOfRange, Input: raw}
	}
	return utc, nil
}

// parseISO handles the normalized ISO-like forms. The second return reports
// whether the value carried no offset and still needs localization.
func parseISO(s string) (time.Time, bool, bool) {
	switch {
	case hasOffset.MatchString(s):
		if t, err := time.Parse("2006-01-02T15:04:05-07:00", s); err == nil {
			return t, false, true
		}
	case naiveISO.MatchString(s):
		if t, err := time.Parse("2006-01-02T15:04:05", s); err == nil {
			return t, true, true
		}
	case dateOnly.MatchString(s):
		if t, err := time.Parse("2006-01-02", s); err == nil {
			return t, true, true
		}
	}
	return time.Time{}, false, false
}

func parseRFC2822(s string) (time.Time, bool, bool) {
	for _, layout := range rfc2822Layouts {
		t, err := time.Parse(layout, s)
		if err != nil {
			continue
		}
		// A named zone the runtime does not know parses with a zero offset;
		// treat anything other than UTC/GMT as naive so the caller's zone
		// hint applies, matching mailbox-date semantics.
		if name, offset := t.Zone(); offset == 0 && name != "UTC" && name != "GMT" && name != "" {
			return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), time.UTC), true, true
		}
		return t, false, true
	}
	return time.Time{}, false, false
}

// localize reinterprets a naive time in the named IANA zone, defaulting to
// UTC when the name is empty or unknown.
func localize(t time.Time, tz string) time.Time {
	loc := time.UTC
	if tz != "" {
		if l, err := time.LoadLocation(tz); err == nil {
			loc = l
		}
	}
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), loc)
}

// ToISOUTC formats a time as strict YYYY-MM-DDTHH:MM:SSZ with sub-second
// precision truncated, not rounded. A zero-offset naive construction is
// already UTC by Go's time model, so no special casing is needed.
func ToISOUTC(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05") + "Z"
}
