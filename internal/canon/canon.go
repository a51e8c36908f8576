// Package canon provides deterministic text and URL normalization used as
// hashing input. All functions are pure and total: malformed input degrades
// to a best-effort string rather than failing, since fingerprinting must
// never throw.
package canon

import (
	"net/url"
	"regexp"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

var wsRun = regexp.MustCompile(`\s+`)

// Known tracking parameters stripped from URLs before hashing, in addition
// to any utm_* key.
var trackingParams = map[string]struct{}{
	"gclid":   {},
	"fbclid":  {},
	"igshid":  {},
	"ref":     {},
	"ref_src": {},
}

// Text canonicalizes free text: Unicode NFKC normalization, whitespace-run
// collapse to a single space, trim, case fold.
func Text(s string) string {
	if s == "" {
		return ""
	}
	s = norm.NFKC.String(s)
	s = wsRun.ReplaceAllString(s, " ")
	s = strings.TrimSpace(s)
	return cases.Fold().String(s)
}

// URL canonicalizes a URL for fingerprinting: percent-decode once, lower-case
// scheme and host, strip a leading www., drop the fragment, drop tracking
// query parameters, collapse a bare "/" path to empty, and reassemble
// deterministically with the remaining parameter order preserved. Any parse
// failure falls back to Text of the raw input.
func URL(raw string) string {
	if raw == "" {
		return ""
	}

	decoded := raw
	if d, err := url.PathUnescape(raw); err == nil {
		decoded = d
	}

	u, err := url.Parse(decoded)
	if err != nil {
		return Text(raw)
	}

	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.TrimPrefix(strings.ToLower(u.Host), "www.")
	u.Fragment = ""
	u.RawFragment = ""
	if u.Path == "/" {
		u.Path = ""
	}
	u.RawQuery = filterQuery(u.RawQuery)

	return u.String()
}

// filterQuery drops utm_* and blocklisted tracking parameters while keeping
// the remaining pairs in their original order.
func filterQuery(q string) string {
	if q == "" {
		return ""
	}
	var kept []string
	for _, pair := range strings.Split(q, "&") {
		if pair == "" {
			continue
		}
		key := pair
		if i := strings.IndexByte(pair, '='); i >= 0 {
			key = pair[:i]
		}
		key = strings.ToLower(key)
		if strings.HasPrefix(key, "utm_") {
			continue
		}
		if _, tracked := trackingParams[key]; tracked {
			continue
		}
		kept = append(kept, pair)
	}
	return strings.Join(kept, "&")
}
