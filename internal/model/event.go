package model

// Event is one pipeline record as read from a newline-delimited JSON file.
// There is no fixed schema: producers disagree on field names and presence,
// so every accessor tolerates absence and falls back through candidate keys.
type Event map[string]any

// String returns the first non-empty string value among the candidate keys.
func (e Event) String(keys ...string) string {
	for _, k := range keys {
		if v, ok := e[k]; ok {
			if s, ok := v.(string); ok && s != "" {
				return s
			}
		}
	}
	return ""
}

// Strings returns the string elements of a list-valued field.
// Non-string elements are skipped.
func (e Event) Strings(key string) []string {
	v, ok := e[key]
	if !ok {
		return nil
	}
	list, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(list))
	for _, item := range list {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// Float returns the first numeric value among the candidate keys.
// JSON numbers decode as float64; integer-typed values are accepted too.
func (e Event) Float(keys ...string) (float64, bool) {
	for _, k := range keys {
		v, ok := e[k]
		if !ok {
			continue
		}
		switch n := v.(type) {
		case float64:
			return n, true
		case int:
			return float64(n), true
		case int64:
			return float64(n), true
		}
	}
	return 0, false
}

// Int is Float truncated to an integer.
func (e Event) Int(keys ...string) (int, bool) {
	f, ok := e.Float(keys...)
	if !ok {
		return 0, false
	}
	return int(f), true
}

// FirstURL picks the best-available URL for fingerprinting:
// first_url, then urls[0] when the list is non-empty, then url.
func (e Event) FirstURL() string {
	if u := e.String("first_url"); u != "" {
		return u
	}
	if urls := e.Strings("urls"); len(urls) > 0 && urls[0] != "" {
		return urls[0]
	}
	return e.String("url")
}
