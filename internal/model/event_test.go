package model

import "testing"

func TestEvent_StringFallback(t *testing.T) {
	ev := Event{"ticker": "", "canonical_ticker": "ACME"}
	if got := ev.String("canonical_ticker", "ticker"); got != "ACME" {
		t.Errorf("got %q, want ACME", got)
	}
	if got := ev.String("missing"); got != "" {
		t.Errorf("missing key should be empty, got %q", got)
	}
	// Non-string values are skipped, not stringified.
	ev["score"] = float64(5)
	if got := ev.String("score"); got != "" {
		t.Errorf("numeric value should not satisfy String, got %q", got)
	}
}

func TestEvent_Numbers(t *testing.T) {
	ev := Event{"score": float64(7.5), "count": 3}
	if f, ok := ev.Float("score"); !ok || f != 7.5 {
		t.Errorf("Float = %v/%v", f, ok)
	}
	if n, ok := ev.Int("score"); !ok || n != 7 {
		t.Errorf("Int should truncate, got %v/%v", n, ok)
	}
	if n, ok := ev.Int("count"); !ok || n != 3 {
		t.Errorf("int-typed value: %v/%v", n, ok)
	}
	if _, ok := ev.Float("missing"); ok {
		t.Error("missing key should not resolve")
	}
}

func TestEvent_FirstURL(t *testing.T) {
	cases := []struct {
		ev   Event
		want string
	}{
		{Event{"first_url": "https://a", "urls": []any{"https://b"}, "url": "https://c"}, "https://a"},
		{Event{"urls": []any{"https://b", "https://x"}, "url": "https://c"}, "https://b"},
		{Event{"url": "https://c"}, "https://c"},
		{Event{}, ""},
	}
	for _, c := range cases {
		if got := c.ev.FirstURL(); got != c.want {
			t.Errorf("FirstURL(%v) = %q, want %q", c.ev, got, c.want)
		}
	}
}

func TestEvent_Strings(t *testing.T) {
	ev := Event{"hits": []any{"buyback", 42, "dividend"}}
	got := ev.Strings("hits")
	if len(got) != 2 || got[0] != "buyback" || got[1] != "dividend" {
		t.Errorf("Strings = %v, want non-strings skipped", got)
	}
}
