package model

// ConvictionLevel buckets a fused conviction score.
type ConvictionLevel string

const (
	LevelHigh    ConvictionLevel = "HIGH"    // score >= 80
	LevelMedium  ConvictionLevel = "MEDIUM"  // score >= 65
	LevelLow     ConvictionLevel = "LOW"     // score >= 50
	LevelNeutral ConvictionLevel = "NEUTRAL" // everything else
)

// Alignment classifies whether all signals in a fusion window agree in
// sentiment direction.
type Alignment string

const (
	Aligned    Alignment = "aligned"
	Conflicted Alignment = "conflicted"
)

// ComponentSignal is the audit-trail entry for one signal that contributed to
// a fused conviction. TimeSource is set to "fallback_now" when the signal's
// event time was missing or unparseable and "now" was substituted for
// window placement.
type ComponentSignal struct {
	Source     string  `json:"source"`
	SignalType string  `json:"signal_type"`
	BaseScore  float64 `json:"base_score"`
	Weight     float64 `json:"weight"`
	Sentiment  float64 `json:"sentiment"`
	TimeSource string  `json:"time_source,omitempty"`
}

// FusedConviction is one fused output per (ticker, window) grouping.
// Immutable once produced.
type FusedConviction struct {
	SignalType       string            `json:"signal_type"` // always "fused_conviction"
	Ticker           string            `json:"ticker"`
	ConvictionScore  float64           `json:"conviction_score"` // 0-100
	ConvictionLevel  ConvictionLevel   `json:"conviction_level"`
	NetSentiment     float64           `json:"net_sentiment"` // -1..1
	Alignment        Alignment         `json:"alignment"`
	NumSignals       int               `json:"num_signals"`
	WindowStart      string            `json:"window_start"`
	WindowEnd        string            `json:"window_end"`
	EventDatetime    string            `json:"event_datetime"`
	ComponentSignals []ComponentSignal `json:"component_signals"`
}
