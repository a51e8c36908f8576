// Package fusion combines per-source signals into conviction scores: signals
// are grouped by ticker and time window, weighted by source reliability and
// signal strength, checked for sentiment alignment, and fused into a 0-100
// conviction with a full component audit trail.
package fusion

import (
	"math"
	"sort"
	"time"

	"github.com/supplysignals/supplysig/internal/model"
	"github.com/supplysignals/supplysig/internal/timeparse"
)

// Score is the per-signal scoring triple.
type Score struct {
	Base      float64 // 0-100
	Weight    float64 // importance multiplier, 0.5-2.0 before cluster scaling
	Sentiment float64 // -1 bearish .. +1 bullish
}

// Engine fuses signals over greedy, non-overlapping forward windows.
// Now is injectable so tests control the fallback placement of signals
// without a usable event time.
type Engine struct {
	WindowHours int
	Now         func() time.Time
}

// NewEngine returns an engine with the given window width.
func NewEngine(windowHours int) *Engine {
	return &Engine{WindowHours: windowHours, Now: time.Now}
}

// ScoreSignal maps one signal to (base score, weight, sentiment) based on
// its type and attributes. Unrecognized shapes get neutral defaults.
func ScoreSignal(sig model.Event) Score {
	signalType := sig.String("signal_type")
	source := sig.String("source")

	switch {
	case signalType == "insider_cluster":
		return scoreInsiderCluster(sig)
	case source == "reddit" && sig.String("event_kind") == "social_sentiment":
		return scoreSocialSentiment(sig)
	case source == "sec_edgar" || source == "SEC":
		return scoreFiling(sig)
	}
	return Score{Base: 50, Weight: 1.0, Sentiment: 0}
}

func scoreInsiderCluster(sig model.Event) Score {
	s := Score{Base: 50, Weight: 1.0, Sentiment: 0}
	switch sig.String("sentiment") {
	case "STRONG_BULLISH":
		s = Score{Base: 85, Weight: 2.0, Sentiment: 1.0}
	case "BULLISH":
		s = Score{Base: 70, Weight: 1.5, Sentiment: 0.7}
	case "BEARISH":
		s = Score{Base: 30, Weight: 1.5, Sentiment: -0.7}
	}
	// Larger clusters carry more weight, capped at a 50% boost.
	numInsiders, _ := sig.Int("num_insiders")
	s.Weight *= 1 + 0.1*math.Min(float64(numInsiders-3), 5)
	return s
}

func scoreSocialSentiment(sig model.Event) Score {
	buzz, _ := sig.Int("buzz_score")
	sentimentScore, _ := sig.Float("sentiment_score")

	s := Score{Base: math.Min(float64(40+buzz/2), 80), Weight: 0.8}
	switch {
	case sentimentScore > 20:
		s.Sentiment = 0.6
	case sentimentScore < -20:
		s.Sentiment = -0.6
	}
	// Social chatter is noisy; only very high buzz earns extra weight.
	if buzz > 90 {
		s.Weight = 1.2
	}
	return s
}

func scoreFiling(sig model.Event) Score {
	score, _ := sig.Float("score")
	switch {
	case score >= 8:
		return Score{Base: 80, Weight: 1.8, Sentiment: 0.8}
	case score >= 5:
		return Score{Base: 65, Weight: 1.3, Sentiment: 0.5}
	case score >= 3:
		return Score{Base: 55, Weight: 1.0, Sentiment: 0.3}
	}
	return Score{Base: 45, Weight: 0.8, Sentiment: 0}
}

// timed pairs a signal with its scoring and best-effort event time.
type timed struct {
	sig      model.Event
	score    Score
	at       time.Time
	fallback bool
}

// signalTime resolves the first candidate time field. Missing or unparseable
// times place the signal at "now" for ordering purposes; the substitution is
// surfaced on the component as time_source "fallback_now".
func (e *Engine) signalTime(sig model.Event) (time.Time, bool) {
	raw := sig.String("event_datetime", "event_datetime_utc", "cluster_start_date")
	if raw != "" {
		if t, err := timeparse.ParseToUTC(raw, ""); err == nil {
			return t, false
		}
	}
	return e.Now().UTC(), true
}

// Fuse groups signals by ticker, sorts each group by event time and sweeps
// greedy non-overlapping forward windows: the earliest unconsumed signal
// anchors a window of WindowHours, the contiguous run inside it is consumed
// as one window, and the sweep resumes immediately after it. Signals landing
// just past a window's close start a fresh window rather than re-evaluating
// earlier ones.
func (e *Engine) Fuse(signals []model.Event) []model.FusedConviction {
	if len(signals) == 0 {
		return nil
	}

	var tickerOrder []string
	byTicker := make(map[string][]model.Event)
	for _, sig := range signals {
		ticker := sig.String("ticker", "issuer_ticker")
		if ticker == "" {
			continue
		}
		if _, seen := byTicker[ticker]; !seen {
			tickerOrder = append(tickerOrder, ticker)
		}
		byTicker[ticker] = append(byTicker[ticker], sig)
	}

	window := time.Duration(e.WindowHours) * time.Hour
	var fused []model.FusedConviction

	for _, ticker := range tickerOrder {
		group := make([]timed, 0, len(byTicker[ticker]))
		for _, sig := range byTicker[ticker] {
			at, fb := e.signalTime(sig)
			group = append(group, timed{sig: sig, score: ScoreSignal(sig), at: at, fallback: fb})
		}
		sort.SliceStable(group, func(i, j int) bool { return group[i].at.Before(group[j].at) })

		i := 0
		for i < len(group) {
			anchor := group[i].at
			windowEnd := anchor.Add(window)
			j := i + 1
			for j < len(group) && !group[j].at.After(windowEnd) {
				j++
			}
			fused = append(fused, e.fuseWindow(ticker, group[i:j], anchor, windowEnd))
			i = j
		}
	}
	return fused
}

// fuseWindow collapses one window's signals into a conviction score.
func (e *Engine) fuseWindow(ticker string, win []timed, start, end time.Time) model.FusedConviction {
	var totalWeight, weightedScore, weightedSentiment float64
	allNonNeg, allNonPos := true, true

	components := make([]model.ComponentSignal, 0, len(win))
	for _, t := range win {
		totalWeight += t.score.Weight
		weightedScore += t.score.Base * t.score.Weight
		weightedSentiment += t.score.Sentiment * t.score.Weight
		if t.score.Sentiment < 0 {
			allNonNeg = false
		}
		if t.score.Sentiment > 0 {
			allNonPos = false
		}
		comp := model.ComponentSignal{
			Source:     t.sig.String("source"),
			SignalType: t.sig.String("signal_type", "event_kind"),
			BaseScore:  t.score.Base,
			Weight:     t.score.Weight,
			Sentiment:  t.score.Sentiment,
		}
		if t.fallback {
			comp.TimeSource = "fallback_now"
		}
		components = append(components, comp)
	}
	aligned := allNonNeg || allNonPos

	// Weight floors make a zero total impossible, but guard anyway.
	conviction := 50.0
	netSentiment := 0.0
	if totalWeight > 0 {
		conviction = weightedScore / totalWeight
		netSentiment = weightedSentiment / totalWeight
	}

	alignment := model.Conflicted
	if aligned {
		alignment = model.Aligned
		// Single-signal windows are never boosted.
		if len(win) > 1 {
			conviction = math.Min(conviction*1.2, 100)
		}
	} else {
		conviction *= 0.85
	}

	return model.FusedConviction{
		SignalType:       "fused_conviction",
		Ticker:           ticker,
		ConvictionScore:  math.Round(conviction*10) / 10,
		ConvictionLevel:  level(conviction),
		NetSentiment:     math.Round(netSentiment*100) / 100,
		Alignment:        alignment,
		NumSignals:       len(win),
		WindowStart:      timeparse.ToISOUTC(start),
		WindowEnd:        timeparse.ToISOUTC(end),
		EventDatetime:    timeparse.ToISOUTC(e.Now()),
		ComponentSignals: components,
	}
}

func level(score float64) model.ConvictionLevel {
	switch {
	case score >= 80:
		return model.LevelHigh
	case score >= 65:
		return model.LevelMedium
	case score >= 50:
		return model.LevelLow
	}
	return model.LevelNeutral
}
