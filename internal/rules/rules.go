// Package rules implements keyword-hit tagging and weighted-sum scoring with
// categorical priors for regulatory filings.
package rules

import "strings"

// Ruleset is an immutable keyword/weight table built at construction, so
// tests can swap tables without touching globals.
type Ruleset struct {
	tags            []string            // evaluation order
	keywords        map[string][]string // tag -> lowercase keywords
	weights         map[string]int      // tag -> weight, unknown tags score 1
	regulatoryKinds map[string]struct{} // event kinds that get the filing prior
	highSignalForms map[string]struct{} // filing forms that get the extra bump
}

// Rule pairs a tag with its keyword list and weight, in evaluation order.
type Rule struct {
	Tag      string
	Keywords []string
	Weight   int
}

// New builds a Ruleset from ordered rules plus the prior tables.
func New(ruleList []Rule, regulatoryKinds, highSignalForms []string) *Ruleset {
	rs := &Ruleset{
		keywords:        make(map[string][]string, len(ruleList)),
		weights:         make(map[string]int, len(ruleList)),
		regulatoryKinds: make(map[string]struct{}, len(regulatoryKinds)),
		highSignalForms: make(map[string]struct{}, len(highSignalForms)),
	}
	for _, r := range ruleList {
		rs.tags = append(rs.tags, r.Tag)
		keys := make([]string, len(r.Keywords))
		for i, k := range r.Keywords {
			keys[i] = strings.ToLower(k)
		}
		rs.keywords[r.Tag] = keys
		rs.weights[r.Tag] = r.Weight
	}
	for _, k := range regulatoryKinds {
		rs.regulatoryKinds[strings.ToUpper(k)] = struct{}{}
	}
	for _, f := range highSignalForms {
		rs.highSignalForms[strings.ToUpper(f)] = struct{}{}
	}
	return rs
}

// Default returns the built-in high-signal keyword table.
func Default() *Ruleset {
	return New([]Rule{
		{Tag: "buyback", Weight: 3, Keywords: []string{
			"repurchase", "share repurchase", "buyback", "authorization to repurchase",
			"repurchase program", "share buyback",
		}},
		{Tag: "dividend", Weight: 2, Keywords: []string{
			"dividend", "increases dividend", "raises dividend", "special dividend",
		}},
		{Tag: "guidance_up", Weight: 3, Keywords: []string{
			"raises guidance", "updates guidance upward", "upward revision",
			"increase guidance", "guidance raised",
		}},
		{Tag: "guidance_down", Weight: 2, Keywords: []string{
			"lowers guidance", "downward revision", "cuts guidance",
			"reduce guidance", "guidance lowered",
		}},
		{Tag: "cfo_resign", Weight: 3, Keywords: []string{
			"chief financial officer", "cfo", "resigns", "resignation", "steps down",
		}},
		{Tag: "ceo_resign", Weight: 4, Keywords: []string{
			"chief executive officer", "ceo", "resigns", "resignation", "steps down",
		}},
	}, []string{"SEC"}, []string{"8-K", "6-K"})
}

// HitTags returns the tags whose keyword lists match the text, in ruleset
// order. Matching is case-insensitive substring; the first matching keyword
// per tag short-circuits further keyword checks for that tag, but every tag
// is evaluated independently.
func (r *Ruleset) HitTags(text string) []string {
	if text == "" {
		return nil
	}
	t := strings.ToLower(text)
	var hits []string
	for _, tag := range r.tags {
		for _, k := range r.keywords[tag] {
			if strings.Contains(t, k) {
				hits = append(hits, tag)
				break
			}
		}
	}
	return hits
}

// ScoreHits sums the per-tag weights and applies the categorical priors:
// +1 when the event kind is a regulatory-filing category and +1 more when
// the subtype is a high-signal filing form.
func (r *Ruleset) ScoreHits(hits []string, eventKind, subtype string) int {
	s := 0
	for _, h := range hits {
		if w, ok := r.weights[h]; ok {
			s += w
		} else {
			s++
		}
	}
	if _, ok := r.regulatoryKinds[strings.ToUpper(eventKind)]; ok {
		s++
	}
	if _, ok := r.highSignalForms[strings.ToUpper(subtype)]; ok {
		s++
	}
	return s
}
