package classifier

import (
	"sort"

	"github.com/wolfman30/staffline/internal/confidence"
	"github.com/wolfman30/staffline/internal/contextanalysis"
	"github.com/wolfman30/staffline/internal/intent"
	"github.com/wolfman30/staffline/internal/normalizer"
)

// Classification is the full result of one pipeline run.
type Classification struct {
	Raw         string                   `json:"raw"`
	Normalized  string                   `json:"normalized"`
	Features    normalizer.Features      `json:"features"`
	Snapshot    contextanalysis.Snapshot `json:"snapshot"`
	Candidates  []intent.Scored          `json:"candidates"`
	Selected    intent.Scored            `json:"selected"`
	Penalty     float64                  `json:"ambiguity_penalty"`
	Explanation confidence.Explanation   `json:"explanation"`
	Fallback    bool                     `json:"fallback"`
}

// Classifier wires the normalizer, matcher, analyzer and calculator.
type Classifier struct {
	normalizer *normalizer.Normalizer
	matcher    Matcher
	analyzer   *contextanalysis.Analyzer
	calc       *confidence.Calculator
}

// New returns a Classifier. Nil collaborators fall back to their defaults.
func New(n *normalizer.Normalizer, m Matcher, a *contextanalysis.Analyzer, c *confidence.Calculator) *Classifier {
	if n == nil {
		n = normalizer.NewDefault()
	}
	if m == nil {
		m = MustDefaultMatcher()
	}
	if a == nil {
		a = contextanalysis.NewAnalyzer()
	}
	if c == nil {
		c = confidence.NewDefault()
	}
	return &Classifier{normalizer: n, matcher: m, analyzer: a, calc: c}
}

// Analyzer exposes the context analyzer in use.
func (c *Classifier) Analyzer() *contextanalysis.Analyzer { return c.analyzer }

// Classify scores every matched intent against the context and selects the
// strongest one. With no matches the result falls back to general_help at
// its floor.
func (c *Classifier) Classify(text string, raw contextanalysis.RawContext) Classification {
	normalized := c.normalizer.Preprocess(text)
	snap := c.analyzer.Analyze(raw)
	out := Classification{
		Raw:        text,
		Normalized: normalized,
		Features:   c.normalizer.AnalyzeFeatures(text),
		Snapshot:   snap,
		Candidates: []intent.Scored{},
		Penalty:    1.0,
	}

	bases := make(map[intent.Label]float64)
	for _, cand := range c.matcher.Match(normalized) {
		if prev, ok := bases[cand.Intent]; ok && prev >= cand.BaseConfidence {
			continue
		}
		bases[cand.Intent] = cand.BaseConfidence
	}
	for label, base := range bases {
		out.Candidates = append(out.Candidates, intent.Scored{
			Intent:     label,
			Confidence: c.calc.AdjustForContext(base, label, snap),
		})
	}
	sort.SliceStable(out.Candidates, func(i, j int) bool {
		if out.Candidates[i].Confidence == out.Candidates[j].Confidence {
			return out.Candidates[i].Intent < out.Candidates[j].Intent
		}
		return out.Candidates[i].Confidence > out.Candidates[j].Confidence
	})

	if len(out.Candidates) == 0 {
		floor := c.calc.Bounds(intent.GeneralHelp).Min
		out.Fallback = true
		out.Selected = intent.Scored{Intent: intent.GeneralHelp, Confidence: floor}
		out.Explanation = confidence.ExplainConfidence(floor, floor, snap)
		out.Selected.Explanation = out.Explanation.Factors
		return out
	}

	top := out.Candidates[0]
	out.Penalty = confidence.AmbiguityPenalty(out.Candidates, top.Intent)
	final := c.calc.ClampToBounds(top.Intent, top.Confidence*out.Penalty)
	out.Explanation = confidence.ExplainConfidence(bases[top.Intent], final, snap)
	out.Selected = intent.Scored{Intent: top.Intent, Confidence: final, Explanation: out.Explanation.Factors}
	return out
}
