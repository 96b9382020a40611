// Package confidence weights base intent confidence by situational context
// and keeps the result inside per-intent bounds.
package confidence

import (
	"fmt"
	"math"
	"sort"

	"github.com/wolfman30/staffline/internal/contextanalysis"
	"github.com/wolfman30/staffline/internal/intent"
)

// minBase is the floor for an out-of-range base confidence.
const minBase = 0.01

// Calculator applies the tuning tables. It is immutable and safe for
// concurrent use.
type Calculator struct {
	tables Tables
}

// New returns a Calculator over a copy of t.
func New(t Tables) *Calculator {
	return &Calculator{tables: t.Clone()}
}

// NewDefault returns a Calculator over DefaultTables.
func NewDefault() *Calculator {
	return New(DefaultTables())
}

// Tables returns a copy of the calculator's tables.
func (c *Calculator) Tables() Tables {
	return c.tables.Clone()
}

// Bounds returns the confidence range configured for label.
func (c *Calculator) Bounds(label intent.Label) Bounds {
	return c.tables.BoundsFor(label)
}

// Factors is the breakdown of one AdjustForContext call.
type Factors struct {
	Context      float64 `json:"context"`
	Urgency      float64 `json:"urgency"`
	TimeOfDay    float64 `json:"time_of_day"`
	Status       float64 `json:"status"`
	Conversation float64 `json:"conversation"`
}

// Product multiplies every factor together.
func (f Factors) Product() float64 {
	return f.Context * f.Urgency * f.TimeOfDay * f.Status * f.Conversation
}

// AdjustForContext returns the final confidence for label. The result always
// lies within the label's bounds.
func (c *Calculator) AdjustForContext(base float64, label intent.Label, snap contextanalysis.Snapshot) float64 {
	final, _ := c.adjust(base, label, snap)
	return final
}

// Breakdown returns the final confidence with the factors that produced it.
func (c *Calculator) Breakdown(base float64, label intent.Label, snap contextanalysis.Snapshot) (float64, Factors) {
	return c.adjust(base, label, snap)
}

func (c *Calculator) adjust(base float64, label intent.Label, snap contextanalysis.Snapshot) (float64, Factors) {
	base = clampBase(base)
	f := Factors{
		Context:      contextanalysis.ConfidenceAdjustment(label, snap),
		Urgency:      c.urgencyFactor(label, snap),
		TimeOfDay:    c.timeOfDayFactor(label, snap),
		Status:       c.statusFactor(label, snap),
		Conversation: c.conversationFactor(label, snap),
	}
	final := clamp(base*f.Product(), 0, 1)
	return c.ClampToBounds(label, final), f
}

// ClampToBounds limits v to the bounds configured for label.
func (c *Calculator) ClampToBounds(label intent.Label, v float64) float64 {
	b := c.tables.BoundsFor(label)
	return clamp(v, b.Min, b.Max)
}

func (c *Calculator) urgencyFactor(label intent.Label, snap contextanalysis.Snapshot) float64 {
	if label == intent.UrgentEscalation && snap.Urgency.Score > c.tables.UrgencyThreshold {
		return c.tables.UrgencyBoost
	}
	return 1.0
}

// PeriodFor maps a snapshot onto the time-of-day table's coarse periods.
func PeriodFor(snap contextanalysis.Snapshot) Period {
	switch snap.TimeOfDay {
	case contextanalysis.LateNight, contextanalysis.EarlyMorning:
		return LateNight
	case contextanalysis.Evening, contextanalysis.Night:
		return EveningPeriod
	}
	if snap.IsWeekend {
		return Weekend
	}
	return BusinessHours
}

func (c *Calculator) timeOfDayFactor(label intent.Label, snap contextanalysis.Snapshot) float64 {
	if v, ok := c.tables.TimeOfDay[label][PeriodFor(snap)]; ok {
		return v
	}
	return 1.0
}

func (c *Calculator) statusFactor(label intent.Label, snap contextanalysis.Snapshot) float64 {
	factor := 1.0
	if v, ok := c.tables.Status[snap.UserStatus][label]; ok {
		factor = v
	}
	if snap.UserStatus == contextanalysis.StatusPending && c.pendingBoosted(label) {
		factor += math.Min(c.tables.PendingBoostCap, float64(snap.DaysSincePending)*c.tables.PendingBoostPerDay)
	}
	return factor
}

func (c *Calculator) pendingBoosted(label intent.Label) bool {
	for _, l := range c.tables.PendingBoostIntents {
		if l == label {
			return true
		}
	}
	return false
}

func (c *Calculator) conversationFactor(label intent.Label, snap contextanalysis.Snapshot) float64 {
	factor := 1.0
	if snap.IsFirstMessage {
		if v, ok := c.tables.FirstMessage[label]; ok {
			factor *= v
		}
	}
	if snap.Channel == contextanalysis.ExternalChannel {
		if v, ok := c.tables.ExternalChannel[label]; ok {
			factor *= v
		}
	}
	if snap.ConversationLength == contextanalysis.LengthLong {
		if v, ok := c.tables.LongConversation[label]; ok {
			factor *= v
		}
	}
	return factor
}

// AmbiguityPenalty returns 0.90, 0.95 or 1.0 depending on how close the
// runner-up is to selected. It only fires when selected is the top candidate.
func AmbiguityPenalty(candidates []intent.Scored, selected intent.Label) float64 {
	if len(candidates) < 2 {
		return 1.0
	}
	ranked := make([]intent.Scored, len(candidates))
	copy(ranked, candidates)
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Confidence > ranked[j].Confidence
	})
	if ranked[0].Intent != selected {
		return 1.0
	}
	gap := ranked[0].Confidence - ranked[1].Confidence
	switch {
	case gap < 0.1:
		return 0.90
	case gap < 0.2:
		return 0.95
	default:
		return 1.0
	}
}

// Explanation is an informational trail of which qualitative factors fired.
type Explanation struct {
	Base    float64  `json:"base"`
	Final   float64  `json:"final"`
	Delta   float64  `json:"delta"`
	Factors []string `json:"factors"`
}

// ExplainConfidence describes the context behind a score. It never affects
// scoring.
func ExplainConfidence(base, final float64, snap contextanalysis.Snapshot) Explanation {
	e := Explanation{Base: base, Final: final, Delta: final - base, Factors: []string{}}
	if snap.UserStatus == contextanalysis.StatusPending {
		e.Factors = append(e.Factors, fmt.Sprintf("pending status (%d days)", snap.DaysSincePending))
	}
	if snap.Urgency.Score > 0.5 {
		e.Factors = append(e.Factors, fmt.Sprintf("high urgency (%.2f)", snap.Urgency.Score))
	}
	switch snap.TimeOfDay {
	case contextanalysis.Night, contextanalysis.LateNight, contextanalysis.EarlyMorning:
		e.Factors = append(e.Factors, fmt.Sprintf("off-hours contact (%s)", snap.TimeOfDay))
	}
	if snap.IsFirstMessage {
		e.Factors = append(e.Factors, "first message")
	}
	if snap.RecentIssueCount > 0 {
		e.Factors = append(e.Factors, fmt.Sprintf("technical issue history (%d)", snap.RecentIssueCount))
	}
	return e
}

func clampBase(v float64) float64 {
	if math.IsNaN(v) || v <= 0 {
		return minBase
	}
	if v > 1 {
		return 1
	}
	return v
}

func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return lo
	}
	return math.Max(lo, math.Min(hi, v))
}
