package confidence

import "github.com/wolfman30/staffline/internal/intent"

// Period is the coarse time bucket used by the time-of-day table.
type Period string

const (
	BusinessHours Period = "business_hours"
	EveningPeriod Period = "evening"
	LateNight     Period = "late_night"
	Weekend       Period = "weekend"
)

// Bounds is an inclusive per-intent confidence range.
type Bounds struct {
	Min float64 `koanf:"min" json:"min"`
	Max float64 `koanf:"max" json:"max"`
}

// Tables holds every tuning table the calculator reads. A Calculator copies
// the tables it is given, so callers may not mutate them afterwards.
type Tables struct {
	Bounds              map[intent.Label]Bounds             `koanf:"bounds"`
	DefaultBounds       Bounds                              `koanf:"default_bounds"`
	TimeOfDay           map[intent.Label]map[Period]float64 `koanf:"time_of_day"`
	Status              map[string]map[intent.Label]float64 `koanf:"status"`
	PendingBoostPerDay  float64                             `koanf:"pending_boost_per_day"`
	PendingBoostCap     float64                             `koanf:"pending_boost_cap"`
	PendingBoostIntents []intent.Label                      `koanf:"pending_boost_intents"`
	UrgencyThreshold    float64                             `koanf:"urgency_threshold"`
	UrgencyBoost        float64                             `koanf:"urgency_boost"`
	FirstMessage        map[intent.Label]float64            `koanf:"first_message"`
	ExternalChannel     map[intent.Label]float64            `koanf:"external_channel"`
	LongConversation    map[intent.Label]float64            `koanf:"long_conversation"`
}

// DefaultTables returns the built-in tuning.
func DefaultTables() Tables {
	return Tables{
		Bounds: map[intent.Label]Bounds{
			intent.UrgentEscalation:     {Min: 0.15, Max: 0.98},
			intent.GeneralHelp:          {Min: 0.1, Max: 0.85},
			intent.VerificationQuestion: {Min: 0.15, Max: 0.95},
			intent.JobSearch:            {Min: 0.1, Max: 0.95},
			intent.PaymentInquiry:       {Min: 0.1, Max: 0.92},
			intent.TechnicalIssue:       {Min: 0.1, Max: 0.92},
			intent.Greeting:             {Min: 0.1, Max: 0.9},
		},
		DefaultBounds: Bounds{Min: 0.1, Max: 0.95},
		TimeOfDay: map[intent.Label]map[Period]float64{
			intent.UrgentEscalation:     {LateNight: 1.15, Weekend: 1.1, EveningPeriod: 1.05},
			intent.TechnicalIssue:       {BusinessHours: 1.05, LateNight: 0.95},
			intent.JobSearch:            {BusinessHours: 1.05, EveningPeriod: 1.0, LateNight: 0.9, Weekend: 0.95},
			intent.PaymentInquiry:       {BusinessHours: 1.05, LateNight: 0.9},
			intent.VerificationQuestion: {BusinessHours: 1.1, EveningPeriod: 1.0, LateNight: 0.9},
			intent.GeneralHelp:          {LateNight: 0.95},
		},
		Status: map[string]map[intent.Label]float64{
			"pending": {
				intent.VerificationQuestion: 1.3,
				intent.ScheduleInterview:    1.25,
				intent.JobSearch:            0.8,
				intent.PaymentInquiry:       0.6,
				intent.UrgentEscalation:     1.1,
				intent.TechnicalIssue:       1.0,
				intent.GeneralHelp:          1.0,
			},
			"active": {
				intent.JobSearch:            1.2,
				intent.PaymentInquiry:       1.15,
				intent.VerificationQuestion: 0.7,
				intent.TechnicalIssue:       1.05,
			},
			"interview_scheduled": {
				intent.VerificationQuestion: 1.15,
				intent.ScheduleInterview:    1.2,
				intent.JobSearch:            0.85,
			},
			"inactive": {
				intent.UrgentEscalation: 1.2,
				intent.GeneralHelp:      1.1,
				intent.JobSearch:        0.7,
			},
		},
		PendingBoostPerDay:  0.05,
		PendingBoostCap:     0.2,
		PendingBoostIntents: []intent.Label{intent.VerificationQuestion, intent.UrgentEscalation},
		UrgencyThreshold:    0.5,
		UrgencyBoost:        1.1,
		FirstMessage: map[intent.Label]float64{
			intent.Greeting:             1.15,
			intent.GeneralHelp:          1.05,
			intent.VerificationQuestion: 1.0,
			intent.JobSearch:            1.0,
			intent.UrgentEscalation:     0.9,
			intent.TechnicalIssue:       0.95,
			intent.PaymentInquiry:       0.95,
		},
		ExternalChannel: map[intent.Label]float64{
			intent.UrgentEscalation:     1.1,
			intent.TechnicalIssue:       1.05,
			intent.GeneralHelp:          1.0,
			intent.VerificationQuestion: 1.05,
		},
		LongConversation: map[intent.Label]float64{
			intent.UrgentEscalation: 1.15,
			intent.TechnicalIssue:   1.1,
			intent.GeneralHelp:      0.95,
			intent.Greeting:         0.95,
		},
	}
}

// Clone returns a deep copy of t.
func (t Tables) Clone() Tables {
	out := t
	out.Bounds = make(map[intent.Label]Bounds, len(t.Bounds))
	for k, v := range t.Bounds {
		out.Bounds[k] = v
	}
	out.TimeOfDay = make(map[intent.Label]map[Period]float64, len(t.TimeOfDay))
	for k, v := range t.TimeOfDay {
		inner := make(map[Period]float64, len(v))
		for p, f := range v {
			inner[p] = f
		}
		out.TimeOfDay[k] = inner
	}
	out.Status = make(map[string]map[intent.Label]float64, len(t.Status))
	for k, v := range t.Status {
		out.Status[k] = cloneFactors(v)
	}
	out.PendingBoostIntents = append([]intent.Label(nil), t.PendingBoostIntents...)
	out.FirstMessage = cloneFactors(t.FirstMessage)
	out.ExternalChannel = cloneFactors(t.ExternalChannel)
	out.LongConversation = cloneFactors(t.LongConversation)
	return out
}

// BoundsFor returns the bounds for label, falling back to DefaultBounds.
func (t Tables) BoundsFor(label intent.Label) Bounds {
	if b, ok := t.Bounds[label]; ok {
		return b
	}
	return t.DefaultBounds
}

func cloneFactors(in map[intent.Label]float64) map[intent.Label]float64 {
	out := make(map[intent.Label]float64, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
