// Package contextanalysis turns candidate and message metadata into a
// situational snapshot used to weight intent confidence.
package contextanalysis

import (
	"math"
	"time"

	"github.com/wolfman30/staffline/internal/clock"
	"github.com/wolfman30/staffline/internal/intent"
)

// TimeBucket is one of the seven time-of-day buckets.
type TimeBucket string

const (
	EarlyMorning TimeBucket = "early_morning"
	Morning      TimeBucket = "morning"
	LunchTime    TimeBucket = "lunch_time"
	Afternoon    TimeBucket = "afternoon"
	Evening      TimeBucket = "evening"
	Night        TimeBucket = "night"
	LateNight    TimeBucket = "late_night"
)

// LengthCategory buckets the conversation length.
type LengthCategory string

const (
	LengthNew     LengthCategory = "new"
	LengthOngoing LengthCategory = "ongoing"
	LengthLong    LengthCategory = "long"
)

// QualityLevel buckets how much context was available.
type QualityLevel string

const (
	QualityExcellent QualityLevel = "excellent"
	QualityGood      QualityLevel = "good"
	QualityModerate  QualityLevel = "moderate"
	QualityLimited   QualityLevel = "limited"
	QualityMinimal   QualityLevel = "minimal"
)

// Urgency factor codes.
const (
	FactorOffHours        = "off_hours"
	FactorLongPending     = "long_pending"
	FactorRepeatedIssues  = "repeated_technical_issues"
	FactorExternalChannel = "external_channel"
)

const (
	// StatusPending is the candidate status that waits on verification.
	StatusPending = "pending"
	// ExternalChannel is the channel name for third-party messaging apps.
	ExternalChannel = "external-messaging-app"
	// DefaultTimezone is used when the analyzer is built without a location.
	DefaultTimezone = "Asia/Singapore"
)

// RawContext is the unprocessed input. Pointer fields distinguish "unknown"
// from zero for the quality score.
type RawContext struct {
	UserStatus       string    `json:"user_status,omitempty"`
	CreatedAt        time.Time `json:"created_at,omitempty"`
	CompletedJobs    *int      `json:"completed_jobs,omitempty"`
	RecentIssueCount int       `json:"recent_issue_count,omitempty"`
	MessageCount     *int      `json:"message_count,omitempty"`
	IsFirstMessage   bool      `json:"is_first_message,omitempty"`
	Channel          string    `json:"channel,omitempty"`
	DeviceType       string    `json:"device_type,omitempty"`
	Timestamp        time.Time `json:"timestamp,omitempty"`
	Weekend          *bool     `json:"weekend,omitempty"`
}

// Urgency is the accumulated urgency score and the factors that fired.
type Urgency struct {
	Factors []string `json:"factors"`
	Score   float64  `json:"score"`
}

// Quality describes how complete the context was.
type Quality struct {
	Score float64      `json:"score"`
	Level QualityLevel `json:"level"`
}

// Snapshot is the structured view of a message's situation. It is never
// persisted.
type Snapshot struct {
	UserStatus         string         `json:"user_status"`
	TimeOfDay          TimeBucket     `json:"time_of_day"`
	Hour               int            `json:"hour"`
	IsWeekend          bool           `json:"is_weekend"`
	IsBusinessHours    bool           `json:"is_business_hours"`
	DaysSincePending   int            `json:"days_since_pending"`
	HasCompletedJobs   bool           `json:"has_completed_jobs"`
	RecentIssueCount   int            `json:"recent_issue_count"`
	IsFirstMessage     bool           `json:"is_first_message"`
	Channel            string         `json:"channel,omitempty"`
	DeviceType         string         `json:"device_type,omitempty"`
	ConversationLength LengthCategory `json:"conversation_length"`
	Urgency            Urgency        `json:"urgency"`
	Quality            Quality        `json:"quality"`
	AnalyzedAt         time.Time      `json:"analyzed_at"`
}

// Analyzer builds snapshots. It holds no mutable state.
type Analyzer struct {
	clock clock.Clock
	loc   *time.Location
}

// Option configures an Analyzer.
type Option func(*Analyzer)

// WithClock overrides the clock used when RawContext carries no timestamp.
func WithClock(c clock.Clock) Option {
	return func(a *Analyzer) {
		if c != nil {
			a.clock = c
		}
	}
}

// WithLocation sets the timezone used for bucketing.
func WithLocation(loc *time.Location) Option {
	return func(a *Analyzer) {
		if loc != nil {
			a.loc = loc
		}
	}
}

// NewAnalyzer returns an Analyzer in DefaultTimezone on the system clock.
func NewAnalyzer(opts ...Option) *Analyzer {
	a := &Analyzer{clock: clock.System{}, loc: defaultLocation()}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

func defaultLocation() *time.Location {
	loc, err := time.LoadLocation(DefaultTimezone)
	if err != nil {
		return time.FixedZone("SGT", 8*60*60)
	}
	return loc
}

// Location returns the analyzer's timezone.
func (a *Analyzer) Location() *time.Location { return a.loc }

// Analyze builds a Snapshot from raw. It is deterministic for a given clock.
func (a *Analyzer) Analyze(raw RawContext) Snapshot {
	at := raw.Timestamp
	if at.IsZero() {
		at = a.clock.Now()
	}
	local := at.In(a.loc)
	bucket := Bucket(local.Hour())

	weekend := local.Weekday() == time.Saturday || local.Weekday() == time.Sunday
	if raw.Weekend != nil {
		weekend = *raw.Weekend
	}

	snap := Snapshot{
		UserStatus:       raw.UserStatus,
		TimeOfDay:        bucket,
		Hour:             local.Hour(),
		IsWeekend:        weekend,
		IsBusinessHours:  !weekend && (bucket == Morning || bucket == LunchTime || bucket == Afternoon),
		RecentIssueCount: raw.RecentIssueCount,
		IsFirstMessage:   raw.IsFirstMessage,
		Channel:          raw.Channel,
		DeviceType:       raw.DeviceType,
		AnalyzedAt:       at,
	}
	if raw.CompletedJobs != nil {
		snap.HasCompletedJobs = *raw.CompletedJobs > 0
	}
	if raw.UserStatus == StatusPending && !raw.CreatedAt.IsZero() {
		days := int(math.Floor(at.Sub(raw.CreatedAt).Hours() / 24))
		if days > 0 {
			snap.DaysSincePending = days
		}
	}
	count := 0
	if raw.MessageCount != nil {
		count = *raw.MessageCount
	}
	snap.ConversationLength = LengthFor(count)
	snap.Urgency = urgency(snap)
	snap.Quality = quality(raw)
	return snap
}

// Bucket maps an hour (0-23) to its TimeBucket.
func Bucket(hour int) TimeBucket {
	switch {
	case hour >= 6 && hour < 9:
		return EarlyMorning
	case hour >= 9 && hour < 12:
		return Morning
	case hour >= 12 && hour < 14:
		return LunchTime
	case hour >= 14 && hour < 17:
		return Afternoon
	case hour >= 17 && hour < 20:
		return Evening
	case hour >= 20 && hour < 23:
		return Night
	default:
		return LateNight
	}
}

// LengthFor buckets a message count.
func LengthFor(messages int) LengthCategory {
	switch {
	case messages <= 2:
		return LengthNew
	case messages <= 10:
		return LengthOngoing
	default:
		return LengthLong
	}
}

func isOffHours(b TimeBucket) bool {
	return b == Night || b == LateNight || b == EarlyMorning
}

func urgency(s Snapshot) Urgency {
	u := Urgency{Factors: []string{}}
	if isOffHours(s.TimeOfDay) {
		u.Score += 0.2
		u.Factors = append(u.Factors, FactorOffHours)
	}
	if s.UserStatus == StatusPending && s.DaysSincePending > 3 {
		u.Score += 0.3
		u.Factors = append(u.Factors, FactorLongPending)
	}
	if s.RecentIssueCount >= 2 {
		u.Score += 0.2
		u.Factors = append(u.Factors, FactorRepeatedIssues)
	}
	if s.Channel == ExternalChannel {
		u.Score += 0.1
		u.Factors = append(u.Factors, FactorExternalChannel)
	}
	u.Score = math.Min(1, round2(u.Score))
	return u
}

func quality(raw RawContext) Quality {
	score := 0.0
	if raw.UserStatus != "" {
		score += 0.3
	}
	if !raw.Timestamp.IsZero() {
		score += 0.2
	}
	if raw.CompletedJobs != nil {
		score += 0.2
	}
	if raw.MessageCount != nil {
		score += 0.15
	}
	if raw.DeviceType != "" {
		score += 0.1
	}
	if raw.Channel != "" {
		score += 0.05
	}
	score = round2(score)
	return Quality{Score: score, Level: LevelFor(score)}
}

// LevelFor buckets a quality score.
func LevelFor(score float64) QualityLevel {
	switch {
	case score >= 0.8:
		return QualityExcellent
	case score >= 0.6:
		return QualityGood
	case score >= 0.4:
		return QualityModerate
	case score >= 0.2:
		return QualityLimited
	default:
		return QualityMinimal
	}
}

// ConfidenceAdjustment returns a multiplier in [0.8, 1.2] for label given the
// snapshot.
func ConfidenceAdjustment(label intent.Label, s Snapshot) float64 {
	adj := 1.0
	pending := s.UserStatus == StatusPending
	switch {
	case pending && label == intent.VerificationQuestion:
		adj *= 1.2
	case pending && label == intent.JobSearch:
		adj *= 0.9
	}
	if !s.HasCompletedJobs && label == intent.PaymentInquiry {
		adj *= 0.8
	}
	if s.TimeOfDay == LateNight && label == intent.UrgentEscalation {
		adj *= 1.1
	}
	if s.IsBusinessHours && label == intent.TechnicalIssue {
		adj *= 1.1
	}
	switch s.Quality.Level {
	case QualityExcellent:
		adj += 0.05
	case QualityLimited, QualityMinimal:
		adj -= 0.05
	}
	return math.Max(0.8, math.Min(1.2, adj))
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
