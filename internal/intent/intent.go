// Package intent defines the intent vocabulary shared by the matcher, the
// confidence calculator and the assistant router.
package intent

import "strings"

// Label names what the user is trying to do.
type Label string

const (
	Greeting             Label = "greeting"
	JobSearch            Label = "job_search"
	VerificationQuestion Label = "verification_question"
	ScheduleInterview    Label = "schedule_interview"
	PaymentInquiry       Label = "payment_inquiry"
	TechnicalIssue       Label = "technical_issue"
	UrgentEscalation     Label = "urgent_escalation"
	GeneralHelp          Label = "general_help"
)

// All returns every known label in a stable order.
func All() []Label {
	return []Label{
		Greeting,
		JobSearch,
		VerificationQuestion,
		ScheduleInterview,
		PaymentInquiry,
		TechnicalIssue,
		UrgentEscalation,
		GeneralHelp,
	}
}

// Known reports whether l is part of the built-in vocabulary.
func (l Label) Known() bool {
	for _, k := range All() {
		if k == l {
			return true
		}
	}
	return false
}

// Parse normalizes s into a Label. Unknown labels are returned as-is so
// downstream tables can fall back to their defaults.
func Parse(s string) Label {
	return Label(strings.ToLower(strings.TrimSpace(s)))
}

// Candidate is an unadjusted match produced by a pattern matcher.
type Candidate struct {
	Intent         Label   `json:"intent"`
	BaseConfidence float64 `json:"base_confidence"`
}

// Scored is a candidate after context weighting.
type Scored struct {
	Intent      Label    `json:"intent"`
	Confidence  float64  `json:"confidence"`
	Explanation []string `json:"explanation,omitempty"`
}
