package assistant

import "github.com/wolfman30/staffline/internal/intent"

// Replies maps an intent to the canned answer given to candidates outside the
// scheduling dialogue.
type Replies map[intent.Label]string

// DefaultReplies returns the built-in canned answers.
func DefaultReplies() Replies {
	return Replies{
		intent.Greeting:             "Hi! How can we help you today?",
		intent.JobSearch:            "You can browse open shifts in the Jobs tab. New listings are posted every morning.",
		intent.VerificationQuestion: "Verification is a short video interview. Once it is done you can start applying for jobs.",
		intent.ScheduleInterview:    "Interviews are booked once your profile is submitted for verification. We'll message you when it's your turn.",
		intent.PaymentInquiry:       "Payments are released within 3 working days after a job is marked complete. You can track them under Earnings.",
		intent.TechnicalIssue:       "Sorry about the trouble. Please try updating the app. If it keeps happening, our support team will follow up.",
		intent.UrgentEscalation:     "We've flagged your message as urgent and a team member will contact you as soon as possible.",
		intent.GeneralHelp:          "Thanks for your message. Could you tell us a bit more about what you need?",
	}
}

func (r Replies) For(label intent.Label) string {
	if text, ok := r[label]; ok && text != "" {
		return text
	}
	return r[intent.GeneralHelp]
}
