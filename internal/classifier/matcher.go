// Package classifier runs the rule-based intent pipeline: normalization,
// pattern matching, context weighting and selection.
package classifier

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/wolfman30/staffline/internal/intent"
)

// Rule describes how one intent is recognized in normalized text.
type Rule struct {
	Intent   intent.Label `koanf:"intent"`
	Keywords []string     `koanf:"keywords"`
	Patterns []string     `koanf:"patterns"`
	Weight   float64      `koanf:"weight"`
}

// Matcher produces base-confidence candidates from normalized text.
type Matcher interface {
	Match(normalized string) []intent.Candidate
}

type compiledRule struct {
	intent   intent.Label
	keywords []string
	patterns []*regexp.Regexp
	weight   float64
}

// RuleMatcher scores intents by keyword and regexp hits. Each keyword hit
// adds 0.3 and each pattern hit adds 0.4 before the rule weight is applied.
type RuleMatcher struct {
	rules []compiledRule
}

// NewRuleMatcher compiles rules. An invalid pattern is an error.
func NewRuleMatcher(rules []Rule) (*RuleMatcher, error) {
	m := &RuleMatcher{rules: make([]compiledRule, 0, len(rules))}
	for _, r := range rules {
		cr := compiledRule{intent: r.Intent, weight: r.Weight}
		for _, kw := range r.Keywords {
			kw = strings.ToLower(strings.TrimSpace(kw))
			if kw != "" {
				cr.keywords = append(cr.keywords, kw)
			}
		}
		for _, p := range r.Patterns {
			re, err := regexp.Compile(p)
			if err != nil {
				return nil, fmt.Errorf("classifier: compile pattern %q for %s: %w", p, r.Intent, err)
			}
			cr.patterns = append(cr.patterns, re)
		}
		m.rules = append(m.rules, cr)
	}
	return m, nil
}

// MustDefaultMatcher returns a RuleMatcher over DefaultRules.
func MustDefaultMatcher() *RuleMatcher {
	m, err := NewRuleMatcher(DefaultRules())
	if err != nil {
		panic(err)
	}
	return m
}

// Match implements Matcher. Candidates are ordered by confidence, highest
// first.
func (m *RuleMatcher) Match(normalized string) []intent.Candidate {
	text := strings.TrimSpace(normalized)
	if text == "" {
		return nil
	}
	words := " " + strings.NewReplacer("?", " ", "!", " ").Replace(text) + " "
	var out []intent.Candidate
	for _, r := range m.rules {
		kwHits := 0
		for _, kw := range r.keywords {
			if strings.Contains(words, " "+kw+" ") {
				kwHits++
			}
		}
		patHits := 0
		for _, re := range r.patterns {
			if re.MatchString(text) {
				patHits++
			}
		}
		score := r.weight * (0.3*float64(kwHits) + 0.4*float64(patHits))
		if score > 1 {
			score = 1
		}
		if score > 0 {
			out = append(out, intent.Candidate{Intent: r.intent, BaseConfidence: score})
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].BaseConfidence > out[j].BaseConfidence
	})
	return out
}

// DefaultRules is the built-in rule set for candidate chat.
func DefaultRules() []Rule {
	return []Rule{
		{
			Intent:   intent.UrgentEscalation,
			Keywords: []string{"urgent", "emergency", "immediately", "complaint", "manager", "supervisor", "as soon as possible"},
			Patterns: []string{
				`\b(speak|talk)\b.*\b(human|manager|person|someone|supervisor)\b`,
				`\b(right now|help me now)\b`,
			},
			Weight: 1.0,
		},
		{
			Intent:   intent.VerificationQuestion,
			Keywords: []string{"verify", "verification", "verified", "approved", "approval", "pending", "status", "documents"},
			Patterns: []string{
				`\b(when|how long)\b.*\b(verif\w*|approv\w*|activated)\b`,
				`\bwhy\b.*\bpending\b`,
				`\baccount\b.*\b(approved|verified|active)\b`,
			},
			Weight: 0.95,
		},
		{
			Intent:   intent.ScheduleInterview,
			Keywords: []string{"interview", "schedule", "appointment", "book", "slot", "reschedule"},
			Patterns: []string{
				`\b(book|schedule|arrange|set up)\b.*\binterview\b`,
				`\binterview\b.*\b(today|tomorrow|when|time)\b`,
			},
			Weight: 0.9,
		},
		{
			Intent:   intent.PaymentInquiry,
			Keywords: []string{"pay", "payment", "salary", "paid", "payout", "wage", "wages", "money", "invoice", "bank"},
			Patterns: []string{
				`\b(when|where|how)\b.*\b(paid|pay|payment|salary)\b`,
				`\bnot\b.*\b(paid|received)\b`,
			},
			Weight: 0.9,
		},
		{
			Intent:   intent.TechnicalIssue,
			Keywords: []string{"error", "bug", "crash", "crashed", "login", "password", "app", "otp", "stuck", "loading"},
			Patterns: []string{
				`\b(cannot|can not|unable to|not able to)\b.*\b(login|log in|open|access|upload|see|load)\b`,
				`\b(not working|keeps crashing|broken)\b`,
			},
			Weight: 0.9,
		},
		{
			Intent:   intent.JobSearch,
			Keywords: []string{"job", "jobs", "work", "shift", "shifts", "opening", "vacancy", "gig", "assignment", "position", "hiring"},
			Patterns: []string{
				`\b(any|got|looking for|find|available)\b.*\b(job|jobs|work|shift|shifts)\b`,
			},
			Weight: 0.85,
		},
		{
			Intent:   intent.Greeting,
			Keywords: []string{"hi", "hello", "hey", "hiya", "good morning", "good afternoon", "good evening"},
			Patterns: []string{
				`^(hi|hello|hey|hiya|yo)\b`,
			},
			Weight: 0.8,
		},
		{
			Intent:   intent.GeneralHelp,
			Keywords: []string{"help", "question", "assist", "support", "information"},
			Patterns: []string{
				`\b(can you|could you|please)\b.*\bhelp\b`,
				`\bi (need|want) help\b`,
			},
			Weight: 0.6,
		},
	}
}
