package scheduling

import (
	"regexp"
	"strconv"
	"strings"
)

// QuestionType selects the scripted answer for a question.
type QuestionType string

const (
	QuestionAgenda     QuestionType = "agenda"
	QuestionDuration   QuestionType = "duration"
	QuestionLocation   QuestionType = "location"
	QuestionOtherDates QuestionType = "other_dates"
	QuestionGeneral    QuestionType = "general"
)

// Parsed holds the scheduling tags for one message. Slot selection is only
// evaluated while slots are on screen.
type Parsed struct {
	Text            string         `json:"text"`
	IsQuestion      bool           `json:"is_question"`
	QuestionType    QuestionType   `json:"question_type,omitempty"`
	IsReschedule    bool           `json:"is_reschedule"`
	IsConfirmation  bool           `json:"is_confirmation"`
	IsNegative      bool           `json:"is_negative"`
	IsSlotSelection bool           `json:"is_slot_selection"`
	SlotIndex       int            `json:"slot_index,omitempty"`
	TimePreference  TimePreference `json:"time_preference,omitempty"`
}

var (
	interrogativeRE = regexp.MustCompile(`^(what|whats|when|where|why|how|who|which|is|are|do|does|did|will|would|should|could|may i|can (i|you|we|u))\b`)
	otherDatesRE    = regexp.MustCompile(`\b(monday|tuesday|wednesday|thursday|friday|saturday|sunday|mon|tue|tues|wed|thu|thur|thurs|fri|sat|sun|weekend|weekday|tomorrow|tmr|today|tonight|next week|other (day|days|date|dates)|another (day|date)|different (day|date))\b`)
	durationRE      = regexp.MustCompile(`\b(how long|duration|minutes|mins|hours|take)\b`)
	locationRE      = regexp.MustCompile(`\b(where|location|address|venue|online|zoom|video|phone|call|office)\b`)
	agendaRE        = regexp.MustCompile(`\b(agenda|about|prepare|bring|expect|happens|documents|need to)\b`)
	rescheduleRE    = regexp.MustCompile(`\b(reschedule|change|different|cancel|postpone|move)\b`)
	affirmativeRE   = regexp.MustCompile(`^(yes|yeah|yep|yup|ya|yah|ok|okay|sure|confirm|confirmed|correct|can|alright|sounds good|book it|go ahead|please do|lets do it|that works|perfect|great)\b`)
	negativeRE      = regexp.MustCompile(`^(no|nope|nah|not|dont|don't|cannot|can't|cant)\b`)
	morningRE       = regexp.MustCompile(`\b(morning|mornings|early|breakfast)\b|\d\s*(am|a\.m\.)`)
	afternoonRE     = regexp.MustCompile(`\b(afternoon|afternoons|evening|after lunch|later)\b|\d\s*(pm|p\.m\.)`)

	bareIndexRE    = regexp.MustCompile(`^#?\s*(\d+)$`)
	labeledIndexRE = regexp.MustCompile(`\b(?:option|slot|number|choice|no)\s*#?\s*(\d+)\b|#\s*(\d+)\b`)
	ordinalIndexRE = regexp.MustCompile(`\b(\d+)(?:st|nd|rd|th)\b`)
	ordinalWordRE  = regexp.MustCompile(`\b(first|second|third|last)\b`)
	slotTimeRE     = regexp.MustCompile(`(\d{1,2})(?::(\d{2}))?\s*(am|pm|a\.m\.|p\.m\.)`)
)

var ordinalWords = map[string]int{"first": 1, "second": 2, "third": 3}

// Parse tags text against the current dialogue state.
func Parse(text string, st *DialogueState) Parsed {
	msg := strings.ToLower(strings.TrimSpace(text))
	msg = strings.Join(strings.Fields(msg), " ")
	p := Parsed{Text: msg}
	if msg == "" {
		return p
	}

	p.IsReschedule = rescheduleRE.MatchString(msg)
	p.IsNegative = negativeRE.MatchString(msg)
	p.IsConfirmation = affirmativeRE.MatchString(msg) && !p.IsNegative
	p.TimePreference = parsePreference(msg)

	if st != nil && st.Stage == StageShowSlots && len(st.ShownSlots) > 0 {
		p.SlotIndex, p.IsSlotSelection = parseSlotSelection(msg, st.ShownSlots)
	}

	p.IsQuestion, p.QuestionType = parseQuestion(msg, p)
	return p
}

// parseQuestion treats any mention of a day as asking about other dates,
// unless the same message picks a shown slot, names a daypart or confirms.
func parseQuestion(msg string, p Parsed) (bool, QuestionType) {
	core := strings.TrimSpace(strings.Trim(msg, "?! "))
	if otherDatesRE.MatchString(msg) {
		if strings.Contains(msg, "?") || interrogativeRE.MatchString(msg) {
			return true, QuestionOtherDates
		}
		if !p.IsSlotSelection && p.TimePreference == PreferenceNone && !p.IsConfirmation {
			return true, QuestionOtherDates
		}
	}
	if p.IsReschedule {
		return false, ""
	}
	asked := interrogativeRE.MatchString(msg)
	if !asked && strings.Contains(msg, "?") {
		// "yes?" or "2?" are answers, not questions.
		asked = !(affirmativeRE.MatchString(core) && len(strings.Fields(core)) == 1) && !bareIndexRE.MatchString(core)
	}
	if !asked {
		return false, ""
	}
	switch {
	case durationRE.MatchString(msg):
		return true, QuestionDuration
	case locationRE.MatchString(msg):
		return true, QuestionLocation
	case agendaRE.MatchString(msg):
		return true, QuestionAgenda
	default:
		return true, QuestionGeneral
	}
}

func parsePreference(msg string) TimePreference {
	m := morningRE.FindStringIndex(msg)
	a := afternoonRE.FindStringIndex(msg)
	switch {
	case m == nil && a == nil:
		return PreferenceNone
	case a == nil:
		return PreferenceMorning
	case m == nil:
		return PreferenceAfternoon
	case m[0] <= a[0]:
		return PreferenceMorning
	default:
		return PreferenceAfternoon
	}
}

// parseSlotSelection returns the 1-based index the message refers to. The
// index may be out of range; callers re-prompt in that case.
func parseSlotSelection(msg string, slots []Slot) (int, bool) {
	if m := bareIndexRE.FindStringSubmatch(msg); m != nil {
		return atoi(m[1]), true
	}
	if m := labeledIndexRE.FindStringSubmatch(msg); m != nil {
		if m[1] != "" {
			return atoi(m[1]), true
		}
		return atoi(m[2]), true
	}
	if m := ordinalIndexRE.FindStringSubmatch(msg); m != nil {
		return atoi(m[1]), true
	}
	if m := ordinalWordRE.FindStringSubmatch(msg); m != nil {
		if m[1] == "last" {
			return len(slots), true
		}
		return ordinalWords[m[1]], true
	}
	if idx := matchSlotTime(msg, slots); idx > 0 {
		return idx, true
	}
	return 0, false
}

// matchSlotTime matches "2pm", "2:00 pm" and similar against the shown slot
// times. When several slots share the time, a weekday named in the message
// breaks the tie; otherwise the earliest slot wins.
func matchSlotTime(msg string, slots []Slot) int {
	m := slotTimeRE.FindStringSubmatch(msg)
	if m == nil {
		return 0
	}
	hour, minute := atoi(m[1]), 0
	if m[2] != "" {
		minute = atoi(m[2])
	}
	meridiem := strings.ReplaceAll(m[3], ".", "")

	var matches []int
	for i, s := range slots {
		sh, sm, smer, ok := splitClock(s.Time)
		if ok && sh == hour && sm == minute && smer == meridiem {
			matches = append(matches, i+1)
		}
	}
	if len(matches) == 0 {
		return 0
	}
	for _, idx := range matches {
		day := strings.ToLower(strings.SplitN(slots[idx-1].DisplayDate, ",", 2)[0])
		if day != "" && strings.Contains(msg, day) {
			return idx
		}
	}
	return matches[0]
}

// splitClock parses "2:00 PM" into (2, 0, "pm").
func splitClock(s string) (int, int, string, bool) {
	m := slotTimeRE.FindStringSubmatch(strings.ToLower(s))
	if m == nil {
		return 0, 0, "", false
	}
	minute := 0
	if m[2] != "" {
		minute = atoi(m[2])
	}
	return atoi(m[1]), minute, strings.ReplaceAll(m[3], ".", ""), true
}

func atoi(s string) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return n
}
