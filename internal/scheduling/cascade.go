package scheduling

// Intent is the scheduling action chosen for a message. The concrete types
// below are the only implementations.
type Intent interface {
	intentName() string
}

// AskQuestion answers from the script and never changes the stage.
type AskQuestion struct {
	Type QuestionType
}

// RequestReschedule returns the dialogue to ASK_PREFERENCE from any stage.
type RequestReschedule struct{}

// SelectSlot picks one of the shown slots. Valid is false when the index is
// out of range.
type SelectSlot struct {
	Index int
	Valid bool
}

// ConfirmBooking books the selected slot.
type ConfirmBooking struct{}

// StageDefault is the per-stage fallback handling.
type StageDefault struct {
	Preference TimePreference
	Negative   bool
}

func (AskQuestion) intentName() string       { return "question" }
func (RequestReschedule) intentName() string { return "reschedule" }
func (SelectSlot) intentName() string        { return "slot_selection" }
func (ConfirmBooking) intentName() string    { return "confirmation" }
func (StageDefault) intentName() string      { return "stage_default" }

// IntentName returns the rule name an intent came from.
func IntentName(in Intent) string {
	if in == nil {
		return ""
	}
	return in.intentName()
}

// Rule is one step of the priority cascade.
type Rule struct {
	Name  string
	Match func(p Parsed, st *DialogueState) (Intent, bool)
}

// Cascade is evaluated in order; the first match wins. StageDefault applies
// when nothing matches.
var Cascade = []Rule{
	{Name: "question", Match: matchQuestion},
	{Name: "reschedule", Match: matchReschedule},
	{Name: "slot_selection", Match: matchSlotSelection},
	{Name: "confirmation", Match: matchConfirmation},
}

// Route runs the cascade for p against st.
func Route(p Parsed, st *DialogueState) Intent {
	for _, r := range Cascade {
		if in, ok := r.Match(p, st); ok {
			return in
		}
	}
	return StageDefault{Preference: p.TimePreference, Negative: p.IsNegative}
}

func matchQuestion(p Parsed, _ *DialogueState) (Intent, bool) {
	if !p.IsQuestion {
		return nil, false
	}
	qt := p.QuestionType
	if qt == "" {
		qt = QuestionGeneral
	}
	return AskQuestion{Type: qt}, true
}

func matchReschedule(p Parsed, _ *DialogueState) (Intent, bool) {
	if !p.IsReschedule {
		return nil, false
	}
	return RequestReschedule{}, true
}

func matchSlotSelection(p Parsed, st *DialogueState) (Intent, bool) {
	if !p.IsSlotSelection || st == nil || st.Stage != StageShowSlots || len(st.ShownSlots) == 0 {
		return nil, false
	}
	valid := p.SlotIndex >= 1 && p.SlotIndex <= len(st.ShownSlots)
	return SelectSlot{Index: p.SlotIndex, Valid: valid}, true
}

func matchConfirmation(p Parsed, st *DialogueState) (Intent, bool) {
	if !p.IsConfirmation || st == nil || st.Stage != StageAwaitConfirmation {
		return nil, false
	}
	return ConfirmBooking{}, true
}
