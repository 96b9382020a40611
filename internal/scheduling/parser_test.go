package scheduling

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func showingSlots() *DialogueState {
	st := NewState("c-1", time.Date(2026, 3, 4, 2, 0, 0, 0, time.UTC))
	st.Stage = StageShowSlots
	st.ShownSlots = []Slot{
		{DisplayDate: "Thursday, Mar 5", Time: "2:00 PM", RawDate: "2026-03-05"},
		{DisplayDate: "Thursday, Mar 5", Time: "3:00 PM", RawDate: "2026-03-05"},
		{DisplayDate: "Friday, Mar 6", Time: "2:00 PM", RawDate: "2026-03-06"},
	}
	return st
}

func TestParseSlotSelection(t *testing.T) {
	st := showingSlots()
	cases := []struct {
		text  string
		index int
		ok    bool
	}{
		{"2", 2, true},
		{" #3 ", 3, true},
		{"option 1", 1, true},
		{"slot #2 please", 2, true},
		{"no 3", 3, true},
		{"the 2nd one", 2, true},
		{"first", 1, true},
		{"I'll take the second", 2, true},
		{"last one", 3, true},
		{"3pm", 2, true},
		{"2:00 pm", 1, true},
		{"friday 2pm", 3, true},
		{"7", 7, true},
		{"11am", 0, false},
		{"afternoon", 0, false},
	}
	for _, tc := range cases {
		t.Run(tc.text, func(t *testing.T) {
			p := Parse(tc.text, st)
			assert.Equal(t, tc.ok, p.IsSlotSelection)
			assert.Equal(t, tc.index, p.SlotIndex)
		})
	}
}

func TestParseSlotSelectionOnlyWhileShowingSlots(t *testing.T) {
	st := showingSlots()
	st.Stage = StageAskPreference
	p := Parse("2", st)
	assert.False(t, p.IsSlotSelection)

	assert.False(t, Parse("2", nil).IsSlotSelection)
}

func TestParseQuestions(t *testing.T) {
	cases := []struct {
		text     string
		question bool
		qt       QuestionType
	}{
		{"why", true, QuestionGeneral},
		{"how long does it take?", true, QuestionDuration},
		{"where is the interview", true, QuestionLocation},
		{"what should I prepare?", true, QuestionAgenda},
		{"can you do saturday?", true, QuestionOtherDates},
		{"any other days?", true, QuestionOtherDates},
		{"is it online", true, QuestionLocation},
		{"yes?", false, ""},
		{"2?", false, ""},
		{"can I change the time?", false, ""},
		{"tomorrow", true, QuestionOtherDates},
		{"friday", true, QuestionOtherDates},
		{"weekend", true, QuestionOtherDates},
		{"next week can", true, QuestionOtherDates},
		{"tomorrow afternoon", false, ""},
		{"yes tomorrow is fine", false, ""},
		{"afternoon please", false, ""},
	}
	for _, tc := range cases {
		t.Run(tc.text, func(t *testing.T) {
			p := Parse(tc.text, nil)
			assert.Equal(t, tc.question, p.IsQuestion)
			assert.Equal(t, tc.qt, p.QuestionType)
		})
	}
}

func TestParseConfirmationAndNegative(t *testing.T) {
	cases := []struct {
		text    string
		confirm bool
		neg     bool
	}{
		{"yes", true, false},
		{"Yes please!", true, false},
		{"ok", true, false},
		{"sounds good", true, false},
		{"no", false, true},
		{"not yet", false, true},
		{"maybe", false, false},
	}
	for _, tc := range cases {
		t.Run(tc.text, func(t *testing.T) {
			p := Parse(tc.text, nil)
			assert.Equal(t, tc.confirm, p.IsConfirmation)
			assert.Equal(t, tc.neg, p.IsNegative)
		})
	}
}

func TestParsePreference(t *testing.T) {
	cases := map[string]TimePreference{
		"morning":                   PreferenceMorning,
		"afternoon pls":             PreferenceAfternoon,
		"10am works":                PreferenceMorning,
		"after 2 pm":                PreferenceAfternoon,
		"morning or afternoon both": PreferenceMorning,
		"i am free":                 PreferenceNone,
		"whenever":                  PreferenceNone,
	}
	for text, want := range cases {
		assert.Equal(t, want, Parse(text, nil).TimePreference, text)
	}
}

func TestParseReschedule(t *testing.T) {
	assert.True(t, Parse("I need to reschedule", nil).IsReschedule)
	assert.True(t, Parse("can we change the time", nil).IsReschedule)
	assert.False(t, Parse("yes", nil).IsReschedule)
}

func TestParseEmpty(t *testing.T) {
	p := Parse("   ", showingSlots())
	assert.Equal(t, Parsed{}, p)
}
