package scheduling

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Scripts holds every message the dialogue can send plus the canned slot
// times. Placeholders use {name} syntax.
type Scripts struct {
	Greeting             string                      `koanf:"greeting"`
	AskPreference        string                      `koanf:"ask_preference"`
	ShowSlotsHeader      string                      `koanf:"show_slots_header"`
	ShowSlotsFooter      string                      `koanf:"show_slots_footer"`
	SlotReminder         string                      `koanf:"slot_reminder"`
	InvalidSlot          string                      `koanf:"invalid_slot"`
	ConfirmRequest       string                      `koanf:"confirm_request"`
	ConfirmationReminder string                      `koanf:"confirmation_reminder"`
	NegativeReminder     string                      `koanf:"negative_reminder"`
	BookingConfirmed     string                      `koanf:"booking_confirmed"`
	BookedAck            string                      `koanf:"booked_ack"`
	Reschedule           string                      `koanf:"reschedule"`
	BookingError         string                      `koanf:"booking_error"`
	Clarification        string                      `koanf:"clarification"`
	GenericError         string                      `koanf:"generic_error"`
	Answers              map[QuestionType]string     `koanf:"answers"`
	CannedTimes          map[TimePreference][]string `koanf:"canned_times"`
	DisplayDateLayout    string                      `koanf:"display_date_layout"`
}

// DefaultScripts returns the built-in scripts.
func DefaultScripts() Scripts {
	return Scripts{
		Greeting:             "Hi {name}! I can help you book your verification interview. It only takes about 15 minutes. Do you prefer a morning or afternoon slot?",
		AskPreference:        "Would you prefer a morning (9 AM to 12 PM) or afternoon (2 PM to 5 PM) interview?",
		ShowSlotsHeader:      "Here are the available {preference} slots:",
		ShowSlotsFooter:      "Reply 1, 2 or 3 to pick a slot.",
		SlotReminder:         "Please pick a slot by replying 1, 2 or 3. Reply CHANGE if you need a different time.",
		InvalidSlot:          "Sorry, I couldn't find that option. Please reply with a number between 1 and {count}.",
		ConfirmRequest:       "Great choice! You picked {date} at {time}. Reply YES to confirm your verification interview.",
		ConfirmationReminder: "Please reply YES to confirm {date} at {time}, or CHANGE to pick another time.",
		NegativeReminder:     "No problem. Reply CHANGE to pick another time, or YES to confirm {date} at {time}.",
		BookingConfirmed:     "You're all set! Your {duration}-minute verification interview is booked for {date} at {time}.",
		BookedAck:            "Your verification interview is booked for {date} at {time}. Reply CHANGE if you need to reschedule.",
		Reschedule:           "No problem, let's find a new time. Do you prefer a morning or afternoon slot?",
		BookingError:         "Sorry, we couldn't confirm your booking just now. Please reply YES to try again.",
		Clarification:        "Sorry, I lost track of our conversation. Do you prefer a morning or afternoon slot for your verification interview?",
		GenericError:         "Sorry, something went wrong on our side. A member of our team will reach out to help you shortly.",
		Answers: map[QuestionType]string{
			QuestionAgenda:     "The verification interview is a short video call. We confirm your identity and documents, then explain how jobs work on the platform.",
			QuestionDuration:   "The interview takes about 15 minutes.",
			QuestionLocation:   "The interview is done online over a video call. We'll send you the link once it's booked.",
			QuestionOtherDates: "Right now I can offer slots over the next two days. Reply CHANGE and tell me morning or afternoon to see the options.",
			QuestionGeneral:    "Happy to help! Your verification interview is a quick 15-minute video call. Reply CHANGE at any time to pick a different slot.",
		},
		CannedTimes: map[TimePreference][]string{
			PreferenceMorning:   {"9:00 AM", "10:00 AM", "11:00 AM"},
			PreferenceAfternoon: {"2:00 PM", "3:00 PM", "4:00 PM"},
		},
		DisplayDateLayout: "Monday, Jan 2",
	}
}

// Validate checks that slot generation can run.
func (s Scripts) Validate() error {
	var errs []error
	for _, pref := range []TimePreference{PreferenceMorning, PreferenceAfternoon} {
		if len(s.CannedTimes[pref]) < 2 {
			errs = append(errs, fmt.Errorf("scheduling: %s needs at least two canned times", pref))
		}
	}
	if strings.TrimSpace(s.DisplayDateLayout) == "" {
		errs = append(errs, errors.New("scheduling: display date layout is required"))
	}
	return errors.Join(errs...)
}

// Answer returns the scripted answer for qt, falling back to the general one.
func (s Scripts) Answer(qt QuestionType) string {
	if a, ok := s.Answers[qt]; ok && a != "" {
		return a
	}
	return s.Answers[QuestionGeneral]
}

// GenerateSlots returns three slots: the first two canned times tomorrow and
// the first canned time the day after, in loc.
func GenerateSlots(now time.Time, loc *time.Location, times []string, layout string) ([]Slot, error) {
	if len(times) < 2 {
		return nil, errors.New("scheduling: not enough canned times")
	}
	if loc == nil {
		loc = time.UTC
	}
	y, m, d := now.In(loc).Date()
	tomorrow := time.Date(y, m, d+1, 0, 0, 0, 0, loc)
	dayAfter := time.Date(y, m, d+2, 0, 0, 0, 0, loc)
	mk := func(day time.Time, t string) Slot {
		return Slot{DisplayDate: day.Format(layout), Time: t, RawDate: day.Format(rawDateLayout)}
	}
	return []Slot{mk(tomorrow, times[0]), mk(tomorrow, times[1]), mk(dayAfter, times[0])}, nil
}

const rawDateLayout = "2006-01-02"

func render(tpl string, vars map[string]string) string {
	pairs := make([]string, 0, len(vars)*2)
	for k, v := range vars {
		pairs = append(pairs, "{"+k+"}", v)
	}
	return strings.NewReplacer(pairs...).Replace(tpl)
}

func (s Scripts) displayDate(raw string) string {
	d, err := time.Parse(rawDateLayout, raw)
	if err != nil {
		return raw
	}
	return d.Format(s.DisplayDateLayout)
}

func formatSlotList(slots []Slot) string {
	var b strings.Builder
	for i, s := range slots {
		fmt.Fprintf(&b, "%d. %s at %s\n", i+1, s.DisplayDate, s.Time)
	}
	return strings.TrimRight(b.String(), "\n")
}
