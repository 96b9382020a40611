// Package scheduling runs the per-candidate dialogue that books a
// verification interview over free-text chat.
package scheduling

import (
	"fmt"
	"time"
)

// Stage is the position of a dialogue in the booking protocol.
type Stage string

const (
	StageGreeting          Stage = "GREETING"
	StageAskPreference     Stage = "ASK_PREFERENCE"
	StageShowSlots         Stage = "SHOW_SLOTS"
	StageAwaitConfirmation Stage = "AWAIT_CONFIRMATION"
	StageBooked            Stage = "BOOKED"
	// StageAnsweringQuestion is kept so stored rows that carry it still
	// decode. No transition enters it; questions leave the stage unchanged.
	StageAnsweringQuestion Stage = "ANSWERING_QUESTION"
)

// Valid reports whether s is a declared stage.
func (s Stage) Valid() bool {
	switch s {
	case StageGreeting, StageAskPreference, StageShowSlots, StageAwaitConfirmation, StageBooked, StageAnsweringQuestion:
		return true
	}
	return false
}

// TimePreference is the daypart a candidate asked for.
type TimePreference string

const (
	PreferenceNone      TimePreference = ""
	PreferenceMorning   TimePreference = "morning"
	PreferenceAfternoon TimePreference = "afternoon"
)

const (
	// StateTTL bounds every stage except BOOKED, measured from creation.
	StateTTL = 24 * time.Hour
	// BookedTTL is how long a BOOKED state lives after the booking.
	BookedTTL = 7 * 24 * time.Hour
	// SlotCount is the number of slots offered per preference.
	SlotCount = 3
)

// Slot is one offered interview option. It never changes once shown.
type Slot struct {
	DisplayDate string `json:"display_date"`
	Time        string `json:"time"`
	RawDate     string `json:"raw_date"`
}

// DialogueState is the single live row per candidate.
type DialogueState struct {
	CandidateID       string         `json:"candidate_id"`
	Stage             Stage          `json:"stage"`
	TimePreference    TimePreference `json:"time_preference,omitempty"`
	ShownSlots        []Slot         `json:"shown_slots,omitempty"`
	SelectedSlotIndex *int           `json:"selected_slot_index,omitempty"`
	SelectedDate      string         `json:"selected_date,omitempty"`
	SelectedTime      string         `json:"selected_time,omitempty"`
	BookingID         string         `json:"booking_id,omitempty"`
	Version           int64          `json:"version"`
	CreatedAt         time.Time      `json:"created_at"`
	LastUpdated       time.Time      `json:"last_updated"`
	ExpiresAt         time.Time      `json:"expires_at"`
}

// NewState returns a fresh GREETING state created at now.
func NewState(candidateID string, now time.Time) *DialogueState {
	return &DialogueState{
		CandidateID: candidateID,
		Stage:       StageGreeting,
		CreatedAt:   now,
		LastUpdated: now,
		ExpiresAt:   now.Add(StateTTL),
	}
}

// Expired reports whether the state should be treated as absent. A state
// without an expiry is considered expired.
func (s *DialogueState) Expired(now time.Time) bool {
	return s.ExpiresAt.IsZero() || !now.Before(s.ExpiresAt)
}

// Clone returns a deep copy.
func (s *DialogueState) Clone() *DialogueState {
	if s == nil {
		return nil
	}
	out := *s
	if s.ShownSlots != nil {
		out.ShownSlots = append([]Slot(nil), s.ShownSlots...)
	}
	if s.SelectedSlotIndex != nil {
		idx := *s.SelectedSlotIndex
		out.SelectedSlotIndex = &idx
	}
	return &out
}

// SelectedSlot returns the slot recorded by a selection, if any.
func (s *DialogueState) SelectedSlot() *Slot {
	if s.SelectedDate == "" && s.SelectedTime == "" {
		return nil
	}
	slot := Slot{RawDate: s.SelectedDate, Time: s.SelectedTime}
	if s.SelectedSlotIndex != nil {
		i := *s.SelectedSlotIndex - 1
		if i >= 0 && i < len(s.ShownSlots) {
			slot.DisplayDate = s.ShownSlots[i].DisplayDate
		}
	}
	return &slot
}

// Validate checks the invariants each stage relies on.
func (s *DialogueState) Validate() error {
	if !s.Stage.Valid() {
		return fmt.Errorf("%w: unknown stage %q", ErrCorruptState, s.Stage)
	}
	switch s.Stage {
	case StageShowSlots:
		if len(s.ShownSlots) != SlotCount {
			return fmt.Errorf("%w: %d shown slots", ErrCorruptState, len(s.ShownSlots))
		}
	case StageAwaitConfirmation:
		if s.SelectedDate == "" || s.SelectedTime == "" {
			return fmt.Errorf("%w: awaiting confirmation without a selection", ErrCorruptState)
		}
	}
	return nil
}

// Patch is a partial update. Nil fields are left untouched.
type Patch struct {
	Stage             *Stage
	TimePreference    *TimePreference
	ShownSlots        *[]Slot
	SelectedSlotIndex *int
	SelectedDate      *string
	SelectedTime      *string
	BookingID         *string
	ExpiresAt         *time.Time
	// ClearSelection drops the shown slots, the selection and the booking
	// reference before the other fields are applied.
	ClearSelection bool
	LastUpdated    time.Time
}

// Apply returns a copy of s with p applied. Version is not changed.
func (p Patch) Apply(s *DialogueState) *DialogueState {
	out := s.Clone()
	if p.ClearSelection {
		out.ShownSlots = nil
		out.SelectedSlotIndex = nil
		out.SelectedDate = ""
		out.SelectedTime = ""
		out.BookingID = ""
	}
	if p.Stage != nil {
		out.Stage = *p.Stage
	}
	if p.TimePreference != nil {
		out.TimePreference = *p.TimePreference
	}
	if p.ShownSlots != nil {
		out.ShownSlots = append([]Slot(nil), (*p.ShownSlots)...)
	}
	if p.SelectedSlotIndex != nil {
		idx := *p.SelectedSlotIndex
		out.SelectedSlotIndex = &idx
	}
	if p.SelectedDate != nil {
		out.SelectedDate = *p.SelectedDate
	}
	if p.SelectedTime != nil {
		out.SelectedTime = *p.SelectedTime
	}
	if p.BookingID != nil {
		out.BookingID = *p.BookingID
	}
	if p.ExpiresAt != nil {
		out.ExpiresAt = *p.ExpiresAt
	}
	if !p.LastUpdated.IsZero() {
		out.LastUpdated = p.LastUpdated
	}
	return out
}

func ptr[T any](v T) *T { return &v }
