package scheduling

// ResponseType tags an outbound message for the delivery layer.
type ResponseType string

const (
	ResponseGreeting             ResponseType = "greeting"
	ResponseAskPreference        ResponseType = "ask_preference"
	ResponseShowSlots            ResponseType = "show_slots"
	ResponseSlotReminder         ResponseType = "slot_reminder"
	ResponseInvalidSlot          ResponseType = "invalid_slot"
	ResponseConfirmRequest       ResponseType = "confirm_request"
	ResponseConfirmationReminder ResponseType = "confirmation_reminder"
	ResponseBookingConfirmed     ResponseType = "booking_confirmed"
	ResponseBookedAck            ResponseType = "booked_ack"
	ResponseQuestionAnswer       ResponseType = "question_answer"
	ResponseReschedule           ResponseType = "reschedule"
	ResponseBookingError         ResponseType = "booking_error"
	ResponseClarification        ResponseType = "clarification"
	ResponseError                ResponseType = "error"
)

// SchedulingContext describes the dialogue after the turn.
type SchedulingContext struct {
	Stage          Stage          `json:"stage"`
	PreviousStage  Stage          `json:"previous_stage,omitempty"`
	Intent         string         `json:"intent,omitempty"`
	TimePreference TimePreference `json:"time_preference,omitempty"`
	QuestionType   QuestionType   `json:"question_type,omitempty"`
	Slots          []Slot         `json:"slots,omitempty"`
	SelectedSlot   *Slot          `json:"selected_slot,omitempty"`
	BookingID      string         `json:"booking_id,omitempty"`
}

// Response is handed to the delivery layer. The engine never sends it.
type Response struct {
	Content           string            `json:"content"`
	Type              ResponseType      `json:"type"`
	SchedulingContext SchedulingContext `json:"scheduling_context"`
	Metadata          map[string]any    `json:"metadata,omitempty"`
}
