package scheduling

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/wolfman30/staffline/internal/bookings"
	"github.com/wolfman30/staffline/internal/clock"
	"github.com/wolfman30/staffline/pkg/logging"
)

// maxAttempts bounds how often a turn is re-run after a version conflict.
const maxAttempts = 2

// Turn is one inbound message for the dialogue.
type Turn struct {
	CandidateID   string
	CandidateName string
	Text          string
}

// Engine drives the booking dialogue. Each Handle call is one synchronous
// unit of work; concurrent turns for the same candidate are resolved by the
// store's version check.
type Engine struct {
	store     Store
	committer Committer
	clock     clock.Clock
	loc       *time.Location
	scripts   Scripts
	logger    *logging.Logger
	tracer    trace.Tracer
	observer  Observer
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock sets the clock used for slot dates and TTL checks.
func WithClock(c clock.Clock) Option {
	return func(e *Engine) {
		if c != nil {
			e.clock = c
		}
	}
}

// WithLocation sets the timezone slots are generated in.
func WithLocation(loc *time.Location) Option {
	return func(e *Engine) {
		if loc != nil {
			e.loc = loc
		}
	}
}

// WithScripts replaces the default scripts.
func WithScripts(s Scripts) Option {
	return func(e *Engine) { e.scripts = s }
}

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithObserver registers an event observer.
func WithObserver(o Observer) Option {
	return func(e *Engine) { e.observer = o }
}

// WithTracer overrides the tracer.
func WithTracer(t trace.Tracer) Option {
	return func(e *Engine) {
		if t != nil {
			e.tracer = t
		}
	}
}

// NewEngine returns an Engine over store and committer.
func NewEngine(store Store, committer Committer, opts ...Option) (*Engine, error) {
	if store == nil {
		return nil, errors.New("scheduling: store is required")
	}
	if committer == nil {
		return nil, errors.New("scheduling: committer is required")
	}
	e := &Engine{
		store:     store,
		committer: committer,
		clock:     clock.System{},
		loc:       time.UTC,
		scripts:   DefaultScripts(),
		logger:    logging.Default(),
		tracer:    otel.Tracer("staffline.internal.scheduling"),
	}
	for _, opt := range opts {
		opt(e)
	}
	if err := e.scripts.Validate(); err != nil {
		return nil, err
	}
	return e, nil
}

// Scripts returns the scripts the engine renders.
func (e *Engine) Scripts() Scripts { return e.scripts }

// State returns the live dialogue state, or nil when none exists or it has
// expired.
func (e *Engine) State(ctx context.Context, candidateID string) (*DialogueState, error) {
	st, err := e.store.Get(ctx, candidateID)
	if err != nil {
		return nil, err
	}
	if st == nil || st.Expired(e.clock.Now()) {
		return nil, nil
	}
	return st, nil
}

// Handle processes one message and always returns a response. Failures are
// mapped to booking_error, clarification or error responses.
func (e *Engine) Handle(ctx context.Context, turn Turn) (resp Response) {
	ctx, span := e.tracer.Start(ctx, "scheduling.handle")
	defer span.End()
	span.SetAttributes(attribute.String("staffline.candidate_id", turn.CandidateID))

	var lastStage Stage
	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("scheduling: panic: %v", r)
			span.RecordError(err)
			e.logger.Error("scheduling turn panicked", "candidate_id", turn.CandidateID, "panic", fmt.Sprint(r))
			e.emit(ctx, Event{Type: EventTurnFailed, CandidateID: turn.CandidateID, Stage: lastStage, Details: map[string]any{"error": err.Error()}})
			resp = e.errorResponse(lastStage)
		}
	}()

	for attempt := 1; ; attempt++ {
		r, stage, err := e.turn(ctx, turn)
		lastStage = stage
		if err == nil {
			span.SetAttributes(
				attribute.String("staffline.stage", string(r.SchedulingContext.Stage)),
				attribute.String("staffline.response_type", string(r.Type)),
			)
			e.logger.Info("scheduling turn handled",
				"candidate_id", turn.CandidateID,
				"stage", r.SchedulingContext.Stage,
				"previous_stage", r.SchedulingContext.PreviousStage,
				"intent", r.SchedulingContext.Intent,
				"response_type", r.Type,
			)
			return r
		}
		if errors.Is(err, ErrVersionConflict) && attempt < maxAttempts {
			e.logger.Warn("dialogue state changed during turn, retrying", "candidate_id", turn.CandidateID, "attempt", attempt)
			continue
		}
		span.RecordError(err)
		e.logger.Error("scheduling turn failed", "candidate_id", turn.CandidateID, "stage", stage, "error", err)
		e.emit(ctx, Event{Type: EventTurnFailed, CandidateID: turn.CandidateID, Stage: stage, Details: map[string]any{"error": err.Error()}})
		return e.errorResponse(stage)
	}
}

type outcome struct {
	resp      Response
	patch     Patch
	skipWrite bool
}

func (e *Engine) turn(ctx context.Context, turn Turn) (Response, Stage, error) {
	now := e.clock.Now()
	id := turn.CandidateID

	stored, err := e.store.Get(ctx, id)
	corrupt := errors.Is(err, ErrCorruptState)
	if err != nil && !corrupt {
		return Response{}, "", err
	}
	if !corrupt && stored != nil {
		if verr := stored.Validate(); verr != nil {
			corrupt, err = true, verr
		}
	}
	if corrupt {
		return e.resetCorrupt(ctx, id, stored, now, err)
	}

	var expected int64
	if stored != nil {
		expected = stored.Version
	}
	state, fresh := stored, false
	if state == nil || state.Expired(now) {
		if state != nil {
			e.logger.Debug("dialogue state expired, reinitializing", "candidate_id", id, "stage", state.Stage)
			e.emit(ctx, Event{Type: EventStateReset, CandidateID: id, Stage: state.Stage, Details: map[string]any{"expired_at": state.ExpiresAt}})
		}
		state, fresh = NewState(id, now), true
	}

	in := Route(Parse(turn.Text, state), state)
	out, err := e.dispatch(ctx, in, state, expected, turn, now)
	if err != nil {
		return Response{}, state.Stage, err
	}

	if !out.skipWrite {
		out.patch.LastUpdated = now
		if fresh {
			if err := e.store.Save(ctx, out.patch.Apply(state), expected); err != nil {
				return Response{}, state.Stage, err
			}
		} else if _, err := e.store.Patch(ctx, id, expected, out.patch); err != nil {
			return Response{}, state.Stage, err
		}
	}

	resp := out.resp
	resp.SchedulingContext.PreviousStage = state.Stage
	resp.SchedulingContext.Intent = IntentName(in)
	return resp, resp.SchedulingContext.Stage, nil
}

func (e *Engine) dispatch(ctx context.Context, in Intent, st *DialogueState, expected int64, turn Turn, now time.Time) (outcome, error) {
	switch v := in.(type) {
	case AskQuestion:
		return e.answerQuestion(st, v), nil
	case RequestReschedule:
		return e.reschedule(st, now), nil
	case SelectSlot:
		return e.selectSlot(st, v), nil
	case ConfirmBooking:
		return e.confirm(ctx, st, expected, now)
	case StageDefault:
		return e.stageDefault(st, v, turn, now)
	default:
		return outcome{}, fmt.Errorf("scheduling: unhandled intent %T", in)
	}
}

func (e *Engine) answerQuestion(st *DialogueState, q AskQuestion) outcome {
	resp := e.respond(ResponseQuestionAnswer, e.scripts.Answer(q.Type), st.Stage)
	resp.SchedulingContext.QuestionType = q.Type
	return outcome{resp: resp}
}

func (e *Engine) reschedule(st *DialogueState, now time.Time) outcome {
	p := Patch{
		Stage:          ptr(StageAskPreference),
		TimePreference: ptr(PreferenceNone),
		ClearSelection: true,
	}
	resp := e.respond(ResponseReschedule, e.scripts.Reschedule, StageAskPreference)
	if st.Stage == StageBooked {
		p.ExpiresAt = ptr(now.Add(StateTTL))
		if st.BookingID != "" {
			resp.Metadata = map[string]any{"previous_booking_id": st.BookingID}
		}
	}
	return outcome{resp: resp, patch: p}
}

func (e *Engine) selectSlot(st *DialogueState, sel SelectSlot) outcome {
	if !sel.Valid {
		content := render(e.scripts.InvalidSlot, map[string]string{"count": strconv.Itoa(len(st.ShownSlots))})
		return outcome{resp: e.respond(ResponseInvalidSlot, content, st.Stage)}
	}
	slot := st.ShownSlots[sel.Index-1]
	content := render(e.scripts.ConfirmRequest, map[string]string{"date": slot.DisplayDate, "time": slot.Time})
	resp := e.respond(ResponseConfirmRequest, content, StageAwaitConfirmation)
	resp.SchedulingContext.SelectedSlot = &slot
	return outcome{
		resp: resp,
		patch: Patch{
			Stage:             ptr(StageAwaitConfirmation),
			SelectedSlotIndex: ptr(sel.Index),
			SelectedDate:      ptr(slot.RawDate),
			SelectedTime:      ptr(slot.Time),
		},
	}
}

func (e *Engine) confirm(ctx context.Context, st *DialogueState, expected int64, now time.Time) (outcome, error) {
	sel := st.SelectedSlot()
	booking := &bookings.Booking{
		ID:              uuid.NewString(),
		CandidateID:     st.CandidateID,
		Date:            sel.RawDate,
		Time:            sel.Time,
		DurationMinutes: bookings.DefaultDurationMinutes,
		Status:          bookings.StatusConfirmed,
		DialogueVersion: expected,
		CreatedAt:       now,
	}
	next := Patch{
		Stage:       ptr(StageBooked),
		BookingID:   ptr(booking.ID),
		ExpiresAt:   ptr(now.Add(BookedTTL)),
		LastUpdated: now,
	}.Apply(st)

	err := e.committer.Commit(ctx, CommitRequest{State: next, Previous: st, ExpectedVersion: expected, Booking: booking})
	if errors.Is(err, ErrVersionConflict) {
		return outcome{}, err
	}
	if err != nil {
		e.logger.Error("booking commit failed", "candidate_id", st.CandidateID, "date", sel.RawDate, "time", sel.Time, "error", err)
		e.emit(ctx, Event{Type: EventBookingFailed, CandidateID: st.CandidateID, Stage: st.Stage, Details: map[string]any{
			"date":  sel.RawDate,
			"time":  sel.Time,
			"error": err.Error(),
		}})
		resp := e.respond(ResponseBookingError, e.scripts.BookingError, st.Stage)
		resp.SchedulingContext.SelectedSlot = sel
		return outcome{resp: resp, skipWrite: true}, nil
	}

	e.emit(ctx, Event{Type: EventBookingConfirmed, CandidateID: st.CandidateID, Stage: StageBooked, Details: map[string]any{
		"booking_id": booking.ID,
		"date":       booking.Date,
		"time":       booking.Time,
	}})
	content := render(e.scripts.BookingConfirmed, map[string]string{
		"date":     e.scripts.displayDate(booking.Date),
		"time":     booking.Time,
		"duration": strconv.Itoa(booking.DurationMinutes),
	})
	resp := e.respond(ResponseBookingConfirmed, content, StageBooked)
	resp.SchedulingContext.SelectedSlot = sel
	resp.SchedulingContext.BookingID = booking.ID
	resp.Metadata = map[string]any{"booking": *booking}
	return outcome{resp: resp, skipWrite: true}, nil
}

func (e *Engine) stageDefault(st *DialogueState, d StageDefault, turn Turn, now time.Time) (outcome, error) {
	switch st.Stage {
	case StageGreeting:
		name := strings.TrimSpace(turn.CandidateName)
		if name == "" {
			name = "there"
		}
		content := render(e.scripts.Greeting, map[string]string{"name": name})
		return outcome{
			resp:  e.respond(ResponseGreeting, content, StageAskPreference),
			patch: Patch{Stage: ptr(StageAskPreference)},
		}, nil

	case StageAskPreference, StageAnsweringQuestion:
		if d.Preference == PreferenceNone {
			return outcome{
				resp:  e.respond(ResponseAskPreference, e.scripts.AskPreference, StageAskPreference),
				patch: Patch{Stage: ptr(StageAskPreference)},
			}, nil
		}
		slots, err := GenerateSlots(now, e.loc, e.scripts.CannedTimes[d.Preference], e.scripts.DisplayDateLayout)
		if err != nil {
			return outcome{}, err
		}
		content := strings.Join([]string{
			render(e.scripts.ShowSlotsHeader, map[string]string{"preference": string(d.Preference)}),
			formatSlotList(slots),
			e.scripts.ShowSlotsFooter,
		}, "\n")
		resp := e.respond(ResponseShowSlots, content, StageShowSlots)
		resp.SchedulingContext.TimePreference = d.Preference
		resp.SchedulingContext.Slots = slots
		return outcome{
			resp: resp,
			patch: Patch{
				ClearSelection: true,
				Stage:          ptr(StageShowSlots),
				TimePreference: ptr(d.Preference),
				ShownSlots:     &slots,
			},
		}, nil

	case StageShowSlots:
		resp := e.respond(ResponseSlotReminder, e.scripts.SlotReminder, st.Stage)
		resp.SchedulingContext.Slots = st.ShownSlots
		return outcome{resp: resp}, nil

	case StageAwaitConfirmation:
		sel := st.SelectedSlot()
		tpl := e.scripts.ConfirmationReminder
		if d.Negative {
			tpl = e.scripts.NegativeReminder
		}
		content := render(tpl, map[string]string{"date": e.scripts.displayDate(sel.RawDate), "time": sel.Time})
		resp := e.respond(ResponseConfirmationReminder, content, st.Stage)
		resp.SchedulingContext.SelectedSlot = sel
		return outcome{resp: resp}, nil

	case StageBooked:
		vars := map[string]string{"date": e.scripts.displayDate(st.SelectedDate), "time": st.SelectedTime}
		resp := e.respond(ResponseBookedAck, render(e.scripts.BookedAck, vars), st.Stage)
		resp.SchedulingContext.BookingID = st.BookingID
		return outcome{resp: resp}, nil
	}
	return outcome{}, fmt.Errorf("scheduling: no default handling for stage %q", st.Stage)
}

func (e *Engine) resetCorrupt(ctx context.Context, id string, stored *DialogueState, now time.Time, cause error) (Response, Stage, error) {
	var (
		expected int64
		prev     Stage
	)
	if stored != nil {
		expected, prev = stored.Version, stored.Stage
	}
	e.logger.Error("dialogue state is corrupt, resetting", "candidate_id", id, "stage", prev, "error", cause)
	e.emit(ctx, Event{Type: EventStateCorrupt, CandidateID: id, Stage: prev, Details: map[string]any{"error": cause.Error()}})

	fresh := NewState(id, now)
	fresh.Stage = StageAskPreference
	if err := e.store.Save(ctx, fresh, expected); err != nil {
		return Response{}, prev, err
	}
	resp := e.respond(ResponseClarification, e.scripts.Clarification, StageAskPreference)
	resp.SchedulingContext.PreviousStage = prev
	resp.SchedulingContext.Intent = "state_reset"
	return resp, StageAskPreference, nil
}

func (e *Engine) respond(t ResponseType, content string, stage Stage) Response {
	return Response{Content: content, Type: t, SchedulingContext: SchedulingContext{Stage: stage}}
}

func (e *Engine) errorResponse(stage Stage) Response {
	return Response{
		Content:           e.scripts.GenericError,
		Type:              ResponseError,
		SchedulingContext: SchedulingContext{Stage: stage},
		Metadata:          map[string]any{"human_fallback": true},
	}
}

func (e *Engine) emit(ctx context.Context, ev Event) {
	if e.observer == nil {
		return
	}
	if ev.OccurredAt.IsZero() {
		ev.OccurredAt = e.clock.Now()
	}
	e.observer.Observe(ctx, ev)
}
