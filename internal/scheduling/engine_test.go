package scheduling

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/staffline/internal/bookings"
	"github.com/wolfman30/staffline/internal/candidates"
	"github.com/wolfman30/staffline/internal/clock"
	"github.com/wolfman30/staffline/pkg/logging"
)

var singapore = time.FixedZone("SGT", 8*3600)

type engineHarness struct {
	engine *Engine
	store  *MemoryStore
	repo   *bookings.MemoryRepository
	dir    *candidates.MemoryDirectory
	clock  *clock.Manual

	mu     sync.Mutex
	events []Event
}

func newHarness(t *testing.T, opts ...func(*engineHarness) (Store, Committer)) *engineHarness {
	t.Helper()
	h := &engineHarness{
		store: NewMemoryStore(),
		repo:  bookings.NewMemoryRepository(),
		dir: candidates.NewMemoryDirectory(candidates.Candidate{
			ID: "c-1", Name: "Ana", Status: candidates.StatusPending,
		}),
		// 10:00 in Singapore on Wednesday, Mar 4.
		clock: clock.NewManual(time.Date(2026, 3, 4, 2, 0, 0, 0, time.UTC)),
	}
	var store Store = h.store
	var committer Committer = NewMemoryCommitter(h.store, h.repo, h.dir)
	for _, o := range opts {
		store, committer = o(h)
	}
	e, err := NewEngine(store, committer,
		WithClock(h.clock),
		WithLocation(singapore),
		WithLogger(logging.Discard()),
		WithObserver(ObserverFunc(func(_ context.Context, ev Event) {
			h.mu.Lock()
			h.events = append(h.events, ev)
			h.mu.Unlock()
		})),
	)
	require.NoError(t, err)
	h.engine = e
	return h
}

func (h *engineHarness) say(text string) Response {
	return h.engine.Handle(context.Background(), Turn{CandidateID: "c-1", CandidateName: "Ana", Text: text})
}

func (h *engineHarness) state(t *testing.T) *DialogueState {
	t.Helper()
	st, err := h.store.Get(context.Background(), "c-1")
	require.NoError(t, err)
	return st
}

func (h *engineHarness) eventTypes() []EventType {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]EventType, 0, len(h.events))
	for _, ev := range h.events {
		out = append(out, ev.Type)
	}
	return out
}

func TestEngineBooksInterview(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	resp := h.say("hi")
	assert.Equal(t, ResponseGreeting, resp.Type)
	assert.Contains(t, resp.Content, "Hi Ana!")
	assert.Equal(t, StageAskPreference, resp.SchedulingContext.Stage)
	assert.Equal(t, StageGreeting, resp.SchedulingContext.PreviousStage)
	assert.Equal(t, "stage_default", resp.SchedulingContext.Intent)

	resp = h.say("afternoon")
	assert.Equal(t, ResponseShowSlots, resp.Type)
	assert.Equal(t, StageShowSlots, resp.SchedulingContext.Stage)
	assert.Equal(t, []Slot{
		{DisplayDate: "Thursday, Mar 5", Time: "2:00 PM", RawDate: "2026-03-05"},
		{DisplayDate: "Thursday, Mar 5", Time: "3:00 PM", RawDate: "2026-03-05"},
		{DisplayDate: "Friday, Mar 6", Time: "2:00 PM", RawDate: "2026-03-06"},
	}, resp.SchedulingContext.Slots)
	assert.Contains(t, resp.Content, "2. Thursday, Mar 5 at 3:00 PM")

	resp = h.say("2")
	assert.Equal(t, ResponseConfirmRequest, resp.Type)
	assert.Equal(t, StageAwaitConfirmation, resp.SchedulingContext.Stage)
	require.NotNil(t, resp.SchedulingContext.SelectedSlot)
	assert.Equal(t, "3:00 PM", resp.SchedulingContext.SelectedSlot.Time)

	resp = h.say("why")
	assert.Equal(t, ResponseQuestionAnswer, resp.Type)
	assert.Equal(t, StageAwaitConfirmation, resp.SchedulingContext.Stage)
	assert.Equal(t, QuestionGeneral, resp.SchedulingContext.QuestionType)

	h.clock.Advance(time.Minute)
	resp = h.say("yes")
	assert.Equal(t, ResponseBookingConfirmed, resp.Type)
	assert.Equal(t, StageBooked, resp.SchedulingContext.Stage)
	assert.Contains(t, resp.Content, "15-minute")
	assert.Contains(t, resp.Content, "Thursday, Mar 5 at 3:00 PM")

	rows, err := h.repo.ListByCandidate(ctx, "c-1")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "2026-03-05", rows[0].Date)
	assert.Equal(t, "3:00 PM", rows[0].Time)
	assert.Equal(t, 15, rows[0].DurationMinutes)
	assert.Equal(t, bookings.StatusConfirmed, rows[0].Status)
	assert.Equal(t, rows[0].ID, resp.SchedulingContext.BookingID)

	cand, _ := h.dir.Get(ctx, "c-1")
	assert.Equal(t, candidates.StatusInterviewScheduled, cand.Status)

	st := h.state(t)
	assert.Equal(t, StageBooked, st.Stage)
	assert.Equal(t, rows[0].ID, st.BookingID)
	assert.True(t, st.ExpiresAt.Equal(h.clock.Now().Add(BookedTTL)))
	assert.Equal(t, []EventType{EventBookingConfirmed}, h.eventTypes())

	resp = h.say("thanks")
	assert.Equal(t, ResponseBookedAck, resp.Type)
	assert.Equal(t, rows[0].ID, resp.SchedulingContext.BookingID)
}

func TestEngineRescheduleFromBooked(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	for _, msg := range []string{"hi", "morning", "1", "yes"} {
		h.say(msg)
	}
	booked := h.state(t)
	require.Equal(t, StageBooked, booked.Stage)

	resp := h.say("I need to reschedule")
	assert.Equal(t, ResponseReschedule, resp.Type)
	assert.Equal(t, StageAskPreference, resp.SchedulingContext.Stage)
	assert.Equal(t, StageBooked, resp.SchedulingContext.PreviousStage)
	assert.Equal(t, booked.BookingID, resp.Metadata["previous_booking_id"])

	st := h.state(t)
	assert.Empty(t, st.BookingID)
	assert.Nil(t, st.ShownSlots)
	assert.Equal(t, PreferenceNone, st.TimePreference)
	assert.True(t, st.ExpiresAt.Equal(h.clock.Now().Add(StateTTL)))

	rows, _ := h.repo.ListByCandidate(ctx, "c-1")
	assert.Len(t, rows, 1, "the earlier booking is kept")

	resp = h.say("morning")
	assert.Equal(t, ResponseShowSlots, resp.Type)
	assert.Equal(t, "9:00 AM", resp.SchedulingContext.Slots[0].Time)
}

func TestEngineInvalidSlotAndReminders(t *testing.T) {
	h := newHarness(t)
	h.say("hi")

	resp := h.say("whenever works")
	assert.Equal(t, ResponseAskPreference, resp.Type)
	assert.Equal(t, StageAskPreference, resp.SchedulingContext.Stage)

	h.say("morning")
	resp = h.say("9")
	assert.Equal(t, ResponseInvalidSlot, resp.Type)
	assert.Contains(t, resp.Content, "between 1 and 3")
	assert.Equal(t, StageShowSlots, resp.SchedulingContext.Stage)

	resp = h.say("hmm")
	assert.Equal(t, ResponseSlotReminder, resp.Type)
	assert.Len(t, resp.SchedulingContext.Slots, 3)

	h.say("first")
	resp = h.say("no")
	assert.Equal(t, ResponseConfirmationReminder, resp.Type)
	assert.Contains(t, resp.Content, "No problem")
	assert.Contains(t, resp.Content, "9:00 AM")

	resp = h.say("hmm")
	assert.Equal(t, ResponseConfirmationReminder, resp.Type)
	assert.Contains(t, resp.Content, "Please reply YES")
	assert.Equal(t, StageAwaitConfirmation, h.state(t).Stage)
}

func TestEngineGreetsWithoutName(t *testing.T) {
	h := newHarness(t)
	resp := h.engine.Handle(context.Background(), Turn{CandidateID: "c-1", Text: "hello"})
	assert.Contains(t, resp.Content, "Hi there!")
}

func TestEngineExpiredStateStartsOver(t *testing.T) {
	h := newHarness(t)
	h.say("hi")
	h.say("afternoon")
	old := h.state(t)

	h.clock.Advance(StateTTL + time.Minute)
	got, err := h.engine.State(context.Background(), "c-1")
	require.NoError(t, err)
	assert.Nil(t, got)

	resp := h.say("1")
	assert.Equal(t, ResponseGreeting, resp.Type)
	assert.Equal(t, StageGreeting, resp.SchedulingContext.PreviousStage)

	st := h.state(t)
	assert.Equal(t, StageAskPreference, st.Stage)
	assert.Equal(t, old.Version+1, st.Version)
	assert.True(t, st.CreatedAt.Equal(h.clock.Now()))
	assert.Equal(t, []EventType{EventStateReset}, h.eventTypes())
}

func TestEngineCorruptStateAsksAgain(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	bad := showingSlots()
	bad.ShownSlots = bad.ShownSlots[:1]
	bad.ExpiresAt = h.clock.Now().Add(time.Hour)
	require.NoError(t, h.store.Save(ctx, bad, 0))

	resp := h.say("1")
	assert.Equal(t, ResponseClarification, resp.Type)
	assert.Equal(t, StageAskPreference, resp.SchedulingContext.Stage)
	assert.Equal(t, StageShowSlots, resp.SchedulingContext.PreviousStage)

	st := h.state(t)
	assert.Equal(t, StageAskPreference, st.Stage)
	assert.Nil(t, st.ShownSlots)
	assert.Equal(t, int64(2), st.Version)
	assert.Equal(t, []EventType{EventStateCorrupt}, h.eventTypes())

	resp = h.say("afternoon")
	assert.Equal(t, ResponseShowSlots, resp.Type)
}

type failingCommitter struct{ err error }

func (f failingCommitter) Commit(context.Context, CommitRequest) error { return f.err }

func TestEngineBookingFailureKeepsStage(t *testing.T) {
	h := newHarness(t, func(h *engineHarness) (Store, Committer) {
		return h.store, failingCommitter{err: errors.New("db down")}
	})
	for _, msg := range []string{"hi", "afternoon", "3"} {
		h.say(msg)
	}
	before := h.state(t)

	resp := h.say("yes")
	assert.Equal(t, ResponseBookingError, resp.Type)
	assert.Equal(t, StageAwaitConfirmation, resp.SchedulingContext.Stage)
	require.NotNil(t, resp.SchedulingContext.SelectedSlot)
	assert.Equal(t, "2026-03-06", resp.SchedulingContext.SelectedSlot.RawDate)

	after := h.state(t)
	assert.Equal(t, before.Version, after.Version)
	assert.Equal(t, StageAwaitConfirmation, after.Stage)
	assert.Equal(t, []EventType{EventBookingFailed}, h.eventTypes())
}

// racingStore bumps the stored version right before the first Patch, as a
// concurrent turn would.
type racingStore struct {
	*MemoryStore
	mu    sync.Mutex
	races int
	calls int
}

func (r *racingStore) Patch(ctx context.Context, id string, expected int64, p Patch) (*DialogueState, error) {
	r.mu.Lock()
	r.calls++
	race := r.races > 0
	if race {
		r.races--
	}
	r.mu.Unlock()
	if race {
		if _, err := r.MemoryStore.Patch(ctx, id, expected, Patch{}); err != nil {
			return nil, err
		}
	}
	return r.MemoryStore.Patch(ctx, id, expected, p)
}

func TestEngineRetriesOnVersionConflict(t *testing.T) {
	var rs *racingStore
	h := newHarness(t, func(h *engineHarness) (Store, Committer) {
		rs = &racingStore{MemoryStore: h.store}
		return rs, NewMemoryCommitter(h.store, h.repo, h.dir)
	})
	h.say("hi")

	rs.races = 1
	resp := h.say("morning")
	assert.Equal(t, ResponseShowSlots, resp.Type)
	assert.Equal(t, 2, rs.calls)
	assert.Equal(t, StageShowSlots, h.state(t).Stage)
}

func TestEngineGivesUpAfterRepeatedConflicts(t *testing.T) {
	var rs *racingStore
	h := newHarness(t, func(h *engineHarness) (Store, Committer) {
		rs = &racingStore{MemoryStore: h.store}
		return rs, NewMemoryCommitter(h.store, h.repo, h.dir)
	})
	h.say("hi")

	rs.races = maxAttempts
	resp := h.say("morning")
	assert.Equal(t, ResponseError, resp.Type)
	assert.Equal(t, true, resp.Metadata["human_fallback"])
	assert.Equal(t, []EventType{EventTurnFailed}, h.eventTypes())
}

type panickingCommitter struct{}

func (panickingCommitter) Commit(context.Context, CommitRequest) error { panic("boom") }

func TestEngineRecoversFromPanic(t *testing.T) {
	h := newHarness(t, func(h *engineHarness) (Store, Committer) {
		return h.store, panickingCommitter{}
	})
	for _, msg := range []string{"hi", "morning", "2"} {
		h.say(msg)
	}

	resp := h.say("yes")
	assert.Equal(t, ResponseError, resp.Type)
	assert.Equal(t, DefaultScripts().GenericError, resp.Content)
	assert.Equal(t, StageAwaitConfirmation, h.state(t).Stage)
}

func TestEngineConfirmOnlyOncePerVersion(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	for _, msg := range []string{"hi", "morning", "2"} {
		h.say(msg)
	}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			h.say("yes")
		}()
	}
	wg.Wait()

	rows, _ := h.repo.ListByCandidate(ctx, "c-1")
	assert.Len(t, rows, 1)
	assert.Equal(t, StageBooked, h.state(t).Stage)
}

func TestNewEngineValidation(t *testing.T) {
	store := NewMemoryStore()
	_, err := NewEngine(nil, failingCommitter{})
	assert.Error(t, err)
	_, err = NewEngine(store, nil)
	assert.Error(t, err)

	scripts := DefaultScripts()
	scripts.CannedTimes = nil
	_, err = NewEngine(store, failingCommitter{}, WithScripts(scripts))
	assert.Error(t, err)
}

func TestEngineDayNamesAskAboutOtherDates(t *testing.T) {
	h := newHarness(t)
	h.say("hi")

	for _, text := range []string{"friday", "weekend", "tomorrow"} {
		resp := h.say(text)
		assert.Equal(t, ResponseQuestionAnswer, resp.Type, text)
		assert.Equal(t, QuestionOtherDates, resp.SchedulingContext.QuestionType, text)
		assert.Equal(t, StageAskPreference, resp.SchedulingContext.Stage, text)
	}

	resp := h.say("tomorrow afternoon")
	assert.Equal(t, ResponseShowSlots, resp.Type)

	resp = h.say("friday 2pm")
	assert.Equal(t, ResponseConfirmRequest, resp.Type)
	assert.Equal(t, "Friday, Mar 6", resp.SchedulingContext.SelectedSlot.DisplayDate)
}
