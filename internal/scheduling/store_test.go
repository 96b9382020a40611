package scheduling

import (
	"context"
	"errors"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRedisStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisStore(client), mr
}

// exerciseStore runs the version contract shared by every Store.
func exerciseStore(t *testing.T, store Store) {
	t.Helper()
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Millisecond)

	got, err := store.Get(ctx, "c-1")
	require.NoError(t, err)
	assert.Nil(t, got)

	st := NewState("c-1", now)
	assert.ErrorIs(t, store.Save(ctx, st, 3), ErrVersionConflict, "no row means expected version 0")
	require.NoError(t, store.Save(ctx, st, 0))
	assert.Equal(t, int64(1), st.Version)
	assert.ErrorIs(t, store.Save(ctx, NewState("c-1", now), 0), ErrVersionConflict)

	slots := showingSlots().ShownSlots
	patched, err := store.Patch(ctx, "c-1", 1, Patch{
		Stage:          ptr(StageShowSlots),
		TimePreference: ptr(PreferenceAfternoon),
		ShownSlots:     &slots,
		LastUpdated:    now.Add(time.Minute),
	})
	require.NoError(t, err)
	assert.Equal(t, int64(2), patched.Version)
	assert.Equal(t, StageShowSlots, patched.Stage)

	_, err = store.Patch(ctx, "c-1", 1, Patch{Stage: ptr(StageBooked)})
	assert.ErrorIs(t, err, ErrVersionConflict)

	got, err = store.Get(ctx, "c-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, int64(2), got.Version)
	assert.Equal(t, PreferenceAfternoon, got.TimePreference)
	assert.Equal(t, slots, got.ShownSlots)
	assert.True(t, got.LastUpdated.Equal(now.Add(time.Minute)))
	assert.True(t, got.ExpiresAt.Equal(now.Add(StateTTL)))

	cleared, err := store.Patch(ctx, "c-1", 2, Patch{Stage: ptr(StageAskPreference), ClearSelection: true})
	require.NoError(t, err)
	assert.Nil(t, cleared.ShownSlots)
	assert.Equal(t, PreferenceAfternoon, cleared.TimePreference)

	_, err = store.Patch(ctx, "missing", 0, Patch{})
	assert.ErrorIs(t, err, ErrVersionConflict)
}

func TestMemoryStoreContract(t *testing.T) {
	exerciseStore(t, NewMemoryStore())
}

func TestRedisStoreContract(t *testing.T) {
	store, _ := newRedisStore(t)
	exerciseStore(t, store)
}

func TestMemoryStoreReturnsCopies(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	st := showingSlots()
	require.NoError(t, store.Save(ctx, st, 0))

	st.ShownSlots[0].Time = "mutated"
	got, _ := store.Get(ctx, "c-1")
	assert.Equal(t, "2:00 PM", got.ShownSlots[0].Time)
}

func TestRedisStoreExpiresWithState(t *testing.T) {
	ctx := context.Background()
	store, mr := newRedisStore(t)

	st := NewState("c-1", time.Now())
	require.NoError(t, store.Save(ctx, st, 0))
	ttl := mr.TTL(dialogueKey("c-1"))
	assert.Greater(t, ttl, 23*time.Hour)
	assert.LessOrEqual(t, ttl, StateTTL)

	mr.FastForward(StateTTL + time.Minute)
	got, err := store.Get(ctx, "c-1")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestRedisStoreCorruptSlots(t *testing.T) {
	ctx := context.Background()
	store, mr := newRedisStore(t)

	st := showingSlots()
	st.ExpiresAt = time.Now().Add(time.Hour)
	require.NoError(t, store.Save(ctx, st, 0))
	mr.HSet(dialogueKey("c-1"), fieldShownSlots, "{not json")

	got, err := store.Get(ctx, "c-1")
	assert.ErrorIs(t, err, ErrCorruptState)
	require.NotNil(t, got)
	assert.Equal(t, int64(1), got.Version)
	assert.Equal(t, StageShowSlots, got.Stage)

	_, err = store.Patch(ctx, "c-1", 1, Patch{})
	assert.ErrorIs(t, err, ErrCorruptState)

	fresh := NewState("c-1", time.Now())
	require.NoError(t, store.Save(ctx, fresh, got.Version), "a corrupt row can be overwritten at its version")
	got, err = store.Get(ctx, "c-1")
	require.NoError(t, err)
	assert.Equal(t, StageGreeting, got.Stage)
}

func TestRedisStoreUnreadableVersion(t *testing.T) {
	store, mr := newRedisStore(t)
	mr.HSet(dialogueKey("c-1"), fieldVersion, "abc")

	got, err := store.Get(context.Background(), "c-1")
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrCorruptState))
	assert.Nil(t, got)
}

var stateCols = []string{
	"candidate_id", "stage", "time_preference", "shown_slots", "selected_slot_index",
	"selected_date", "selected_time", "booking_id", "version", "created_at", "last_updated", "expires_at",
}

func TestPostgresStoreGet(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	now := time.Date(2026, 3, 4, 2, 0, 0, 0, time.UTC)
	slots := []byte(`[{"display_date":"Thursday, Mar 5","time":"2:00 PM","raw_date":"2026-03-05"}]`)
	mock.ExpectQuery("SELECT .* FROM dialogue_states WHERE candidate_id").
		WithArgs("c-1").
		WillReturnRows(pgxmock.NewRows(stateCols).AddRow(
			"c-1", "AWAIT_CONFIRMATION", "afternoon", slots, pgtype.Int4{Int32: 1, Valid: true},
			"2026-03-05", "2:00 PM", "", int64(4), now, now, now.Add(StateTTL),
		))

	st, err := NewPostgresStore(mock).Get(context.Background(), "c-1")
	require.NoError(t, err)
	assert.Equal(t, StageAwaitConfirmation, st.Stage)
	assert.Equal(t, PreferenceAfternoon, st.TimePreference)
	require.NotNil(t, st.SelectedSlotIndex)
	assert.Equal(t, 1, *st.SelectedSlotIndex)
	assert.Equal(t, "Thursday, Mar 5", st.SelectedSlot().DisplayDate)
	assert.Equal(t, int64(4), st.Version)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStoreGetMissing(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery("SELECT .* FROM dialogue_states").WithArgs("c-1").WillReturnError(pgx.ErrNoRows)

	st, err := NewPostgresStore(mock).Get(context.Background(), "c-1")
	require.NoError(t, err)
	assert.Nil(t, st)
}

func TestPostgresStoreGetCorrupt(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	now := time.Now()
	mock.ExpectQuery("SELECT .* FROM dialogue_states").
		WithArgs("c-1").
		WillReturnRows(pgxmock.NewRows(stateCols).AddRow(
			"c-1", "SHOW_SLOTS", "morning", []byte(`{broken`), pgtype.Int4{},
			"", "", "", int64(2), now, now, now.Add(time.Hour),
		))

	st, err := NewPostgresStore(mock).Get(context.Background(), "c-1")
	assert.ErrorIs(t, err, ErrCorruptState)
	require.NotNil(t, st)
	assert.Equal(t, int64(2), st.Version)
}

func anyArgs(n int) []any {
	args := make([]any, n)
	for i := range args {
		args[i] = pgxmock.AnyArg()
	}
	return args
}

func TestPostgresStoreSave(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	now := time.Date(2026, 3, 4, 2, 0, 0, 0, time.UTC)
	any12 := anyArgs(12)
	mock.ExpectExec("INSERT INTO dialogue_states").
		WithArgs(any12...).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec("UPDATE dialogue_states SET").
		WithArgs(append(any12, int64(1))...).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	store := NewPostgresStore(mock)
	st := NewState("c-1", now)
	require.NoError(t, store.Save(context.Background(), st, 0))
	assert.Equal(t, int64(1), st.Version)

	err = store.Save(context.Background(), st, 1)
	assert.ErrorIs(t, err, ErrVersionConflict)
	assert.Equal(t, int64(1), st.Version)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStorePatchConflict(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery("UPDATE dialogue_states SET").
		WithArgs(append([]any{"c-1", int64(3), pgxmock.AnyArg()}, anyArgs(9)...)...).
		WillReturnError(pgx.ErrNoRows)

	_, err = NewPostgresStore(mock).Patch(context.Background(), "c-1", 3, Patch{Stage: ptr(StageBooked)})
	assert.ErrorIs(t, err, ErrVersionConflict)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPatchApply(t *testing.T) {
	base := showingSlots()
	base.SelectedSlotIndex = ptr(2)
	base.SelectedDate = "2026-03-05"
	base.SelectedTime = "3:00 PM"
	base.BookingID = "b-1"
	base.Version = 7

	out := Patch{ClearSelection: true, Stage: ptr(StageAskPreference)}.Apply(base)
	assert.Equal(t, StageAskPreference, out.Stage)
	assert.Nil(t, out.ShownSlots)
	assert.Nil(t, out.SelectedSlotIndex)
	assert.Empty(t, out.SelectedDate)
	assert.Empty(t, out.BookingID)
	assert.Equal(t, int64(7), out.Version)

	assert.Equal(t, "b-1", base.BookingID, "input is not modified")
	assert.Len(t, base.ShownSlots, 3)
}

func TestStateValidate(t *testing.T) {
	st := showingSlots()
	require.NoError(t, st.Validate())

	st.ShownSlots = st.ShownSlots[:2]
	assert.ErrorIs(t, st.Validate(), ErrCorruptState)

	st = NewState("c-1", time.Now())
	st.Stage = StageAwaitConfirmation
	assert.ErrorIs(t, st.Validate(), ErrCorruptState)

	st.Stage = "LIMBO"
	assert.ErrorIs(t, st.Validate(), ErrCorruptState)
}

func TestStateExpired(t *testing.T) {
	now := time.Date(2026, 3, 4, 2, 0, 0, 0, time.UTC)
	st := NewState("c-1", now)
	assert.False(t, st.Expired(now.Add(StateTTL-time.Second)))
	assert.True(t, st.Expired(now.Add(StateTTL)))
	assert.True(t, (&DialogueState{}).Expired(now))
}
