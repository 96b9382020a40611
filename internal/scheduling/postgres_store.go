package scheduling

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

type rowQuerier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const stateColumns = `candidate_id, stage, time_preference, shown_slots, selected_slot_index,
	selected_date, selected_time, booking_id, version, created_at, last_updated, expires_at`

// PostgresStore keeps dialogue states in the dialogue_states table. The
// version column carries the optimistic-concurrency check.
type PostgresStore struct {
	db     rowQuerier
	tracer trace.Tracer
}

// NewPostgresStore accepts a *pgxpool.Pool or any compatible querier.
func NewPostgresStore(db rowQuerier) *PostgresStore {
	if db == nil {
		panic("scheduling: pgx pool required")
	}
	return &PostgresStore{db: db, tracer: otel.Tracer("staffline.internal.scheduling.postgres_store")}
}

// Get implements Store.
func (s *PostgresStore) Get(ctx context.Context, candidateID string) (*DialogueState, error) {
	ctx, span := s.tracer.Start(ctx, "scheduling.postgres.get")
	defer span.End()

	st, err := scanState(s.db.QueryRow(ctx, `SELECT `+stateColumns+` FROM dialogue_states WHERE candidate_id = $1`, candidateID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		span.RecordError(err)
		if errors.Is(err, ErrCorruptState) {
			return st, err
		}
		return nil, fmt.Errorf("scheduling: load dialogue state: %w", err)
	}
	return st, nil
}

// Save implements Store.
func (s *PostgresStore) Save(ctx context.Context, state *DialogueState, expectedVersion int64) error {
	ctx, span := s.tracer.Start(ctx, "scheduling.postgres.save")
	defer span.End()

	if err := saveStateTx(ctx, s.db, state, expectedVersion); err != nil {
		span.RecordError(err)
		return err
	}
	return nil
}

// saveStateTx writes the full row with q, which may be a pgx.Tx.
func saveStateTx(ctx context.Context, q rowQuerier, state *DialogueState, expectedVersion int64) error {
	slots, err := encodeSlots(state.ShownSlots)
	if err != nil {
		return err
	}
	next := expectedVersion + 1
	args := []any{
		state.CandidateID,
		string(state.Stage),
		string(state.TimePreference),
		slots,
		toPGInt4(state.SelectedSlotIndex),
		state.SelectedDate,
		state.SelectedTime,
		state.BookingID,
		next,
		state.CreatedAt,
		state.LastUpdated,
		state.ExpiresAt,
	}

	var tag pgconn.CommandTag
	if expectedVersion == 0 {
		tag, err = q.Exec(ctx, `
			INSERT INTO dialogue_states (`+stateColumns+`)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
			ON CONFLICT (candidate_id) DO NOTHING
		`, args...)
	} else {
		tag, err = q.Exec(ctx, `
			UPDATE dialogue_states SET
				stage = $2, time_preference = $3, shown_slots = $4, selected_slot_index = $5,
				selected_date = $6, selected_time = $7, booking_id = $8, version = $9,
				created_at = $10, last_updated = $11, expires_at = $12
			WHERE candidate_id = $1 AND version = $13
		`, append(args, expectedVersion)...)
	}
	if err != nil {
		return fmt.Errorf("scheduling: persist dialogue state: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrVersionConflict
	}
	state.Version = next
	return nil
}

// Patch implements Store.
func (s *PostgresStore) Patch(ctx context.Context, candidateID string, expectedVersion int64, p Patch) (*DialogueState, error) {
	ctx, span := s.tracer.Start(ctx, "scheduling.postgres.patch")
	defer span.End()

	var slots any
	if p.ShownSlots != nil {
		raw, err := encodeSlots(*p.ShownSlots)
		if err != nil {
			return nil, err
		}
		slots = raw
	}
	var lastUpdated any
	if !p.LastUpdated.IsZero() {
		lastUpdated = p.LastUpdated
	}

	row := s.db.QueryRow(ctx, `
		UPDATE dialogue_states SET
			stage = COALESCE($3, stage),
			time_preference = COALESCE($4, time_preference),
			shown_slots = COALESCE($5, CASE WHEN $11 THEN '[]'::jsonb ELSE shown_slots END),
			selected_slot_index = COALESCE($6, CASE WHEN $11 THEN NULL ELSE selected_slot_index END),
			selected_date = COALESCE($7, CASE WHEN $11 THEN '' ELSE selected_date END),
			selected_time = COALESCE($8, CASE WHEN $11 THEN '' ELSE selected_time END),
			booking_id = COALESCE($9, CASE WHEN $11 THEN '' ELSE booking_id END),
			expires_at = COALESCE($10, expires_at),
			last_updated = COALESCE($12, last_updated),
			version = version + 1
		WHERE candidate_id = $1 AND version = $2
		RETURNING `+stateColumns,
		candidateID,
		expectedVersion,
		stringPtr(p.Stage),
		stringPtr(p.TimePreference),
		slots,
		p.SelectedSlotIndex,
		p.SelectedDate,
		p.SelectedTime,
		p.BookingID,
		p.ExpiresAt,
		p.ClearSelection,
		lastUpdated,
	)
	st, err := scanState(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrVersionConflict
	}
	if err != nil {
		span.RecordError(err)
		if errors.Is(err, ErrCorruptState) {
			return nil, err
		}
		return nil, fmt.Errorf("scheduling: patch dialogue state: %w", err)
	}
	return st, nil
}

func scanState(row pgx.Row) (*DialogueState, error) {
	var (
		st        DialogueState
		stage     string
		pref      string
		slots     []byte
		selectedI pgtype.Int4
		created   time.Time
		updated   time.Time
		expires   time.Time
	)
	if err := row.Scan(
		&st.CandidateID,
		&stage,
		&pref,
		&slots,
		&selectedI,
		&st.SelectedDate,
		&st.SelectedTime,
		&st.BookingID,
		&st.Version,
		&created,
		&updated,
		&expires,
	); err != nil {
		return nil, err
	}
	st.Stage = Stage(stage)
	st.TimePreference = TimePreference(pref)
	st.CreatedAt, st.LastUpdated, st.ExpiresAt = created, updated, expires
	if selectedI.Valid {
		idx := int(selectedI.Int32)
		st.SelectedSlotIndex = &idx
	}
	if len(slots) > 0 {
		var decoded []Slot
		if err := json.Unmarshal(slots, &decoded); err != nil {
			return &st, fmt.Errorf("%w: shown slots: %v", ErrCorruptState, err)
		}
		if len(decoded) > 0 {
			st.ShownSlots = decoded
		}
	}
	return &st, nil
}

func encodeSlots(slots []Slot) ([]byte, error) {
	if slots == nil {
		return []byte("[]"), nil
	}
	raw, err := json.Marshal(slots)
	if err != nil {
		return nil, fmt.Errorf("scheduling: encode shown slots: %w", err)
	}
	return raw, nil
}

func toPGInt4(v *int) pgtype.Int4 {
	if v == nil {
		return pgtype.Int4{}
	}
	return pgtype.Int4{Int32: int32(*v), Valid: true}
}

func stringPtr[T ~string](v *T) *string {
	if v == nil {
		return nil
	}
	s := string(*v)
	return &s
}
