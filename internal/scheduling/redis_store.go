package scheduling

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

const dialogueKeyPrefix = "dialogue:"

const (
	fieldCandidateID    = "candidate_id"
	fieldStage          = "stage"
	fieldTimePreference = "time_preference"
	fieldShownSlots     = "shown_slots"
	fieldSelectedIndex  = "selected_slot_index"
	fieldSelectedDate   = "selected_date"
	fieldSelectedTime   = "selected_time"
	fieldBookingID      = "booking_id"
	fieldVersion        = "version"
	fieldCreatedAt      = "created_at"
	fieldLastUpdated    = "last_updated"
	fieldExpiresAt      = "expires_at"
)

// RedisStore keeps each dialogue in a hash that Redis expires at the state's
// expiresAt. Writes are guarded with WATCH on the key.
type RedisStore struct {
	redis  *redis.Client
	tracer trace.Tracer
}

// NewRedisStore returns a Redis-backed Store.
func NewRedisStore(client *redis.Client) *RedisStore {
	if client == nil {
		panic("scheduling: redis client cannot be nil")
	}
	return &RedisStore{
		redis:  client,
		tracer: otel.Tracer("staffline.internal.scheduling.redis_store"),
	}
}

func dialogueKey(candidateID string) string {
	return dialogueKeyPrefix + candidateID
}

// Get implements Store.
func (s *RedisStore) Get(ctx context.Context, candidateID string) (*DialogueState, error) {
	ctx, span := s.tracer.Start(ctx, "scheduling.redis.get")
	defer span.End()

	fields, err := s.redis.HGetAll(ctx, dialogueKey(candidateID)).Result()
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("scheduling: load dialogue state: %w", err)
	}
	st, err := decodeHash(candidateID, fields)
	if err != nil {
		span.RecordError(err)
	}
	return st, err
}

// Save implements Store.
func (s *RedisStore) Save(ctx context.Context, state *DialogueState, expectedVersion int64) error {
	ctx, span := s.tracer.Start(ctx, "scheduling.redis.save")
	defer span.End()

	key := dialogueKey(state.CandidateID)
	next := state.Clone()
	next.Version = expectedVersion + 1
	fields, err := encodeHash(next)
	if err != nil {
		span.RecordError(err)
		return err
	}

	err = s.redis.Watch(ctx, func(tx *redis.Tx) error {
		cur, err := storedVersion(ctx, tx, key)
		if err != nil {
			return err
		}
		if cur != expectedVersion {
			return ErrVersionConflict
		}
		return s.write(ctx, tx, key, fields, next.ExpiresAt)
	}, key)
	if err != nil {
		if errors.Is(err, redis.TxFailedErr) {
			err = ErrVersionConflict
		}
		span.RecordError(err)
		if errors.Is(err, ErrVersionConflict) {
			return err
		}
		return fmt.Errorf("scheduling: persist dialogue state: %w", err)
	}
	state.Version = next.Version
	return nil
}

// Patch implements Store.
func (s *RedisStore) Patch(ctx context.Context, candidateID string, expectedVersion int64, p Patch) (*DialogueState, error) {
	ctx, span := s.tracer.Start(ctx, "scheduling.redis.patch")
	defer span.End()

	key := dialogueKey(candidateID)
	var next *DialogueState
	err := s.redis.Watch(ctx, func(tx *redis.Tx) error {
		raw, err := tx.HGetAll(ctx, key).Result()
		if err != nil {
			return err
		}
		cur, err := decodeHash(candidateID, raw)
		if err != nil {
			return err
		}
		if cur == nil || cur.Version != expectedVersion {
			return ErrVersionConflict
		}
		next = p.Apply(cur)
		next.Version = expectedVersion + 1
		fields, err := encodeHash(next)
		if err != nil {
			return err
		}
		return s.write(ctx, tx, key, fields, next.ExpiresAt)
	}, key)
	if err != nil {
		if errors.Is(err, redis.TxFailedErr) {
			err = ErrVersionConflict
		}
		span.RecordError(err)
		if errors.Is(err, ErrVersionConflict) || errors.Is(err, ErrCorruptState) {
			return nil, err
		}
		return nil, fmt.Errorf("scheduling: patch dialogue state: %w", err)
	}
	return next, nil
}

func (s *RedisStore) write(ctx context.Context, tx *redis.Tx, key string, fields map[string]any, expiresAt time.Time) error {
	_, err := tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, key)
		pipe.HSet(ctx, key, fields)
		pipe.PExpireAt(ctx, key, expiresAt)
		return nil
	})
	return err
}

func storedVersion(ctx context.Context, tx *redis.Tx, key string) (int64, error) {
	v, err := tx.HGet(ctx, key, fieldVersion).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("scheduling: read stored version: %w", err)
	}
	return v, nil
}

func encodeHash(s *DialogueState) (map[string]any, error) {
	slots := []byte("[]")
	if s.ShownSlots != nil {
		var err error
		slots, err = json.Marshal(s.ShownSlots)
		if err != nil {
			return nil, fmt.Errorf("scheduling: encode shown slots: %w", err)
		}
	}
	idx := ""
	if s.SelectedSlotIndex != nil {
		idx = strconv.Itoa(*s.SelectedSlotIndex)
	}
	return map[string]any{
		fieldCandidateID:    s.CandidateID,
		fieldStage:          string(s.Stage),
		fieldTimePreference: string(s.TimePreference),
		fieldShownSlots:     string(slots),
		fieldSelectedIndex:  idx,
		fieldSelectedDate:   s.SelectedDate,
		fieldSelectedTime:   s.SelectedTime,
		fieldBookingID:      s.BookingID,
		fieldVersion:        s.Version,
		fieldCreatedAt:      s.CreatedAt.UTC().Format(time.RFC3339Nano),
		fieldLastUpdated:    s.LastUpdated.UTC().Format(time.RFC3339Nano),
		fieldExpiresAt:      s.ExpiresAt.UTC().Format(time.RFC3339Nano),
	}, nil
}

// decodeHash rebuilds a state from its hash. A missing hash is (nil, nil).
// An unreadable version is a plain error because nothing can be written
// safely over it; any other bad field yields the state plus ErrCorruptState.
func decodeHash(candidateID string, f map[string]string) (*DialogueState, error) {
	if len(f) == 0 {
		return nil, nil
	}
	version, err := strconv.ParseInt(f[fieldVersion], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("scheduling: decode version for %s: %w", candidateID, err)
	}
	st := &DialogueState{
		CandidateID:    candidateID,
		Stage:          Stage(f[fieldStage]),
		TimePreference: TimePreference(f[fieldTimePreference]),
		SelectedDate:   f[fieldSelectedDate],
		SelectedTime:   f[fieldSelectedTime],
		BookingID:      f[fieldBookingID],
		Version:        version,
	}
	var errs []error
	if raw := f[fieldShownSlots]; raw != "" {
		var slots []Slot
		if err := json.Unmarshal([]byte(raw), &slots); err != nil {
			errs = append(errs, fmt.Errorf("shown slots: %w", err))
		} else if len(slots) > 0 {
			st.ShownSlots = slots
		}
	}
	if raw := f[fieldSelectedIndex]; raw != "" {
		idx, err := strconv.Atoi(raw)
		if err != nil {
			errs = append(errs, fmt.Errorf("selected slot index: %w", err))
		} else {
			st.SelectedSlotIndex = &idx
		}
	}
	for field, dst := range map[string]*time.Time{
		fieldCreatedAt:   &st.CreatedAt,
		fieldLastUpdated: &st.LastUpdated,
		fieldExpiresAt:   &st.ExpiresAt,
	} {
		t, err := time.Parse(time.RFC3339Nano, f[field])
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", field, err))
			continue
		}
		*dst = t
	}
	if len(errs) > 0 {
		return st, fmt.Errorf("%w: %v", ErrCorruptState, errors.Join(errs...))
	}
	return st, nil
}
