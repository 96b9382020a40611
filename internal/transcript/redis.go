package transcript

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

const keyPrefix = "transcript:"

// RedisStore keeps entries in a capped Redis list.
type RedisStore struct {
	redis      *redis.Client
	tracer     trace.Tracer
	maxEntries int64
}

// NewRedisStore returns a Redis-backed Store.
func NewRedisStore(client *redis.Client) *RedisStore {
	if client == nil {
		panic("transcript: redis client cannot be nil")
	}
	return &RedisStore{
		redis:      client,
		tracer:     otel.Tracer("staffline.internal.transcript"),
		maxEntries: MaxEntries,
	}
}

// Append implements Store.
func (s *RedisStore) Append(ctx context.Context, candidateID string, entries ...Entry) error {
	if candidateID == "" {
		return errors.New("transcript: candidateID required")
	}
	if len(entries) == 0 {
		return nil
	}
	now := time.Now()
	values := make([]any, 0, len(entries))
	for _, e := range entries {
		data, err := json.Marshal(prepare(e, now))
		if err != nil {
			return fmt.Errorf("transcript: marshal entry: %w", err)
		}
		values = append(values, data)
	}

	ctx, span := s.tracer.Start(ctx, "transcript.append")
	defer span.End()

	key := transcriptKey(candidateID)
	pipe := s.redis.TxPipeline()
	pipe.RPush(ctx, key, values...)
	pipe.Expire(ctx, key, TTL)
	pipe.LTrim(ctx, key, -s.maxEntries, -1)
	if _, err := pipe.Exec(ctx); err != nil {
		span.RecordError(err)
		return fmt.Errorf("transcript: append: %w", err)
	}
	return nil
}

// List implements Store. Entries that fail to decode are skipped.
func (s *RedisStore) List(ctx context.Context, candidateID string, limit int64) ([]Entry, error) {
	if candidateID == "" {
		return nil, errors.New("transcript: candidateID required")
	}
	ctx, span := s.tracer.Start(ctx, "transcript.list")
	defer span.End()

	start := int64(0)
	if limit > 0 {
		start = -limit
	}
	raw, err := s.redis.LRange(ctx, transcriptKey(candidateID), start, -1).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		span.RecordError(err)
		return nil, fmt.Errorf("transcript: list: %w", err)
	}

	out := make([]Entry, 0, len(raw))
	for _, item := range raw {
		var e Entry
		if err := json.Unmarshal([]byte(item), &e); err != nil {
			span.RecordError(err)
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

func transcriptKey(candidateID string) string {
	return keyPrefix + candidateID
}
