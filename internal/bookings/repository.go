package bookings

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
)

const uniqueViolation = "23505"

type rowQuerier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresRepository stores bookings in the bookings table.
type PostgresRepository struct {
	db rowQuerier
}

// NewPostgresRepository accepts a *pgxpool.Pool or any compatible querier.
func NewPostgresRepository(db rowQuerier) *PostgresRepository {
	if db == nil {
		panic("bookings: pgx pool required")
	}
	return &PostgresRepository{db: db}
}

// Insert implements Repository.
func (r *PostgresRepository) Insert(ctx context.Context, b *Booking) error {
	return InsertTx(ctx, r.db, b)
}

// InsertTx inserts b using q, which is usually a pgx.Tx that also carries the
// candidate status update and the dialogue state transition.
func InsertTx(ctx context.Context, q rowQuerier, b *Booking) error {
	id := uuid.New()
	if b.ID != "" {
		parsed, err := uuid.Parse(b.ID)
		if err != nil {
			return fmt.Errorf("bookings: invalid id %q: %w", b.ID, err)
		}
		id = parsed
	}
	slotDate, err := time.Parse(DateLayout, b.Date)
	if err != nil {
		return fmt.Errorf("bookings: invalid date %q: %w", b.Date, err)
	}
	if b.DurationMinutes == 0 {
		b.DurationMinutes = DefaultDurationMinutes
	}
	if b.Status == "" {
		b.Status = StatusConfirmed
	}

	query := `
		INSERT INTO bookings (id, candidate_id, slot_date, slot_time, duration_minutes, status, dialogue_version)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at
	`
	var createdAt time.Time
	if err := q.QueryRow(ctx, query,
		toPGUUID(id),
		b.CandidateID,
		toPGDate(slotDate),
		b.Time,
		b.DurationMinutes,
		b.Status,
		b.DialogueVersion,
	).Scan(&createdAt); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return ErrDuplicateBooking
		}
		return fmt.Errorf("bookings: insert failed: %w", err)
	}
	b.ID = id.String()
	b.CreatedAt = createdAt
	return nil
}

// ListByCandidate implements Repository, oldest first.
func (r *PostgresRepository) ListByCandidate(ctx context.Context, candidateID string) ([]Booking, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, candidate_id, slot_date, slot_time, duration_minutes, status, dialogue_version, created_at
		FROM bookings
		WHERE candidate_id = $1
		ORDER BY created_at ASC
	`, candidateID)
	if err != nil {
		return nil, fmt.Errorf("bookings: list failed: %w", err)
	}
	defer rows.Close()

	out := make([]Booking, 0)
	for rows.Next() {
		var (
			b        Booking
			id       pgtype.UUID
			slotDate pgtype.Date
		)
		if err := rows.Scan(&id, &b.CandidateID, &slotDate, &b.Time, &b.DurationMinutes, &b.Status, &b.DialogueVersion, &b.CreatedAt); err != nil {
			return nil, fmt.Errorf("bookings: scan failed: %w", err)
		}
		if id.Valid {
			b.ID = uuid.UUID(id.Bytes).String()
		}
		if slotDate.Valid {
			b.Date = slotDate.Time.Format(DateLayout)
		}
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("bookings: list rows: %w", err)
	}
	return out, nil
}

func toPGUUID(id uuid.UUID) pgtype.UUID {
	if id == uuid.Nil {
		return pgtype.UUID{}
	}
	return pgtype.UUID{
		Bytes: [16]byte(id),
		Valid: true,
	}
}

func toPGDate(t time.Time) pgtype.Date {
	return pgtype.Date{
		Time:  t,
		Valid: true,
	}
}
