package bookings

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/staffline/pkg/logging"
)

func TestMemoryRepositoryAppendOnly(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()

	first := &Booking{CandidateID: "c-1", Date: "2026-03-05", Time: "2:00 PM", DialogueVersion: 4}
	require.NoError(t, repo.Insert(ctx, first))
	assert.NotEmpty(t, first.ID)

	dup := &Booking{CandidateID: "c-1", Date: "2026-03-06", Time: "3:00 PM", DialogueVersion: 4}
	assert.ErrorIs(t, repo.Insert(ctx, dup), ErrDuplicateBooking)

	second := &Booking{CandidateID: "c-1", Date: "2026-03-06", Time: "3:00 PM", DialogueVersion: 9}
	require.NoError(t, repo.Insert(ctx, second))

	rows, err := repo.ListByCandidate(ctx, "c-1")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, first.ID, rows[0].ID)

	repo.Remove(second.ID)
	rows, _ = repo.ListByCandidate(ctx, "c-1")
	assert.Len(t, rows, 1)
	require.NoError(t, repo.Insert(ctx, second), "removed key can be reused")
}

func TestInsertTx(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	created := time.Date(2026, 3, 4, 2, 0, 0, 0, time.UTC)
	mock.ExpectQuery("INSERT INTO bookings").
		WithArgs(pgxmock.AnyArg(), "c-1", pgxmock.AnyArg(), "2:00 PM", DefaultDurationMinutes, StatusConfirmed, int64(3)).
		WillReturnRows(pgxmock.NewRows([]string{"created_at"}).AddRow(created))

	b := &Booking{CandidateID: "c-1", Date: "2026-03-05", Time: "2:00 PM", DialogueVersion: 3}
	require.NoError(t, InsertTx(context.Background(), mock, b))
	_, err = uuid.Parse(b.ID)
	assert.NoError(t, err)
	assert.Equal(t, StatusConfirmed, b.Status)
	assert.Equal(t, DefaultDurationMinutes, b.DurationMinutes)
	assert.True(t, b.CreatedAt.Equal(created))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertTxDuplicate(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery("INSERT INTO bookings").
		WithArgs(pgxmock.AnyArg(), "c-1", pgxmock.AnyArg(), "2:00 PM", DefaultDurationMinutes, StatusConfirmed, int64(0)).
		WillReturnError(&pgconn.PgError{Code: "23505"})

	err = InsertTx(context.Background(), mock, &Booking{CandidateID: "c-1", Date: "2026-03-05", Time: "2:00 PM"})
	assert.ErrorIs(t, err, ErrDuplicateBooking)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertTxRejectsBadDate(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	err = InsertTx(context.Background(), mock, &Booking{CandidateID: "c-1", Date: "tomorrow"})
	assert.Error(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresListByCandidate(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	id := uuid.New()
	created := time.Date(2026, 3, 4, 2, 0, 0, 0, time.UTC)
	slot := time.Date(2026, 3, 5, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery("SELECT id, candidate_id, slot_date").
		WithArgs("c-1").
		WillReturnRows(pgxmock.NewRows([]string{"id", "candidate_id", "slot_date", "slot_time", "duration_minutes", "status", "dialogue_version", "created_at"}).
			AddRow(pgtype.UUID{Bytes: [16]byte(id), Valid: true}, "c-1", pgtype.Date{Time: slot, Valid: true}, "2:00 PM", 15, StatusConfirmed, int64(3), created))

	repo := NewPostgresRepository(mock)
	rows, err := repo.ListByCandidate(context.Background(), "c-1")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, id.String(), rows[0].ID)
	assert.Equal(t, "2026-03-05", rows[0].Date)
	require.NoError(t, mock.ExpectationsWereMet())
}

type failingRepo struct{}

func (failingRepo) Insert(context.Context, *Booking) error { return errors.New("boom") }
func (failingRepo) ListByCandidate(context.Context, string) ([]Booking, error) {
	return nil, errors.New("boom")
}

func TestServiceHistory(t *testing.T) {
	repo := NewMemoryRepository()
	require.NoError(t, repo.Insert(context.Background(), &Booking{CandidateID: "c-1", Date: "2026-03-05", Time: "9:00 AM"}))

	svc := NewService(repo, logging.Discard())
	rows, err := svc.History(context.Background(), "c-1")
	require.NoError(t, err)
	assert.Len(t, rows, 1)

	_, err = NewService(failingRepo{}, logging.Discard()).History(context.Background(), "c-1")
	assert.Error(t, err)
}
