package candidates

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

type rowQuerier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresDirectory reads candidates from the candidates table.
type PostgresDirectory struct {
	db rowQuerier
}

// NewPostgresDirectory accepts a *pgxpool.Pool or any compatible querier.
func NewPostgresDirectory(db rowQuerier) *PostgresDirectory {
	if db == nil {
		panic("candidates: pgx pool required")
	}
	return &PostgresDirectory{db: db}
}

// Get implements Directory.
func (r *PostgresDirectory) Get(ctx context.Context, id string) (*Candidate, error) {
	query := `
		SELECT id, name, status, created_at, completed_job_count
		FROM candidates
		WHERE id = $1
	`
	var c Candidate
	if err := r.db.QueryRow(ctx, query, id).Scan(
		&c.ID,
		&c.Name,
		&c.Status,
		&c.CreatedAt,
		&c.CompletedJobCount,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrCandidateNotFound
		}
		return nil, fmt.Errorf("candidates: select failed: %w", err)
	}
	return &c, nil
}

// UpdateStatus implements StatusUpdater outside a transaction.
func (r *PostgresDirectory) UpdateStatus(ctx context.Context, id, status string) error {
	return UpdateStatusTx(ctx, r.db, id, status)
}

// UpdateStatusTx sets the candidate status using q, which is usually a pgx.Tx
// shared with the booking insert.
func UpdateStatusTx(ctx context.Context, q rowQuerier, id, status string) error {
	if !ValidStatus(status) {
		return ErrInvalidStatus
	}
	tag, err := q.Exec(ctx, `UPDATE candidates SET status = $2, updated_at = now() WHERE id = $1`, id, status)
	if err != nil {
		return fmt.Errorf("candidates: update status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrCandidateNotFound
	}
	return nil
}
