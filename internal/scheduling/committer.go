package scheduling

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/wolfman30/staffline/internal/bookings"
	"github.com/wolfman30/staffline/internal/candidates"
)

// CommitRequest carries the three writes of a confirmed booking.
type CommitRequest struct {
	// State is the BOOKED row to write.
	State *DialogueState
	// Previous is the row the turn read, used to undo a partial commit.
	Previous        *DialogueState
	ExpectedVersion int64
	Booking         *bookings.Booking
}

// Committer persists a booking, moves the candidate to interview_scheduled
// and advances the dialogue to BOOKED as one step. A lost race on the
// dialogue row is reported as ErrVersionConflict.
type Committer interface {
	Commit(ctx context.Context, req CommitRequest) error
}

type txBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

var commitTracer = otel.Tracer("staffline.internal.scheduling.commit")

func startCommitSpan(ctx context.Context, name string, req CommitRequest) (context.Context, trace.Span) {
	ctx, span := commitTracer.Start(ctx, name)
	span.SetAttributes(
		attribute.String("staffline.candidate_id", req.State.CandidateID),
		attribute.Int64("staffline.dialogue_version", req.ExpectedVersion),
	)
	return ctx, span
}

// PostgresCommitter runs all three writes in one transaction against the
// same database that holds dialogue_states.
type PostgresCommitter struct {
	db txBeginner
}

// NewPostgresCommitter accepts a *pgxpool.Pool or any compatible beginner.
func NewPostgresCommitter(db txBeginner) *PostgresCommitter {
	if db == nil {
		panic("scheduling: pgx pool required")
	}
	return &PostgresCommitter{db: db}
}

// Commit implements Committer.
func (c *PostgresCommitter) Commit(ctx context.Context, req CommitRequest) error {
	ctx, span := startCommitSpan(ctx, "scheduling.commit.postgres", req)
	defer span.End()

	tx, err := c.db.Begin(ctx)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("scheduling: begin booking tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := writeBookingTx(ctx, tx, req); err != nil {
		span.RecordError(err)
		return err
	}
	if err := saveStateTx(ctx, tx, req.State, req.ExpectedVersion); err != nil {
		span.RecordError(err)
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		span.RecordError(err)
		return fmt.Errorf("scheduling: commit booking tx: %w", err)
	}
	return nil
}

// SplitCommitter writes the booking and candidate status in a Postgres
// transaction and the dialogue state to a separate Store, typically Redis.
// The state write happens before the transaction commits so a lost race
// rolls the booking back.
type SplitCommitter struct {
	db    txBeginner
	store Store
}

// NewSplitCommitter pairs a Postgres pool with a dialogue Store.
func NewSplitCommitter(db txBeginner, store Store) *SplitCommitter {
	if db == nil || store == nil {
		panic("scheduling: split committer needs a pool and a store")
	}
	return &SplitCommitter{db: db, store: store}
}

// Commit implements Committer.
func (c *SplitCommitter) Commit(ctx context.Context, req CommitRequest) error {
	ctx, span := startCommitSpan(ctx, "scheduling.commit.split", req)
	defer span.End()

	tx, err := c.db.Begin(ctx)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("scheduling: begin booking tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := writeBookingTx(ctx, tx, req); err != nil {
		span.RecordError(err)
		return err
	}
	if err := c.store.Save(ctx, req.State, req.ExpectedVersion); err != nil {
		span.RecordError(err)
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		span.RecordError(err)
		commitErr := fmt.Errorf("scheduling: commit booking tx: %w", err)
		if req.Previous != nil {
			prev := req.Previous.Clone()
			if rerr := c.store.Save(ctx, prev, req.State.Version); rerr != nil {
				return errors.Join(commitErr, fmt.Errorf("scheduling: restore dialogue state: %w", rerr))
			}
		}
		return commitErr
	}
	return nil
}

func writeBookingTx(ctx context.Context, tx pgx.Tx, req CommitRequest) error {
	if err := bookings.InsertTx(ctx, tx, req.Booking); err != nil {
		if errors.Is(err, bookings.ErrDuplicateBooking) {
			return ErrVersionConflict
		}
		return err
	}
	return candidates.UpdateStatusTx(ctx, tx, req.Booking.CandidateID, candidates.StatusInterviewScheduled)
}

// MemoryCommitter applies the three writes to in-memory stores, undoing the
// earlier ones when a later one fails.
type MemoryCommitter struct {
	mu         sync.Mutex
	store      Store
	bookings   *bookings.MemoryRepository
	candidates *candidates.MemoryDirectory
}

// NewMemoryCommitter wires in-memory collaborators.
func NewMemoryCommitter(store Store, repo *bookings.MemoryRepository, dir *candidates.MemoryDirectory) *MemoryCommitter {
	return &MemoryCommitter{store: store, bookings: repo, candidates: dir}
}

// Commit implements Committer.
func (c *MemoryCommitter) Commit(ctx context.Context, req CommitRequest) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.bookings.Insert(ctx, req.Booking); err != nil {
		if errors.Is(err, bookings.ErrDuplicateBooking) {
			return ErrVersionConflict
		}
		return err
	}
	cand, err := c.candidates.Get(ctx, req.Booking.CandidateID)
	if err != nil {
		c.bookings.Remove(req.Booking.ID)
		return err
	}
	if err := c.candidates.UpdateStatus(ctx, cand.ID, candidates.StatusInterviewScheduled); err != nil {
		c.bookings.Remove(req.Booking.ID)
		return err
	}
	if err := c.store.Save(ctx, req.State, req.ExpectedVersion); err != nil {
		c.bookings.Remove(req.Booking.ID)
		_ = c.candidates.UpdateStatus(ctx, cand.ID, cand.Status)
		return err
	}
	return nil
}
