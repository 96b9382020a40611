package bookings

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/wolfman30/staffline/pkg/logging"
)

var bookingsTracer = otel.Tracer("staffline.internal.bookings")

// Service exposes booking history to the API.
type Service struct {
	repo   Repository
	logger *logging.Logger
}

// NewService constructs a bookings service.
func NewService(repo Repository, logger *logging.Logger) *Service {
	if repo == nil {
		panic("bookings: repository required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{repo: repo, logger: logger}
}

// History returns every booking made by the candidate, including ones
// superseded by a reschedule.
func (s *Service) History(ctx context.Context, candidateID string) ([]Booking, error) {
	ctx, span := bookingsTracer.Start(ctx, "bookings.history")
	defer span.End()
	span.SetAttributes(attribute.String("staffline.candidate_id", candidateID))

	rows, err := s.repo.ListByCandidate(ctx, candidateID)
	if err != nil {
		span.RecordError(err)
		s.logger.Error("failed to list bookings", "candidate_id", candidateID, "error", err)
		return nil, err
	}
	return rows, nil
}
