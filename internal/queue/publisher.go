package queue

import (
	"context"
	"fmt"

	"github.com/wolfman30/staffline/pkg/logging"
)

// Publisher enqueues inbound messages for asynchronous handling.
type Publisher struct {
	queue  Client
	logger *logging.Logger
}

// NewPublisher creates a queue-backed publisher.
func NewPublisher(queue Client, logger *logging.Logger) (*Publisher, error) {
	if queue == nil {
		return nil, fmt.Errorf("queue: publisher requires a queue")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Publisher{queue: queue, logger: logger}, nil
}

// Enqueue publishes the job and returns it with its assigned id.
func (p *Publisher) Enqueue(ctx context.Context, job Job) (Job, error) {
	job, body, err := Encode(job)
	if err != nil {
		return Job{}, err
	}
	if err := p.queue.Send(ctx, body); err != nil {
		return Job{}, fmt.Errorf("queue: failed to enqueue job: %w", err)
	}
	p.logger.Debug("chat job enqueued", "job_id", job.ID, "candidate_id", job.CandidateID)
	return job, nil
}
