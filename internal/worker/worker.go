// Package worker drains queued chat messages through the assistant.
package worker

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/wolfman30/staffline/internal/assistant"
	"github.com/wolfman30/staffline/internal/observability/metrics"
	"github.com/wolfman30/staffline/internal/queue"
	"github.com/wolfman30/staffline/internal/scheduling"
	"github.com/wolfman30/staffline/pkg/logging"
)

const (
	defaultWorkerCount   = 2
	defaultWaitSeconds   = 2
	defaultBatchSize     = 5
	maxWaitSeconds       = 20
	maxReceiveBatchSize  = 10
	deleteTimeoutSeconds = 5
	maxBackoff           = 5 * time.Second
)

// Handler processes one message. *assistant.Assistant satisfies it.
type Handler interface {
	Handle(ctx context.Context, msg assistant.Message) scheduling.Response
}

// OutboundSink hands a response to the delivery layer.
type OutboundSink interface {
	Deliver(ctx context.Context, job queue.Job, resp scheduling.Response) error
}

// LogSink writes responses to the log. It is the default sink when no
// delivery channel is configured.
type LogSink struct {
	Logger *logging.Logger
}

// Deliver implements OutboundSink.
func (s LogSink) Deliver(_ context.Context, job queue.Job, resp scheduling.Response) error {
	logger := s.Logger
	if logger == nil {
		logger = logging.Default()
	}
	logger.Info("outbound response",
		"job_id", job.ID,
		"candidate_id", job.CandidateID,
		"response_type", resp.Type,
		"stage", resp.SchedulingContext.Stage,
	)
	return nil
}

// Worker consumes chat jobs from the queue and invokes the handler.
type Worker struct {
	handler Handler
	queue   queue.Client
	sink    OutboundSink
	metrics *metrics.AssistantMetrics
	logger  *logging.Logger

	cfg config
	wg  sync.WaitGroup
}

type config struct {
	workers          int
	receiveWaitSecs  int
	receiveBatchSize int
}

// Option customizes worker behavior.
type Option func(*Worker)

// WithWorkerCount sets the number of concurrent consumer goroutines.
func WithWorkerCount(count int) Option {
	return func(w *Worker) {
		if count > 0 {
			w.cfg.workers = count
		}
	}
}

// WithReceiveWaitSeconds sets the long-poll wait duration.
func WithReceiveWaitSeconds(seconds int) Option {
	return func(w *Worker) {
		if seconds < 0 {
			return
		}
		if seconds > maxWaitSeconds {
			seconds = maxWaitSeconds
		}
		w.cfg.receiveWaitSecs = seconds
	}
}

// WithReceiveBatchSize sets how many messages to fetch per poll.
func WithReceiveBatchSize(size int) Option {
	return func(w *Worker) {
		if size <= 0 {
			return
		}
		if size > maxReceiveBatchSize {
			size = maxReceiveBatchSize
		}
		w.cfg.receiveBatchSize = size
	}
}

// WithSink sets where responses are delivered.
func WithSink(s OutboundSink) Option {
	return func(w *Worker) {
		if s != nil {
			w.sink = s
		}
	}
}

// WithMetrics records job outcomes.
func WithMetrics(m *metrics.AssistantMetrics) Option {
	return func(w *Worker) { w.metrics = m }
}

// New creates a worker.
func New(handler Handler, q queue.Client, logger *logging.Logger, opts ...Option) (*Worker, error) {
	if handler == nil {
		return nil, errors.New("worker: handler is required")
	}
	if q == nil {
		return nil, errors.New("worker: queue is required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	w := &Worker{
		handler: handler,
		queue:   q,
		logger:  logger,
		sink:    LogSink{Logger: logger},
		cfg: config{
			workers:          defaultWorkerCount,
			receiveWaitSecs:  defaultWaitSeconds,
			receiveBatchSize: defaultBatchSize,
		},
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// Start launches the consumer goroutines. They stop when ctx is canceled.
func (w *Worker) Start(ctx context.Context) {
	for i := 0; i < w.cfg.workers; i++ {
		w.wg.Add(1)
		go w.run(ctx, i+1)
	}
}

// Wait blocks until all worker goroutines exit.
func (w *Worker) Wait() {
	w.wg.Wait()
}

func (w *Worker) run(ctx context.Context, workerID int) {
	defer w.wg.Done()
	w.logger.Debug("chat worker started", "worker_id", workerID)

	backoff := time.Second
	for {
		select {
		case <-ctx.Done():
			w.logger.Debug("chat worker stopping", "worker_id", workerID)
			return
		default:
		}

		messages, err := w.queue.Receive(ctx, w.cfg.receiveBatchSize, w.cfg.receiveWaitSecs)
		if err != nil {
			if errors.Is(err, context.Canceled) || ctx.Err() != nil {
				return
			}
			w.logger.Error("failed to receive chat jobs", "error", err, "worker_id", workerID)
			select {
			case <-ctx.Done():
				return
			case <-time.After(backoff):
			}
			if backoff < maxBackoff {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second

		for _, msg := range messages {
			w.handleMessage(ctx, msg)
		}
	}
}

func (w *Worker) handleMessage(ctx context.Context, msg queue.Message) {
	job, err := queue.Decode(msg.Body)
	if err != nil {
		w.logger.Error("failed to decode chat job", "error", err, "msg_id", msg.ID)
		w.metrics.ObserveJob("invalid")
		w.deleteMessage(context.Background(), msg.ReceiptHandle)
		return
	}

	resp := w.handler.Handle(ctx, assistant.Message{
		CandidateID: job.CandidateID,
		Text:        job.Text,
		Channel:     job.Channel,
		DeviceType:  job.DeviceType,
		ReceivedAt:  job.ReceivedAt,
	})

	// A busy candidate goes back to the end of the queue.
	if retry, _ := resp.Metadata["retry"].(bool); retry {
		if err := w.queue.Send(ctx, msg.Body); err != nil {
			w.logger.Error("failed to requeue chat job", "error", err, "job_id", job.ID)
			w.metrics.ObserveJob("requeue_failed")
			return
		}
		w.logger.Warn("chat job requeued", "job_id", job.ID, "candidate_id", job.CandidateID)
		w.metrics.ObserveJob("requeued")
		w.deleteMessage(context.Background(), msg.ReceiptHandle)
		return
	}

	if err := w.sink.Deliver(ctx, job, resp); err != nil {
		w.logger.Error("failed to deliver response", "error", err, "job_id", job.ID, "candidate_id", job.CandidateID)
		w.metrics.ObserveJob("delivery_failed")
	} else {
		w.metrics.ObserveJob("processed")
	}
	w.deleteMessage(context.Background(), msg.ReceiptHandle)
}

func (w *Worker) deleteMessage(ctx context.Context, receiptHandle string) {
	if receiptHandle == "" {
		return
	}
	deleteCtx, cancel := context.WithTimeout(ctx, deleteTimeoutSeconds*time.Second)
	defer cancel()

	if err := w.queue.Delete(deleteCtx, receiptHandle); err != nil {
		w.logger.Error("failed to delete chat job", "error", err)
	}
}
