// Package assistant runs one inbound chat message end to end: it serializes
// the candidate, gathers context, classifies the text and routes the turn to
// the scheduling dialogue or a canned intent reply.
package assistant

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/wolfman30/staffline/internal/audit"
	"github.com/wolfman30/staffline/internal/candidates"
	"github.com/wolfman30/staffline/internal/classifier"
	"github.com/wolfman30/staffline/internal/clock"
	"github.com/wolfman30/staffline/internal/contextanalysis"
	"github.com/wolfman30/staffline/internal/locks"
	"github.com/wolfman30/staffline/internal/observability/metrics"
	"github.com/wolfman30/staffline/internal/scheduling"
	"github.com/wolfman30/staffline/internal/transcript"
	"github.com/wolfman30/staffline/pkg/logging"
)

// ResponseIntentReply is the response type for canned intent answers.
const ResponseIntentReply scheduling.ResponseType = "intent_reply"

// Routes reported in metrics and logs.
const (
	RouteScheduling = "scheduling"
	RouteIntent     = "intent"
	RouteError      = "error"
)

const (
	defaultLockWait = 5 * time.Second
	historyLimit    = transcript.MaxEntries
	busyReply       = "We're still working on your previous message. Please send that again in a moment."
)

// Dialogue is the scheduling conversation. *scheduling.Engine satisfies it.
type Dialogue interface {
	Handle(ctx context.Context, turn scheduling.Turn) scheduling.Response
}

// Message is one inbound chat message.
type Message struct {
	CandidateID string
	Text        string
	Channel     string
	DeviceType  string
	ReceivedAt  time.Time
}

// Assistant handles inbound messages. It is safe for concurrent use; turns
// for the same candidate are serialized by the locker.
type Assistant struct {
	classifier  *classifier.Classifier
	dialogue    Dialogue
	directory   candidates.Directory
	transcripts transcript.Store
	locker      locks.Locker
	metrics     *metrics.AssistantMetrics
	clock       clock.Clock
	lockWait    time.Duration
	replies     Replies
	fallback    string
	logger      *logging.Logger
	tracer      trace.Tracer
}

// Option configures an Assistant.
type Option func(*Assistant)

// WithTranscript sets the store turns are recorded in.
func WithTranscript(s transcript.Store) Option {
	return func(a *Assistant) {
		if s != nil {
			a.transcripts = s
		}
	}
}

// WithLocker replaces the in-process keyed mutex.
func WithLocker(l locks.Locker) Option {
	return func(a *Assistant) {
		if l != nil {
			a.locker = l
		}
	}
}

// WithLockWait bounds how long a turn waits for the candidate lock.
func WithLockWait(d time.Duration) Option {
	return func(a *Assistant) {
		if d > 0 {
			a.lockWait = d
		}
	}
}

// WithMetrics records turn metrics.
func WithMetrics(m *metrics.AssistantMetrics) Option {
	return func(a *Assistant) { a.metrics = m }
}

// WithClock sets the clock used for message timestamps and latency.
func WithClock(c clock.Clock) Option {
	return func(a *Assistant) {
		if c != nil {
			a.clock = c
		}
	}
}

// WithReplies overrides the canned intent replies.
func WithReplies(r Replies) Option {
	return func(a *Assistant) {
		if len(r) > 0 {
			a.replies = r
		}
	}
}

// WithFallback sets the apology sent when a turn fails unexpectedly.
func WithFallback(text string) Option {
	return func(a *Assistant) {
		if text != "" {
			a.fallback = text
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(a *Assistant) {
		if l != nil {
			a.logger = l
		}
	}
}

// WithTracer overrides the tracer.
func WithTracer(t trace.Tracer) Option {
	return func(a *Assistant) {
		if t != nil {
			a.tracer = t
		}
	}
}

// New builds an Assistant. The classifier, dialogue and directory are required.
func New(c *classifier.Classifier, d Dialogue, dir candidates.Directory, opts ...Option) (*Assistant, error) {
	if c == nil {
		return nil, errors.New("assistant: classifier is required")
	}
	if d == nil {
		return nil, errors.New("assistant: dialogue is required")
	}
	if dir == nil {
		return nil, errors.New("assistant: candidate directory is required")
	}
	a := &Assistant{
		classifier:  c,
		dialogue:    d,
		directory:   dir,
		transcripts: transcript.NewMemoryStore(),
		locker:      locks.NewKeyedMutex(),
		clock:       clock.System{},
		lockWait:    defaultLockWait,
		replies:     DefaultReplies(),
		fallback:    scheduling.DefaultScripts().GenericError,
		logger:      logging.Default(),
		tracer:      otel.Tracer("staffline.internal.assistant"),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

// Classify runs the classification pipeline for msg without routing it or
// recording anything.
func (a *Assistant) Classify(ctx context.Context, msg Message) classifier.Classification {
	raw, _ := a.context(ctx, msg)
	return a.classifier.Classify(msg.Text, raw)
}

// Handle processes msg and always returns a response.
func (a *Assistant) Handle(ctx context.Context, msg Message) (resp scheduling.Response) {
	start := a.clock.Now()
	route := RouteError
	ctx, span := a.tracer.Start(ctx, "assistant.handle")
	defer span.End()
	span.SetAttributes(attribute.String("staffline.candidate_id", msg.CandidateID))

	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("assistant: panic: %v", r)
			span.RecordError(err)
			a.logger.Error("assistant turn panicked", "candidate_id", msg.CandidateID, "panic", fmt.Sprint(r))
			route = RouteError
			resp = a.errorResponse()
		}
		a.metrics.ObserveTurn(route, string(resp.Type), a.clock.Now().Sub(start).Seconds())
	}()

	if msg.CandidateID == "" {
		return a.errorResponse()
	}
	if msg.ReceivedAt.IsZero() {
		msg.ReceivedAt = start
	}

	lockCtx, cancel := context.WithTimeout(ctx, a.lockWait)
	unlock, err := a.locker.Lock(lockCtx, msg.CandidateID)
	cancel()
	if err != nil {
		a.metrics.ObserveLockTimeout()
		a.logger.Warn("candidate busy, turn not processed", "candidate_id", msg.CandidateID, "error", err)
		return scheduling.Response{
			Content:  busyReply,
			Type:     scheduling.ResponseError,
			Metadata: map[string]any{"retry": true},
		}
	}
	defer unlock()

	raw, cand := a.context(ctx, msg)
	cls := a.classifier.Classify(msg.Text, raw)
	selected := cls.Selected
	a.metrics.ObserveIntent(string(selected.Intent), selected.Confidence)
	span.SetAttributes(
		attribute.String("staffline.intent", string(selected.Intent)),
		attribute.Float64("staffline.confidence", selected.Confidence),
	)

	if cand != nil && routesToScheduling(cand.Status) {
		route = RouteScheduling
		turnCtx := audit.WithTurn(ctx, audit.TurnContext{
			Intent:        string(selected.Intent),
			Confidence:    selected.Confidence,
			HasConfidence: true,
			Factors:       cls.Explanation.Factors,
		})
		resp = a.dialogue.Handle(turnCtx, scheduling.Turn{
			CandidateID:   msg.CandidateID,
			CandidateName: cand.Name,
			Text:          msg.Text,
		})
		switch resp.Type {
		case scheduling.ResponseBookingConfirmed:
			a.metrics.ObserveBooking("confirmed")
		case scheduling.ResponseBookingError:
			a.metrics.ObserveBooking("failed")
		}
	} else {
		route = RouteIntent
		resp = scheduling.Response{
			Content:           a.replies.For(selected.Intent),
			Type:              ResponseIntentReply,
			SchedulingContext: scheduling.SchedulingContext{Intent: string(selected.Intent)},
		}
	}
	if resp.Metadata == nil {
		resp.Metadata = map[string]any{}
	}
	resp.Metadata["classification"] = summary(cls)

	a.record(ctx, msg, cls, resp)
	a.logger.Info("assistant turn handled",
		"candidate_id", msg.CandidateID,
		"route", route,
		"intent", selected.Intent,
		"confidence", selected.Confidence,
		"response_type", resp.Type,
	)
	return resp
}

// context gathers the candidate record and history. Lookup failures degrade
// the context instead of failing the turn.
func (a *Assistant) context(ctx context.Context, msg Message) (contextanalysis.RawContext, *candidates.Candidate) {
	raw := contextanalysis.RawContext{
		Channel:    msg.Channel,
		DeviceType: msg.DeviceType,
		Timestamp:  msg.ReceivedAt,
	}
	if raw.Timestamp.IsZero() {
		raw.Timestamp = a.clock.Now()
	}

	cand, err := a.directory.Get(ctx, msg.CandidateID)
	switch {
	case errors.Is(err, candidates.ErrCandidateNotFound):
		a.logger.Debug("candidate not in directory", "candidate_id", msg.CandidateID)
		cand = nil
	case err != nil:
		a.logger.Error("candidate lookup failed", "candidate_id", msg.CandidateID, "error", err)
		cand = nil
	}
	if cand != nil {
		jobs := cand.CompletedJobCount
		raw.UserStatus = cand.Status
		raw.CreatedAt = cand.CreatedAt
		raw.CompletedJobs = &jobs
	}

	entries, err := a.transcripts.List(ctx, msg.CandidateID, historyLimit)
	if err != nil {
		a.logger.Warn("transcript unavailable", "candidate_id", msg.CandidateID, "error", err)
		return raw, cand
	}
	stats := transcript.Summarize(entries, raw.Timestamp)
	count := stats.InboundCount
	raw.MessageCount = &count
	raw.IsFirstMessage = stats.IsFirstMessage()
	raw.RecentIssueCount = stats.RecentIssueCount
	return raw, cand
}

func (a *Assistant) record(ctx context.Context, msg Message, cls classifier.Classification, resp scheduling.Response) {
	stage := string(resp.SchedulingContext.Stage)
	err := a.transcripts.Append(ctx, msg.CandidateID,
		transcript.Entry{
			Role:      transcript.RoleInbound,
			Text:      msg.Text,
			Intent:    string(cls.Selected.Intent),
			Timestamp: msg.ReceivedAt,
		},
		transcript.Entry{
			Role:         transcript.RoleOutbound,
			Text:         resp.Content,
			ResponseType: string(resp.Type),
			Stage:        stage,
			Timestamp:    a.clock.Now(),
		},
	)
	if err != nil {
		a.logger.Error("failed to record transcript", "candidate_id", msg.CandidateID, "error", err)
	}
}

func (a *Assistant) errorResponse() scheduling.Response {
	return scheduling.Response{
		Content:  a.fallback,
		Type:     scheduling.ResponseError,
		Metadata: map[string]any{"human_fallback": true},
	}
}

func routesToScheduling(status string) bool {
	return status == candidates.StatusPending || status == candidates.StatusInterviewScheduled
}

func summary(cls classifier.Classification) map[string]any {
	return map[string]any{
		"intent":     string(cls.Selected.Intent),
		"confidence": cls.Selected.Confidence,
		"factors":    cls.Explanation.Factors,
		"fallback":   cls.Fallback,
	}
}
