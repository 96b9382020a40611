// Package handlers holds the HTTP handlers of the chat API.
package handlers

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/wolfman30/staffline/internal/assistant"
	"github.com/wolfman30/staffline/internal/bookings"
	"github.com/wolfman30/staffline/internal/classifier"
	"github.com/wolfman30/staffline/internal/clock"
	"github.com/wolfman30/staffline/internal/queue"
	"github.com/wolfman30/staffline/internal/scheduling"
	"github.com/wolfman30/staffline/pkg/logging"
)

// Assistant is the part of *assistant.Assistant the handlers call.
type Assistant interface {
	Handle(ctx context.Context, msg assistant.Message) scheduling.Response
	Classify(ctx context.Context, msg assistant.Message) classifier.Classification
}

// Enqueuer publishes chat jobs. *queue.Publisher satisfies it.
type Enqueuer interface {
	Enqueue(ctx context.Context, job queue.Job) (queue.Job, error)
}

// DialogueReader returns the live dialogue state. *scheduling.Engine
// satisfies it.
type DialogueReader interface {
	State(ctx context.Context, candidateID string) (*scheduling.DialogueState, error)
}

// BookingHistory lists a candidate's bookings. *bookings.Service satisfies it.
type BookingHistory interface {
	History(ctx context.Context, candidateID string) ([]bookings.Booking, error)
}

// ChatConfig wires a ChatHandler. Publisher is optional; without it the async
// endpoint answers 503.
type ChatConfig struct {
	Assistant Assistant
	Publisher Enqueuer
	Dialogue  DialogueReader
	Bookings  BookingHistory
	Clock     clock.Clock
	Logger    *logging.Logger
}

// ChatHandler serves the chat endpoints.
type ChatHandler struct {
	assistant Assistant
	publisher Enqueuer
	dialogue  DialogueReader
	bookings  BookingHistory
	clock     clock.Clock
	logger    *logging.Logger
}

// NewChatHandler builds a ChatHandler.
func NewChatHandler(cfg ChatConfig) *ChatHandler {
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Default()
	}
	return &ChatHandler{
		assistant: cfg.Assistant,
		publisher: cfg.Publisher,
		dialogue:  cfg.Dialogue,
		bookings:  cfg.Bookings,
		clock:     clock.OrSystem(cfg.Clock),
		logger:    logger,
	}
}

// MessageRequest is the body of the message and classify endpoints.
type MessageRequest struct {
	CandidateID string `json:"candidate_id"`
	Text        string `json:"text"`
	Channel     string `json:"channel,omitempty"`
	DeviceType  string `json:"device_type,omitempty"`
}

func (h *ChatHandler) readMessage(w http.ResponseWriter, r *http.Request) (assistant.Message, bool) {
	var req MessageRequest
	if err := decodeJSON(w, r, &req); err != nil {
		jsonError(w, "invalid JSON body", http.StatusBadRequest)
		return assistant.Message{}, false
	}
	req.CandidateID = strings.TrimSpace(req.CandidateID)
	if req.CandidateID == "" {
		jsonError(w, "candidate_id is required", http.StatusBadRequest)
		return assistant.Message{}, false
	}
	return assistant.Message{
		CandidateID: req.CandidateID,
		Text:        req.Text,
		Channel:     strings.TrimSpace(req.Channel),
		DeviceType:  strings.TrimSpace(req.DeviceType),
		ReceivedAt:  h.clock.Now(),
	}, true
}

// PostMessage runs one turn synchronously. The response is always 200 with
// the outbound response body; failures inside the turn are response types.
func (h *ChatHandler) PostMessage(w http.ResponseWriter, r *http.Request) {
	msg, ok := h.readMessage(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, h.assistant.Handle(r.Context(), msg))
}

// EnqueueResponse is returned by the async endpoint.
type EnqueueResponse struct {
	JobID  string `json:"job_id"`
	Status string `json:"status"`
}

// PostMessageAsync queues the message for the worker.
func (h *ChatHandler) PostMessageAsync(w http.ResponseWriter, r *http.Request) {
	if h.publisher == nil {
		jsonError(w, "async processing not configured", http.StatusServiceUnavailable)
		return
	}
	msg, ok := h.readMessage(w, r)
	if !ok {
		return
	}
	job, err := h.publisher.Enqueue(r.Context(), queue.Job{
		CandidateID: msg.CandidateID,
		Text:        msg.Text,
		Channel:     msg.Channel,
		DeviceType:  msg.DeviceType,
		ReceivedAt:  msg.ReceivedAt,
	})
	if err != nil {
		h.logger.Error("failed to enqueue chat message", "candidate_id", msg.CandidateID, "error", err)
		jsonError(w, "failed to enqueue message", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusAccepted, EnqueueResponse{JobID: job.ID, Status: "queued"})
}

// Classify returns the full classification for a message without running a
// turn.
func (h *ChatHandler) Classify(w http.ResponseWriter, r *http.Request) {
	msg, ok := h.readMessage(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, h.assistant.Classify(r.Context(), msg))
}

// GetDialogue returns the candidate's live dialogue state.
func (h *ChatHandler) GetDialogue(w http.ResponseWriter, r *http.Request) {
	if h.dialogue == nil {
		jsonError(w, "dialogue store not configured", http.StatusServiceUnavailable)
		return
	}
	candidateID := strings.TrimSpace(chi.URLParam(r, "candidateID"))
	st, err := h.dialogue.State(r.Context(), candidateID)
	if err != nil {
		h.logger.Error("failed to read dialogue state", "candidate_id", candidateID, "error", err)
		jsonError(w, "failed to read dialogue state", http.StatusInternalServerError)
		return
	}
	if st == nil {
		jsonError(w, "no active dialogue", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// BookingsResponse lists bookings oldest first.
type BookingsResponse struct {
	CandidateID string             `json:"candidate_id"`
	Bookings    []bookings.Booking `json:"bookings"`
	FetchedAt   time.Time          `json:"fetched_at"`
}

// GetBookings returns every booking the candidate has made.
func (h *ChatHandler) GetBookings(w http.ResponseWriter, r *http.Request) {
	if h.bookings == nil {
		jsonError(w, "booking store not configured", http.StatusServiceUnavailable)
		return
	}
	candidateID := strings.TrimSpace(chi.URLParam(r, "candidateID"))
	rows, err := h.bookings.History(r.Context(), candidateID)
	if err != nil {
		jsonError(w, "failed to list bookings", http.StatusInternalServerError)
		return
	}
	if rows == nil {
		rows = []bookings.Booking{}
	}
	writeJSON(w, http.StatusOK, BookingsResponse{CandidateID: candidateID, Bookings: rows, FetchedAt: h.clock.Now().UTC()})
}
