// Package queue carries inbound chat messages to the asynchronous worker.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Client is the transport a Publisher writes to and a worker drains.
type Client interface {
	Send(ctx context.Context, body string) error
	Receive(ctx context.Context, maxMessages int, waitSeconds int) ([]Message, error)
	Delete(ctx context.Context, receiptHandle string) error
}

// Message is one delivery from a Client.
type Message struct {
	ID            string
	Body          string
	ReceiptHandle string
}

// Job is an inbound candidate message waiting to be handled.
type Job struct {
	ID          string    `json:"id"`
	CandidateID string    `json:"candidate_id"`
	Text        string    `json:"text"`
	Channel     string    `json:"channel,omitempty"`
	DeviceType  string    `json:"device_type,omitempty"`
	ReceivedAt  time.Time `json:"received_at"`
}

// ErrInvalidJob is returned for a job without a candidate id.
var ErrInvalidJob = errors.New("queue: job requires candidate_id")

// Encode assigns an id when missing and serializes the job.
func Encode(job Job) (Job, string, error) {
	if strings.TrimSpace(job.CandidateID) == "" {
		return Job{}, "", ErrInvalidJob
	}
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	body, err := json.Marshal(job)
	if err != nil {
		return Job{}, "", fmt.Errorf("queue: failed to encode job: %w", err)
	}
	return job, string(body), nil
}

// Decode parses a message body produced by Encode.
func Decode(body string) (Job, error) {
	var job Job
	if err := json.Unmarshal([]byte(body), &job); err != nil {
		return Job{}, fmt.Errorf("queue: failed to decode job: %w", err)
	}
	if strings.TrimSpace(job.CandidateID) == "" {
		return Job{}, ErrInvalidJob
	}
	return job, nil
}
