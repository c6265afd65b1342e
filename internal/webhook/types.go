package webhook

import (
	"time"

	"github.com/google/uuid"
)

const EventSessionPassed = "liveness.session.passed"

type EventPayload struct {
	Type      string      `json:"type"`
	Data      interface{} `json:"data"`
	Timestamp time.Time   `json:"timestamp"`
}

// SessionResult is the body of a liveness.session.passed event.
type SessionResult struct {
	SessionID       uuid.UUID  `json:"session_id"`
	Origin          string     `json:"origin,omitempty"`
	Status          string     `json:"status"`
	Progress        float64    `json:"progress"`
	FramesProcessed int        `json:"frames_processed"`
	Resets          int        `json:"resets"`
	CompletedAt     *time.Time `json:"completed_at,omitempty"`
}

type job struct {
	event    EventPayload
	attempts int
}
