package ws

import (
	"time"

	"github.com/google/uuid"
)

type EventType string

const (
	EventProgress  EventType = "liveness.progress"
	EventReset     EventType = "liveness.reset"
	EventCompleted EventType = "liveness.completed"
)

type Event struct {
	SessionID uuid.UUID   `json:"session_id"`
	Type      EventType   `json:"type"`
	Data      interface{} `json:"data"`
	Timestamp time.Time   `json:"timestamp"`
}
