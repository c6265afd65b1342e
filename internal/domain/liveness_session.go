package domain

import (
	"time"

	"github.com/google/uuid"
)

// SessionStatus is the lifecycle of a liveness session as stored.
type SessionStatus string

const (
	SessionActive    SessionStatus = "active"
	SessionPassed    SessionStatus = "passed"
	SessionAbandoned SessionStatus = "abandoned"
	SessionExpired   SessionStatus = "expired"
)

// LivenessSession is the persisted record of one challenge run.
// The live state machine is kept in memory by the service; this row mirrors
// its last snapshot so a session can be inspected after it is evicted.
type LivenessSession struct {
	ID              uuid.UUID     `json:"id"`
	Origin          string        `json:"origin,omitempty"`
	Status          SessionStatus `json:"status"`
	FaceDetected    bool          `json:"face_detected"`
	ChallengeIndex  int           `json:"challenge_index"`
	Progress        float64       `json:"progress"`
	Complete        bool          `json:"complete"`
	FramesProcessed int           `json:"frames_processed"`
	Resets          int           `json:"resets"`
	ExpiresAt       time.Time     `json:"expires_at"`
	CompletedAt     *time.Time    `json:"completed_at,omitempty"`
	CreatedAt       time.Time     `json:"created_at"`
	UpdatedAt       time.Time     `json:"updated_at"`
}

// IsExpired checks if the session has expired
func (s *LivenessSession) IsExpired() bool {
	return time.Now().After(s.ExpiresAt)
}

// IsClosed reports whether the session no longer accepts frames.
func (s *LivenessSession) IsClosed() bool {
	return s.Status != SessionActive
}

// LivenessEventType names a state change worth recording.
type LivenessEventType string

const (
	EventFaceDetected LivenessEventType = "face_detected"
	EventAdvanced     LivenessEventType = "advanced"
	EventCompleted    LivenessEventType = "completed"
	EventReset        LivenessEventType = "reset"
	EventClosed       LivenessEventType = "closed"
)

// LivenessEvent is an audit row for one state change of a session.
type LivenessEvent struct {
	ID        uuid.UUID         `json:"id"`
	SessionID uuid.UUID         `json:"session_id"`
	Type      LivenessEventType `json:"type"`
	Challenge string            `json:"challenge,omitempty"`
	Progress  float64           `json:"progress"`
	CreatedAt time.Time         `json:"created_at"`
}

// Liveness-specific errors
var (
	ErrSessionNotFound = &AppError{
		Code:       "LIVENESS_SESSION_NOT_FOUND",
		Message:    "Liveness session not found",
		StatusCode: 404,
	}

	ErrSessionExpired = &AppError{
		Code:       "LIVENESS_SESSION_EXPIRED",
		Message:    "Liveness session has expired",
		StatusCode: 410,
	}

	ErrSessionClosed = &AppError{
		Code:       "LIVENESS_SESSION_CLOSED",
		Message:    "Liveness session is closed and no longer accepts frames",
		StatusCode: 409,
	}

	ErrInvalidOrigin = &AppError{
		Code:       "INVALID_ORIGIN",
		Message:    "Invalid origin format",
		StatusCode: 422,
	}
)
