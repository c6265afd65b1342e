package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/saturnino-fabrica-de-software/vivo/internal/domain"
)

type LivenessSessionRepository struct {
	pool PgxPool
}

func NewLivenessSessionRepository(pool PgxPool) *LivenessSessionRepository {
	return &LivenessSessionRepository{pool: pool}
}

// Create inserts a new session row
func (r *LivenessSessionRepository) Create(ctx context.Context, session *domain.LivenessSession) error {
	query := `
		INSERT INTO liveness_sessions (id, origin, status, expires_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, NOW(), NOW())
		RETURNING created_at, updated_at
	`

	if session.ID == uuid.Nil {
		session.ID = uuid.New()
	}
	if session.Status == "" {
		session.Status = domain.SessionActive
	}

	err := r.pool.QueryRow(ctx, query,
		session.ID,
		session.Origin,
		string(session.Status),
		session.ExpiresAt,
	).Scan(&session.CreatedAt, &session.UpdatedAt)

	if err != nil {
		return fmt.Errorf("create liveness session: %w", err)
	}

	return nil
}

// GetByID retrieves a session by ID
func (r *LivenessSessionRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.LivenessSession, error) {
	query := `
		SELECT id, origin, status, face_detected, challenge_index, progress, complete,
		       frames_processed, resets, expires_at, completed_at, created_at, updated_at
		FROM liveness_sessions
		WHERE id = $1
	`

	var (
		session domain.LivenessSession
		status  string
	)
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&session.ID,
		&session.Origin,
		&status,
		&session.FaceDetected,
		&session.ChallengeIndex,
		&session.Progress,
		&session.Complete,
		&session.FramesProcessed,
		&session.Resets,
		&session.ExpiresAt,
		&session.CompletedAt,
		&session.CreatedAt,
		&session.UpdatedAt,
	)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get liveness session by id: %w", err)
	}

	session.Status = domain.SessionStatus(status)
	return &session, nil
}

// Update writes the latest snapshot and status of a session
func (r *LivenessSessionRepository) Update(ctx context.Context, session *domain.LivenessSession) error {
	query := `
		UPDATE liveness_sessions
		SET status = $2, face_detected = $3, challenge_index = $4, progress = $5, complete = $6,
		    frames_processed = $7, resets = $8, completed_at = $9, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at
	`

	err := r.pool.QueryRow(ctx, query,
		session.ID,
		string(session.Status),
		session.FaceDetected,
		session.ChallengeIndex,
		session.Progress,
		session.Complete,
		session.FramesProcessed,
		session.Resets,
		session.CompletedAt,
	).Scan(&session.UpdatedAt)

	if errors.Is(err, pgx.ErrNoRows) {
		return domain.ErrSessionNotFound
	}
	if err != nil {
		return fmt.Errorf("update liveness session: %w", err)
	}

	return nil
}

// MarkExpired flips active sessions past their deadline to expired.
// A completed run keeps waiting for its close until its deadline is older
// than passCutoff. Returns the number of sessions changed
func (r *LivenessSessionRepository) MarkExpired(ctx context.Context, passCutoff time.Time) (int64, error) {
	query := `
		UPDATE liveness_sessions
		SET status = 'expired', updated_at = NOW()
		WHERE status = 'active'
		  AND expires_at < NOW()
		  AND (complete = false OR expires_at < $1)
	`

	result, err := r.pool.Exec(ctx, query, passCutoff)
	if err != nil {
		return 0, fmt.Errorf("mark expired liveness sessions: %w", err)
	}

	return result.RowsAffected(), nil
}

// DeleteOlderThan removes closed sessions last touched before cutoff.
// Events go with them through ON DELETE CASCADE
func (r *LivenessSessionRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	query := `
		DELETE FROM liveness_sessions
		WHERE status <> 'active' AND updated_at < $1
	`

	result, err := r.pool.Exec(ctx, query, cutoff)
	if err != nil {
		return 0, fmt.Errorf("delete old liveness sessions: %w", err)
	}

	return result.RowsAffected(), nil
}
