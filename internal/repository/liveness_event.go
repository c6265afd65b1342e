package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/saturnino-fabrica-de-software/vivo/internal/domain"
)

type LivenessEventRepository struct {
	pool PgxPool
}

func NewLivenessEventRepository(pool PgxPool) *LivenessEventRepository {
	return &LivenessEventRepository{pool: pool}
}

// Create records a state change of a session
func (r *LivenessEventRepository) Create(ctx context.Context, event *domain.LivenessEvent) error {
	query := `
		INSERT INTO liveness_events (id, session_id, type, challenge, progress, created_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
		RETURNING created_at
	`

	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}

	err := r.pool.QueryRow(ctx, query,
		event.ID,
		event.SessionID,
		string(event.Type),
		event.Challenge,
		event.Progress,
	).Scan(&event.CreatedAt)

	if err != nil {
		return fmt.Errorf("create liveness event: %w", err)
	}

	return nil
}

// ListBySession returns the events of a session, oldest first
func (r *LivenessEventRepository) ListBySession(ctx context.Context, sessionID uuid.UUID) ([]domain.LivenessEvent, error) {
	query := `
		SELECT id, session_id, type, challenge, progress, created_at
		FROM liveness_events
		WHERE session_id = $1
		ORDER BY created_at ASC, id ASC
	`

	rows, err := r.pool.Query(ctx, query, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list liveness events: %w", err)
	}
	defer rows.Close()

	events := make([]domain.LivenessEvent, 0)
	for rows.Next() {
		var (
			event     domain.LivenessEvent
			eventType string
		)
		if err := rows.Scan(
			&event.ID,
			&event.SessionID,
			&eventType,
			&event.Challenge,
			&event.Progress,
			&event.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan liveness event: %w", err)
		}
		event.Type = domain.LivenessEventType(eventType)
		events = append(events, event)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate liveness events: %w", err)
	}

	return events, nil
}
