package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saturnino-fabrica-de-software/vivo/internal/domain"
)

func TestLivenessEventRepository_Create(t *testing.T) {
	sessionID := uuid.New()
	now := time.Now()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery(`INSERT INTO liveness_events`).
		WithArgs(pgxmock.AnyArg(), sessionID, "advanced", "BLINK", 100.0/3).
		WillReturnRows(pgxmock.NewRows([]string{"created_at"}).AddRow(now))

	event := &domain.LivenessEvent{
		SessionID: sessionID,
		Type:      domain.EventAdvanced,
		Challenge: "BLINK",
		Progress:  100.0 / 3,
	}

	repo := NewLivenessEventRepository(mock)
	require.NoError(t, repo.Create(context.Background(), event))
	assert.NotEqual(t, uuid.Nil, event.ID)
	assert.Equal(t, now, event.CreatedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLivenessEventRepository_ListBySession(t *testing.T) {
	sessionID := uuid.New()
	now := time.Now()

	tests := []struct {
		name      string
		mockSetup func(mock pgxmock.PgxPoolIface)
		wantLen   int
		wantErr   string
	}{
		{
			name: "returns events in order",
			mockSetup: func(mock pgxmock.PgxPoolIface) {
				rows := pgxmock.NewRows([]string{"id", "session_id", "type", "challenge", "progress", "created_at"}).
					AddRow(uuid.New(), sessionID, "face_detected", "", 100.0/6, now).
					AddRow(uuid.New(), sessionID, "advanced", "BLINK", 100.0/3, now.Add(time.Second))
				mock.ExpectQuery(`SELECT id, session_id, type, challenge, progress, created_at FROM liveness_events`).
					WithArgs(sessionID).
					WillReturnRows(rows)
			},
			wantLen: 2,
		},
		{
			name: "no events",
			mockSetup: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectQuery(`FROM liveness_events`).
					WithArgs(sessionID).
					WillReturnRows(pgxmock.NewRows([]string{"id", "session_id", "type", "challenge", "progress", "created_at"}))
			},
			wantLen: 0,
		},
		{
			name: "query error",
			mockSetup: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectQuery(`FROM liveness_events`).
					WithArgs(sessionID).
					WillReturnError(errors.New("boom"))
			},
			wantErr: "list liveness events",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock, err := pgxmock.NewPool()
			require.NoError(t, err)
			defer mock.Close()

			tt.mockSetup(mock)

			repo := NewLivenessEventRepository(mock)
			got, err := repo.ListBySession(context.Background(), sessionID)

			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}

			require.NoError(t, err)
			assert.Len(t, got, tt.wantLen)
			if tt.wantLen == 2 {
				assert.Equal(t, domain.EventFaceDetected, got[0].Type)
				assert.Equal(t, domain.EventAdvanced, got[1].Type)
				assert.Equal(t, "BLINK", got[1].Challenge)
			}
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}
