//go:build integration

package repository

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/saturnino-fabrica-de-software/vivo/internal/database"
	"github.com/saturnino-fabrica-de-software/vivo/internal/domain"
)

func setupIntegrationTest(t *testing.T) (*pgxpool.Pool, func()) {
	t.Helper()

	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "postgres:16-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "test",
			"POSTGRES_PASSWORD": "test",
			"POSTGRES_DB":       "vivo_test",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err)

	host, err := container.Host(ctx)
	require.NoError(t, err)

	port, err := container.MappedPort(ctx, "5432")
	require.NoError(t, err)

	connStr := fmt.Sprintf("postgres://test:test@%s:%s/vivo_test?sslmode=disable", host, port.Port())

	sqlDB, err := database.NewPool(database.DefaultPoolConfig(connStr))
	require.NoError(t, err)

	migrator, err := database.NewMigrator(sqlDB, "vivo_test")
	require.NoError(t, err)
	require.NoError(t, migrator.Up())
	_ = migrator.Close()

	db, err := database.NewPgxPool(ctx, database.DefaultPoolConfig(connStr))
	require.NoError(t, err)

	cleanup := func() {
		db.Close()
		if err := container.Terminate(ctx); err != nil {
			t.Logf("Failed to terminate container: %v", err)
		}
	}

	return db, cleanup
}

func TestLivenessRepositories_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	db, cleanup := setupIntegrationTest(t)
	defer cleanup()

	ctx := context.Background()
	sessions := NewLivenessSessionRepository(db)
	events := NewLivenessEventRepository(db)

	session := &domain.LivenessSession{
		Origin:    "https://app.example.com",
		ExpiresAt: time.Now().Add(10 * time.Minute),
	}
	require.NoError(t, sessions.Create(ctx, session))

	t.Run("round trip", func(t *testing.T) {
		got, err := sessions.GetByID(ctx, session.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.SessionActive, got.Status)
		assert.Equal(t, "https://app.example.com", got.Origin)
		assert.Nil(t, got.CompletedAt)
	})

	t.Run("update to passed", func(t *testing.T) {
		completedAt := time.Now()
		session.Status = domain.SessionPassed
		session.FaceDetected = true
		session.ChallengeIndex = 5
		session.Progress = 100
		session.Complete = true
		session.FramesProcessed = 31
		session.CompletedAt = &completedAt
		require.NoError(t, sessions.Update(ctx, session))

		got, err := sessions.GetByID(ctx, session.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.SessionPassed, got.Status)
		assert.Equal(t, 100.0, got.Progress)
		require.NotNil(t, got.CompletedAt)
	})

	t.Run("events", func(t *testing.T) {
		for _, typ := range []domain.LivenessEventType{domain.EventFaceDetected, domain.EventAdvanced, domain.EventCompleted} {
			require.NoError(t, events.Create(ctx, &domain.LivenessEvent{SessionID: session.ID, Type: typ}))
		}

		got, err := events.ListBySession(ctx, session.ID)
		require.NoError(t, err)
		require.Len(t, got, 3)
		assert.Equal(t, domain.EventFaceDetected, got[0].Type)
	})

	t.Run("mark expired", func(t *testing.T) {
		stale := &domain.LivenessSession{ExpiresAt: time.Now().Add(-time.Minute)}
		require.NoError(t, sessions.Create(ctx, stale))

		banked := &domain.LivenessSession{ExpiresAt: time.Now().Add(-time.Minute)}
		require.NoError(t, sessions.Create(ctx, banked))
		banked.Complete = true
		banked.Progress = 100
		banked.ChallengeIndex = 5
		require.NoError(t, sessions.Update(ctx, banked))

		n, err := sessions.MarkExpired(ctx, time.Now().Add(-time.Hour))
		require.NoError(t, err)
		assert.Equal(t, int64(1), n)

		got, err := sessions.GetByID(ctx, stale.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.SessionExpired, got.Status)

		got, err = sessions.GetByID(ctx, banked.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.SessionActive, got.Status, "a completed run stays closable")
	})

	t.Run("delete older than", func(t *testing.T) {
		n, err := sessions.DeleteOlderThan(ctx, time.Now().Add(time.Minute))
		require.NoError(t, err)
		assert.Equal(t, int64(2), n)

		_, err = sessions.GetByID(ctx, session.ID)
		assert.ErrorIs(t, err, domain.ErrSessionNotFound)

		got, err := events.ListBySession(ctx, session.ID)
		require.NoError(t, err)
		assert.Empty(t, got)
	})

	t.Run("unknown id", func(t *testing.T) {
		_, err := sessions.GetByID(ctx, uuid.New())
		assert.ErrorIs(t, err, domain.ErrSessionNotFound)
	})
}
