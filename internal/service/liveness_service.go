package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/saturnino-fabrica-de-software/vivo/internal/domain"
	"github.com/saturnino-fabrica-de-software/vivo/internal/liveness"
	"github.com/saturnino-fabrica-de-software/vivo/internal/provider"
	"github.com/saturnino-fabrica-de-software/vivo/internal/webhook"
	"github.com/saturnino-fabrica-de-software/vivo/internal/ws"
)

const (
	defaultSessionTTL = 10 * time.Minute
	defaultRetention  = 24 * time.Hour
)

type LivenessSessionRepositoryInterface interface {
	Create(ctx context.Context, session *domain.LivenessSession) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.LivenessSession, error)
	Update(ctx context.Context, session *domain.LivenessSession) error
	MarkExpired(ctx context.Context, passCutoff time.Time) (int64, error)
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

type LivenessEventRepositoryInterface interface {
	Create(ctx context.Context, event *domain.LivenessEvent) error
	ListBySession(ctx context.Context, sessionID uuid.UUID) ([]domain.LivenessEvent, error)
}

// Broadcaster pushes session events to live watchers.
type Broadcaster interface {
	Broadcast(sessionID uuid.UUID, eventType ws.EventType, data interface{})
}

// Notifier queues outbound webhook events.
type Notifier interface {
	Enqueue(event webhook.EventPayload) bool
}

// LivenessConfig tunes session lifetime and frame sampling.
type LivenessConfig struct {
	SessionTTL    time.Duration
	FrameInterval time.Duration // frames closer together than this are skipped; 0 keeps all
	Retention     time.Duration // closed sessions older than this are deleted by cleanup
}

// SessionSnapshot is what clients see after every call.
type SessionSnapshot struct {
	SessionID uuid.UUID            `json:"session_id"`
	Status    domain.SessionStatus `json:"status"`
	liveness.Snapshot
	FramesProcessed int       `json:"frames_processed"`
	Resets          int       `json:"resets"`
	Skipped         bool      `json:"skipped,omitempty"`
	ExpiresAt       time.Time `json:"expires_at"`
}

// liveSession is the in-memory half of a session. mu serializes frames.
type liveSession struct {
	mu        sync.Mutex
	record    *domain.LivenessSession
	machine   *liveness.Session
	lastFrame time.Time
}

type LivenessService struct {
	sessionRepo LivenessSessionRepositoryInterface
	eventRepo   LivenessEventRepositoryInterface
	detector    provider.FaceDetector
	engine      *liveness.Engine
	broadcaster Broadcaster
	notifier    Notifier
	logger      *slog.Logger
	config      LivenessConfig
	now         func() time.Time

	mu   sync.Mutex
	live map[uuid.UUID]*liveSession
}

// NewLivenessService wires the session store, the engine and the optional
// detector, broadcaster and notifier. Any of the last three may be nil.
func NewLivenessService(
	sessionRepo LivenessSessionRepositoryInterface,
	eventRepo LivenessEventRepositoryInterface,
	engine *liveness.Engine,
	detector provider.FaceDetector,
	broadcaster Broadcaster,
	notifier Notifier,
	logger *slog.Logger,
	config LivenessConfig,
) *LivenessService {
	if config.SessionTTL <= 0 {
		config.SessionTTL = defaultSessionTTL
	}
	if config.Retention <= 0 {
		config.Retention = defaultRetention
	}

	return &LivenessService{
		sessionRepo: sessionRepo,
		eventRepo:   eventRepo,
		detector:    detector,
		engine:      engine,
		broadcaster: broadcaster,
		notifier:    notifier,
		logger:      logger.With("component", "liveness_service"),
		config:      config,
		now:         time.Now,
		live:        make(map[uuid.UUID]*liveSession),
	}
}

// Create opens a new liveness session. origin is optional; when given it must
// be an http(s) URL and is stored normalized to scheme://host.
func (s *LivenessService) Create(ctx context.Context, origin string) (*domain.LivenessSession, error) {
	if origin != "" {
		parsed, err := parseOrigin(origin)
		if err != nil {
			return nil, domain.ErrInvalidOrigin.WithError(err)
		}
		origin = parsed
	}

	record := &domain.LivenessSession{
		Origin:    origin,
		Status:    domain.SessionActive,
		ExpiresAt: s.now().Add(s.config.SessionTTL),
	}

	if err := s.sessionRepo.Create(ctx, record); err != nil {
		return nil, fmt.Errorf("create liveness session: %w", err)
	}

	s.mu.Lock()
	s.live[record.ID] = &liveSession{
		record:  record,
		machine: liveness.NewSession(s.engine),
	}
	s.mu.Unlock()

	s.logger.Debug("liveness session created", "session_id", record.ID, "origin", origin)

	result := *record
	return &result, nil
}

// SubmitObservations feeds one frame of face observations to a session.
func (s *LivenessService) SubmitObservations(ctx context.Context, id uuid.UUID, faces []liveness.FaceObservation) (*SessionSnapshot, error) {
	return s.submit(ctx, id, func(context.Context) ([]liveness.FaceObservation, error) {
		return faces, nil
	})
}

// SubmitImage runs the face detector on image and feeds the result to a session.
// Frames skipped by sampling never reach the detector.
func (s *LivenessService) SubmitImage(ctx context.Context, id uuid.UUID, image []byte) (*SessionSnapshot, error) {
	if s.detector == nil {
		return nil, domain.ErrDetectorUnavailable
	}

	return s.submit(ctx, id, func(ctx context.Context) ([]liveness.FaceObservation, error) {
		faces, err := s.detector.DetectFaces(ctx, image)
		if err != nil {
			if errors.Is(err, domain.ErrInvalidImage) {
				return nil, domain.ErrInvalidImage.WithError(err)
			}
			return nil, domain.ErrDetectorUnavailable.WithError(err)
		}
		return faces, nil
	})
}

func (s *LivenessService) submit(
	ctx context.Context,
	id uuid.UUID,
	source func(context.Context) ([]liveness.FaceObservation, error),
) (*SessionSnapshot, error) {
	ls, err := s.lookup(ctx, id)
	if err != nil {
		return nil, err
	}

	ls.mu.Lock()
	defer ls.mu.Unlock()

	if err := s.checkOpen(ctx, ls); err != nil {
		return nil, err
	}

	// a completed run past its deadline only waits to be closed
	if ls.record.Complete && s.pastDeadline(ls.record) {
		return s.snapshotLocked(ls), nil
	}

	now := s.now()
	if s.config.FrameInterval > 0 && !ls.lastFrame.IsZero() && now.Sub(ls.lastFrame) < s.config.FrameInterval {
		snap := s.snapshotLocked(ls)
		snap.Skipped = true
		return snap, nil
	}

	faces, err := source(ctx)
	if err != nil {
		return nil, err
	}

	// The frame runs on copies; nothing is committed until it is stored.
	machine := ls.machine.Clone()
	prev := machine.State()
	state, change := machine.Feed(faces)

	record := *ls.record
	record.FaceDetected = state.FaceDetected
	record.ChallengeIndex = state.ChallengeIndex
	record.Progress = state.Progress
	record.Complete = state.Complete
	record.FramesProcessed = machine.Frames()
	record.Resets = machine.Resets()
	switch {
	case change == liveness.ChangeCompleted:
		completedAt := now
		record.CompletedAt = &completedAt
	case !state.Complete:
		record.CompletedAt = nil
	}

	if change != liveness.ChangeNone {
		if err := s.sessionRepo.Update(ctx, &record); err != nil {
			return nil, fmt.Errorf("session %s: persist snapshot: %w", id, err)
		}
	}

	ls.machine = machine
	*ls.record = record
	ls.lastFrame = now

	snap := s.snapshotLocked(ls)
	if change == liveness.ChangeNone {
		return snap, nil
	}

	if change != liveness.ChangeFaceDetected && liveness.FirstDetection(prev, state) {
		s.recordEvent(ctx, id, domain.EventFaceDetected, s.challengeFor(prev, liveness.ChangeFaceDetected), s.engine.DetectionProgress())
	}
	s.recordEvent(ctx, id, eventTypeFor(change), s.challengeFor(prev, change), state.Progress)
	s.broadcast(id, change, snap)

	s.logger.Debug("liveness state changed",
		"session_id", id,
		"change", change,
		"challenge_index", state.ChallengeIndex,
		"progress", state.Progress,
	)

	return snap, nil
}

// Get returns the current snapshot of a session, from memory when it is live
// and from the stored row otherwise.
func (s *LivenessService) Get(ctx context.Context, id uuid.UUID) (*SessionSnapshot, error) {
	s.mu.Lock()
	ls, ok := s.live[id]
	s.mu.Unlock()

	if ok {
		ls.mu.Lock()
		defer ls.mu.Unlock()
		snap := s.snapshotLocked(ls)
		s.reportExpiry(snap, ls.record)
		return snap, nil
	}

	record, err := s.sessionRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	snap := s.snapshotFromRecord(record)
	s.reportExpiry(snap, record)
	return snap, nil
}

// reportExpiry shows an unfinished session past its deadline as expired
// before cleanup has stored that status.
func (s *LivenessService) reportExpiry(snap *SessionSnapshot, record *domain.LivenessSession) {
	if record.Status == domain.SessionActive && !record.Complete && s.pastDeadline(record) {
		snap.Status = domain.SessionExpired
	}
}

func (s *LivenessService) pastDeadline(record *domain.LivenessSession) bool {
	return s.now().After(record.ExpiresAt)
}

// Close ends a session. A complete session is banked as passed, anything
// else as abandoned. Closed sessions reject further frames.
func (s *LivenessService) Close(ctx context.Context, id uuid.UUID) (*domain.LivenessSession, error) {
	ls, err := s.lookup(ctx, id)
	if err != nil {
		return nil, err
	}

	ls.mu.Lock()
	defer ls.mu.Unlock()

	if err := s.checkOpen(ctx, ls); err != nil {
		return nil, err
	}

	record := *ls.record
	if record.Complete {
		record.Status = domain.SessionPassed
	} else {
		record.Status = domain.SessionAbandoned
	}

	if err := s.sessionRepo.Update(ctx, &record); err != nil {
		return nil, fmt.Errorf("session %s: close: %w", id, err)
	}
	*ls.record = record
	s.evict(id)

	s.recordEvent(ctx, id, domain.EventClosed, "", record.Progress)

	if record.Status == domain.SessionPassed && s.notifier != nil {
		queued := s.notifier.Enqueue(webhook.EventPayload{
			Type: webhook.EventSessionPassed,
			Data: webhook.SessionResult{
				SessionID:       record.ID,
				Origin:          record.Origin,
				Status:          string(record.Status),
				Progress:        record.Progress,
				FramesProcessed: record.FramesProcessed,
				Resets:          record.Resets,
				CompletedAt:     record.CompletedAt,
			},
			Timestamp: s.now(),
		})
		if !queued {
			s.logger.Warn("passed session webhook dropped", "session_id", id)
		}
	}

	s.logger.Info("liveness session closed", "session_id", id, "status", record.Status)

	return &record, nil
}

// ListEvents returns the recorded state changes of a session.
func (s *LivenessService) ListEvents(ctx context.Context, id uuid.UUID) ([]domain.LivenessEvent, error) {
	if _, err := s.sessionRepo.GetByID(ctx, id); err != nil {
		return nil, err
	}

	events, err := s.eventRepo.ListBySession(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("session %s: list events: %w", id, err)
	}
	return events, nil
}

// CleanupExpired evicts live sessions past their deadline, marks stale rows
// as expired and deletes closed rows older than the retention window.
// Completed runs are only evicted from memory: their stored row stays active
// so Close can still pass them, until the deadline is older than the
// retention window. Returns the number of sessions expired.
func (s *LivenessService) CleanupExpired(ctx context.Context) (int64, error) {
	s.mu.Lock()
	candidates := make([]*liveSession, 0, len(s.live))
	for _, ls := range s.live {
		candidates = append(candidates, ls)
	}
	s.mu.Unlock()

	var expired int64
	for _, ls := range candidates {
		ls.mu.Lock()
		switch {
		case ls.record.IsClosed() || !s.pastDeadline(ls.record):
		case ls.record.Complete:
			s.evict(ls.record.ID)
		default:
			if err := s.expireLocked(ctx, ls); err != nil {
				s.logger.Warn("failed to expire session", "session_id", ls.record.ID, "error", err)
			} else {
				expired++
			}
		}
		ls.mu.Unlock()
	}

	cutoff := s.now().Add(-s.config.Retention)

	marked, err := s.sessionRepo.MarkExpired(ctx, cutoff)
	if err != nil {
		return expired, fmt.Errorf("cleanup expired sessions: %w", err)
	}

	deleted, err := s.sessionRepo.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		return expired + marked, fmt.Errorf("cleanup old sessions: %w", err)
	}

	if expired+marked+deleted > 0 {
		s.logger.Info("liveness cleanup",
			"expired_live", expired,
			"expired_stored", marked,
			"deleted", deleted,
		)
	}

	return expired + marked, nil
}

// ActiveSessions is the number of sessions held in memory.
func (s *LivenessService) ActiveSessions() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.live)
}

// lookup finds the live session for id, resuming it from storage when the
// process restarted since it was created.
func (s *LivenessService) lookup(ctx context.Context, id uuid.UUID) (*liveSession, error) {
	s.mu.Lock()
	ls, ok := s.live[id]
	s.mu.Unlock()
	if ok {
		return ls, nil
	}

	record, err := s.sessionRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	switch record.Status {
	case domain.SessionActive:
	case domain.SessionExpired:
		return nil, domain.ErrSessionExpired
	default:
		return nil, domain.ErrSessionClosed
	}

	state := liveness.State{
		FaceDetected:   record.FaceDetected,
		ChallengeIndex: record.ChallengeIndex,
		Progress:       record.Progress,
		Complete:       record.Complete,
	}
	resumed := &liveSession{
		record:  record,
		machine: liveness.ResumeSession(s.engine, state, record.FramesProcessed, record.Resets),
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.live[id]; ok {
		return existing, nil
	}
	s.live[id] = resumed

	s.logger.Debug("liveness session resumed from storage", "session_id", id)

	return resumed, nil
}

// checkOpen must be called with ls.mu held. A completed run is never expired
// here.
func (s *LivenessService) checkOpen(ctx context.Context, ls *liveSession) error {
	if ls.record.IsClosed() {
		return domain.ErrSessionClosed
	}
	if !ls.record.Complete && s.pastDeadline(ls.record) {
		if err := s.expireLocked(ctx, ls); err != nil {
			s.logger.Warn("failed to expire session", "session_id", ls.record.ID, "error", err)
		}
		return domain.ErrSessionExpired
	}
	return nil
}

func (s *LivenessService) expireLocked(ctx context.Context, ls *liveSession) error {
	ls.record.Status = domain.SessionExpired
	s.evict(ls.record.ID)

	if err := s.sessionRepo.Update(ctx, ls.record); err != nil {
		return fmt.Errorf("session %s: expire: %w", ls.record.ID, err)
	}
	return nil
}

func (s *LivenessService) evict(id uuid.UUID) {
	s.mu.Lock()
	delete(s.live, id)
	s.mu.Unlock()
}

func (s *LivenessService) snapshotLocked(ls *liveSession) *SessionSnapshot {
	return &SessionSnapshot{
		SessionID:       ls.record.ID,
		Status:          ls.record.Status,
		Snapshot:        ls.machine.Snapshot(),
		FramesProcessed: ls.machine.Frames(),
		Resets:          ls.machine.Resets(),
		ExpiresAt:       ls.record.ExpiresAt,
	}
}

func (s *LivenessService) snapshotFromRecord(record *domain.LivenessSession) *SessionSnapshot {
	state := liveness.State{
		FaceDetected:   record.FaceDetected,
		ChallengeIndex: record.ChallengeIndex,
		Progress:       record.Progress,
		Complete:       record.Complete,
	}
	return &SessionSnapshot{
		SessionID:       record.ID,
		Status:          record.Status,
		Snapshot:        s.engine.Catalog().Snapshot(state),
		FramesProcessed: record.FramesProcessed,
		Resets:          record.Resets,
		ExpiresAt:       record.ExpiresAt,
	}
}

// challengeFor names the challenge an event is about: the one just passed on
// advance or completion, the one that was active on reset.
func (s *LivenessService) challengeFor(prev liveness.State, change liveness.Change) string {
	switch change {
	case liveness.ChangeAdvanced, liveness.ChangeCompleted, liveness.ChangeReset:
		if ch, ok := s.engine.Catalog().At(prev.ChallengeIndex); ok {
			return string(ch.ID)
		}
	case liveness.ChangeFaceDetected:
		if ch, ok := s.engine.Catalog().At(0); ok {
			return string(ch.ID)
		}
	}
	return ""
}

func (s *LivenessService) recordEvent(ctx context.Context, id uuid.UUID, eventType domain.LivenessEventType, challenge string, progress float64) {
	if s.eventRepo == nil {
		return
	}

	event := &domain.LivenessEvent{
		SessionID: id,
		Type:      eventType,
		Challenge: challenge,
		Progress:  progress,
	}
	if err := s.eventRepo.Create(ctx, event); err != nil {
		s.logger.Warn("failed to record liveness event",
			"session_id", id,
			"type", eventType,
			"error", err,
		)
	}
}

func (s *LivenessService) broadcast(id uuid.UUID, change liveness.Change, snap *SessionSnapshot) {
	if s.broadcaster == nil {
		return
	}

	switch change {
	case liveness.ChangeReset:
		s.broadcaster.Broadcast(id, ws.EventReset, snap)
	case liveness.ChangeCompleted:
		s.broadcaster.Broadcast(id, ws.EventCompleted, snap)
	default:
		s.broadcaster.Broadcast(id, ws.EventProgress, snap)
	}
}

func eventTypeFor(change liveness.Change) domain.LivenessEventType {
	switch change {
	case liveness.ChangeFaceDetected:
		return domain.EventFaceDetected
	case liveness.ChangeAdvanced:
		return domain.EventAdvanced
	case liveness.ChangeCompleted:
		return domain.EventCompleted
	default:
		return domain.EventReset
	}
}

// parseOrigin parses and normalizes an origin URL
// Returns the origin in the format "https://example.com"
func parseOrigin(origin string) (string, error) {
	u, err := url.Parse(origin)
	if err != nil {
		return "", fmt.Errorf("invalid URL format: %w", err)
	}

	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("scheme must be http or https")
	}

	if u.Host == "" {
		return "", fmt.Errorf("host is required")
	}

	return fmt.Sprintf("%s://%s", u.Scheme, u.Host), nil
}
