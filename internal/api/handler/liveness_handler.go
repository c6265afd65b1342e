package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/saturnino-fabrica-de-software/vivo/internal/domain"
	"github.com/saturnino-fabrica-de-software/vivo/internal/liveness"
	"github.com/saturnino-fabrica-de-software/vivo/internal/service"
)

const (
	maxImageSize = 10 * 1024 * 1024 // 10MB

	// maxFacesPerFrame bounds the faces array of a posted frame. Anything
	// above one already resets the session, the cap only limits the body.
	maxFacesPerFrame = 16
)

var validImageTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/webp": true,
}

// LivenessService is the part of service.LivenessService the handler needs.
type LivenessService interface {
	Create(ctx context.Context, origin string) (*domain.LivenessSession, error)
	Get(ctx context.Context, id uuid.UUID) (*service.SessionSnapshot, error)
	SubmitObservations(ctx context.Context, id uuid.UUID, faces []liveness.FaceObservation) (*service.SessionSnapshot, error)
	SubmitImage(ctx context.Context, id uuid.UUID, image []byte) (*service.SessionSnapshot, error)
	Close(ctx context.Context, id uuid.UUID) (*domain.LivenessSession, error)
	ListEvents(ctx context.Context, id uuid.UUID) ([]domain.LivenessEvent, error)
}

// LivenessHandler serves the /v1/liveness routes
type LivenessHandler struct {
	service  LivenessService
	sequence []liveness.ChallengeID
	logger   *slog.Logger
}

func NewLivenessHandler(service LivenessService, catalog *liveness.Catalog, logger *slog.Logger) *LivenessHandler {
	return &LivenessHandler{
		service:  service,
		sequence: catalog.Sequence(),
		logger:   logger,
	}
}

// CreateSessionRequest body for session creation. Origin is optional.
type CreateSessionRequest struct {
	Origin string `json:"origin"`
}

// CreateSessionResponse response for session creation
type CreateSessionResponse struct {
	SessionID  string                 `json:"session_id"`
	ExpiresAt  string                 `json:"expires_at"`
	Challenges []liveness.ChallengeID `json:"challenges"`
}

// FrameRequest is one processed frame. Faces is required; an empty list
// means no face was found.
type FrameRequest struct {
	Faces *[]liveness.FaceObservation `json:"faces"`
}

// CloseSessionResponse response for session close
type CloseSessionResponse struct {
	SessionID   string               `json:"session_id"`
	Status      domain.SessionStatus `json:"status"`
	Progress    float64              `json:"progress"`
	CompletedAt string               `json:"completed_at,omitempty"`
}

// EventResponse one recorded state change
type EventResponse struct {
	ID        string                   `json:"id"`
	Type      domain.LivenessEventType `json:"type"`
	Challenge string                   `json:"challenge,omitempty"`
	Progress  float64                  `json:"progress"`
	CreatedAt string                   `json:"created_at"`
}

// EventsResponse wraps the event list of a session
type EventsResponse struct {
	Events []EventResponse `json:"events"`
}

// CreateSession POST /v1/liveness/sessions
func (h *LivenessHandler) CreateSession(c *fiber.Ctx) error {
	var req CreateSessionRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return domain.ErrValidationFailed.WithError(fmt.Errorf("invalid request body: %w", err))
		}
	}

	session, err := h.service.Create(c.Context(), req.Origin)
	if err != nil {
		return err
	}

	h.logger.Debug("liveness session created",
		"session_id", session.ID,
		"origin", session.Origin,
	)

	return c.Status(fiber.StatusCreated).JSON(CreateSessionResponse{
		SessionID:  session.ID.String(),
		ExpiresAt:  session.ExpiresAt.Format(time.RFC3339),
		Challenges: h.sequence,
	})
}

// GetSession GET /v1/liveness/sessions/:id
func (h *LivenessHandler) GetSession(c *fiber.Ctx) error {
	id, err := parseSessionID(c)
	if err != nil {
		return err
	}

	snap, err := h.service.Get(c.Context(), id)
	if err != nil {
		return err
	}

	return c.JSON(snap)
}

// SubmitFrame POST /v1/liveness/sessions/:id/frames
func (h *LivenessHandler) SubmitFrame(c *fiber.Ctx) error {
	id, err := parseSessionID(c)
	if err != nil {
		return err
	}

	var req FrameRequest
	if err := json.Unmarshal(c.Body(), &req); err != nil {
		return domain.ErrInvalidFrame.WithError(err)
	}
	if req.Faces == nil {
		return domain.ErrInvalidFrame.WithError(errors.New("faces is required"))
	}
	if len(*req.Faces) > maxFacesPerFrame {
		return domain.ErrInvalidFrame.WithError(fmt.Errorf("at most %d faces per frame", maxFacesPerFrame))
	}

	snap, err := h.service.SubmitObservations(c.Context(), id, *req.Faces)
	if err != nil {
		return err
	}

	return c.JSON(snap)
}

// SubmitImage POST /v1/liveness/sessions/:id/image
func (h *LivenessHandler) SubmitImage(c *fiber.Ctx) error {
	id, err := parseSessionID(c)
	if err != nil {
		return err
	}

	imageBytes, err := extractAndValidateImage(c)
	if err != nil {
		return err
	}

	snap, err := h.service.SubmitImage(c.Context(), id, imageBytes)
	if err != nil {
		return err
	}

	return c.JSON(snap)
}

// CloseSession POST /v1/liveness/sessions/:id/close
func (h *LivenessHandler) CloseSession(c *fiber.Ctx) error {
	id, err := parseSessionID(c)
	if err != nil {
		return err
	}

	session, err := h.service.Close(c.Context(), id)
	if err != nil {
		return err
	}

	resp := CloseSessionResponse{
		SessionID: session.ID.String(),
		Status:    session.Status,
		Progress:  session.Progress,
	}
	if session.CompletedAt != nil {
		resp.CompletedAt = session.CompletedAt.Format(time.RFC3339)
	}

	return c.JSON(resp)
}

// ListEvents GET /v1/liveness/sessions/:id/events
func (h *LivenessHandler) ListEvents(c *fiber.Ctx) error {
	id, err := parseSessionID(c)
	if err != nil {
		return err
	}

	events, err := h.service.ListEvents(c.Context(), id)
	if err != nil {
		return err
	}

	resp := EventsResponse{Events: make([]EventResponse, 0, len(events))}
	for _, e := range events {
		resp.Events = append(resp.Events, EventResponse{
			ID:        e.ID.String(),
			Type:      e.Type,
			Challenge: e.Challenge,
			Progress:  e.Progress,
			CreatedAt: e.CreatedAt.Format(time.RFC3339),
		})
	}

	return c.JSON(resp)
}

func parseSessionID(c *fiber.Ctx) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return uuid.Nil, domain.ErrBadRequest.WithError(fmt.Errorf("invalid session id: %w", err))
	}
	return id, nil
}

// extractAndValidateImage extracts and validates the image from the form
func extractAndValidateImage(c *fiber.Ctx) ([]byte, error) {
	// 1. Extract file
	file, err := c.FormFile("image")
	if err != nil {
		return nil, domain.ErrValidationFailed.WithError(err)
	}

	// 2. Validate size
	if file.Size > maxImageSize || file.Size == 0 {
		return nil, domain.ErrInvalidImage.WithError(fmt.Errorf("image size %d out of range", file.Size))
	}

	// 3. Validate Content-Type
	contentType := file.Header.Get("Content-Type")
	if !validImageTypes[contentType] {
		return nil, domain.ErrInvalidImage.WithError(fmt.Errorf("unsupported content type %q", contentType))
	}

	// 4. Read image bytes
	f, err := file.Open()
	if err != nil {
		return nil, domain.ErrInvalidImage.WithError(err)
	}
	defer func() {
		_ = f.Close()
	}()

	imageBytes, err := io.ReadAll(f)
	if err != nil {
		return nil, domain.ErrInvalidImage.WithError(err)
	}

	return imageBytes, nil
}
