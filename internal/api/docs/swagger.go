package docs

import (
	"github.com/go-swagno/swagno"
	"github.com/go-swagno/swagno/components/endpoint"
	"github.com/go-swagno/swagno/components/http/response"
	"github.com/go-swagno/swagno/components/mime"
	"github.com/go-swagno/swagno/components/parameter"
)

// CreateSessionResponse represents the response for a new liveness session
type CreateSessionResponse struct {
	SessionID  string   `json:"session_id" example:"550e8400-e29b-41d4-a716-446655440000"`
	ExpiresAt  string   `json:"expires_at" example:"2024-01-01T00:10:00Z"`
	Challenges []string `json:"challenges" example:"BLINK,TURN_HEAD_LEFT,TURN_HEAD_RIGHT,NOD,SMILE"`
}

// SnapshotResponse represents the state of a liveness session after a frame
type SnapshotResponse struct {
	SessionID       string  `json:"session_id" example:"550e8400-e29b-41d4-a716-446655440000"`
	Status          string  `json:"status" example:"active"`
	FaceDetected    bool    `json:"face_detected" example:"true"`
	ChallengeIndex  int     `json:"challenge_index" example:"1"`
	Progress        float64 `json:"progress" example:"33.33"`
	Complete        bool    `json:"complete" example:"false"`
	Challenge       string  `json:"challenge,omitempty" example:"TURN_HEAD_LEFT"`
	Instruction     string  `json:"instruction,omitempty" example:"Turn head left"`
	FramesProcessed int     `json:"frames_processed" example:"12"`
	Resets          int     `json:"resets" example:"0"`
	Skipped         bool    `json:"skipped,omitempty" example:"false"`
	ExpiresAt       string  `json:"expires_at" example:"2024-01-01T00:10:00Z"`
}

// CloseSessionResponse represents the final status of a closed session
type CloseSessionResponse struct {
	SessionID   string  `json:"session_id" example:"550e8400-e29b-41d4-a716-446655440000"`
	Status      string  `json:"status" example:"passed"`
	Progress    float64 `json:"progress" example:"100"`
	CompletedAt string  `json:"completed_at,omitempty" example:"2024-01-01T00:01:12Z"`
}

// EventResponse represents one recorded state change
type EventResponse struct {
	ID        string  `json:"id" example:"9b2f0c1e-4c1d-4d0e-8e59-2a3c5b7d9f10"`
	Type      string  `json:"type" example:"advanced"`
	Challenge string  `json:"challenge,omitempty" example:"BLINK"`
	Progress  float64 `json:"progress" example:"33.33"`
	CreatedAt string  `json:"created_at" example:"2024-01-01T00:00:05Z"`
}

// EventsResponse wraps the event list of a session
type EventsResponse struct {
	Events []EventResponse `json:"events"`
}

// ErrorResponse represents a standard error response
type ErrorResponse struct {
	Code    string `json:"code" example:"VALIDATION_FAILED"`
	Message string `json:"message" example:"Request validation failed"`
}

// HealthResponse represents the health probe body
type HealthResponse struct {
	Status  string `json:"status" example:"ok"`
	Version string `json:"version,omitempty" example:"0.1.0"`
}

var sessionIDParam = parameter.StrParam("id", parameter.Path, parameter.WithDescription("Liveness session UUID"))

func NewSwagger() *swagno.Swagger {
	sw := swagno.New(swagno.Config{
		Title:       "Vivo Liveness API",
		Version:     "v1.0.0",
		Description: "Active liveness detection: walks a user through blink, head turns, nod and smile and certifies completion",
		Host:        "localhost:3000",
		Path:        "/v1",
	})

	endpoints := []*endpoint.EndPoint{
		// POST /v1/liveness/sessions - Create Session
		endpoint.New(
			endpoint.POST,
			"/liveness/sessions",
			endpoint.WithTags("Liveness"),
			endpoint.WithSummary("Create a liveness session"),
			endpoint.WithDescription("Opens a new challenge run. Body: {\"origin\": \"https://app.example.com\"} (origin optional)."),
			endpoint.WithConsume([]mime.MIME{mime.JSON}),
			endpoint.WithProduce([]mime.MIME{mime.JSON}),
			endpoint.WithSuccessfulReturns([]response.Response{
				response.New(CreateSessionResponse{}, "201", "Session created"),
			}),
			endpoint.WithErrors([]response.Response{
				response.New(ErrorResponse{Code: "VALIDATION_FAILED", Message: "Request validation failed"}, "422", "Unprocessable Entity"),
				response.New(ErrorResponse{Code: "INVALID_ORIGIN", Message: "Invalid origin format"}, "422", "Unprocessable Entity"),
				response.New(ErrorResponse{Code: "INTERNAL_ERROR", Message: "An unexpected error occurred"}, "500", "Internal Server Error"),
			}),
		),

		// GET /v1/liveness/sessions/:id - Get Session
		endpoint.New(
			endpoint.GET,
			"/liveness/sessions/{id}",
			endpoint.WithTags("Liveness"),
			endpoint.WithSummary("Get session snapshot"),
			endpoint.WithDescription("Returns the current challenge, instruction and progress of a session"),
			endpoint.WithProduce([]mime.MIME{mime.JSON}),
			endpoint.WithParams(sessionIDParam),
			endpoint.WithSuccessfulReturns([]response.Response{
				response.New(SnapshotResponse{}, "200", "Snapshot retrieved"),
			}),
			endpoint.WithErrors([]response.Response{
				response.New(ErrorResponse{Code: "BAD_REQUEST", Message: "Invalid session id"}, "400", "Bad Request"),
				response.New(ErrorResponse{Code: "LIVENESS_SESSION_NOT_FOUND", Message: "Liveness session not found"}, "404", "Not Found"),
			}),
		),

		// POST /v1/liveness/sessions/:id/frames - Submit Observations
		endpoint.New(
			endpoint.POST,
			"/liveness/sessions/{id}/frames",
			endpoint.WithTags("Liveness"),
			endpoint.WithSummary("Submit one frame of face observations"),
			endpoint.WithDescription("For clients that run face detection on-device. Body: {\"faces\": [{\"left_eye_open_probability\": 0.9, \"right_eye_open_probability\": 0.9, \"yaw_angle\": 0, \"roll_angle\": 0, \"smiling_probability\": 0.1}]}. Any face count other than one restarts the run."),
			endpoint.WithConsume([]mime.MIME{mime.JSON}),
			endpoint.WithProduce([]mime.MIME{mime.JSON}),
			endpoint.WithParams(sessionIDParam),
			endpoint.WithSuccessfulReturns([]response.Response{
				response.New(SnapshotResponse{}, "200", "Frame processed"),
			}),
			endpoint.WithErrors([]response.Response{
				response.New(ErrorResponse{Code: "BAD_REQUEST", Message: "Invalid session id"}, "400", "Bad Request"),
				response.New(ErrorResponse{Code: "LIVENESS_SESSION_NOT_FOUND", Message: "Liveness session not found"}, "404", "Not Found"),
				response.New(ErrorResponse{Code: "LIVENESS_SESSION_CLOSED", Message: "Liveness session is closed and no longer accepts frames"}, "409", "Conflict"),
				response.New(ErrorResponse{Code: "LIVENESS_SESSION_EXPIRED", Message: "Liveness session has expired"}, "410", "Gone"),
				response.New(ErrorResponse{Code: "INVALID_FRAME", Message: "Invalid frame payload"}, "422", "Unprocessable Entity"),
			}),
		),

		// POST /v1/liveness/sessions/:id/image - Submit Image
		endpoint.New(
			endpoint.POST,
			"/liveness/sessions/{id}/image",
			endpoint.WithTags("Liveness"),
			endpoint.WithSummary("Submit one camera frame"),
			endpoint.WithDescription("Runs server-side face detection on the multipart field 'image' and feeds the result to the session"),
			endpoint.WithConsume([]mime.MIME{mime.MIME("multipart/form-data")}),
			endpoint.WithProduce([]mime.MIME{mime.JSON}),
			endpoint.WithParams(sessionIDParam),
			endpoint.WithSuccessfulReturns([]response.Response{
				response.New(SnapshotResponse{}, "200", "Frame processed"),
			}),
			endpoint.WithErrors([]response.Response{
				response.New(ErrorResponse{Code: "VALIDATION_FAILED", Message: "image file is required"}, "422", "Unprocessable Entity"),
				response.New(ErrorResponse{Code: "INVALID_IMAGE", Message: "Invalid image format or corrupted"}, "422", "Unprocessable Entity"),
				response.New(ErrorResponse{Code: "LIVENESS_SESSION_CLOSED", Message: "Liveness session is closed and no longer accepts frames"}, "409", "Conflict"),
				response.New(ErrorResponse{Code: "LIVENESS_SESSION_EXPIRED", Message: "Liveness session has expired"}, "410", "Gone"),
				response.New(ErrorResponse{Code: "DETECTOR_UNAVAILABLE", Message: "Face detector is unavailable"}, "503", "Service Unavailable"),
			}),
		),

		// POST /v1/liveness/sessions/:id/close - Close Session
		endpoint.New(
			endpoint.POST,
			"/liveness/sessions/{id}/close",
			endpoint.WithTags("Liveness"),
			endpoint.WithSummary("Close a session"),
			endpoint.WithDescription("Banks a complete run as passed (and fires the configured webhook) or abandons an incomplete one"),
			endpoint.WithProduce([]mime.MIME{mime.JSON}),
			endpoint.WithParams(sessionIDParam),
			endpoint.WithSuccessfulReturns([]response.Response{
				response.New(CloseSessionResponse{}, "200", "Session closed"),
			}),
			endpoint.WithErrors([]response.Response{
				response.New(ErrorResponse{Code: "LIVENESS_SESSION_NOT_FOUND", Message: "Liveness session not found"}, "404", "Not Found"),
				response.New(ErrorResponse{Code: "LIVENESS_SESSION_CLOSED", Message: "Liveness session is closed and no longer accepts frames"}, "409", "Conflict"),
				response.New(ErrorResponse{Code: "LIVENESS_SESSION_EXPIRED", Message: "Liveness session has expired"}, "410", "Gone"),
			}),
		),

		// GET /v1/liveness/sessions/:id/events - List Events
		endpoint.New(
			endpoint.GET,
			"/liveness/sessions/{id}/events",
			endpoint.WithTags("Liveness"),
			endpoint.WithSummary("List session events"),
			endpoint.WithDescription("Returns the recorded state changes of a session, oldest first"),
			endpoint.WithProduce([]mime.MIME{mime.JSON}),
			endpoint.WithParams(sessionIDParam),
			endpoint.WithSuccessfulReturns([]response.Response{
				response.New(EventsResponse{}, "200", "Events retrieved"),
			}),
			endpoint.WithErrors([]response.Response{
				response.New(ErrorResponse{Code: "LIVENESS_SESSION_NOT_FOUND", Message: "Liveness session not found"}, "404", "Not Found"),
			}),
		),

		// GET /v1/liveness/sessions/:id/ws - Event Stream
		endpoint.New(
			endpoint.GET,
			"/liveness/sessions/{id}/ws",
			endpoint.WithTags("Liveness"),
			endpoint.WithSummary("Stream session events"),
			endpoint.WithDescription("WebSocket upgrade. Emits liveness.progress, liveness.reset and liveness.completed messages carrying the snapshot."),
			endpoint.WithParams(sessionIDParam),
			endpoint.WithErrors([]response.Response{
				response.New(ErrorResponse{Code: "HTTP_ERROR", Message: "Upgrade Required"}, "426", "Upgrade Required"),
			}),
		),
	}

	sw.AddEndpoints(endpoints)

	return sw
}
