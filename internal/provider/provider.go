package provider

import (
	"context"

	"github.com/saturnino-fabrica-de-software/vivo/internal/liveness"
)

// FaceDetector turns one camera frame into the faces found in it.
// An image with no face is not an error: it yields an empty slice.
type FaceDetector interface {
	DetectFaces(ctx context.Context, image []byte) ([]liveness.FaceObservation, error)
}
