package rekognition

import (
	"context"
	"fmt"
	"log/slog"
	"math"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/rekognition"
	"github.com/aws/aws-sdk-go-v2/service/rekognition/types"

	"github.com/saturnino-fabrica-de-software/vivo/internal/liveness"
	"github.com/saturnino-fabrica-de-software/vivo/internal/provider"
)

const (
	// maxImageSize is the maximum image size supported by AWS Rekognition (5MB)
	maxImageSize = 5 * 1024 * 1024
	// minImageSize is the minimum image size for valid processing
	minImageSize = 100
)

// Detector implements provider.FaceDetector using AWS Rekognition DetectFaces.
type Detector struct {
	client *Client
	logger *slog.Logger
}

// Ensure Detector implements provider.FaceDetector interface at compile time
var _ provider.FaceDetector = (*Detector)(nil)

func NewDetector(ctx context.Context, cfg Config, logger *slog.Logger) (*Detector, error) {
	client, err := NewClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create rekognition client: %w", err)
	}

	return &Detector{
		client: client,
		logger: logger.With("component", "rekognition"),
	}, nil
}

// validateImage checks if image data is valid for Rekognition processing
func validateImage(image []byte) error {
	if len(image) == 0 {
		return ErrInvalidImage
	}
	if len(image) < minImageSize {
		return fmt.Errorf("%w: image too small (%d bytes, minimum %d)", ErrInvalidImage, len(image), minImageSize)
	}
	if len(image) > maxImageSize {
		return fmt.Errorf("%w: image too large (%d bytes, maximum %d)", ErrInvalidImage, len(image), maxImageSize)
	}
	return nil
}

// DetectFaces detects faces in an image using AWS Rekognition DetectFaces API
// Returns an empty slice if no faces are detected (not an error)
func (d *Detector) DetectFaces(ctx context.Context, image []byte) ([]liveness.FaceObservation, error) {
	if err := validateImage(image); err != nil {
		return nil, err
	}

	input := &rekognition.DetectFacesInput{
		Image: &types.Image{
			Bytes: image,
		},
		Attributes: []types.Attribute{types.AttributeAll},
	}

	output, err := d.client.rekognition.DetectFaces(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("detect faces: %w", parseAPIError(err))
	}

	faces := make([]liveness.FaceObservation, 0, len(output.FaceDetails))
	for _, detail := range output.FaceDetails {
		if float64(aws.ToFloat32(detail.Confidence)) < float64(d.client.config.MinConfidence) {
			continue
		}
		faces = append(faces, toObservation(detail))
	}

	if d.logger != nil {
		d.logger.DebugContext(ctx, "faces detected",
			slog.Int("faces", len(faces)),
			slog.Int("raw_faces", len(output.FaceDetails)),
		)
	}

	return faces, nil
}

// toObservation maps a FaceDetail onto the engine's geometry.
// Rekognition reports a single EyesOpen verdict for both eyes, so both
// probabilities carry the same value. Missing attributes become NaN, which
// the engine treats as a frame that passes nothing.
func toObservation(detail types.FaceDetail) liveness.FaceObservation {
	obs := liveness.FaceObservation{
		LeftEyeOpenProbability:  math.NaN(),
		RightEyeOpenProbability: math.NaN(),
		YawAngle:                math.NaN(),
		RollAngle:               math.NaN(),
		SmilingProbability:      math.NaN(),
	}

	if detail.EyesOpen != nil {
		p := probability(detail.EyesOpen.Value, detail.EyesOpen.Confidence)
		obs.LeftEyeOpenProbability = p
		obs.RightEyeOpenProbability = p
	}

	if detail.Pose != nil {
		if detail.Pose.Yaw != nil {
			obs.YawAngle = float64(*detail.Pose.Yaw)
		}
		if detail.Pose.Roll != nil {
			obs.RollAngle = float64(*detail.Pose.Roll)
		}
	}

	if detail.Smile != nil {
		obs.SmilingProbability = probability(detail.Smile.Value, detail.Smile.Confidence)
	}

	return obs
}

// probability converts a boolean verdict with a 0-100 confidence into the
// probability that the attribute is present.
func probability(present bool, confidence *float32) float64 {
	if confidence == nil {
		return math.NaN()
	}
	c := float64(*confidence) / 100
	if present {
		return c
	}
	return 1 - c
}
