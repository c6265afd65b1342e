package rekognition

import (
	"errors"
	"fmt"

	"github.com/saturnino-fabrica-de-software/vivo/internal/domain"
)

var (
	// ErrInvalidCredentials indicates that AWS credentials are invalid or missing
	ErrInvalidCredentials = errors.New("invalid or missing AWS credentials")

	// ErrInvalidImage indicates that the image is empty, too small, too large or not decodable.
	// It matches domain.ErrInvalidImage under errors.Is.
	ErrInvalidImage = fmt.Errorf("%w: rejected by rekognition", domain.ErrInvalidImage)

	// ErrThrottled indicates that Rekognition rejected the call for rate reasons
	ErrThrottled = errors.New("rekognition throughput exceeded")
)
