package mock

import (
	"context"
	"sync"

	"github.com/saturnino-fabrica-de-software/vivo/internal/domain"
	"github.com/saturnino-fabrica-de-software/vivo/internal/liveness"
	"github.com/saturnino-fabrica-de-software/vivo/internal/provider"
)

const minImageSize = 1000

// Neutral is a face looking straight at the camera with open eyes.
var Neutral = liveness.FaceObservation{
	LeftEyeOpenProbability:  0.95,
	RightEyeOpenProbability: 0.95,
	SmilingProbability:      0.05,
}

// Detector implementa provider.FaceDetector para testes e desenvolvimento.
// It replays a script of frames in order and then keeps returning one
// neutral face.
type Detector struct {
	mu     sync.Mutex
	script [][]liveness.FaceObservation
	calls  int
}

// New cria um Detector que sempre encontra uma face neutra
func New() *Detector {
	return &Detector{}
}

// NewScripted returns a detector that answers with frames, one per call.
func NewScripted(frames ...[]liveness.FaceObservation) *Detector {
	return &Detector{script: frames}
}

// DetectFaces simula detecção de faces
func (d *Detector) DetectFaces(ctx context.Context, image []byte) ([]liveness.FaceObservation, error) {
	if len(image) < minImageSize {
		return nil, domain.ErrInvalidImage
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	d.calls++
	if len(d.script) == 0 {
		return []liveness.FaceObservation{Neutral}, nil
	}

	frame := d.script[0]
	d.script = d.script[1:]

	out := make([]liveness.FaceObservation, len(frame))
	copy(out, frame)
	return out, nil
}

// Calls is the number of DetectFaces calls served.
func (d *Detector) Calls() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.calls
}

var _ provider.FaceDetector = (*Detector)(nil)
