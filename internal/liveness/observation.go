package liveness

import "math"

// FaceObservation is the geometry of one detected face in one processed frame.
// Angles are in degrees and signed; probabilities are in [0,1].
type FaceObservation struct {
	LeftEyeOpenProbability  float64 `json:"left_eye_open_probability"`
	RightEyeOpenProbability float64 `json:"right_eye_open_probability"`
	YawAngle                float64 `json:"yaw_angle"`
	RollAngle               float64 `json:"roll_angle"`
	SmilingProbability      float64 `json:"smiling_probability"`
}

// Valid reports whether every measurement is finite and every probability lies in [0,1].
// A face that fails this check never passes a challenge.
func (o FaceObservation) Valid() bool {
	for _, p := range []float64{o.LeftEyeOpenProbability, o.RightEyeOpenProbability, o.SmilingProbability} {
		if !isProbability(p) {
			return false
		}
	}
	return isFinite(o.YawAngle) && isFinite(o.RollAngle)
}

func isProbability(v float64) bool {
	return isFinite(v) && v >= 0 && v <= 1
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
