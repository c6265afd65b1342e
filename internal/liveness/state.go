package liveness

// State is the progress of one liveness session. It is a value: the engine
// returns a new State on every frame instead of mutating the old one.
type State struct {
	FaceDetected   bool    `json:"face_detected"`
	ChallengeIndex int     `json:"challenge_index"`
	Progress       float64 `json:"progress"`
	Complete       bool    `json:"complete"`
}

// InitialState is the state of a session before any face was seen.
func InitialState() State {
	return State{}
}

// Change classifies what a transition did.
type Change string

const (
	ChangeNone         Change = "none"
	ChangeFaceDetected Change = "face_detected"
	ChangeAdvanced     Change = "advanced"
	ChangeCompleted    Change = "completed"
	ChangeReset        Change = "reset"
)

// Classify compares two consecutive states and reports the most significant
// change. A frame that finds the face and passes the first challenge at once
// is ChangeAdvanced; FirstDetection tells such frames apart.
func Classify(prev, next State) Change {
	switch {
	case prev.FaceDetected && !next.FaceDetected:
		return ChangeReset
	case !prev.Complete && next.Complete:
		return ChangeCompleted
	case next.ChallengeIndex > prev.ChallengeIndex:
		return ChangeAdvanced
	case !prev.FaceDetected && next.FaceDetected:
		return ChangeFaceDetected
	default:
		return ChangeNone
	}
}

// FirstDetection reports whether the face was found by the transition from
// prev to next, whatever else the frame did.
func FirstDetection(prev, next State) bool {
	return !prev.FaceDetected && next.FaceDetected
}

// Snapshot is what a presentation layer reads after each frame.
type Snapshot struct {
	State
	Challenge   ChallengeID `json:"challenge,omitempty"`
	Instruction string      `json:"instruction,omitempty"`
}

// Snapshot resolves the active challenge of s against the catalog.
// Instruction is empty while no face is detected and once the run is complete.
func (c *Catalog) Snapshot(s State) Snapshot {
	snap := Snapshot{State: s}
	if !s.FaceDetected || s.Complete {
		return snap
	}
	if ch, ok := c.At(s.ChallengeIndex); ok {
		snap.Challenge = ch.ID
		snap.Instruction = ch.Instruction
	}
	return snap
}
