package liveness

import (
	"errors"
	"fmt"
	"math"
)

// ChallengeID names a gesture the user is asked to perform.
type ChallengeID string

const (
	ChallengeBlink         ChallengeID = "BLINK"
	ChallengeTurnHeadLeft  ChallengeID = "TURN_HEAD_LEFT"
	ChallengeTurnHeadRight ChallengeID = "TURN_HEAD_RIGHT"
	ChallengeNod           ChallengeID = "NOD"
	ChallengeSmile         ChallengeID = "SMILE"
)

// Thresholds used by the default catalog.
const (
	BlinkMaxOpenProbability = 0.3
	TurnLeftMaxYaw          = -15.0
	TurnRightMinYaw         = 15.0
	NodMinRollDiff          = 1.5
	SmileMinProbability     = 0.7

	// DefaultFrameRate is the number of frames per second the feed is expected to be sampled at.
	DefaultFrameRate = 5
)

// ErrUnknownChallenge means a sequence references a challenge the catalog does not register.
var ErrUnknownChallenge = errors.New("unknown challenge")

// Predicate decides whether an observation satisfies a challenge.
// history is the session's roll-angle buffer; only stateful challenges touch it.
type Predicate func(obs FaceObservation, history *RollHistory) bool

// Challenge is one required gesture.
type Challenge struct {
	ID          ChallengeID
	Instruction string
	Evaluate    Predicate
}

// Catalog is the read-only set of challenges plus the order they are asked in.
type Catalog struct {
	challenges map[ChallengeID]Challenge
	sequence   []ChallengeID
}

// NewCatalog registers challenges and validates that every id in sequence is known.
// A mismatch is a configuration error and must stop the process at start-up.
func NewCatalog(challenges []Challenge, sequence []ChallengeID) (*Catalog, error) {
	if len(sequence) == 0 {
		return nil, errors.New("challenge sequence is empty")
	}

	byID := make(map[ChallengeID]Challenge, len(challenges))
	for _, ch := range challenges {
		if ch.Evaluate == nil {
			return nil, fmt.Errorf("challenge %s: missing predicate", ch.ID)
		}
		if _, dup := byID[ch.ID]; dup {
			return nil, fmt.Errorf("challenge %s: registered twice", ch.ID)
		}
		byID[ch.ID] = ch
	}

	for i, id := range sequence {
		if _, ok := byID[id]; !ok {
			return nil, fmt.Errorf("sequence[%d] %s: %w", i, id, ErrUnknownChallenge)
		}
	}

	seq := make([]ChallengeID, len(sequence))
	copy(seq, sequence)

	return &Catalog{challenges: byID, sequence: seq}, nil
}

// DefaultCatalog returns the five-gesture catalog: blink, turn left, turn right, nod, smile.
func DefaultCatalog() (*Catalog, error) {
	return NewCatalog(DefaultChallenges(), DefaultSequence())
}

// MustDefaultCatalog is DefaultCatalog for process start-up. It panics on a configuration error.
func MustDefaultCatalog() *Catalog {
	c, err := DefaultCatalog()
	if err != nil {
		panic(err)
	}
	return c
}

func DefaultSequence() []ChallengeID {
	return []ChallengeID{
		ChallengeBlink,
		ChallengeTurnHeadLeft,
		ChallengeTurnHeadRight,
		ChallengeNod,
		ChallengeSmile,
	}
}

func DefaultChallenges() []Challenge {
	return []Challenge{
		{ID: ChallengeBlink, Instruction: "Blink both eyes", Evaluate: blink(BlinkMaxOpenProbability)},
		{ID: ChallengeTurnHeadLeft, Instruction: "Turn head left", Evaluate: yawAtMost(TurnLeftMaxYaw)},
		{ID: ChallengeTurnHeadRight, Instruction: "Turn head right", Evaluate: yawAtLeast(TurnRightMinYaw)},
		{ID: ChallengeNod, Instruction: "Nod", Evaluate: nod(NodMinRollDiff)},
		{ID: ChallengeSmile, Instruction: "Smile", Evaluate: smile(SmileMinProbability)},
	}
}

// Len is the number of challenges in the sequence.
func (c *Catalog) Len() int {
	return len(c.sequence)
}

// Sequence returns a copy of the challenge order.
func (c *Catalog) Sequence() []ChallengeID {
	out := make([]ChallengeID, len(c.sequence))
	copy(out, c.sequence)
	return out
}

// At returns the challenge asked at position i of the sequence.
func (c *Catalog) At(i int) (Challenge, bool) {
	if i < 0 || i >= len(c.sequence) {
		return Challenge{}, false
	}
	ch, ok := c.challenges[c.sequence[i]]
	return ch, ok
}

// Lookup returns a registered challenge by id.
func (c *Catalog) Lookup(id ChallengeID) (Challenge, bool) {
	ch, ok := c.challenges[id]
	return ch, ok
}

// Lower open probability means the eye is closed.
func blink(maxOpen float64) Predicate {
	return func(obs FaceObservation, _ *RollHistory) bool {
		return obs.LeftEyeOpenProbability <= maxOpen && obs.RightEyeOpenProbability <= maxOpen
	}
}

func yawAtMost(angle float64) Predicate {
	return func(obs FaceObservation, _ *RollHistory) bool {
		return obs.YawAngle <= angle
	}
}

func yawAtLeast(angle float64) Predicate {
	return func(obs FaceObservation, _ *RollHistory) bool {
		return obs.YawAngle >= angle
	}
}

func smile(minProbability float64) Predicate {
	return func(obs FaceObservation, _ *RollHistory) bool {
		return obs.SmilingProbability >= minProbability
	}
}

// nod fires when the current roll departs from the recent baseline by at least minDiff.
// The baseline is the mean absolute roll of the window minus the newest sample, so small
// jitter around a steady tilt does not count.
func nod(minDiff float64) Predicate {
	return func(obs FaceObservation, history *RollHistory) bool {
		if history == nil {
			return false
		}
		history.Push(obs.RollAngle)
		if !history.Full() {
			return false
		}
		diff := math.Abs(history.BaselineMean() - math.Abs(obs.RollAngle))
		return diff >= minDiff
	}
}
