package liveness

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	neutral   = FaceObservation{LeftEyeOpenProbability: 0.9, RightEyeOpenProbability: 0.9, SmilingProbability: 0.1}
	blinking  = FaceObservation{LeftEyeOpenProbability: 0.1, RightEyeOpenProbability: 0.1, SmilingProbability: 0.1}
	lookLeft  = FaceObservation{LeftEyeOpenProbability: 0.9, RightEyeOpenProbability: 0.9, YawAngle: -20}
	lookRight = FaceObservation{LeftEyeOpenProbability: 0.9, RightEyeOpenProbability: 0.9, YawAngle: 20}
	smiling   = FaceObservation{LeftEyeOpenProbability: 0.9, RightEyeOpenProbability: 0.9, SmilingProbability: 0.9}
)

func one(obs FaceObservation) []FaceObservation {
	return []FaceObservation{obs}
}

func rolled(angle float64) FaceObservation {
	obs := neutral
	obs.RollAngle = angle
	return obs
}

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	c, err := DefaultCatalog()
	require.NoError(t, err)
	return NewEngine(c)
}

// nodFrames returns ten frames whose last one departs 2.0 degrees from the baseline.
func nodFrames() [][]FaceObservation {
	frames := make([][]FaceObservation, 0, NodWindow)
	for i := 0; i < NodWindow-1; i++ {
		frames = append(frames, one(rolled(1.0)))
	}
	return append(frames, one(rolled(3.0)))
}

func TestEngine_FirstDetectionSeedsProgress(t *testing.T) {
	e := newTestEngine(t)

	got := e.Transition(InitialState(), NewRollHistory(NodWindow), one(neutral))

	assert.Equal(t, State{FaceDetected: true, ChallengeIndex: 0, Progress: 100.0 / 6}, got)
}

func TestEngine_FaceCountGate(t *testing.T) {
	e := newTestEngine(t)
	advanced := State{FaceDetected: true, ChallengeIndex: 3, Progress: 400.0 / 6}
	completed := State{FaceDetected: true, ChallengeIndex: 5, Progress: 100, Complete: true}

	tests := []struct {
		name  string
		state State
		faces []FaceObservation
	}{
		{"no faces mid run", advanced, nil},
		{"two faces mid run", advanced, []FaceObservation{neutral, neutral}},
		{"no faces after completion", completed, []FaceObservation{}},
		{"three faces after completion", completed, []FaceObservation{smiling, smiling, smiling}},
		{"no faces before detection", InitialState(), nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewRollHistory(NodWindow)
			h.Push(4)
			h.Push(5)

			got := e.Transition(tt.state, h, tt.faces)

			assert.Equal(t, InitialState(), got)
			assert.Equal(t, 0, h.Len())
		})
	}
}

func TestEngine_FailingFramesKeepState(t *testing.T) {
	e := newTestEngine(t)
	h := NewRollHistory(NodWindow)

	// Each frame is one face that fails whichever challenge is active.
	failing := map[int]FaceObservation{
		0: lookLeft,
		1: lookRight,
		2: blinking,
		4: lookLeft,
	}

	for idx, obs := range failing {
		state := State{FaceDetected: true, ChallengeIndex: idx, Progress: 100 * float64(idx+1) / 6}
		for i := 0; i < 20; i++ {
			next := e.Transition(state, h, one(obs))
			require.Equal(t, state, next, "challenge %d frame %d", idx, i)
		}
	}

	nodState := State{FaceDetected: true, ChallengeIndex: 3, Progress: 400.0 / 6}
	h.Reset()
	for i := 0; i < 30; i++ {
		next := e.Transition(nodState, h, one(rolled(2.0)))
		require.Equal(t, nodState, next, "steady roll frame %d", i)
	}
}

func TestEngine_EndToEnd(t *testing.T) {
	e := newTestEngine(t)
	h := NewRollHistory(NodWindow)
	state := InitialState()

	state = e.Transition(state, h, one(neutral))
	assert.True(t, state.FaceDetected)
	assert.InDelta(t, 100.0/6, state.Progress, 1e-9)

	steps := []struct {
		name   string
		frames [][]FaceObservation
		index  int
	}{
		{"blink", [][]FaceObservation{one(blinking)}, 1},
		{"turn head left", [][]FaceObservation{one(lookLeft)}, 2},
		{"turn head right", [][]FaceObservation{one(lookRight)}, 3},
		{"nod", nodFrames(), 4},
	}

	for _, step := range steps {
		for i, frame := range step.frames {
			prev := state
			state = e.Transition(state, h, frame)
			if i < len(step.frames)-1 {
				require.Equal(t, prev, state, "%s frame %d", step.name, i)
			}
		}
		assert.Equal(t, step.index, state.ChallengeIndex, step.name)
		assert.InDelta(t, 100*float64(step.index+1)/6, state.Progress, 1e-9, step.name)
		assert.False(t, state.Complete, step.name)
	}

	state = e.Transition(state, h, one(smiling))
	assert.True(t, state.Complete)
	assert.Equal(t, 100.0, state.Progress)
	assert.Equal(t, 5, state.ChallengeIndex)

	// Completed runs stop evaluating: further frames change nothing.
	for _, obs := range []FaceObservation{blinking, lookLeft, smiling, rolled(40)} {
		assert.Equal(t, state, e.Transition(state, h, one(obs)))
	}
}

func TestEngine_FirstFrameCanAlsoPassChallenge(t *testing.T) {
	e := newTestEngine(t)

	got := e.Transition(InitialState(), NewRollHistory(NodWindow), one(blinking))

	assert.True(t, got.FaceDetected)
	assert.Equal(t, 1, got.ChallengeIndex)
	assert.InDelta(t, 200.0/6, got.Progress, 1e-9)
}

func TestEngine_LosingFaceBetweenChallengesResets(t *testing.T) {
	e := newTestEngine(t)
	s := NewSession(e)

	s.Feed(one(neutral))
	state, change := s.Feed(one(blinking))
	require.Equal(t, ChangeAdvanced, change)
	require.Equal(t, 1, state.ChallengeIndex)

	state, change = s.Feed(nil)
	assert.Equal(t, ChangeReset, change)
	assert.False(t, state.FaceDetected)
	assert.Equal(t, 0, state.ChallengeIndex)
	assert.Equal(t, 0.0, state.Progress)
	assert.Equal(t, 1, s.Resets())

	// The run starts over from blink.
	state, _ = s.Feed(one(lookLeft))
	assert.Equal(t, 0, state.ChallengeIndex)
}

func TestEngine_ResetDiscardsNodWindow(t *testing.T) {
	e := newTestEngine(t)
	h := NewRollHistory(NodWindow)
	nodState := State{FaceDetected: true, ChallengeIndex: 3, Progress: 400.0 / 6}

	state := nodState
	for i := 0; i < NodWindow-1; i++ {
		state = e.Transition(state, h, one(rolled(1.0)))
	}
	require.Equal(t, NodWindow-1, h.Len())

	e.Transition(state, h, []FaceObservation{neutral, neutral})
	assert.Equal(t, 0, h.Len())
}

func TestEngine_MalformedObservationNeverPasses(t *testing.T) {
	e := newTestEngine(t)

	tests := []struct {
		name  string
		index int
		obs   FaceObservation
	}{
		{"NaN eye probability", 0, FaceObservation{LeftEyeOpenProbability: math.NaN(), RightEyeOpenProbability: 0.1}},
		{"negative eye probability", 0, FaceObservation{LeftEyeOpenProbability: -0.5, RightEyeOpenProbability: 0.1}},
		{"infinite yaw", 1, FaceObservation{YawAngle: math.Inf(-1)}},
		{"NaN yaw", 2, FaceObservation{YawAngle: math.NaN()}},
		{"smile above one", 4, FaceObservation{SmilingProbability: 1.5}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			state := State{FaceDetected: true, ChallengeIndex: tt.index, Progress: 100 * float64(tt.index+1) / 6}

			assert.Equal(t, state, e.Transition(state, NewRollHistory(NodWindow), one(tt.obs)))
		})
	}

	t.Run("NaN roll is not buffered", func(t *testing.T) {
		h := NewRollHistory(NodWindow)
		state := State{FaceDetected: true, ChallengeIndex: 3, Progress: 400.0 / 6}

		e.Transition(state, h, one(rolled(math.NaN())))
		assert.Equal(t, 0, h.Len())
	})

	t.Run("malformed face still counts as present", func(t *testing.T) {
		got := e.Transition(InitialState(), NewRollHistory(NodWindow), one(FaceObservation{YawAngle: math.NaN()}))
		assert.True(t, got.FaceDetected)
		assert.Equal(t, 0, got.ChallengeIndex)
	})
}

func TestEngine_ProgressInvariants(t *testing.T) {
	e := newTestEngine(t)
	s := NewSession(e)
	rng := rand.New(rand.NewSource(42))

	pool := []FaceObservation{neutral, blinking, lookLeft, lookRight, smiling}
	prev := s.State()

	for i := 0; i < 2000; i++ {
		var obs FaceObservation
		if rng.Intn(3) == 0 {
			obs = rolled(rng.Float64()*10 - 5)
		} else {
			obs = pool[rng.Intn(len(pool))]
		}

		next, change := s.Feed(one(obs))

		require.GreaterOrEqual(t, next.Progress, prev.Progress, "frame %d", i)
		require.LessOrEqual(t, next.Progress, 100.0, "frame %d", i)
		require.GreaterOrEqual(t, next.ChallengeIndex, prev.ChallengeIndex, "frame %d", i)
		if change == ChangeAdvanced || change == ChangeCompleted {
			require.Greater(t, next.Progress, prev.Progress, "frame %d", i)
		}
		if next.Complete {
			require.Equal(t, e.Catalog().Len(), next.ChallengeIndex)
			require.Equal(t, 100.0, next.Progress)
		}
		prev = next
	}

	assert.Equal(t, 2000, s.Frames())
	assert.Equal(t, 0, s.Resets())
}

func TestSession_Snapshot(t *testing.T) {
	e := newTestEngine(t)
	s := NewSession(e)

	snap := s.Snapshot()
	assert.Empty(t, snap.Instruction)
	assert.Empty(t, snap.Challenge)

	s.Feed(one(neutral))
	snap = s.Snapshot()
	assert.Equal(t, ChallengeBlink, snap.Challenge)
	assert.Equal(t, "Blink both eyes", snap.Instruction)

	s.Feed(one(blinking))
	assert.Equal(t, "Turn head left", s.Snapshot().Instruction)

	s.Feed(one(lookLeft))
	s.Feed(one(lookRight))
	for _, frame := range nodFrames() {
		s.Feed(frame)
	}
	assert.Equal(t, ChallengeSmile, s.Snapshot().Challenge)

	_, change := s.Feed(one(smiling))
	assert.Equal(t, ChangeCompleted, change)
	snap = s.Snapshot()
	assert.True(t, snap.Complete)
	assert.Empty(t, snap.Instruction)
}

func TestClassify(t *testing.T) {
	detected := State{FaceDetected: true, Progress: 100.0 / 6}

	tests := []struct {
		name string
		prev State
		next State
		want Change
	}{
		{"idle", InitialState(), InitialState(), ChangeNone},
		{"face found", InitialState(), detected, ChangeFaceDetected},
		{"face found and first challenge passed", InitialState(), State{FaceDetected: true, ChallengeIndex: 1, Progress: 200.0 / 6}, ChangeAdvanced},
		{"advance", detected, State{FaceDetected: true, ChallengeIndex: 1, Progress: 200.0 / 6}, ChangeAdvanced},
		{"complete", State{FaceDetected: true, ChallengeIndex: 4, Progress: 500.0 / 6}, State{FaceDetected: true, ChallengeIndex: 5, Progress: 100, Complete: true}, ChangeCompleted},
		{"reset", detected, InitialState(), ChangeReset},
		{"waiting", detected, detected, ChangeNone},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.prev, tt.next))
		})
	}
}

func TestResumeSession(t *testing.T) {
	e := newTestEngine(t)

	t.Run("continues from stored state", func(t *testing.T) {
		stored := State{FaceDetected: true, ChallengeIndex: 2, Progress: 50}
		s := ResumeSession(e, stored, 12, 1)

		assert.Equal(t, stored, s.State())
		assert.Equal(t, 12, s.Frames())
		assert.Equal(t, 1, s.Resets())

		st, change := s.Feed(one(lookRight))
		assert.Equal(t, ChangeAdvanced, change)
		assert.Equal(t, 3, st.ChallengeIndex)
		assert.Equal(t, 13, s.Frames())
	})

	t.Run("out of range index starts over", func(t *testing.T) {
		s := ResumeSession(e, State{FaceDetected: true, ChallengeIndex: 9, Progress: 50}, 0, 0)
		assert.Equal(t, InitialState(), s.State())
	})

	t.Run("complete pins index", func(t *testing.T) {
		s := ResumeSession(e, State{FaceDetected: true, ChallengeIndex: 3, Progress: 100, Complete: true}, 0, 0)
		assert.Equal(t, e.Catalog().Len(), s.State().ChallengeIndex)
	})
}

func TestFirstDetection(t *testing.T) {
	detected := State{FaceDetected: true, Progress: 100.0 / 6}
	passedBlink := State{FaceDetected: true, ChallengeIndex: 1, Progress: 200.0 / 6}

	assert.True(t, FirstDetection(InitialState(), detected))
	assert.True(t, FirstDetection(InitialState(), passedBlink))
	assert.False(t, FirstDetection(detected, passedBlink))
	assert.False(t, FirstDetection(detected, InitialState()))
}

func TestEngine_DetectionProgress(t *testing.T) {
	e := newTestEngine(t)
	assert.InDelta(t, 100.0/6, e.DetectionProgress(), 1e-9)
}

func TestSession_CloneIsIndependent(t *testing.T) {
	e := newTestEngine(t)
	s := NewSession(e)
	for _, frame := range [][]FaceObservation{one(neutral), one(blinking), one(lookLeft), one(lookRight)} {
		s.Feed(frame)
	}
	for i := 0; i < NodWindow-1; i++ {
		s.Feed(one(rolled(1.0)))
	}
	before := s.State()

	c := s.Clone()
	st, change := c.Feed(one(rolled(3.0)))
	require.Equal(t, ChangeAdvanced, change)
	assert.Equal(t, 4, st.ChallengeIndex)

	assert.Equal(t, before, s.State())
	assert.Equal(t, c.Frames()-1, s.Frames())

	// the original still holds its nod window
	_, change = s.Feed(one(rolled(3.0)))
	assert.Equal(t, ChangeAdvanced, change)
}
