// Package liveness implements the active liveness challenge state machine.
//
// A session walks a user through an ordered list of gestures (blink, turn
// left, turn right, nod, smile). Each processed camera frame yields the list
// of faces found in it; the engine folds that list into a new State. Exactly
// one face must stay in view for the whole run: any frame with zero or several
// faces starts the session over.
package liveness

import "math"

// Engine evaluates frames against a catalog. It holds no per-session data
// and can be shared by any number of sessions.
type Engine struct {
	catalog *Catalog
}

func NewEngine(catalog *Catalog) *Engine {
	return &Engine{catalog: catalog}
}

func (e *Engine) Catalog() *Catalog {
	return e.catalog
}

// DetectionProgress is the progress credited for finding the face.
func (e *Engine) DetectionProgress() float64 {
	return e.progressAt(1)
}

// progressAt is the progress after `steps` steps. One step is reserved for
// finding the face, the rest map to challenges. It is computed as a single
// division so the final step lands on exactly 100.
func (e *Engine) progressAt(steps int) float64 {
	p := 100 * float64(steps) / float64(e.catalog.Len()+1)
	return math.Min(p, 100)
}

// Transition folds one frame into state. history is the session's roll buffer;
// it is cleared on reset and whenever the session moves to the next challenge.
func (e *Engine) Transition(state State, history *RollHistory, faces []FaceObservation) State {
	if len(faces) != 1 {
		if history != nil {
			history.Reset()
		}
		return InitialState()
	}

	next := state
	if !next.FaceDetected {
		next.FaceDetected = true
		next.Progress = e.progressAt(1)
	}

	if next.Complete {
		return next
	}

	face := faces[0]
	if !face.Valid() {
		return next
	}

	ch, ok := e.catalog.At(next.ChallengeIndex)
	if !ok {
		// NewCatalog guarantees every index below Len resolves.
		panic("liveness: challenge index out of catalog range")
	}
	if !ch.Evaluate(face, history) {
		return next
	}

	advanced := next.ChallengeIndex + 1
	next.Progress = e.progressAt(advanced + 1)
	next.ChallengeIndex = advanced
	if advanced == e.catalog.Len() {
		next.Complete = true
	}
	if history != nil {
		history.Reset()
	}

	return next
}

// Session bundles the state and roll history of one liveness run.
// A Session is not safe for concurrent use; feed it frames in order.
type Session struct {
	engine  *Engine
	state   State
	history *RollHistory
	frames  int
	resets  int
}

func NewSession(engine *Engine) *Session {
	return &Session{
		engine:  engine,
		state:   InitialState(),
		history: NewRollHistory(NodWindow),
	}
}

// ResumeSession rebuilds a session from a stored state. The roll history is
// not persisted, so a resumed NOD challenge needs a full window again.
func ResumeSession(engine *Engine, state State, frames, resets int) *Session {
	if state.ChallengeIndex < 0 || state.ChallengeIndex > engine.catalog.Len() {
		state = InitialState()
	}
	if state.Complete {
		state.ChallengeIndex = engine.catalog.Len()
	}
	return &Session{
		engine:  engine,
		state:   state,
		history: NewRollHistory(NodWindow),
		frames:  frames,
		resets:  resets,
	}
}

// Feed applies one frame and reports what changed.
func (s *Session) Feed(faces []FaceObservation) (State, Change) {
	prev := s.state
	s.state = s.engine.Transition(prev, s.history, faces)
	s.frames++

	change := Classify(prev, s.state)
	if change == ChangeReset {
		s.resets++
	}
	return s.state, change
}

// Clone returns a copy of s that can be fed without affecting s.
func (s *Session) Clone() *Session {
	c := *s
	c.history = s.history.Clone()
	return &c
}

func (s *Session) State() State {
	return s.state
}

func (s *Session) Snapshot() Snapshot {
	return s.engine.catalog.Snapshot(s.state)
}

// Frames is the number of frames fed so far.
func (s *Session) Frames() int {
	return s.frames
}

// Resets counts how many times a lost or extra face restarted the run.
func (s *Session) Resets() int {
	return s.resets
}
