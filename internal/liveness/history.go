package liveness

import "math"

// NodWindow is the number of frames the nod detector compares against.
// It is counted in processed frames, so changing the sampling rate changes
// the wall-clock span of the window.
const NodWindow = 10

// RollHistory is a bounded FIFO of roll-angle samples.
// It is owned by a single session and is not safe for concurrent use.
type RollHistory struct {
	samples []float64
	size    int
}

// NewRollHistory returns an empty history holding at most size samples.
func NewRollHistory(size int) *RollHistory {
	if size < 2 {
		size = 2
	}
	return &RollHistory{
		samples: make([]float64, 0, size),
		size:    size,
	}
}

// Push appends a sample, dropping the oldest one when the history is full.
func (h *RollHistory) Push(angle float64) {
	if len(h.samples) == h.size {
		copy(h.samples, h.samples[1:])
		h.samples = h.samples[:h.size-1]
	}
	h.samples = append(h.samples, angle)
}

func (h *RollHistory) Len() int {
	return len(h.samples)
}

func (h *RollHistory) Full() bool {
	return len(h.samples) == h.size
}

// Reset drops every sample.
func (h *RollHistory) Reset() {
	h.samples = h.samples[:0]
}

// Latest returns the most recent sample.
func (h *RollHistory) Latest() (float64, bool) {
	if len(h.samples) == 0 {
		return 0, false
	}
	return h.samples[len(h.samples)-1], true
}

// BaselineMean is the mean absolute value of every sample except the latest.
func (h *RollHistory) BaselineMean() float64 {
	n := len(h.samples) - 1
	if n <= 0 {
		return 0
	}
	var sum float64
	for _, s := range h.samples[:n] {
		sum += math.Abs(s)
	}
	return sum / float64(n)
}

// Samples returns a copy of the buffered samples, oldest first.
func (h *RollHistory) Samples() []float64 {
	out := make([]float64, len(h.samples))
	copy(out, h.samples)
	return out
}

// Clone returns an independent copy of h.
func (h *RollHistory) Clone() *RollHistory {
	c := NewRollHistory(h.size)
	c.samples = append(c.samples, h.samples...)
	return c
}
