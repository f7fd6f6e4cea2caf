package loader

import (
	"sync"

	"github.com/google/uuid"

	"ggufscope/internal/meta"
)

// ProgressSlot is the lock-guarded progress fraction shared between the
// worker and polling consumers. The worker is the sole writer; stored
// values are monotonically non-decreasing within one load.
type ProgressSlot struct {
	mu    sync.Mutex
	value float64
}

// Value returns a snapshot of the current progress in [0, 1].
func (s *ProgressSlot) Value() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.value
}

// set stores v, clamped to [0, 1] and never below the current value.
func (s *ProgressSlot) set(v float64) {
	if v < 0 {
		v = 0
	}
	if v > 1 {
		v = 1
	}
	s.mu.Lock()
	if v > s.value {
		s.value = v
	}
	s.mu.Unlock()
}

// reset returns the slot to 0. Called only when a new load begins.
func (s *ProgressSlot) reset() {
	s.mu.Lock()
	s.value = 0
	s.mu.Unlock()
}

// Outcome is the terminal result of one load: either the complete
// ordered entry list, or the container error that aborted it.
type Outcome struct {
	Entries []meta.MetadataEntry
	Err     error
}

// ResultSlot is the one-shot handoff between the worker and the
// consumer. It is written exactly once per load generation; a second
// write within the same generation is a programming error. A write
// carrying a stale generation (from a worker the slot has since been
// rearmed past) is dropped.
type ResultSlot struct {
	mu         sync.Mutex
	generation uuid.UUID
	outcome    *Outcome
	written    bool
}

// reset rearms the slot for a new load generation.
func (s *ResultSlot) reset(gen uuid.UUID) {
	s.mu.Lock()
	s.generation = gen
	s.outcome = nil
	s.written = false
	s.mu.Unlock()
}

// publish deposits the outcome for gen.
func (s *ResultSlot) publish(gen uuid.UUID, o *Outcome) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.generation {
		return
	}
	if s.written {
		panic("loader: result slot written twice in one load generation")
	}
	s.outcome = o
	s.written = true
}

// take removes and returns the outcome if one has been published.
// Subsequent calls within the same generation return false.
func (s *ResultSlot) take() (*Outcome, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.outcome == nil {
		return nil, false
	}
	o := s.outcome
	s.outcome = nil
	return o, true
}
