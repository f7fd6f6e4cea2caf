// Package loader runs metadata extraction on a background worker and
// hands the outcome to a polling consumer through lock-guarded slots.
package loader

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"ggufscope/internal/gguf"
	"ggufscope/internal/meta"
)

// ErrLoadInProgress is returned by Start while a previous load is still
// running. There is no cancellation path; the first worker always runs
// to completion and its result is delivered intact.
var ErrLoadInProgress = errors.New("load already in progress")

// State is the loader's lifecycle position.
type State int

const (
	StateIdle State = iota
	StateRunning
	StateSucceeded
	StateFailed
)

// String returns the lowercase state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateSucceeded:
		return "succeeded"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Source supplies ordered metadata records for a container path. It is
// the input boundary to the external container parser.
type Source interface {
	Open(path string) (RecordReader, error)
}

// RecordReader streams records from one opened container.
type RecordReader interface {
	// Header returns the container header, prepended as pseudo-records.
	Header() gguf.Header
	// Count returns the declared record count, 0 when unknown.
	Count() uint64
	// Next returns records in container order, io.EOF after the last.
	Next() (gguf.Record, error)
	Close() error
}

// FileSource is the default Source, backed by the gguf reader.
type FileSource struct{}

// Open opens a GGUF container at path.
func (FileSource) Open(path string) (RecordReader, error) {
	return gguf.Open(path)
}

// Worker progress phases, matching the shape of the original loader:
// container open lands at 0.05, record streaming fills 0.05..0.95, and
// completion snaps to 1.0 strictly before the result is published.
const (
	progressOpened    = 0.05
	progressStreamed  = 0.95
	progressStreamSpn = progressStreamed - progressOpened
)

// Loader coordinates one background load at a time. The initiating
// goroutine never blocks on the worker; it polls Progress and Poll at
// its own cadence.
type Loader struct {
	mu         sync.Mutex
	state      State
	generation uuid.UUID

	progress ProgressSlot
	result   ResultSlot

	source      Source
	transformer *meta.Transformer
	log         *slog.Logger
}

// New returns an idle loader reading containers through source.
func New(source Source, transformer *meta.Transformer, log *slog.Logger) *Loader {
	if log == nil {
		log = slog.Default()
	}
	return &Loader{
		source:      source,
		transformer: transformer,
		log:         log,
	}
}

// Start begins loading path on a dedicated worker goroutine and returns
// immediately. It returns ErrLoadInProgress if a load is already
// running; starting a new load discards any undelivered previous result.
func (l *Loader) Start(path string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.state == StateRunning {
		return ErrLoadInProgress
	}

	gen := uuid.New()
	l.generation = gen
	l.state = StateRunning
	l.progress.reset()
	l.result.reset(gen)

	go l.run(gen, path)
	return nil
}

// Progress returns a snapshot of the current load's progress in [0, 1].
// Observed values are non-decreasing within one load and reach exactly
// 1.0 only when the load succeeds.
func (l *Loader) Progress() float64 {
	return l.progress.Value()
}

// State returns the loader's current lifecycle state.
func (l *Loader) State() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

// Generation identifies the current load; history records key on it.
func (l *Loader) Generation() uuid.UUID {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.generation
}

// Poll checks for a completed outcome without blocking. The first call
// that observes the published result transitions the state and delivers
// it; later calls return false until a new load starts. A consumer that
// saw Progress() == 1.0 may need one more poll cycle before the result
// is visible; the handoff is eventual, not single-step atomic.
func (l *Loader) Poll() (*Outcome, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.state != StateRunning {
		return nil, false
	}
	o, ok := l.result.take()
	if !ok {
		return nil, false
	}
	if o.Err != nil {
		l.state = StateFailed
	} else {
		l.state = StateSucceeded
	}
	return o, true
}

// run executes one load on the worker goroutine. Container-level errors
// are fatal and publish a Failure with no partial entry list; per-record
// transformation never fails.
func (l *Loader) run(gen uuid.UUID, path string) {
	log := l.log.With("path", path, "load_id", gen.String())
	log.Debug("load started")

	r, err := l.source.Open(path)
	if err != nil {
		log.Error("container open failed", "error", err)
		l.result.publish(gen, &Outcome{Err: err})
		return
	}
	defer r.Close()
	l.progress.set(progressOpened)

	total := r.Count()
	entries := make([]meta.MetadataEntry, 0, total+3)

	for _, rec := range r.Header().Records() {
		entries = append(entries, l.transformer.Transform(rec.Key, rec.Value))
	}

	var processed uint64
	for {
		rec, err := r.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			log.Error("container parse failed", "record", processed, "error", err)
			l.result.publish(gen, &Outcome{Err: fmt.Errorf("failed to parse container: %w", err)})
			return
		}
		entries = append(entries, l.transformer.Transform(rec.Key, rec.Value))
		processed++
		if total > 0 {
			l.progress.set(progressOpened + progressStreamSpn*float64(processed)/float64(total))
		}
	}

	l.progress.set(progressStreamed)
	// The 1.0 write must land before the result becomes visible.
	l.progress.set(1.0)
	l.result.publish(gen, &Outcome{Entries: entries})
	log.Debug("load finished", "entries", len(entries))
}
