// Package eventlog implements the append-only, totally ordered event store
// that serves as the single source of truth for the simulation.
package eventlog

import (
	"iter"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/agentforum/marketsim/internal/models"
	"github.com/agentforum/marketsim/pkg/metrics"
)

// Log is the append-only event store. Sequence numbers start at 1 and are
// strictly increasing with no gaps; history is never reordered or dropped.
//
// The simulation round loop is the single writer. Readers (the regulation
// engine) operate on snapshots, so the lock is held only long enough to copy
// a slice header.
type Log struct {
	mu      sync.RWMutex
	events  []models.Event
	nextSeq uint64

	writer *Writer
	logger *zap.Logger
	now    func() time.Time
}

// Option configures a Log.
type Option func(*Log)

// WithWriter streams every appended event to w as one JSONL line.
func WithWriter(w *Writer) Option {
	return func(l *Log) { l.writer = w }
}

// WithClock overrides the timestamp source. Tests use this to get
// reproducible timestamps.
func WithClock(now func() time.Time) Option {
	return func(l *Log) { l.now = now }
}

// New creates an empty log.
func New(logger *zap.Logger, opts ...Option) *Log {
	l := &Log{
		nextSeq: 1,
		logger:  logger,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Append validates the payload, assigns the next sequence number and appends
// the event. It fails only on a malformed payload, in which case the log is
// left exactly as it was.
func (l *Log) Append(round int, payload models.EventPayload) (models.Event, error) {
	if payload == nil {
		return models.Event{}, models.ErrMalformedEvent
	}
	if err := payload.Validate(); err != nil {
		return models.Event{}, err
	}

	l.mu.Lock()
	ev := models.Event{
		Sequence:  l.nextSeq,
		Round:     round,
		Timestamp: l.now(),
		Kind:      payload.Kind(),
		Payload:   payload,
	}
	l.nextSeq++
	l.events = append(l.events, ev)
	l.mu.Unlock()

	metrics.EventsAppended.WithLabelValues(string(ev.Kind)).Inc()

	// Persistence is best-effort relative to the in-memory log: an IO error
	// must not fail the append or fork log order.
	if l.writer != nil {
		if err := l.writer.Write(ev); err != nil {
			l.logger.Warn("event log write failed",
				zap.Uint64("sequence", ev.Sequence),
				zap.Error(err))
		}
	}
	return ev, nil
}

// Flush forces any buffered writer output to disk. A log without a writer is
// always flushed.
func (l *Log) Flush() error {
	if l.writer == nil {
		return nil
	}
	return l.writer.Flush()
}

// Filter selects events by kind, round range and acting agent. Zero values
// match everything; FromRound/ToRound are inclusive and disabled when
// negative.
type Filter struct {
	Kinds     []models.EventKind
	FromRound int
	ToRound   int
	AgentID   string
}

// NewFilter returns a filter that matches every event.
func NewFilter() Filter {
	return Filter{FromRound: -1, ToRound: -1}
}

// Matches reports whether the event passes the filter.
func (f Filter) Matches(ev models.Event) bool {
	if len(f.Kinds) > 0 {
		ok := false
		for _, k := range f.Kinds {
			if ev.Kind == k {
				ok = true
				break
			}
		}
		if !ok {
			return false
		}
	}
	if f.FromRound >= 0 && ev.Round < f.FromRound {
		return false
	}
	if f.ToRound >= 0 && ev.Round > f.ToRound {
		return false
	}
	if f.AgentID != "" && ev.AgentID() != f.AgentID {
		return false
	}
	return true
}

// Query returns a lazy, restartable sequence of matching events in log order.
// The sequence iterates over a snapshot taken when Query is called, so it is
// safe against concurrent appends.
func (l *Log) Query(f Filter) iter.Seq[models.Event] {
	snapshot := l.Snapshot()
	return func(yield func(models.Event) bool) {
		for _, ev := range snapshot {
			if !f.Matches(ev) {
				continue
			}
			if !yield(ev) {
				return
			}
		}
	}
}

// Snapshot returns a consistent prefix of the log: every event appended so
// far, in sequence order. The returned slice is not mutated by later appends.
func (l *Log) Snapshot() []models.Event {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.events[:len(l.events):len(l.events)]
}

// SnapshotUpTo returns the prefix of the log with sequence <= seq.
func (l *Log) SnapshotUpTo(seq uint64) []models.Event {
	events := l.Snapshot()
	for i, ev := range events {
		if ev.Sequence > seq {
			return events[:i]
		}
	}
	return events
}

// Len returns the number of appended events.
func (l *Log) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.events)
}

// LastSeq returns the sequence number of the most recent event, or 0 for an
// empty log.
func (l *Log) LastSeq() uint64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.nextSeq - 1
}
