// Package pipeline drives the tracker from a detection stream. It owns the
// single-writer discipline the tracker requires: all Update/Reset calls
// funnel through one mutex, and HTTP readers only ever see cached
// snapshots.
package pipeline

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/roadmetrics/trafficwatch/internal/db"
	"github.com/roadmetrics/trafficwatch/internal/detect"
	"github.com/roadmetrics/trafficwatch/internal/monitoring"
	"github.com/roadmetrics/trafficwatch/internal/report"
	"github.com/roadmetrics/trafficwatch/internal/timeutil"
	"github.com/roadmetrics/trafficwatch/internal/track"
)

// ErrEmptySession is returned by SaveSession when no vehicle has been
// counted; empty sessions are not persisted.
var ErrEmptySession = errors.New("pipeline: session has no counted vehicles")

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithClock replaces the wall clock, for tests.
func WithClock(c timeutil.Clock) Option {
	return func(p *Pipeline) { p.clock = c }
}

// WithStore enables session persistence to the given database.
func WithStore(store *db.DB) Option {
	return func(p *Pipeline) { p.store = store }
}

// WithCSV enables session persistence to a CSV file at path.
func WithCSV(path string) Option {
	return func(p *Pipeline) { p.csvPath = path }
}

// WithMinConfidence sets the detection confidence floor.
func WithMinConfidence(c float64) Option {
	return func(p *Pipeline) { p.minConfidence = c }
}

// Pipeline connects a detection stream to a tracker and tracks session
// metadata (id, source, start time, frames processed).
type Pipeline struct {
	mu      sync.RWMutex
	tracker *track.Tracker
	last    track.Snapshot

	sessionID    string
	source       string
	sessionStart time.Time
	frames       int64

	clock         timeutil.Clock
	store         *db.DB
	csvPath       string
	minConfidence float64
}

// New creates a pipeline for the given tracker and source descriptor
// ("Live Camera", "Video File", a fixture path, ...).
func New(tracker *track.Tracker, source string, opts ...Option) *Pipeline {
	p := &Pipeline{
		tracker: tracker,
		source:  source,
		clock:   timeutil.NewRealClock(),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.sessionID = uuid.NewString()
	p.sessionStart = p.clock.Now()
	p.last = tracker.Snapshot()
	return p
}

// Run consumes the stream until it ends (io.EOF) or ctx is cancelled.
// Each frame's detections are confidence-filtered and fed to the tracker.
func (p *Pipeline) Run(ctx context.Context, stream detect.Stream) error {
	for {
		frame, err := stream.Next(ctx)
		if err != nil {
			if errors.Is(err, io.EOF) {
				monitoring.Logf("detection stream ended after %d frames", p.Frames())
				return nil
			}
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return err
			}
			return err
		}
		p.process(frame)
	}
}

// process runs one frame through the tracker under the writer lock.
func (p *Pipeline) process(frame detect.Frame) {
	dets := detect.Filter(frame.Detections, p.minConfidence)
	p.mu.Lock()
	p.last = p.tracker.Update(dets)
	p.frames++
	p.mu.Unlock()
}

// Snapshot returns the most recent tracker snapshot.
func (p *Pipeline) Snapshot() track.Snapshot {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.last
}

// Frames returns the number of frames processed this session.
func (p *Pipeline) Frames() int64 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.frames
}

// Source returns the session source descriptor.
func (p *Pipeline) Source() string { return p.source }

// SessionID returns the session's uuid.
func (p *Pipeline) SessionID() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.sessionID
}

// Reset clears all tracks and counters and starts a fresh session.
// Idempotent.
func (p *Pipeline) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.tracker.Reset()
	p.last = p.tracker.Snapshot()
	p.sessionID = uuid.NewString()
	p.sessionStart = p.clock.Now()
	p.frames = 0
}

// SaveSession finalizes the current counters into a session row, persists
// it to the configured store and CSV file, and returns it. The tracker
// state is left untouched; call Reset to begin a new session.
func (p *Pipeline) SaveSession(ctx context.Context) (db.Session, error) {
	p.mu.RLock()
	snap := p.last
	s := db.Session{
		ID:          p.sessionID,
		SavedAt:     p.clock.Now(),
		Source:      p.source,
		Duration:    p.clock.Since(p.sessionStart).Truncate(time.Second),
		Cars:        snap.Counts[track.ClassCar],
		Motorcycles: snap.Counts[track.ClassMotorcycle],
		Buses:       snap.Counts[track.ClassBus],
		Trucks:      snap.Counts[track.ClassTruck],
		Total:       snap.Total,
	}
	p.mu.RUnlock()

	if s.Total == 0 {
		return db.Session{}, ErrEmptySession
	}
	if p.store != nil {
		if err := p.store.RecordSession(ctx, s); err != nil {
			return db.Session{}, err
		}
	}
	if p.csvPath != "" {
		if err := report.AppendSessionCSV(p.csvPath, s); err != nil {
			return db.Session{}, err
		}
	}
	monitoring.Logf("saved session %s: %d vehicles over %s", s.ID, s.Total, s.Duration)
	return s, nil
}
