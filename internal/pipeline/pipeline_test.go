package pipeline

import (
	"context"
	"encoding/csv"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roadmetrics/trafficwatch/internal/db"
	"github.com/roadmetrics/trafficwatch/internal/detect"
	"github.com/roadmetrics/trafficwatch/internal/timeutil"
	"github.com/roadmetrics/trafficwatch/internal/track"
)

func newTestTracker() *track.Tracker {
	cfg := track.DefaultConfig()
	cfg.Policy = track.ConfirmPolicy{Frames: 2}
	return track.New(cfg)
}

func carFrame(index int64, x float64) detect.Frame {
	return detect.Frame{
		Index: index,
		Detections: []track.Detection{{
			Box:        track.Box{X1: x - 20, Y1: 80, X2: x + 20, Y2: 120},
			Class:      track.ClassCar,
			Confidence: 0.9,
		}},
	}
}

func runFrames(t *testing.T, p *Pipeline, frames ...detect.Frame) {
	t.Helper()
	s := detect.NewChanStream(len(frames))
	for _, f := range frames {
		require.NoError(t, s.Push(f))
	}
	require.NoError(t, s.Close())
	require.NoError(t, p.Run(context.Background(), s))
}

func TestRunCountsVehicles(t *testing.T) {
	p := New(newTestTracker(), "Video File")
	runFrames(t, p, carFrame(1, 100), carFrame(2, 130), carFrame(3, 160))

	snap := p.Snapshot()
	assert.Equal(t, 1, snap.Counts[track.ClassCar])
	assert.Equal(t, 1, snap.Total)
	assert.EqualValues(t, 3, p.Frames())
}

func TestRunFiltersLowConfidence(t *testing.T) {
	p := New(newTestTracker(), "Video File", WithMinConfidence(0.5))

	f := carFrame(1, 100)
	f.Detections[0].Confidence = 0.4
	runFrames(t, p, f)

	assert.Empty(t, p.Snapshot().Tracks)
}

func TestRunStopsOnContextCancel(t *testing.T) {
	p := New(newTestTracker(), "Live Camera")
	s := detect.NewChanStream(1)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- p.Run(ctx, s) }()
	cancel()

	select {
	case err := <-done:
		assert.True(t, errors.Is(err, context.Canceled))
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancellation")
	}
}

func TestReset(t *testing.T) {
	p := New(newTestTracker(), "Video File")
	runFrames(t, p, carFrame(1, 100), carFrame(2, 130))
	require.Equal(t, 1, p.Snapshot().Total)

	before := p.SessionID()
	p.Reset()

	snap := p.Snapshot()
	assert.Zero(t, snap.Total)
	assert.Empty(t, snap.Tracks)
	assert.Zero(t, p.Frames())
	assert.NotEqual(t, before, p.SessionID(), "reset must start a new session id")
}

func TestSaveSessionEmpty(t *testing.T) {
	p := New(newTestTracker(), "Video File")
	_, err := p.SaveSession(context.Background())
	assert.ErrorIs(t, err, ErrEmptySession)
}

func TestSaveSession(t *testing.T) {
	store, err := db.NewDB(filepath.Join(t.TempDir(), "sessions.db"))
	require.NoError(t, err)
	defer store.Close()
	csvPath := filepath.Join(t.TempDir(), "sessions.csv")

	clock := timeutil.NewFakeClock(time.Date(2026, 8, 26, 10, 0, 0, 0, time.UTC))
	p := New(newTestTracker(), "camera-1",
		WithStore(store), WithCSV(csvPath), WithClock(clock))

	runFrames(t, p, carFrame(1, 100), carFrame(2, 130))
	clock.Advance(95 * time.Second)

	s, err := p.SaveSession(context.Background())
	require.NoError(t, err)
	assert.Equal(t, p.SessionID(), s.ID)
	assert.Equal(t, "camera-1", s.Source)
	assert.Equal(t, 95*time.Second, s.Duration)
	assert.Equal(t, 1, s.Cars)
	assert.Equal(t, 1, s.Total)

	// Session row persisted.
	sessions, err := store.ListSessions(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.Equal(t, s.ID, sessions[0].ID)

	// CSV ledger row appended after the header.
	f, err := os.Open(csvPath)
	require.NoError(t, err)
	defer f.Close()
	records, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "camera-1", records[1][1])
	assert.Equal(t, "00:01:35", records[1][2])

	// Saving leaves tracker state intact; a second save duplicates the
	// session id and must fail against the primary key.
	_, err = p.SaveSession(context.Background())
	assert.Error(t, err)
}
