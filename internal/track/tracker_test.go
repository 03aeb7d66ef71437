package track

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/roadmetrics/trafficwatch/internal/config"
)

// det builds a square detection of the given class centered at (x, y).
func det(class Class, x, y float64) Detection {
	return Detection{
		Box:        Box{X1: x - 20, Y1: y - 20, X2: x + 20, Y2: y + 20},
		Class:      class,
		Confidence: 0.9,
	}
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.MaxMissed = 3
	cfg.ParkedAfter = 5
	cfg.Policy = ConfirmPolicy{Frames: 3}
	return cfg
}

func TestNewTracker(t *testing.T) {
	tracker := New(testConfig())
	snap := tracker.Snapshot()

	if len(snap.Tracks) != 0 {
		t.Errorf("expected no tracks, got %d", len(snap.Tracks))
	}
	if snap.Total != 0 {
		t.Errorf("expected zero total, got %d", snap.Total)
	}
	for _, c := range Classes {
		if snap.Counts[c] != 0 {
			t.Errorf("expected zero count for %s, got %d", c, snap.Counts[c])
		}
	}
}

func TestUpdate_SpawnsTrack(t *testing.T) {
	tracker := New(testConfig())
	snap := tracker.Update([]Detection{det(ClassCar, 100, 100)})

	if len(snap.Tracks) != 1 {
		t.Fatalf("expected 1 track, got %d", len(snap.Tracks))
	}
	tr := snap.Tracks[0]
	if tr.ID != 1 {
		t.Errorf("expected first track ID 1, got %d", tr.ID)
	}
	if tr.Class != ClassCar {
		t.Errorf("expected class car, got %s", tr.Class)
	}
	if tr.Counted {
		t.Error("new track must not be counted yet")
	}
	if tr.Parked {
		t.Error("new track must not be parked")
	}
	if got := (Point{100, 100}); tr.Centroid != got {
		t.Errorf("centroid = %+v, want %+v", tr.Centroid, got)
	}
}

func TestUpdate_EmptyDetectionsIsNormal(t *testing.T) {
	tracker := New(testConfig())
	tracker.Update([]Detection{det(ClassCar, 100, 100)})

	// Empty frames are the normal case, never an error.
	snap := tracker.Update(nil)
	if len(snap.Tracks) != 1 {
		t.Fatalf("track should survive one empty frame, got %d tracks", len(snap.Tracks))
	}
	if snap.Tracks[0].Missed != 1 {
		t.Errorf("missed = %d, want 1", snap.Tracks[0].Missed)
	}
}

func TestUpdate_InvalidDetectionsIgnored(t *testing.T) {
	tracker := New(testConfig())
	snap := tracker.Update([]Detection{
		{Box: Box{X1: 10, Y1: 10, X2: 10, Y2: 50}, Class: ClassCar, Confidence: 0.9},   // zero area
		{Box: Box{X1: 50, Y1: 50, X2: 10, Y2: 10}, Class: ClassCar, Confidence: 0.9},   // negative area
		{Box: Box{X1: 0, Y1: 0, X2: 40, Y2: 40}, Class: "person", Confidence: 0.9},     // unknown class
	})
	if len(snap.Tracks) != 0 {
		t.Errorf("invalid detections must never spawn tracks, got %d", len(snap.Tracks))
	}
}

func TestUpdate_MatchingIsExclusive(t *testing.T) {
	// Two detections near one track: only one may claim it, the other
	// spawns a new track.
	tracker := New(testConfig())
	tracker.Update([]Detection{det(ClassCar, 100, 100)})

	snap := tracker.Update([]Detection{det(ClassCar, 105, 100), det(ClassCar, 120, 100)})
	if len(snap.Tracks) != 2 {
		t.Fatalf("expected 2 tracks, got %d", len(snap.Tracks))
	}
	// The closer detection keeps the original ID.
	if snap.Tracks[0].ID != 1 || snap.Tracks[0].Centroid.X != 105 {
		t.Errorf("track 1 should have matched the closer detection, got %+v", snap.Tracks[0])
	}
	if snap.Tracks[1].ID != 2 {
		t.Errorf("second detection should spawn track 2, got %d", snap.Tracks[1].ID)
	}
}

func TestUpdate_ClassGatesMatching(t *testing.T) {
	// A bus and a truck stay separate tracks even when their centroids
	// drift within the distance threshold.
	tracker := New(testConfig())
	tracker.Update([]Detection{det(ClassBus, 100, 100), det(ClassTruck, 600, 100)})

	positions := [][2]float64{{200, 100}, {500, 100}, {300, 100}, {400, 100}, {340, 100}, {360, 100}}
	for i := 0; i+1 < len(positions); i += 2 {
		snap := tracker.Update([]Detection{
			det(ClassBus, positions[i][0], positions[i][1]),
			det(ClassTruck, positions[i+1][0], positions[i+1][1]),
		})
		if len(snap.Tracks) != 2 {
			t.Fatalf("expected 2 tracks, got %d", len(snap.Tracks))
		}
		for _, tr := range snap.Tracks {
			switch tr.ID {
			case 1:
				if tr.Class != ClassBus {
					t.Errorf("track 1 class = %s, want bus", tr.Class)
				}
			case 2:
				if tr.Class != ClassTruck {
					t.Errorf("track 2 class = %s, want truck", tr.Class)
				}
			default:
				t.Errorf("unexpected track ID %d: cross-class matching leaked", tr.ID)
			}
		}
	}
}

func TestUpdate_StaleTrackDeleted(t *testing.T) {
	cfg := testConfig()
	cfg.MaxMissed = 2
	tracker := New(cfg)
	tracker.Update([]Detection{det(ClassCar, 100, 100)})

	// Missing for MaxMissed updates: still alive.
	tracker.Update(nil)
	snap := tracker.Update(nil)
	if len(snap.Tracks) != 1 {
		t.Fatalf("track deleted too early")
	}
	// One more miss exceeds the budget.
	snap = tracker.Update(nil)
	if len(snap.Tracks) != 0 {
		t.Fatalf("stale track should be deleted, got %d tracks", len(snap.Tracks))
	}
}

func TestUpdate_NewIDAfterStaleness(t *testing.T) {
	// Vehicle present 2 frames, gone past the staleness budget, then a
	// detection reappears nearby: new ID, independent counting lifecycle.
	cfg := testConfig()
	cfg.MaxMissed = 2
	cfg.Policy = ConfirmPolicy{Frames: 2}
	tracker := New(cfg)

	tracker.Update([]Detection{det(ClassCar, 100, 100)})
	snap := tracker.Update([]Detection{det(ClassCar, 104, 100)})
	if len(snap.NewlyCounted) != 1 {
		t.Fatalf("expected first lifecycle counted, got %v", snap.NewlyCounted)
	}

	for i := 0; i < cfg.MaxMissed+1; i++ {
		tracker.Update(nil)
	}
	if got := tracker.Snapshot(); len(got.Tracks) != 0 {
		t.Fatalf("expected stale track gone, got %d", len(got.Tracks))
	}

	tracker.Update([]Detection{det(ClassCar, 102, 100)})
	snap = tracker.Update([]Detection{det(ClassCar, 106, 100)})
	if len(snap.Tracks) != 1 || snap.Tracks[0].ID == 1 {
		t.Fatalf("reappearance must create a fresh track, got %+v", snap.Tracks)
	}
	if snap.Counts[ClassCar] != 2 {
		t.Errorf("two independent lifecycles should count twice, got %d", snap.Counts[ClassCar])
	}
}

func TestUpdate_Reacquisition(t *testing.T) {
	// A track missed for a frame re-attaches within the widened gate
	// instead of spawning a new ID.
	cfg := testConfig()
	cfg.DistanceThreshold = 50
	tracker := New(cfg)

	tracker.Update([]Detection{det(ClassCar, 100, 100)})
	tracker.Update(nil) // missed once

	// 60px away: outside the 50px gate, inside 1.5x.
	snap := tracker.Update([]Detection{det(ClassCar, 160, 100)})
	if len(snap.Tracks) != 1 {
		t.Fatalf("expected re-acquisition, got %d tracks", len(snap.Tracks))
	}
	if snap.Tracks[0].ID != 1 {
		t.Errorf("re-acquired track should keep ID 1, got %d", snap.Tracks[0].ID)
	}
}

func TestCountedIsMonotonic(t *testing.T) {
	tracker := New(testConfig())
	counted := make(map[int64]bool)

	for i := 0; i < 20; i++ {
		snap := tracker.Update([]Detection{det(ClassCar, float64(100+i*5), 100)})
		for _, tr := range snap.Tracks {
			if counted[tr.ID] && !tr.Counted {
				t.Fatalf("track %d counted flag reverted at update %d", tr.ID, i)
			}
			if tr.Counted {
				counted[tr.ID] = true
			}
		}
		if snap.Counts[ClassCar] > 1 {
			t.Fatalf("single vehicle counted more than once: %d", snap.Counts[ClassCar])
		}
	}
	if !counted[1] {
		t.Error("vehicle confirmed for 20 frames was never counted")
	}
}

func TestCountersNeverDecrease(t *testing.T) {
	tracker := New(testConfig())
	prev := 0
	for i := 0; i < 30; i++ {
		dets := []Detection{det(ClassCar, float64(100+i*10), 100)}
		if i%7 == 0 {
			dets = append(dets, det(ClassBus, 800, float64(100+i*10)))
		}
		snap := tracker.Update(dets)
		if snap.Total < prev {
			t.Fatalf("total decreased from %d to %d at update %d", prev, snap.Total, i)
		}
		prev = snap.Total
	}
}

func TestParkedScenario(t *testing.T) {
	// A car drifting 1px per update with MovementThreshold=15 and
	// ParkedAfter=5 parks after the 5th update and is counted exactly once
	// by the confirm policy.
	cfg := testConfig()
	cfg.MovementThreshold = 15
	cfg.ParkedAfter = 5
	cfg.Policy = ConfirmPolicy{Frames: 3}
	tracker := New(cfg)

	var snap Snapshot
	for i := 0; i < 10; i++ {
		snap = tracker.Update([]Detection{det(ClassCar, float64(100+i), 100)})
		tr := snap.Tracks[0]

		wantParked := i >= 4 // parked from the 5th update on
		if tr.Parked != wantParked {
			t.Errorf("update %d: parked = %v, want %v", i+1, tr.Parked, wantParked)
		}
		wantCount := 0
		if i >= 2 { // confirm policy counts at the 3rd consecutive match
			wantCount = 1
		}
		if snap.Counts[ClassCar] != wantCount {
			t.Errorf("update %d: car count = %d, want %d", i+1, snap.Counts[ClassCar], wantCount)
		}
	}
	if snap.Counts[ClassCar] != 1 {
		t.Errorf("final car count = %d, want 1", snap.Counts[ClassCar])
	}
}

func TestParkedTrackUnparksOnMovement(t *testing.T) {
	cfg := testConfig()
	cfg.ParkedAfter = 3
	tracker := New(cfg)

	for i := 0; i < 4; i++ {
		tracker.Update([]Detection{det(ClassCar, 100, 100)})
	}
	if snap := tracker.Snapshot(); !snap.Tracks[0].Parked {
		t.Fatal("track should be parked after sustained stillness")
	}

	snap := tracker.Update([]Detection{det(ClassCar, 200, 100)})
	if snap.Tracks[0].Parked {
		t.Error("track should unpark once displacement exceeds the threshold")
	}
}

func TestCountParkedToggle(t *testing.T) {
	cfg := testConfig()
	cfg.ParkedAfter = 2
	cfg.Policy = ConfirmPolicy{Frames: 5}
	cfg.CountParked = false
	tracker := New(cfg)

	// Stationary long enough to park before the confirm policy fires:
	// with CountParked off, the vehicle is never counted.
	for i := 0; i < 10; i++ {
		if snap := tracker.Update([]Detection{det(ClassCar, 100, 100)}); snap.Counts[ClassCar] != 0 {
			t.Fatalf("parked vehicle counted with CountParked disabled at update %d", i+1)
		}
	}
}

func TestReset(t *testing.T) {
	tracker := New(testConfig())
	for i := 0; i < 5; i++ {
		tracker.Update([]Detection{det(ClassCar, float64(100+20*i), 100)})
	}

	tracker.Reset()
	for i := 0; i < 3; i++ {
		snap := tracker.Snapshot()
		if len(snap.Tracks) != 0 || snap.Total != 0 {
			t.Fatalf("snapshot after reset: %d tracks, total %d", len(snap.Tracks), snap.Total)
		}
	}
	// Idempotent.
	tracker.Reset()
	if snap := tracker.Snapshot(); snap.Total != 0 {
		t.Errorf("double reset changed state: total %d", snap.Total)
	}
}

func TestSnapshotIdempotent(t *testing.T) {
	tracker := New(testConfig())
	for i := 0; i < 4; i++ {
		tracker.Update([]Detection{det(ClassCar, float64(100+20*i), 100), det(ClassBus, 700, 300)})
	}

	a := tracker.Snapshot()
	b := tracker.Snapshot()
	if diff := cmp.Diff(a, b); diff != "" {
		t.Errorf("back-to-back snapshots differ (-first +second):\n%s", diff)
	}
}

func TestSnapshotReportsNewlyCounted(t *testing.T) {
	cfg := testConfig()
	cfg.Policy = ConfirmPolicy{Frames: 2}
	tracker := New(cfg)

	tracker.Update([]Detection{det(ClassCar, 100, 100)})
	snap := tracker.Update([]Detection{det(ClassCar, 110, 100)})
	if len(snap.NewlyCounted) != 1 || snap.NewlyCounted[0] != 1 {
		t.Fatalf("newly counted = %v, want [1]", snap.NewlyCounted)
	}

	// Plain snapshots never carry newly-counted IDs.
	if snap := tracker.Snapshot(); len(snap.NewlyCounted) != 0 {
		t.Errorf("read-only snapshot carries newly counted IDs: %v", snap.NewlyCounted)
	}
}

func TestHistoryIsBounded(t *testing.T) {
	cfg := testConfig()
	cfg.HistoryLength = 4
	tracker := New(cfg)

	for i := 0; i < 10; i++ {
		tracker.Update([]Detection{det(ClassCar, float64(100+5*i), 100)})
	}
	for _, tr := range tracker.tracks {
		if len(tr.History) > 4 {
			t.Errorf("history length %d exceeds bound 4", len(tr.History))
		}
	}
}

func TestConfigFromTuningScalesForFrameSkip(t *testing.T) {
	// skip_frames=3 shrinks the staleness budget and widens the gate.
	skip := 3
	distance := 100.0
	missed := 45
	cfg := ConfigFromTuning(&config.TuningConfig{
		SkipFrames:        &skip,
		DistanceThreshold: &distance,
		MaxMissedFrames:   &missed,
	})
	if cfg.MaxMissed != 15 {
		t.Errorf("MaxMissed = %d, want 45/3 = 15", cfg.MaxMissed)
	}
	if want := 140.0; cfg.DistanceThreshold != want {
		t.Errorf("DistanceThreshold = %v, want %v", cfg.DistanceThreshold, want)
	}
	if _, ok := cfg.Policy.(ConfirmPolicy); !ok {
		t.Errorf("default policy = %T, want ConfirmPolicy", cfg.Policy)
	}
}
