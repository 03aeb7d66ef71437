package track

import (
	"sort"

	"github.com/roadmetrics/trafficwatch/internal/config"
	"github.com/roadmetrics/trafficwatch/internal/monitoring"
)

// Constants for tracker configuration
const (
	// DefaultDistanceThreshold is the association gate in pixels.
	DefaultDistanceThreshold = 150.0
	// DefaultMovementThreshold is the displacement (pixels) below which a
	// track is considered stationary for one update.
	DefaultMovementThreshold = 15.0
	// DefaultMaxMissed is how many consecutive missed updates a track
	// survives before deletion.
	DefaultMaxMissed = 45
	// DefaultParkedAfter is how many consecutive stationary updates flip a
	// track to parked.
	DefaultParkedAfter = 200
	// DefaultHistoryLength bounds the per-track centroid history window.
	DefaultHistoryLength = 32
	// DefaultConfirmFrames is the consecutive-match count required by the
	// default counting policy.
	DefaultConfirmFrames = 3
	// ReacquireFactor widens the association gate when re-attaching a
	// detection to a recently missed track.
	ReacquireFactor = 1.5
)

// Config holds tuning parameters for the tracker.
type Config struct {
	DistanceThreshold float64     // Association gate (pixels)
	MovementThreshold float64     // Stationary displacement bound (pixels)
	MaxMissed         int         // Consecutive misses before deletion
	ParkedAfter       int         // Stationary updates before parked
	HistoryLength     int         // Centroid history window
	CountParked       bool        // Whether parked tracks may be counted
	Policy            CountPolicy // Counting predicate
}

// DefaultConfig returns the stock tracker configuration.
func DefaultConfig() Config {
	return Config{
		DistanceThreshold: DefaultDistanceThreshold,
		MovementThreshold: DefaultMovementThreshold,
		MaxMissed:         DefaultMaxMissed,
		ParkedAfter:       DefaultParkedAfter,
		HistoryLength:     DefaultHistoryLength,
		CountParked:       true,
		Policy:            ConfirmPolicy{Frames: DefaultConfirmFrames},
	}
}

// ConfigFromTuning derives a tracker Config from the tuning file. Frame
// skipping changes what "consecutive" means, so the staleness budget is
// divided by the skip interval and the association gate is widened to cover
// the larger inter-frame motion.
func ConfigFromTuning(cfg *config.TuningConfig) Config {
	k := cfg.GetSkipFrames()
	maxMissed := cfg.GetMaxMissedFrames() / k
	if maxMissed < 1 {
		maxMissed = 1
	}
	c := Config{
		DistanceThreshold: cfg.GetDistanceThreshold() * (1 + float64(k-1)*0.2),
		MovementThreshold: cfg.GetMovementThreshold(),
		MaxMissed:         maxMissed,
		ParkedAfter:       cfg.GetParkedFrameThreshold(),
		HistoryLength:     cfg.GetHistoryLength(),
		CountParked:       cfg.GetCountParked(),
	}
	switch cfg.GetCountingPolicy() {
	case "movement":
		c.Policy = MovementPolicy{}
	case "line":
		line := cfg.GetCountLine()
		c.Policy = LinePolicy{
			Line:    Line{X1: line[0], Y1: line[1], X2: line[2], Y2: line[3]},
			Confirm: cfg.GetConfirmFrames(),
		}
	default:
		c.Policy = ConfirmPolicy{Frames: cfg.GetConfirmFrames()}
	}
	return c
}

// Snapshot is the tracker's externally visible state: live tracks for
// rendering, cumulative per-class counters, and the IDs counted by the
// Update call that produced it.
type Snapshot struct {
	Tracks       []View        `json:"tracks"`
	Counts       map[Class]int `json:"counts"`
	Total        int           `json:"total"`
	NewlyCounted []int64       `json:"newly_counted,omitempty"`
}

// Tracker maintains persistent per-vehicle tracks and cumulative per-class
// counts over one monitoring session.
//
// The tracker performs no internal locking: it must be driven by a single
// logical sequence of Update/Reset calls, with Snapshot safe to interleave
// from the same caller. Callers that parallelize frame production are
// responsible for serializing access.
type Tracker struct {
	tracks map[int64]*Track
	nextID int64
	counts map[Class]int
	cfg    Config
}

// New creates a tracker with the given configuration. A nil counting policy
// falls back to the default confirm policy.
func New(cfg Config) *Tracker {
	if cfg.Policy == nil {
		cfg.Policy = ConfirmPolicy{Frames: DefaultConfirmFrames}
	}
	return &Tracker{
		tracks: make(map[int64]*Track),
		nextID: 1,
		counts: make(map[Class]int),
		cfg:    cfg,
	}
}

// Config returns the active tracker configuration.
func (t *Tracker) Config() Config { return t.cfg }

// Update consumes one frame's detection set and advances all track state.
// It runs in time proportional to (live tracks × detections), performs no
// I/O, and never fails: invalid detections are dropped and an empty set is
// the normal empty-frame case.
func (t *Tracker) Update(detections []Detection) Snapshot {
	valid := detections[:0:0]
	for _, d := range detections {
		if d.Valid() {
			valid = append(valid, d)
		}
	}

	// Step 1: greedy ascending-distance association inside the gate.
	matched := t.associate(valid, t.cfg.DistanceThreshold, nil)

	// Step 2: re-acquisition — unmatched detections may re-attach to a
	// recently missed track within a widened gate before spawning new IDs.
	matched = t.associate(valid, t.cfg.DistanceThreshold*ReacquireFactor, matched)

	// Step 3: update matched tracks and evaluate the counting predicate,
	// in detection order for deterministic counting.
	var newly []int64
	matchedTracks := make(map[int64]bool, len(matched))
	order := make([]int, 0, len(matched))
	for di := range matched {
		order = append(order, di)
	}
	sort.Ints(order)
	for _, di := range order {
		tr := matched[di]
		prev := tr.Centroid
		tr.observe(valid[di], t.cfg.HistoryLength)
		matchedTracks[tr.ID] = true

		if tr.displacement() > t.cfg.MovementThreshold {
			tr.Stationary = 0
			tr.Parked = false
			tr.Moved = true
		} else {
			tr.Stationary++
			if tr.Stationary >= t.cfg.ParkedAfter {
				tr.Parked = true
			}
		}

		if !tr.Counted && (t.cfg.CountParked || !tr.Parked) && t.cfg.Policy.ShouldCount(tr, prev) {
			tr.Counted = true
			t.counts[tr.Class]++
			newly = append(newly, tr.ID)
			monitoring.Logf("counted %s (track %d), session total for class now %d",
				tr.Class, tr.ID, t.counts[tr.Class])
		}
	}

	// Step 4: age out unmatched tracks.
	for id, tr := range t.tracks {
		if matchedTracks[id] {
			continue
		}
		tr.Missed++
		tr.Hits = 0
		if tr.Missed > t.cfg.MaxMissed {
			delete(t.tracks, id)
		}
	}

	// Step 5: spawn tracks for detections that matched nothing.
	claimed := make(map[int]bool, len(matched))
	for di := range matched {
		claimed[di] = true
	}
	for di, d := range valid {
		if !claimed[di] {
			t.spawn(d)
		}
	}

	snap := t.snapshot()
	snap.NewlyCounted = newly
	return snap
}

// associate greedily matches detections to live tracks in ascending
// distance order inside the given gate. Tracks and detections already
// claimed in prior (passed in via matched) are skipped; only tracks with
// Missed > 0 are eligible when matched is non-nil (the re-acquisition
// pass). The returned map extends matched.
func (t *Tracker) associate(detections []Detection, gate float64, matched map[int]*Track) map[int]*Track {
	reacquire := matched != nil
	if matched == nil {
		matched = make(map[int]*Track)
	}
	claimedTracks := make(map[int64]bool, len(matched))
	for _, tr := range matched {
		claimedTracks[tr.ID] = true
	}

	type candidate struct {
		dist  float64
		det   int
		track *Track
	}
	var cands []candidate
	for di, d := range detections {
		if _, ok := matched[di]; ok {
			continue
		}
		c := d.Box.Centroid()
		for _, tr := range t.tracks {
			if claimedTracks[tr.ID] || !Compatible(d.Class, tr.Class) {
				continue
			}
			if reacquire && tr.Missed == 0 {
				continue
			}
			if dist := Distance(c, tr.Centroid); dist <= gate {
				cands = append(cands, candidate{dist, di, tr})
			}
		}
	}

	// Ascending distance, with deterministic tie-breaking on IDs.
	sort.Slice(cands, func(i, j int) bool {
		if cands[i].dist != cands[j].dist {
			return cands[i].dist < cands[j].dist
		}
		if cands[i].track.ID != cands[j].track.ID {
			return cands[i].track.ID < cands[j].track.ID
		}
		return cands[i].det < cands[j].det
	})

	for _, c := range cands {
		if _, taken := matched[c.det]; taken || claimedTracks[c.track.ID] {
			continue
		}
		matched[c.det] = c.track
		claimedTracks[c.track.ID] = true
	}
	return matched
}

// spawn registers a new track for an unmatched detection.
func (t *Tracker) spawn(d Detection) *Track {
	c := d.Box.Centroid()
	tr := &Track{
		ID:       t.nextID,
		Class:    d.Class,
		Centroid: c,
		Box:      d.Box,
		History:  []Point{c},
		Hits:     1,
		// A single observation is trivially stationary.
		Stationary: 1,
	}
	t.nextID++
	t.tracks[tr.ID] = tr
	return tr
}

// Reset clears all tracks and zeroes the cumulative counters. Idempotent.
// Track IDs are not reused across a reset within the process lifetime.
func (t *Tracker) Reset() {
	t.tracks = make(map[int64]*Track)
	t.counts = make(map[Class]int)
}

// Snapshot returns the current state without side effects. Calling it twice
// without an intervening Update yields equal results.
func (t *Tracker) Snapshot() Snapshot {
	return t.snapshot()
}

func (t *Tracker) snapshot() Snapshot {
	views := make([]View, 0, len(t.tracks))
	for _, tr := range t.tracks {
		views = append(views, tr.view())
	}
	sort.Slice(views, func(i, j int) bool { return views[i].ID < views[j].ID })

	counts := make(map[Class]int, len(Classes))
	total := 0
	for _, c := range Classes {
		counts[c] = t.counts[c]
		total += t.counts[c]
	}
	return Snapshot{Tracks: views, Counts: counts, Total: total}
}
