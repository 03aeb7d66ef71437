package track

// Track represents one physical vehicle observed across consecutive
// processed frames. Identity is a monotonically increasing integer assigned
// at creation and never reused. The class label is fixed at creation.
type Track struct {
	ID    int64
	Class Class

	// Centroid and Box hold the most recent matched observation.
	Centroid Point
	Box      Box

	// History is a bounded window of recent centroids, oldest first.
	History []Point

	// Hits counts consecutive matched updates; Missed counts consecutive
	// updates without a match. A match resets Missed, a miss resets Hits.
	Hits   int
	Missed int

	// Stationary counts consecutive matched updates whose history
	// displacement stayed at or below the movement threshold.
	Stationary int

	// Parked is set once Stationary exceeds the parked-frame threshold and
	// cleared the first time displacement exceeds the movement threshold.
	Parked bool

	// Moved records whether the track has ever exceeded the movement
	// threshold. Used by the movement counting policy.
	Moved bool

	// TotalMovement accumulates per-update centroid displacement.
	TotalMovement float64

	// Counted transitions false to true exactly once, when the counting
	// policy accepts the track, and never reverts.
	Counted bool
}

// displacement returns the distance between the oldest and newest centroid
// in the history window. Zero when fewer than two samples exist.
func (t *Track) displacement() float64 {
	if len(t.History) < 2 {
		return 0
	}
	return Distance(t.History[0], t.History[len(t.History)-1])
}

// observe records a matched observation: the centroid is appended to the
// bounded history and the staleness counter is cleared.
func (t *Track) observe(d Detection, historyLen int) float64 {
	c := d.Box.Centroid()
	step := Distance(t.Centroid, c)
	t.Centroid = c
	t.Box = d.Box
	t.History = append(t.History, c)
	if historyLen > 0 && len(t.History) > historyLen {
		t.History = t.History[1:]
	}
	t.Hits++
	t.Missed = 0
	t.TotalMovement += step
	return step
}

// View is the read-only, copyable projection of a track exposed through
// snapshots for rendering.
type View struct {
	ID       int64  `json:"id"`
	Class    Class  `json:"class"`
	Centroid Point  `json:"centroid"`
	Box      Box    `json:"box"`
	Parked   bool   `json:"parked"`
	Counted  bool   `json:"counted"`
	Hits     int    `json:"hits"`
	Missed   int    `json:"missed"`
	Color    Color  `json:"color"`
}

func (t *Track) view() View {
	color := DisplayColor(t.Class)
	if t.Parked {
		color = ParkedColor
	}
	return View{
		ID:       t.ID,
		Class:    t.Class,
		Centroid: t.Centroid,
		Box:      t.Box,
		Parked:   t.Parked,
		Counted:  t.Counted,
		Hits:     t.Hits,
		Missed:   t.Missed,
		Color:    color,
	}
}
