package track

// CountPolicy decides the single update at which a track's vehicle is added
// to the cumulative totals. Policies are evaluated once per matched update
// while the track's Counted flag is still false.
type CountPolicy interface {
	// Name identifies the policy in configuration and diagnostics.
	Name() string

	// ShouldCount reports whether the track qualifies for counting now.
	// prev is the track centroid before this update's observation.
	ShouldCount(t *Track, prev Point) bool
}

// ConfirmPolicy counts a track once it has been matched for Frames
// consecutive updates. This is the default: it confirms the track is not
// sensor noise without requiring any scene geometry.
type ConfirmPolicy struct {
	Frames int
}

func (p ConfirmPolicy) Name() string { return "confirm" }

func (p ConfirmPolicy) ShouldCount(t *Track, _ Point) bool {
	return t.Hits >= p.Frames
}

// MovementPolicy counts a track the first time it shows real movement.
// Vehicles that never move (parked before the session started) are never
// counted under this policy.
type MovementPolicy struct{}

func (p MovementPolicy) Name() string { return "movement" }

func (p MovementPolicy) ShouldCount(t *Track, _ Point) bool {
	return t.Moved
}

// Line is a virtual counting line in frame pixel coordinates.
type Line struct {
	X1 float64 `json:"x1"`
	Y1 float64 `json:"y1"`
	X2 float64 `json:"x2"`
	Y2 float64 `json:"y2"`
}

// side returns the sign of the cross product placing p relative to the
// line: positive on one side, negative on the other, zero on the line.
func (l Line) side(p Point) float64 {
	return (l.X2-l.X1)*(p.Y-l.Y1) - (l.Y2-l.Y1)*(p.X-l.X1)
}

// LinePolicy counts a track the first time its centroid crosses the
// configured line between consecutive updates, once the track has at least
// Confirm consecutive matches. Crossing direction is not distinguished.
type LinePolicy struct {
	Line    Line
	Confirm int
}

func (p LinePolicy) Name() string { return "line" }

func (p LinePolicy) ShouldCount(t *Track, prev Point) bool {
	if t.Hits < p.Confirm {
		return false
	}
	before := p.Line.side(prev)
	after := p.Line.side(t.Centroid)
	return before*after < 0
}
