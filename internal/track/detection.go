package track

import "math"

// Point is a 2D pixel position in frame coordinates.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Distance returns the Euclidean distance between two points.
func Distance(a, b Point) float64 {
	dx := a.X - b.X
	dy := a.Y - b.Y
	return math.Sqrt(dx*dx + dy*dy)
}

// Box is an axis-aligned bounding box (x1,y1 top-left, x2,y2 bottom-right)
// in frame pixel coordinates.
type Box struct {
	X1 float64 `json:"x1"`
	Y1 float64 `json:"y1"`
	X2 float64 `json:"x2"`
	Y2 float64 `json:"y2"`
}

// Centroid returns the box center point.
func (b Box) Centroid() Point {
	return Point{X: (b.X1 + b.X2) / 2, Y: (b.Y1 + b.Y2) / 2}
}

// Area returns the box area; degenerate boxes yield <= 0.
func (b Box) Area() float64 {
	return (b.X2 - b.X1) * (b.Y2 - b.Y1)
}

// Detection is one bounding-box observation produced by the external
// detection model for a single frame. Detections are transient: the tracker
// consumes them during Update and never retains them.
type Detection struct {
	Box        Box     `json:"box"`
	Class      Class   `json:"class"`
	Confidence float64 `json:"confidence"`
}

// Valid reports whether the detection is usable by the tracker: the class
// is in the vehicle taxonomy and the box has positive area. Invalid
// detections are silently discarded (they never spawn or match a track).
func (d Detection) Valid() bool {
	if _, ok := ParseClass(string(d.Class)); !ok {
		return false
	}
	return d.Box.Area() > 0
}
