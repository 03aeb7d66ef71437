package track

// Class identifies the vehicle taxonomy produced by the detection model.
// The set is closed: detections carrying any other label are discarded
// before they reach the tracker.
type Class string

const (
	ClassCar        Class = "car"
	ClassMotorcycle Class = "motorcycle"
	ClassBus        Class = "bus"
	ClassTruck      Class = "truck"
)

// Classes lists every recognised vehicle class in canonical order. The
// order matches the session CSV column layout.
var Classes = []Class{ClassCar, ClassMotorcycle, ClassBus, ClassTruck}

// ParseClass maps a raw model label to a Class. ok is false for labels
// outside the vehicle taxonomy.
func ParseClass(label string) (Class, bool) {
	switch Class(label) {
	case ClassCar, ClassMotorcycle, ClassBus, ClassTruck:
		return Class(label), true
	}
	return "", false
}

// Color is an RGB display color for annotating rendered frames.
type Color struct {
	R, G, B uint8
}

// classColors maps each class to its display color. ParkedColor is used
// instead when a track is flagged parked.
var classColors = map[Class]Color{
	ClassCar:        {0, 255, 0},
	ClassMotorcycle: {0, 0, 255},
	ClassBus:        {255, 0, 0},
	ClassTruck:      {0, 255, 255},
}

// ParkedColor is the display color for parked tracks regardless of class.
var ParkedColor = Color{128, 128, 128}

// DisplayColor returns the annotation color for a class. Unknown classes
// render in the parked grey.
func DisplayColor(c Class) Color {
	if col, ok := classColors[c]; ok {
		return col
	}
	return ParkedColor
}

// matchCompat is the matching-compatibility table: a detection may only be
// associated with a track whose class appears in the detection class's row.
// Today every class matches only itself; the table exists so near-classes
// (e.g. bus/truck from a noisy model) can be made compatible without
// touching association code.
var matchCompat = map[Class][]Class{
	ClassCar:        {ClassCar},
	ClassMotorcycle: {ClassMotorcycle},
	ClassBus:        {ClassBus},
	ClassTruck:      {ClassTruck},
}

// Compatible reports whether a detection of class d may be matched to a
// track of class t.
func Compatible(d, t Class) bool {
	for _, c := range matchCompat[d] {
		if c == t {
			return true
		}
	}
	return false
}
