// Package detect delivers per-frame detection sets from an external
// detection oracle to the tracking pipeline. The oracle itself (the model)
// is out of scope: this package only transports, validates, and
// frame-skip-filters its output.
package detect

import (
	"context"
	"time"

	"github.com/roadmetrics/trafficwatch/internal/track"
)

// Frame is one processed frame's worth of detections.
type Frame struct {
	Index      int64             `json:"frame"`
	Time       time.Time         `json:"time,omitempty"`
	Detections []track.Detection `json:"detections"`
}

// Stream produces an ordered sequence of frames. Next blocks until a frame
// is available, the stream ends (io.EOF), or the context is cancelled.
type Stream interface {
	Next(ctx context.Context) (Frame, error)
}

// Filter drops detections the tracker must never see: degenerate boxes,
// labels outside the vehicle taxonomy, and confidences below minConfidence.
func Filter(dets []track.Detection, minConfidence float64) []track.Detection {
	out := dets[:0:0]
	for _, d := range dets {
		if d.Valid() && d.Confidence >= minConfidence {
			out = append(out, d)
		}
	}
	return out
}

// skipStream passes through every Kth frame from the inner stream.
type skipStream struct {
	inner Stream
	k     int
	seen  int64
}

// SkipFrames wraps a stream so that only every Kth frame is delivered.
// K <= 1 returns the stream unchanged.
func SkipFrames(s Stream, k int) Stream {
	if k <= 1 {
		return s
	}
	return &skipStream{inner: s, k: k}
}

func (s *skipStream) Next(ctx context.Context) (Frame, error) {
	for {
		f, err := s.inner.Next(ctx)
		if err != nil {
			return Frame{}, err
		}
		s.seen++
		if (s.seen-1)%int64(s.k) == 0 {
			return f, nil
		}
	}
}
