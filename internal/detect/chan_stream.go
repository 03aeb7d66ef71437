package detect

import (
	"context"
	"errors"
	"io"
	"sync"
)

// ErrStreamClosed is returned by Push after Close.
var ErrStreamClosed = errors.New("detect: stream closed")

// ChanStream is an in-process stream fed by Push. The HTTP ingest endpoint
// pushes frames from an external oracle; the pipeline consumes them via
// Next. Push drops the oldest pending frame when the buffer is full so a
// stalled consumer never blocks the producer.
type ChanStream struct {
	mu     sync.Mutex
	ch     chan Frame
	closed bool
}

// NewChanStream creates a stream buffering up to capacity pending frames.
func NewChanStream(capacity int) *ChanStream {
	if capacity < 1 {
		capacity = 1
	}
	return &ChanStream{ch: make(chan Frame, capacity)}
}

// Push enqueues a frame, evicting the oldest pending frame if full.
func (s *ChanStream) Push(f Frame) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrStreamClosed
	}
	for {
		select {
		case s.ch <- f:
			return nil
		default:
			select {
			case <-s.ch: // evict oldest
			default:
			}
		}
	}
}

// Close ends the stream; Next returns io.EOF after pending frames drain.
func (s *ChanStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.ch)
	}
	return nil
}

// Next blocks for the next pushed frame.
func (s *ChanStream) Next(ctx context.Context) (Frame, error) {
	select {
	case f, ok := <-s.ch:
		if !ok {
			return Frame{}, io.EOF
		}
		return f, nil
	case <-ctx.Done():
		return Frame{}, ctx.Err()
	}
}
