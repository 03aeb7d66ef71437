package detect

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
)

// FixtureStream replays frames from JSON-lines data, one Frame object per
// line. Blank lines are skipped. Used by dev mode and the replay tool in
// place of a live oracle.
type FixtureStream struct {
	scanner *bufio.Scanner
	closer  io.Closer
	line    int
}

// NewFixtureStream reads frames from r.
func NewFixtureStream(r io.Reader) *FixtureStream {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	return &FixtureStream{scanner: sc}
}

// OpenFixture opens a JSON-lines fixture file. Close releases the file.
func OpenFixture(path string) (*FixtureStream, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open fixture file: %w", err)
	}
	s := NewFixtureStream(f)
	s.closer = f
	return s, nil
}

// Next returns the next frame, or io.EOF at end of input.
func (s *FixtureStream) Next(ctx context.Context) (Frame, error) {
	for {
		if err := ctx.Err(); err != nil {
			return Frame{}, err
		}
		if !s.scanner.Scan() {
			if err := s.scanner.Err(); err != nil {
				return Frame{}, fmt.Errorf("fixture read failed at line %d: %w", s.line, err)
			}
			return Frame{}, io.EOF
		}
		s.line++
		raw := bytes.TrimSpace(s.scanner.Bytes())
		if len(raw) == 0 {
			continue
		}
		var f Frame
		if err := json.Unmarshal(raw, &f); err != nil {
			return Frame{}, fmt.Errorf("fixture line %d: %w", s.line, err)
		}
		if f.Index == 0 {
			f.Index = int64(s.line)
		}
		return f, nil
	}
}

// Close releases the underlying file, if any.
func (s *FixtureStream) Close() error {
	if s.closer != nil {
		return s.closer.Close()
	}
	return nil
}
