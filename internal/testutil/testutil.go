// Package testutil provides shared test utilities and fixtures.
package testutil

import (
	"testing"

	"github.com/roadmetrics/trafficwatch/internal/track"
)

// AssertStatusCode checks that the response status code matches expected.
func AssertStatusCode(t *testing.T, got, want int) {
	t.Helper()
	if got != want {
		t.Errorf("status code = %d, want %d", got, want)
	}
}

// AssertNoError fails the test if err is not nil.
func AssertNoError(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// AssertError fails the test if err is nil.
func AssertError(t *testing.T, err error) {
	t.Helper()
	if err == nil {
		t.Fatal("expected error, got nil")
	}
}

// Det builds a square detection of the given class centered at (x, y).
func Det(class track.Class, x, y float64) track.Detection {
	return track.Detection{
		Box:        track.Box{X1: x - 20, Y1: y - 20, X2: x + 20, Y2: y + 20},
		Class:      class,
		Confidence: 0.9,
	}
}
