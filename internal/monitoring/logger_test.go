package monitoring

import "testing"

func TestSetLogger(t *testing.T) {
	original := Logf
	defer func() { Logf = original }()

	called := false
	SetLogger(func(format string, v ...interface{}) { called = true })
	Logf("count event")
	if !called {
		t.Error("custom logger was not called")
	}

	// nil installs a no-op logger; it must not panic.
	SetLogger(nil)
	Logf("dropped")
}
