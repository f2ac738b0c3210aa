package journal

import "testing"

// TestLoggerHoldExtendsTheDiffWindowAcrossASubScope covers SPEC_FULL §4.5's
// Hold/Release capability: bracketing an inner sub-scope keeps the same
// diff window open (no early flush) until Release, and the enclosing
// Logger's Close still emits exactly one `set` record for everything that
// changed across the whole span.
func TestLoggerHoldExtendsTheDiffWindowAcrossASubScope(t *testing.T) {
	ctx := newTestContext()
	if err := ctx.Open(); err != nil {
		t.Fatalf("Open: %v", err)
	}
	w := newWidget(ctx, "alpha")
	ctx.clearDirty()

	lg := NewLogger(w)
	lg.Hold()
	w.name = "beta"
	lg.Release()
	w.name = "gamma"
	lg.Close()

	if !ctx.Dirty() {
		t.Fatalf("Dirty() = false after a Hold/Release-bracketed mutation, want true")
	}
	if w.name != "gamma" {
		t.Fatalf("name = %q, want %q", w.name, "gamma")
	}
}

// TestLoggerReleaseWithoutHoldPanics covers the original's
// assert(_nest != 0) in Logger::release(): Release must never be the call
// that brings the nesting depth back to zero, since that is Close's job.
func TestLoggerReleaseWithoutHoldPanics(t *testing.T) {
	ctx := newTestContext()
	if err := ctx.Open(); err != nil {
		t.Fatalf("Open: %v", err)
	}
	w := newWidget(ctx, "alpha")

	lg := NewLogger(w)
	defer func() {
		if recover() == nil {
			t.Fatalf("Release that brings nest to zero did not panic")
		}
	}()
	lg.Release()
}
