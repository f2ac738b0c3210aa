package journal

import (
	"strings"
	"testing"
)

// TestInvariantRoundTrip covers spec.md §8 invariant 1 and scenario E1: a
// fresh process replaying a journal reconstructs live instances whose Get
// projection matches what was written.
func TestInvariantRoundTrip(t *testing.T) {
	b := newMemBackend()

	ctx := newTestContextOn(b)
	if err := ctx.Open(); err != nil {
		t.Fatalf("Open: %v", err)
	}
	a := newWidget(ctx, "a")
	bw := newWidget(ctx, "b")
	if err := ctx.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	fresh := newTestContextOn(b)
	if err := fresh.Open(); err != nil {
		t.Fatalf("reopen: %v", err)
	}

	fa, ok := fresh.Find(a.ID()).(*widget)
	if !ok || fa.name != "a" {
		t.Fatalf("replayed widget a = %+v, ok=%v, want name \"a\"", fa, ok)
	}
	fb, ok := fresh.Find(bw.ID()).(*widget)
	if !ok || fb.name != "b" {
		t.Fatalf("replayed widget b = %+v, ok=%v, want name \"b\"", fb, ok)
	}
}

// TestInvariantSnapshotEquivalence covers invariant 2: replaying a snapshot
// alone reconstructs the same state as the full journal it was taken from.
func TestInvariantSnapshotEquivalence(t *testing.T) {
	ctx := newTestContext()
	if err := ctx.Open(); err != nil {
		t.Fatalf("Open: %v", err)
	}
	w := newWidget(ctx, "alpha")
	w.setName("beta")
	if err := ctx.Snapshot("snapshot"); err != nil {
		t.Fatalf("Snapshot: %v", err)
	}

	sr, err := ctx.backend.OpenRead("snapshot")
	if err != nil {
		t.Fatalf("OpenRead(snapshot): %v", err)
	}
	defer sr.Close()

	replayCtx := NewContext(newMemBackend())
	replayCtx.RegisterCreate("Widget", widgetFactory)
	if err := replayCtx.Replay(sr, false); err != nil {
		t.Fatalf("Replay(snapshot): %v", err)
	}

	got, ok := replayCtx.Find(w.ID()).(*widget)
	if !ok || got.name != "beta" {
		t.Fatalf("snapshot-only replay = %+v, ok=%v, want name \"beta\"", got, ok)
	}
}

// TestInvariantUndoRedoDuality covers invariant 3: undo restores S1, and
// re-applying the original transaction's forward record restores S2.
func TestInvariantUndoRedoDuality(t *testing.T) {
	ctx := newTestContext()
	if err := ctx.Open(); err != nil {
		t.Fatalf("Open: %v", err)
	}
	w := newWidget(ctx, "alpha")
	w.setName("beta")

	if err := ctx.Undo(); err != nil {
		t.Fatalf("Undo: %v", err)
	}
	if w.name != "alpha" {
		t.Fatalf("after Undo, name = %q, want %q", w.name, "alpha")
	}

	// redo: replay the original forward record directly.
	if err := ctx.doThis(`Widget 0x1 set name "beta" << name "alpha"`, false); err != nil {
		t.Fatalf("redo doThis: %v", err)
	}
	if w.name != "beta" {
		t.Fatalf("after redo, name = %q, want %q", w.name, "beta")
	}
}

// TestInvariantMonotoneIDs covers invariant 4: every create in a session
// gets an ID strictly greater than every prior ID in that session.
func TestInvariantMonotoneIDs(t *testing.T) {
	ctx := newTestContext()
	if err := ctx.Open(); err != nil {
		t.Fatalf("Open: %v", err)
	}

	var last uint32
	for i := 0; i < 5; i++ {
		w := newWidget(ctx, "x")
		if w.ID() <= last {
			t.Fatalf("widget %d got ID %d, want strictly greater than %d", i, w.ID(), last)
		}
		last = w.ID()
	}
}

// TestInvariantNoOpDiffSuppression covers invariant 5: a Logger scope that
// doesn't change the Get projection emits nothing and never dirties.
func TestInvariantNoOpDiffSuppression(t *testing.T) {
	ctx := newTestContext()
	if err := ctx.Open(); err != nil {
		t.Fatalf("Open: %v", err)
	}
	w := newWidget(ctx, "alpha")
	ctx.clearDirty()

	w.setName("alpha")

	if ctx.Dirty() {
		t.Fatalf("Dirty() = true after a no-op mutation, want false")
	}
}

// TestInvariantBlockAtomicity covers invariant 6: a block containing
// multiple records undoes as exactly one step.
func TestInvariantBlockAtomicity(t *testing.T) {
	b := newMemBackend()

	ctx := newTestContextOn(b)
	if err := ctx.Open(); err != nil {
		t.Fatalf("Open: %v", err)
	}
	w := newWidget(ctx, "alpha")
	id := w.ID()

	ctx.BlockStart()
	w.setName("beta")
	w.setName("gamma")
	ctx.BlockEnd()

	if err := ctx.Undo(); err != nil {
		t.Fatalf("Undo: %v", err)
	}
	if w.name != "alpha" {
		t.Fatalf("after one Undo of the whole block, name = %q, want %q (both internal records reverted)", w.name, "alpha")
	}

	// Reopen directly from the journal Undo appended to, without an
	// intervening Close/Snapshot, so a reverse record written at the wrong
	// offset would show up as a parse failure or stale state here.
	fresh := newTestContextOn(b)
	if err := fresh.Open(); err != nil {
		t.Fatalf("reopen from journal: %v", err)
	}
	got, ok := fresh.Find(id).(*widget)
	if !ok || got.name != "alpha" {
		t.Fatalf("replayed widget after reopen = %+v, ok=%v, want name %q", got, ok, "alpha")
	}
}

// TestInvariantRelativeIDNonCollision covers invariant 7: replaying a
// fragment recorded from another session under relative-ID mode never
// collides with IDs already live in the target.
func TestInvariantRelativeIDNonCollision(t *testing.T) {
	ctx := newTestContext()
	if err := ctx.Open(); err != nil {
		t.Fatalf("Open: %v", err)
	}
	existingA := newWidget(ctx, "host-a")
	existingB := newWidget(ctx, "host-b")

	fragment := "Widget 0x1 create name \"pasted-a\"\n" +
		"Widget 0x2 create name \"pasted-b\"\n"

	ctx.BeginRelativeIDMode()
	if err := ctx.Replay(strings.NewReader(fragment), false); err != nil {
		t.Fatalf("Replay fragment: %v", err)
	}
	ctx.EndRelativeIDMode()

	if ctx.Find(existingA.ID()).(*widget).name != "host-a" {
		t.Fatalf("existing widget a was disturbed by the pasted fragment")
	}
	if ctx.Find(existingB.ID()).(*widget).name != "host-b" {
		t.Fatalf("existing widget b was disturbed by the pasted fragment")
	}

	seen := map[uint32]bool{existingA.ID(): true, existingB.ID(): true}
	var pastedNames []string
	ctx.idtable.ascend(func(id uint32, rec *identityRecord) bool {
		if rec.live == nil {
			return true
		}
		if seen[id] {
			return true
		}
		seen[id] = true
		pastedNames = append(pastedNames, rec.live.(*widget).name)
		return true
	})
	if len(pastedNames) != 2 {
		t.Fatalf("pasted fragment produced %d new live widgets, want 2 (got %v)", len(pastedNames), pastedNames)
	}
}

// TestBoundaryEmptyJournalRoundTrip covers the "empty journal" boundary
// case: open, close, reopen yields an empty state.
func TestBoundaryEmptyJournalRoundTrip(t *testing.T) {
	b := newMemBackend()
	ctx := newTestContextOn(b)
	if err := ctx.Open(); err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := ctx.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	reopened := newTestContextOn(b)
	if err := reopened.Open(); err != nil {
		t.Fatalf("reopen: %v", err)
	}
	count := 0
	reopened.idtable.ascend(func(id uint32, rec *identityRecord) bool {
		if rec.live != nil {
			count++
		}
		return true
	})
	if count != 0 {
		t.Fatalf("reopened empty project has %d live objects, want 0", count)
	}
}

// TestBoundarySingleRecordUndoAtHeadIsNoOp: undo offset sitting at the very
// first record (nothing written before it) still undoes safely, and a
// second undo call past start-of-file is a no-op rather than an error.
func TestBoundarySingleRecordUndoAtHeadIsNoOp(t *testing.T) {
	ctx := newTestContext()
	if err := ctx.Open(); err != nil {
		t.Fatalf("Open: %v", err)
	}
	w := newWidget(ctx, "only")

	if err := ctx.Undo(); err != nil {
		t.Fatalf("first Undo: %v", err)
	}
	if ctx.Find(w.ID()) != nil {
		t.Fatalf("widget still live after undoing its sole create record")
	}

	if err := ctx.Undo(); err != nil {
		t.Fatalf("second Undo past start-of-file: %v", err)
	}
	if ctx.Find(w.ID()) != nil {
		t.Fatalf("second Undo past start-of-file re-created the widget, want a no-op")
	}
}

// TestBoundaryStringWithQuotesAndNewlinesRoundTrips covers E5: a field
// value containing embedded quotes and newlines survives close/reopen
// byte-exactly.
func TestBoundaryStringWithQuotesAndNewlinesRoundTrips(t *testing.T) {
	b := newMemBackend()
	ctx := newTestContextOn(b)
	if err := ctx.Open(); err != nil {
		t.Fatalf("Open: %v", err)
	}

	w := &noteWidget{}
	w.Base = ctx.NewInstance(w)
	w.note = "line1\nline2\""
	ctx.logCreate(w)
	id := w.ID()

	if err := ctx.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	reopened := NewContext(b)
	reopened.RegisterCreate("Note", noteWidgetFactory)
	if err := reopened.Open(); err != nil {
		t.Fatalf("reopen: %v", err)
	}

	got, ok := reopened.Find(id).(*noteWidget)
	if !ok {
		t.Fatalf("Find(%d) after reopen did not return a *noteWidget", id)
	}
	if got.note != "line1\nline2\"" {
		t.Fatalf("reloaded note = %q, want %q", got.note, "line1\nline2\"")
	}
}

// TestBoundaryIDNearUint32Max covers "IDs adjacent to 2³²−1": UpdateID can
// fast-forward the counter all the way to the maximum ID, and the very next
// allocation is refused rather than silently wrapping to 0 and colliding.
func TestBoundaryIDNearUint32Max(t *testing.T) {
	ctx := newTestContext()
	if err := ctx.Open(); err != nil {
		t.Fatalf("Open: %v", err)
	}

	w := &widget{}
	w.Base = ctx.NewInstance(w)
	ctx.UpdateID(w, ^uint32(0))

	if ctx.Find(^uint32(0)) == nil {
		t.Fatalf("widget parked at 0xFFFFFFFF not found")
	}

	defer func() {
		if recover() == nil {
			t.Fatalf("allocating past the ID counter's maximum did not panic")
		}
	}()
	w2 := &widget{}
	w2.Base = ctx.NewInstance(w2)
	_ = w2
}

// noteWidget is a second Loggable fixture, distinct from widget, carrying a
// single string field deliberately containing characters escape/unescape
// must round-trip.
type noteWidget struct {
	Base
	note string
}

func (w *noteWidget) ClassName() string { return "Note" }
func (w *noteWidget) Get(e *Entry)      { e.AddString("note", w.note) }
func (w *noteWidget) Set(e *Entry) {
	if v, ok := e.String("note"); ok {
		w.note = v
	}
}

func noteWidgetFactory(ctx *Context, e *Entry, id uint32) Loggable {
	w := &noteWidget{}
	w.Base = ctx.NewInstance(w)
	ctx.UpdateID(w, id)
	w.Set(e)
	return w
}
