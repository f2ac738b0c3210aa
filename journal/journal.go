/*******************************************************************************/
/* Copyright (C) 2008-2021 Jonathan Moore Liles                                */
/* Copyright (C) 2021- Stazed                                                  */
/*                                                                             */
/* This program is free software; you can redistribute it and/or modify it     */
/* under the terms of the GNU General Public License as published by the      */
/* Free Software Foundation; either version 2 of the License, or (at your     */
/* option) any later version.                                                 */
/*******************************************************************************/

// Package journal implements the persistent object-journal and undo engine:
// an append-only line journal of object creation/mutation/destruction
// records that can be replayed forward to rebuild state and backward to
// undo it, plus a parallel "unjournaled" side store for preferences-like
// state that survives across sessions without being undoable.
package journal

import (
	"fmt"
	"io"
	"sync"
)

// Context is one journal instance: identity table, transaction buffer and
// backend, the Go analogue of Loggable's (all-static) C++ class state made
// into an explicit, constructible value per spec.md §9 Design Notes (no
// process-global singleton at this layer; see default.go for one).
type Context struct {
	mu sync.Mutex

	backend  Backend
	registry map[string]Factory

	idtable   *identityTable
	idCounter uint32

	// writer is non-nil only once the initial replay has completed and the
	// journal is open for writing; nil while replaying (so log* calls during
	// replay are harmless no-ops, matching the original's _fp==NULL gate) and
	// nil again after Close.
	writer io.ReadWriteSeeker

	readonly bool

	level int // block_start/block_end nesting depth
	txn   transactionBuffer

	undoOffset int64

	isPasting  bool
	relativeID uint32

	dirtyCount int

	progressCallback func(percent int)
	dirtyCallback    func(dirty bool)

	archiveFunc func(ctx *Context, data []byte)

	freezer Freezer

	Settings Settings
	Monitor  *Monitor
}

// NewContext constructs a Context over backend. Call RegisterCreate for
// every Loggable class before Open, then Open to replay history.
func NewContext(backend Backend) *Context {
	return &Context{
		backend:  backend,
		registry: make(map[string]Factory),
		idtable:  newIdentityTable(),
		Settings: DefaultSettings(),
		freezer:  NoFreezer{},
	}
}

// SetFreezer installs the Freezer a host uses to keep its own real-time
// thread from observing a half-applied Undo or Compact. The default is
// NoFreezer, which never blocks.
func (ctx *Context) SetFreezer(f Freezer) {
	ctx.mu.Lock()
	defer ctx.mu.Unlock()
	if f == nil {
		f = NoFreezer{}
	}
	ctx.freezer = f
}

func (ctx *Context) freeze() (release func()) {
	ctx.mu.Lock()
	f := ctx.freezer
	ctx.mu.Unlock()
	return f.Freeze()
}

// RegisterCreate registers the factory for class, the Go equivalent of
// LOG_REGISTER_CREATE's insertion into Loggable::_class_map.
func (ctx *Context) RegisterCreate(class string, f Factory) {
	ctx.mu.Lock()
	defer ctx.mu.Unlock()
	ctx.registry[class] = f
}

// OnProgress installs the callback invoked with 0-100 during Open's replay
// (spec.md §6's progress callback). Replay, which has no total size, reports
// only the 0 at start and end; Undo does not report progress.
func (ctx *Context) OnProgress(f func(percent int)) { ctx.progressCallback = f }

// OnDirty installs the callback invoked whenever the dirty/clean transition
// happens (spec.md §6's "modified" indicator).
func (ctx *Context) OnDirty(f func(dirty bool)) { ctx.dirtyCallback = f }

// Readonly reports whether Open fell back to a read-only journal handle.
func (ctx *Context) Readonly() bool {
	ctx.mu.Lock()
	defer ctx.mu.Unlock()
	return ctx.readonly
}

// Dirty reports whether any journaled mutation has happened since the last
// clear (Open, Close, or Snapshot all clear it).
func (ctx *Context) Dirty() bool {
	ctx.mu.Lock()
	defer ctx.mu.Unlock()
	return ctx.dirtyCount > 0
}

func (ctx *Context) setDirty() {
	ctx.mu.Lock()
	was := ctx.dirtyCount > 0
	ctx.dirtyCount++
	ctx.mu.Unlock()
	if !was && ctx.dirtyCallback != nil {
		ctx.dirtyCallback(true)
	}
}

func (ctx *Context) clearDirty() {
	ctx.mu.Lock()
	was := ctx.dirtyCount > 0
	ctx.dirtyCount = 0
	ctx.mu.Unlock()
	if was && ctx.dirtyCallback != nil {
		ctx.dirtyCallback(false)
	}
}

// BlockStart opens a nested transaction scope; matching BlockEnd calls
// flush only when nesting returns to zero, so a batch of mutations commits
// as one undo unit (spec.md §4.4).
func (ctx *Context) BlockStart() {
	ctx.mu.Lock()
	ctx.level++
	ctx.mu.Unlock()
}

// BlockEnd closes a transaction scope opened by BlockStart.
func (ctx *Context) BlockEnd() {
	ctx.mu.Lock()
	ctx.level--
	if ctx.level < 0 {
		ctx.level = 0
		ctx.mu.Unlock()
		panic(Fatalf("Context", 0, "BlockEnd called without a matching BlockStart"))
	}
	atZero := ctx.level == 0
	ctx.mu.Unlock()

	if atZero {
		ctx.flush()
	}
}

// flush drains the queued lines and writes them to the journal, wrapping
// more than one line in a `{ ... }` envelope. It never runs while ctx.mu is
// held, since it is the one call path that can be reached re-entrantly
// (cascading log_destroy calls during Undo's backward replay) and Go's
// sync.Mutex is not reentrant — see DESIGN.md's Open Question resolution.
func (ctx *Context) flush() {
	ctx.mu.Lock()
	lines := ctx.txn.drain()
	w := ctx.writer
	ctx.mu.Unlock()

	if w == nil || len(lines) == 0 {
		return
	}

	wrap := len(lines) > 1
	var out []byte
	if wrap {
		out = append(out, "{\n"...)
	}
	for _, l := range lines {
		if wrap {
			out = append(out, '\t')
		}
		out = append(out, l...)
	}
	if wrap {
		out = append(out, "}\n"...)
	}

	ctx.mu.Lock()
	if ctx.writer != w {
		ctx.mu.Unlock()
		return // closed/reopened since we drained
	}
	// The journal is opened "a+"-style but a Go io.ReadWriteSeeker has no
	// append mode of its own, and Undo's backward scan (replay.go) leaves
	// the shared handle positioned mid-file. Every write must therefore
	// seek to EOF first, the Go equivalent of fopen(..., "a+") guaranteeing
	// writes land at EOF regardless of the file position left by a prior
	// read.
	if _, err := w.Seek(0, io.SeekEnd); err != nil {
		ctx.mu.Unlock()
		return
	}
	if _, err := w.Write(out); err != nil {
		ctx.mu.Unlock()
		return
	}
	var pos int64
	if p, err := w.Seek(0, io.SeekCurrent); err == nil {
		pos = p
		ctx.undoOffset = p
	}
	if f, ok := w.(interface{ Sync() error }); ok {
		_ = f.Sync()
	}
	needsCompact := ctx.settingsNeedsCompact(pos)
	ctx.mu.Unlock()

	if needsCompact {
		_ = ctx.Compact()
	}
}

// pushLine queues a complete line (trailing "\n" included) and flushes
// immediately if no transaction block is open, the Go equivalent of log()
// appending to _transaction and log_create/log_end calling flush() directly
// when Loggable::_level == 0.
func (ctx *Context) pushLine(line string) {
	ctx.mu.Lock()
	ctx.txn.push(line)
	atZero := ctx.level == 0
	ctx.mu.Unlock()

	if atZero {
		ctx.flush()
	}
}

// LogCreate emits a create record for self. Every exported leaf constructor
// outside this package calls it once, after NewInstance and after its
// fields are populated, exactly as NewInstance's doc comment promises.
func (ctx *Context) LogCreate(self Loggable) { ctx.logCreate(self) }

// logCreate emits a create record for self, or does nothing if the journal
// isn't open for writing (construction during replay, or after Close).
func (ctx *Context) logCreate(self Loggable) {
	ctx.setDirty()

	ctx.mu.Lock()
	if ctx.writer == nil {
		ctx.mu.Unlock()
		return
	}
	ctx.mu.Unlock()

	e := NewEntry()
	self.Get(e)
	ctx.pushLine(formatCreateLine(self.ClassName(), self.ID(), e))
}

// logDestroy emits a destroy record carrying the instance's final state as
// the reverse payload, and remembers its unjournaled state for any later
// re-create under the same ID. Called by Base.Destroy.
func (ctx *Context) logDestroy(self Loggable) {
	ctx.setDirty()

	ctx.mu.Lock()
	if ctx.writer == nil {
		ctx.mu.Unlock()
		return
	}
	ctx.mu.Unlock()

	if u, ok := self.(Unjournaled); ok {
		ue := NewEntry()
		u.GetUnjournaled(ue)
		ctx.mu.Lock()
		rec := ctx.idtable.slot(self.ID())
		if ue.Size() > 0 {
			rec.unjournaledState = ue
		} else {
			rec.unjournaledState = nil
		}
		ctx.mu.Unlock()
	}

	e := NewEntry()
	self.Get(e)
	ctx.pushLine(formatDestroyLine(self.ClassName(), self.ID(), e))
}

// logStart/logEnd implement the Logger scope: see logger.go.
func (ctx *Context) logStart(b *Base, self Loggable) {
	ctx.mu.Lock()
	if b.oldState == nil {
		e := NewEntry()
		self.Get(e)
		b.oldState = e
	}
	b.nest++
	ctx.mu.Unlock()
}

func (ctx *Context) logEnd(b *Base, self Loggable) {
	ctx.mu.Lock()
	b.nest--
	if b.nest > 0 {
		ctx.mu.Unlock()
		return
	}
	old := b.oldState
	b.oldState = nil
	ctx.mu.Unlock()

	newState := NewEntry()
	self.Get(newState)

	if !Diff(old, newState) {
		return
	}

	ctx.setDirty()
	ctx.pushLine(formatSetLine(self.ClassName(), self.ID(), newState, old))
}

func (ctx *Context) holdNest(b *Base) {
	ctx.mu.Lock()
	b.nest++
	ctx.mu.Unlock()
}

func (ctx *Context) releaseNest(b *Base, self Loggable) {
	ctx.mu.Lock()
	b.nest--
	zero := b.nest == 0
	ctx.mu.Unlock()
	if zero {
		panic(Fatalf(self.ClassName(), self.ID(), "Logger.Release called without a balancing Hold"))
	}
}

// Find returns the live object registered under id, or nil. id is offset by
// the active relative-ID base if one is set (spec.md §4.3).
func (ctx *Context) Find(id uint32) Loggable {
	ctx.mu.Lock()
	rid := ctx.relativeID
	ctx.mu.Unlock()
	if rid != 0 {
		id += rid
	}
	return ctx.idtable.find(id)
}

// BeginRelativeIDMode makes subsequent replayed IDs relative to the highest
// ID currently allocated, for importing a fragment (paste, strip import)
// without colliding with live IDs (spec.md §4.3).
func (ctx *Context) BeginRelativeIDMode() {
	ctx.mu.Lock()
	ctx.idCounter++
	ctx.relativeID = ctx.idCounter
	ctx.mu.Unlock()
}

// EndRelativeIDMode turns off relative-ID translation.
func (ctx *Context) EndRelativeIDMode() {
	ctx.mu.Lock()
	ctx.relativeID = 0
	ctx.mu.Unlock()
}

func formatCreateLine(class string, id uint32, fields *Entry) string {
	if fields.Size() == 0 {
		return fmt.Sprintf("%s 0x%X create\n", class, id)
	}
	return fmt.Sprintf("%s 0x%X create %s\n", class, id, fields.Print())
}

func formatDestroyLine(class string, id uint32, fields *Entry) string {
	return fmt.Sprintf("%s 0x%X destroy << %s\n", class, id, fields.Print())
}

func formatSetLine(class string, id uint32, newFields, oldFields *Entry) string {
	if oldFields != nil && oldFields.Size() > 0 {
		return fmt.Sprintf("%s 0x%X set %s << %s\n", class, id, newFields.Print(), oldFields.Print())
	}
	return fmt.Sprintf("%s 0x%X set %s\n", class, id, newFields.Print())
}
