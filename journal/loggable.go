/*******************************************************************************/
/* Copyright (C) 2008-2021 Jonathan Moore Liles                                */
/* Copyright (C) 2021- Stazed                                                  */
/*                                                                             */
/* This program is free software; you can redistribute it and/or modify it     */
/* under the terms of the GNU General Public License as published by the      */
/* Free Software Foundation; either version 2 of the License, or (at your     */
/* option) any later version.                                                 */
/*******************************************************************************/

package journal

// Loggable is the capability interface every journaled entity implements.
// Where the C++ original used a base class plus LOG_NAME_FUNC/LOG_CREATE_FUNC
// macros to generate class_name()/create(), the Go port (per spec.md §9
// Design Notes) models this as data: an explicit interface plus a factory
// function registered by name, rather than generated methods.
type Loggable interface {
	// ClassName is the registry key this instance was (or will be) created
	// under; the Go analogue of LOG_NAME_FUNC's generated class_name().
	ClassName() string
	// ID is the identity assigned at construction (or rebound by UpdateID
	// during replay). Promoted from an embedded Base.
	ID() uint32
	// Get appends this instance's journaled, undoable fields to e.
	Get(e *Entry)
	// Set applies journaled fields from e to this instance. Called both for
	// `set` records and, via the registered factory, to apply a `create`
	// record's payload to a freshly constructed instance.
	Set(e *Entry)
}

// Unjournaled is implemented optionally by Loggables that also have
// preferences-like state: persisted to the unjournaled side-file, restored
// across sessions, but never undoable (spec.md §3).
type Unjournaled interface {
	GetUnjournaled(e *Entry)
}

// loggableInternal is Loggable plus the engine's private hook into the
// embedded Base. Any type embedding Base and implementing Loggable
// satisfies this automatically via method promotion — callers never see it.
type loggableInternal interface {
	Loggable
	baseRef() *Base
}

// Factory reconstructs an instance from a create record's Entry and ID,
// the Go equivalent of create_func / LOG_CREATE_FUNC. A conforming factory
// calls ctx.NewInstance(self) to get a temporary auto-assigned ID, then
// ctx.UpdateID(self, id) to rebind to the ID recorded in the journal, then
// self.Set(e), mirroring:
//
//	class *r = new class;
//	r->update_id(id);
//	r->set(e);
//	return r;
type Factory func(ctx *Context, e *Entry, id uint32) Loggable

// Base is embedded by every journaled type. It carries identity and the
// bookkeeping Logger needs (nesting depth, captured old state) — the Go
// stand-in for Loggable's private _id/_nest/_old_state fields, without a
// base class able to supply get()/set()/class_name() itself.
type Base struct {
	ctx      *Context
	id       uint32
	nest     int32
	oldState *Entry
}

// ID returns the identity assigned at construction.
func (b *Base) ID() uint32 { return b.id }

// baseRef lets the engine reach into an embedding Loggable's Base fields
// without widening the public Loggable interface.
func (b *Base) baseRef() *Base { return b }

// NewInstance assigns self a fresh auto-incrementing ID and registers it
// live in the identity table (Loggable::init's "loggable=true" path). The
// caller is still responsible for calling ctx.LogCreate(self) once its
// fields are populated, exactly as the original requires log_create() to be
// called at the end of every public leaf constructor.
func (ctx *Context) NewInstance(self Loggable) Base {
	ctx.mu.Lock()
	defer ctx.mu.Unlock()
	if ctx.idCounter == ^uint32(0) {
		panic(Fatalf(self.ClassName(), ctx.idCounter, "identity counter exhausted: cannot allocate another ID"))
	}
	ctx.idCounter++
	id := ctx.idCounter
	b := Base{ctx: ctx, id: id}
	ctx.idtable.setLive(id, self)
	return b
}

// UpdateID implements spec.md §4.3's update_id: used immediately after
// construction during replay to rebind a temporary auto-assigned ID to the
// ID recorded in the journal. Fatal (IdCollision) if the target slot is
// already occupied by a live object — that means a corrupt journal.
func (ctx *Context) UpdateID(self Loggable, id uint32) {
	ctx.mu.Lock()
	defer ctx.mu.Unlock()

	bi := self.(loggableInternal)
	base := bi.baseRef()

	if base.id != ctx.idCounter {
		panic(Fatalf(self.ClassName(), base.id, "update_id called out of order: %d != %d", base.id, ctx.idCounter))
	}

	// vacate the temporary slot
	ctx.idtable.setLive(base.id, nil)

	if id > ctx.idCounter {
		ctx.idCounter = id
	}

	if existing := ctx.idtable.find(id); existing != nil {
		panic(Fatalf(self.ClassName(), id,
			"attempt to create object with an ID that already exists (existing class %q, new class %q): corrupt journal?",
			existing.ClassName(), self.ClassName()))
	}

	base.id = id
	ctx.idtable.setLive(id, self)
}

// Destroy emits the destroy record (if the journal is open for writing),
// remembers the instance's unjournaled state for any later re-create under
// the same ID, and removes it from the live identity table. Callers invoke
// this wherever the original called log_destroy() at the start of a leaf
// destructor — Go has none, so this is the explicit equivalent.
func (b *Base) Destroy(self Loggable) {
	ctx := b.ctx
	ctx.logDestroy(self)
	ctx.idtable.remove(b.id)
}
