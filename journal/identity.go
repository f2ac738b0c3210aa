package journal

import (
	"github.com/google/btree"
	"github.com/launix-de/NonLockingReadMap"
)

// identityRecord is the identity table entry of spec.md §3: the live
// object (or absent) plus the last known unjournaled state for that ID.
type identityRecord struct {
	live             Loggable
	unjournaledState *Entry
}

// idSlot is the btree element: ordered by ID so Snapshot can walk live
// objects in ascending order (byte-reproducible snapshots), the same
// determinism the teacher buys itself by sorting shards by UUID before
// locking them in transaction.go's commitACID.
type idSlot struct {
	id  uint32
	rec *identityRecord
}

func idSlotLess(a, b idSlot) bool { return a.id < b.id }

// identityTable is the Go analogue of Loggable::_loggables plus the
// O(1) liveness bitmap the hot-path `find` wants. The ordered btree answers
// "walk all entries in ID order" (snapshot, unjournaled side-file) and the
// bitmap answers "is this ID currently live" without taking the btree's
// internal lock on the common read path — the exact division of labour
// transaction.go's shardOverlay makes between its Recids slice (iteration)
// and its Bitmap (O(1) membership test).
type identityTable struct {
	tree *btree.BTreeG[idSlot]
	live NonLockingReadMap.NonBlockingBitMap
}

func newIdentityTable() *identityTable {
	return &identityTable{
		tree: btree.NewG(32, idSlotLess),
	}
}

// slot returns the identityRecord for id, creating an empty one if absent.
func (t *identityTable) slot(id uint32) *identityRecord {
	if item, ok := t.tree.Get(idSlot{id: id}); ok {
		return item.rec
	}
	rec := &identityRecord{}
	t.tree.ReplaceOrInsert(idSlot{id: id, rec: rec})
	return rec
}

// lookup returns the identityRecord for id without creating it.
func (t *identityTable) lookup(id uint32) (*identityRecord, bool) {
	item, ok := t.tree.Get(idSlot{id: id})
	if !ok {
		return nil, false
	}
	return item.rec, true
}

// setLive registers obj as the live object at id (invariant 1 of spec.md §3).
func (t *identityTable) setLive(id uint32, obj Loggable) {
	rec := t.slot(id)
	rec.live = obj
	t.live.Set(id, obj != nil)
}

// find is the O(1) fast-path lookup: bitmap says "maybe live", tree confirms.
func (t *identityTable) find(id uint32) Loggable {
	if !t.live.Get(id) {
		return nil
	}
	rec, ok := t.lookup(id)
	if !ok {
		return nil
	}
	return rec.live
}

// remove clears the live slot but keeps any remembered unjournaled state,
// per spec.md §3: "`live` slot may be absent ... historical unjournaled
// state retained for future re-creation with the same ID."
func (t *identityTable) remove(id uint32) {
	rec, ok := t.lookup(id)
	if !ok {
		return
	}
	rec.live = nil
	t.live.Set(id, false)
}

// ascend walks every (id, record) pair in ascending ID order.
func (t *identityTable) ascend(fn func(id uint32, rec *identityRecord) bool) {
	t.tree.Ascend(func(item idSlot) bool {
		return fn(item.id, item.rec)
	})
}

// clear empties the table (used by Close after all instances are destroyed).
func (t *identityTable) clear() {
	t.tree.Clear(false)
	t.live.Reset()
}
