package journal

// Freezer is the contract the engine promises to an out-of-scope real-time
// client shell: something it can hold across a batch of journal mutations
// so the client never observes a half-applied undo or compaction. Undo and
// Compact hold the installed Freezer around their critical section;
// BlockStart/BlockEnd never call it and only manage the transaction
// envelope. It lets a host plug its own locking in without this package
// importing anything audio- or client-specific, the same shape
// storage.SharedResource gives its GetRead/GetExclusive callers.
type Freezer interface {
	// Freeze blocks until the resource is held exclusively and returns a
	// function that releases it.
	Freeze() (release func())
}

// NoFreezer is a Freezer that never blocks, for hosts and tests that don't
// need the guarantee.
type NoFreezer struct{}

func (NoFreezer) Freeze() (release func()) { return func() {} }
