package journal

import (
	"io"
	"time"
)

// Backend is the generalization of the teacher's storage.PersistenceEngine:
// where memcp's interface reads/writes schema.json, columns and per-shard
// logs, this one reads/writes the three fixed project files spec.md §6
// names (journal, snapshot, unjournaled) plus archival segments, behind one
// seam so the wire format, replay logic and undo semantics never need to
// know whether they are talking to local disk, S3, or a Ceph RADOS pool.
type Backend interface {
	// OpenAppend opens name for read+append, creating it if absent. This is
	// the "a+" mode Loggable::open uses for the journal file itself.
	OpenAppend(name string) (io.ReadWriteSeeker, error)
	// OpenRead opens name read-only (snapshot, unjournaled, or a read-only
	// fallback for the journal when OpenAppend fails).
	OpenRead(name string) (io.ReadSeekCloser, error)
	// Create truncates-or-creates name for writing, used for the "#name"
	// atomic-publish temp file and for rewriting unjournaled/schema-like
	// side files.
	Create(name string) (io.WriteCloser, error)
	// Rename atomically publishes oldName over newName. Local disk backends
	// use a real rename(2); object-storage backends copy-then-delete, so a
	// failure partway through never removes the previous newName (spec.md
	// §7's "old snapshot untouched" guarantee for SnapshotWriteFailure).
	Rename(oldName, newName string) error
	// Stat reports size and modification time, used to decide whether the
	// snapshot file is newer than the journal at open (spec.md §4.8).
	Stat(name string) (size int64, modTime time.Time, err error)
	// Remove deletes name; absence is not an error.
	Remove(name string) error
}

// ErrorReadCloser turns an error into an io.ReadSeekCloser that always
// fails, mirroring storage.ErrorReader — the read-path equivalent of "file
// does not exist, so report no data available" rather than panicking deep
// inside a replay loop.
type ErrorReadCloser struct {
	Err error
}

func (e ErrorReadCloser) Read([]byte) (int, error)         { return 0, e.Err }
func (e ErrorReadCloser) Seek(int64, int) (int64, error)    { return 0, e.Err }
func (e ErrorReadCloser) Close() error                      { return nil }
