package journal

import "io"

// Open replays history and prepares the journal for writing. It loads any
// remembered unjournaled state, then replays either the snapshot (if newer
// than the journal) or the journal itself, and only afterward installs the
// append handle that logCreate/logDestroy/pushLine check — so everything
// logged *during* replay is a harmless no-op, exactly like the original
// deferring `Loggable::_fp = fp` until after `replay()` returns inside
// `open()`. If the backend can't be opened for append, Open falls back to
// a read-only handle and still runs the same snapshot-vs-journal selection,
// but Readonly() reports true and no journal record is written. Close still
// writes the snapshot and the unjournaled side-file.
func (ctx *Context) Open() error {
	ctx.mu.Lock()
	ctx.writer = nil
	ctx.readonly = false
	ctx.mu.Unlock()

	_ = ctx.loadUnjournaledState()

	rw, err := ctx.backend.OpenAppend("journal")
	if err != nil {
		r, rerr := ctx.backend.OpenRead("journal")
		if rerr != nil {
			return report("Open", rerr)
		}
		defer r.Close()

		ctx.mu.Lock()
		ctx.readonly = true
		ctx.mu.Unlock()

		return ctx.replayNewest(r)
	}

	if err := ctx.replayNewest(rw); err != nil {
		return err
	}

	end, err := rw.Seek(0, io.SeekEnd)
	if err != nil {
		return report("Open", err)
	}

	ctx.mu.Lock()
	ctx.undoOffset = end
	ctx.writer = rw
	ctx.mu.Unlock()

	return nil
}

// replayNewest replays the snapshot if it is newer than the journal,
// otherwise the journal itself read through journalReader — the same
// snapshot-vs-journal choice the original's open() makes before it ever
// looks at whether the journal handle is writable, so a read-only project
// with a stale journal but a fresher externally-dropped snapshot still
// picks up the snapshot.
func (ctx *Context) replayNewest(journalReader io.ReadSeeker) error {
	if ctx.newer("snapshot", "journal") {
		sr, serr := ctx.backend.OpenRead("snapshot")
		if serr == nil {
			err := ctx.replaySource(sr)
			sr.Close()
			return err
		}
		// snapshot reported newer but couldn't be opened: fall through to
		// the journal rather than leaving the project unreplayed.
	}

	if _, err := journalReader.Seek(0, io.SeekStart); err != nil {
		return report("Open", err)
	}
	return ctx.replaySource(journalReader)
}

// replaySource replays a full stream, computing its total length up front
// (when possible) so the progress callback reports a meaningful percentage.
func (ctx *Context) replaySource(r io.Reader) error {
	var total int64
	if seeker, ok := r.(io.Seeker); ok {
		if end, err := seeker.Seek(0, io.SeekEnd); err == nil {
			total = end
			_, _ = seeker.Seek(0, io.SeekStart)
		}
	}
	return ctx.replayFrom(r, total, true)
}

// newer reports whether backend object a's mtime is after b's; false if a
// doesn't exist (Loggable::newer's "compare journal vs snapshot" helper).
func (ctx *Context) newer(a, b string) bool {
	aSize, aTime, aErr := ctx.backend.Stat(a)
	_ = aSize
	if aErr != nil {
		return false
	}
	_, bTime, bErr := ctx.backend.Stat(b)
	if bErr != nil {
		return true
	}
	return aTime.After(bTime)
}

// Close stops accepting writes, publishes a final snapshot and the
// unjournaled side-file, and clears the identity table — the Go analogue of
// Loggable::close's "return the system to a blank slate", except that
// destroying the in-memory Loggable instances themselves remains the host's
// responsibility (Go has no destructors to call automatically).
func (ctx *Context) Close() error {
	ctx.mu.Lock()
	w := ctx.writer
	ctx.writer = nil
	ctx.mu.Unlock()

	if closer, ok := w.(interface{ Close() error }); ok {
		_ = closer.Close()
	}

	if err := ctx.Snapshot("snapshot"); err != nil {
		return err
	}
	if err := ctx.saveUnjournaledState(); err != nil {
		return err
	}

	ctx.mu.Lock()
	ctx.idtable.clear()
	ctx.mu.Unlock()

	return nil
}
