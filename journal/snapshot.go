package journal

import (
	"bytes"
	"io"
	"strconv"
	"strings"
)

// writeSnapshotLines writes one create record per live object, in ascending
// ID order, the Go equivalent of Loggable::snapshot(FILE*) invoking the
// host's snapshot callback (which itself calls Get/print on every object it
// owns) while the journal is temporarily pointed at the snapshot stream.
func (ctx *Context) writeSnapshotLines(w io.Writer) error {
	var outerErr error
	ctx.idtable.ascend(func(id uint32, rec *identityRecord) bool {
		if rec.live == nil {
			return true
		}
		e := NewEntry()
		rec.live.Get(e)
		if _, err := w.Write([]byte(formatCreateLine(rec.live.ClassName(), id, e))); err != nil {
			outerErr = err
			return false
		}
		return true
	})
	return outerErr
}

// Snapshot writes a full snapshot of live state to backend object "name",
// publishing it atomically via a "#name" temp object and Rename — the
// Go analogue of Loggable::snapshot(const char *name)'s "#filename" idiom.
func (ctx *Context) Snapshot(name string) error {
	tmp := "#" + name

	w, err := ctx.backend.Create(tmp)
	if err != nil {
		return report("Snapshot", err)
	}

	ctx.mu.Lock()
	err = ctx.writeSnapshotLines(w)
	ctx.mu.Unlock()

	closeErr := w.Close()
	if err == nil {
		err = closeErr
	}
	if err != nil {
		_ = ctx.backend.Remove(tmp)
		return report("Snapshot", err)
	}

	if err := ctx.backend.Rename(tmp, name); err != nil {
		return report("Snapshot", err)
	}

	ctx.clearDirty()
	return nil
}

// loadUnjournaledState reads the "unjournaled" side-file (one "0xID set
// <fields>" line per entry) into the identity table's remembered state, for
// Open to consult before/while replaying — Loggable::load_unjournaled_state.
func (ctx *Context) loadUnjournaledState() error {
	r, err := ctx.backend.OpenRead("unjournaled")
	if err != nil {
		return nil // absent on first run; not an error
	}
	defer r.Close()

	data, err := io.ReadAll(r)
	if err != nil {
		return report("loadUnjournaledState", err)
	}

	for _, line := range splitLines(string(data)) {
		idTok, rest, _ := strings.Cut(strings.TrimSpace(line), " ")
		verb, rest, _ := strings.Cut(rest, " ")
		if verb != "set" {
			continue
		}
		id, err := strconv.ParseUint(strings.TrimPrefix(strings.TrimPrefix(idTok, "0x"), "0X"), 16, 32)
		if err != nil {
			continue
		}
		e := parseEntry(rest)
		ctx.mu.Lock()
		ctx.idtable.slot(uint32(id)).unjournaledState = e
		ctx.mu.Unlock()
	}
	return nil
}

// saveUnjournaledState writes the "unjournaled" side-file, refreshing the
// remembered state of every still-live object first (Loggable::save_unjournaled_state).
func (ctx *Context) saveUnjournaledState() error {
	w, err := ctx.backend.Create("unjournaled")
	if err != nil {
		return report("saveUnjournaledState", err)
	}
	defer w.Close()

	ctx.mu.Lock()
	defer ctx.mu.Unlock()

	ctx.idtable.ascend(func(id uint32, rec *identityRecord) bool {
		if rec.live != nil {
			if u, ok := rec.live.(Unjournaled); ok {
				e := NewEntry()
				u.GetUnjournaled(e)
				if e.Size() > 0 {
					rec.unjournaledState = e
				} else {
					rec.unjournaledState = nil
				}
			}
		}
		if rec.unjournaledState != nil {
			w.Write([]byte("0x" + hex(id) + " set " + rec.unjournaledState.Print() + "\n"))
		}
		return true
	})
	return nil
}

func splitLines(s string) []string {
	var out []string
	start := 0
	for i := 0; i < len(s); i++ {
		if s[i] == '\n' {
			out = append(out, s[start:i])
			start = i + 1
		}
	}
	if start < len(s) {
		out = append(out, s[start:])
	}
	return out
}

// Compact replaces the journal's contents with a fresh snapshot of current
// state, discarding the undo history that preceded it (Loggable::compact).
// Before truncating, the bytes about to be discarded are handed to the
// active archive hook, if one was installed via EnableArchival.
func (ctx *Context) Compact() error {
	ctx.mu.Lock()
	w := ctx.writer
	ctx.mu.Unlock()

	if w == nil {
		return nil
	}

	release := ctx.freeze()
	defer release()

	if ctx.archiveFunc != nil {
		if _, err := w.Seek(0, io.SeekStart); err == nil {
			old, _ := io.ReadAll(w)
			if len(old) > 0 {
				ctx.archiveFunc(ctx, old)
			}
		}
	}

	var buf bytes.Buffer
	ctx.mu.Lock()
	err := ctx.writeSnapshotLines(&buf)
	ctx.mu.Unlock()
	if err != nil {
		return report("Compact", err)
	}

	if _, err := w.Seek(0, io.SeekStart); err != nil {
		return report("Compact", err)
	}
	if tr, ok := w.(interface{ Truncate(size int64) error }); ok {
		if err := tr.Truncate(0); err != nil {
			return report("Compact", err)
		}
	}
	if _, err := w.Write(buf.Bytes()); err != nil {
		return report("Compact", err)
	}
	end, err := w.Seek(0, io.SeekEnd)
	if err != nil {
		return report("Compact", err)
	}

	ctx.mu.Lock()
	ctx.undoOffset = end
	ctx.mu.Unlock()

	ctx.clearDirty()
	return nil
}

func hex(v uint32) string {
	const digits = "0123456789ABCDEF"
	if v == 0 {
		return "0"
	}
	buf := make([]byte, 0, 8)
	for v > 0 {
		buf = append([]byte{digits[v&0xF]}, buf...)
		v >>= 4
	}
	return string(buf)
}
