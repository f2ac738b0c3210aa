package journal

import (
	"bufio"
	"io"
	"strconv"
	"strings"
)

// Replay applies every record read from r, in order, as if it were the tail
// of the journal — the public entry point for importing a fragment (a
// pasted strip, an imported module chain) per spec.md §6. Set needClear to
// false when importing, so the import doesn't mark the project clean.
func (ctx *Context) Replay(r io.Reader, needClear bool) error {
	return ctx.replayFrom(r, 0, needClear)
}

// replayFrom is shared by Open (which knows the stream's total size, for
// progress reporting) and Replay (which usually doesn't).
func (ctx *Context) replayFrom(r io.Reader, total int64, needClear bool) error {
	ctx.mu.Lock()
	ctx.isPasting = true
	ctx.mu.Unlock()

	if ctx.progressCallback != nil {
		ctx.progressCallback(0)
	}

	reader := bufio.NewReader(r)
	var current int64
	for {
		raw, err := reader.ReadString('\n')
		if len(raw) > 0 {
			current += int64(len(raw))
			line := strings.TrimRight(raw, "\n")
			if line != "{" && line != "}" {
				trimmed := strings.TrimPrefix(line, "\t")
				if trimmed != "" {
					if derr := ctx.doThis(trimmed, false); derr != nil {
						return derr
					}
				}
			}
			if ctx.progressCallback != nil && total > 0 {
				ctx.progressCallback(int(current * 100 / total))
			}
		}
		if err != nil {
			break
		}
	}

	if ctx.progressCallback != nil {
		ctx.progressCallback(0)
	}

	if needClear {
		ctx.clearDirty()
	}

	ctx.mu.Lock()
	ctx.isPasting = false
	ctx.mu.Unlock()

	return nil
}

// parseRecordHeader splits "<classname> <id-hex> <verb> <rest...>" the way
// the original's `sscanf("%s %X %s", ...)` does: three whitespace-delimited
// tokens, then the untouched remainder.
func parseRecordHeader(line string) (class string, id uint32, verb string, rest string, ok bool) {
	i, n := 0, len(line)
	skip := func() {
		for i < n && isSpace(line[i]) {
			i++
		}
	}
	tok := func() string {
		skip()
		start := i
		for i < n && !isSpace(line[i]) {
			i++
		}
		return line[start:i]
	}

	class = tok()
	idTok := tok()
	verb = tok()
	skip()
	rest = line[i:]

	if class == "" || idTok == "" || verb == "" {
		return "", 0, "", "", false
	}

	idTok = strings.TrimPrefix(strings.TrimPrefix(idTok, "0x"), "0X")
	v, err := strconv.ParseUint(idTok, 16, 32)
	if err != nil {
		return "", 0, "", "", false
	}
	return class, uint32(v), verb, rest, true
}

// doThis applies one record. reverse selects forward replay (rebuild state,
// using the forward payload) or backward replay / undo (using the reverse
// payload and the create/destroy roles swapped) — spec.md §4.7 / §4.3's
// "do_this" equivalent.
func (ctx *Context) doThis(line string, reverse bool) error {
	class, id, verb, rest, ok := parseRecordHeader(line)
	if !ok {
		return Fatalf("Context", 0, "invalid journal entry format %q", line)
	}

	forward, reverseText, _ := splitForwardReverse(rest)

	switch verb {
	case "destroy":
		if reverse {
			return ctx.replayCreate(class, id, reverseText)
		}
		return ctx.replayDestroy(id)

	case "create":
		if reverse {
			return ctx.replayDestroy(id)
		}
		return ctx.replayCreate(class, id, forward)

	case "set":
		payload := forward
		if reverse {
			payload = reverseText
		}
		return ctx.replaySet(class, id, payload)

	default:
		return Fatalf(class, id, "unknown journal verb %q", verb)
	}
}

func (ctx *Context) replayDestroy(id uint32) error {
	l := ctx.Find(id)
	if l == nil {
		// Cascading deletion: a parent's destroy may have already torn down
		// this child (spec.md §3's tolerance for destroy-of-already-destroyed).
		return nil
	}
	bi, ok := l.(loggableInternal)
	if !ok {
		return Fatalf(l.ClassName(), id, "Loggable does not embed journal.Base")
	}
	bi.baseRef().Destroy(l)
	return nil
}

func (ctx *Context) replaySet(class string, id uint32, payload string) error {
	l := ctx.Find(id)
	if l == nil {
		return Fatalf(class, id, "set referenced unknown object 0x%X", id)
	}
	e := parseEntry(payload)
	lg := NewLogger(l)
	l.Set(e)
	lg.Close()
	return nil
}

func (ctx *Context) replayCreate(class string, id uint32, payload string) error {
	ctx.mu.Lock()
	factory, ok := ctx.registry[class]
	rid := ctx.relativeID
	ctx.mu.Unlock()
	if !ok {
		return Fatalf(class, id, "journal contains an object of unknown class %q", class)
	}
	if rid != 0 {
		id += rid
	}

	e := parseEntry(payload)
	self := factory(ctx, e, id)
	ctx.logCreate(self)

	ctx.mu.Lock()
	rec, has := ctx.idtable.lookup(id)
	var u *Entry
	if has {
		u = rec.unjournaledState
	}
	ctx.mu.Unlock()
	if u != nil {
		self.Set(u)
	}
	return nil
}

// Undo reverses the last transaction recorded at the journal's tail,
// reading it backward from undoOffset without re-scanning the whole file
// (spec.md §4.7). A no-op if the journal isn't open or nothing is left to
// undo.
func (ctx *Context) Undo() error {
	ctx.mu.Lock()
	w := ctx.writer
	offset := ctx.undoOffset
	ctx.mu.Unlock()

	if w == nil || offset == 0 {
		return nil
	}

	release := ctx.freeze()
	defer release()

	// BlockEnd flushes the reverse records this undo emits, and that flush
	// moves undoOffset to EOF; the retreat computed below is applied after
	// it, so a following Undo continues further back.
	retreatTo := int64(-1)
	ctx.BlockStart()
	defer func() {
		ctx.BlockEnd()
		if retreatTo >= 0 {
			ctx.mu.Lock()
			ctx.undoOffset = retreatTo
			ctx.mu.Unlock()
		}
	}()

	here, err := w.Seek(0, io.SeekCurrent)
	if err != nil {
		return err
	}

	pos := offset
	line, newPos, err := backwardsLine(w, pos)
	if err != nil {
		return err
	}
	if line == "" {
		return nil
	}

	if line == "}" {
		for {
			l, p, err := backwardsLine(w, newPos)
			if err != nil {
				return err
			}
			if l == "" || !strings.HasPrefix(l, "\t") {
				// either start-of-file or the opening "{" of this block: its
				// own position becomes the new undo offset, consumed either way.
				newPos = p
				break
			}
			if derr := ctx.doThis(strings.TrimPrefix(l, "\t"), true); derr != nil {
				return derr
			}
			newPos = p
		}
	} else {
		if derr := ctx.doThis(line, true); derr != nil {
			return derr
		}
	}

	if newPos > here {
		newPos = here
	}

	retreatTo = newPos

	return nil
}

// backwardsLine reads the journal line ending at pos (exclusive) and
// returns it without its trailing newline, plus the offset just past the
// preceding newline (or 0 at start-of-file) — the Go equivalent of
// backwards_afgets: scan backward from the cursor to the previous '\n' (or
// BOF), then read forward to reconstruct that one line.
func backwardsLine(rs io.ReadSeeker, pos int64) (line string, newPos int64, err error) {
	if pos <= 0 {
		return "", 0, nil
	}

	// pos sits just after a trailing '\n' (or at EOF); step back over it.
	scan := pos - 1
	const chunk = 4096
	buf := make([]byte, chunk)

	lineEnd := scan + 1
	for scan > 0 {
		readLen := int64(chunk)
		if scan < readLen {
			readLen = scan
		}
		start := scan - readLen
		if _, err := rs.Seek(start, io.SeekStart); err != nil {
			return "", 0, err
		}
		if _, err := io.ReadFull(rs, buf[:readLen]); err != nil {
			return "", 0, err
		}
		for i := int(readLen) - 1; i >= 0; i-- {
			if buf[i] == '\n' && start+int64(i) != lineEnd-1 {
				newPos = start + int64(i) + 1
				if _, err := rs.Seek(newPos, io.SeekStart); err != nil {
					return "", 0, err
				}
				lineBuf := make([]byte, lineEnd-newPos-1)
				if len(lineBuf) > 0 {
					if _, err := io.ReadFull(rs, lineBuf); err != nil {
						return "", 0, err
					}
				}
				return string(lineBuf), newPos, nil
			}
		}
		scan = start
	}

	// reached start of file without finding another '\n'
	if _, err := rs.Seek(0, io.SeekStart); err != nil {
		return "", 0, err
	}
	lineBuf := make([]byte, lineEnd-1)
	if len(lineBuf) > 0 {
		if _, err := io.ReadFull(rs, lineBuf); err != nil {
			return "", 0, err
		}
	}
	return string(lineBuf), 0, nil
}
