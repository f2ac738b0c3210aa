package journal

import (
	"bytes"

	"github.com/pierrec/lz4/v4"
)

// EnableArchival installs an archive hook so Compact writes the journal
// bytes it's about to discard to "archive/<name>.log.lz4" through the
// active Backend before truncating, instead of silently dropping undo
// history that will never be reachable again. Archival is best-effort: a
// failure here never fails Compact itself.
func (ctx *Context) EnableArchival(nameFunc func() string) {
	ctx.archiveFunc = func(c *Context, data []byte) {
		name := "archive/" + nameFunc() + ".log.lz4"

		w, err := c.backend.Create(name)
		if err != nil {
			return
		}
		defer w.Close()

		zw := lz4.NewWriter(w)
		defer zw.Close()

		_, _ = zw.Write(data)
	}
}

// DecompressArchive is the read-side counterpart, for a tool that wants to
// inspect an archived segment. Nothing in this module calls it; journalsh's
// "dump" verb lists live objects and does not read archives.
func DecompressArchive(compressed []byte) ([]byte, error) {
	zr := lz4.NewReader(bytes.NewReader(compressed))
	var out bytes.Buffer
	if _, err := out.ReadFrom(zr); err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}
