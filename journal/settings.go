package journal

import (
	"github.com/dc0d/onexit"
	"github.com/docker/go-units"
)

// Settings holds the ambient configuration the engine otherwise has no
// fixed answer for, grounded on storage.Settings' "parse a human string at
// InitSettings time" pattern.
type Settings struct {
	// MaxJournalSize is a human-readable size ("64MiB", "1GB"); when a flush
	// leaves the journal at or past it, that same flush runs Compact. It
	// takes effect only through ApplySettings. Empty disables
	// auto-compaction.
	MaxJournalSize string

	maxJournalSizeBytes int64
}

// DefaultSettings returns Settings with auto-compaction disabled.
func DefaultSettings() Settings {
	return Settings{}
}

// ApplySettings parses s.MaxJournalSize (via docker/go-units, the same
// library the teacher reaches for to parse shard-size style configuration)
// and installs it on ctx, returning a non-fatal error if the string doesn't
// parse — auto-compaction is simply left disabled in that case.
func (ctx *Context) ApplySettings(s Settings) error {
	if s.MaxJournalSize != "" {
		n, err := units.RAMInBytes(s.MaxJournalSize)
		if err != nil {
			return report("ApplySettings", err)
		}
		s.maxJournalSizeBytes = n
	}
	ctx.mu.Lock()
	ctx.Settings = s
	ctx.mu.Unlock()
	return nil
}

// settingsNeedsCompact reports whether the journal, now at size pos, has
// crossed the configured auto-compaction threshold. Called by flush with
// ctx.mu already held; it only reads fields, so it's safe there.
func (ctx *Context) settingsNeedsCompact(pos int64) bool {
	return ctx.Settings.maxJournalSizeBytes > 0 && pos >= ctx.Settings.maxJournalSizeBytes
}

// RegisterGracefulShutdown arranges for ctx.Close to run at process exit
// (SIGINT/SIGTERM or normal return from main), via dc0d/onexit — directly
// grounded on storage/settings.go's own onexit.Register(func() { ... })
// call for its trace-file cleanup.
func (ctx *Context) RegisterGracefulShutdown() {
	onexit.Register(func() {
		_ = ctx.Close()
	})
}
