package journal

// Logger is the scoped mutation recorder of spec.md §4.5: the Go stand-in
// for the C++ Loggable's own log_start/log_end pair, since Go has no
// constructor/destructor RAII to call them implicitly. A mutating method
// opens one at its top and closes it with defer:
//
//	func (r *Region) SetLength(n uint32) {
//	    lg := journal.NewLogger(r)
//	    defer lg.Close()
//	    r.length = n
//	}
//
// Nested Logger scopes on the same instance (one mutator calling another)
// only emit one `set` record, for the same reason the original's _nest
// counter only flushes at depth zero.
type Logger struct {
	ctx  *Context
	self Loggable
	base *Base
}

// NewLogger captures self's current journaled state. Must be paired with a
// deferred Close.
func NewLogger(self Loggable) *Logger {
	bi := self.(loggableInternal)
	b := bi.baseRef()
	b.ctx.logStart(b, self)
	return &Logger{ctx: b.ctx, self: self, base: b}
}

// Close compares self's state now against the state captured by NewLogger
// and, if different, emits one `set` record and marks the journal dirty.
func (lg *Logger) Close() {
	lg.ctx.logEnd(lg.base, lg.self)
}

// Hold bumps the nesting depth beyond this Logger's own scope, the Go
// equivalent of the original's Logger::hold(): a caller that needs an inner
// sub-scope to share the same diff window (rather than flush its own `set`
// record early) holds before entering it and releases before leaving.
func (lg *Logger) Hold() { lg.ctx.holdNest(lg.base) }

// Release undoes one Hold. It must never be the call that brings the
// nesting depth back to zero — that is Close's job — exactly as the
// original's release() asserts _nest stays nonzero afterward.
func (lg *Logger) Release() { lg.ctx.releaseNest(lg.base, lg.self) }
