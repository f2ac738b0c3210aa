package journal

// Default is a process-wide convenience Context, for callers that want the
// original API's implicit-singleton ergonomics (spec.md §9 Design Notes)
// without every package in a program needing to thread a *Context through.
// It is nil until SetDefault is called; using the package-level helpers
// before that panics, the same way calling any Loggable method before
// Loggable::open() would operate on a null file handle.
var Default *Context

// SetDefault installs ctx as the process-wide Context used by the
// package-level Find/BlockStart/BlockEnd/Undo helpers below.
func SetDefault(ctx *Context) { Default = ctx }

// Find delegates to Default.Find.
func Find(id uint32) Loggable { return Default.Find(id) }

// BlockStart delegates to Default.BlockStart.
func BlockStart() { Default.BlockStart() }

// BlockEnd delegates to Default.BlockEnd.
func BlockEnd() { Default.BlockEnd() }

// Undo delegates to Default.Undo.
func Undo() error { return Default.Undo() }
