package journal

import "fmt"

// FatalError is the Go stand-in for the original's FATAL() macro: a
// programmer/corruption error that the spec says should abort the process
// with a diagnostic naming the class, ID, and offending context (spec.md
// §7). It is returned or panicked with depending on call site; recovering
// it at a process boundary is the idiomatic equivalent of "abort with a
// diagnostic".
type FatalError struct {
	Class   string
	ID      uint32
	Message string
}

func (e *FatalError) Error() string {
	return fmt.Sprintf("%s 0x%x: %s", e.Class, e.ID, e.Message)
}

// Fatalf builds a FatalError with a formatted message.
func Fatalf(class string, id uint32, format string, args ...interface{}) *FatalError {
	return &FatalError{Class: class, ID: id, Message: fmt.Sprintf(format, args...)}
}

// reportError is a non-fatal diagnostic (the "Report" policy of spec.md §7):
// logged and returned to the caller as a failure indicator, not a panic.
type reportError struct {
	op  string
	err error
}

func (e *reportError) Error() string {
	return e.op + ": " + e.err.Error()
}

func (e *reportError) Unwrap() error { return e.err }

func report(op string, err error) error {
	if err == nil {
		return nil
	}
	return &reportError{op: op, err: err}
}
