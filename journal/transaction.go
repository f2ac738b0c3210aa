package journal

// transactionBuffer accumulates complete journal lines produced between a
// BlockStart/BlockEnd pair (or a single unbracketed mutation when no block
// is open), the Go stand-in for Loggable::_transaction's std::queue<char*>.
// flush (in journal.go) decides whether to wrap the drained lines in a
// `{ ... }` envelope.
type transactionBuffer struct {
	lines []string
}

func (t *transactionBuffer) push(line string) {
	t.lines = append(t.lines, line)
}

// drain returns and clears the queued lines.
func (t *transactionBuffer) drain() []string {
	if len(t.lines) == 0 {
		return nil
	}
	out := t.lines
	t.lines = nil
	return out
}
