package journal

import (
	"strings"
	"testing"
)

func TestParseRecordHeader(t *testing.T) {
	class, id, verb, rest, ok := parseRecordHeader(`Widget 0x2a set name "beta" << name "alpha"`)
	if !ok {
		t.Fatalf("parseRecordHeader reported not ok")
	}
	if class != "Widget" || id != 0x2a || verb != "set" {
		t.Fatalf("got class=%q id=%#x verb=%q", class, id, verb)
	}
	wantRest := `name "beta" << name "alpha"`
	if rest != wantRest {
		t.Fatalf("rest = %q, want %q", rest, wantRest)
	}
}

func TestParseRecordHeaderUppercaseHexPrefix(t *testing.T) {
	_, id, _, _, ok := parseRecordHeader("Widget 0X10 create")
	if !ok || id != 0x10 {
		t.Fatalf("id = %#x, ok=%v, want 0x10, true", id, ok)
	}
}

func TestParseRecordHeaderRejectsMalformedLine(t *testing.T) {
	if _, _, _, _, ok := parseRecordHeader("   "); ok {
		t.Fatalf("parseRecordHeader accepted a blank line")
	}
}

func TestSplitForwardReverse(t *testing.T) {
	fwd, rev, has := splitForwardReverse(`name "beta" << name "alpha"`)
	if !has {
		t.Fatalf("expected a reverse payload")
	}
	if fwd != `name "beta"` || rev != `name "alpha"` {
		t.Fatalf("fwd=%q rev=%q", fwd, rev)
	}

	fwd2, rev2, has2 := splitForwardReverse(`name "alpha"`)
	if has2 || rev2 != "" {
		t.Fatalf("expected no reverse payload, got rev=%q", rev2)
	}
	if fwd2 != `name "alpha"` {
		t.Fatalf("fwd2 = %q", fwd2)
	}
}

func TestBackwardsLineWalksMultipleLines(t *testing.T) {
	content := "first\nsecond\nthird\n"
	rs := &memFile{data: dataPtr(content)}

	line, pos, err := backwardsLine(rs, int64(len(content)))
	if err != nil {
		t.Fatalf("backwardsLine: %v", err)
	}
	if line != "third" {
		t.Fatalf("line = %q, want %q", line, "third")
	}

	line, pos, err = backwardsLine(rs, pos)
	if err != nil {
		t.Fatalf("backwardsLine: %v", err)
	}
	if line != "second" {
		t.Fatalf("line = %q, want %q", line, "second")
	}

	line, pos, err = backwardsLine(rs, pos)
	if err != nil {
		t.Fatalf("backwardsLine: %v", err)
	}
	if line != "first" {
		t.Fatalf("line = %q, want %q", line, "first")
	}
	if pos != 0 {
		t.Fatalf("pos at start-of-file = %d, want 0", pos)
	}
}

func TestBackwardsLineEmptyAtZero(t *testing.T) {
	rs := &memFile{data: dataPtr("")}
	line, pos, err := backwardsLine(rs, 0)
	if err != nil {
		t.Fatalf("backwardsLine: %v", err)
	}
	if line != "" || pos != 0 {
		t.Fatalf("line=%q pos=%d, want empty/0", line, pos)
	}
}

func dataPtr(s string) *[]byte {
	b := []byte(s)
	return &b
}

func TestDoThisForwardAndReverseCreateDestroy(t *testing.T) {
	ctx := newTestContext()
	if err := ctx.Open(); err != nil {
		t.Fatalf("Open: %v", err)
	}

	if err := ctx.doThis(`Widget 0x5 create name "alpha"`, false); err != nil {
		t.Fatalf("doThis create: %v", err)
	}
	if ctx.Find(5) == nil {
		t.Fatalf("Find(5) after forward create = nil")
	}

	// reverse replay of a literal "create" line destroys the object.
	if err := ctx.doThis(`Widget 0x5 create name "alpha"`, true); err != nil {
		t.Fatalf("doThis reverse create: %v", err)
	}
	if ctx.Find(5) != nil {
		t.Fatalf("Find(5) after reverse-replaying its create line = non-nil, want destroyed")
	}
}

func TestDoThisRejectsUnknownVerb(t *testing.T) {
	ctx := newTestContext()
	if err := ctx.Open(); err != nil {
		t.Fatalf("Open: %v", err)
	}
	err := ctx.doThis(`Widget 0x1 frobnicate`, false)
	if err == nil {
		t.Fatalf("doThis accepted an unknown verb")
	}
	if !strings.Contains(err.Error(), "frobnicate") {
		t.Fatalf("error %v does not mention the offending verb", err)
	}
}
