package journal

import (
	"io"
	"os"
	"sync"
	"time"
)

// memBackend is an in-memory Backend for hermetic tests, grounded on the
// same contract FSBackend/S3Backend satisfy but without touching a real
// filesystem or network — the plain-map-based test double a teacher test
// would reach for.
type memBackend struct {
	mu    sync.Mutex
	files map[string]*[]byte
	mtime map[string]time.Time
}

func newMemBackend() *memBackend {
	return &memBackend{files: make(map[string]*[]byte), mtime: make(map[string]time.Time)}
}

type memFile struct {
	b    *memBackend
	name string
	data *[]byte
	pos  int64
}

func (f *memFile) Read(p []byte) (int, error) {
	if f.pos >= int64(len(*f.data)) {
		return 0, io.EOF
	}
	n := copy(p, (*f.data)[f.pos:])
	f.pos += int64(n)
	return n, nil
}

func (f *memFile) Write(p []byte) (int, error) {
	end := f.pos + int64(len(p))
	if end > int64(len(*f.data)) {
		grown := make([]byte, end)
		copy(grown, *f.data)
		*f.data = grown
	}
	copy((*f.data)[f.pos:end], p)
	f.pos = end
	if f.b != nil {
		f.b.mu.Lock()
		f.b.mtime[f.name] = time.Now()
		f.b.mu.Unlock()
	}
	return len(p), nil
}

func (f *memFile) Seek(offset int64, whence int) (int64, error) {
	var base int64
	switch whence {
	case io.SeekStart:
		base = 0
	case io.SeekCurrent:
		base = f.pos
	case io.SeekEnd:
		base = int64(len(*f.data))
	}
	f.pos = base + offset
	return f.pos, nil
}

func (f *memFile) Truncate(size int64) error {
	if size < int64(len(*f.data)) {
		*f.data = (*f.data)[:size]
	} else if size > int64(len(*f.data)) {
		grown := make([]byte, size)
		copy(grown, *f.data)
		*f.data = grown
	}
	return nil
}

func (f *memFile) Close() error { return nil }

func (b *memBackend) OpenAppend(name string) (io.ReadWriteSeeker, error) {
	b.mu.Lock()
	d, ok := b.files[name]
	if !ok {
		nd := []byte{}
		d = &nd
		b.files[name] = d
		b.mtime[name] = time.Now()
	}
	b.mu.Unlock()
	return &memFile{b: b, name: name, data: d, pos: int64(len(*d))}, nil
}

func (b *memBackend) OpenRead(name string) (io.ReadSeekCloser, error) {
	b.mu.Lock()
	d, ok := b.files[name]
	b.mu.Unlock()
	if !ok {
		return ErrorReadCloser{Err: os.ErrNotExist}, os.ErrNotExist
	}
	return &memFile{b: b, name: name, data: d}, nil
}

func (b *memBackend) Create(name string) (io.WriteCloser, error) {
	nd := []byte{}
	b.mu.Lock()
	b.files[name] = &nd
	b.mtime[name] = time.Now()
	b.mu.Unlock()
	return &memFile{b: b, name: name, data: &nd}, nil
}

func (b *memBackend) Rename(oldName, newName string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	d, ok := b.files[oldName]
	if !ok {
		return os.ErrNotExist
	}
	b.files[newName] = d
	b.mtime[newName] = time.Now()
	delete(b.files, oldName)
	delete(b.mtime, oldName)
	return nil
}

func (b *memBackend) Stat(name string) (int64, time.Time, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	d, ok := b.files[name]
	if !ok {
		return 0, time.Time{}, os.ErrNotExist
	}
	return int64(len(*d)), b.mtime[name], nil
}

func (b *memBackend) Remove(name string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.files, name)
	delete(b.mtime, name)
	return nil
}

// widget is the fixture Loggable used across the test suite: a minimal
// journaled "name" field plus an unjournaled "color" field, closely
// mirroring spec.md §8's end-to-end scenarios (E1, E6 both use exactly
// this shape).
type widget struct {
	Base
	name  string
	color string
}

func (w *widget) ClassName() string { return "Widget" }

func (w *widget) Get(e *Entry) {
	e.AddString("name", w.name)
}

func (w *widget) Set(e *Entry) {
	if v, ok := e.String("name"); ok {
		w.name = v
	}
	if v, ok := e.String("color"); ok {
		w.color = v
	}
}

func (w *widget) GetUnjournaled(e *Entry) {
	if w.color != "" {
		e.AddString("color", w.color)
	}
}

func widgetFactory(ctx *Context, e *Entry, id uint32) Loggable {
	w := &widget{}
	w.Base = ctx.NewInstance(w)
	ctx.UpdateID(w, id)
	w.Set(e)
	return w
}

// newWidget constructs and logs a widget the way a host's own constructor
// would: assign identity, populate fields, then log_create.
func newWidget(ctx *Context, name string) *widget {
	w := &widget{}
	w.Base = ctx.NewInstance(w)
	w.name = name
	ctx.LogCreate(w)
	return w
}

// setName mutates name under a Logger scope, the Go equivalent of a leaf
// setter bracketed by log_start/log_end.
func (w *widget) setName(name string) {
	lg := NewLogger(w)
	defer lg.Close()
	w.name = name
}

// destroy tears the widget down, the explicit stand-in for a destructor
// that calls log_destroy() at its start.
func (w *widget) destroy() {
	w.Base.Destroy(w)
}

func newTestContext() *Context {
	backend := newMemBackend()
	ctx := NewContext(backend)
	ctx.RegisterCreate("Widget", widgetFactory)
	return ctx
}
