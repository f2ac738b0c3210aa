package journal

import (
	"io"
	"os"
	"path/filepath"
	"time"
)

// FSBackend is the local-filesystem Backend, grounded on
// storage/persistence-files.go's FileStorage: plain os.* calls rooted at a
// project directory, including the "#name" temp-file-then-rename idiom
// Loggable::snapshot(const char *name) uses for atomic publication.
type FSBackend struct {
	Dir string
}

// NewFSBackend returns a Backend rooted at dir, creating it if absent.
func NewFSBackend(dir string) (*FSBackend, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, err
	}
	return &FSBackend{Dir: dir}, nil
}

func (f *FSBackend) path(name string) string {
	return filepath.Join(f.Dir, name)
}

func (f *FSBackend) OpenAppend(name string) (io.ReadWriteSeeker, error) {
	// O_APPEND makes every Write land at EOF regardless of the file
	// position a prior Seek (e.g. Undo's backwards_afgets-equivalent scan)
	// left behind, matching fopen(name, "a+") in the C original.
	return os.OpenFile(f.path(name), os.O_RDWR|os.O_CREATE|os.O_APPEND, 0o640)
}

func (f *FSBackend) OpenRead(name string) (io.ReadSeekCloser, error) {
	fh, err := os.Open(f.path(name))
	if err != nil {
		return ErrorReadCloser{Err: err}, err
	}
	return fh, nil
}

func (f *FSBackend) Create(name string) (io.WriteCloser, error) {
	return os.Create(f.path(name))
}

func (f *FSBackend) Rename(oldName, newName string) error {
	return os.Rename(f.path(oldName), f.path(newName))
}

func (f *FSBackend) Stat(name string) (int64, time.Time, error) {
	st, err := os.Stat(f.path(name))
	if err != nil {
		return 0, time.Time{}, err
	}
	return st.Size(), st.ModTime(), nil
}

func (f *FSBackend) Remove(name string) error {
	err := os.Remove(f.path(name))
	if os.IsNotExist(err) {
		return nil
	}
	return err
}
