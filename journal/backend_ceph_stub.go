//go:build !ceph

package journal

import (
	"errors"
	"io"
	"time"
)

// CephConfig configures a CephBackend. Defined unconditionally so callers
// can construct it regardless of build tags; NewCephBackend only succeeds
// in a binary built with -tags ceph.
type CephConfig struct {
	ConfigFile string
	PoolName   string
	Prefix     string
}

var errCephNotBuilt = errors.New("journal: built without -tags ceph, CephBackend unavailable")

// CephBackend is a stub in the default build, mirroring
// storage/persistence-ceph-stub.go exactly: the real RADOS-backed type only
// exists in binaries built with -tags ceph, since librados requires cgo and
// a system library most hosts don't carry.
type CephBackend struct{}

// NewCephBackend always fails in the default (non-ceph) build.
func NewCephBackend(cfg CephConfig) (*CephBackend, error) {
	return nil, errCephNotBuilt
}

func (c *CephBackend) OpenAppend(name string) (io.ReadWriteSeeker, error) { return nil, errCephNotBuilt }
func (c *CephBackend) OpenRead(name string) (io.ReadSeekCloser, error) {
	return ErrorReadCloser{Err: errCephNotBuilt}, errCephNotBuilt
}
func (c *CephBackend) Create(name string) (io.WriteCloser, error) { return nil, errCephNotBuilt }
func (c *CephBackend) Rename(oldName, newName string) error       { return errCephNotBuilt }
func (c *CephBackend) Stat(name string) (int64, time.Time, error) {
	return 0, time.Time{}, errCephNotBuilt
}
func (c *CephBackend) Remove(name string) error { return errCephNotBuilt }
