//go:build ceph

package journal

import (
	"bytes"
	"io"
	"time"

	"github.com/ceph/go-ceph/rados"
)

// CephConfig configures a CephBackend.
type CephConfig struct {
	ConfigFile string
	PoolName   string
	Prefix     string
}

// CephBackend stores the project's files as RADOS objects in one pool,
// grounded on storage/persistence-ceph.go: a *rados.Conn opened from a
// cluster config file, one *rados.IOContext held open for the pool's
// lifetime, objects addressed by name under Prefix.
type CephBackend struct {
	cfg  CephConfig
	conn *rados.Conn
	ioctx *rados.IOContext
}

// NewCephBackend connects to the cluster described by cfg.ConfigFile and
// opens an I/O context on cfg.PoolName.
func NewCephBackend(cfg CephConfig) (*CephBackend, error) {
	conn, err := rados.NewConn()
	if err != nil {
		return nil, err
	}
	if err := conn.ReadConfigFile(cfg.ConfigFile); err != nil {
		return nil, err
	}
	if err := conn.Connect(); err != nil {
		return nil, err
	}
	ioctx, err := conn.OpenIOContext(cfg.PoolName)
	if err != nil {
		conn.Shutdown()
		return nil, err
	}
	return &CephBackend{cfg: cfg, conn: conn, ioctx: ioctx}, nil
}

func (c *CephBackend) oid(name string) string {
	if c.cfg.Prefix == "" {
		return name
	}
	return c.cfg.Prefix + "/" + name
}

// Close shuts down the I/O context and connection. Not part of Backend;
// a host that constructs a CephBackend directly is expected to call it.
func (c *CephBackend) Close() {
	c.ioctx.Destroy()
	c.conn.Shutdown()
}

// cephFile is an in-memory ReadWriteSeeker over one RADOS object, for the
// same reason s3File buffers in memory: RADOS supports byte-range
// read/write, but the Backend contract's io.ReadWriteSeeker is simplest to
// satisfy by loading fully and writing back on demand, same as S3Backend.
type cephFile struct {
	c   *CephBackend
	oid string
	buf []byte
	pos int64
}

func (c *CephBackend) openObject(name string, createIfMissing bool) (*cephFile, error) {
	oid := c.oid(name)
	st, err := c.ioctx.Stat(oid)
	if err != nil {
		if !createIfMissing {
			return nil, err
		}
		return &cephFile{c: c, oid: oid}, nil
	}
	buf := make([]byte, st.Size)
	if st.Size > 0 {
		if _, err := c.ioctx.Read(oid, buf, 0); err != nil {
			return nil, err
		}
	}
	return &cephFile{c: c, oid: oid, buf: buf}, nil
}

func (f *cephFile) Read(p []byte) (int, error) {
	if f.pos >= int64(len(f.buf)) {
		return 0, io.EOF
	}
	n := copy(p, f.buf[f.pos:])
	f.pos += int64(n)
	return n, nil
}

func (f *cephFile) Write(p []byte) (int, error) {
	end := f.pos + int64(len(p))
	if end > int64(len(f.buf)) {
		grown := make([]byte, end)
		copy(grown, f.buf)
		f.buf = grown
	}
	copy(f.buf[f.pos:end], p)
	f.pos = end
	if err := f.c.ioctx.Write(f.oid, f.buf[:end], 0); err != nil {
		return 0, err
	}
	return len(p), nil
}

// Truncate resizes the in-memory buffer and writes the new length back to
// the object immediately, matching s3File's Compact-time Truncate support.
func (f *cephFile) Truncate(size int64) error {
	if size < int64(len(f.buf)) {
		f.buf = f.buf[:size]
	} else if size > int64(len(f.buf)) {
		grown := make([]byte, size)
		copy(grown, f.buf)
		f.buf = grown
	}
	return f.c.ioctx.WriteFull(f.oid, f.buf)
}

func (f *cephFile) Seek(offset int64, whence int) (int64, error) {
	var base int64
	switch whence {
	case io.SeekStart:
		base = 0
	case io.SeekCurrent:
		base = f.pos
	case io.SeekEnd:
		base = int64(len(f.buf))
	}
	f.pos = base + offset
	return f.pos, nil
}

func (c *CephBackend) OpenAppend(name string) (io.ReadWriteSeeker, error) {
	f, err := c.openObject(name, true)
	if err != nil {
		return nil, err
	}
	f.pos = int64(len(f.buf))
	return f, nil
}

func (c *CephBackend) OpenRead(name string) (io.ReadSeekCloser, error) {
	f, err := c.openObject(name, false)
	if err != nil {
		return ErrorReadCloser{Err: err}, err
	}
	return f, nil
}

type cephWriteCloser struct {
	c   *CephBackend
	oid string
	buf bytes.Buffer
}

func (w *cephWriteCloser) Write(p []byte) (int, error) { return w.buf.Write(p) }

func (w *cephWriteCloser) Close() error {
	return w.c.ioctx.WriteFull(w.oid, w.buf.Bytes())
}

func (c *CephBackend) Create(name string) (io.WriteCloser, error) {
	return &cephWriteCloser{c: c, oid: c.oid(name)}, nil
}

// Rename copies the object's bytes under newName and removes oldName.
// RADOS has no atomic rename across object names, so (as with S3Backend)
// a failure partway through leaves newName untouched.
func (c *CephBackend) Rename(oldName, newName string) error {
	old, err := c.openObject(oldName, false)
	if err != nil {
		return err
	}
	if err := c.ioctx.WriteFull(c.oid(newName), old.buf); err != nil {
		return err
	}
	return c.ioctx.Delete(c.oid(oldName))
}

func (c *CephBackend) Stat(name string) (int64, time.Time, error) {
	st, err := c.ioctx.Stat(c.oid(name))
	if err != nil {
		return 0, time.Time{}, err
	}
	return int64(st.Size), st.ModTime, nil
}

func (c *CephBackend) Remove(name string) error {
	err := c.ioctx.Delete(c.oid(name))
	if err == rados.ErrNotFound {
		return nil
	}
	return err
}
