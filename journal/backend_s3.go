package journal

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3Config configures an S3Backend, mirroring storage.S3Factory's fields
// one-to-one (including MinIO-style ForcePathStyle/Endpoint support).
type S3Config struct {
	AccessKeyID     string
	SecretAccessKey string
	Region          string
	Endpoint        string
	Bucket          string
	Prefix          string
	ForcePathStyle  bool
}

// S3Backend stores the three project files as objects under Prefix, the
// same layout choice storage.S3Storage makes for its schema/column/log
// objects. Grounded on storage/persistence-s3.go.
type S3Backend struct {
	cfg S3Config

	mu     sync.Mutex
	client *s3.Client
	opened bool
}

// NewS3Backend returns a Backend over the given bucket/prefix; the AWS
// client is constructed lazily on first use (ensureOpen), exactly as
// S3Storage.ensureOpen defers client construction until needed.
func NewS3Backend(cfg S3Config) *S3Backend {
	return &S3Backend{cfg: cfg}
}

func (s *S3Backend) ensureOpen() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.opened {
		return
	}

	ctx := context.Background()
	var opts []func(*awsconfig.LoadOptions) error
	if s.cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(s.cfg.Region))
	}
	if s.cfg.AccessKeyID != "" && s.cfg.SecretAccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(s.cfg.AccessKeyID, s.cfg.SecretAccessKey, ""),
		))
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		panic(fmt.Sprintf("S3Backend: failed to load AWS config: %v", err))
	}

	var s3Opts []func(*s3.Options)
	if s.cfg.Endpoint != "" {
		s3Opts = append(s3Opts, func(o *s3.Options) { o.BaseEndpoint = aws.String(s.cfg.Endpoint) })
	}
	if s.cfg.ForcePathStyle {
		s3Opts = append(s3Opts, func(o *s3.Options) { o.UsePathStyle = true })
	}

	s.client = s3.NewFromConfig(cfg, s3Opts...)
	s.opened = true
}

func (s *S3Backend) key(name string) string {
	if s.cfg.Prefix == "" {
		return name
	}
	return s.cfg.Prefix + "/" + name
}

// s3File is an in-memory buffered ReadWriteSeeker backed by one S3 object.
// S3 has no append or partial-write API, so the whole object is read into
// memory on open and rewritten whole on Close if modified — the same
// read-modify-write tradeoff S3Logfile.flushLocked makes for log segments.
type s3File struct {
	s     *S3Backend
	key   string
	buf   []byte
	pos   int64
	dirty bool
}

func (s *S3Backend) openObject(name string, createIfMissing bool) (*s3File, error) {
	s.ensureOpen()
	key := s.key(name)

	resp, err := s.client.GetObject(context.Background(), &s3.GetObjectInput{
		Bucket: aws.String(s.cfg.Bucket), Key: aws.String(key),
	})
	if err != nil {
		if !createIfMissing {
			return nil, err
		}
		return &s3File{s: s, key: key}, nil
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	return &s3File{s: s, key: key, buf: data}, nil
}

func (f *s3File) Read(p []byte) (int, error) {
	if f.pos >= int64(len(f.buf)) {
		return 0, io.EOF
	}
	n := copy(p, f.buf[f.pos:])
	f.pos += int64(n)
	return n, nil
}

func (f *s3File) Write(p []byte) (int, error) {
	end := f.pos + int64(len(p))
	if end > int64(len(f.buf)) {
		grown := make([]byte, end)
		copy(grown, f.buf)
		f.buf = grown
	}
	copy(f.buf[f.pos:end], p)
	f.pos = end
	f.dirty = true
	return len(p), nil
}

// Truncate resizes the in-memory buffer, letting Context.Compact truncate
// an S3-backed journal the same way it truncates a local file.
func (f *s3File) Truncate(size int64) error {
	if size < int64(len(f.buf)) {
		f.buf = f.buf[:size]
	} else if size > int64(len(f.buf)) {
		grown := make([]byte, size)
		copy(grown, f.buf)
		f.buf = grown
	}
	f.dirty = true
	return nil
}

func (f *s3File) Seek(offset int64, whence int) (int64, error) {
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

// Close flushes the buffer back to S3 if it was written to. Context.Close
// type-asserts a Close method on the journal writer and calls this, since
// io.ReadWriteSeeker itself has no Close method. Block flushes do not call
// it, so journal records reach S3 only when the Context is closed.
func (f *s3File) Close() error {
	if !f.dirty {
		return nil
	}
	_, err := f.s.client.PutObject(context.Background(), &s3.PutObjectInput{
		Bucket: aws.String(f.s.cfg.Bucket),
		Key:    aws.String(f.key),
		Body:   bytes.NewReader(f.buf),
	})
	if err == nil {
		f.dirty = false
	}
	return err
}

func (s *S3Backend) OpenAppend(name string) (io.ReadWriteSeeker, error) {
	f, err := s.openObject(name, true)
	if err != nil {
		return nil, err
	}
	f.pos = int64(len(f.buf)) // "a+" starts positioned at end
	return f, nil
}

func (s *S3Backend) OpenRead(name string) (io.ReadSeekCloser, error) {
	f, err := s.openObject(name, false)
	if err != nil {
		return ErrorReadCloser{Err: err}, err
	}
	return f, nil
}

type s3WriteCloser struct {
	s   *S3Backend
	key string
	buf bytes.Buffer
}

func (w *s3WriteCloser) Write(p []byte) (int, error) { return w.buf.Write(p) }

func (w *s3WriteCloser) Close() error {
	_, err := w.s.client.PutObject(context.Background(), &s3.PutObjectInput{
		Bucket: aws.String(w.s.cfg.Bucket),
		Key:    aws.String(w.key),
		Body:   bytes.NewReader(w.buf.Bytes()),
	})
	return err
}

func (s *S3Backend) Create(name string) (io.WriteCloser, error) {
	s.ensureOpen()
	return &s3WriteCloser{s: s, key: s.key(name)}, nil
}

// Rename copy-then-deletes, since S3 has no atomic rename. If CopyObject
// fails, newName is left untouched — the same "old snapshot untouched on
// failure" guarantee spec.md §7 requires for SnapshotWriteFailure.
func (s *S3Backend) Rename(oldName, newName string) error {
	s.ensureOpen()
	src := s.cfg.Bucket + "/" + s.key(oldName)
	_, err := s.client.CopyObject(context.Background(), &s3.CopyObjectInput{
		Bucket:     aws.String(s.cfg.Bucket),
		Key:        aws.String(s.key(newName)),
		CopySource: aws.String(src),
	})
	if err != nil {
		return err
	}
	_, err = s.client.DeleteObject(context.Background(), &s3.DeleteObjectInput{
		Bucket: aws.String(s.cfg.Bucket), Key: aws.String(s.key(oldName)),
	})
	return err
}

func (s *S3Backend) Stat(name string) (int64, time.Time, error) {
	s.ensureOpen()
	head, err := s.client.HeadObject(context.Background(), &s3.HeadObjectInput{
		Bucket: aws.String(s.cfg.Bucket), Key: aws.String(s.key(name)),
	})
	if err != nil {
		return 0, time.Time{}, err
	}
	var size int64
	if head.ContentLength != nil {
		size = *head.ContentLength
	}
	var mt time.Time
	if head.LastModified != nil {
		mt = *head.LastModified
	}
	return size, mt, nil
}

func (s *S3Backend) Remove(name string) error {
	s.ensureOpen()
	_, err := s.client.DeleteObject(context.Background(), &s3.DeleteObjectInput{
		Bucket: aws.String(s.cfg.Bucket), Key: aws.String(s.key(name)),
	})
	return err
}
