package dumper

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"github.com/dbsmedya/goseed/internal/verifier"
)

// Spool kinds accepted in dump.spool.
const (
	SpoolMemory = "memory"
	SpoolFile   = "file"
)

// spool is the scratch storage behind a segment.
type spool interface {
	io.Writer
	io.WriterTo
	Close() error
}

type memorySpool struct {
	bytes.Buffer
}

func (*memorySpool) Close() error { return nil }

// fileSpool keeps a segment in a temp file removed on Close.
type fileSpool struct {
	f *os.File
}

func (s *fileSpool) Write(p []byte) (int, error) {
	return s.f.Write(p)
}

func (s *fileSpool) WriteTo(w io.Writer) (int64, error) {
	if _, err := s.f.Seek(0, io.SeekStart); err != nil {
		return 0, err
	}
	return io.Copy(w, s.f)
}

func (s *fileSpool) Close() error {
	name := s.f.Name()
	err := s.f.Close()
	if rmErr := os.Remove(name); rmErr != nil && err == nil {
		err = rmErr
	}
	return err
}

func newSpool(kind string) (spool, error) {
	switch kind {
	case "", SpoolMemory:
		return &memorySpool{}, nil
	case SpoolFile:
		f, err := os.CreateTemp("", "goseed-segment-*.sql")
		if err != nil {
			return nil, fmt.Errorf("create spool file: %w", err)
		}
		return &fileSpool{f: f}, nil
	default:
		return nil, fmt.Errorf("unknown spool kind %q", kind)
	}
}

// segment is the output of one walker along with the manifest entries of
// the rows it holds. Storage is created on the first write.
type segment struct {
	path    string
	table   string
	kind    string
	spool   spool
	entries []verifier.Entry
}

func newSegment(path, table, kind string) *segment {
	return &segment{path: path, table: table, kind: kind}
}

func (s *segment) Write(p []byte) (int, error) {
	if s.spool == nil {
		sp, err := newSpool(s.kind)
		if err != nil {
			return 0, err
		}
		s.spool = sp
	}
	return s.spool.Write(p)
}

func (s *segment) empty() bool {
	return s.spool == nil
}

func (s *segment) WriteTo(w io.Writer) (int64, error) {
	if s.spool == nil {
		return 0, nil
	}
	return s.spool.WriteTo(w)
}

func (s *segment) Close() error {
	if s.spool == nil {
		return nil
	}
	err := s.spool.Close()
	s.spool = nil
	return err
}

func closeSegments(segs []*segment) {
	for _, s := range segs {
		_ = s.Close()
	}
}
