package source

import (
	"io"

	"github.com/hashicorp/go-multierror"
)

// mapping is the part of *mmap.ReaderAt the source uses.
type mapping interface {
	io.ReaderAt
	io.Closer
	At(i int) byte
	Len() int
}

// mappedSource reads a read-only memory mapping of a file.
type mappedSource struct {
	m      mapping
	file   io.Closer
	path   string
	size   int64
	pos    int64
	closed bool
}

func newMapped(m mapping, file io.Closer, path string) *mappedSource {
	return &mappedSource{m: m, file: file, path: path, size: int64(m.Len())}
}

func (s *mappedSource) Strategy() Strategy { return StrategyMapped }
func (s *mappedSource) Tell() int64        { return s.pos }

func (s *mappedSource) ReadByte() (byte, error) {
	if s.closed {
		return 0, ErrClosed
	}
	if s.pos >= s.size {
		return 0, io.EOF
	}
	b := s.m.At(int(s.pos))
	s.pos++
	return b, nil
}

func (s *mappedSource) Read(p []byte) (int, error) {
	if s.closed {
		return 0, ErrClosed
	}
	if s.pos >= s.size {
		return 0, io.EOF
	}
	n, err := s.m.ReadAt(p, s.pos)
	s.pos += int64(n)
	if n > 0 {
		return n, nil
	}
	if err != nil && err != io.EOF {
		return 0, &ResourceError{Op: "read", Path: s.path, Err: err}
	}
	return 0, io.EOF
}

func (s *mappedSource) Seek(offset int64) error {
	if s.closed {
		return ErrClosed
	}
	if offset < 0 || offset > s.size {
		return positionError(offset, "beyond end of mapping")
	}
	s.pos = offset
	return nil
}

// Close unmaps the file and closes the handle; both are attempted even if
// the first fails.
func (s *mappedSource) Close() error {
	if s.closed {
		return ErrClosed
	}
	s.closed = true
	var result error
	if err := s.m.Close(); err != nil {
		result = multierror.Append(result, &ResourceError{Op: "unmap", Path: s.path, Err: err})
	}
	if s.file != nil {
		if err := s.file.Close(); err != nil {
			result = multierror.Append(result, &ResourceError{Op: "close", Path: s.path, Err: err})
		}
	}
	return result
}

