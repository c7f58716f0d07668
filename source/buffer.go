package source

import "io"

// bufferSource serves the whole input from memory.
type bufferSource struct {
	data   []byte
	pos    int64
	closer io.Closer
	closed bool
}

func newBuffer(data []byte, closer io.Closer) *bufferSource {
	return &bufferSource{data: data, closer: closer}
}

func (s *bufferSource) Strategy() Strategy { return StrategyBuffer }
func (s *bufferSource) Tell() int64        { return s.pos }

func (s *bufferSource) ReadByte() (byte, error) {
	if s.closed {
		return 0, ErrClosed
	}
	if s.pos >= int64(len(s.data)) {
		return 0, io.EOF
	}
	b := s.data[s.pos]
	s.pos++
	return b, nil
}

func (s *bufferSource) Read(p []byte) (int, error) {
	if s.closed {
		return 0, ErrClosed
	}
	if s.pos >= int64(len(s.data)) {
		return 0, io.EOF
	}
	n := copy(p, s.data[s.pos:])
	s.pos += int64(n)
	return n, nil
}

func (s *bufferSource) Seek(offset int64) error {
	if s.closed {
		return ErrClosed
	}
	if offset < 0 || offset > int64(len(s.data)) {
		return positionError(offset, "beyond end of buffer")
	}
	s.pos = offset
	return nil
}

func (s *bufferSource) Close() error {
	if s.closed {
		return ErrClosed
	}
	s.closed = true
	s.data = nil
	if s.closer != nil {
		if err := s.closer.Close(); err != nil {
			return &ResourceError{Op: "close", Err: err}
		}
	}
	return nil
}
