package source

import (
	"bufio"
	"errors"
	"fmt"
	"io"
)

// streamSource reads sequentially. The last MarkSize bytes stay available
// for backward seeks; seeking further back rewinds the underlying reader to
// where the stream started and skips forward, which needs an io.Seeker.
type streamSource struct {
	under  io.Reader
	r      *bufio.Reader
	seeker io.Seeker // nil when the reader cannot be rewound
	base   int64     // seeker offset of stream position 0
	closer io.Closer

	pos      int64
	hist     []byte // bytes [end-len(hist), end) of the stream
	end      int64  // offset of the next byte delivered by r
	markSize int
	closed   bool
}

func newStream(r io.Reader, cfg Config) *streamSource {
	s := &streamSource{
		under:    r,
		r:        bufio.NewReaderSize(r, cfg.ReadBufferSize),
		markSize: cfg.MarkSize,
	}
	if c, ok := r.(io.Closer); ok {
		s.closer = c
	}
	if sk, ok := r.(io.Seeker); ok {
		if base, err := sk.Seek(0, io.SeekCurrent); err == nil {
			s.seeker = sk
			s.base = base
		}
	}
	return s
}

func (s *streamSource) Strategy() Strategy { return StrategyStream }
func (s *streamSource) Tell() int64        { return s.pos }

func (s *streamSource) markStart() int64 { return s.end - int64(len(s.hist)) }

// remember appends freshly read bytes to the mark window.
func (s *streamSource) remember(p []byte) {
	s.hist = append(s.hist, p...)
	s.end += int64(len(p))
	if len(s.hist) > 2*s.markSize {
		s.hist = append(s.hist[:0], s.hist[len(s.hist)-s.markSize:]...)
	}
}

func (s *streamSource) ReadByte() (byte, error) {
	if s.closed {
		return 0, ErrClosed
	}
	if s.pos < s.end {
		b := s.hist[s.pos-s.markStart()]
		s.pos++
		return b, nil
	}
	b, err := s.r.ReadByte()
	if err != nil {
		return 0, s.readErr(err)
	}
	s.remember([]byte{b})
	s.pos++
	return b, nil
}

func (s *streamSource) Read(p []byte) (int, error) {
	if s.closed {
		return 0, ErrClosed
	}
	if len(p) == 0 {
		return 0, nil
	}
	if s.pos < s.end {
		n := copy(p, s.hist[s.pos-s.markStart():])
		s.pos += int64(n)
		return n, nil
	}
	n, err := s.r.Read(p)
	if n > 0 {
		s.remember(p[:n])
		s.pos += int64(n)
		return n, nil
	}
	if err != nil {
		return 0, s.readErr(err)
	}
	return 0, nil
}

func (s *streamSource) Seek(offset int64) error {
	if s.closed {
		return ErrClosed
	}
	if offset < 0 {
		return positionError(offset, "negative offset")
	}
	if offset >= s.markStart() && offset <= s.end {
		s.pos = offset
		return nil
	}
	if offset > s.end {
		return s.skipTo(offset)
	}
	if s.seeker == nil {
		return positionError(offset, fmt.Sprintf("stream cannot be rewound before offset %d", s.markStart()))
	}
	if _, err := s.seeker.Seek(s.base, io.SeekStart); err != nil {
		return &ResourceError{Op: "rewind", Err: err}
	}
	s.r.Reset(s.under)
	s.hist = s.hist[:0]
	s.end = 0
	s.pos = 0
	return s.skipTo(offset)
}

// skipTo reads forward until offset is reached. On failure the position is
// left at the end of the data read so far.
func (s *streamSource) skipTo(offset int64) error {
	buf := make([]byte, 32*1024)
	for s.end < offset {
		want := offset - s.end
		if want > int64(len(buf)) {
			want = int64(len(buf))
		}
		n, err := s.r.Read(buf[:want])
		if n > 0 {
			s.remember(buf[:n])
		}
		if err != nil {
			s.pos = s.end
			if errors.Is(err, io.EOF) {
				return positionError(offset, fmt.Sprintf("stream ends at %d", s.end))
			}
			return s.readErr(err)
		}
	}
	s.pos = offset
	return nil
}

func (s *streamSource) readErr(err error) error {
	if errors.Is(err, io.EOF) {
		return io.EOF
	}
	return &ResourceError{Op: "read", Err: err}
}

func (s *streamSource) Close() error {
	if s.closed {
		return ErrClosed
	}
	s.closed = true
	s.hist = nil
	if s.closer != nil {
		if err := s.closer.Close(); err != nil {
			return &ResourceError{Op: "close", Err: err}
		}
	}
	return nil
}
