package scanner

import (
	"errors"
	"io"

	"github.com/wudi/pclkit/command"
	"github.com/wudi/pclkit/observability"
)

// uelTail is the Universal Exit Language after ESC: ESC%-12345X switches
// the printer to PJL.
const uelTail = "%-12345X"

const pjlPrefix = "@PJL"

// matchUEL is called after ESC% has been read. It reports whether the rest
// of the UEL follows and otherwise restores the position.
func (s *pclScanner) matchUEL() (bool, error) {
	mark := s.src.Tell()
	buf := make([]byte, len(uelTail)-1)
	n, err := io.ReadFull(s.src, buf)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
		return false, err
	}
	if n == len(buf) && string(buf) == uelTail[1:] {
		return true, nil
	}
	return false, s.src.Seek(mark)
}

// scanUEL emits the line holding the UEL and enters PJL mode.
func (s *pclScanner) scanUEL(start int64) (command.Command, error) {
	line, err := s.readLine(append([]byte{command.Esc}, uelTail...))
	if err != nil {
		return nil, err
	}
	s.state = statePJL
	s.log.Debug("entering PJL mode", observability.Offset(start))
	return command.NewPJL(start, line), nil
}

// scanPJLLine emits the next @PJL line. Any other line ends PJL mode and
// returns nil with the position unchanged.
func (s *pclScanner) scanPJLLine() (command.Command, error) {
	start := s.src.Tell()
	buf := make([]byte, len(pjlPrefix))
	n, err := io.ReadFull(s.src, buf)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
		return nil, err
	}
	if n == len(buf) && string(buf) == pjlPrefix {
		line, err := s.readLine(buf)
		if err != nil {
			return nil, err
		}
		return command.NewPJL(start, line), nil
	}
	s.state = stateScanning
	s.log.Debug("leaving PJL mode", observability.Offset(start))
	return nil, s.src.Seek(start)
}

// readLine appends bytes to line through the next LF. The line also ends
// before an escape byte or at the end of the data.
func (s *pclScanner) readLine(line []byte) ([]byte, error) {
	for {
		b, err := s.src.ReadByte()
		if errors.Is(err, io.EOF) {
			return line, nil
		}
		if err != nil {
			return nil, err
		}
		if b == command.Esc {
			return line, s.unread()
		}
		line = append(line, b)
		if b == '\n' {
			return line, nil
		}
	}
}
