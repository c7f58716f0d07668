// Package scanner tokenizes PCL and PJL data streams into commands.
package scanner

import (
	"errors"
	"fmt"
	"io"
	"iter"

	"github.com/shopspring/decimal"

	"github.com/wudi/pclkit/command"
	"github.com/wudi/pclkit/observability"
	"github.com/wudi/pclkit/source"
)

// Scanner yields the commands of a data stream in order. Next returns io.EOF
// after the last command. Any other error is terminal and is returned again
// by every later call; commands returned before it stay valid.
type Scanner interface {
	Next() (command.Command, error)
	Position() int64
}

// Config bounds the work done per command. The zero value scans without
// limits and captures every binary payload.
type Config struct {
	// MaxDataLength bounds the binary payload of data-carrying commands;
	// zero means no limit.
	MaxDataLength int64
	// SkipBinaryData disables payload capture: the bytes that follow
	// data-carrying commands are scanned like any other input.
	SkipBinaryData bool
	Logger         observability.Logger
}

// ErrGrammar matches every *GrammarError.
var ErrGrammar = errors.New("pcl grammar error")

// GrammarError reports a byte stream that violates the escape sequence
// grammar. Offset is the position of the offending byte, or of the end of
// the data.
type GrammarError struct {
	Offset int64
	Msg    string
}

func (e *GrammarError) Error() string {
	return fmt.Sprintf("pcl grammar error at offset %d: %s", e.Offset, e.Msg)
}

func (e *GrammarError) Is(target error) bool { return target == ErrGrammar }

func grammarErr(offset int64, format string, args ...interface{}) error {
	return &GrammarError{Offset: offset, Msg: fmt.Sprintf(format, args...)}
}

type state int

const (
	stateScanning state = iota
	stateCombined       // after a lowercase terminator
	statePJL            // at the start of a line in PJL mode
)

type pclScanner struct {
	src   source.Source
	cfg   Config
	log   observability.Logger
	state state
	// group and parameter of the running combined sequence
	group     byte
	parameter byte
	err       error
}

// New returns a scanner reading src from its current position. The scanner
// owns src for the duration of the parse but does not close it.
func New(src source.Source, cfg Config) Scanner {
	return &pclScanner{src: src, cfg: cfg, log: observability.OrNop(cfg.Logger)}
}

func (s *pclScanner) Position() int64 { return s.src.Tell() }

func (s *pclScanner) Next() (command.Command, error) {
	if s.err != nil {
		return nil, s.err
	}
	cmd, err := s.next()
	if err != nil {
		s.err = err
		if !errors.Is(err, io.EOF) {
			s.log.Debug("scan failed", observability.Offset(s.src.Tell()), observability.Error("error", err))
		}
		return nil, err
	}
	return cmd, nil
}

func (s *pclScanner) next() (command.Command, error) {
	switch s.state {
	case stateCombined:
		cmd, err := s.scanCombined()
		if cmd != nil || err != nil {
			return cmd, err
		}
	case statePJL:
		cmd, err := s.scanPJLLine()
		if cmd != nil || err != nil {
			return cmd, err
		}
	}
	return s.scan()
}

func (s *pclScanner) scan() (command.Command, error) {
	start := s.src.Tell()
	b, err := s.src.ReadByte()
	if err != nil {
		return nil, err
	}
	switch {
	case b == command.Esc:
		return s.scanEscape(start)
	case command.IsControl(b):
		return command.NewControlCharacter(start, b), nil
	}
	return s.scanText(start, b)
}

// unread steps back over the byte just read.
func (s *pclScanner) unread() error {
	return s.src.Seek(s.src.Tell() - 1)
}

func (s *pclScanner) scanText(start int64, first byte) (command.Command, error) {
	text := []byte{first}
	for {
		b, err := s.src.ReadByte()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		if b == command.Esc || command.IsControl(b) {
			if err := s.unread(); err != nil {
				return nil, err
			}
			break
		}
		text = append(text, b)
	}
	return command.NewText(start, text), nil
}

// readIn reads a byte that must exist because an escape sequence started at
// start is not complete yet.
func (s *pclScanner) readIn(start int64) (byte, error) {
	b, err := s.src.ReadByte()
	if errors.Is(err, io.EOF) {
		return 0, grammarErr(s.src.Tell(), "unterminated escape sequence starting at %d", start)
	}
	return b, err
}

func (s *pclScanner) scanEscape(start int64) (command.Command, error) {
	b, err := s.readIn(start)
	if err != nil {
		return nil, err
	}
	switch {
	case b == '%':
		ok, err := s.matchUEL()
		if err != nil {
			return nil, err
		}
		if ok {
			return s.scanUEL(start)
		}
		return s.scanParameterized(start, b)
	case isGroup(b):
		return s.scanParameterized(start, b)
	case b >= 0x30 && b <= 0x7E:
		return command.NewTwoByte(start, b), nil
	default:
		return nil, grammarErr(s.src.Tell()-1, "invalid character %#02x after escape", b)
	}
}

func (s *pclScanner) scanParameterized(start int64, group byte) (command.Command, error) {
	b, err := s.readIn(start)
	if err != nil {
		return nil, err
	}
	var parameter byte
	if isParameter(b) {
		parameter = b
		if b, err = s.readIn(start); err != nil {
			return nil, err
		}
	}
	return s.finish(start, group, parameter, b)
}

// scanCombined continues a combined sequence without a new escape byte. A
// lowercase letter starts a command with a new parameter letter; a value
// byte or an uppercase terminator reuses the previous parameter letter. End
// of data or an escape byte end the sequence and return nil.
func (s *pclScanner) scanCombined() (command.Command, error) {
	s.state = stateScanning
	start := s.src.Tell()
	b, err := s.src.ReadByte()
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	switch {
	case b == command.Esc:
		return nil, s.unread()
	case isParameter(b):
		next, err := s.readIn(start)
		if err != nil {
			return nil, err
		}
		return s.finish(start, s.group, b, next)
	case isValueByte(b) || isFinal(b):
		return s.finish(start, s.group, s.parameter, b)
	default:
		return nil, grammarErr(start, "invalid character %#02x in combined sequence", b)
	}
}

// finish reads the value starting with b and the terminator, then builds
// the command at offset.
func (s *pclScanner) finish(offset int64, group, parameter, b byte) (command.Command, error) {
	valueStart := s.src.Tell() - 1
	var value []byte
	for isValueByte(b) {
		value = append(value, b)
		var err error
		if b, err = s.readIn(offset); err != nil {
			return nil, err
		}
	}
	if !isFinal(b) && !isParameter(b) {
		return nil, grammarErr(s.src.Tell()-1, "non-numeric character %#02x in parameter value", b)
	}
	if len(value) > 0 {
		if _, err := decimal.NewFromString(string(value)); err != nil {
			return nil, grammarErr(valueStart, "malformed parameter value %q", value)
		}
	}

	// a data command may sit inside a combined sequence (ESC*b3w...), so the
	// payload is looked up with the terminator folded to uppercase
	var data []byte
	if !s.cfg.SkipBinaryData && carriesData(group, parameter, upper(b)) {
		var err error
		if data, err = s.readData(offset, string(value)); err != nil {
			return nil, err
		}
	}
	if isParameter(b) {
		s.state = stateCombined
		s.group, s.parameter = group, parameter
	} else {
		s.state = stateScanning
	}
	return command.NewParameterizedData(offset, group, parameter, string(value), b, data), nil
}

// isGroup reports the parameterized characters 0x21-0x2F.
func isGroup(b byte) bool { return b >= 0x21 && b <= 0x2F }

// isParameter reports lowercase parameter letters, which double as the
// terminators of commands inside a combined sequence.
func isParameter(b byte) bool { return b >= 0x60 && b <= 0x7E }

// isFinal reports the uppercase terminators that end a sequence.
func isFinal(b byte) bool { return b >= 0x40 && b <= 0x5E }

func upper(b byte) byte {
	if isParameter(b) {
		return b - 0x20
	}
	return b
}

func isValueByte(b byte) bool {
	return (b >= '0' && b <= '9') || b == '+' || b == '-' || b == '.'
}

// All adapts s to a range-over-func sequence. Iteration stops after the
// last command or after yielding the first error.
func All(s Scanner) iter.Seq2[command.Command, error] {
	return func(yield func(command.Command, error) bool) {
		for {
			cmd, err := s.Next()
			if errors.Is(err, io.EOF) {
				return
			}
			if err != nil {
				yield(nil, err)
				return
			}
			if !yield(cmd, nil) {
				return
			}
		}
	}
}

// ParseBytes scans data completely. On error it returns the commands decoded
// before the error together with the error.
func ParseBytes(data []byte, cfg Config) ([]command.Command, error) {
	src := source.FromBytes(data)
	defer src.Close()

	var cmds []command.Command
	for cmd, err := range All(New(src, cfg)) {
		if err != nil {
			return cmds, err
		}
		cmds = append(cmds, cmd)
	}
	return cmds, nil
}
