// Package source provides random-access byte sources over in-memory buffers,
// memory-mapped files and sequential streams. All strategies share one
// read/seek/tell contract so that the scanner does not depend on the input
// type.
package source

import (
	"errors"
	"fmt"
	"io"
	"os"

	"golang.org/x/exp/mmap"

	"github.com/wudi/pclkit/observability"
)

// Source is a seekable byte source. Positions are absolute offsets from the
// start of the data. A Source is not safe for concurrent use.
type Source interface {
	// ReadByte returns the next byte or io.EOF at the end of the data.
	ReadByte() (byte, error)
	// Read fills as much of p as is available and returns io.EOF only when
	// called at the end of the data.
	Read(p []byte) (int, error)
	// Seek repositions to the absolute offset. Unreachable offsets fail with
	// an error matching ErrPosition.
	Seek(offset int64) error
	// Tell returns the current absolute position.
	Tell() int64
	// Close releases the backing resource. Every later call fails with
	// ErrClosed.
	Close() error
	Strategy() Strategy
}

// Strategy identifies how a Source reaches its bytes.
type Strategy int

const (
	StrategyBuffer Strategy = iota
	StrategyMapped
	StrategyStream
)

func (s Strategy) String() string {
	switch s {
	case StrategyBuffer:
		return "buffer"
	case StrategyMapped:
		return "mapped"
	case StrategyStream:
		return "stream"
	default:
		return fmt.Sprintf("strategy(%d)", int(s))
	}
}

var (
	// ErrPosition reports a seek to an offset the source cannot reach.
	ErrPosition = errors.New("position out of range")
	// ErrClosed reports use of a source after Close.
	ErrClosed = errors.New("source closed")
)

// ResourceError reports a failure to acquire, read or release the backing
// resource.
type ResourceError struct {
	Op   string
	Path string
	Err  error
}

func (e *ResourceError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("source: %s %s: %v", e.Op, e.Path, e.Err)
	}
	return fmt.Sprintf("source: %s: %v", e.Op, e.Err)
}

func (e *ResourceError) Unwrap() error { return e.Err }

func positionError(offset int64, reason string) error {
	return fmt.Errorf("source: seek %d: %s: %w", offset, reason, ErrPosition)
}

// Config holds the strategy thresholds. Zero values select the defaults.
type Config struct {
	// MaxBufferSize bounds readers with a known length that are copied into
	// memory.
	MaxBufferSize int64
	// MaxMapSize bounds files that are memory-mapped; larger files are
	// streamed.
	MaxMapSize int64
	// MarkSize is the number of recently read bytes a stream keeps for
	// backward seeks.
	MarkSize int
	// ReadBufferSize is the bufio buffer size of streams.
	ReadBufferSize int
	Logger         observability.Logger
}

const (
	DefaultMaxBufferSize  = 64 << 20
	DefaultMaxMapSize     = 1<<31 - 2
	DefaultMarkSize       = 4096
	DefaultReadBufferSize = 64 * 1024

	minMarkSize = 64
)

func (c Config) withDefaults() Config {
	if c.MaxBufferSize <= 0 {
		c.MaxBufferSize = DefaultMaxBufferSize
	}
	if c.MaxMapSize <= 0 {
		c.MaxMapSize = DefaultMaxMapSize
	}
	if c.MarkSize <= 0 {
		c.MarkSize = DefaultMarkSize
	}
	if c.MarkSize < minMarkSize {
		c.MarkSize = minMarkSize
	}
	if c.ReadBufferSize <= 0 {
		c.ReadBufferSize = DefaultReadBufferSize
	}
	c.Logger = observability.OrNop(c.Logger)
	return c
}

// FromBytes returns a buffer source over a private copy of data.
func FromBytes(data []byte) Source {
	return newBuffer(append([]byte(nil), data...), nil)
}

// Open opens the named file. Regular files up to MaxMapSize are mapped,
// everything else is streamed.
func Open(path string, cfg Config) (Source, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &ResourceError{Op: "open", Path: path, Err: err}
	}
	return openFile(f, cfg.withDefaults())
}

// New picks a strategy for r from its size and takes ownership of it:
// if r is an io.Closer it is closed together with the source. Files are
// handled as in Open, readers reporting Len() up to MaxBufferSize are copied
// into memory and any other reader is streamed. A failing size check falls back
// to streaming.
func New(r io.Reader, cfg Config) (Source, error) {
	cfg = cfg.withDefaults()
	switch v := r.(type) {
	case *os.File:
		return openFile(v, cfg)
	case interface{ Len() int }:
		if int64(v.Len()) <= cfg.MaxBufferSize {
			data, err := io.ReadAll(r)
			if err != nil {
				return nil, &ResourceError{Op: "read", Err: err}
			}
			closer, _ := r.(io.Closer)
			return newBuffer(data, closer), nil
		}
	}
	return newStream(r, cfg), nil
}

func openFile(f *os.File, cfg Config) (Source, error) {
	log := cfg.Logger.With(observability.String("path", f.Name()))
	fi, err := f.Stat()
	if err != nil {
		log.Warn("stat failed, streaming input", observability.Error("error", err))
		return newStream(f, cfg), nil
	}
	if !fi.Mode().IsRegular() {
		return newStream(f, cfg), nil
	}
	// a mapping always starts at byte 0; a file handed over mid-way is
	// streamed from its current position instead
	if pos, err := f.Seek(0, io.SeekCurrent); err != nil || pos != 0 {
		log.Debug("file not at start, streaming input", observability.Int64("position", pos))
		return newStream(f, cfg), nil
	}
	size := fi.Size()
	if size == 0 {
		return newBuffer(nil, f), nil
	}
	if size > cfg.MaxMapSize {
		log.Debug("file exceeds map limit, streaming input", observability.Int64("size", size))
		return newStream(f, cfg), nil
	}
	m, err := mmap.Open(f.Name())
	if err != nil {
		log.Warn("mmap failed, streaming input", observability.Error("error", err))
		return newStream(f, cfg), nil
	}
	return newMapped(m, f, f.Name()), nil
}
