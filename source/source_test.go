package source

import (
	"bytes"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/hashicorp/go-multierror"
)

// plainReader hides every interface but io.Reader so that New streams it.
type plainReader struct{ r io.Reader }

func (p plainReader) Read(b []byte) (int, error) { return p.r.Read(b) }

// rewindReader is a stream that can only be rewound through io.Seeker.
type rewindReader struct{ rs io.ReadSeeker }

func (r rewindReader) Read(b []byte) (int, error)              { return r.rs.Read(b) }
func (r rewindReader) Seek(off int64, whence int) (int64, error) { return r.rs.Seek(off, whence) }

func testData(n int) []byte {
	data := make([]byte, n)
	for i := range data {
		data[i] = byte(i*7 + 3)
	}
	return data
}

func writeTemp(t *testing.T, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "job.pcl")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write temp file: %v", err)
	}
	return path
}

type opener func(t *testing.T, data []byte) Source

func openers() map[string]opener {
	return map[string]opener{
		"buffer": func(t *testing.T, data []byte) Source { return FromBytes(data) },
		"mapped": func(t *testing.T, data []byte) Source {
			src, err := Open(writeTemp(t, data), Config{})
			if err != nil {
				t.Fatalf("open: %v", err)
			}
			return src
		},
		"stream": func(t *testing.T, data []byte) Source {
			src, err := New(rewindReader{bytes.NewReader(data)}, Config{MarkSize: 64})
			if err != nil {
				t.Fatalf("new: %v", err)
			}
			return src
		},
	}
}

func TestSource_ReadSeekTell(t *testing.T) {
	data := testData(1000)
	for name, open := range openers() {
		t.Run(name, func(t *testing.T) {
			src := open(t, data)
			defer src.Close()

			first := make([]byte, 300)
			if _, err := io.ReadFull(src, first); err != nil {
				t.Fatalf("read: %v", err)
			}
			if src.Tell() != 300 {
				t.Fatalf("tell after read = %d", src.Tell())
			}
			b, err := src.ReadByte()
			if err != nil || b != data[300] || src.Tell() != 301 {
				t.Fatalf("ReadByte = %#x, %v at %d", b, err, src.Tell())
			}

			if err := src.Seek(0); err != nil {
				t.Fatalf("seek 0: %v", err)
			}
			again := make([]byte, 300)
			if _, err := io.ReadFull(src, again); err != nil {
				t.Fatalf("read again: %v", err)
			}
			if !bytes.Equal(first, again) {
				t.Fatalf("re-reading after seek(0) differs")
			}

			if err := src.Seek(990); err != nil {
				t.Fatalf("seek 990: %v", err)
			}
			rest, err := io.ReadAll(src)
			if err != nil || !bytes.Equal(rest, data[990:]) {
				t.Fatalf("tail read %v, %v", rest, err)
			}
			if _, err := src.ReadByte(); err != io.EOF {
				t.Fatalf("expected io.EOF at end, got %v", err)
			}
			if n, err := src.Read(make([]byte, 4)); n != 0 || err != io.EOF {
				t.Fatalf("Read at end = %d, %v", n, err)
			}
			if err := src.Seek(int64(len(data))); err != nil {
				t.Fatalf("seek to end must succeed: %v", err)
			}
		})
	}
}

func TestSource_SeekPastEndFails(t *testing.T) {
	data := testData(10)
	for name, open := range openers() {
		t.Run(name, func(t *testing.T) {
			src := open(t, data)
			defer src.Close()
			if _, err := src.ReadByte(); err != nil {
				t.Fatalf("read: %v", err)
			}
			err := src.Seek(11)
			if !errors.Is(err, ErrPosition) {
				t.Fatalf("expected ErrPosition, got %v", err)
			}
			if err := src.Seek(-1); !errors.Is(err, ErrPosition) {
				t.Fatalf("expected ErrPosition for negative offset, got %v", err)
			}
		})
	}
}

func TestSource_BoundedSeekFailureKeepsPosition(t *testing.T) {
	src := FromBytes([]byte("abc"))
	defer src.Close()
	src.ReadByte()
	if err := src.Seek(4); err == nil {
		t.Fatalf("expected seek failure")
	}
	if src.Tell() != 1 {
		t.Fatalf("failed seek moved the position to %d", src.Tell())
	}
}

func TestSource_CloseOnce(t *testing.T) {
	for name, open := range openers() {
		t.Run(name, func(t *testing.T) {
			src := open(t, testData(16))
			if err := src.Close(); err != nil {
				t.Fatalf("close: %v", err)
			}
			if err := src.Close(); !errors.Is(err, ErrClosed) {
				t.Fatalf("second close = %v", err)
			}
			if _, err := src.ReadByte(); !errors.Is(err, ErrClosed) {
				t.Fatalf("read after close = %v", err)
			}
			if err := src.Seek(0); !errors.Is(err, ErrClosed) {
				t.Fatalf("seek after close = %v", err)
			}
		})
	}
}

func TestStream_NonRewindable(t *testing.T) {
	data := testData(1000)
	src, err := New(plainReader{bytes.NewReader(data)}, Config{MarkSize: 64})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	defer src.Close()
	if src.Strategy() != StrategyStream {
		t.Fatalf("expected stream strategy, got %v", src.Strategy())
	}
	if _, err := io.ReadAll(src); err != nil {
		t.Fatalf("read all: %v", err)
	}
	if err := src.Seek(0); !errors.Is(err, ErrPosition) {
		t.Fatalf("rewind of a live stream must fail with ErrPosition, got %v", err)
	}
	if err := src.Seek(990); err != nil {
		t.Fatalf("seek inside mark window: %v", err)
	}
	b, err := src.ReadByte()
	if err != nil || b != data[990] {
		t.Fatalf("read after window seek = %#x, %v", b, err)
	}
}

func TestStream_ForwardSkip(t *testing.T) {
	data := testData(100000)
	src, err := New(plainReader{bytes.NewReader(data)}, Config{})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	defer src.Close()
	if err := src.Seek(70000); err != nil {
		t.Fatalf("forward seek: %v", err)
	}
	b, err := src.ReadByte()
	if err != nil || b != data[70000] {
		t.Fatalf("read after skip = %#x, %v", b, err)
	}
	if err := src.Seek(200000); !errors.Is(err, ErrPosition) {
		t.Fatalf("expected ErrPosition past end of stream, got %v", err)
	}
}

func TestNew_ProbesStrategy(t *testing.T) {
	src, err := New(bytes.NewReader([]byte("abc")), Config{})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if src.Strategy() != StrategyBuffer {
		t.Fatalf("known-length reader should be buffered, got %v", src.Strategy())
	}
	src.Close()

	src, err = New(bytes.NewReader(testData(200)), Config{MaxBufferSize: 100})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if src.Strategy() != StrategyStream {
		t.Fatalf("reader above MaxBufferSize should be streamed, got %v", src.Strategy())
	}
	src.Close()
}

func TestOpen_Strategies(t *testing.T) {
	src, err := Open(writeTemp(t, testData(100)), Config{})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if src.Strategy() != StrategyMapped {
		t.Fatalf("expected mapped strategy, got %v", src.Strategy())
	}
	src.Close()

	src, err = Open(writeTemp(t, testData(100)), Config{MaxMapSize: 50})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if src.Strategy() != StrategyStream {
		t.Fatalf("file above MaxMapSize should be streamed, got %v", src.Strategy())
	}
	// files are rewindable streams
	io.ReadAll(src)
	if err := src.Seek(0); err != nil {
		t.Fatalf("rewind of file stream: %v", err)
	}
	if b, _ := src.ReadByte(); b != testData(1)[0] {
		t.Fatalf("unexpected first byte after rewind %#x", b)
	}
	src.Close()

	src, err = Open(writeTemp(t, nil), Config{})
	if err != nil {
		t.Fatalf("open empty: %v", err)
	}
	if _, err := src.ReadByte(); err != io.EOF {
		t.Fatalf("empty file should be at EOF, got %v", err)
	}
	src.Close()

	_, err = Open(filepath.Join(t.TempDir(), "missing.pcl"), Config{})
	var re *ResourceError
	if !errors.As(err, &re) || re.Op != "open" {
		t.Fatalf("expected open ResourceError, got %v", err)
	}
}

type failingCloser struct{ *bytes.Reader }

func (failingCloser) Close() error { return errors.New("disk gone") }

func TestClose_SurfacesReleaseError(t *testing.T) {
	src, err := New(failingCloser{bytes.NewReader([]byte("x"))}, Config{})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	var re *ResourceError
	if err := src.Close(); !errors.As(err, &re) {
		t.Fatalf("expected ResourceError from close, got %v", err)
	}
	if _, err := src.ReadByte(); !errors.Is(err, ErrClosed) {
		t.Fatalf("source must be released even when close fails, got %v", err)
	}
}

func TestNew_FileHandedOverMidway(t *testing.T) {
	path := writeTemp(t, []byte("HEADERpayload"))
	for name, cfg := range map[string]Config{"small": {}, "above map limit": {MaxMapSize: 1}} {
		t.Run(name, func(t *testing.T) {
			f, err := os.Open(path)
			if err != nil {
				t.Fatalf("open: %v", err)
			}
			if _, err := f.Seek(6, io.SeekStart); err != nil {
				t.Fatalf("seek: %v", err)
			}
			src, err := New(f, cfg)
			if err != nil {
				t.Fatalf("new: %v", err)
			}
			defer src.Close()
			if src.Strategy() != StrategyStream {
				t.Fatalf("expected stream strategy, got %v", src.Strategy())
			}
			got, err := io.ReadAll(src)
			if err != nil || string(got) != "payload" || src.Tell() != 7 {
				t.Fatalf("read %q, %v at %d", got, err, src.Tell())
			}
			if err := src.Seek(0); err != nil {
				t.Fatalf("seek 0: %v", err)
			}
			if b, err := src.ReadByte(); err != nil || b != 'p' {
				t.Fatalf("offset 0 must be the handover position, got %q, %v", b, err)
			}
		})
	}
}

func TestStream_ByteReadsKeepMarkWindow(t *testing.T) {
	data := testData(1000)
	src, err := New(plainReader{bytes.NewReader(data)}, Config{MarkSize: 64})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	defer src.Close()
	for i := range data {
		b, err := src.ReadByte()
		if err != nil || b != data[i] {
			t.Fatalf("byte %d = %#x, %v", i, b, err)
		}
	}
	if err := src.Seek(1000 - 64); err != nil {
		t.Fatalf("seek inside mark window: %v", err)
	}
	if b, _ := src.ReadByte(); b != data[1000-64] {
		t.Fatalf("unexpected byte %#x after window seek", b)
	}
	if err := src.Seek(800); !errors.Is(err, ErrPosition) {
		t.Fatalf("window must stay bounded, seek 800 = %v", err)
	}
}

type fakeMapping struct {
	data []byte
	err  error
}

func (m *fakeMapping) ReadAt(p []byte, off int64) (int, error) {
	if off >= int64(len(m.data)) {
		return 0, io.EOF
	}
	n := copy(p, m.data[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

func (m *fakeMapping) At(i int) byte { return m.data[i] }
func (m *fakeMapping) Len() int      { return len(m.data) }
func (m *fakeMapping) Close() error  { return m.err }

type recordingCloser struct {
	err    error
	closed bool
}

func (c *recordingCloser) Close() error {
	c.closed = true
	return c.err
}

func TestMapped_CloseCombinesFailures(t *testing.T) {
	file := &recordingCloser{err: errors.New("bad descriptor")}
	src := newMapped(&fakeMapping{data: []byte("abc"), err: errors.New("munmap failed")}, file, "job.pcl")
	if b, err := src.ReadByte(); err != nil || b != 'a' {
		t.Fatalf("ReadByte = %q, %v", b, err)
	}

	err := src.Close()
	var me *multierror.Error
	if !errors.As(err, &me) || len(me.Errors) != 2 {
		t.Fatalf("expected both release failures, got %v", err)
	}
	var re *ResourceError
	if !errors.As(me.Errors[0], &re) || re.Op != "unmap" || re.Path != "job.pcl" {
		t.Fatalf("unexpected first failure %v", me.Errors[0])
	}
	if !errors.As(me.Errors[1], &re) || re.Op != "close" {
		t.Fatalf("unexpected second failure %v", me.Errors[1])
	}
	if !file.closed {
		t.Fatalf("file must be closed even when unmapping fails")
	}
	if err := src.Close(); !errors.Is(err, ErrClosed) {
		t.Fatalf("second close = %v", err)
	}
}

func TestMapped_CloseSingleFailure(t *testing.T) {
	file := &recordingCloser{}
	src := newMapped(&fakeMapping{data: []byte("abc"), err: errors.New("munmap failed")}, file, "job.pcl")
	var re *ResourceError
	if err := src.Close(); !errors.As(err, &re) || re.Op != "unmap" || !file.closed {
		t.Fatalf("expected unmap failure with file closed, got %v", err)
	}
}

func TestStrategy_String(t *testing.T) {
	if StrategyStream.String() != "stream" || StrategyMapped.String() != "mapped" || StrategyBuffer.String() != "buffer" {
		t.Fatalf("unexpected strategy names %v %v %v", StrategyBuffer, StrategyMapped, StrategyStream)
	}
}
