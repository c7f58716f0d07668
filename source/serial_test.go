package source

import (
	"errors"
	"io"
	"testing"

	"go.bug.st/serial"
)

// idlePort delivers data and then times out: reads return 0 bytes and no
// error, as a port does when its read timeout expires.
type idlePort struct {
	serial.Port
	data   []byte
	closed bool
}

func (p *idlePort) Read(b []byte) (int, error) {
	if len(p.data) == 0 {
		return 0, nil
	}
	n := copy(b, p.data)
	p.data = p.data[n:]
	return n, nil
}

func (p *idlePort) Close() error {
	p.closed = true
	return nil
}

func TestSerial_IdleTimeoutEndsCapture(t *testing.T) {
	port := &idlePort{data: []byte("\x1bE\x1b&l0S")}
	src := newStream(idleReader{port}, Config{MarkSize: 64}.withDefaults())

	got, err := io.ReadAll(src)
	if err != nil || string(got) != "\x1bE\x1b&l0S" {
		t.Fatalf("capture = %q, %v", got, err)
	}
	if _, err := src.ReadByte(); err != io.EOF {
		t.Fatalf("expected io.EOF after the idle timeout, got %v", err)
	}
	if err := src.Seek(2); err != nil {
		t.Fatalf("seek inside mark window: %v", err)
	}
	if b, _ := src.ReadByte(); b != 0x1b {
		t.Fatalf("unexpected byte %#x", b)
	}
	if err := src.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if !port.closed {
		t.Fatalf("close must reach the port")
	}
}

func TestOpenSerial_RequiresPort(t *testing.T) {
	if _, err := OpenSerial(SerialConfig{}, Config{}); err == nil {
		t.Fatalf("expected error without port")
	}
}

func TestOpenSerial_MissingDevice(t *testing.T) {
	_, err := OpenSerial(SerialConfig{Port: "/dev/pclkit-missing", BaudRate: 9600, DataBits: 8, StopBits: 1}, Config{})
	var re *ResourceError
	if !errors.As(err, &re) || re.Op != "open" {
		t.Fatalf("expected open ResourceError, got %v", err)
	}
}
