package source

import (
	"fmt"
	"io"
	"time"

	"go.bug.st/serial"
)

// SerialConfig describes the serial line a print job is captured from.
type SerialConfig struct {
	Port     string
	BaudRate int
	DataBits int
	StopBits int // 1 or 2
	Parity   string
	// IdleTimeout ends the capture once no byte arrived for this long.
	IdleTimeout time.Duration
}

// OpenSerial captures a PCL stream from a serial port. The source is a
// stream that cannot be rewound: backward seeks are limited to the mark
// window.
func OpenSerial(sc SerialConfig, cfg Config) (Source, error) {
	if sc.Port == "" {
		return nil, fmt.Errorf("source: serial port is required")
	}
	mode := &serial.Mode{
		BaudRate: sc.BaudRate,
		DataBits: sc.DataBits,
		StopBits: serial.OneStopBit,
	}
	if sc.StopBits == 2 {
		mode.StopBits = serial.TwoStopBits
	}
	switch sc.Parity {
	case "odd":
		mode.Parity = serial.OddParity
	case "even":
		mode.Parity = serial.EvenParity
	case "mark":
		mode.Parity = serial.MarkParity
	case "space":
		mode.Parity = serial.SpaceParity
	default:
		mode.Parity = serial.NoParity
	}

	port, err := serial.Open(sc.Port, mode)
	if err != nil {
		return nil, &ResourceError{Op: "open", Path: sc.Port, Err: err}
	}
	timeout := sc.IdleTimeout
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	if err := port.SetReadTimeout(timeout); err != nil {
		port.Close()
		return nil, &ResourceError{Op: "configure", Path: sc.Port, Err: err}
	}
	return newStream(idleReader{port}, cfg.withDefaults()), nil
}

// idleReader turns the empty read a serial port returns on timeout into
// the end of the data.
type idleReader struct {
	port serial.Port
}

func (r idleReader) Read(p []byte) (int, error) {
	n, err := r.port.Read(p)
	if n == 0 && err == nil && len(p) > 0 {
		return 0, io.EOF
	}
	return n, err
}

func (r idleReader) Close() error { return r.port.Close() }
