package transport

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"go.bug.st/serial"

	logs "github.com/danmuck/edgelink/internal/logging"
)

type SerialConfig struct {
	Device   string
	BaudRate int
}

// serialPort is the subset of serial.Port a Stream needs.
type serialPort interface {
	io.ReadWriteCloser
	SetReadTimeout(t time.Duration) error
	ResetInputBuffer() error
}

// serialConn maps read deadlines onto the port's read timeout. A port read
// that times out returns (0, nil); it is reported as a deadline error.
type serialConn struct {
	port     serialPort
	deadline time.Time
}

func (c *serialConn) SetReadDeadline(t time.Time) error {
	c.deadline = t
	return nil
}

func (c *serialConn) Read(p []byte) (int, error) {
	timeout := serial.NoTimeout
	if !c.deadline.IsZero() {
		timeout = time.Until(c.deadline)
		if timeout <= 0 {
			return 0, os.ErrDeadlineExceeded
		}
	}
	if err := c.port.SetReadTimeout(timeout); err != nil {
		return 0, err
	}
	n, err := c.port.Read(p)
	if n == 0 && err == nil {
		return 0, os.ErrDeadlineExceeded
	}
	return n, err
}

func (c *serialConn) Write(p []byte) (int, error) {
	return c.port.Write(p)
}

func (c *serialConn) Close() error {
	return c.port.Close()
}

// OpenSerial opens the device in 8N1 mode.
func OpenSerial(cfg SerialConfig, opts StreamOptions) (*Stream, error) {
	device := strings.TrimSpace(cfg.Device)
	if device == "" {
		return nil, fmt.Errorf("transport: serial device required")
	}
	port, err := serial.Open(device, &serial.Mode{
		BaudRate: cfg.BaudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	})
	if err != nil {
		return nil, fmt.Errorf("transport: open serial %q: %w", device, err)
	}
	return newSerialStream(device, port, opts), nil
}

// newSerialStream flushes bytes the port received before the link came up.
func newSerialStream(device string, port serialPort, opts StreamOptions) *Stream {
	if err := port.ResetInputBuffer(); err != nil {
		logs.Warnf("transport.newSerialStream reset input device=%q err=%v", device, err)
	}
	return NewStream("serial:"+device, &serialConn{port: port}, opts)
}

func SerialOpener(cfg SerialConfig, opts StreamOptions) Opener {
	return func(context.Context) (Transport, error) {
		return OpenSerial(cfg, opts)
	}
}

// SerialPorts lists the serial devices present on this host.
func SerialPorts() ([]string, error) {
	return serial.GetPortsList()
}
