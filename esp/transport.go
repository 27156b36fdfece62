package esp

import (
	"context"
	"errors"
	"fmt"
	"io"

	"go.bug.st/serial"
)

//go:generate go tool mockgen -source=transport.go -destination=mock_transport.go -package=esp

// Transport represents an established, bidirectional byte stream to an
// ESP-AT Wi-Fi co-processor.
//
// A Transport is assumed to be already connected and ready for use. It
// provides the low-level I/O primitives required to send AT commands and
// receive responses. Typical implementations include serial ports (UART to
// the radio), TCP connections to emulators, or in-memory fakes used for
// testing.
type Transport interface {
	io.ReadWriteCloser
}

// Dialer opens a Transport to the co-processor.
//
// Dialer abstracts how the connection is created (for example, via a
// serial port, TCP-based emulator, or test double) and is intended to be
// used during device construction only. Once a Transport is obtained, the
// Dialer is no longer needed.
type Dialer interface {
	// Dial is responsible for creating and returning a connected Transport.
	// It may perform blocking operations and should respect cancellation and
	// deadlines provided by the context. Dial returns an error if the
	// transport cannot be established.
	Dial(ctx context.Context) (Transport, error)
}

// SerialDialer opens the co-processor over a serial port.
type SerialDialer struct {
	// PortName is the OS path of the serial port (e.g. "/dev/ttyUSB0").
	PortName string
	// Mode holds the port parameters. Nil selects 115200 8N1, the ESP-AT
	// factory default.
	Mode *serial.Mode
}

// DefaultBaudRate is the ESP-AT factory default line speed.
const DefaultBaudRate = 115200

// Dial opens the serial port and returns it as a Transport.
func (d SerialDialer) Dial(ctx context.Context) (Transport, error) {
	if ctx == nil {
		return nil, errors.New("esp: context is nil")
	}
	if d.PortName == "" {
		return nil, errors.New("esp: serial port name is required")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	mode := d.Mode
	if mode == nil {
		mode = &serial.Mode{
			BaudRate: DefaultBaudRate,
			DataBits: 8,
			Parity:   serial.NoParity,
			StopBits: serial.OneStopBit,
		}
	}

	port, err := serial.Open(d.PortName, mode)
	if err != nil {
		return nil, fmt.Errorf("open serial port %s: %w", d.PortName, err)
	}
	return port, nil
}
