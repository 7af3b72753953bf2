// Package serialio provides framed serial port I/O: one RX goroutine that
// feeds bytes to an incremental parser and enqueues validated frames, one TX
// goroutine that drains a frame FIFO, and automatic close/reopen on
// transport errors. See SPEC_FULL.md §4.1.
package serialio

import (
	"io"

	"go.bug.st/serial"
)

// Port is the minimal interface a serial device (or a test double) must
// satisfy.
type Port interface {
	io.ReadWriter
	io.Closer
}

// Opener opens a device path at a given baud rate, 8 data bits, no parity,
// one stop bit, no flow control — the fixed wire configuration every
// external serial interface in SPEC_FULL.md §6 uses.
type Opener func(device string, baud int) (Port, error)

// OpenRealPort is the production Opener, backed by go.bug.st/serial.
func OpenRealPort(device string, baud int) (Port, error) {
	mode := &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	return serial.Open(device, mode)
}
