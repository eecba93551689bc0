// Package transport defines the uniform byte-stream and packet I/O
// abstraction the driver core talks through (component C1). It never opens
// an OS resource itself: concrete serial ports, IrDA sockets, and network
// dialers are external collaborators (see spec §1 scope) that hand this
// package an already-open io.ReadWriteCloser (or packet-oriented
// equivalent) through a Dialer.
package transport

import (
	"time"

	"github.com/daedaluz/divecomputer/status"
)

// Parity is the serial parity mode.
type Parity int

const (
	ParityNone Parity = iota
	ParityOdd
	ParityEven
	ParityMark
	ParitySpace
)

// StopBits is the number of stop bits per frame.
type StopBits int

const (
	StopBitsOne StopBits = iota
	StopBitsOnePointFive
	StopBitsTwo
)

// FlowControl selects the flow-control discipline.
type FlowControl int

const (
	FlowControlNone FlowControl = iota
	FlowControlHardware
	FlowControlSoftware
)

// Direction is a bitmask of I/O directions, used by Purge.
type Direction int

const (
	DirectionInput Direction = 1 << iota
	DirectionOutput
	DirectionAll = DirectionInput | DirectionOutput
)

// Line is a bitmask of read-only modem status signals.
type Line int

const (
	LineDCD Line = 1 << iota
	LineCTS
	LineDSR
	LineRNG
)

// Config bundles the parameters accepted by Configure. Transports without a
// concept of baud/parity/etc. (IrDA, Packet) accept Configure as a no-op per
// spec §4.1; Socket forwards it only when its RawStream implements
// Configurer, and is otherwise a no-op too.
type Config struct {
	Baud        int
	DataBits    int
	Parity      Parity
	StopBits    StopBits
	FlowControl FlowControl
}

// Transport is the polymorphic capability set every driver family talks
// through. Individual variants (Serial, IrDA, Socket, Packet, Custom) may
// implement some operations as no-ops where the concept does not apply;
// all must still return status.Success for those no-ops per spec §4.1.
type Transport interface {
	// Open establishes the connection named by name. name is interpreted by
	// the Dialer the concrete variant was built with (port path, device
	// address, host:port, ...).
	Open(name string) error
	// Close releases the transport. Idempotent from the caller's perspective.
	Close() error

	// Read blocks up to the configured timeout and returns the number of
	// bytes actually placed in dst. Returns status.Success only when
	// actual == len(dst).
	Read(dst []byte) (actual int, err error)
	// Write blocks until all of src is sent or an unrecoverable error occurs.
	Write(src []byte) (actual int, err error)

	// Purge drops buffered bytes in the indicated direction(s).
	Purge(dir Direction) error
	// Available returns the number of bytes readable without blocking.
	Available() (int, error)
	// SetTimeout sets the per-read deadline. ms < 0 blocks indefinitely,
	// ms == 0 polls without blocking, ms > 0 is a deadline in milliseconds.
	SetTimeout(ms int) error

	// Configure sets line parameters. No-op (returns Success) where not applicable.
	Configure(cfg Config) error
	// SetDTR toggles the DTR modem control line. No-op where not applicable.
	SetDTR(on bool) error
	// SetRTS toggles the RTS modem control line. No-op where not applicable.
	SetRTS(on bool) error
	// SetHalfDuplex toggles half-duplex (RS-485 style) mode. No-op where not applicable.
	SetHalfDuplex(on bool) error
	// SetBreak asserts or clears a break condition. No-op where not applicable.
	SetBreak(on bool) error

	// Sleep cooperatively yields the calling goroutine for at least d.
	Sleep(d time.Duration)
	// Lines returns the bitmask of currently asserted modem lines. Returns 0
	// where not applicable.
	Lines() (Line, error)
}

// PacketTransport is implemented by Packet variants in addition to
// Transport; PacketSize reports the fixed maximum size of a single
// read/write unit.
type PacketTransport interface {
	Transport
	PacketSize() int
}

// statusErr is the sentinel conversion point used throughout the transport
// variants: every operation returns a *status.DriverError (or nil) so
// callers can use errors.Is(err, status.Timeout) etc.
func statusErr(s status.Status, context string, cause error) error {
	if s == status.Success {
		return nil
	}
	return status.Wrap(s, context, cause)
}
