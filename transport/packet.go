package transport

import (
	"errors"
	"time"

	"github.com/daedaluz/divecomputer/status"
)

// RawPacket is the minimal collaborator interface a Packet transport is
// built on top of (e.g. a BLE-GATT characteristic). Supplied externally;
// this package never implements one itself.
type RawPacket interface {
	Open(name string) error
	Close() error
	ReadPacket() ([]byte, error)
	WritePacket([]byte) error
}

// Packet is the packet-oriented variant: reads and writes happen in
// discrete frames of fixed PacketSize, per spec §3/§4.1. Purge and line
// controls are no-ops; Configure is a no-op since there is no serial-style
// line discipline to set.
type Packet struct {
	raw        RawPacket
	packetSize int
	timeout    time.Duration
	pending    []byte // leftover bytes of a partially-consumed packet
}

// NewPacket builds a Packet transport. packetSize must be the maximum size
// of a single read/write unit the underlying RawPacket produces/accepts.
func NewPacket(raw RawPacket, packetSize int) *Packet {
	return &Packet{raw: raw, packetSize: packetSize, timeout: -1}
}

func (p *Packet) PacketSize() int { return p.packetSize }

func (p *Packet) Open(name string) error {
	if err := p.raw.Open(name); err != nil {
		return statusErr(status.IO, "open "+name, err)
	}
	return nil
}

func (p *Packet) Close() error {
	p.pending = nil
	if err := p.raw.Close(); err != nil {
		return statusErr(status.IO, "close", err)
	}
	return nil
}

// Read returns exactly one packet if len(dst) >= PacketSize(), otherwise
// the first len(dst) bytes of one packet; any unread remainder of that
// packet is discarded, per spec §4.1.
func (p *Packet) Read(dst []byte) (int, error) {
	if len(p.pending) == 0 {
		pkt, err := p.raw.ReadPacket()
		if err != nil {
			if errors.Is(err, errTimedOut) {
				return 0, statusErr(status.Timeout, "read packet", nil)
			}
			return 0, statusErr(status.IO, "read packet", err)
		}
		p.pending = pkt
	}
	n := copy(dst, p.pending)
	p.pending = nil // remainder of the packet beyond dst is discarded, not buffered
	if n < len(dst) {
		return n, statusErr(status.Timeout, "read packet", nil)
	}
	return n, nil
}

// Write sends src as a sequence of PacketSize()-bounded packets.
func (p *Packet) Write(src []byte) (int, error) {
	sent := 0
	for sent < len(src) {
		end := sent + p.packetSize
		if end > len(src) {
			end = len(src)
		}
		if err := p.raw.WritePacket(src[sent:end]); err != nil {
			return sent, statusErr(status.IO, "write packet", err)
		}
		sent = end
	}
	return sent, nil
}

func (p *Packet) Purge(Direction) error    { p.pending = nil; return nil }
func (p *Packet) Available() (int, error)  { return len(p.pending), nil }
func (p *Packet) Configure(Config) error   { return nil }
func (p *Packet) SetDTR(bool) error        { return nil }
func (p *Packet) SetRTS(bool) error        { return nil }
func (p *Packet) SetHalfDuplex(bool) error { return nil }
func (p *Packet) SetBreak(bool) error      { return nil }
func (p *Packet) Lines() (Line, error)     { return 0, nil }
func (p *Packet) Sleep(d time.Duration)    { time.Sleep(d) }

func (p *Packet) SetTimeout(ms int) error {
	switch {
	case ms < 0:
		p.timeout = -1
	case ms == 0:
		p.timeout = 0
	default:
		p.timeout = time.Duration(ms) * time.Millisecond
	}
	return nil
}

var errTimedOut = errors.New("packet read timed out")
