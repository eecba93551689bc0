// Package transporttest provides deterministic in-memory Transport fakes
// used by this module's own test suites. Script satisfies transport.Transport
// and Loopback satisfies transport.RawPacket; neither touches an OS
// resource — the in-repo substitute for the
// concrete serial/IrDA/socket bindings that spec §1 places out of scope.
package transporttest

import (
	"time"

	"github.com/daedaluz/divecomputer/status"
	"github.com/daedaluz/divecomputer/transport"
)

// Script is a scripted byte-stream transport: Writes are recorded, and
// Reads are served from a queue of canned responses. Each response may
// instead be an error to return, letting tests exercise the retry bound
// (spec §8 "Retry bound") deterministically.
type Script struct {
	Writes    [][]byte
	responses []scriptedRead
	pos       int
	purges    int
}

type scriptedRead struct {
	data []byte
	err  error
}

// NewScript builds an empty scripted transport.
func NewScript() *Script { return &Script{} }

// ThenRead queues a successful read response.
func (s *Script) ThenRead(data []byte) *Script {
	s.responses = append(s.responses, scriptedRead{data: data})
	return s
}

// ThenFail queues a failing read response.
func (s *Script) ThenFail(err error) *Script {
	s.responses = append(s.responses, scriptedRead{err: err})
	return s
}

func (s *Script) Open(string) error { return nil }
func (s *Script) Close() error      { return nil }

func (s *Script) Write(p []byte) (int, error) {
	cp := make([]byte, len(p))
	copy(cp, p)
	s.Writes = append(s.Writes, cp)
	return len(p), nil
}

func (s *Script) Read(dst []byte) (int, error) {
	if s.pos >= len(s.responses) {
		return 0, status.Wrap(status.IO, "script exhausted", nil)
	}
	r := s.responses[s.pos]
	s.pos++
	if r.err != nil {
		return 0, r.err
	}
	n := copy(dst, r.data)
	if n < len(dst) {
		return n, status.Wrap(status.Timeout, "short scripted read", nil)
	}
	return n, nil
}

// ReadAttempts reports how many Read calls have been served.
func (s *Script) ReadAttempts() int { return s.pos }

// PurgeCount reports how many times Purge was called.
func (s *Script) PurgeCount() int { return s.purges }

func (s *Script) Purge(transport.Direction) error { s.purges++; return nil }
func (s *Script) Available() (int, error)         { return 0, nil }
func (s *Script) SetTimeout(int) error             { return nil }
func (s *Script) Configure(transport.Config) error { return nil }
func (s *Script) SetDTR(bool) error                { return nil }
func (s *Script) SetRTS(bool) error                { return nil }
func (s *Script) SetHalfDuplex(bool) error         { return nil }
func (s *Script) SetBreak(bool) error              { return nil }
func (s *Script) Sleep(time.Duration)              {}
func (s *Script) Lines() (transport.Line, error)   { return 0, nil }

var _ transport.Transport = (*Script)(nil)

// Loopback is a trivial in-memory transport.RawPacket: writes are appended
// to an internal queue and reads pop from it; a write larger than the packet
// size is rejected.
type Loopback struct {
	size  int
	queue [][]byte
}

// NewLoopback builds a packet-framed loopback transport with the given
// packet size.
func NewLoopback(packetSize int) *Loopback {
	return &Loopback{size: packetSize}
}

func (l *Loopback) Open(string) error { return nil }
func (l *Loopback) Close() error      { return nil }

func (l *Loopback) ReadPacket() ([]byte, error) {
	if len(l.queue) == 0 {
		return nil, status.Wrap(status.Timeout, "loopback empty", nil)
	}
	pkt := l.queue[0]
	l.queue = l.queue[1:]
	return pkt, nil
}

func (l *Loopback) WritePacket(p []byte) error {
	if len(p) > l.size {
		return status.Wrap(status.InvalidArgs, "packet exceeds packet size", nil)
	}
	cp := make([]byte, len(p))
	copy(cp, p)
	l.queue = append(l.queue, cp)
	return nil
}

var _ transport.RawPacket = (*Loopback)(nil)
