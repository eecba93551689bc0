package transport

import (
	"errors"
	"io"
	"time"

	"github.com/daedaluz/divecomputer/status"
)

// RawStream is the minimal collaborator interface a byte-stream transport
// (Serial/IrDA/Socket) is built on top of. It is supplied by an external
// OS binding; this package never implements one itself (spec §1 scope).
type RawStream interface {
	io.Reader
	io.Writer
	io.Closer
}

// Dialer opens a RawStream given an endpoint name. Concrete OS bindings
// (serial port paths, IrDA device addresses, host:port sockets) provide
// one of these; this package only consumes it.
type Dialer func(name string) (RawStream, error)

// LineController is an optional capability a RawStream may additionally
// implement to support DTR/RTS/break/line-status operations. Transports
// whose RawStream does not implement it treat those operations as no-ops,
// per spec §4.1 (teacher pattern: Daedaluz-goserial's Port exposes these as
// separate ioctl-backed methods rather than baking them into Read/Write).
type LineController interface {
	SetDTR(on bool) error
	SetRTS(on bool) error
	SetBreak(on bool) error
	Lines() (Line, error)
}

// Configurer is an optional capability for RawStreams that understand
// baud/parity/stopbits/flow-control (concrete serial ports).
type Configurer interface {
	Configure(cfg Config) error
}

// Purger is an optional capability for RawStreams that can discard
// buffered bytes in a given direction.
type Purger interface {
	Purge(dir Direction) error
}

// Availabler is an optional capability reporting non-blocking readable byte counts.
type Availabler interface {
	Available() (int, error)
}

// Timeouter is an optional capability for RawStreams with their own notion
// of a read deadline (e.g. one backed by a real fd and SetReadDeadline).
// When absent, streamBase checks its own deadline only between successive
// RawStream reads; a single RawStream read that blocks is not interrupted,
// so the timeout is not enforced while that read is in progress.
type Timeouter interface {
	SetTimeout(ms int) error
}

// HalfDuplexer is an optional capability for RawStreams supporting RS-485
// style half-duplex toggling.
type HalfDuplexer interface {
	SetHalfDuplex(on bool) error
}

// streamBase implements Transport's Read/Write/Sleep in terms of a RawStream,
// and delegates the optional capabilities to the RawStream when it supports
// them, otherwise answering with the documented no-op behavior. It is
// embedded by the Serial/IrDA/Socket variants, which differ only in which
// capabilities they expose versus hard no-op.
type streamBase struct {
	dial    Dialer
	name    string
	raw     RawStream
	timeout time.Duration // <0 block forever, 0 non-blocking, >0 deadline
}

func newStreamBase(dial Dialer) *streamBase {
	return &streamBase{dial: dial, timeout: -1}
}

func (s *streamBase) Open(name string) error {
	raw, err := s.dial(name)
	if err != nil {
		return statusErr(classifyOpenErr(err), "open "+name, err)
	}
	s.raw = raw
	s.name = name
	return nil
}

func classifyOpenErr(err error) status.Status {
	if errors.Is(err, errNoDevice) {
		return status.NoDevice
	}
	if errors.Is(err, errNoAccess) {
		return status.NoAccess
	}
	return status.IO
}

var (
	errNoDevice = errors.New("no such device")
	errNoAccess = errors.New("permission denied")
)

func (s *streamBase) Close() error {
	if s.raw == nil {
		return nil
	}
	raw := s.raw
	s.raw = nil
	if err := raw.Close(); err != nil {
		return statusErr(status.IO, "close "+s.name, err)
	}
	return nil
}

// Read blocks until len(dst) bytes have been read, the configured timeout
// elapses, or an unrecoverable error occurs. Partial reads accumulate;
// EOF from the peer (0 bytes, nil error) is reported as Timeout with
// whatever was read so far, per spec §4.1.
func (s *streamBase) Read(dst []byte) (int, error) {
	if s.raw == nil {
		return 0, statusErr(status.IO, "read", errors.New("transport not open"))
	}
	total := 0
	deadline, hasDeadline := s.readDeadline()
	for total < len(dst) {
		if hasDeadline && time.Now().After(deadline) {
			return total, statusErr(status.Timeout, "read", nil)
		}
		n, err := s.raw.Read(dst[total:])
		total += n
		if err != nil {
			if err == io.EOF {
				return total, statusErr(status.Timeout, "read", nil)
			}
			if isRetryable(err) {
				continue
			}
			return total, statusErr(status.IO, "read", err)
		}
		if n == 0 {
			// Peer produced no bytes and no error: treat as EOF-like stall.
			return total, statusErr(status.Timeout, "read", nil)
		}
	}
	return total, nil
}

func (s *streamBase) readDeadline() (time.Time, bool) {
	if s.timeout < 0 {
		return time.Time{}, false
	}
	return time.Now().Add(s.timeout), true
}

// Write blocks until all of src has been accepted by the RawStream or an
// error occurs. Partial writes continue with the unsent remainder; an
// EINTR/EAGAIN-style error is retried transparently, any other error ends
// the write (spec §4.1: "partial writes continue until all bytes are sent
// or an error occurs").
func (s *streamBase) Write(src []byte) (int, error) {
	if s.raw == nil {
		return 0, statusErr(status.IO, "write", errors.New("transport not open"))
	}
	total := 0
	for total < len(src) {
		n, err := s.raw.Write(src[total:])
		total += n
		if err != nil {
			if isRetryable(err) {
				continue
			}
			return total, statusErr(status.IO, "write", err)
		}
	}
	return total, nil
}

func isRetryable(err error) bool {
	return errors.Is(err, errEINTR) || errors.Is(err, errEAGAIN)
}

// errEINTR / errEAGAIN are the sentinels a RawStream implementation may
// wrap its error with to signal a transparently-retryable condition,
// mirroring POSIX EINTR/EAGAIN without this package depending on syscall.
var (
	errEINTR  = errors.New("interrupted")
	errEAGAIN = errors.New("resource temporarily unavailable")
)

func (s *streamBase) SetTimeout(ms int) error {
	if t, ok := s.raw.(Timeouter); ok {
		if err := t.SetTimeout(ms); err != nil {
			return statusErr(status.IO, "set timeout", err)
		}
	}
	switch {
	case ms < 0:
		s.timeout = -1
	case ms == 0:
		s.timeout = 0
	default:
		s.timeout = time.Duration(ms) * time.Millisecond
	}
	return nil
}

func (s *streamBase) Available() (int, error) {
	if a, ok := s.raw.(Availabler); ok {
		n, err := a.Available()
		if err != nil {
			return 0, statusErr(status.IO, "available", err)
		}
		return n, nil
	}
	return 0, nil
}

func (s *streamBase) Purge(dir Direction) error {
	if p, ok := s.raw.(Purger); ok {
		if err := p.Purge(dir); err != nil {
			return statusErr(status.IO, "purge", err)
		}
	}
	return nil
}

func (s *streamBase) Configure(cfg Config) error {
	if c, ok := s.raw.(Configurer); ok {
		if err := c.Configure(cfg); err != nil {
			return statusErr(status.IO, "configure", err)
		}
	}
	return nil
}

func (s *streamBase) SetDTR(on bool) error {
	if l, ok := s.raw.(LineController); ok {
		if err := l.SetDTR(on); err != nil {
			return statusErr(status.IO, "set dtr", err)
		}
	}
	return nil
}

func (s *streamBase) SetRTS(on bool) error {
	if l, ok := s.raw.(LineController); ok {
		if err := l.SetRTS(on); err != nil {
			return statusErr(status.IO, "set rts", err)
		}
	}
	return nil
}

func (s *streamBase) SetHalfDuplex(on bool) error {
	if h, ok := s.raw.(HalfDuplexer); ok {
		if err := h.SetHalfDuplex(on); err != nil {
			return statusErr(status.IO, "set half duplex", err)
		}
	}
	return nil
}

func (s *streamBase) SetBreak(on bool) error {
	if l, ok := s.raw.(LineController); ok {
		if err := l.SetBreak(on); err != nil {
			return statusErr(status.IO, "set break", err)
		}
	}
	return nil
}

func (s *streamBase) Sleep(d time.Duration) {
	time.Sleep(d)
}

func (s *streamBase) Lines() (Line, error) {
	if l, ok := s.raw.(LineController); ok {
		lines, err := l.Lines()
		if err != nil {
			return 0, statusErr(status.IO, "lines", err)
		}
		return lines, nil
	}
	return 0, nil
}
