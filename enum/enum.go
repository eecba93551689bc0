// Package enum implements the enumeration-family device driver (component
// C4-E): an IrDA-discovered driver using a binary handshake, variable-length
// bulk transfer, and the self-describing ring-buffer extractor.
// Representative of IrDA-attached devices per spec §4.5.
package enum

import (
	"context"
	"strings"
	"time"

	"github.com/daedaluz/divecomputer/divelog"
	"github.com/daedaluz/divecomputer/framing"
	"github.com/daedaluz/divecomputer/retry"
	"github.com/daedaluz/divecomputer/ringbuffer"
	"github.com/daedaluz/divecomputer/status"
	"github.com/daedaluz/divecomputer/transport"
)

// DeviceInfo is one candidate discovered by an Enumerator.
type DeviceInfo struct {
	Name    string
	Address string
}

// Enumerator is the device-discovery collaborator an enum-family transport
// provides (spec §4.5 "device iterator"), mirroring the role transport.Dialer
// plays for the stream family: this package never implements discovery
// itself.
type Enumerator interface {
	Enumerate() ([]DeviceInfo, error)
}

// AllowList is the built-in set of model names accepted during discovery
// (case-insensitive exact match), per spec §4.5 step 2. The entries are an
// illustrative set (see DESIGN.md); callers may replace the slice.
var AllowList = []string{
	"OSTC",
	"OSTC2",
	"OSTC3",
	"Aladin",
}

const (
	fingerprintLen = 4

	cmdHandshake1    = 0x1B
	cmdHandshake2    = 0x1C
	handshakeSuffix1 = 0x10
	handshakeSuffix2 = 0x27
	handshakeSuffix3 = 0x00
	handshakeSuffix4 = 0x00
	cmdModel         = 0x10
	cmdSerial        = 0x14
	cmdClock         = 0x1A
	cmdLengthProbe   = 0xC6
	cmdDataFetch     = 0xC4
	readChunkMin     = 32
)

// Driver implements divelog.Driver for the enum family.
type Driver struct {
	t           transport.Transport
	cancel      *retry.CancellationFlag
	events      divelog.EventSink
	fingerprint []byte // 4-byte little-endian timestamp cursor
}

// Factory discovers and opens an enum-family driver using enumerator for
// device discovery and dial to open the transport at the chosen address.
type Factory struct {
	Enumerator Enumerator
	Dial       transport.Dialer
}

func (f *Factory) NewDriver() (divelog.Driver, error) {
	return Open(f.Enumerator, f.Dial)
}

// Open enumerates candidates, opens the transport at the first allow-listed
// match, and performs the binary handshake (spec §4.5 "Open").
func Open(enumerator Enumerator, dial transport.Dialer) (*Driver, error) {
	candidates, err := enumerator.Enumerate()
	if err != nil {
		return nil, err
	}

	var chosen *DeviceInfo
	for i := range candidates {
		if isAllowListed(candidates[i].Name) {
			chosen = &candidates[i]
			break
		}
	}
	if chosen == nil {
		return nil, status.Wrap(status.NoDevice, "enumerate", nil)
	}

	t := transport.NewIrDA(dial)
	if err := t.Open(chosen.Address); err != nil {
		return nil, err
	}

	d := &Driver{
		t:      t,
		cancel: &retry.CancellationFlag{},
		events: divelog.NopEvents,
	}
	if err := d.handshake(); err != nil {
		closeErr := t.Close()
		combined := status.Combine(status.From(err), status.From(closeErr))
		return nil, status.Wrap(combined, "handshake", err)
	}
	return d, nil
}

func isAllowListed(name string) bool {
	for _, allowed := range AllowList {
		if strings.EqualFold(name, allowed) {
			return true
		}
	}
	return false
}

// handshake performs the two-step binary exchange per spec §6 "Enum-family
// handshake": [0x1B] -> [0x01]; [0x1C, 0x10, 0x27, 0x00, 0x00] -> [0x01].
func (d *Driver) handshake() error {
	if err := d.exchangeExpectAck([]byte{cmdHandshake1}); err != nil {
		return err
	}
	if err := d.exchangeExpectAck([]byte{cmdHandshake2, handshakeSuffix1, handshakeSuffix2, handshakeSuffix3, handshakeSuffix4}); err != nil {
		return err
	}
	return nil
}

// exchangeExpectAck dispatches cmd through component C3 like every other
// enum-family exchange: a deviating ack is classified Protocol and retried
// up to retry.MaxRetries times before the handshake fails.
func (d *Driver) exchangeExpectAck(cmd []byte) error {
	_, err := retry.TransferRaw(context.Background(), d.t, d.cancel, cmd, 1, func(raw []byte) error {
		if raw[0] != 0x01 {
			return status.Wrap(status.Protocol, "handshake deviation", nil)
		}
		return nil
	})
	return err
}

func (d *Driver) SetFingerprint(fp []byte) error {
	if len(fp) != 0 && len(fp) != fingerprintLen {
		return status.Wrap(status.InvalidArgs, "set fingerprint", nil)
	}
	d.fingerprint = append([]byte(nil), fp...)
	return nil
}

func (d *Driver) SetEvents(sink divelog.EventSink) {
	if sink == nil {
		sink = divelog.NopEvents
	}
	d.events = sink
}

func (d *Driver) Cancel() *retry.CancellationFlag { return d.cancel }

func (d *Driver) Close() error { return d.t.Close() }

// query sends a short fixed command and reads an n-byte reply with no
// envelope framing (the enum family is binary, not ASCII-hex), dispatched
// through component C3 so a short or timed-out reply is retried rather than
// failing the whole dump outright. The reply's content is not validated.
func (d *Driver) query(ctx context.Context, cmd []byte, replyLen int) ([]byte, error) {
	return retry.TransferRaw(ctx, d.t, d.cancel, cmd, replyLen, func([]byte) error { return nil })
}

func (d *Driver) fingerprintBytes() []byte {
	ts := make([]byte, 4)
	copy(ts, d.fingerprint)
	return ts
}

// Dump queries model/serial/clock, then fetches the length-prefixed bulk
// payload (spec §4.5 "dump").
func (d *Driver) Dump(ctx context.Context, buf *[]byte) error {
	model, err := d.query(ctx, []byte{cmdModel}, 1)
	if err != nil {
		d.events.OnDiagnostic(status.From(err), "query model")
		return err
	}
	serialRaw, err := d.query(ctx, []byte{cmdSerial}, 4)
	if err != nil {
		d.events.OnDiagnostic(status.From(err), "query serial")
		return err
	}
	systime := time.Now().Unix()
	devtimeRaw, err := d.query(ctx, []byte{cmdClock}, 4)
	if err != nil {
		d.events.OnDiagnostic(status.From(err), "query clock")
		return err
	}

	serial := framing.U32LE(serialRaw)
	devtime := int64(framing.U32LE(devtimeRaw))

	d.events.OnProgress(0, 13)
	d.events.OnClock(systime, devtime)
	d.events.OnDeviceInfo(model[0], 0, serial)

	ts := d.fingerprintBytes()
	lengthCmd := append([]byte{cmdLengthProbe}, ts...)
	lengthCmd = append(lengthCmd, handshakeSuffix1, handshakeSuffix2, handshakeSuffix3, handshakeSuffix4)
	lengthReply, err := d.query(ctx, lengthCmd, 4)
	if err != nil {
		d.events.OnDiagnostic(status.From(err), "length probe")
		return err
	}
	length := framing.U32LE(lengthReply)

	maximum := uint32(13)
	if length != 0 {
		maximum += length + 4
	}
	d.events.OnProgress(13, maximum)

	if length == 0 {
		*buf = nil
		return nil
	}

	*buf = make([]byte, length)

	fetchCmd := append([]byte{cmdDataFetch}, ts...)
	fetchCmd = append(fetchCmd, handshakeSuffix1, handshakeSuffix2, handshakeSuffix3, handshakeSuffix4)
	_, err = retry.TransferRaw(ctx, d.t, d.cancel, fetchCmd, 4, func(raw []byte) error {
		if framing.U32LE(raw) != length+4 {
			return status.Wrap(status.Protocol, "data fetch total mismatch", nil)
		}
		return nil
	})
	if err != nil {
		d.events.OnDiagnostic(status.From(err), "data fetch total")
		return err
	}

	offset := uint32(0)
	for offset < length {
		if retry.Cancelled(ctx, d.cancel) {
			err := status.Wrap(status.Cancelled, "dump", nil)
			d.events.OnDiagnostic(status.Cancelled, "dump cancelled")
			return err
		}
		avail, _ := d.t.Available()
		chunk := readChunkMin
		if avail > chunk {
			chunk = avail
		}
		if offset+uint32(chunk) > length {
			chunk = int(length - offset)
		}
		n, err := d.t.Read((*buf)[offset : offset+uint32(chunk)])
		offset += uint32(n)
		if err != nil {
			d.events.OnDiagnostic(status.From(err), "dump chunk read")
			return err
		}
		d.events.OnProgress(13+offset, maximum)
	}
	return nil
}

// Foreach dumps into a fresh buffer and invokes the self-describing
// ring-buffer extractor (spec §4.5 "foreach").
func (d *Driver) Foreach(ctx context.Context, consumer divelog.Consumer) error {
	var buf []byte
	if err := d.Dump(ctx, &buf); err != nil {
		return err
	}
	if len(buf) == 0 {
		return nil
	}
	return ringbuffer.ExtractSelfDescribing(buf, fingerprintLen, d.events, consumer)
}

var _ divelog.Driver = (*Driver)(nil)
var _ divelog.Factory = (*Factory)(nil)
