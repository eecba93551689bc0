// Package stream implements the stream-family device driver (component
// C4-S): a wired-serial driver using ASCII-hex envelope framing and the
// fixed-slot ring-buffer extractor. Representative of serial-attached
// devices per spec §4.4.
package stream

import (
	"context"
	"time"

	"github.com/daedaluz/divecomputer/divelog"
	"github.com/daedaluz/divecomputer/framing"
	"github.com/daedaluz/divecomputer/retry"
	"github.com/daedaluz/divecomputer/ringbuffer"
	"github.com/daedaluz/divecomputer/status"
	"github.com/daedaluz/divecomputer/transport"
)

// Constants are illustrative device geometry, reproduced verbatim per spec
// §9 Open Question (b): device-documented magic, not rationalized.
const (
	szMemory = 32000

	logbookBegin = 0x0100
	logbookEnd   = 0x1438
	slotSize     = 0x52

	profileBegin = 0x1438
	profileEnd   = szMemory

	readChunkMax = 32

	// fingerprintOffset/fingerprintLen are not given a numeric value by the
	// spec's illustrative constants for this family; 4 bytes at slot offset
	// 8 is chosen to mirror the enum family's 4-byte timestamp fingerprint
	// (see DESIGN.md).
	fingerprintOffset = 8
	fingerprintLen    = 4

	probeSZ  = "{123DBA}"
	probeACK = "{!D5B3}"
)

// Driver implements divelog.Driver for the stream family.
type Driver struct {
	t           transport.Transport
	cancel      *retry.CancellationFlag
	events      divelog.EventSink
	fingerprint []byte
}

// Open performs the stream-family open sequence against name using dial to
// establish the underlying serial connection (spec §4.4 "Open").
func Open(dial transport.Dialer, name string) (*Driver, error) {
	t := transport.NewSerial(dial)
	if err := t.Open(name); err != nil {
		return nil, err
	}

	cfg := transport.Config{
		Baud:        115200,
		DataBits:    8,
		Parity:      transport.ParityNone,
		StopBits:    transport.StopBitsOne,
		FlowControl: transport.FlowControlNone,
	}
	if err := t.Configure(cfg); err != nil {
		return abortOpen(t, err)
	}
	if err := t.SetTimeout(1000); err != nil {
		return abortOpen(t, err)
	}
	if err := t.SetRTS(true); err != nil {
		return abortOpen(t, err)
	}
	if err := t.SetDTR(true); err != nil {
		return abortOpen(t, err)
	}
	t.Sleep(200 * time.Millisecond)
	if err := t.SetDTR(false); err != nil {
		return abortOpen(t, err)
	}
	t.Sleep(100 * time.Millisecond)
	if err := t.Purge(transport.DirectionAll); err != nil {
		return abortOpen(t, err)
	}

	return &Driver{
		t:      t,
		cancel: &retry.CancellationFlag{},
		events: divelog.NopEvents,
	}, nil
}

// abortOpen releases t and combines the triggering failure with whatever
// Close itself reports, per spec §9 "Error propagation through cleanup".
func abortOpen(t transport.Transport, cause error) (*Driver, error) {
	closeErr := t.Close()
	combined := status.Combine(status.From(cause), status.From(closeErr))
	return nil, status.Wrap(combined, "open", cause)
}

// Factory builds stream-family Drivers against a fixed Dialer and device name.
type Factory struct {
	Dial transport.Dialer
	Name string
}

func (f *Factory) NewDriver() (divelog.Driver, error) {
	return Open(f.Dial, f.Name)
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

// read fills dst starting at address, splitting the transfer into chunks of
// at most readChunkMax bytes (spec §4.4 "read").
func (d *Driver) read(ctx context.Context, address int, dst []byte) error {
	off := 0
	for off < len(dst) {
		n := len(dst) - off
		if n > readChunkMax {
			n = readChunkMax
		}
		req := []byte{byte(address >> 8), byte(address), byte(n >> 8), byte(n)}
		cmd := framing.Build(req)
		payload, err := retry.Transfer(ctx, d.t, d.cancel, cmd, 2*n+6)
		if err != nil {
			return err
		}
		copy(dst[off:off+n], payload)
		off += n
		address += n
	}
	return nil
}

// Dump fills buf with the device's raw SZ_MEMORY-byte memory image (spec
// §4.4 "dump").
func (d *Driver) Dump(ctx context.Context, buf *[]byte) error {
	*buf = make([]byte, szMemory)
	d.events.OnProgress(0, szMemory)

	if err := d.probe(ctx); err != nil {
		d.events.OnDiagnostic(status.From(err), "probe")
		return err
	}

	offset := 0
	for offset < szMemory {
		if retry.Cancelled(ctx, d.cancel) {
			err := status.Wrap(status.Cancelled, "dump", nil)
			d.events.OnDiagnostic(status.Cancelled, "dump cancelled")
			return err
		}
		avail, _ := d.t.Available()
		chunk := 1024
		if avail > chunk {
			chunk = avail
		}
		if offset+chunk > szMemory {
			chunk = szMemory - offset
		}
		n, err := d.t.Read((*buf)[offset : offset+chunk])
		offset += n
		if err != nil {
			d.events.OnDiagnostic(status.From(err), "dump chunk read")
			return err
		}
		d.events.OnProgress(uint32(offset), uint32(szMemory))
	}

	if retry.Cancelled(ctx, d.cancel) {
		err := status.Wrap(status.Cancelled, "dump", nil)
		d.events.OnDiagnostic(status.Cancelled, "dump cancelled")
		return err
	}

	trailer := make([]byte, 4)
	if _, err := d.t.Read(trailer); err != nil {
		d.events.OnDiagnostic(status.From(err), "dump trailer read")
		return err
	}
	crcBytes, err := framing.HexToBin(trailer)
	if err != nil {
		d.events.OnDiagnostic(status.From(err), "dump trailer decode")
		return err
	}
	wantCRC := framing.U16BE(crcBytes)
	gotCRC := framing.CRC(*buf)
	if wantCRC != gotCRC {
		err := status.Wrap(status.Protocol, "dump checksum mismatch", nil)
		d.events.OnDiagnostic(status.Protocol, "dump checksum mismatch")
		return err
	}
	return nil
}

// probe performs the fixed literal handshake that precedes the bulk memory
// transfer (spec §4.4 step 2, §6 "Stream-family probe"), routed through
// component C3 like any other command dispatch: a garbled ack is
// classified Protocol and retried up to retry.MaxRetries times before
// probe gives up. Reproduced verbatim per spec §9 Open Question (b).
func (d *Driver) probe(ctx context.Context) error {
	_, err := retry.TransferRaw(ctx, d.t, d.cancel, []byte(probeSZ), len(probeACK), func(raw []byte) error {
		if string(raw) != probeACK {
			return status.Wrap(status.Protocol, "probe mismatch", nil)
		}
		return nil
	})
	return err
}

// Foreach dumps the device's memory image, parses the device-info header,
// and delegates to the fixed-slot ring-buffer extractor (spec §4.4 "foreach").
func (d *Driver) Foreach(ctx context.Context, consumer divelog.Consumer) error {
	var buf []byte
	if err := d.Dump(ctx, &buf); err != nil {
		return err
	}

	model := buf[0]
	serial := framing.U24LE(buf[1:4])
	d.events.OnDeviceInfo(model, 0, serial)

	cfg := ringbuffer.FixedSlotConfig{
		LogbookBegin:      logbookBegin,
		LogbookEnd:        logbookEnd,
		SlotSize:          slotSize,
		ProfileBegin:      profileBegin,
		ProfileEnd:        profileEnd,
		FingerprintOffset: fingerprintOffset,
		FingerprintLen:    fingerprintLen,
	}
	return ringbuffer.ExtractFixedSlot(buf, cfg, d.fingerprint, d.events, consumer)
}

var _ divelog.Driver = (*Driver)(nil)
var _ divelog.Factory = (*Factory)(nil)
