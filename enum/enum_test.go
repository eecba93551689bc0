package enum

import (
	"context"
	"errors"
	"testing"

	"github.com/daedaluz/divecomputer/divelog"
	"github.com/daedaluz/divecomputer/framing"
	"github.com/daedaluz/divecomputer/retry"
	"github.com/daedaluz/divecomputer/status"
	"github.com/daedaluz/divecomputer/transport"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeEnumerator returns a fixed candidate list.
type fakeEnumerator struct {
	candidates []DeviceInfo
	err        error
}

func (f fakeEnumerator) Enumerate() ([]DeviceInfo, error) { return f.candidates, f.err }

// fakeRawStream is a minimal transport.RawStream backed by a queue of canned
// reads, used to drive Open's handshake and Dump's query sequence without an
// OS IrDA binding.
type fakeRawStream struct {
	writes  [][]byte
	replies [][]byte
	pos     int
	closed  bool

	// cancel/raiseAfter let a test raise cancellation partway through a
	// read sequence, exercising the "observed between dump chunks"
	// suspension boundary deterministically.
	cancel     *retry.CancellationFlag
	raiseAfter int
}

func (f *fakeRawStream) Write(p []byte) (int, error) {
	cp := append([]byte(nil), p...)
	f.writes = append(f.writes, cp)
	return len(p), nil
}

func (f *fakeRawStream) Read(dst []byte) (int, error) {
	if f.pos >= len(f.replies) {
		return 0, errors.New("fakeRawStream: no more replies")
	}
	r := f.replies[f.pos]
	f.pos++
	if f.cancel != nil && f.pos == f.raiseAfter {
		f.cancel.Raise()
	}
	n := copy(dst, r)
	return n, nil
}

func (f *fakeRawStream) Close() error { f.closed = true; return nil }

func (f *fakeRawStream) thenReply(b []byte) *fakeRawStream {
	f.replies = append(f.replies, b)
	return f
}

func dialTo(raw *fakeRawStream) transport.Dialer {
	return func(string) (transport.RawStream, error) { return raw, nil }
}

func handshakeOKReplies(raw *fakeRawStream) *fakeRawStream {
	return raw.thenReply([]byte{0x01}).thenReply([]byte{0x01})
}

func TestOpenSelectsFirstAllowListedCandidateCaseInsensitive(t *testing.T) {
	enumerator := fakeEnumerator{candidates: []DeviceInfo{
		{Name: "unknown-device", Address: "irda://0"},
		{Name: "ostc2", Address: "irda://1"},
	}}
	raw := handshakeOKReplies(&fakeRawStream{})

	d, err := Open(enumerator, dialTo(raw))
	require.NoError(t, err)
	require.NotNil(t, d)
	assert.Len(t, raw.writes, 2, "handshake writes the two fixed commands")
	assert.Equal(t, []byte{cmdHandshake1}, raw.writes[0])
	assert.Equal(t, []byte{cmdHandshake2, handshakeSuffix1, handshakeSuffix2, handshakeSuffix3, handshakeSuffix4}, raw.writes[1])
}

func TestOpenReturnsNoDeviceWhenNoCandidateMatches(t *testing.T) {
	enumerator := fakeEnumerator{candidates: []DeviceInfo{{Name: "unknown", Address: "irda://0"}}}

	_, err := Open(enumerator, dialTo(&fakeRawStream{}))
	require.Error(t, err)
	assert.Equal(t, status.NoDevice, status.From(err))
}

func TestOpenPropagatesEnumerateFailure(t *testing.T) {
	wantErr := status.Wrap(status.IO, "enumerate", nil)
	enumerator := fakeEnumerator{err: wantErr}

	_, err := Open(enumerator, dialTo(&fakeRawStream{}))
	require.Error(t, err)
	assert.Equal(t, status.IO, status.From(err))
}

func TestOpenFailsAndClosesOnHandshakeDeviation(t *testing.T) {
	enumerator := fakeEnumerator{candidates: []DeviceInfo{{Name: "OSTC", Address: "irda://0"}}}
	raw := &fakeRawStream{}
	for i := 0; i <= retry.MaxRetries; i++ {
		raw.thenReply([]byte{0x00})
	}

	_, err := Open(enumerator, dialTo(raw))
	require.Error(t, err)
	assert.Equal(t, status.Protocol, status.From(err))
	assert.True(t, raw.closed, "a failed handshake must close the transport it opened")
}

func newTestDriver(raw *fakeRawStream) *Driver {
	tr := transport.NewIrDA(dialTo(raw))
	_ = tr.Open("irda://test")
	return &Driver{
		t:      tr,
		cancel: &retry.CancellationFlag{},
		events: divelog.NopEvents,
	}
}

func TestDumpEmptyLogEmitsDeviceInfoAndClockOnly(t *testing.T) {
	raw := &fakeRawStream{}
	raw.thenReply([]byte{0x07})                   // model
	raw.thenReply([]byte{0x01, 0x02, 0x03, 0x00}) // serial, LE
	raw.thenReply([]byte{0x10, 0x20, 0x30, 0x40}) // device clock, LE
	raw.thenReply([]byte{0x00, 0x00, 0x00, 0x00}) // length probe: empty log

	var sawDeviceInfo, sawClock bool
	sink := &stubEventSink{
		onDeviceInfo: func(byte, uint32, uint32) { sawDeviceInfo = true },
		onClock:      func(int64, int64) { sawClock = true },
	}
	d := newTestDriver(raw)
	d.SetEvents(sink)

	var buf []byte
	require.NoError(t, d.Dump(context.Background(), &buf))
	assert.Nil(t, buf)
	assert.True(t, sawDeviceInfo)
	assert.True(t, sawClock)
}

func TestForeachEmptyLogDeliversNothing(t *testing.T) {
	raw := &fakeRawStream{}
	raw.thenReply([]byte{0x07})
	raw.thenReply([]byte{0x01, 0x02, 0x03, 0x00})
	raw.thenReply([]byte{0x10, 0x20, 0x30, 0x40})
	raw.thenReply([]byte{0x00, 0x00, 0x00, 0x00})

	d := newTestDriver(raw)
	var delivered int
	err := d.Foreach(context.Background(), func(record, fp []byte) bool {
		delivered++
		return true
	})

	require.NoError(t, err)
	assert.Equal(t, 0, delivered)
}

func TestDumpFetchesNonEmptyLogInAdaptiveChunks(t *testing.T) {
	payload := make([]byte, 50)
	for i := range payload {
		payload[i] = byte(i)
	}

	raw := &fakeRawStream{}
	raw.thenReply([]byte{0x07})
	raw.thenReply([]byte{0x01, 0x02, 0x03, 0x00})
	raw.thenReply([]byte{0x10, 0x20, 0x30, 0x40})
	lengthReply := make([]byte, 4)
	framing.PutU32LE(lengthReply, uint32(len(payload)))
	raw.thenReply(lengthReply)

	totalReply := make([]byte, 4)
	framing.PutU32LE(totalReply, uint32(len(payload)+4))
	raw.thenReply(totalReply)
	// readChunkMin=32: first chunk 32 bytes, remainder 18.
	raw.thenReply(payload[:32])
	raw.thenReply(payload[32:])

	d := newTestDriver(raw)
	var buf []byte
	require.NoError(t, d.Dump(context.Background(), &buf))
	assert.Equal(t, payload, buf)
}

func TestDumpReturnsCancelledBetweenChunks(t *testing.T) {
	payload := make([]byte, 50)
	for i := range payload {
		payload[i] = byte(i)
	}

	raw := &fakeRawStream{}
	raw.thenReply([]byte{0x07})
	raw.thenReply([]byte{0x01, 0x02, 0x03, 0x00})
	raw.thenReply([]byte{0x10, 0x20, 0x30, 0x40})
	lengthReply := make([]byte, 4)
	framing.PutU32LE(lengthReply, uint32(len(payload)))
	raw.thenReply(lengthReply)
	totalReply := make([]byte, 4)
	framing.PutU32LE(totalReply, uint32(len(payload)+4))
	raw.thenReply(totalReply)
	// readChunkMin=32: first chunk 32 bytes, remainder 18.
	raw.thenReply(payload[:32])
	raw.thenReply(payload[32:])

	cancel := &retry.CancellationFlag{}
	raw.cancel = cancel
	raw.raiseAfter = 6 // raised while serving the first 32-byte chunk

	tr := transport.NewIrDA(dialTo(raw))
	_ = tr.Open("irda://test")
	d := &Driver{t: tr, cancel: cancel, events: divelog.NopEvents}

	var buf []byte
	err := d.Dump(context.Background(), &buf)
	require.Error(t, err)
	assert.Equal(t, status.Cancelled, status.From(err), "cancellation must be observed before the next dump chunk")
}

func TestDumpRejectsDataFetchTotalMismatch(t *testing.T) {
	raw := &fakeRawStream{}
	raw.thenReply([]byte{0x07})
	raw.thenReply([]byte{0x01, 0x02, 0x03, 0x00})
	raw.thenReply([]byte{0x10, 0x20, 0x30, 0x40})
	lengthReply := make([]byte, 4)
	framing.PutU32LE(lengthReply, 10)
	raw.thenReply(lengthReply)

	totalReply := make([]byte, 4)
	framing.PutU32LE(totalReply, 999) // should have been 10+4
	for i := 0; i <= retry.MaxRetries; i++ {
		raw.thenReply(totalReply)
	}

	d := newTestDriver(raw)
	var buf []byte
	err := d.Dump(context.Background(), &buf)
	require.Error(t, err)
	assert.Equal(t, status.Protocol, status.From(err), "a mismatch is retried up to MaxRetries before failing the dump")
}

func TestSetFingerprintValidatesLength(t *testing.T) {
	d := newTestDriver(&fakeRawStream{})
	assert.NoError(t, d.SetFingerprint(nil))
	assert.NoError(t, d.SetFingerprint([]byte{1, 2, 3, 4}))
	assert.Error(t, d.SetFingerprint([]byte{1, 2, 3}))
}

func TestHandshakeRejectsDeviationOnSecondExchange(t *testing.T) {
	raw := (&fakeRawStream{}).thenReply([]byte{0x01})
	for i := 0; i <= retry.MaxRetries; i++ {
		raw.thenReply([]byte{0x00})
	}
	d := &Driver{t: func() transport.Transport {
		tr := transport.NewIrDA(dialTo(raw))
		_ = tr.Open("irda://test")
		return tr
	}(), cancel: &retry.CancellationFlag{}}

	err := d.handshake()
	require.Error(t, err)
	assert.Equal(t, status.Protocol, status.From(err))
}

// stubEventSink implements divelog.EventSink, calling back only for the
// events a given test cares about.
type stubEventSink struct {
	onDeviceInfo func(model byte, firmware, serial uint32)
	onClock      func(systime, devtime int64)
}

func (s *stubEventSink) OnProgress(uint32, uint32) {}
func (s *stubEventSink) OnDeviceInfo(model byte, firmware, serial uint32) {
	if s.onDeviceInfo != nil {
		s.onDeviceInfo(model, firmware, serial)
	}
}
func (s *stubEventSink) OnClock(systime, devtime int64) {
	if s.onClock != nil {
		s.onClock(systime, devtime)
	}
}
func (s *stubEventSink) OnWarning(string)                  {}
func (s *stubEventSink) OnDiagnostic(status.Status, string) {}

var _ divelog.EventSink = (*stubEventSink)(nil)
