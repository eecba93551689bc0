package transport

import (
	"bytes"
	"io"
	"testing"

	"github.com/daedaluz/divecomputer/status"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeRawStream is a minimal RawStream used to exercise streamBase's
// read/write loops and its optional-capability delegation.
type fakeRawStream struct {
	readChunks [][]byte
	writeBuf   bytes.Buffer

	purgeDir      Direction
	purgeCalled   bool
	configureCfg  Config
	configureSeen bool
	dtr, rts      bool
	halfDuplex    bool
	brk           bool
}

func (f *fakeRawStream) Read(p []byte) (int, error) {
	if len(f.readChunks) == 0 {
		return 0, io.EOF
	}
	chunk := f.readChunks[0]
	f.readChunks = f.readChunks[1:]
	n := copy(p, chunk)
	return n, nil
}

func (f *fakeRawStream) Write(p []byte) (int, error) {
	return f.writeBuf.Write(p)
}

func (f *fakeRawStream) Close() error { return nil }

func (f *fakeRawStream) Purge(dir Direction) error {
	f.purgeCalled = true
	f.purgeDir = dir
	return nil
}

func (f *fakeRawStream) Configure(cfg Config) error {
	f.configureSeen = true
	f.configureCfg = cfg
	return nil
}

func (f *fakeRawStream) SetDTR(on bool) error        { f.dtr = on; return nil }
func (f *fakeRawStream) SetRTS(on bool) error        { f.rts = on; return nil }
func (f *fakeRawStream) SetBreak(on bool) error       { f.brk = on; return nil }
func (f *fakeRawStream) Lines() (Line, error)         { return LineCTS | LineDSR, nil }
func (f *fakeRawStream) SetHalfDuplex(on bool) error { f.halfDuplex = on; return nil }

var (
	_ LineController = (*fakeRawStream)(nil)
	_ Configurer     = (*fakeRawStream)(nil)
	_ Purger         = (*fakeRawStream)(nil)
	_ HalfDuplexer   = (*fakeRawStream)(nil)
)

func dialFake(raw *fakeRawStream) Dialer {
	return func(string) (RawStream, error) { return raw, nil }
}

func TestStreamBaseReadAccumulatesPartialReads(t *testing.T) {
	raw := &fakeRawStream{readChunks: [][]byte{{0x01, 0x02}, {0x03}, {0x04}}}
	s := NewSerial(dialFake(raw))
	require.NoError(t, s.Open("fake"))

	dst := make([]byte, 4)
	n, err := s.Read(dst)
	require.NoError(t, err)
	assert.Equal(t, 4, n)
	assert.Equal(t, []byte{0x01, 0x02, 0x03, 0x04}, dst)
}

func TestStreamBaseReadEOFReportsTimeout(t *testing.T) {
	raw := &fakeRawStream{}
	s := NewSerial(dialFake(raw))
	require.NoError(t, s.Open("fake"))

	_, err := s.Read(make([]byte, 2))
	assert.ErrorIs(t, err, status.Timeout)
}

func TestStreamBaseDelegatesOptionalCapabilities(t *testing.T) {
	raw := &fakeRawStream{}
	s := NewSerial(dialFake(raw))
	require.NoError(t, s.Open("fake"))

	require.NoError(t, s.Configure(Config{Baud: 9600}))
	assert.True(t, raw.configureSeen)
	assert.Equal(t, 9600, raw.configureCfg.Baud)

	require.NoError(t, s.SetDTR(true))
	assert.True(t, raw.dtr)
	require.NoError(t, s.SetRTS(true))
	assert.True(t, raw.rts)
	require.NoError(t, s.SetHalfDuplex(true))
	assert.True(t, raw.halfDuplex)

	lines, err := s.Lines()
	require.NoError(t, err)
	assert.Equal(t, LineCTS|LineDSR, lines)

	require.NoError(t, s.Purge(DirectionAll))
	assert.True(t, raw.purgeCalled)
	assert.Equal(t, DirectionAll, raw.purgeDir)
}

func TestIrDAHardNoOps(t *testing.T) {
	raw := &fakeRawStream{}
	irda := NewIrDA(dialFake(raw))
	require.NoError(t, irda.Open("fake"))

	require.NoError(t, irda.Configure(Config{Baud: 9600}))
	assert.False(t, raw.configureSeen, "IrDA must not forward Configure to the raw stream")

	require.NoError(t, irda.SetDTR(true))
	assert.False(t, raw.dtr)

	lines, err := irda.Lines()
	require.NoError(t, err)
	assert.Equal(t, Line(0), lines)
}

func TestClassifyOpenErr(t *testing.T) {
	assert.Equal(t, status.NoDevice, classifyOpenErr(errNoDevice))
	assert.Equal(t, status.NoAccess, classifyOpenErr(errNoAccess))
	assert.Equal(t, status.IO, classifyOpenErr(io.ErrClosedPipe))
}
