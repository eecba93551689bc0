package transport

// Socket is the stream subset used by socket-like transports (e.g. a
// network-attached dive computer gateway): wired-line controls (DTR, RTS,
// break, half-duplex, line status) are hard no-ops, but Configure is kept
// meaningful in case the underlying RawStream wants to report e.g. a
// negotiated speed.
type Socket struct {
	*streamBase
}

// NewSocket builds a Socket transport around dial.
func NewSocket(dial Dialer) *Socket {
	return &Socket{streamBase: newStreamBase(dial)}
}

// Open acquires the process-wide socket subsystem (spec §9 "Global state")
// before dialing, and releases it again if the dial itself fails, so a
// failed Open never leaks a reference.
func (t *Socket) Open(name string) error {
	if err := AcquireSocketSubsystem(); err != nil {
		return err
	}
	if err := t.streamBase.Open(name); err != nil {
		ReleaseSocketSubsystem()
		return err
	}
	return nil
}

// Close closes the underlying stream and releases the socket subsystem
// reference a prior successful Open acquired. Closing a Socket that is not
// open does nothing, so repeated Close calls release only once.
func (t *Socket) Close() error {
	if t.raw == nil {
		return nil
	}
	err := t.streamBase.Close()
	ReleaseSocketSubsystem()
	return err
}

func (t *Socket) SetDTR(bool) error        { return nil }
func (t *Socket) SetRTS(bool) error        { return nil }
func (t *Socket) SetHalfDuplex(bool) error { return nil }
func (t *Socket) SetBreak(bool) error      { return nil }
func (t *Socket) Lines() (Line, error)     { return 0, nil }
