package transport

// Serial is the full-capability stream variant: configure, DTR/RTS, break,
// half-duplex, and modem line status are all meaningful and are forwarded
// to the underlying RawStream's optional capability interfaces.
//
// Grounded on Daedaluz-goserial's Port type, which exposes exactly this
// capability set (GetAttr/SetAttr, SetModemLines, SendBreak, ...) against a
// raw fd; here the fd is replaced by the caller-supplied Dialer/RawStream
// so this package never touches termios itself.
type Serial struct {
	*streamBase
}

// NewSerial builds a Serial transport around dial. dial is expected to
// return a RawStream that also implements Configurer and LineController;
// if it does not, the corresponding operations degrade to no-ops rather
// than failing, matching spec §4.1.
func NewSerial(dial Dialer) *Serial {
	return &Serial{streamBase: newStreamBase(dial)}
}
