package framing

import (
	"github.com/daedaluz/divecomputer/status"
)

const hexDigits = "0123456789ABCDEF"

// BinToHex renders src as two uppercase hex characters per byte.
func BinToHex(src []byte) []byte {
	out := make([]byte, len(src)*2)
	for i, b := range src {
		out[i*2] = hexDigits[b>>4]
		out[i*2+1] = hexDigits[b&0x0f]
	}
	return out
}

// HexToBin decodes an ASCII-hex string into bytes, failing with
// status.Protocol on any non-hex digit or odd length.
func HexToBin(hex []byte) ([]byte, error) {
	if len(hex)%2 != 0 {
		return nil, status.Wrap(status.Protocol, "odd-length hex string", nil)
	}
	out := make([]byte, len(hex)/2)
	for i := range out {
		hi, ok := hexNibble(hex[i*2])
		if !ok {
			return nil, status.Wrap(status.Protocol, "invalid hex digit", nil)
		}
		lo, ok := hexNibble(hex[i*2+1])
		if !ok {
			return nil, status.Wrap(status.Protocol, "invalid hex digit", nil)
		}
		out[i] = hi<<4 | lo
	}
	return out, nil
}

func hexNibble(c byte) (byte, bool) {
	switch {
	case c >= '0' && c <= '9':
		return c - '0', true
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10, true
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10, true
	default:
		return 0, false
	}
}
