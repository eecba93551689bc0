package framing

import (
	"github.com/daedaluz/divecomputer/status"
)

// Build wraps payload in the stream family's ASCII-hex envelope:
//
//	'{' hex(payload) hex_be_u16(CRC-CCITT over hex(payload)) '}'
//
// The on-wire size for an n-byte payload is 2n + 6 (spec §4.2).
func Build(payload []byte) []byte {
	hexPayload := BinToHex(payload)
	crc := CRC(hexPayload)
	crcBytes := []byte{byte(crc >> 8), byte(crc)}
	hexCRC := BinToHex(crcBytes)

	wire := make([]byte, 0, len(hexPayload)+len(hexCRC)+2)
	wire = append(wire, '{')
	wire = append(wire, hexPayload...)
	wire = append(wire, hexCRC...)
	wire = append(wire, '}')
	return wire
}

// Parse validates and decodes a wire-format envelope, returning the raw
// payload bytes. Rejects any input with wrong brackets, odd hex length,
// non-hex digits, or a mismatched CRC, each with status.Protocol (spec §8
// "Envelope round-trip").
func Parse(wire []byte) ([]byte, error) {
	if len(wire) < 6 {
		return nil, status.Wrap(status.Protocol, "envelope too short", nil)
	}
	if wire[0] != '{' {
		return nil, status.Wrap(status.Protocol, "envelope missing leading brace", nil)
	}
	if wire[len(wire)-1] != '}' {
		return nil, status.Wrap(status.Protocol, "envelope missing trailing brace", nil)
	}
	body := wire[1 : len(wire)-1]
	if len(body) < 4 {
		return nil, status.Wrap(status.Protocol, "envelope missing crc", nil)
	}
	hexPayload := body[:len(body)-4]
	hexCRC := body[len(body)-4:]

	crcBytes, err := HexToBin(hexCRC)
	if err != nil {
		return nil, err
	}
	wantCRC := uint16(crcBytes[0])<<8 | uint16(crcBytes[1])
	gotCRC := CRC(hexPayload)
	if wantCRC != gotCRC {
		return nil, status.Wrap(status.Protocol, "envelope crc mismatch", nil)
	}

	payload, err := HexToBin(hexPayload)
	if err != nil {
		return nil, err
	}
	return payload, nil
}
