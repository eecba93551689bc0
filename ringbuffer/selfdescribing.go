package ringbuffer

import (
	"bytes"

	"github.com/daedaluz/divecomputer/divelog"
	"github.com/daedaluz/divecomputer/framing"
	"github.com/daedaluz/divecomputer/status"
)

// diveMarker is the 4-byte sentinel prefixing every self-describing dive
// record (spec §6 "Enum-family dive marker").
var diveMarker = []byte{0xA5, 0xA5, 0x5A, 0x5A}

// ExtractSelfDescribing scans data from the tail backwards for diveMarker,
// delivering each variable-length record newest-first until the consumer
// returns false or the scan reaches the buffer start (spec §4.6.2).
// fingerprintLen is the fixed fingerprint field length for this driver
// family (4 bytes for the enum family's little-endian timestamp cursor).
func ExtractSelfDescribing(data []byte, fingerprintLen int, events divelog.EventSink, consumer divelog.Consumer) error {
	if events == nil {
		events = divelog.NopEvents
	}

	previousOffset := len(data)
	pos := len(data)
	for pos >= len(diveMarker) {
		matchOffset := lastIndexMarker(data[:pos])
		if matchOffset < 0 {
			break
		}
		if matchOffset+8 > len(data) {
			return status.Wrap(status.DataFormat, "self-describing record missing length field", nil)
		}
		length := int(framing.U32LE(data[matchOffset+4 : matchOffset+8]))
		if matchOffset+length > previousOffset {
			return status.Wrap(status.DataFormat, "self-describing record overlaps previous dive", nil)
		}
		if matchOffset+length > len(data) {
			return status.Wrap(status.DataFormat, "self-describing record exceeds buffer", nil)
		}

		record := data[matchOffset : matchOffset+length]
		var fp []byte
		if fingerprintLen > 0 && 8+fingerprintLen <= len(record) {
			fp = record[8 : 8+fingerprintLen]
		}
		if !consumer(record, fp) {
			return nil
		}

		previousOffset = matchOffset
		pos = matchOffset
	}
	return nil
}

// lastIndexMarker returns the offset of the rightmost occurrence of
// diveMarker within buf, or -1 if none is found.
func lastIndexMarker(buf []byte) int {
	for i := len(buf) - len(diveMarker); i >= 0; i-- {
		if bytes.Equal(buf[i:i+len(diveMarker)], diveMarker) {
			return i
		}
	}
	return -1
}
