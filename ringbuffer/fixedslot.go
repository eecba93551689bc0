// Package ringbuffer implements the two ring-buffer dive-log extractors
// (component C5): the fixed-slot variant paired with the stream-family
// driver, and the self-describing variant paired with the enum-family
// driver.
package ringbuffer

import (
	"bytes"

	"github.com/daedaluz/divecomputer/divelog"
	"github.com/daedaluz/divecomputer/framing"
	"github.com/daedaluz/divecomputer/status"
)

// FixedSlotConfig describes the fixed geometry of a stream-family memory
// image: a logbook region of equal-size slots, and a profile region the
// slots address via (header, footer) pointer pairs (spec §4.6.1).
type FixedSlotConfig struct {
	LogbookBegin int
	LogbookEnd   int
	SlotSize     int

	ProfileBegin int
	ProfileEnd   int

	// FingerprintOffset/FingerprintLen locate the fingerprint field within
	// each delivered record (slot bytes followed by profile bytes).
	FingerprintOffset int
	FingerprintLen    int
}

// ExtractFixedSlot locates the newest logbook entry in data, walks backwards
// newest-first joining each slot with its wrap-aware profile, and delivers
// each dive to consumer until the consumer returns false, the fingerprint
// gate is hit, or the logbook is exhausted.
func ExtractFixedSlot(data []byte, cfg FixedSlotConfig, fingerprint []byte, events divelog.EventSink, consumer divelog.Consumer) error {
	if events == nil {
		events = divelog.NopEvents
	}

	maxSlots := (cfg.LogbookEnd - cfg.LogbookBegin) / cfg.SlotSize
	count := 0
	latestIndex := -1
	maxSeq := -1
	for idx := 0; idx < maxSlots; idx++ {
		slot := logbookSlot(data, cfg, idx)
		if isAllFF(slot) {
			break
		}
		seq := int(framing.U16LE(slot[0:2]))
		if seq == 0xFFFF {
			break
		}
		if seq > maxSeq {
			maxSeq = seq
			latestIndex = idx
		}
		count++
	}
	if count == 0 {
		return nil
	}

	width := cfg.ProfileEnd - cfg.ProfileBegin
	remaining := width
	budgetExhausted := false
	previousHeader := 0

	for i := 0; i < count; i++ {
		idx := (latestIndex + count - i) % count
		slot := logbookSlot(data, cfg, idx)

		header := int(framing.U16LE(slot[2:4]))
		footer := int(framing.U16LE(slot[4:6]))
		if header < cfg.ProfileBegin || header > cfg.ProfileEnd-2 ||
			footer < cfg.ProfileBegin || footer > cfg.ProfileEnd-2 {
			return status.Wrap(status.DataFormat, "fixed-slot header/footer out of range", nil)
		}

		if i > 0 {
			expected := footer + 2
			if expected == cfg.ProfileEnd {
				expected = cfg.ProfileBegin
			}
			if previousHeader != expected {
				return status.Wrap(status.DataFormat, "fixed-slot continuity violation", nil)
			}
		}

		flen := cfg.FingerprintLen
		if len(fingerprint) > 0 && len(fingerprint) == flen &&
			bytes.Equal(fingerprint, slot[cfg.FingerprintOffset:cfg.FingerprintOffset+flen]) {
			return nil
		}

		length := distance(header, footer, width) - 2
		if length < 0 {
			return status.Wrap(status.DataFormat, "fixed-slot negative profile length", nil)
		}

		if framing.U16LE(data[footer:footer+2]) != uint16(header) ||
			framing.U16LE(data[header:header+2]) != uint16(footer) {
			return status.Wrap(status.DataFormat, "fixed-slot header/footer cross-check failed", nil)
		}

		record := make([]byte, 0, cfg.SlotSize+length)
		record = append(record, slot...)

		if !budgetExhausted {
			profile := copyWrapped(data, header+2, length, cfg.ProfileBegin, cfg.ProfileEnd)
			record = append(record, profile...)
			remaining -= length + 4
			if remaining < 0 {
				budgetExhausted = true
				events.OnWarning("fixed-slot extractor: remaining profile budget exhausted, delivering subsequent entries with empty profile")
			}
		}

		var fp []byte
		if flen > 0 {
			fp = record[cfg.FingerprintOffset : cfg.FingerprintOffset+flen]
		}
		if !consumer(record, fp) {
			return nil
		}

		previousHeader = header
	}
	return nil
}

func logbookSlot(data []byte, cfg FixedSlotConfig, idx int) []byte {
	start := cfg.LogbookBegin + idx*cfg.SlotSize
	return data[start : start+cfg.SlotSize]
}

func isAllFF(b []byte) bool {
	for _, v := range b {
		if v != 0xFF {
			return false
		}
	}
	return true
}

// distance computes the wrap-aware forward distance from a to b within a
// region of the given width, per spec §4.6.1: distance(a, b) = (b - a) mod width.
func distance(a, b, width int) int {
	d := (b - a) % width
	if d < 0 {
		d += width
	}
	return d
}

// copyWrapped copies length bytes starting at start, wrapping at end back
// to begin, satisfying spec §8's "ring-buffer wrap" property.
func copyWrapped(data []byte, start, length, begin, end int) []byte {
	out := make([]byte, length)
	pos := start
	for i := 0; i < length; i++ {
		if pos >= end {
			pos = begin + (pos - end)
		}
		out[i] = data[pos]
		pos++
	}
	return out
}
