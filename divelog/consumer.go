package divelog

// CopyingConsumer wraps inner so that each delivered record is copied out
// of the driver's scratch buffer before inner is invoked. Drivers reuse one
// scratch buffer between dives (spec §5 "Shared-resource policy"); callers
// that want to retain records past the lifetime of a single callback
// invocation without writing their own copy can wrap their Consumer in
// this instead (spec §9 "Buffer aliasing... optionally offer a copy on
// delivery mode").
func CopyingConsumer(inner Consumer) Consumer {
	return func(record, fingerprint []byte) bool {
		cp := make([]byte, len(record))
		copy(cp, record)

		var fp []byte
		if len(fingerprint) > 0 {
			// fingerprint is documented as a sub-slice of record; locate its
			// offset within record and re-slice the copy at the same offset
			// so callers can keep comparing cp's fingerprint across calls.
			off := fingerprintOffset(record, fingerprint)
			fp = cp[off : off+len(fingerprint)]
		}
		return inner(cp, fp)
	}
}

// fingerprintOffset returns the byte offset of fingerprint within record,
// assuming (per contract) that fingerprint really is a sub-slice of
// record. Falls back to 0 if that invariant is somehow violated, rather
// than panicking on a pointer-arithmetic mismatch.
func fingerprintOffset(record, fingerprint []byte) int {
	if len(fingerprint) == 0 || len(record) == 0 {
		return 0
	}
	fpStart := &fingerprint[0]
	// Walk record looking for the address match; records are small
	// (hundreds of bytes), so a linear scan is cheap and avoids any
	// unsafe.Pointer arithmetic.
	for i := range record {
		if &record[i] == fpStart {
			return i
		}
	}
	return 0
}
