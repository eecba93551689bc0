package divelog

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCopyingConsumerCopiesRecordAndFingerprint(t *testing.T) {
	scratch := []byte{0xAA, 0xBB, 0xCC, 0xDD, 0xEE}
	fingerprint := scratch[2:4]

	var gotRecord, gotFingerprint []byte
	wrapped := CopyingConsumer(func(record, fp []byte) bool {
		gotRecord = record
		gotFingerprint = fp
		return true
	})

	cont := wrapped(scratch, fingerprint)
	assert.True(t, cont)
	assert.Equal(t, scratch, gotRecord)
	assert.Equal(t, fingerprint, gotFingerprint)

	// Mutating the original scratch buffer must not affect the delivered copy.
	scratch[0] = 0x00
	assert.Equal(t, byte(0xAA), gotRecord[0])

	// The delivered fingerprint must still point at the delivered record's copy.
	gotRecord[2] = 0x11
	assert.Equal(t, byte(0x11), gotFingerprint[0])
}

func TestCopyingConsumerWithoutFingerprint(t *testing.T) {
	scratch := []byte{0x01, 0x02}
	var gotFingerprint []byte
	wrapped := CopyingConsumer(func(record, fp []byte) bool {
		gotFingerprint = fp
		return false
	})

	cont := wrapped(scratch, nil)
	assert.False(t, cont)
	assert.Empty(t, gotFingerprint)
}
