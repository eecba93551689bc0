// Package divelog defines the driver-family-agnostic surface every
// concrete driver (stream, enum, ...) implements: the Driver interface
// itself, the consumer callback signature, the event sink, and a
// name-keyed driver registry.
//
// Grounded on Atsika-aznet's Transport/Driver/Factory split (aznet.go):
// a Factory knows how to build a Driver, and a package-level registry maps
// a short family name to a Factory, mirroring aznet's URL-scheme-keyed
// factories map.
package divelog

import (
	"context"
	"fmt"
	"sync"

	"github.com/daedaluz/divecomputer/retry"
)

// Consumer receives dive records newest-first. record is the full opaque
// byte-string for one dive; fingerprint is a sub-slice of record
// identifying it for future incremental downloads. Returning false stops
// iteration with overall success (spec §6 "Consumer callback").
//
// The C original threads a userdata pointer through every call; Go
// closures make that unnecessary, so it is omitted here.
type Consumer func(record []byte, fingerprint []byte) bool

// Driver is the uniform interface every driver family (C4-S, C4-E, ...)
// implements.
type Driver interface {
	// SetFingerprint installs the fingerprint identifying the newest dive
	// the caller has already seen. An empty slice clears it.
	SetFingerprint(fp []byte) error
	// SetEvents installs the sink that receives progress/info/clock/warning
	// events during Dump and Foreach. Passing nil disables event delivery.
	SetEvents(sink EventSink)
	// Cancel returns the cancellation flag observed at suspension
	// boundaries inside Dump/Foreach (spec §5).
	Cancel() *retry.CancellationFlag

	// Dump fills buf with the device's raw log image (or, for
	// self-describing families, the concatenated dive records) and emits
	// progress/info/clock events along the way.
	Dump(ctx context.Context, buf *[]byte) error
	// Foreach dumps into a fresh buffer and invokes the ring-buffer
	// extractor appropriate to this family, delivering records to consumer
	// newest-first.
	Foreach(ctx context.Context, consumer Consumer) error

	// Close releases the underlying transport. Idempotent.
	Close() error
}

// Factory builds a Driver. Concrete families (stream.Factory, enum.Factory)
// carry whatever construction parameters they need (a Dialer, an
// Enumerator, a device name, ...) and implement this single method.
type Factory interface {
	NewDriver() (Driver, error)
}

var (
	registryMu sync.RWMutex
	registry   = make(map[string]Factory)
)

// Register associates a driver-family name with the Factory that builds
// it. Re-registering a name replaces the previous Factory; this is
// intentional (it lets tests install a fake family under the name the
// driver code under test expects).
func Register(family string, f Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[family] = f
}

// Open builds a Driver from the Factory registered under family.
func Open(family string) (Driver, error) {
	registryMu.RLock()
	f, ok := registry[family]
	registryMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("divelog: no driver family registered as %q", family)
	}
	return f.NewDriver()
}
