package transport

import "sync"

// socketSubsystem models the process-wide init/teardown some socket-style
// transports require on some platforms (spec §9 "Global state"). It is a
// reference-counted singleton: the first Acquire performs lazy init, the
// matching Release that drops the count to zero performs teardown. Acquire
// and Release are idempotent-paired; callers that forget to pair them leak
// the count, which this package's own tests assert against.
type socketSubsystemState struct {
	mu       sync.Mutex
	refs     int
	initFn   func() error
	teardown func()
}

var globalSocketSubsystem = &socketSubsystemState{
	initFn:   func() error { return nil },
	teardown: func() {},
}

// Acquire increments the subsystem's reference count, performing lazy init
// on the first call. Returns any error the init step produces; a failed
// init does not increment the count.
func (s *socketSubsystemState) Acquire() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.refs == 0 {
		if err := s.initFn(); err != nil {
			return err
		}
	}
	s.refs++
	return nil
}

// Release decrements the reference count, tearing down on the last release.
// Calling Release without a matching Acquire is a no-op below zero.
func (s *socketSubsystemState) Release() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.refs == 0 {
		return
	}
	s.refs--
	if s.refs == 0 {
		s.teardown()
	}
}

// RefCount reports the current reference count; exported for this package's
// own tests to assert correct Acquire/Release pairing.
func (s *socketSubsystemState) RefCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.refs
}

// AcquireSocketSubsystem and ReleaseSocketSubsystem are the package-level
// entry points Socket.Open/Socket.Close call around the embedded
// streamBase's own open/close. Safe to call from multiple drivers
// concurrently; the underlying state is shared process-wide, matching the
// platform-level subsystem it stands in for.
func AcquireSocketSubsystem() error { return globalSocketSubsystem.Acquire() }
func ReleaseSocketSubsystem()       { globalSocketSubsystem.Release() }

// SocketSubsystemRefCount reports the live reference count, for tests.
func SocketSubsystemRefCount() int { return globalSocketSubsystem.RefCount() }
