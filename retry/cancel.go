// Package retry implements the bounded retry/backoff wrapper around a
// single request/response exchange (component C3), plus the cooperative
// cancellation flag drivers observe at suspension boundaries (spec §5).
package retry

import "sync/atomic"

// CancellationFlag is the cooperative cancellation signal a driver carries
// for the lifetime of a dump/foreach call. Raising it does not interrupt
// an in-flight transport operation; it is observed at the next suspension
// boundary (before each transfer, between dump chunks), per spec §5.
type CancellationFlag struct {
	raised atomic.Bool
}

// Raise marks the flag. Safe to call from any goroutine; typically called
// from a signal handler or a sibling goroutine watching a context.
func (c *CancellationFlag) Raise() { c.raised.Store(true) }

// Raised reports whether the flag has been raised.
func (c *CancellationFlag) Raised() bool { return c.raised.Load() }

// Reset clears the flag, allowing the same CancellationFlag to be reused
// across a subsequent open/foreach cycle.
func (c *CancellationFlag) Reset() { c.raised.Store(false) }
