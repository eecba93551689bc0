package retry

import (
	"context"
	"time"

	"github.com/daedaluz/divecomputer/framing"
	"github.com/daedaluz/divecomputer/status"
	"github.com/daedaluz/divecomputer/transport"
)

// MaxRetries bounds the number of retries Transfer performs after the
// initial attempt, per spec §4.3.
const MaxRetries = 4

// retryDelay is the fixed pause between a failed attempt and the next
// retry, per spec §4.3 ("sleep 100 ms").
const retryDelay = 100 * time.Millisecond

// Transfer writes cmd, reads exactly expectedLen bytes, and validates them
// as a stream-family envelope (component C2), retrying on Protocol or
// Timeout failures up to MaxRetries times. Any other failure is returned
// immediately without retry. A raised cancel flag, or a cancelled ctx, is
// observed before each attempt and short-circuits the call with
// status.Cancelled without issuing a transport read (spec §8 "Cancellation
// latency").
func Transfer(ctx context.Context, t transport.Transport, cancel *CancellationFlag, cmd []byte, expectedLen int) ([]byte, error) {
	return transfer(ctx, t, cancel, cmd, expectedLen, framing.Parse)
}

// TransferRaw performs the same write/read/retry/cancel discipline as
// Transfer, for exchanges whose response is not an ASCII-hex envelope: the
// enum family's binary commands, and the stream family's literal probe
// handshake. validate inspects the raw response; a non-nil return is
// treated the same as a framing decode failure for retry purposes (so
// returning status.Protocol makes a deviation retryable, matching
// Transfer's envelope-decode failures).
func TransferRaw(ctx context.Context, t transport.Transport, cancel *CancellationFlag, cmd []byte, expectedLen int, validate func([]byte) error) ([]byte, error) {
	return transfer(ctx, t, cancel, cmd, expectedLen, func(raw []byte) ([]byte, error) {
		if err := validate(raw); err != nil {
			return nil, err
		}
		return raw, nil
	})
}

// transfer is the shared write/read/retry/cancel loop behind Transfer and
// TransferRaw: write cmd, read expectedLen bytes, decode; retry the whole
// exchange (resending cmd) on a decode failure classified as Protocol or
// Timeout, up to MaxRetries times.
func transfer(ctx context.Context, t transport.Transport, cancel *CancellationFlag, cmd []byte, expectedLen int, decode func([]byte) ([]byte, error)) ([]byte, error) {
	for attempt := 0; ; attempt++ {
		if isCancelled(ctx, cancel) {
			return nil, status.Wrap(status.Cancelled, "transfer", nil)
		}

		if _, err := t.Write(cmd); err != nil {
			return nil, err
		}

		raw := make([]byte, expectedLen)
		n, err := t.Read(raw)
		var payload []byte
		if err == nil {
			payload, err = decode(raw[:n])
		}
		if err == nil {
			return payload, nil
		}

		s := status.From(err)
		if (s == status.Protocol || s == status.Timeout) && attempt < MaxRetries {
			t.Sleep(retryDelay)
			_ = t.Purge(transport.DirectionInput)
			continue
		}
		return nil, err
	}
}

// Cancelled reports whether cancel is raised or ctx has already been
// cancelled: the same suspension-boundary check Transfer and TransferRaw
// perform before every attempt, exposed for callers that need to observe
// it independently (e.g. between the chunks of a bulk dump read, which
// has no per-chunk command to retry through Transfer).
func Cancelled(ctx context.Context, cancel *CancellationFlag) bool {
	return isCancelled(ctx, cancel)
}

func isCancelled(ctx context.Context, cancel *CancellationFlag) bool {
	if cancel != nil && cancel.Raised() {
		return true
	}
	if ctx != nil && ctx.Err() != nil {
		return true
	}
	return false
}
