// Package lock serializes work on a single submission across goroutines and
// processes. Acquire returns sentinel.ErrLocked when the key stays held past
// the wait budget.
package lock

import (
	"context"
	"time"
)

// Lease is a held lock. Release is safe to call once the lease has expired;
// it never removes a lock taken over by another holder.
type Lease interface {
	Release(ctx context.Context) error
}

const retryInterval = 50 * time.Millisecond

// waitFor retries try until it reports acquired, ctx ends, or wait elapses.
func waitFor(ctx context.Context, wait time.Duration, try func() (bool, error)) error {
	deadline := time.Now().Add(wait)
	for {
		ok, err := try()
		if err != nil {
			return err
		}
		if ok {
			return nil
		}
		if !time.Now().Before(deadline) {
			return errHeld
		}
		timer := time.NewTimer(retryInterval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}
