package transport

import (
	"context"
	"fmt"
)

// Retry runs op under the attempt/delay/timeout rules of policy for calls that
// do not go through an http.Client (object store SDK calls, for instance).
// Only errors for which transient returns true are retried. A nil transient
// uses IsTransient.
func Retry(ctx context.Context, policy Policy, op func(ctx context.Context) error, transient func(error) bool) error {
	policy = policy.withDefaults()
	if transient == nil {
		transient = IsTransient
	}

	var last error
	for attempt := 1; attempt <= policy.MaxAttempts; attempt++ {
		if attempt > 1 {
			if err := sleep(ctx, policy.Delay); err != nil {
				return fmt.Errorf("%w (last error: %v)", err, last)
			}
		}

		actx, cancel := context.WithTimeout(ctx, policy.Timeout)
		err := op(actx)
		cancel()
		if err == nil {
			return nil
		}
		last = err
		if ctx.Err() != nil || !transient(err) {
			return err
		}
	}
	return fmt.Errorf("giving up after %d attempts: %w", policy.MaxAttempts, last)
}
