package transport

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

var errFlaky = errors.New("flaky")

func isFlaky(err error) bool { return errors.Is(err, errFlaky) }

func TestRetry(t *testing.T) {
	p := Policy{MaxAttempts: 3, Delay: time.Millisecond, Timeout: time.Second}

	t.Run("SucceedsAfterTransient", func(t *testing.T) {
		calls := 0
		err := Retry(context.Background(), p, func(ctx context.Context) error {
			calls++
			if calls < 2 {
				return errFlaky
			}
			return nil
		}, isFlaky)
		assert.NoError(t, err)
		assert.Equal(t, 2, calls)
	})

	t.Run("TerminalNotRetried", func(t *testing.T) {
		calls := 0
		boom := errors.New("boom")
		err := Retry(context.Background(), p, func(ctx context.Context) error {
			calls++
			return boom
		}, isFlaky)
		assert.ErrorIs(t, err, boom)
		assert.Equal(t, 1, calls)
	})

	t.Run("Exhausted", func(t *testing.T) {
		calls := 0
		err := Retry(context.Background(), p, func(ctx context.Context) error {
			calls++
			return errFlaky
		}, isFlaky)
		assert.ErrorIs(t, err, errFlaky)
		assert.Equal(t, 3, calls)
	})

	t.Run("AttemptHasDeadline", func(t *testing.T) {
		err := Retry(context.Background(), Policy{MaxAttempts: 1, Timeout: time.Second}, func(ctx context.Context) error {
			_, ok := ctx.Deadline()
			assert.True(t, ok)
			return nil
		}, nil)
		assert.NoError(t, err)
	})
}
