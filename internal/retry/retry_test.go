package retry

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPolicy_Delay(t *testing.T) {
	p := Policy{Initial: 2 * time.Second, Max: 60 * time.Second}

	assert.Equal(t, 2*time.Second, p.Delay(1))
	assert.Equal(t, 4*time.Second, p.Delay(2))
	assert.Equal(t, 8*time.Second, p.Delay(3))
	assert.Equal(t, 60*time.Second, p.Delay(10))
}

func TestPolicy_DelayJitter(t *testing.T) {
	p := Policy{Initial: time.Second, Max: time.Minute, Jitter: 0.5}
	for i := 0; i < 50; i++ {
		d := p.Delay(1)
		assert.GreaterOrEqual(t, d, 750*time.Millisecond)
		assert.LessOrEqual(t, d, 1250*time.Millisecond)
	}
}

func TestDo(t *testing.T) {
	fast := Policy{Attempts: 3, Initial: time.Millisecond, Max: 2 * time.Millisecond}

	t.Run("succeeds after failures", func(t *testing.T) {
		calls := 0
		retries := 0
		err := Do(context.Background(), fast, func(int) error {
			calls++
			if calls < 3 {
				return errors.New("temporary")
			}
			return nil
		}, func(int, error, time.Duration) { retries++ })
		require.NoError(t, err)
		assert.Equal(t, 3, calls)
		assert.Equal(t, 2, retries)
	})

	t.Run("gives up after attempts", func(t *testing.T) {
		calls := 0
		err := Do(context.Background(), fast, func(int) error {
			calls++
			return errors.New("still down")
		}, nil)
		assert.EqualError(t, err, "still down")
		assert.Equal(t, 3, calls)
	})

	t.Run("permanent errors stop immediately", func(t *testing.T) {
		sentinel := errors.New("bad request")
		calls := 0
		err := Do(context.Background(), fast, func(int) error {
			calls++
			return Permanent(sentinel)
		}, nil)
		assert.ErrorIs(t, err, sentinel)
		assert.False(t, IsPermanent(err))
		assert.Equal(t, 1, calls)
	})

	t.Run("wrapped permanent errors stop immediately", func(t *testing.T) {
		sentinel := errors.New("bad request")
		calls := 0
		err := Do(context.Background(), fast, func(int) error {
			calls++
			return fmt.Errorf("create record: %w", Permanent(sentinel))
		}, nil)
		assert.Equal(t, sentinel, err)
		assert.False(t, IsPermanent(err))
		assert.Equal(t, 1, calls)
	})

	t.Run("context cancellation", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		slow := Policy{Attempts: 5, Initial: time.Hour, Max: time.Hour}
		calls := 0
		err := Do(ctx, slow, func(int) error {
			calls++
			cancel()
			return errors.New("down")
		}, nil)
		assert.ErrorIs(t, err, context.Canceled)
		assert.Equal(t, 1, calls)
	})
}
