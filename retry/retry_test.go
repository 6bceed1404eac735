package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPolicy_Delay(t *testing.T) {
	p := Policy{MaxAttempts: 5, Base: 10 * time.Millisecond, Max: 200 * time.Millisecond}

	for n := 1; n <= 10; n++ {
		d := p.Delay(n)
		assert.GreaterOrEqual(t, d, time.Duration(0))
		assert.LessOrEqual(t, d, p.Max)
	}
}

func TestPolicy_Delay_ClampsBelowOne(t *testing.T) {
	p := Policy{MaxAttempts: 3, Base: 5 * time.Millisecond, Max: 100 * time.Millisecond}

	d0 := p.Delay(0)
	d1 := p.Delay(1)
	assert.LessOrEqual(t, d0, p.Max)
	assert.LessOrEqual(t, d1, p.Max)
}

func TestDo_SucceedsFirstAttempt(t *testing.T) {
	p := Policy{MaxAttempts: 3, Base: time.Millisecond, Max: 10 * time.Millisecond}
	calls := 0

	err := Do(context.Background(), p, func(attempt int) (bool, error) {
		calls++
		return false, nil
	})

	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestDo_RetriesThenSucceeds(t *testing.T) {
	p := Policy{MaxAttempts: 5, Base: time.Millisecond, Max: 5 * time.Millisecond}
	calls := 0

	err := Do(context.Background(), p, func(attempt int) (bool, error) {
		calls++
		if calls < 3 {
			return true, errors.New("transient")
		}
		return false, nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestDo_NonRetriableStopsImmediately(t *testing.T) {
	p := Policy{MaxAttempts: 5, Base: time.Millisecond, Max: 5 * time.Millisecond}
	calls := 0
	sentinel := errors.New("invalid args")

	err := Do(context.Background(), p, func(attempt int) (bool, error) {
		calls++
		return false, sentinel
	})

	assert.Equal(t, sentinel, err)
	assert.Equal(t, 1, calls)
}

func TestDo_ExhaustsAttempts(t *testing.T) {
	p := Policy{MaxAttempts: 3, Base: time.Millisecond, Max: 5 * time.Millisecond}
	calls := 0
	sentinel := errors.New("still failing")

	err := Do(context.Background(), p, func(attempt int) (bool, error) {
		calls++
		return true, sentinel
	})

	assert.Equal(t, sentinel, err)
	assert.Equal(t, 3, calls)
}

func TestDo_ContextCancelled(t *testing.T) {
	p := Policy{MaxAttempts: 5, Base: 50 * time.Millisecond, Max: 100 * time.Millisecond}
	ctx, cancel := context.WithCancel(context.Background())

	calls := 0
	err := Do(ctx, p, func(attempt int) (bool, error) {
		calls++
		if calls == 1 {
			cancel()
		}
		return true, errors.New("transient")
	})

	assert.ErrorIs(t, err, context.Canceled)
}
