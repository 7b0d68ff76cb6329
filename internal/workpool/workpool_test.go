package workpool

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSize(t *testing.T) {
	assert.Equal(t, 3, Size(3))
	assert.Positive(t, Size(0))
	assert.Positive(t, Size(-1))
}

func TestRunVisitsEveryIndex(t *testing.T) {
	seen := make([]int32, 100)
	var active, peak int32
	err := Run(context.Background(), 4, len(seen), func(_ context.Context, i int) error {
		n := atomic.AddInt32(&active, 1)
		for {
			p := atomic.LoadInt32(&peak)
			if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
				break
			}
		}
		atomic.AddInt32(&seen[i], 1)
		atomic.AddInt32(&active, -1)
		return nil
	})
	require.NoError(t, err)
	for i, v := range seen {
		assert.EqualValues(t, 1, v, "index %d", i)
	}
	assert.LessOrEqual(t, peak, int32(4))
}

func TestRunStopsOnError(t *testing.T) {
	boom := errors.New("boom")
	var ran int32
	err := Run(context.Background(), 1, 50, func(_ context.Context, i int) error {
		atomic.AddInt32(&ran, 1)
		if i == 2 {
			return boom
		}
		return nil
	})
	assert.ErrorIs(t, err, boom)
	assert.Less(t, atomic.LoadInt32(&ran), int32(50))
}

func TestRunCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	var ran int32
	err := Run(ctx, 1, 50, func(_ context.Context, i int) error {
		if atomic.AddInt32(&ran, 1) == 5 {
			cancel()
		}
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Less(t, atomic.LoadInt32(&ran), int32(50))
}
