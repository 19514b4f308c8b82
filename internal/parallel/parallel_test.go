package parallel

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFor(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Enabled = true
	cfg.NumWorkers = 4

	var counter int64
	n := 1000
	seen := make([]bool, n)

	For(n, func(i int) {
		atomic.AddInt64(&counter, 1)
		seen[i] = true
	}, cfg)

	assert.Equal(t, int64(n), counter)
	for i, ok := range seen {
		assert.True(t, ok, "index %d not visited", i)
	}
}

func TestFor_Sequential(t *testing.T) {
	var order []int
	For(5, func(i int) {
		order = append(order, i)
	}, Sequential)

	assert.Equal(t, []int{0, 1, 2, 3, 4}, order)
}

func TestFor_SmallN(t *testing.T) {
	cfg := Config{Enabled: true, NumWorkers: 8, MinChunkSize: 16}

	var counter int64
	For(3, func(_ int) {
		atomic.AddInt64(&counter, 1)
	}, cfg)

	assert.Equal(t, int64(3), counter)
}

func TestForEach(t *testing.T) {
	var counter int64
	err := ForEach(context.Background(), 50, 4, func(_ context.Context, _ int) error {
		atomic.AddInt64(&counter, 1)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, int64(50), counter)
}

func TestForEach_FirstError(t *testing.T) {
	boom := errors.New("boom")
	err := ForEach(context.Background(), 20, 2, func(_ context.Context, i int) error {
		if i == 3 {
			return boom
		}
		return nil
	})
	require.ErrorIs(t, err, boom)
}

func TestForEach_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := ForEach(ctx, 10, 2, func(_ context.Context, _ int) error {
		return nil
	})
	require.ErrorIs(t, err, context.Canceled)
}

func BenchmarkFor(b *testing.B) {
	cfg := DefaultConfig()
	n := 10000

	b.Run("parallel", func(b *testing.B) {
		for i := 0; i < b.N; i++ {
			var sum int64
			For(n, func(i int) {
				atomic.AddInt64(&sum, int64(i))
			}, cfg)
		}
	})

	b.Run("sequential", func(b *testing.B) {
		for i := 0; i < b.N; i++ {
			var sum int64
			For(n, func(i int) {
				atomic.AddInt64(&sum, int64(i))
			}, Sequential)
		}
	})
}
