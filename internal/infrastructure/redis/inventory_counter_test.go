package redis

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sanosuguru/go-concert-booking/internal/domain/inventory"
)

func TestInventoryCounter_Reserve(t *testing.T) {
	ctx := context.Background()

	t.Run("未初期化", func(t *testing.T) {
		_, client := newTestClient(t)
		c := NewInventoryCounter(client)

		_, err := c.Reserve(ctx, "c1", "vip")
		assert.ErrorIs(t, err, inventory.ErrNotInitialized)
	})

	t.Run("残数を減らす", func(t *testing.T) {
		mr, client := newTestClient(t)
		c := NewInventoryCounter(client)
		_, err := c.Seed(ctx, "c1", "vip", 2)
		require.NoError(t, err)

		n, err := c.Reserve(ctx, "c1", "vip")
		require.NoError(t, err)
		assert.Equal(t, 1, n)

		n, err = c.Reserve(ctx, "c1", "vip")
		require.NoError(t, err)
		assert.Equal(t, 0, n)

		_, err = c.Reserve(ctx, "c1", "vip")
		assert.ErrorIs(t, err, inventory.ErrExhausted)

		v, _ := mr.Get("concert:c1:seatType:vip:available")
		assert.Equal(t, "0", v)
	})
}

func TestInventoryCounter_ConcurrentReserveNeverOversells(t *testing.T) {
	ctx := context.Background()
	_, client := newTestClient(t)
	c := NewInventoryCounter(client)
	_, err := c.Seed(ctx, "c1", "vip", 10)
	require.NoError(t, err)

	var wg sync.WaitGroup
	var success, exhausted int32
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := c.Reserve(ctx, "c1", "vip")
			switch err {
			case nil:
				atomic.AddInt32(&success, 1)
			case inventory.ErrExhausted:
				atomic.AddInt32(&exhausted, 1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(10), success)
	assert.Equal(t, int32(40), exhausted)

	n, err := c.Available(ctx, "c1", "vip")
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestInventoryCounter_Release(t *testing.T) {
	ctx := context.Background()

	t.Run("確保と返却で元に戻る", func(t *testing.T) {
		_, client := newTestClient(t)
		c := NewInventoryCounter(client)
		_, err := c.Seed(ctx, "c1", "vip", 5)
		require.NoError(t, err)

		_, err = c.Reserve(ctx, "c1", "vip")
		require.NoError(t, err)
		n, err := c.Release(ctx, "c1", "vip")
		require.NoError(t, err)
		assert.Equal(t, 5, n)
	})

	t.Run("座席数を超えて戻さない", func(t *testing.T) {
		_, client := newTestClient(t)
		c := NewInventoryCounter(client)
		_, err := c.Seed(ctx, "c1", "vip", 5)
		require.NoError(t, err)

		_, err = c.Release(ctx, "c1", "vip")
		assert.ErrorIs(t, err, inventory.ErrOverRelease)

		n, err := c.Available(ctx, "c1", "vip")
		require.NoError(t, err)
		assert.Equal(t, 5, n)
	})

	t.Run("未初期化", func(t *testing.T) {
		_, client := newTestClient(t)
		c := NewInventoryCounter(client)

		_, err := c.Release(ctx, "c1", "vip")
		assert.ErrorIs(t, err, inventory.ErrNotInitialized)
	})
}

func TestInventoryCounter_SeedDoesNotOverwriteLiveCounter(t *testing.T) {
	ctx := context.Background()
	mr, client := newTestClient(t)
	c := NewInventoryCounter(client)

	seeded, err := c.Seed(ctx, "c1", "vip", 3)
	require.NoError(t, err)
	assert.True(t, seeded)

	_, err = c.Reserve(ctx, "c1", "vip")
	require.NoError(t, err)

	seeded, err = c.Seed(ctx, "c1", "vip", 3)
	require.NoError(t, err)
	assert.False(t, seeded)

	n, err := c.Available(ctx, "c1", "vip")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	capacity, _ := mr.Get("concert:c1:seatType:vip:capacity")
	assert.Equal(t, "3", capacity)

	require.NoError(t, c.Reset(ctx, "c1", "vip", 3))
	n, err = c.Available(ctx, "c1", "vip")
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}
