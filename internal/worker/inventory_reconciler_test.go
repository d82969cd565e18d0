package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sanosuguru/go-concert-booking/internal/domain/booking"
	"github.com/sanosuguru/go-concert-booking/internal/domain/concert"
	redisinfra "github.com/sanosuguru/go-concert-booking/internal/infrastructure/redis"
)

type staticSeatTypes []*concert.SeatType

func (s staticSeatTypes) ListAll(ctx context.Context) ([]*concert.SeatType, error) {
	return s, nil
}

// activeCounts は seatTypeID ごとの有効予約数
type activeCounts map[string]int

func (a activeCounts) Count(ctx context.Context, concertID, seatTypeID string, status booking.Status) (int, error) {
	if status != booking.StatusActive {
		return 0, errors.New("unexpected status")
	}
	return a[seatTypeID], nil
}

func newTestCounter(t *testing.T) *redisinfra.InventoryCounter {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return redisinfra.NewInventoryCounter(client)
}

func TestInventoryReconciler_Reconcile(t *testing.T) {
	ctx := context.Background()
	seatTypes := staticSeatTypes{
		{ID: "vip", ConcertID: "c1", Capacity: 10},
		{ID: "standard", ConcertID: "c1", Capacity: 100},
	}

	t.Run("一致していればずれなし", func(t *testing.T) {
		counter := newTestCounter(t)
		require.NoError(t, counter.Reset(ctx, "c1", "vip", 7))
		require.NoError(t, counter.Reset(ctx, "c1", "standard", 100))

		r := NewInventoryReconciler(seatTypes, activeCounts{"vip": 3}, counter, time.Minute)
		drifts, err := r.Reconcile(ctx)
		require.NoError(t, err)
		assert.Empty(t, drifts)
	})

	t.Run("ずれを報告しカウンタは変更しない", func(t *testing.T) {
		counter := newTestCounter(t)
		require.NoError(t, counter.Reset(ctx, "c1", "vip", 8))
		require.NoError(t, counter.Reset(ctx, "c1", "standard", 100))

		r := NewInventoryReconciler(seatTypes, activeCounts{"vip": 3}, counter, time.Minute)
		drifts, err := r.Reconcile(ctx)
		require.NoError(t, err)
		require.Len(t, drifts, 1)
		assert.Equal(t, Drift{
			ConcertID:      "c1",
			SeatTypeID:     "vip",
			Capacity:       10,
			ActiveBookings: 3,
			Available:      8,
			Delta:          1,
		}, drifts[0])

		n, err := counter.Available(ctx, "c1", "vip")
		require.NoError(t, err)
		assert.Equal(t, 8, n)
	})

	t.Run("未初期化のカウンタは読み飛ばす", func(t *testing.T) {
		counter := newTestCounter(t)
		require.NoError(t, counter.Reset(ctx, "c1", "standard", 99))

		r := NewInventoryReconciler(seatTypes, activeCounts{"standard": 1}, counter, time.Minute)
		drifts, err := r.Reconcile(ctx)
		require.NoError(t, err)
		assert.Empty(t, drifts)

		_, err = counter.Available(ctx, "c1", "vip")
		assert.Error(t, err)
	})
}

func TestInventoryReconciler_StartStop(t *testing.T) {
	counter := newTestCounter(t)
	r := NewInventoryReconciler(staticSeatTypes{}, activeCounts{}, counter, 10*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan struct{})
	go func() {
		r.Start(ctx)
		close(done)
	}()

	time.Sleep(30 * time.Millisecond)
	r.Stop()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("reconciler did not stop")
	}
}
