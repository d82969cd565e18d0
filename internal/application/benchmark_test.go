package application

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/sanosuguru/go-concert-booking/internal/domain/booking"
)

// BenchmarkCreateBooking は在庫が尽きるまでの並行予約を計測する
func BenchmarkCreateBooking(b *testing.B) {
	ctx := context.Background()
	counter := newRedisCounter(b, b.N)
	s := NewBookingService(newMemoryBookingRepository(), allowAll{}, counter, nil, &recordingPublisher{})

	var seq int64
	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			user := fmt.Sprintf("U%d", atomic.AddInt64(&seq, 1))
			if _, err := s.CreateBooking(ctx, CreateBookingInput{UserID: user, ConcertID: "C1", SeatTypeID: "vip"}); err != nil {
				b.Errorf("予約失敗: %v", err)
			}
		}
	})
}

// BenchmarkCreateBooking_SoldOut は売り切れ後の拒否経路を計測する
func BenchmarkCreateBooking_SoldOut(b *testing.B) {
	ctx := context.Background()
	counter := newRedisCounter(b, 0)
	s := NewBookingService(newMemoryBookingRepository(), allowAll{}, counter, nil, &recordingPublisher{})

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, err := s.CreateBooking(ctx, CreateBookingInput{UserID: fmt.Sprintf("U%d", i), ConcertID: "C1", SeatTypeID: "vip"})
		if !errors.Is(err, booking.ErrSoldOut) {
			b.Fatalf("想定外の結果: %v", err)
		}
	}
}

func BenchmarkInventoryReserveRelease(b *testing.B) {
	ctx := context.Background()
	counter := newRedisCounter(b, 1)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := counter.Reserve(ctx, "C1", "vip"); err != nil {
			b.Fatal(err)
		}
		if _, err := counter.Release(ctx, "C1", "vip"); err != nil {
			b.Fatal(err)
		}
	}
}
