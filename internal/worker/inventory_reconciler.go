package worker

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/sanosuguru/go-concert-booking/internal/domain/booking"
	"github.com/sanosuguru/go-concert-booking/internal/domain/concert"
	"github.com/sanosuguru/go-concert-booking/internal/domain/inventory"
	"github.com/sanosuguru/go-concert-booking/internal/pkg/logger"
	"github.com/sanosuguru/go-concert-booking/internal/pkg/metrics"
)

type SeatTypeLister interface {
	ListAll(ctx context.Context) ([]*concert.SeatType, error)
}

type BookingCounter interface {
	Count(ctx context.Context, concertID, seatTypeID string, status booking.Status) (int, error)
}

type InventoryReader interface {
	Available(ctx context.Context, concertID, seatTypeID string) (int, error)
}

// Drift は1座席種別分の照合結果
// Delta = Available - (Capacity - ActiveBookings)
type Drift struct {
	ConcertID      string
	SeatTypeID     string
	Capacity       int
	ActiveBookings int
	Available      int
	Delta          int
}

// InventoryReconciler は残席カウンタと有効な予約数を照合する
// ずれはログとメトリクスで報告するのみで、カウンタは変更しない
type InventoryReconciler struct {
	seatTypes SeatTypeLister
	bookings  BookingCounter
	counter   InventoryReader
	interval  time.Duration

	stopCh   chan struct{}
	doneCh   chan struct{}
	stopOnce sync.Once
}

func NewInventoryReconciler(seatTypes SeatTypeLister, bookings BookingCounter, counter InventoryReader, interval time.Duration) *InventoryReconciler {
	return &InventoryReconciler{
		seatTypes: seatTypes,
		bookings:  bookings,
		counter:   counter,
		interval:  interval,
		stopCh:    make(chan struct{}),
		doneCh:    make(chan struct{}),
	}
}

// Reconcile は全座席種別を照合し、ずれのあったものを返す
func (r *InventoryReconciler) Reconcile(ctx context.Context) ([]Drift, error) {
	seatTypes, err := r.seatTypes.ListAll(ctx)
	if err != nil {
		return nil, err
	}

	m := metrics.Get()
	var drifts []Drift
	for _, st := range seatTypes {
		active, err := r.bookings.Count(ctx, st.ConcertID, st.ID, booking.StatusActive)
		if err != nil {
			return drifts, err
		}
		available, err := r.counter.Available(ctx, st.ConcertID, st.ID)
		if errors.Is(err, inventory.ErrNotInitialized) {
			logger.Error("在庫カウンタが初期化されていません",
				zap.String("concert_id", st.ConcertID),
				zap.String("seat_type_id", st.ID),
			)
			if m != nil {
				m.InventoryAnomaliesTotal.WithLabelValues("not_initialized").Inc()
			}
			continue
		}
		if err != nil {
			return drifts, err
		}

		delta := available - (st.Capacity - active)
		if m != nil {
			m.InventoryDrift.WithLabelValues(st.ConcertID, st.ID).Set(float64(delta))
		}
		if delta == 0 {
			continue
		}
		d := Drift{
			ConcertID:      st.ConcertID,
			SeatTypeID:     st.ID,
			Capacity:       st.Capacity,
			ActiveBookings: active,
			Available:      available,
			Delta:          delta,
		}
		drifts = append(drifts, d)
		logger.Warn("在庫カウンタと予約数にずれがあります",
			zap.String("concert_id", d.ConcertID),
			zap.String("seat_type_id", d.SeatTypeID),
			zap.Int("capacity", d.Capacity),
			zap.Int("active_bookings", d.ActiveBookings),
			zap.Int("available", d.Available),
			zap.Int("delta", d.Delta),
		)
	}
	return drifts, nil
}

// Start は照合を定期実行する
func (r *InventoryReconciler) Start(ctx context.Context) {
	logger.Info("在庫照合ワーカー開始", zap.Duration("interval", r.interval))
	defer close(r.doneCh)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info("在庫照合ワーカー停止（コンテキストキャンセル）")
			return
		case <-r.stopCh:
			logger.Info("在庫照合ワーカー停止（シグナル受信）")
			return
		case <-ticker.C:
			if _, err := r.Reconcile(ctx); err != nil {
				logger.Error("在庫照合に失敗しました", zap.Error(err))
			}
		}
	}
}

func (r *InventoryReconciler) Stop() {
	r.stopOnce.Do(func() { close(r.stopCh) })
	<-r.doneCh
}
