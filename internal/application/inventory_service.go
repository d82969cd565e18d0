package application

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/sanosuguru/go-concert-booking/internal/domain/concert"
	"github.com/sanosuguru/go-concert-booking/internal/domain/inventory"
	"github.com/sanosuguru/go-concert-booking/internal/pkg/logger"
)

// InventorySeeder は起動時に全座席種別の残席カウンタを用意する
// 既に存在するカウンタは上書きしない
type InventorySeeder struct {
	seatTypes concert.SeatTypeRepository
	counter   inventory.Counter
}

func NewInventorySeeder(sr concert.SeatTypeRepository, counter inventory.Counter) *InventorySeeder {
	return &InventorySeeder{seatTypes: sr, counter: counter}
}

// SeedAll は未初期化のカウンタを座席数で初期化し、初期化した件数と既存の件数を返す
func (s *InventorySeeder) SeedAll(ctx context.Context) (seeded, existing int, err error) {
	seatTypes, err := s.seatTypes.ListAll(ctx)
	if err != nil {
		return 0, 0, fmt.Errorf("座席種別の取得に失敗: %w", err)
	}
	for _, st := range seatTypes {
		ok, err := s.counter.Seed(ctx, st.ConcertID, st.ID, st.Capacity)
		if err != nil {
			return seeded, existing, fmt.Errorf("在庫カウンタの初期化に失敗 (seat_type_id=%s): %w", st.ID, err)
		}
		if ok {
			seeded++
		} else {
			existing++
		}
	}
	logger.Info("在庫カウンタを初期化しました", zap.Int("seeded", seeded), zap.Int("existing", existing))
	return seeded, existing, nil
}
