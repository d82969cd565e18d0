package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/sanosuguru/go-concert-booking/internal/domain/concert"
	"github.com/sanosuguru/go-concert-booking/internal/domain/inventory"
	redisinfra "github.com/sanosuguru/go-concert-booking/internal/infrastructure/redis"
	"github.com/sanosuguru/go-concert-booking/internal/pkg/logger"
)

const upcomingLimit = 100

// ConcertCache はコンサートの読み取りキャッシュ
// 未保存は redisinfra.ErrCacheMiss を返す
type ConcertCache interface {
	GetConcert(ctx context.Context, id string) (*concert.Concert, error)
	SetConcert(ctx context.Context, c *concert.Concert) error
	GetSeatType(ctx context.Context, id string) (*concert.SeatType, error)
	SetSeatType(ctx context.Context, st *concert.SeatType) error
	GetUpcoming(ctx context.Context) ([]*concert.Concert, error)
	SetUpcoming(ctx context.Context, list []*concert.Concert) error
	InvalidateConcert(ctx context.Context, ids ...string) error
	InvalidateSeatTypes(ctx context.Context, ids ...string) error
}

// ScheduleHooks はコンサートの開始時刻の変化を無効化スケジューラへ伝える
type ScheduleHooks interface {
	OnConcertCreated(ctx context.Context, concertID string, startTime time.Time) error
	OnConcertStartTimeChanged(ctx context.Context, concertID string, oldStart, newStart time.Time) error
	OnConcertDeleted(ctx context.Context, concertID string) error
}

// ConcertService はコンサートと座席種別を管理する
type ConcertService struct {
	concerts  concert.Repository
	seatTypes concert.SeatTypeRepository
	cache     ConcertCache
	schedule  ScheduleHooks
	counter   inventory.Counter
	now       func() time.Time
}

func NewConcertService(cr concert.Repository, sr concert.SeatTypeRepository, cache ConcertCache, schedule ScheduleHooks, counter inventory.Counter) *ConcertService {
	return &ConcertService{concerts: cr, seatTypes: sr, cache: cache, schedule: schedule, counter: counter, now: time.Now}
}

type SeatTypeInput struct {
	Name        string
	Description string
	Price       int
	Capacity    int
}

type CreateConcertInput struct {
	Name        string
	Artist      string
	Venue       string
	Description string
	StartTime   time.Time
	EndTime     time.Time
	SeatTypes   []SeatTypeInput
}

func (s *ConcertService) CreateConcert(ctx context.Context, input CreateConcertInput) (*concert.Concert, error) {
	c := concert.NewConcert(input.Name, input.Artist, input.Venue, input.Description, input.StartTime, input.EndTime)
	if err := c.Validate(s.now()); err != nil {
		return nil, err
	}
	seatTypes, err := buildSeatTypes("", input.SeatTypes)
	if err != nil {
		return nil, err
	}

	if err := s.concerts.Create(ctx, c); err != nil {
		return nil, fmt.Errorf("コンサート作成に失敗しました: %w", err)
	}
	if len(seatTypes) > 0 {
		if err := s.addSeatTypes(ctx, c.ID, seatTypes); err != nil {
			s.discardConcert(ctx, c)
			return nil, err
		}
		for _, st := range seatTypes {
			c.SeatTypeIDs = append(c.SeatTypeIDs, st.ID)
		}
	}

	if err := s.schedule.OnConcertCreated(ctx, c.ID, c.StartTime); err != nil {
		logger.Warn("無効化予定の登録に失敗しました", zap.String("concert_id", c.ID), zap.Error(err))
	}
	s.invalidate(ctx, c.ID)
	return c, nil
}

// GetConcert はキャッシュ優先でコンサートを取得する
func (s *ConcertService) GetConcert(ctx context.Context, id string) (*concert.Concert, error) {
	if c, err := s.cache.GetConcert(ctx, id); err == nil {
		return c, nil
	} else if !errors.Is(err, redisinfra.ErrCacheMiss) {
		logger.Warn("キャッシュ取得エラー", zap.String("concert_id", id), zap.Error(err))
	}

	c, err := s.concerts.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.cache.SetConcert(ctx, c); err != nil {
		logger.Warn("キャッシュ保存エラー", zap.String("concert_id", id), zap.Error(err))
	}
	return c, nil
}

// ListUpcoming はキャッシュ優先で開催予定のコンサートを取得する
func (s *ConcertService) ListUpcoming(ctx context.Context) ([]*concert.Concert, error) {
	if list, err := s.cache.GetUpcoming(ctx); err == nil {
		return list, nil
	} else if !errors.Is(err, redisinfra.ErrCacheMiss) {
		logger.Warn("キャッシュ取得エラー", zap.Error(err))
	}

	list, err := s.concerts.ListUpcoming(ctx, s.now(), upcomingLimit)
	if err != nil {
		return nil, err
	}
	if err := s.cache.SetUpcoming(ctx, list); err != nil {
		logger.Warn("キャッシュ保存エラー", zap.Error(err))
	}
	return list, nil
}

type UpdateConcertInput struct {
	ID     string
	Fields concert.UpdateFields
}

func (s *ConcertService) UpdateConcert(ctx context.Context, input UpdateConcertInput) (*concert.Concert, error) {
	c, err := s.concerts.GetByID(ctx, input.ID)
	if err != nil {
		return nil, err
	}
	oldStart := c.StartTime
	startChanged := c.Update(input.Fields)

	now := s.now()
	// 開始済みのコンサートを再び有効にはできない
	if (startChanged || input.Fields.IsActive != nil) && c.IsActive && !c.StartTime.After(now) {
		return nil, concert.ErrStartTimeInPast
	}
	if !c.EndTime.After(c.StartTime) {
		return nil, concert.ErrInvalidConcertTime
	}

	if err := s.concerts.Update(ctx, c); err != nil {
		return nil, fmt.Errorf("コンサート更新に失敗しました: %w", err)
	}

	if c.IsActive && (startChanged || input.Fields.IsActive != nil) {
		if err := s.schedule.OnConcertStartTimeChanged(ctx, c.ID, oldStart, c.StartTime); err != nil {
			logger.Warn("無効化予定の更新に失敗しました", zap.String("concert_id", c.ID), zap.Error(err))
		}
	}
	s.invalidate(ctx, c.ID)
	return c, nil
}

func (s *ConcertService) DeleteConcert(ctx context.Context, id string) error {
	seatTypes, err := s.seatTypes.ListByConcertID(ctx, id)
	if err != nil {
		return err
	}
	if err := s.concerts.Delete(ctx, id); err != nil {
		return err
	}

	if err := s.schedule.OnConcertDeleted(ctx, id); err != nil {
		logger.Warn("無効化予定の削除に失敗しました", zap.String("concert_id", id), zap.Error(err))
	}
	s.invalidate(ctx, id)
	ids := make([]string, len(seatTypes))
	for i, st := range seatTypes {
		ids[i] = st.ID
	}
	if err := s.cache.InvalidateSeatTypes(ctx, ids...); err != nil {
		logger.Warn("キャッシュ無効化エラー", zap.String("concert_id", id), zap.Error(err))
	}
	return nil
}

// CreateSeatTypes は座席種別を追加し、残席カウンタを初期化する
func (s *ConcertService) CreateSeatTypes(ctx context.Context, concertID string, inputs []SeatTypeInput) ([]*concert.SeatType, error) {
	if len(inputs) == 0 {
		return nil, concert.ErrSeatTypesRequired
	}
	seatTypes, err := buildSeatTypes(concertID, inputs)
	if err != nil {
		return nil, err
	}
	if err := s.addSeatTypes(ctx, concertID, seatTypes); err != nil {
		return nil, err
	}
	s.invalidate(ctx, concertID)
	return seatTypes, nil
}

// GetSeatType はコンサートに属する座席種別を取得する
func (s *ConcertService) GetSeatType(ctx context.Context, concertID, seatTypeID string) (*concert.SeatType, error) {
	st, err := s.cache.GetSeatType(ctx, seatTypeID)
	if err != nil {
		if !errors.Is(err, redisinfra.ErrCacheMiss) {
			logger.Warn("キャッシュ取得エラー", zap.String("seat_type_id", seatTypeID), zap.Error(err))
		}
		st, err = s.seatTypes.GetByID(ctx, seatTypeID)
		if err != nil {
			return nil, err
		}
		if err := s.cache.SetSeatType(ctx, st); err != nil {
			logger.Warn("キャッシュ保存エラー", zap.String("seat_type_id", seatTypeID), zap.Error(err))
		}
	}
	if st.ConcertID != concertID {
		return nil, concert.ErrSeatTypeNotFound
	}
	return st, nil
}

func (s *ConcertService) addSeatTypes(ctx context.Context, concertID string, seatTypes []*concert.SeatType) error {
	if err := s.seatTypes.CreateBulk(ctx, concertID, seatTypes); err != nil {
		return err
	}
	for _, st := range seatTypes {
		if _, err := s.counter.Seed(ctx, concertID, st.ID, st.Capacity); err != nil {
			// 起動時の一括初期化で補われる
			logger.Error("在庫カウンタの初期化に失敗しました",
				zap.String("concert_id", concertID),
				zap.String("seat_type_id", st.ID),
				zap.Error(err),
			)
		}
	}
	return nil
}

// discardConcert は座席種別の作成に失敗したコンサートを取り消す。
// 削除できなかった場合は開始時刻に無効化されるようスケジュールへ登録する。
func (s *ConcertService) discardConcert(ctx context.Context, c *concert.Concert) {
	ctx = context.WithoutCancel(ctx)
	err := s.concerts.Delete(ctx, c.ID)
	if err == nil {
		return
	}
	logger.Error("作成途中のコンサートを削除できませんでした", zap.String("concert_id", c.ID), zap.Error(err))
	if err := s.schedule.OnConcertCreated(ctx, c.ID, c.StartTime); err != nil {
		logger.Error("無効化予定の登録に失敗しました", zap.String("concert_id", c.ID), zap.Error(err))
	}
	s.invalidate(ctx, c.ID)
}

func (s *ConcertService) invalidate(ctx context.Context, concertID string) {
	if err := s.cache.InvalidateConcert(ctx, concertID); err != nil {
		logger.Warn("キャッシュ無効化エラー", zap.String("concert_id", concertID), zap.Error(err))
	}
}

func buildSeatTypes(concertID string, inputs []SeatTypeInput) ([]*concert.SeatType, error) {
	seatTypes := make([]*concert.SeatType, 0, len(inputs))
	for _, in := range inputs {
		st := concert.NewSeatType(concertID, in.Name, in.Description, in.Price, in.Capacity)
		if err := st.Validate(); err != nil {
			return nil, err
		}
		seatTypes = append(seatTypes, st)
	}
	return seatTypes, nil
}
