package worker

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/sanosuguru/go-concert-booking/internal/domain/concert"
	redisinfra "github.com/sanosuguru/go-concert-booking/internal/infrastructure/redis"
	"github.com/sanosuguru/go-concert-booking/internal/pkg/logger"
	"github.com/sanosuguru/go-concert-booking/internal/pkg/metrics"
)

// SweepLockKey はレプリカ間でスイープを直列化する分散ロックのキー
const SweepLockKey = "lock:concert:disable:sweep"

// ConcertStore はスケジューラが使うコンサートの永続化操作
type ConcertStore interface {
	ListActive(ctx context.Context) ([]*concert.Concert, error)
	DeactivateIfActive(ctx context.Context, ids []string) ([]string, error)
}

// Schedule は開始時刻順の無効化予定
type Schedule interface {
	Add(ctx context.Context, concertID string, startTime time.Time) error
	Remove(ctx context.Context, concertIDs ...string) error
	Due(ctx context.Context, now time.Time) ([]string, error)
	Replace(ctx context.Context, entries []redisinfra.ScheduleEntry) error
}

// Locker は取得できた場合のみ fn を実行する
// 取得できない場合は redisinfra.ErrLockNotAcquired を返す
type Locker interface {
	WithLock(ctx context.Context, key string, ttl time.Duration, fn func(ctx context.Context) error) error
}

// CacheInvalidator はコンサートのキャッシュを無効化する
type CacheInvalidator interface {
	InvalidateConcert(ctx context.Context, ids ...string) error
}

// SweepResult はスイープ1回分の結果
type SweepResult struct {
	Due         []string `json:"due"`
	Deactivated []string `json:"deactivated"`
	Skipped     bool     `json:"skipped"`
}

// DeactivationScheduler は開始時刻を過ぎたコンサートを非アクティブにするワーカー
//
// 予定は Redis のソート済みセットに置き、起動時に Postgres から再構築する。
// スイープはプロセス内のミューテックスと分散ロックで直列化する。
type DeactivationScheduler struct {
	concerts ConcertStore
	schedule Schedule
	cache    CacheInvalidator
	locker   Locker
	interval time.Duration
	lockTTL  time.Duration
	now      func() time.Time

	mu       sync.Mutex
	stopCh   chan struct{}
	doneCh   chan struct{}
	stopOnce sync.Once
}

// NewDeactivationScheduler は新しいスケジューラを作成
// locker が nil の場合はプロセス内の直列化のみ行う
func NewDeactivationScheduler(
	concerts ConcertStore,
	schedule Schedule,
	cache CacheInvalidator,
	locker Locker,
	interval time.Duration,
	lockTTL time.Duration,
) *DeactivationScheduler {
	return &DeactivationScheduler{
		concerts: concerts,
		schedule: schedule,
		cache:    cache,
		locker:   locker,
		interval: interval,
		lockTTL:  lockTTL,
		now:      time.Now,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// OnConcertCreated は予定を追加する
func (s *DeactivationScheduler) OnConcertCreated(ctx context.Context, concertID string, startTime time.Time) error {
	return s.schedule.Add(ctx, concertID, startTime)
}

// OnConcertStartTimeChanged は予定を新しい開始時刻で置き換える
// メンバーはコンサートIDなので追加で旧エントリも上書きされる
func (s *DeactivationScheduler) OnConcertStartTimeChanged(ctx context.Context, concertID string, _, newStart time.Time) error {
	return s.schedule.Add(ctx, concertID, newStart)
}

// OnConcertDeleted は予定を削除する
func (s *DeactivationScheduler) OnConcertDeleted(ctx context.Context, concertID string) error {
	return s.schedule.Remove(ctx, concertID)
}

// Recover は永続化されたコンサートから予定を作り直す
func (s *DeactivationScheduler) Recover(ctx context.Context) error {
	concerts, err := s.concerts.ListActive(ctx)
	if err != nil {
		return err
	}
	entries := make([]redisinfra.ScheduleEntry, len(concerts))
	for i, c := range concerts {
		entries[i] = redisinfra.ScheduleEntry{ConcertID: c.ID, StartTime: c.StartTime}
	}
	if err := s.schedule.Replace(ctx, entries); err != nil {
		return err
	}
	logger.Info("無効化予定を再構築しました", zap.Int("count", len(entries)))
	return nil
}

// Sweep は now までに開始したコンサートを非アクティブにする
// 他のレプリカがスイープ中の場合は何もせず Skipped を返す
func (s *DeactivationScheduler) Sweep(ctx context.Context, now time.Time) (*SweepResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.locker == nil {
		return s.sweep(ctx, now)
	}

	var result *SweepResult
	err := s.locker.WithLock(ctx, SweepLockKey, s.lockTTL, func(ctx context.Context) error {
		var err error
		result, err = s.sweep(ctx, now)
		return err
	})
	if errors.Is(err, redisinfra.ErrLockNotAcquired) {
		logger.Debug("他のプロセスがスイープ中のためスキップします")
		return &SweepResult{Skipped: true}, nil
	}
	return result, err
}

func (s *DeactivationScheduler) sweep(ctx context.Context, now time.Time) (*SweepResult, error) {
	start := time.Now()
	defer func() {
		if m := metrics.Get(); m != nil {
			m.SweepDuration.Observe(time.Since(start).Seconds())
		}
	}()

	due, err := s.schedule.Due(ctx, now)
	if err != nil {
		return nil, err
	}
	result := &SweepResult{Due: due, Deactivated: []string{}}
	if len(due) == 0 {
		return result, nil
	}

	// 更新に失敗した場合は予定を残し、次回に再試行する
	flipped, err := s.concerts.DeactivateIfActive(ctx, due)
	if err != nil {
		return nil, err
	}
	if flipped != nil {
		result.Deactivated = flipped
	}

	// 既に非アクティブ・削除済みのものも予定からは外す
	if err := s.schedule.Remove(ctx, due...); err != nil {
		logger.Warn("無効化予定の削除に失敗しました", zap.Strings("concert_ids", due), zap.Error(err))
	}

	if len(flipped) > 0 {
		if err := s.cache.InvalidateConcert(ctx, flipped...); err != nil {
			logger.Warn("キャッシュ無効化エラー", zap.Strings("concert_ids", flipped), zap.Error(err))
		}
		if m := metrics.Get(); m != nil {
			m.ConcertDeactivationsTotal.Add(float64(len(flipped)))
		}
		logger.Info("開始時刻を過ぎたコンサートを無効化しました", zap.Strings("concert_ids", flipped))
	}
	return result, nil
}

// Start は予定を再構築してからスイープを定期実行する
func (s *DeactivationScheduler) Start(ctx context.Context) {
	logger.Info("コンサート無効化スケジューラ開始", zap.Duration("interval", s.interval))
	defer close(s.doneCh)

	if err := s.Recover(ctx); err != nil {
		logger.Error("無効化予定の再構築に失敗しました", zap.Error(err))
	}
	s.tick(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info("コンサート無効化スケジューラ停止（コンテキストキャンセル）")
			return
		case <-s.stopCh:
			logger.Info("コンサート無効化スケジューラ停止（シグナル受信）")
			return
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

// Stop はスケジューラを停止し、実行中のスイープの完了を待つ
func (s *DeactivationScheduler) Stop() {
	s.stopOnce.Do(func() { close(s.stopCh) })
	<-s.doneCh
}

func (s *DeactivationScheduler) tick(ctx context.Context) {
	if _, err := s.Sweep(ctx, s.now()); err != nil {
		logger.Error("スイープに失敗しました", zap.Error(err))
	}
}
