package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/sanosuguru/go-concert-booking/internal/pkg/logger"
	"github.com/sanosuguru/go-concert-booking/internal/pkg/metrics"
)

var (
	ErrLockNotAcquired = errors.New("ロックを取得できませんでした")
	ErrLockNotOwned    = errors.New("ロックの所有者ではありません")
)

// 所有者が一致する場合のみ削除する
var unlockScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// 所有者が一致する場合のみ期限を延長する
var extendScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0
`)

// Lock は取得済みの分散ロック
type Lock struct {
	client *redis.Client
	key    string
	owner  string
}

// LockManager は Redis を使用した分散ロックを管理する
type LockManager struct {
	client *redis.Client
}

// NewLockManager は新しいLockManagerを作成する
func NewLockManager(client *redis.Client) *LockManager {
	return &LockManager{client: client}
}

// TryLock はロックを1回だけ試行する
// 他の所有者がいる場合は ErrLockNotAcquired を返す
func (m *LockManager) TryLock(ctx context.Context, key string, ttl time.Duration) (*Lock, error) {
	start := time.Now()
	owner := uuid.New().String()

	ok, err := m.client.SetNX(ctx, key, owner, ttl).Result()
	switch {
	case err != nil:
		observeLock("acquire", "error", start)
		return nil, fmt.Errorf("ロック取得に失敗: %w", err)
	case !ok:
		observeLock("acquire", "busy", start)
		return nil, ErrLockNotAcquired
	}
	observeLock("acquire", "success", start)
	return &Lock{client: m.client, key: key, owner: owner}, nil
}

// WithLock はロックを取得できた場合のみ fn を実行する
// ロックは fn の終了後に解放する
func (m *LockManager) WithLock(ctx context.Context, key string, ttl time.Duration, fn func(ctx context.Context) error) error {
	lock, err := m.TryLock(ctx, key, ttl)
	if err != nil {
		return err
	}
	defer func() {
		if err := lock.Unlock(context.WithoutCancel(ctx)); err != nil {
			logger.Warn("ロック解放に失敗しました", zap.String("key", key), zap.Error(err))
		}
	}()
	return fn(ctx)
}

// Unlock はロックを解放する
func (l *Lock) Unlock(ctx context.Context) error {
	start := time.Now()
	n, err := unlockScript.Run(ctx, l.client, []string{l.key}, l.owner).Int()
	if err != nil {
		observeLock("release", "error", start)
		return fmt.Errorf("ロック解放に失敗: %w", err)
	}
	if n == 0 {
		observeLock("release", "not_owned", start)
		return ErrLockNotOwned
	}
	observeLock("release", "success", start)
	return nil
}

// Extend はロックの有効期限を延長する
func (l *Lock) Extend(ctx context.Context, ttl time.Duration) error {
	n, err := extendScript.Run(ctx, l.client, []string{l.key}, l.owner, ttl.Milliseconds()).Int()
	if err != nil {
		return fmt.Errorf("ロック延長に失敗: %w", err)
	}
	if n == 0 {
		return ErrLockNotOwned
	}
	return nil
}

func observeLock(operation, status string, start time.Time) {
	if m := metrics.Get(); m != nil {
		m.DistributedLockDuration.WithLabelValues(operation, status).Observe(time.Since(start).Seconds())
	}
}
