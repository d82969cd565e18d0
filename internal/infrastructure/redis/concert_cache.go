package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/sanosuguru/go-concert-booking/internal/domain/concert"
)

var (
	ErrCacheMiss = errors.New("キャッシュが見つかりません")
)

const upcomingKey = "concert:upcoming"

// ConcertCache はコンサート関連の読み取りキャッシュを管理する
// 値はJSONで保存する
type ConcertCache struct {
	client      *redis.Client
	ttl         time.Duration
	upcomingTTL time.Duration
}

// NewConcertCache は新しいConcertCacheインスタンスを作成する
func NewConcertCache(client *redis.Client, ttl, upcomingTTL time.Duration) *ConcertCache {
	return &ConcertCache{client: client, ttl: ttl, upcomingTTL: upcomingTTL}
}

// GetConcert はコンサート詳細をキャッシュから取得する
func (c *ConcertCache) GetConcert(ctx context.Context, id string) (*concert.Concert, error) {
	var v concert.Concert
	if err := c.get(ctx, concertKey(id), &v); err != nil {
		return nil, err
	}
	return &v, nil
}

// SetConcert はコンサート詳細をキャッシュに保存する
func (c *ConcertCache) SetConcert(ctx context.Context, v *concert.Concert) error {
	return c.set(ctx, concertKey(v.ID), v, c.ttl)
}

// GetSeatType は座席種別詳細をキャッシュから取得する
func (c *ConcertCache) GetSeatType(ctx context.Context, id string) (*concert.SeatType, error) {
	var v concert.SeatType
	if err := c.get(ctx, seatTypeKey(id), &v); err != nil {
		return nil, err
	}
	return &v, nil
}

// SetSeatType は座席種別詳細をキャッシュに保存する
func (c *ConcertCache) SetSeatType(ctx context.Context, v *concert.SeatType) error {
	return c.set(ctx, seatTypeKey(v.ID), v, c.ttl)
}

// GetUpcoming は開催予定一覧をキャッシュから取得する
func (c *ConcertCache) GetUpcoming(ctx context.Context) ([]*concert.Concert, error) {
	var v []*concert.Concert
	if err := c.get(ctx, upcomingKey, &v); err != nil {
		return nil, err
	}
	return v, nil
}

// SetUpcoming は開催予定一覧をキャッシュに保存する
func (c *ConcertCache) SetUpcoming(ctx context.Context, v []*concert.Concert) error {
	return c.set(ctx, upcomingKey, v, c.upcomingTTL)
}

// InvalidateConcert はコンサート詳細と一覧のキャッシュを無効化する
func (c *ConcertCache) InvalidateConcert(ctx context.Context, ids ...string) error {
	keys := make([]string, 0, len(ids)+1)
	for _, id := range ids {
		keys = append(keys, concertKey(id))
	}
	keys = append(keys, upcomingKey)
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("キャッシュ無効化に失敗: %w", err)
	}
	return nil
}

// InvalidateSeatTypes は座席種別のキャッシュを無効化する
func (c *ConcertCache) InvalidateSeatTypes(ctx context.Context, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = seatTypeKey(id)
	}
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("キャッシュ無効化に失敗: %w", err)
	}
	return nil
}

func (c *ConcertCache) get(ctx context.Context, key string, dst interface{}) error {
	raw, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return ErrCacheMiss
		}
		return fmt.Errorf("キャッシュ取得に失敗: %w", err)
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("キャッシュのデコードに失敗: %w", err)
	}
	return nil
}

func (c *ConcertCache) set(ctx context.Context, key string, v interface{}, ttl time.Duration) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("キャッシュのエンコードに失敗: %w", err)
	}
	if err := c.client.Set(ctx, key, raw, ttl).Err(); err != nil {
		return fmt.Errorf("キャッシュ保存に失敗: %w", err)
	}
	return nil
}

func concertKey(id string) string {
	return "concert:detail:" + id
}

func seatTypeKey(id string) string {
	return "concert:seat-type:" + id
}
