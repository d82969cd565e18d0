package redis

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/sanosuguru/go-concert-booking/internal/domain/inventory"
)

// スクリプトの戻り値（負数は失敗理由）
const (
	resultExhausted      = -1
	resultNotInitialized = -2
	resultOverRelease    = -3
)

// 残数の確認と減算を1回のスクリプトで行う
const reserveScript = `
local v = redis.call("GET", KEYS[1])
if not v then
	return -2
end
if tonumber(v) <= 0 then
	return -1
end
return redis.call("DECR", KEYS[1])
`

// 座席数（KEYS[2]）を上限として1つ戻す
const releaseScript = `
local v = redis.call("GET", KEYS[1])
if not v then
	return -2
end
local cap = redis.call("GET", KEYS[2])
if cap and tonumber(v) >= tonumber(cap) then
	return -3
end
return redis.call("INCR", KEYS[1])
`

// InventoryCounter は Redis 上の残席カウンタ
type InventoryCounter struct {
	client *redis.Client
}

// NewInventoryCounter は新しいInventoryCounterを作成する
func NewInventoryCounter(client *redis.Client) *InventoryCounter {
	return &InventoryCounter{client: client}
}

// Reserve は残席を1つ確保する
func (c *InventoryCounter) Reserve(ctx context.Context, concertID, seatTypeID string) (int, error) {
	n, err := c.client.Eval(ctx, reserveScript, []string{availableKey(concertID, seatTypeID)}).Int()
	if err != nil {
		return 0, fmt.Errorf("在庫確保に失敗: %w", err)
	}
	switch n {
	case resultNotInitialized:
		return 0, inventory.ErrNotInitialized
	case resultExhausted:
		return 0, inventory.ErrExhausted
	}
	return n, nil
}

// Release は残席を1つ戻す
func (c *InventoryCounter) Release(ctx context.Context, concertID, seatTypeID string) (int, error) {
	keys := []string{availableKey(concertID, seatTypeID), capacityKey(concertID, seatTypeID)}
	n, err := c.client.Eval(ctx, releaseScript, keys).Int()
	if err != nil {
		return 0, fmt.Errorf("在庫返却に失敗: %w", err)
	}
	switch n {
	case resultNotInitialized:
		return 0, inventory.ErrNotInitialized
	case resultOverRelease:
		return 0, inventory.ErrOverRelease
	}
	return n, nil
}

// Seed は未初期化の場合のみ残数を capacity で初期化する
// 座席数キーは常に上書きする
func (c *InventoryCounter) Seed(ctx context.Context, concertID, seatTypeID string, capacity int) (bool, error) {
	var seeded *redis.BoolCmd
	_, err := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		seeded = pipe.SetNX(ctx, availableKey(concertID, seatTypeID), capacity, 0)
		pipe.Set(ctx, capacityKey(concertID, seatTypeID), capacity, 0)
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("在庫初期化に失敗: %w", err)
	}
	return seeded.Val(), nil
}

// Reset は残数を無条件に capacity へ戻す（運用・テスト用）
func (c *InventoryCounter) Reset(ctx context.Context, concertID, seatTypeID string, capacity int) error {
	_, err := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, availableKey(concertID, seatTypeID), capacity, 0)
		pipe.Set(ctx, capacityKey(concertID, seatTypeID), capacity, 0)
		return nil
	})
	if err != nil {
		return fmt.Errorf("在庫リセットに失敗: %w", err)
	}
	return nil
}

// Available は現在の残数を返す
func (c *InventoryCounter) Available(ctx context.Context, concertID, seatTypeID string) (int, error) {
	n, err := c.client.Get(ctx, availableKey(concertID, seatTypeID)).Int()
	if err != nil {
		if err == redis.Nil {
			return 0, inventory.ErrNotInitialized
		}
		return 0, fmt.Errorf("在庫取得に失敗: %w", err)
	}
	return n, nil
}

func availableKey(concertID, seatTypeID string) string {
	return fmt.Sprintf("concert:%s:seatType:%s:available", concertID, seatTypeID)
}

func capacityKey(concertID, seatTypeID string) string {
	return fmt.Sprintf("concert:%s:seatType:%s:capacity", concertID, seatTypeID)
}

var _ inventory.Counter = (*InventoryCounter)(nil)
