package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// DeactivationScheduleKey は開始時刻で並べたコンサートIDのソート済みセット
const DeactivationScheduleKey = "concert:disable:schedule"

// ScheduleEntry はスケジュールの1件
type ScheduleEntry struct {
	ConcertID string
	StartTime time.Time
}

// DeactivationSchedule はコンサート無効化の予定を管理する
// スコアは開始時刻（エポックミリ秒）
type DeactivationSchedule struct {
	client *redis.Client
}

// NewDeactivationSchedule は新しいDeactivationScheduleを作成する
func NewDeactivationSchedule(client *redis.Client) *DeactivationSchedule {
	return &DeactivationSchedule{client: client}
}

// Add は予定を追加する（既存なら開始時刻を更新する）
func (s *DeactivationSchedule) Add(ctx context.Context, concertID string, startTime time.Time) error {
	err := s.client.ZAdd(ctx, DeactivationScheduleKey, redis.Z{
		Score:  float64(startTime.UnixMilli()),
		Member: concertID,
	}).Err()
	if err != nil {
		return fmt.Errorf("無効化予定の登録に失敗: %w", err)
	}
	return nil
}

// Remove は予定を削除する
func (s *DeactivationSchedule) Remove(ctx context.Context, concertIDs ...string) error {
	if len(concertIDs) == 0 {
		return nil
	}
	members := make([]interface{}, len(concertIDs))
	for i, id := range concertIDs {
		members[i] = id
	}
	if err := s.client.ZRem(ctx, DeactivationScheduleKey, members...).Err(); err != nil {
		return fmt.Errorf("無効化予定の削除に失敗: %w", err)
	}
	return nil
}

// Due は開始時刻が now 以前のコンサートIDを返す
func (s *DeactivationSchedule) Due(ctx context.Context, now time.Time) ([]string, error) {
	ids, err := s.client.ZRangeByScore(ctx, DeactivationScheduleKey, &redis.ZRangeBy{
		Min: "-inf",
		Max: strconv.FormatInt(now.UnixMilli(), 10),
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("無効化予定の取得に失敗: %w", err)
	}
	return ids, nil
}

// Replace はスケジュール全体を entries で置き換える
func (s *DeactivationSchedule) Replace(ctx context.Context, entries []ScheduleEntry) error {
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, DeactivationScheduleKey)
		if len(entries) == 0 {
			return nil
		}
		members := make([]redis.Z, len(entries))
		for i, e := range entries {
			members[i] = redis.Z{Score: float64(e.StartTime.UnixMilli()), Member: e.ConcertID}
		}
		pipe.ZAdd(ctx, DeactivationScheduleKey, members...)
		return nil
	})
	if err != nil {
		return fmt.Errorf("無効化予定の再構築に失敗: %w", err)
	}
	return nil
}
