package concert

import (
	"context"
	"time"
)

// Repository はコンサートリポジトリのインターフェース
type Repository interface {
	Create(ctx context.Context, c *Concert) error
	GetByID(ctx context.Context, id string) (*Concert, error)
	Update(ctx context.Context, c *Concert) error
	Delete(ctx context.Context, id string) error

	// ListUpcoming は開始前のアクティブなコンサートを開始時刻順に取得する
	ListUpcoming(ctx context.Context, now time.Time, limit int) ([]*Concert, error)

	// ListActive はアクティブなコンサートをすべて取得する
	// 開始時刻を過ぎたものも含む（次のスイープで無効化される）
	ListActive(ctx context.Context) ([]*Concert, error)

	// DeactivateIfActive は指定IDのうちアクティブなものを非アクティブにし、
	// 実際に更新したIDを返す
	DeactivateIfActive(ctx context.Context, ids []string) ([]string, error)
}

// SeatTypeRepository は座席種別リポジトリのインターフェース
type SeatTypeRepository interface {
	// CreateBulk は座席種別をまとめて作成し、コンサートに紐付ける
	CreateBulk(ctx context.Context, concertID string, seatTypes []*SeatType) error
	GetByID(ctx context.Context, id string) (*SeatType, error)
	ListByConcertID(ctx context.Context, concertID string) ([]*SeatType, error)
	ListAll(ctx context.Context) ([]*SeatType, error)
}
