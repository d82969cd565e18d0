package booking

import "context"

// Repository は予約リポジトリのインターフェース
type Repository interface {
	// Create は新しい予約を作成する
	// (user_id, concert_id) で ACTIVE な予約が既にあれば ErrDuplicateBooking を返す
	Create(ctx context.Context, b *Booking) error

	// GetByID はIDから予約を取得する
	GetByID(ctx context.Context, id string) (*Booking, error)

	// FindActive はユーザーとコンサートの組で ACTIVE な予約を取得する
	FindActive(ctx context.Context, userID, concertID string) (*Booking, error)

	// ListByUserID はユーザーの予約一覧を取得する
	ListByUserID(ctx context.Context, userID string, limit, offset int) ([]*Booking, error)

	// UpdateStatus は現在の状態が from の場合のみ状態を更新する
	// 該当行がなければ ErrNoActiveBooking を返す
	UpdateStatus(ctx context.Context, b *Booking, from Status) error

	// Count は条件に一致する予約数を返す（seatTypeID, status は空なら無条件）
	Count(ctx context.Context, concertID, seatTypeID string, status Status) (int, error)
}
