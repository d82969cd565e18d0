package booking

import "github.com/sanosuguru/go-concert-booking/internal/domain/failure"

// Booking ドメインのエラー定義
var (
	ErrBookingNotFound         = failure.User("予約が見つかりません")
	ErrDuplicateBooking        = failure.User("このコンサートは既に予約済みです")
	ErrSoldOut                 = failure.User("この座席種別は完売しました")
	ErrNoActiveBooking         = failure.User("このユーザーとコンサートに有効な予約がありません")
	ErrBookingAlreadyCancelled = failure.User("予約は既にキャンセルされています")
	ErrUserIDRequired          = failure.User("ユーザーIDは必須です")
	ErrConcertIDRequired       = failure.User("コンサートIDは必須です")
	ErrSeatTypeIDRequired      = failure.User("座席種別IDは必須です")
	ErrInvalidStatus           = failure.User("不正な予約ステータスです")

	// ErrInventoryUnavailable は在庫カウンタが初期化されていない運用異常
	ErrInventoryUnavailable = failure.Anomaly("座席在庫が初期化されていません。サポートに連絡してください")
)
