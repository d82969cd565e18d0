package concert

import "github.com/sanosuguru/go-concert-booking/internal/domain/failure"

// Concert ドメインのエラー定義
var (
	ErrConcertNotFound      = failure.User("コンサートが見つかりません")
	ErrSeatTypeNotFound     = failure.User("指定された座席種別はこのコンサートに存在しません")
	ErrConcertUnavailable   = failure.User("このコンサートは予約を受け付けていません")
	ErrSeatTypeExhausted    = failure.User("この座席種別は販売可能な席がありません")
	ErrConcertNameRequired  = failure.User("コンサート名は必須です")
	ErrStartTimeInPast      = failure.User("開始時刻は未来である必要があります")
	ErrInvalidConcertTime   = failure.User("終了時刻は開始時刻より後である必要があります")
	ErrSeatTypeNameRequired = failure.User("座席種別名は必須です")
	ErrInvalidPrice         = failure.User("価格は0以上である必要があります")
	ErrInvalidCapacity      = failure.User("座席数は1以上である必要があります")
	ErrSeatTypesRequired    = failure.User("座席種別を1件以上指定してください")
)
