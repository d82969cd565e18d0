package booking

import "time"

// Status は予約の状態を表す
type Status string

const (
	StatusActive    Status = "ACTIVE"
	StatusCancelled Status = "CANCELLED"
	StatusCompleted Status = "COMPLETED"
)

// IsValid は定義済みの状態かを返す
func (s Status) IsValid() bool {
	switch s {
	case StatusActive, StatusCancelled, StatusCompleted:
		return true
	}
	return false
}

// Booking は予約エンティティを表す
// 同一ユーザー・同一コンサートで ACTIVE な予約は高々1件
type Booking struct {
	ID         string
	UserID     string
	ConcertID  string
	SeatTypeID string
	Status     Status
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// NewBooking は ACTIVE 状態の新しい予約を作成する
func NewBooking(userID, concertID, seatTypeID string) *Booking {
	now := time.Now()
	return &Booking{
		UserID:     userID,
		ConcertID:  concertID,
		SeatTypeID: seatTypeID,
		Status:     StatusActive,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// IsActive は予約が有効かを返す
func (b *Booking) IsActive() bool {
	return b.Status == StatusActive
}

// Cancel は予約をキャンセルする（ACTIVE からのみ遷移可能）
func (b *Booking) Cancel() error {
	if b.Status == StatusCancelled {
		return ErrBookingAlreadyCancelled
	}
	if b.Status != StatusActive {
		return ErrNoActiveBooking
	}
	b.Status = StatusCancelled
	b.UpdatedAt = time.Now()
	return nil
}

// Validate は予約の検証を行う
func (b *Booking) Validate() error {
	if b.UserID == "" {
		return ErrUserIDRequired
	}
	if b.ConcertID == "" {
		return ErrConcertIDRequired
	}
	if b.SeatTypeID == "" {
		return ErrSeatTypeIDRequired
	}
	return nil
}
