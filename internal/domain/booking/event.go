package booking

import (
	"context"
	"time"
)

// EventType は予約イベントの種別
type EventType string

const (
	EventCreated   EventType = "booking.created"
	EventCancelled EventType = "booking.cancelled"
)

// EventData は予約イベントのペイロード
type EventData struct {
	BookingID  string  `json:"bookingId" validate:"required"`
	UserID     string  `json:"userId" validate:"required"`
	ConcertID  string  `json:"concertId" validate:"required"`
	SeatTypeID string  `json:"seatTypeId" validate:"required"`
	Email      *string `json:"email,omitempty"`
}

// Envelope は配信されるイベントのワイヤー形式
type Envelope struct {
	Type      EventType `json:"type" validate:"required,oneof=booking.created booking.cancelled"`
	Data      EventData `json:"data"`
	Timestamp string    `json:"timestamp" validate:"required"`
}

// TimestampLayout はイベント時刻の形式（ISO-8601, UTC, ミリ秒）
const TimestampLayout = "2006-01-02T15:04:05.000Z07:00"

// NewEnvelope はサーバー時刻を付与したイベントを作成する
func NewEnvelope(eventType EventType, data EventData, now time.Time) Envelope {
	return Envelope{
		Type:      eventType,
		Data:      data,
		Timestamp: now.UTC().Format(TimestampLayout),
	}
}

// EventDataFrom は予約からイベントペイロードを作成する
func EventDataFrom(b *Booking, email *string) EventData {
	return EventData{
		BookingID:  b.ID,
		UserID:     b.UserID,
		ConcertID:  b.ConcertID,
		SeatTypeID: b.SeatTypeID,
		Email:      email,
	}
}

// EventPublisher は予約イベントのベストエフォート配信を行う
// 失敗は呼び出し元に返さない
type EventPublisher interface {
	Publish(ctx context.Context, eventType EventType, data EventData)
}
