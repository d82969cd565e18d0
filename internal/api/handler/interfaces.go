package handler

import (
	"context"
	"time"

	"github.com/sanosuguru/go-concert-booking/internal/application"
	"github.com/sanosuguru/go-concert-booking/internal/domain/booking"
	"github.com/sanosuguru/go-concert-booking/internal/domain/concert"
	"github.com/sanosuguru/go-concert-booking/internal/worker"
)

// BookingServiceInterface は予約サービスのインターフェース
type BookingServiceInterface interface {
	CreateBooking(ctx context.Context, input application.CreateBookingInput) (*booking.Booking, error)
	CancelBooking(ctx context.Context, userID, concertID string) (*booking.Booking, error)
	GetBooking(ctx context.Context, userID, id string) (*booking.Booking, error)
	ListUserBookings(ctx context.Context, userID string, limit, offset int) ([]*booking.Booking, error)
	CountBookings(ctx context.Context, concertID, seatTypeID string, status booking.Status) (int, error)
}

// ConcertServiceInterface はコンサートサービスのインターフェース
type ConcertServiceInterface interface {
	CreateConcert(ctx context.Context, input application.CreateConcertInput) (*concert.Concert, error)
	GetConcert(ctx context.Context, id string) (*concert.Concert, error)
	ListUpcoming(ctx context.Context) ([]*concert.Concert, error)
	UpdateConcert(ctx context.Context, input application.UpdateConcertInput) (*concert.Concert, error)
	DeleteConcert(ctx context.Context, id string) error
	CreateSeatTypes(ctx context.Context, concertID string, inputs []application.SeatTypeInput) ([]*concert.SeatType, error)
	GetSeatType(ctx context.Context, concertID, seatTypeID string) (*concert.SeatType, error)
}

// AvailabilityReader は座席種別の残席数を返す
type AvailabilityReader interface {
	Available(ctx context.Context, concertID, seatTypeID string) (int, error)
}

// Sweeper は開始時刻を過ぎたコンサートの無効化を実行する
type Sweeper interface {
	Sweep(ctx context.Context, now time.Time) (*worker.SweepResult, error)
}
