package application

import (
	"context"

	"github.com/sanosuguru/go-concert-booking/internal/domain/concert"
)

// ConcertDirectory はコンサートサービスへの問い合わせ
type ConcertDirectory interface {
	GetConcert(ctx context.Context, concertID string) (*concert.Concert, error)
	GetSeatType(ctx context.Context, concertID, seatTypeID string) (*concert.SeatType, error)
}

// ValidatedSelection は検証済みのコンサートと座席種別
type ValidatedSelection struct {
	Concert  *concert.Concert
	SeatType *concert.SeatType
}

// BookingValidator は予約対象が販売可能かを確認する
// 連携先のエラーはそのまま返す
type BookingValidator struct {
	directory ConcertDirectory
}

func NewBookingValidator(directory ConcertDirectory) *BookingValidator {
	return &BookingValidator{directory: directory}
}

// Validate はコンサートと座席種別を順に確認する
func (v *BookingValidator) Validate(ctx context.Context, concertID, seatTypeID string) (*ValidatedSelection, error) {
	c, err := v.directory.GetConcert(ctx, concertID)
	if err != nil {
		return nil, err
	}
	if !c.IsBookable() {
		return nil, concert.ErrConcertUnavailable
	}
	if !c.HasSeatType(seatTypeID) {
		return nil, concert.ErrSeatTypeNotFound
	}

	st, err := v.directory.GetSeatType(ctx, concertID, seatTypeID)
	if err != nil {
		return nil, err
	}
	// 残席カウンタとは独立した座席数の事前確認
	if st.Capacity <= 0 {
		return nil, concert.ErrSeatTypeExhausted
	}
	return &ValidatedSelection{Concert: c, SeatType: st}, nil
}
