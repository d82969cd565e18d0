package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/sanosuguru/go-concert-booking/internal/domain/booking"
	"github.com/sanosuguru/go-concert-booking/internal/domain/failure"
	"github.com/sanosuguru/go-concert-booking/internal/domain/inventory"
	"github.com/sanosuguru/go-concert-booking/internal/pkg/logger"
	"github.com/sanosuguru/go-concert-booking/internal/pkg/metrics"
)

// releaseTimeout は確定済みの処理に続く在庫返却の上限時間
const releaseTimeout = 5 * time.Second

// SelectionValidator は予約対象の検証を行う
type SelectionValidator interface {
	Validate(ctx context.Context, concertID, seatTypeID string) (*ValidatedSelection, error)
}

// UserDirectory はユーザー情報の問い合わせ
type UserDirectory interface {
	GetEmail(ctx context.Context, userID string) (string, error)
}

// BookingService は予約の作成とキャンセルを行う
//
// 作成は 重複確認 → 検証 → 在庫確保 → 永続化 → メール取得 → イベント配信 の順で進む。
// 在庫確保と永続化は1つのトランザクションではないため、永続化に失敗した場合は在庫を戻す。
type BookingService struct {
	repo      booking.Repository
	validator SelectionValidator
	counter   inventory.Counter
	users     UserDirectory
	publisher booking.EventPublisher
}

func NewBookingService(repo booking.Repository, v SelectionValidator, counter inventory.Counter, users UserDirectory, pub booking.EventPublisher) *BookingService {
	return &BookingService{repo: repo, validator: v, counter: counter, users: users, publisher: pub}
}

type CreateBookingInput struct {
	UserID     string
	ConcertID  string
	SeatTypeID string
}

func (s *BookingService) CreateBooking(ctx context.Context, input CreateBookingInput) (*booking.Booking, error) {
	b, err := s.createBooking(ctx, input)
	recordBooking("create", err)
	return b, err
}

func (s *BookingService) createBooking(ctx context.Context, input CreateBookingInput) (*booking.Booking, error) {
	b := booking.NewBooking(input.UserID, input.ConcertID, input.SeatTypeID)
	if err := b.Validate(); err != nil {
		return nil, err
	}

	// 一意制約の代わりではなく、在庫を確保する前に弾くための確認
	if _, err := s.repo.FindActive(ctx, input.UserID, input.ConcertID); err == nil {
		return nil, booking.ErrDuplicateBooking
	} else if !errors.Is(err, booking.ErrBookingNotFound) {
		return nil, fmt.Errorf("既存予約の確認に失敗: %w", err)
	}

	if _, err := s.validator.Validate(ctx, input.ConcertID, input.SeatTypeID); err != nil {
		return nil, err
	}

	remaining, err := s.counter.Reserve(ctx, input.ConcertID, input.SeatTypeID)
	if err != nil {
		switch {
		case errors.Is(err, inventory.ErrExhausted):
			return nil, booking.ErrSoldOut
		case errors.Is(err, inventory.ErrNotInitialized):
			recordAnomaly("not_initialized")
			logger.Error("在庫カウンタが初期化されていません",
				zap.String("concert_id", input.ConcertID),
				zap.String("seat_type_id", input.SeatTypeID),
			)
			return nil, booking.ErrInventoryUnavailable
		}
		return nil, fmt.Errorf("在庫確保に失敗: %w", err)
	}

	if err := s.repo.Create(ctx, b); err != nil {
		s.compensate(ctx, b, err)
		if errors.Is(err, booking.ErrDuplicateBooking) {
			return nil, err
		}
		return nil, fmt.Errorf("予約の保存に失敗: %w", err)
	}

	logger.Info("予約を作成しました",
		zap.String("booking_id", b.ID),
		zap.String("user_id", b.UserID),
		zap.String("concert_id", b.ConcertID),
		zap.String("seat_type_id", b.SeatTypeID),
		zap.Int("remaining", remaining),
	)

	s.publisher.Publish(ctx, booking.EventCreated, booking.EventDataFrom(b, s.lookupEmail(ctx, b.UserID)))
	return b, nil
}

// compensate は永続化に失敗した予約の在庫を戻す
func (s *BookingService) compensate(ctx context.Context, b *booking.Booking, cause error) {
	if _, err := s.release(ctx, b); err != nil {
		recordAnomaly("compensation_failed")
		logger.Error("在庫の補償に失敗しました",
			zap.String("concert_id", b.ConcertID),
			zap.String("seat_type_id", b.SeatTypeID),
			zap.NamedError("cause", cause),
			zap.Error(err),
		)
	}
}

// release は呼び出し元のキャンセルを引き継がずに在庫を戻す
func (s *BookingService) release(ctx context.Context, b *booking.Booking) (int, error) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), releaseTimeout)
	defer cancel()
	return s.counter.Release(ctx, b.ConcertID, b.SeatTypeID)
}

// lookupEmail はメールアドレスを取得する（失敗しても予約は成功とする）
func (s *BookingService) lookupEmail(ctx context.Context, userID string) *string {
	if s.users == nil {
		return nil
	}
	email, err := s.users.GetEmail(ctx, userID)
	if err != nil {
		logger.Warn("メールアドレスを取得できませんでした", zap.String("user_id", userID), zap.Error(err))
		return nil
	}
	if email == "" {
		return nil
	}
	return &email
}

// CancelBooking はユーザーとコンサートの組で有効な予約をキャンセルする
func (s *BookingService) CancelBooking(ctx context.Context, userID, concertID string) (*booking.Booking, error) {
	b, err := s.cancelBooking(ctx, userID, concertID)
	recordBooking("cancel", err)
	return b, err
}

func (s *BookingService) cancelBooking(ctx context.Context, userID, concertID string) (*booking.Booking, error) {
	if userID == "" {
		return nil, booking.ErrUserIDRequired
	}
	if concertID == "" {
		return nil, booking.ErrConcertIDRequired
	}

	b, err := s.repo.FindActive(ctx, userID, concertID)
	if err != nil {
		if errors.Is(err, booking.ErrBookingNotFound) {
			return nil, booking.ErrNoActiveBooking
		}
		return nil, fmt.Errorf("予約の取得に失敗: %w", err)
	}

	if err := b.Cancel(); err != nil {
		return nil, err
	}
	// ACTIVE の行だけを更新するので、同時キャンセルの片方はここで失敗し在庫を二重に戻さない
	if err := s.repo.UpdateStatus(ctx, b, booking.StatusActive); err != nil {
		if errors.Is(err, booking.ErrNoActiveBooking) {
			return nil, err
		}
		return nil, fmt.Errorf("予約のキャンセルに失敗: %w", err)
	}

	// キャンセルは確定済みなので、リクエストが中断されても在庫は戻す
	if _, err := s.release(ctx, b); err != nil {
		kind := "release_failed"
		if errors.Is(err, inventory.ErrOverRelease) {
			kind = "over_release"
		}
		recordAnomaly(kind)
		logger.Error("キャンセル時の在庫返却に失敗しました",
			zap.String("booking_id", b.ID),
			zap.String("concert_id", b.ConcertID),
			zap.String("seat_type_id", b.SeatTypeID),
			zap.Error(err),
		)
	}

	logger.Info("予約をキャンセルしました", zap.String("booking_id", b.ID), zap.String("user_id", userID))
	s.publisher.Publish(ctx, booking.EventCancelled, booking.EventDataFrom(b, nil))
	return b, nil
}

// GetBooking は本人の予約を取得する
func (s *BookingService) GetBooking(ctx context.Context, userID, id string) (*booking.Booking, error) {
	b, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if b.UserID != userID {
		return nil, booking.ErrBookingNotFound
	}
	return b, nil
}

func (s *BookingService) ListUserBookings(ctx context.Context, userID string, limit, offset int) ([]*booking.Booking, error) {
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}
	return s.repo.ListByUserID(ctx, userID, limit, offset)
}

// CountBookings はコンサート（と座席種別・状態）ごとの予約数を返す
func (s *BookingService) CountBookings(ctx context.Context, concertID, seatTypeID string, status booking.Status) (int, error) {
	if concertID == "" {
		return 0, booking.ErrConcertIDRequired
	}
	if status != "" && !status.IsValid() {
		return 0, booking.ErrInvalidStatus
	}
	return s.repo.Count(ctx, concertID, seatTypeID, status)
}

func recordBooking(operation string, err error) {
	m := metrics.Get()
	if m == nil {
		return
	}
	m.BookingsTotal.WithLabelValues(operation, bookingResult(err)).Inc()
}

func bookingResult(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, booking.ErrDuplicateBooking):
		return "duplicate"
	case errors.Is(err, booking.ErrSoldOut):
		return "sold_out"
	case errors.Is(err, booking.ErrNoActiveBooking):
		return "no_active_booking"
	}
	switch failure.KindOf(err) {
	case failure.KindUser:
		return "rejected"
	case failure.KindDependency:
		return "dependency_error"
	case failure.KindAnomaly:
		return "anomaly"
	}
	return "error"
}

func recordAnomaly(kind string) {
	if m := metrics.Get(); m != nil {
		m.InventoryAnomaliesTotal.WithLabelValues(kind).Inc()
	}
}
