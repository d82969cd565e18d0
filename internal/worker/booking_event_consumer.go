package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/sanosuguru/go-concert-booking/internal/domain/booking"
	"github.com/sanosuguru/go-concert-booking/internal/pkg/logger"
)

var ErrUnknownEventType = errors.New("未対応のイベント種別です")

// Subscriber はイベントのペイロードを受信する
type Subscriber interface {
	Subscribe(ctx context.Context, handle func(ctx context.Context, payload []byte)) error
}

// Notifier は予約の確認通知を送る
type Notifier interface {
	BookingConfirmed(ctx context.Context, recipient string, data booking.EventData) error
	BookingCancelled(ctx context.Context, recipient string, data booking.EventData) error
}

// BookingEventConsumer は予約イベントを検証して通知に振り分ける
type BookingEventConsumer struct {
	subscriber    Subscriber
	notifier      Notifier
	validate      *validator.Validate
	fallbackEmail string
}

func NewBookingEventConsumer(subscriber Subscriber, notifier Notifier, fallbackEmail string) *BookingEventConsumer {
	return &BookingEventConsumer{
		subscriber:    subscriber,
		notifier:      notifier,
		validate:      validator.New(),
		fallbackEmail: fallbackEmail,
	}
}

// Run は ctx がキャンセルされるまでイベントを処理する
// 個々のイベントの失敗はログに残して処理を続ける
func (c *BookingEventConsumer) Run(ctx context.Context) error {
	logger.Info("予約イベントの購読を開始します")
	return c.subscriber.Subscribe(ctx, func(ctx context.Context, payload []byte) {
		if err := c.Handle(ctx, payload); err != nil {
			logger.Warn("予約イベントの処理に失敗しました", zap.ByteString("payload", payload), zap.Error(err))
		}
	})
}

// Handle は1件のイベントを処理する
func (c *BookingEventConsumer) Handle(ctx context.Context, payload []byte) error {
	var env booking.Envelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return fmt.Errorf("イベントのデコードに失敗: %w", err)
	}
	if err := c.validate.Struct(env); err != nil {
		return fmt.Errorf("不正なイベント: %w", err)
	}

	recipient := c.recipient(env.Data)
	switch env.Type {
	case booking.EventCreated:
		return c.notifier.BookingConfirmed(ctx, recipient, env.Data)
	case booking.EventCancelled:
		return c.notifier.BookingCancelled(ctx, recipient, env.Data)
	default:
		return fmt.Errorf("%w: %s", ErrUnknownEventType, env.Type)
	}
}

func (c *BookingEventConsumer) recipient(data booking.EventData) string {
	if data.Email != nil && *data.Email != "" {
		return *data.Email
	}
	return c.fallbackEmail
}

// LogNotifier は通知内容をログに出力する
type LogNotifier struct {
	log *zap.Logger
}

func NewLogNotifier(log *zap.Logger) *LogNotifier {
	return &LogNotifier{log: log}
}

func (n *LogNotifier) BookingConfirmed(ctx context.Context, recipient string, data booking.EventData) error {
	n.log.Info("予約確認を通知しました", notificationFields(recipient, data)...)
	return nil
}

func (n *LogNotifier) BookingCancelled(ctx context.Context, recipient string, data booking.EventData) error {
	n.log.Info("予約キャンセルを通知しました", notificationFields(recipient, data)...)
	return nil
}

func notificationFields(recipient string, data booking.EventData) []zap.Field {
	return []zap.Field{
		zap.String("recipient", recipient),
		zap.String("booking_id", data.BookingID),
		zap.String("user_id", data.UserID),
		zap.String("concert_id", data.ConcertID),
		zap.String("seat_type_id", data.SeatTypeID),
	}
}
