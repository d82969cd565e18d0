package application

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/sanosuguru/go-concert-booking/internal/domain/booking"
	"github.com/sanosuguru/go-concert-booking/internal/pkg/logger"
	"github.com/sanosuguru/go-concert-booking/internal/pkg/metrics"
)

// EventSink はイベントの配信先
type EventSink interface {
	Name() string
	Send(ctx context.Context, env booking.Envelope) error
}

// EventFanout はすべての配信先へイベントを送る
// 配信失敗はログに残すだけで呼び出し元には返さない
type EventFanout struct {
	sinks []EventSink
	now   func() time.Time
}

func NewEventFanout(sinks ...EventSink) *EventFanout {
	return &EventFanout{sinks: sinks, now: time.Now}
}

// Publish はサーバー時刻を付与して配信する
func (f *EventFanout) Publish(ctx context.Context, eventType booking.EventType, data booking.EventData) {
	env := booking.NewEnvelope(eventType, data, f.now())
	for _, sink := range f.sinks {
		status := "success"
		if err := sink.Send(ctx, env); err != nil {
			status = "failed"
			logger.Warn("イベント配信に失敗しました",
				zap.String("sink", sink.Name()),
				zap.String("type", string(eventType)),
				zap.String("booking_id", data.BookingID),
				zap.Error(err),
			)
		}
		if m := metrics.Get(); m != nil {
			m.EventsPublishedTotal.WithLabelValues(sink.Name(), status).Inc()
		}
	}
}

var _ booking.EventPublisher = (*EventFanout)(nil)
