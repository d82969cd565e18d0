package worker

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/sanosuguru/go-concert-booking/internal/domain/booking"
	redisinfra "github.com/sanosuguru/go-concert-booking/internal/infrastructure/redis"
)

type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) BookingConfirmed(ctx context.Context, recipient string, data booking.EventData) error {
	args := m.Called(ctx, recipient, data)
	return args.Error(0)
}

func (m *MockNotifier) BookingCancelled(ctx context.Context, recipient string, data booking.EventData) error {
	args := m.Called(ctx, recipient, data)
	return args.Error(0)
}

func encodeEnvelope(t *testing.T, env booking.Envelope) []byte {
	t.Helper()
	raw, err := json.Marshal(env)
	require.NoError(t, err)
	return raw
}

func TestBookingEventConsumer_Handle(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	email := "user@example.com"
	data := booking.EventData{BookingID: "b1", UserID: "u1", ConcertID: "c1", SeatTypeID: "vip"}

	t.Run("予約作成はイベントのメールアドレスに通知", func(t *testing.T) {
		n := new(MockNotifier)
		withEmail := data
		withEmail.Email = &email
		n.On("BookingConfirmed", mock.Anything, email, withEmail).Return(nil)

		c := NewBookingEventConsumer(nil, n, "fallback@example.com")
		err := c.Handle(ctx, encodeEnvelope(t, booking.NewEnvelope(booking.EventCreated, withEmail, now)))
		require.NoError(t, err)
		n.AssertExpectations(t)
	})

	t.Run("メールアドレスがなければ代替アドレス", func(t *testing.T) {
		n := new(MockNotifier)
		n.On("BookingConfirmed", mock.Anything, "fallback@example.com", data).Return(nil)

		c := NewBookingEventConsumer(nil, n, "fallback@example.com")
		err := c.Handle(ctx, encodeEnvelope(t, booking.NewEnvelope(booking.EventCreated, data, now)))
		require.NoError(t, err)
		n.AssertExpectations(t)
	})

	t.Run("キャンセル", func(t *testing.T) {
		n := new(MockNotifier)
		n.On("BookingCancelled", mock.Anything, "fallback@example.com", data).Return(nil)

		c := NewBookingEventConsumer(nil, n, "fallback@example.com")
		err := c.Handle(ctx, encodeEnvelope(t, booking.NewEnvelope(booking.EventCancelled, data, now)))
		require.NoError(t, err)
		n.AssertExpectations(t)
	})

	invalid := []struct {
		name    string
		payload string
	}{
		{name: "JSONでない", payload: "not-json"},
		{name: "未知の種別", payload: `{"type":"booking.moved","data":{"bookingId":"b1","userId":"u1","concertId":"c1","seatTypeId":"vip"},"timestamp":"2026-06-01T12:00:00.000Z"}`},
		{name: "予約IDなし", payload: `{"type":"booking.created","data":{"userId":"u1","concertId":"c1","seatTypeId":"vip"},"timestamp":"2026-06-01T12:00:00.000Z"}`},
		{name: "時刻なし", payload: `{"type":"booking.created","data":{"bookingId":"b1","userId":"u1","concertId":"c1","seatTypeId":"vip"}}`},
	}
	for _, tt := range invalid {
		t.Run(tt.name, func(t *testing.T) {
			n := new(MockNotifier)
			c := NewBookingEventConsumer(nil, n, "fallback@example.com")

			err := c.Handle(ctx, []byte(tt.payload))
			assert.Error(t, err)
			n.AssertNotCalled(t, "BookingConfirmed", mock.Anything, mock.Anything, mock.Anything)
		})
	}
}

func TestBookingEventConsumer_Run(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	core, logs := observer.New(zap.InfoLevel)
	consumer := NewBookingEventConsumer(
		redisinfra.NewEventSubscriber(client, "booking-events"),
		NewLogNotifier(zap.New(core)),
		"fallback@example.com",
	)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- consumer.Run(ctx) }()

	pub := redisinfra.NewEventPublisher(client, "booking-events")
	env := booking.NewEnvelope(booking.EventCreated, booking.EventData{
		BookingID: "b1", UserID: "u1", ConcertID: "c1", SeatTypeID: "vip",
	}, time.Now())

	require.Eventually(t, func() bool {
		_ = pub.Send(ctx, env)
		return logs.FilterMessage("予約確認を通知しました").Len() > 0
	}, 2*time.Second, 20*time.Millisecond)

	entry := logs.FilterMessage("予約確認を通知しました").All()[0]
	assert.Equal(t, "fallback@example.com", entry.ContextMap()["recipient"])
	assert.Equal(t, "b1", entry.ContextMap()["booking_id"])

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("consumer did not stop")
	}
}
