package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/sanosuguru/go-concert-booking/internal/domain/booking"
)

// EventPublisher は予約イベントを Redis Pub/Sub チャネルへ配信する
type EventPublisher struct {
	client  *redis.Client
	channel string
}

// NewEventPublisher は新しいEventPublisherを作成する
func NewEventPublisher(client *redis.Client, channel string) *EventPublisher {
	return &EventPublisher{client: client, channel: channel}
}

// Name は配信先の名前を返す
func (p *EventPublisher) Name() string { return "redis" }

// Send はイベントをJSONで PUBLISH する
func (p *EventPublisher) Send(ctx context.Context, env booking.Envelope) error {
	payload, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("イベントのエンコードに失敗: %w", err)
	}
	if err := p.client.Publish(ctx, p.channel, payload).Err(); err != nil {
		return fmt.Errorf("イベント配信に失敗: %w", err)
	}
	return nil
}

// EventSubscriber は予約イベントチャネルを購読する
type EventSubscriber struct {
	client  *redis.Client
	channel string
}

// NewEventSubscriber は新しいEventSubscriberを作成する
func NewEventSubscriber(client *redis.Client, channel string) *EventSubscriber {
	return &EventSubscriber{client: client, channel: channel}
}

// Subscribe はメッセージごとに handle を呼び出す
// ctx がキャンセルされるまでブロックする
func (s *EventSubscriber) Subscribe(ctx context.Context, handle func(ctx context.Context, payload []byte)) error {
	sub := s.client.Subscribe(ctx, s.channel)
	defer sub.Close()

	// 購読確立を待つ
	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("イベント購読に失敗: %w", err)
	}

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			handle(ctx, []byte(msg.Payload))
		}
	}
}
