package realtime

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// RedisBus is a Bus over Redis pub/sub, one channel per session.
type RedisBus struct {
	client *redis.Client
	prefix string
}

// NewRedisBus returns a bus publishing on "<prefix><session id>" channels.
func NewRedisBus(client *redis.Client, prefix string) *RedisBus {
	if prefix == "" {
		prefix = "proctor:session:"
	}
	return &RedisBus{client: client, prefix: prefix}
}

func (b *RedisBus) channel(sessionID uuid.UUID) string {
	return b.prefix + sessionID.String()
}

// Publish sends body to the session channel.
func (b *RedisBus) Publish(ctx context.Context, sessionID uuid.UUID, body []byte) error {
	return b.client.Publish(ctx, b.channel(sessionID), body).Err()
}

// Subscribe blocks until Redis confirms the subscription, then delivers messages from a
// goroutine until cancel is called.
func (b *RedisBus) Subscribe(sessionID uuid.UUID, deliver func(body []byte)) (func(), error) {
	ctx := context.Background()
	sub := b.client.Subscribe(ctx, b.channel(sessionID))
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, fmt.Errorf("subscribe %s: %w", b.channel(sessionID), err)
	}
	msgs := sub.Channel()
	go func() {
		for m := range msgs {
			deliver([]byte(m.Payload))
		}
	}()
	var once sync.Once
	return func() { once.Do(func() { _ = sub.Close() }) }, nil
}
