package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/MeBadDev/GDWeb/internal/app"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const relayChannelPrefix = keyPrefix + "relay:"

// Bus publishes relayed frames on gdweb:relay:<role>:<room> so every
// instance serving that room can deliver them locally.
type Bus struct {
	client *redis.Client
}

func NewBus(client *redis.Client) *Bus {
	return &Bus{client: client}
}

func (b *Bus) Publish(ctx context.Context, env app.Envelope) error {
	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("failed to marshal envelope: %w", err)
	}
	if err := b.client.Publish(ctx, relayChannel(env), data).Err(); err != nil {
		return fmt.Errorf("redis publish: %w", err)
	}
	return nil
}

func relayChannel(env app.Envelope) string {
	return relayChannelPrefix + string(env.Role) + ":" + string(env.Room)
}

// Subscription is an established pattern subscription to every room channel.
type Subscription struct {
	ps *redis.PubSub
}

// Subscribe returns once redis has confirmed the subscription, so frames
// published afterwards are not missed.
func (b *Bus) Subscribe(ctx context.Context) (*Subscription, error) {
	ps := b.client.PSubscribe(ctx, relayChannelPrefix+"*")
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, fmt.Errorf("redis psubscribe: %w", err)
	}
	return &Subscription{ps: ps}, nil
}

// Run hands every envelope to deliver until ctx is done.
func (s *Subscription) Run(ctx context.Context, deliver func(app.Envelope)) {
	defer s.ps.Close()

	ch := s.ps.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			var env app.Envelope
			if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
				log.Warn().Err(err).Str("module", "adapters.redis").Str("channel", msg.Channel).Msg("bad envelope")
				continue
			}
			deliver(env)
		}
	}
}
