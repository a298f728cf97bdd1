package changefeed

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/yigit/placementdesk/internal/config"
)

// RedisFeed shares change events between instances. Events are delivered to
// the local hub immediately and published on a Redis channel; events arriving
// from other instances are relayed into the local hub.
type RedisFeed struct {
	*Hub

	client  *redis.Client
	channel string
	origin  string
	log     zerolog.Logger
}

// NewRedisFeed connects to Redis and wraps hub.
func NewRedisFeed(ctx context.Context, cfg *config.Config, hub *Hub, log zerolog.Logger) (*RedisFeed, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to ping Redis: %w", err)
	}

	return newRedisFeed(rdb, cfg.Redis.Channel, hub, log), nil
}

func newRedisFeed(client *redis.Client, channel string, hub *Hub, log zerolog.Logger) *RedisFeed {
	return &RedisFeed{
		Hub:     hub,
		client:  client,
		channel: channel,
		origin:  uuid.New().String(),
		log:     log.With().Str("component", "changefeed_redis").Str("channel", channel).Logger(),
	}
}

// Publish delivers locally and then fans out through Redis.
func (f *RedisFeed) Publish(ctx context.Context, event Event) {
	if event.At.IsZero() {
		event.At = time.Now().UTC()
	}
	f.Hub.Publish(ctx, event)

	event.Origin = f.origin
	payload, err := json.Marshal(event)
	if err != nil {
		f.log.Error().Err(err).Msg("Failed to marshal change event")
		return
	}
	if err := f.client.Publish(ctx, f.channel, payload).Err(); err != nil {
		f.log.Warn().Err(err).Str("table", string(event.Table)).Msg("Failed to publish change event to Redis")
	}
}

// Relay forwards events published by other instances into the local hub until
// ctx is cancelled.
func (f *RedisFeed) Relay(ctx context.Context) error {
	pubsub := f.client.Subscribe(ctx, f.channel)
	defer pubsub.Close()

	if _, err := pubsub.Receive(ctx); err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", f.channel, err)
	}
	f.log.Info().Msg("Relaying change events from Redis")

	messages := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-messages:
			if !ok {
				return nil
			}
			f.relayMessage(ctx, msg.Payload)
		}
	}
}

func (f *RedisFeed) relayMessage(ctx context.Context, payload string) {
	var event Event
	if err := json.Unmarshal([]byte(payload), &event); err != nil {
		f.log.Error().Err(err).Msg("Failed to unmarshal relayed change event")
		return
	}
	if event.Origin == f.origin || !event.Table.Valid() {
		return
	}
	event.Origin = ""
	f.Hub.Publish(ctx, event)
}

// Close closes the Redis client.
func (f *RedisFeed) Close() error {
	return f.client.Close()
}
