package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/go-redis/redis/v8"
	"github.com/phonginreallife/fieldwatch/db"
)

// RedisInbound feeds chat messages published on a Redis channel to the monitor
type RedisInbound struct {
	Redis   *redis.Client
	Channel string
}

func NewRedisInbound(redisURL, channel string) (*RedisInbound, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	return &RedisInbound{
		Redis:   redis.NewClient(opts),
		Channel: channel,
	}, nil
}

// DecodeInboundMessage parses a published JSON chat message
func DecodeInboundMessage(payload string) (db.InboundMessage, error) {
	var msg db.InboundMessage
	if err := json.Unmarshal([]byte(payload), &msg); err != nil {
		return msg, fmt.Errorf("invalid inbound message: %w", err)
	}
	msg.Sender = strings.TrimSpace(msg.Sender)
	if msg.Sender == "" {
		return msg, errors.New("invalid inbound message: sender is required")
	}
	if strings.TrimSpace(msg.Text) == "" {
		return msg, errors.New("invalid inbound message: text is required")
	}
	return msg, nil
}

// Run subscribes until ctx is done, handing every valid message to handle.
// Bad payloads and handler failures are logged and skipped.
func (r *RedisInbound) Run(ctx context.Context, handle func(ctx context.Context, msg db.InboundMessage) error) error {
	sub := r.Redis.Subscribe(ctx, r.Channel)
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", r.Channel, err)
	}
	log.Printf("📥 Listening for check-in messages on Redis channel %s", r.Channel)

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case m, ok := <-ch:
			if !ok {
				return nil
			}
			msg, err := DecodeInboundMessage(m.Payload)
			if err != nil {
				log.Printf("Redis inbound: %v", err)
				continue
			}
			if err := handle(ctx, msg); err != nil {
				log.Printf("Redis inbound: failed to handle message from %s: %v", msg.Sender, err)
			}
		}
	}
}

func (r *RedisInbound) Close() error {
	return r.Redis.Close()
}
