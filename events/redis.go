package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

type RedisBusConfig struct {
	Addr     string
	Password string
	Stream   string
	Group    string
	Consumer string
	Block    time.Duration
	MaxLen   int64
	Count    int64
	// Timeout bounds dialing and each read or write. Blocking stream reads add Block on top.
	Timeout time.Duration
}

// RedisBus publishes events to a Redis stream and consumes them through a consumer group.
// Messages are acknowledged after the handler returns, whether or not it failed.
type RedisBus struct {
	client   *redis.Client
	stream   string
	group    string
	consumer string
	block    time.Duration
	maxLen   int64
	count    int64
}

func NewRedisBus(cfg RedisBusConfig) (*RedisBus, error) {
	addr := strings.TrimSpace(cfg.Addr)
	if addr == "" {
		return nil, errors.New("redis addr required")
	}
	stream := strings.TrimSpace(cfg.Stream)
	if stream == "" {
		stream = "unilib:events"
	}
	group := strings.TrimSpace(cfg.Group)
	if group == "" {
		group = "notifications"
	}
	consumer := strings.TrimSpace(cfg.Consumer)
	if consumer == "" {
		consumer = uuid.NewString()
	}
	block := cfg.Block
	if block <= 0 {
		block = 5 * time.Second
	}
	maxLen := cfg.MaxLen
	if maxLen <= 0 {
		maxLen = 10000
	}
	count := cfg.Count
	if count <= 0 {
		count = 10
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &RedisBus{
		client: redis.NewClient(&redis.Options{
			Addr:         addr,
			Password:     cfg.Password,
			DialTimeout:  timeout,
			ReadTimeout:  timeout,
			WriteTimeout: timeout,
			MaxRetries:   1,
		}),
		stream:   stream,
		group:    group,
		consumer: consumer,
		block:    block,
		maxLen:   maxLen,
		count:    count,
	}, nil
}

func (b *RedisBus) Ping(ctx context.Context) error {
	return b.client.Ping(ctx).Err()
}

func (b *RedisBus) Close() error {
	return b.client.Close()
}

func (b *RedisBus) Publish(ctx context.Context, e Event) error {
	payload, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	return b.client.XAdd(ctx, &redis.XAddArgs{
		Stream: b.stream,
		MaxLen: b.maxLen,
		Approx: true,
		Values: map[string]any{
			"type":    string(e.Type),
			"payload": string(payload),
		},
	}).Err()
}

// ensureGroup starts the group at the beginning of the stream so events published
// before the first consumer are still delivered.
func (b *RedisBus) ensureGroup(ctx context.Context) error {
	err := b.client.XGroupCreateMkStream(ctx, b.stream, b.group, "0").Err()
	if err != nil && !strings.Contains(err.Error(), "BUSYGROUP") {
		return err
	}
	return nil
}

func (b *RedisBus) Run(ctx context.Context, h Handler) error {
	if err := b.ensureGroup(ctx); err != nil {
		return fmt.Errorf("create consumer group: %w", err)
	}
	for {
		if ctx.Err() != nil {
			return nil
		}
		streams, err := b.client.XReadGroup(ctx, &redis.XReadGroupArgs{
			Group:    b.group,
			Consumer: b.consumer,
			Streams:  []string{b.stream, ">"},
			Count:    b.count,
			Block:    b.block,
		}).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) || ctx.Err() != nil {
				continue
			}
			slog.Warn("read event stream", "stream", b.stream, "err", err)
			select {
			case <-ctx.Done():
			case <-time.After(time.Second):
			}
			continue
		}
		for _, stream := range streams {
			for _, msg := range stream.Messages {
				b.handle(ctx, msg, h)
			}
		}
	}
}

func (b *RedisBus) handle(ctx context.Context, msg redis.XMessage, h Handler) {
	defer func() {
		if err := b.client.XAck(ctx, b.stream, b.group, msg.ID).Err(); err != nil {
			slog.Warn("ack event", "msg", msg.ID, "err", err)
		}
	}()
	e, err := decodeMessage(msg)
	if err != nil {
		slog.Error("drop malformed event", "msg", msg.ID, "err", err)
		return
	}
	if err := h(ctx, e); err != nil {
		slog.Error("event handler failed", "event", e.Type, "id", e.ID, "err", err)
	}
}

func decodeMessage(msg redis.XMessage) (Event, error) {
	raw, _ := msg.Values["payload"].(string)
	if raw == "" {
		return Event{}, errors.New("missing payload")
	}
	var e Event
	if err := json.Unmarshal([]byte(raw), &e); err != nil {
		return Event{}, err
	}
	return e, nil
}
