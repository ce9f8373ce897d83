package events

import (
	"context"
	"errors"
	"log/slog"
)

var ErrBusFull = errors.New("event bus full")

// ChannelBus is the in-process bus. Publish never blocks; a saturated buffer drops the event.
type ChannelBus struct {
	ch chan Event
}

func NewChannelBus(size int) *ChannelBus {
	if size <= 0 {
		size = 256
	}
	return &ChannelBus{ch: make(chan Event, size)}
}

func (b *ChannelBus) Publish(ctx context.Context, e Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	select {
	case b.ch <- e:
		return nil
	default:
		return ErrBusFull
	}
}

func (b *ChannelBus) Run(ctx context.Context, h Handler) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case e := <-b.ch:
			if err := h(ctx, e); err != nil {
				slog.Error("event handler failed", "event", e.Type, "id", e.ID, "err", err)
			}
		}
	}
}

// Pending reports how many events wait in the buffer.
func (b *ChannelBus) Pending() int {
	return len(b.ch)
}
