package mq

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	defaultMemoryBuffer = 256

	// memoryRedeliveryDelay spaces out retries of a failing message.
	memoryRedeliveryDelay = 200 * time.Millisecond
)

var ErrBrokerClosed = errors.New("mq: broker closed")

// MemoryBroker is an in-process Backend for single-binary deployments and
// tests. Messages are not persisted. A message whose handler fails is
// requeued once after memoryRedeliveryDelay; a second failure drops it.
type MemoryBroker struct {
	mu     sync.Mutex
	queues map[string]chan Message
	buffer int
	done   chan struct{}
	closed bool
}

func NewMemoryBroker(buffer int) *MemoryBroker {
	if buffer <= 0 {
		buffer = defaultMemoryBuffer
	}
	return &MemoryBroker{
		queues: make(map[string]chan Message),
		buffer: buffer,
		done:   make(chan struct{}),
	}
}

func (b *MemoryBroker) queue(channel string) (chan Message, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, ErrBrokerClosed
	}
	q, ok := b.queues[channel]
	if !ok {
		q = make(chan Message, b.buffer)
		b.queues[channel] = q
	}
	return q, nil
}

func (b *MemoryBroker) Publish(ctx context.Context, channel string, data []byte, attrs map[string]string) (string, error) {
	if strings.TrimSpace(channel) == "" {
		return "", errors.New("memory channel is required")
	}
	q, err := b.queue(channel)
	if err != nil {
		return "", err
	}

	msg := Message{ID: uuid.NewString(), Data: append([]byte(nil), data...), Attributes: attrs}
	select {
	case q <- msg:
		return msg.ID, nil
	case <-ctx.Done():
		return "", ctx.Err()
	case <-b.done:
		return "", ErrBrokerClosed
	}
}

func (b *MemoryBroker) Subscribe(ctx context.Context, channel string, handler Handler) error {
	if strings.TrimSpace(channel) == "" {
		return errors.New("memory channel is required")
	}
	q, err := b.queue(channel)
	if err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-b.done:
			return ErrBrokerClosed
		case msg := <-q:
			if err := handler(ctx, msg); err != nil {
				if msg.Redelivered {
					slog.WarnContext(ctx, "dropping message after redelivery failed",
						"channel", channel, "message_id", msg.ID, "error", err)
					continue
				}
				msg.Redelivered = true
				time.AfterFunc(memoryRedeliveryDelay, func() {
					select {
					case q <- msg:
					case <-b.done:
					default:
					}
				})
			}
		}
	}
}

func (b *MemoryBroker) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.closed {
		b.closed = true
		close(b.done)
	}
	return nil
}
