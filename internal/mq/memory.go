package mq

import (
	"context"
	"errors"
	"log/slog"
	"maps"
	"slices"
	"strings"
	"sync"

	"github.com/google/uuid"
)

const memoryBuffer = 64

var errMemoryClosed = errors.New("memory backend closed")

// MemoryBackend delivers messages to in-process subscribers. Messages
// published before anyone subscribes to a channel are dropped. A handler
// error is logged and the message is not redelivered.
type MemoryBackend struct {
	logger *slog.Logger

	mu     sync.RWMutex
	subs   map[string][]*memorySub
	closed bool
}

type memorySub struct {
	ch   chan Message
	done chan struct{}
	once sync.Once
}

func (s *memorySub) stop() {
	s.once.Do(func() { close(s.done) })
}

// NewMemoryBackend constructs an empty in-process broker.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{
		logger: slog.Default(),
		subs:   make(map[string][]*memorySub),
	}
}

// Publish waits for buffer space at each subscriber. A subscriber that goes
// away while Publish waits is skipped.
func (b *MemoryBackend) Publish(ctx context.Context, channel string, data []byte, attrs map[string]string) (string, error) {
	if strings.TrimSpace(channel) == "" {
		return "", errors.New("memory channel is required")
	}

	b.mu.RLock()
	if b.closed {
		b.mu.RUnlock()
		return "", errMemoryClosed
	}
	subs := slices.Clone(b.subs[channel])
	b.mu.RUnlock()

	msg := Message{
		ID:         uuid.NewString(),
		Data:       append([]byte(nil), data...),
		Attributes: maps.Clone(attrs),
	}
	for _, sub := range subs {
		select {
		case sub.ch <- msg:
		case <-sub.done:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return msg.ID, nil
}

func (b *MemoryBackend) Subscribe(ctx context.Context, channel string, handler Handler) error {
	if strings.TrimSpace(channel) == "" {
		return errors.New("memory channel is required")
	}

	sub := &memorySub{
		ch:   make(chan Message, memoryBuffer),
		done: make(chan struct{}),
	}
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return errMemoryClosed
	}
	b.subs[channel] = append(b.subs[channel], sub)
	b.mu.Unlock()

	defer b.unsubscribe(channel, sub)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-sub.done:
			return errMemoryClosed
		case msg := <-sub.ch:
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := handler(ctx, msg); err != nil {
				b.logger.Warn("memory handler failed", "channel", channel, "message_id", msg.ID, "error", err)
			}
		}
	}
}

func (b *MemoryBackend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	b.closed = true
	for channel, subs := range b.subs {
		for _, sub := range subs {
			sub.stop()
		}
		delete(b.subs, channel)
	}
	return nil
}

// Subscribers returns how many subscribers are attached to channel.
func (b *MemoryBackend) Subscribers(channel string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	return len(b.subs[channel])
}

func (b *MemoryBackend) unsubscribe(channel string, sub *memorySub) {
	sub.stop()

	b.mu.Lock()
	defer b.mu.Unlock()

	b.subs[channel] = slices.DeleteFunc(b.subs[channel], func(s *memorySub) bool { return s == sub })
	if len(b.subs[channel]) == 0 {
		delete(b.subs, channel)
	}
}
