package events

import (
	"context"
	"sync"
	"time"
)

// MemoryHub is an in-process broker shared by several MemoryBus instances,
// standing in for Redis in tests and single-instance development.
type MemoryHub struct {
	mu   sync.RWMutex
	subs map[string]map[*memorySubscription]struct{}
}

func NewMemoryHub() *MemoryHub {
	return &MemoryHub{subs: make(map[string]map[*memorySubscription]struct{})}
}

// Bus returns a bus bound to instanceID on this hub.
func (h *MemoryHub) Bus(instanceID string) *MemoryBus {
	return &MemoryBus{hub: h, instanceID: instanceID}
}

// MemoryBus delivers synchronously and applies the same self-suppression and
// decode rules as RedisBus.
type MemoryBus struct {
	hub        *MemoryHub
	instanceID string

	mu        sync.Mutex
	published []Event
}

func (b *MemoryBus) InstanceID() string { return b.instanceID }

func (b *MemoryBus) Publish(ctx context.Context, channel string, e Event) error {
	payload, err := encode(stamp(e, b.instanceID, time.Now()))
	if err != nil {
		return err
	}
	decoded, err := Decode(payload)
	if err != nil {
		return err
	}

	b.mu.Lock()
	b.published = append(b.published, decoded)
	b.mu.Unlock()

	b.hub.mu.RLock()
	targets := make([]*memorySubscription, 0, len(b.hub.subs[channel]))
	for s := range b.hub.subs[channel] {
		targets = append(targets, s)
	}
	b.hub.mu.RUnlock()

	for _, s := range targets {
		if s.instanceID == decoded.OriginInstanceID {
			continue
		}
		s.handler(ctx, decoded)
	}
	return nil
}

func (b *MemoryBus) Subscribe(_ context.Context, channel string, h Handler) (Subscription, error) {
	s := &memorySubscription{hub: b.hub, channel: channel, instanceID: b.instanceID, handler: h}
	b.hub.mu.Lock()
	if b.hub.subs[channel] == nil {
		b.hub.subs[channel] = make(map[*memorySubscription]struct{})
	}
	b.hub.subs[channel][s] = struct{}{}
	b.hub.mu.Unlock()
	return s, nil
}

// Published returns the events this bus has sent.
func (b *MemoryBus) Published() []Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]Event(nil), b.published...)
}

type memorySubscription struct {
	hub        *MemoryHub
	channel    string
	instanceID string
	handler    Handler
}

func (s *memorySubscription) Close() error {
	s.hub.mu.Lock()
	delete(s.hub.subs[s.channel], s)
	s.hub.mu.Unlock()
	return nil
}
