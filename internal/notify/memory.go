package notify

import (
	"context"
	"sync"

	"github.com/Webizinnovation/ServiceAppBack/internal/models"
)

// MemoryBus is an in-process Bus. It backs single-instance deployments
// that run without Redis and every test that needs a notification feed.
type MemoryBus struct {
	mu   sync.Mutex
	subs map[string]map[int64]func(Event)
	next int64
}

func NewMemoryBus() *MemoryBus {
	return &MemoryBus{subs: make(map[string]map[int64]func(Event))}
}

func (b *MemoryBus) PublishRoomChange(_ context.Context, ev Event) error {
	b.dispatch(ev, roomChannel(models.RoleUser, ev.UserID), roomChannel(models.RoleProvider, ev.ProviderID))
	return nil
}

func (b *MemoryBus) PublishMessageChange(_ context.Context, ev Event) error {
	b.dispatch(ev, messageChannel(ev.RoomID))
	return nil
}

func (b *MemoryBus) SubscribeRooms(_ context.Context, viewerID int64, role models.Role, fn func(Event)) (Subscription, error) {
	return b.add(fn, roomChannel(role, viewerID)), nil
}

func (b *MemoryBus) SubscribeMessages(_ context.Context, roomIDs []int64, fn func(Event)) (Subscription, error) {
	if len(roomIDs) == 0 {
		return noopSubscription{}, nil
	}

	channels := make([]string, 0, len(roomIDs))
	for _, id := range roomIDs {
		channels = append(channels, messageChannel(id))
	}
	return b.add(fn, channels...), nil
}

func (b *MemoryBus) dispatch(ev Event, channels ...string) {
	b.mu.Lock()
	var handlers []func(Event)
	for _, channel := range channels {
		for _, fn := range b.subs[channel] {
			handlers = append(handlers, fn)
		}
	}
	b.mu.Unlock()

	for _, fn := range handlers {
		fn(ev)
	}
}

func (b *MemoryBus) add(fn func(Event), channels ...string) Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.next++
	id := b.next
	for _, channel := range channels {
		set, ok := b.subs[channel]
		if !ok {
			set = make(map[int64]func(Event))
			b.subs[channel] = set
		}
		set[id] = fn
	}

	return &memorySubscription{bus: b, id: id, channels: channels}
}

func (b *MemoryBus) remove(id int64, channels []string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, channel := range channels {
		set, ok := b.subs[channel]
		if !ok {
			continue
		}
		delete(set, id)
		if len(set) == 0 {
			delete(b.subs, channel)
		}
	}
}

type memorySubscription struct {
	bus      *MemoryBus
	id       int64
	channels []string
}

func (s *memorySubscription) Close() error {
	s.bus.remove(s.id, s.channels)
	return nil
}
