package app

import (
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// InternalBus is a synchronous in-process pub/sub for cross-component domain
// events. Publish fires every handler in registration order; a panicking
// handler is logged and must not stop delivery to the others.
type InternalBus struct {
	log  zerolog.Logger
	mu   sync.RWMutex
	next int
	subs map[Topic][]internalSub
}

type internalSub struct {
	id int
	fn func(any)
}

// NewInternalBus constructs an empty bus.
func NewInternalBus(log zerolog.Logger) *InternalBus {
	return &InternalBus{
		log:  log.With().Str("component", "internal_bus").Logger(),
		subs: make(map[Topic][]internalSub),
	}
}

// Subscribe registers a handler for a topic and returns an unsubscribe
// handle. Duplicate subscriptions fire independently.
func (b *InternalBus) Subscribe(topic Topic, fn func(any)) func() {
	b.mu.Lock()
	b.next++
	id := b.next
	b.subs[topic] = append(b.subs[topic], internalSub{id: id, fn: fn})
	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		subs := b.subs[topic]
		for i, s := range subs {
			if s.id == id {
				b.subs[topic] = append(subs[:i:i], subs[i+1:]...)
				return
			}
		}
	}
}

// Publish delivers the payload to every subscriber synchronously. Handlers
// must not block.
func (b *InternalBus) Publish(topic Topic, payload any) {
	b.mu.RLock()
	subs := append([]internalSub(nil), b.subs[topic]...)
	b.mu.RUnlock()

	for _, s := range subs {
		b.invoke(topic, s, payload)
	}
}

func (b *InternalBus) invoke(topic Topic, s internalSub, payload any) {
	defer func() {
		if r := recover(); r != nil {
			b.log.Error().Str("topic", string(topic)).Interface("panic", r).
				Msg("event handler panicked")
		}
	}()
	s.fn(payload)
}

// PlayerBus delivers gateway events to per-player outbound streams.
// Delivery is best-effort: with no subscriber the event is dropped. Event
// ids are monotonic per player stream.
type PlayerBus struct {
	log  zerolog.Logger
	mu   sync.Mutex
	next int
	subs map[string]map[int]func(GatewayEvent)
	seq  map[string]uint64
}

// NewPlayerBus constructs an empty player bus.
func NewPlayerBus(log zerolog.Logger) *PlayerBus {
	return &PlayerBus{
		log:  log.With().Str("component", "player_bus").Logger(),
		subs: make(map[string]map[int]func(GatewayEvent)),
		seq:  make(map[string]uint64),
	}
}

// Subscribe attaches a delivery function to a player's stream. The returned
// handle detaches it and drops the player's subscriber map once empty; the
// player's event_id counter is kept.
func (b *PlayerBus) Subscribe(playerID string, fn func(GatewayEvent)) func() {
	b.mu.Lock()
	b.next++
	id := b.next
	if b.subs[playerID] == nil {
		b.subs[playerID] = make(map[int]func(GatewayEvent))
	}
	b.subs[playerID][id] = fn
	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if m := b.subs[playerID]; m != nil {
			delete(m, id)
			if len(m) == 0 {
				delete(b.subs, playerID)
			}
		}
	}
}

// Publish stamps the event and hands it to the player's subscribers. The
// event id and timestamp are assigned under the bus lock so the per-player
// stream stays FIFO with monotonic ids.
func (b *PlayerBus) Publish(playerID string, ev GatewayEvent) {
	b.mu.Lock()
	b.seq[playerID]++
	ev.EventID = b.seq[playerID]
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now().UTC()
	}
	fns := make([]func(GatewayEvent), 0, len(b.subs[playerID]))
	for _, fn := range b.subs[playerID] {
		fns = append(fns, fn)
	}
	b.mu.Unlock()

	for _, fn := range fns {
		b.deliver(playerID, fn, ev)
	}
}

// HasSubscriber reports whether a live subscription exists for the player.
func (b *PlayerBus) HasSubscriber(playerID string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs[playerID]) > 0
}

func (b *PlayerBus) deliver(playerID string, fn func(GatewayEvent), ev GatewayEvent) {
	defer func() {
		if r := recover(); r != nil {
			b.log.Error().Str("player_id", playerID).Str("type", string(ev.Type)).
				Interface("panic", r).Msg("outbound delivery panicked")
		}
	}()
	fn(ev)
}
