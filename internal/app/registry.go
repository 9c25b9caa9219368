package app

import (
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Registry arms the per-entry countdown timers driving matchmaking state
// transitions: low-availability notice and bot fallback. Timer callbacks
// re-acquire the registry lock only to look up state and release it before
// invoking the callbacks.
type Registry struct {
	log      zerolog.Logger
	mu       sync.Mutex
	timers   map[string]*entryTimers
	byPlayer map[string]string // playerID -> entryID
	stopped  bool
}

type entryTimers struct {
	low *time.Timer
	bot *time.Timer
}

// NewRegistry constructs an empty registry and subscribes it to the internal
// bus so a match on either side clears the losing timers.
func NewRegistry(log zerolog.Logger, bus *InternalBus) *Registry {
	r := &Registry{
		log:      log.With().Str("component", "mm_registry").Logger(),
		timers:   make(map[string]*entryTimers),
		byPlayer: make(map[string]string),
	}
	bus.Subscribe(TopicMatchFound, func(payload any) {
		ev, ok := payload.(MatchFoundEvent)
		if !ok {
			return
		}
		r.ClearPlayer(ev.Player1ID)
		r.ClearPlayer(ev.Player2ID)
	})
	return r
}

// Register arms the two countdown timers for an entry. Re-registering the
// same entry id clears prior timers first.
func (r *Registry) Register(entryID, playerID string, lowAfter, botAfter time.Duration, onLow, onBot func(entryID string)) {
	r.mu.Lock()
	if r.stopped {
		r.mu.Unlock()
		return
	}
	r.clearLocked(entryID)
	t := &entryTimers{}
	t.low = time.AfterFunc(lowAfter, func() { r.fire(entryID, onLow) })
	t.bot = time.AfterFunc(botAfter, func() { r.fire(entryID, onBot) })
	r.timers[entryID] = t
	r.byPlayer[playerID] = entryID
	r.mu.Unlock()
}

func (r *Registry) fire(entryID string, fn func(string)) {
	r.mu.Lock()
	_, live := r.timers[entryID]
	stopped := r.stopped
	r.mu.Unlock()
	if !live || stopped {
		return
	}
	defer func() {
		if rec := recover(); rec != nil {
			r.log.Error().Str("entry_id", entryID).Interface("panic", rec).
				Msg("matchmaking timer callback panicked")
		}
	}()
	fn(entryID)
}

// Clear cancels both timers for an entry. Idempotent.
func (r *Registry) Clear(entryID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.clearLocked(entryID)
}

// ClearPlayer cancels the timers for whichever entry the player owns.
func (r *Registry) ClearPlayer(playerID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if entryID, ok := r.byPlayer[playerID]; ok {
		r.clearLocked(entryID)
	}
}

func (r *Registry) clearLocked(entryID string) {
	t, ok := r.timers[entryID]
	if !ok {
		return
	}
	t.low.Stop()
	t.bot.Stop()
	delete(r.timers, entryID)
	for pid, eid := range r.byPlayer {
		if eid == entryID {
			delete(r.byPlayer, pid)
		}
	}
}

// Stop cancels every timer and refuses further registrations.
func (r *Registry) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stopped = true
	for id, t := range r.timers {
		t.low.Stop()
		t.bot.Stop()
		delete(r.timers, id)
	}
	r.byPlayer = make(map[string]string)
}
