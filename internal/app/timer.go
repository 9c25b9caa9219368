package app

import (
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// TimerService keeps one logical timer slot per game id, used both for
// action timeouts and inter-round display pauses. Starting a timeout
// replaces any existing timer for the game; cancellation is idempotent.
type TimerService struct {
	log     zerolog.Logger
	mu      sync.Mutex
	timers  map[string]*time.Timer
	gen     map[string]uint64
	stopped bool
}

// NewTimerService constructs an empty timer service.
func NewTimerService(log zerolog.Logger) *TimerService {
	return &TimerService{
		log:    log.With().Str("component", "timer_service").Logger(),
		timers: make(map[string]*time.Timer),
		gen:    make(map[string]uint64),
	}
}

// StartTimeout arms the game's timer slot. When it fires, onFire runs on a
// background goroutine; its failures are logged and never propagate.
func (t *TimerService) StartTimeout(gameID string, d time.Duration, onFire func()) {
	t.mu.Lock()
	if t.stopped {
		t.mu.Unlock()
		return
	}
	if old, ok := t.timers[gameID]; ok {
		old.Stop()
	}
	t.gen[gameID]++
	gen := t.gen[gameID]
	t.timers[gameID] = time.AfterFunc(d, func() { t.fire(gameID, gen, onFire) })
	t.mu.Unlock()
}

func (t *TimerService) fire(gameID string, gen uint64, onFire func()) {
	t.mu.Lock()
	current, live := t.gen[gameID], t.timers[gameID] != nil
	if live && current == gen {
		delete(t.timers, gameID)
	}
	stopped := t.stopped
	t.mu.Unlock()
	if !live || current != gen || stopped {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			t.log.Error().Str("game_id", gameID).Interface("panic", r).
				Msg("timer callback panicked")
		}
	}()
	onFire()
}

// CancelTimeout stops the game's timer slot, best effort.
func (t *TimerService) CancelTimeout(gameID string) {
	t.mu.Lock()
	if timer, ok := t.timers[gameID]; ok {
		timer.Stop()
		delete(t.timers, gameID)
	}
	t.gen[gameID]++
	t.mu.Unlock()
}

// Stop cancels every timer and refuses further arms.
func (t *TimerService) Stop() {
	t.mu.Lock()
	t.stopped = true
	for id, timer := range t.timers {
		timer.Stop()
		delete(t.timers, id)
	}
	t.mu.Unlock()
}
