package app

import (
	"errors"
	"sync"
	"time"

	"github.com/ychleo102615/hanahuda-server/internal/domain"
)

// EntryStatus is the lifecycle state of a matchmaking entry.
type EntryStatus string

const (
	EntrySearching       EntryStatus = "SEARCHING"
	EntryLowAvailability EntryStatus = "LOW_AVAILABILITY"
	EntryMatched         EntryStatus = "MATCHED"
	EntryCancelled       EntryStatus = "CANCELLED"
	EntryExpired         EntryStatus = "EXPIRED"
)

// matchable reports whether an entry may still be paired.
func (s EntryStatus) matchable() bool {
	return s == EntrySearching || s == EntryLowAvailability
}

// MatchmakingEntry is one player waiting in the pool.
type MatchmakingEntry struct {
	ID         string
	PlayerID   string
	PlayerName string
	RoomType   domain.RoomType
	EnteredAt  time.Time
	Status     EntryStatus
}

var (
	ErrAlreadyInQueue = errors.New("player already has a matchmaking entry")
	ErrAlreadyInGame  = errors.New("player already has an active game")
	ErrEntryNotFound  = errors.New("matchmaking entry not found")
	ErrNotInQueue     = errors.New("player has no matchmaking entry")
)

// MatchmakingPool holds waiting entries partitioned by room type, FIFO
// within a partition, with a secondary index by player id. All operations
// are atomic with respect to each other.
type MatchmakingPool struct {
	mu       sync.Mutex
	byRoom   map[domain.RoomType][]*MatchmakingEntry
	byID     map[string]*MatchmakingEntry
	byPlayer map[string]*MatchmakingEntry
}

// NewMatchmakingPool constructs an empty pool.
func NewMatchmakingPool() *MatchmakingPool {
	return &MatchmakingPool{
		byRoom:   make(map[domain.RoomType][]*MatchmakingEntry),
		byID:     make(map[string]*MatchmakingEntry),
		byPlayer: make(map[string]*MatchmakingEntry),
	}
}

// Add inserts an entry, rejecting a player who is already present in any
// partition.
func (p *MatchmakingPool) Add(e *MatchmakingEntry) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.byPlayer[e.PlayerID]; ok {
		return ErrAlreadyInQueue
	}
	p.byRoom[e.RoomType] = append(p.byRoom[e.RoomType], e)
	p.byID[e.ID] = e
	p.byPlayer[e.PlayerID] = e
	return nil
}

// Remove deletes an entry by id. Idempotent; returns the removed entry or
// nil when it was already gone.
func (p *MatchmakingPool) Remove(entryID string) *MatchmakingEntry {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.removeLocked(entryID)
}

func (p *MatchmakingPool) removeLocked(entryID string) *MatchmakingEntry {
	e, ok := p.byID[entryID]
	if !ok {
		return nil
	}
	delete(p.byID, entryID)
	delete(p.byPlayer, e.PlayerID)
	list := p.byRoom[e.RoomType]
	for i, it := range list {
		if it.ID == entryID {
			p.byRoom[e.RoomType] = append(list[:i:i], list[i+1:]...)
			break
		}
	}
	return e
}

// FindMatch scans the entry's room partition in FIFO order and returns the
// earliest other matchable entry, or nil.
func (p *MatchmakingPool) FindMatch(forEntry *MatchmakingEntry) *MatchmakingEntry {
	p.mu.Lock()
	defer p.mu.Unlock()
	var best *MatchmakingEntry
	for _, e := range p.byRoom[forEntry.RoomType] {
		if e.ID == forEntry.ID || e.PlayerID == forEntry.PlayerID || !e.Status.matchable() {
			continue
		}
		if best == nil || e.EnteredAt.Before(best.EnteredAt) {
			best = e
		}
	}
	return best
}

// TakePair atomically removes both entries of a successful match so a
// re-join races cleanly against the MATCH_FOUND publication.
func (p *MatchmakingPool) TakePair(entryID, partnerID string) (a, b *MatchmakingEntry) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.removeLocked(entryID), p.removeLocked(partnerID)
}

// UpdateStatus transitions an entry's status in place.
func (p *MatchmakingPool) UpdateStatus(entryID string, status EntryStatus) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	e, ok := p.byID[entryID]
	if !ok {
		return ErrEntryNotFound
	}
	e.Status = status
	return nil
}

// FindByPlayerID returns a copy of the player's entry, if any.
func (p *MatchmakingPool) FindByPlayerID(playerID string) (MatchmakingEntry, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	e, ok := p.byPlayer[playerID]
	if !ok {
		return MatchmakingEntry{}, false
	}
	return *e, true
}

// FindByID returns a copy of the entry, if present.
func (p *MatchmakingPool) FindByID(entryID string) (MatchmakingEntry, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	e, ok := p.byID[entryID]
	if !ok {
		return MatchmakingEntry{}, false
	}
	return *e, true
}

// HasPlayer reports whether the player has an entry in any partition.
func (p *MatchmakingPool) HasPlayer(playerID string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.byPlayer[playerID]
	return ok
}

// Size returns the number of waiting entries in a partition.
func (p *MatchmakingPool) Size(rt domain.RoomType) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.byRoom[rt])
}
