package app

import (
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ychleo102615/hanahuda-server/internal/config"
	"github.com/ychleo102615/hanahuda-server/internal/domain"
	"github.com/ychleo102615/hanahuda-server/internal/metrics"
)

// Enter-matchmaking result messages.
const (
	MatchedHumanMessage = "MATCHED_HUMAN"
	SearchingMessage    = "SEARCHING"
)

// Matchmaker owns the enter/cancel/bot-fallback use cases over the pool and
// registry. Pairings leave the pool before MATCH_FOUND is published so a
// re-join races cleanly.
type Matchmaker struct {
	log      zerolog.Logger
	cfg      *config.Config
	pool     *MatchmakingPool
	registry *Registry
	bus      *InternalBus
	players  *PlayerBus
	store    *GameStore
}

// NewMatchmaker wires the matchmaking use cases.
func NewMatchmaker(log zerolog.Logger, cfg *config.Config, pool *MatchmakingPool, registry *Registry, bus *InternalBus, players *PlayerBus, store *GameStore) *Matchmaker {
	return &Matchmaker{
		log:      log.With().Str("component", "matchmaker").Logger(),
		cfg:      cfg,
		pool:     pool,
		registry: registry,
		bus:      bus,
		players:  players,
		store:    store,
	}
}

// Enter places the player into the pool for the given room type, pairing
// immediately when a partner is waiting and arming the registry timers
// otherwise.
func (m *Matchmaker) Enter(playerID, playerName string, rt domain.RoomType) (string, error) {
	if m.pool.HasPlayer(playerID) {
		return "", ErrAlreadyInQueue
	}
	if _, ok := m.store.FindActiveByPlayer(playerID); ok {
		return "", ErrAlreadyInGame
	}

	entry := &MatchmakingEntry{
		ID:         uuid.NewString(),
		PlayerID:   playerID,
		PlayerName: playerName,
		RoomType:   rt,
		EnteredAt:  time.Now().UTC(),
		Status:     EntrySearching,
	}
	if err := m.pool.Add(entry); err != nil {
		return "", err
	}
	m.gauge(rt)

	if partner := m.pool.FindMatch(entry); partner != nil {
		m.pool.TakePair(partner.ID, entry.ID)
		m.registry.Clear(partner.ID)
		m.gauge(rt)
		partner.Status = EntryMatched
		entry.Status = EntryMatched

		m.log.Info().Str("room_type", string(rt)).
			Str("player1", partner.PlayerID).Str("player2", playerID).
			Msg("human match")
		metrics.MatchesTotal.WithLabelValues(string(MatchHuman)).Inc()
		m.bus.Publish(TopicMatchFound, MatchFoundEvent{
			Player1ID:   partner.PlayerID,
			Player1Name: partner.PlayerName,
			Player2ID:   entry.PlayerID,
			Player2Name: entry.PlayerName,
			RoomType:    rt,
			MatchType:   MatchHuman,
			MatchedAt:   time.Now().UTC(),
		})
		return MatchedHumanMessage, nil
	}

	m.registry.Register(entry.ID, playerID,
		m.cfg.LowAvailabilityAfter(), m.cfg.BotFallbackAfter(),
		m.onLowAvailability, m.onBotFallback)
	m.log.Debug().Str("room_type", string(rt)).Str("player_id", playerID).
		Str("entry_id", entry.ID).Msg("searching")
	return SearchingMessage, nil
}

// Cancel withdraws the player's entry, clearing its timers.
func (m *Matchmaker) Cancel(playerID, reason string) error {
	entry, ok := m.pool.FindByPlayerID(playerID)
	if !ok {
		return ErrNotInQueue
	}
	m.registry.Clear(entry.ID)
	if removed := m.pool.Remove(entry.ID); removed == nil {
		return ErrNotInQueue
	}
	m.gauge(entry.RoomType)
	m.players.Publish(playerID, GatewayEvent{
		Type:    EventMatchmakingCancelled,
		Payload: MatchmakingCancelledPayload{EntryID: entry.ID, Reason: reason},
	})
	return nil
}

// onLowAvailability transitions SEARCHING entries at the 10 s mark and
// notifies the waiting player.
func (m *Matchmaker) onLowAvailability(entryID string) {
	entry, ok := m.pool.FindByID(entryID)
	if !ok || entry.Status != EntrySearching {
		return
	}
	if err := m.pool.UpdateStatus(entryID, EntryLowAvailability); err != nil {
		return
	}
	m.players.Publish(entry.PlayerID, GatewayEvent{
		Type: EventMatchmakingStatus,
		Payload: MatchmakingStatusPayload{
			EntryID:  entryID,
			RoomType: entry.RoomType,
			Status:   EntryLowAvailability,
		},
	})
}

// onBotFallback substitutes an AI opponent after the bounded wait.
func (m *Matchmaker) onBotFallback(entryID string) {
	entry := m.pool.Remove(entryID)
	if entry == nil || !entry.Status.matchable() {
		return
	}
	m.registry.Clear(entryID)
	m.gauge(entry.RoomType)
	entry.Status = EntryMatched

	m.log.Info().Str("room_type", string(entry.RoomType)).
		Str("player_id", entry.PlayerID).Msg("bot fallback")
	metrics.MatchesTotal.WithLabelValues(string(MatchBot)).Inc()
	m.bus.Publish(TopicMatchFound, MatchFoundEvent{
		Player1ID:   entry.PlayerID,
		Player1Name: entry.PlayerName,
		Player2ID:   BotPlayerID,
		Player2Name: BotPlayerName,
		RoomType:    entry.RoomType,
		MatchType:   MatchBot,
		MatchedAt:   time.Now().UTC(),
	})
}

func (m *Matchmaker) gauge(rt domain.RoomType) {
	metrics.MatchmakingPoolSize.WithLabelValues(string(rt)).Set(float64(m.pool.Size(rt)))
}
