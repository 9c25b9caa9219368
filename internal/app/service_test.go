package app

import (
	"context"
	"encoding/json"
	"math/rand"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ychleo102615/hanahuda-server/internal/config"
	"github.com/ychleo102615/hanahuda-server/internal/domain"
)

type serviceFixture struct {
	t       *testing.T
	cfg     *config.Config
	store   *GameStore
	bus     *InternalBus
	players *PlayerBus
	timers  *TimerService
	svc     *Service

	events   map[string]*[]GatewayEvent
	finished chan GameFinishedEvent
}

func newServiceFixture(t *testing.T) *serviceFixture {
	t.Helper()
	log := zerolog.Nop()
	cfg := &config.Config{
		ActionTimeoutSec:   60,
		DisplayTimeoutSec:  30,
		LowAvailabilitySec: 60,
		BotFallbackSec:     120,
		StartingGraceMS:    5,
		RateLimitWindowMS:  1000,
		RateLimitBudget:    1000,
	}
	f := &serviceFixture{
		t:        t,
		cfg:      cfg,
		store:    NewGameStore(),
		bus:      NewInternalBus(log),
		players:  NewPlayerBus(log),
		timers:   NewTimerService(log),
		events:   make(map[string]*[]GatewayEvent),
		finished: make(chan GameFinishedEvent, 4),
	}
	t.Cleanup(f.timers.Stop)

	registry := NewRegistry(log, f.bus)
	t.Cleanup(registry.Stop)
	pool := NewMatchmakingPool()
	limiter := NewRateLimiter(cfg.RateLimitWindow(), cfg.RateLimitBudget)
	mm := NewMatchmaker(log, cfg, pool, registry, f.bus, f.players, f.store)

	f.bus.Subscribe(TopicGameFinished, func(p any) {
		if ev, ok := p.(GameFinishedEvent); ok {
			f.finished <- ev
		}
	})

	f.svc = NewService(log, cfg, ServiceDeps{
		Store:      f.store,
		Bus:        f.bus,
		Players:    f.players,
		Timers:     f.timers,
		Limiter:    limiter,
		Matchmaker: mm,
		RNG:        rand.New(rand.NewSource(42)),
	})
	return f
}

func (f *serviceFixture) watch(playerID string) {
	buf := &[]GatewayEvent{}
	f.events[playerID] = buf
	unsub := f.players.Subscribe(playerID, func(ev GatewayEvent) { *buf = append(*buf, ev) })
	f.t.Cleanup(unsub)
}

func (f *serviceFixture) eventsOf(playerID string) []GatewayEvent {
	if buf, ok := f.events[playerID]; ok {
		return *buf
	}
	return nil
}

func (f *serviceFixture) hasEvent(playerID string, typ EventType) bool {
	for _, ev := range f.eventsOf(playerID) {
		if ev.Type == typ {
			return true
		}
	}
	return false
}

func (f *serviceFixture) frame(typ CommandType, payload any) Frame {
	raw, err := json.Marshal(payload)
	require.NoError(f.t, err)
	return Frame{CommandID: "cmd-" + string(typ), Type: typ, Payload: raw}
}

func (f *serviceFixture) send(playerID string, typ CommandType, payload any) CommandResponse {
	return f.svc.HandleFrame(context.Background(), playerID, f.frame(typ, payload))
}

// startGame pairs p1 and p2 and waits for the first deal.
func (f *serviceFixture) startGame(p1, p2 string) *domain.Game {
	f.t.Helper()
	resp := f.send(p1, CmdJoinMatchmaking, JoinMatchmakingPayload{RoomType: domain.RoomQuick})
	require.True(f.t, resp.Success, "p1 join: %+v", resp)
	resp = f.send(p2, CmdJoinMatchmaking, JoinMatchmakingPayload{RoomType: domain.RoomQuick})
	require.True(f.t, resp.Success, "p2 join: %+v", resp)
	require.Equal(f.t, MatchedHumanMessage, resp.Message)

	return f.waitForGame(p1, func(g *domain.Game) bool {
		return g.Status == domain.StatusInProgress || g.Status == domain.StatusFinished
	})
}

func (f *serviceFixture) waitForGame(playerID string, pred func(*domain.Game) bool) *domain.Game {
	f.t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if g, ok := f.store.FindActiveByPlayer(playerID); ok && pred(g) {
			return g
		}
		// A finished game leaves the active index but stays in the store.
		if g := f.anyGameOf(playerID); g != nil && pred(g) {
			return g
		}
		time.Sleep(5 * time.Millisecond)
	}
	f.t.Fatal("game did not reach expected state")
	return nil
}

func (f *serviceFixture) anyGameOf(playerID string) *domain.Game {
	f.store.mu.RLock()
	defer f.store.mu.RUnlock()
	for _, g := range f.store.games {
		if g.HasPlayer(playerID) {
			return g
		}
	}
	return nil
}

// driveRound issues legal commands for whichever player holds control until
// the round settles.
func (f *serviceFixture) driveRound(gameID string) *domain.Game {
	f.t.Helper()
	for i := 0; i < 200; i++ {
		g, ok := f.store.Get(gameID)
		require.True(f.t, ok)
		if g.Status != domain.StatusInProgress {
			return g
		}
		r := g.CurrentRound
		require.NotNil(f.t, r)
		if r.FlowState == domain.RoundEnded {
			return g
		}
		actor := r.ActivePlayerID
		switch r.FlowState {
		case domain.AwaitingHandPlay:
			hand := r.Areas[actor].Hand
			require.NotEmpty(f.t, hand)
			p := PlayCardPayload{GameID: gameID, CardID: hand[0]}
			if targets := domain.MatchableCards(hand[0], r.Field); len(targets) >= 2 {
				p.TargetCardID = targets[0]
			}
			resp := f.send(actor, CmdPlayCard, p)
			require.True(f.t, resp.Success, "play: %+v", resp)
		case domain.AwaitingSelection:
			resp := f.send(actor, CmdSelectTarget, SelectTargetPayload{
				GameID:       gameID,
				SourceCardID: r.Pending.Card,
				TargetCardID: r.Pending.PossibleTargets[0],
			})
			require.True(f.t, resp.Success, "select: %+v", resp)
		case domain.AwaitingDecision:
			resp := f.send(actor, CmdMakeDecision, MakeDecisionPayload{
				GameID:   gameID,
				Decision: domain.DecisionEndRound,
			})
			require.True(f.t, resp.Success, "decision: %+v", resp)
		}
	}
	f.t.Fatal("round did not settle within step budget")
	return nil
}

// liveRound reports whether the first deal left an actionable round (the
// rare instant-end deal skips the turn-driven tests).
func liveRound(g *domain.Game) bool {
	return g.Status == domain.StatusInProgress &&
		g.CurrentRound != nil &&
		g.CurrentRound.FlowState != domain.RoundEnded
}

func TestMatchFoundCreatesGameAndDealsFirstRound(t *testing.T) {
	f := newServiceFixture(t)
	f.watch("p1")
	f.watch("p2")

	g := f.startGame("p1", "p2")

	require.Len(t, g.Players, 2)
	assert.True(t, g.HasPlayer("p1"))
	assert.True(t, g.HasPlayer("p2"))
	assert.True(t, f.hasEvent("p1", EventMatchFound))
	assert.True(t, f.hasEvent("p2", EventMatchFound))
	assert.True(t, f.hasEvent("p1", EventRoundDealt))
	assert.True(t, f.hasEvent("p2", EventRoundDealt))

	// Each player sees only their own hand.
	for _, pid := range []string{"p1", "p2"} {
		for _, ev := range f.eventsOf(pid) {
			if ev.Type == EventRoundDealt {
				payload := ev.Payload.(RoundDealtPayload)
				assert.Len(t, payload.Hand, 8)
				assert.Equal(t, 8, payload.OpponentCardCount)
			}
		}
	}
}

func TestCommandValidation(t *testing.T) {
	f := newServiceFixture(t)
	f.watch("p1")
	f.watch("p2")
	g := f.startGame("p1", "p2")
	if !liveRound(g) {
		t.Skip("instant-ended deal; validation paths need a live round")
	}
	r := g.CurrentRound
	actor := r.ActivePlayerID
	other := g.Opponent(actor)

	resp := f.send(actor, CmdPlayCard, PlayCardPayload{GameID: "nope", CardID: "0101"})
	assert.Equal(t, CodeGameNotFound, resp.Code)

	resp = f.send("stranger", CmdPlayCard, PlayCardPayload{GameID: g.ID, CardID: "0101"})
	assert.Equal(t, CodeWrongPlayer, resp.Code)

	resp = f.send(other, CmdPlayCard, PlayCardPayload{GameID: g.ID, CardID: r.Areas[other].Hand[0]})
	assert.Equal(t, CodeWrongPlayer, resp.Code)

	resp = f.send(actor, CmdPlayCard, PlayCardPayload{GameID: g.ID, CardID: r.Areas[other].Hand[0]})
	assert.Equal(t, CodeInvalidCard, resp.Code)

	resp = f.send(actor, CmdSelectTarget, SelectTargetPayload{GameID: g.ID, SourceCardID: "0101", TargetCardID: "0102"})
	assert.Equal(t, CodeInvalidState, resp.Code)

	resp = f.send(actor, CmdJoinMatchmaking, JoinMatchmakingPayload{RoomType: "BOGUS"})
	assert.Equal(t, CodeInvalidRoomType, resp.Code)

	resp = f.send(actor, CmdJoinMatchmaking, JoinMatchmakingPayload{RoomType: domain.RoomQuick})
	assert.Equal(t, CodeAlreadyInGame, resp.Code)

	resp = f.svc.HandleFrame(context.Background(), actor, Frame{CommandID: "x", Type: "NONSENSE"})
	assert.Equal(t, CodeUnknownCommand, resp.Code)

	// Rejected commands changed nothing.
	g2, _ := f.store.Get(g.ID)
	assert.Equal(t, r.FlowState, g2.CurrentRound.FlowState)
	assert.Equal(t, r.ActivePlayerID, g2.CurrentRound.ActivePlayerID)
}

func TestPingAndRateLimit(t *testing.T) {
	f := newServiceFixture(t)
	resp := f.send("p1", CmdPing, struct{}{})
	assert.True(t, resp.Success)
	assert.Equal(t, "PONG", resp.Message)

	limited := NewRateLimiter(time.Minute, 1)
	f.svc.limiter = limited
	assert.True(t, f.send("p9", CmdPing, struct{}{}).Success)
	resp = f.send("p9", CmdPing, struct{}{})
	assert.Equal(t, CodeRateLimitExceeded, resp.Code)
	assert.GreaterOrEqual(t, resp.RetryAfter, 1)
}

func TestRoundPlaysThroughToSettlement(t *testing.T) {
	f := newServiceFixture(t)
	f.watch("p1")
	f.watch("p2")
	g := f.startGame("p1", "p2")
	if !liveRound(g) {
		t.Skip("instant-ended deal")
	}

	g = f.driveRound(g.ID)
	require.NotNil(t, g.CurrentRound.Settlement)
	assert.Equal(t, 1, g.RoundsPlayed)

	settled := g.CurrentRound.Settlement
	if settled.WinnerID != "" {
		assert.True(t,
			f.hasEvent("p1", EventRoundScored) || f.hasEvent("p1", EventRoundEndedInstantly))
	} else {
		assert.True(t,
			f.hasEvent("p1", EventRoundDrawn) || f.hasEvent("p1", EventRoundEndedInstantly))
	}
	if g.Status == domain.StatusInProgress {
		assert.Len(t, g.PendingContinue, 2)
	}
}

func TestConfirmContinueDealsNextRoundImmediately(t *testing.T) {
	f := newServiceFixture(t)
	g := f.startGame("p1", "p2")
	if !liveRound(g) {
		t.Skip("instant-ended deal")
	}
	g = f.driveRound(g.ID)
	if g.Status != domain.StatusInProgress {
		t.Skip("game finished in one round")
	}

	resp := f.send("p1", CmdConfirmContinue, ConfirmContinuePayload{GameID: g.ID, Decision: ContinueStay})
	require.True(t, resp.Success, "%+v", resp)
	g2, _ := f.store.Get(g.ID)
	assert.Equal(t, domain.RoundEnded, g2.CurrentRound.FlowState, "one confirmation keeps the settlement screen")

	resp = f.send("p2", CmdConfirmContinue, ConfirmContinuePayload{GameID: g.ID, Decision: ContinueStay})
	require.True(t, resp.Success, "%+v", resp)

	g3, _ := f.store.Get(g.ID)
	if g3.CurrentRound.FlowState != domain.RoundEnded {
		assert.Equal(t, domain.AwaitingHandPlay, g3.CurrentRound.FlowState)
		assert.Equal(t, 1, g3.RoundsPlayed)
	}
}

func TestLeaveGameForceFinishes(t *testing.T) {
	f := newServiceFixture(t)
	f.watch("p1")
	f.watch("p2")
	g := f.startGame("p1", "p2")

	resp := f.send("p1", CmdLeaveGame, LeaveGamePayload{GameID: g.ID})
	require.True(t, resp.Success, "%+v", resp)

	g2, _ := f.store.Get(g.ID)
	assert.Equal(t, domain.StatusFinished, g2.Status)
	assert.Equal(t, "p2", g2.WinnerID)
	assert.True(t, f.hasEvent("p2", EventGameFinished))

	select {
	case ev := <-f.finished:
		assert.Equal(t, g.ID, ev.GameID)
		assert.Equal(t, "p2", ev.WinnerID)
	case <-time.After(time.Second):
		t.Fatal("internal GAME_FINISHED not published")
	}

	// The game no longer counts as active.
	_, active := f.store.FindActiveByPlayer("p1")
	assert.False(t, active)
}

func TestDisconnectDuringGameForceFinishes(t *testing.T) {
	f := newServiceFixture(t)
	f.watch("p2")
	g := f.startGame("p1", "p2")

	f.svc.HandleDisconnect("p1")

	g2, _ := f.store.Get(g.ID)
	assert.Equal(t, domain.StatusFinished, g2.Status)
	assert.Equal(t, "p2", g2.WinnerID)
}

func TestSnapshotRestoreForReconnectingPlayer(t *testing.T) {
	f := newServiceFixture(t)
	g := f.startGame("p1", "p2")
	if !liveRound(g) {
		t.Skip("instant-ended deal")
	}

	ev := f.svc.SnapshotFor("p1")
	require.NotNil(t, ev)
	assert.Equal(t, EventGameSnapshotRestore, ev.Type)
	payload := ev.Payload.(SnapshotRestorePayload)
	assert.Equal(t, domain.StatusInProgress, payload.Status)
	require.NotNil(t, payload.Round)
	assert.Len(t, payload.Round.Hand, 8)

	assert.Nil(t, f.svc.SnapshotFor("stranger"))
}

func TestActionTimeoutAutoPlays(t *testing.T) {
	f := newServiceFixture(t)
	f.cfg.ActionTimeoutSec = 1
	g := f.startGame("p1", "p2")
	if !liveRound(g) {
		t.Skip("instant-ended deal")
	}
	before := g.CurrentRound

	// Re-arm with the shortened timeout, as a landed command would.
	f.svc.armTimers(g)

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		g2, _ := f.store.Get(g.ID)
		r := g2.CurrentRound
		changed := r.ActivePlayerID != before.ActivePlayerID ||
			r.FlowState != before.FlowState ||
			len(r.Areas[before.ActivePlayerID].Hand) != len(before.Areas[before.ActivePlayerID].Hand)
		if changed {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatal("auto-action did not fire")
}
