package integration

import (
	"context"
	"encoding/json"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/ychleo102615/hanahuda-server/internal/app"
	"github.com/ychleo102615/hanahuda-server/internal/bot"
	"github.com/ychleo102615/hanahuda-server/internal/config"
	"github.com/ychleo102615/hanahuda-server/internal/domain"
	"github.com/ychleo102615/hanahuda-server/internal/ports/ws"
)

// fakePeer is an in-memory transport endpoint capturing everything the
// runtime writes to it.
type fakePeer struct {
	mu        sync.Mutex
	frames    [][]byte
	closed    bool
	closeCode int
}

func (p *fakePeer) Send(data []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	cp := make([]byte, len(data))
	copy(cp, data)
	p.frames = append(p.frames, cp)
	return nil
}

func (p *fakePeer) CloseWithReason(code int, _ string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	p.closeCode = code
}

func (p *fakePeer) RemoteAddr() string { return "fake" }

func (p *fakePeer) Closed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

// eventTypes decodes the captured frames and returns the gateway event tags
// seen so far, skipping command responses.
func (p *fakePeer) eventTypes() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []string
	for _, raw := range p.frames {
		var envelope struct {
			Type string `json:"type"`
		}
		if err := json.Unmarshal(raw, &envelope); err == nil && envelope.Type != "" {
			out = append(out, envelope.Type)
		}
	}
	return out
}

func (p *fakePeer) sawEvent(typ app.EventType) bool {
	for _, t := range p.eventTypes() {
		if t == string(typ) {
			return true
		}
	}
	return false
}

// harness is the whole runtime wired in memory: session service,
// matchmaking, timers, bot collaborator, and the connection manager.
type harness struct {
	t       *testing.T
	cfg     *config.Config
	store   *app.GameStore
	bus     *app.InternalBus
	players *app.PlayerBus
	timers  *app.TimerService
	service *app.Service
	manager *ws.Manager
}

func newHarness(t *testing.T, mutate func(*config.Config)) *harness {
	t.Helper()
	log := zerolog.Nop()
	cfg := &config.Config{
		ActionTimeoutSec:   60,
		DisplayTimeoutSec:  30,
		LowAvailabilitySec: 1,
		BotFallbackSec:     2,
		StartingGraceMS:    10,
		RateLimitWindowMS:  1000,
		RateLimitBudget:    1000,
	}
	if mutate != nil {
		mutate(cfg)
	}

	h := &harness{
		t:       t,
		cfg:     cfg,
		store:   app.NewGameStore(),
		bus:     app.NewInternalBus(log),
		players: app.NewPlayerBus(log),
		timers:  app.NewTimerService(log),
	}
	t.Cleanup(h.timers.Stop)

	registry := app.NewRegistry(log, h.bus)
	t.Cleanup(registry.Stop)
	pool := app.NewMatchmakingPool()
	limiter := app.NewRateLimiter(cfg.RateLimitWindow(), cfg.RateLimitBudget)
	mm := app.NewMatchmaker(log, cfg, pool, registry, h.bus, h.players, h.store)

	h.service = app.NewService(log, cfg, app.ServiceDeps{
		Store:      h.store,
		Bus:        h.bus,
		Players:    h.players,
		Timers:     h.timers,
		Limiter:    limiter,
		Matchmaker: mm,
		RNG:        rand.New(rand.NewSource(7)),
	})

	orchestrator := bot.NewOrchestrator(log, h.bus, h.players, h.service, bot.NewGreedyBrain(), 20*time.Millisecond)
	t.Cleanup(orchestrator.Stop)

	h.manager = ws.NewManager(log, h.players, h.service)
	return h
}

// connect binds a fake peer to a player the way the gateway does after a
// successful handshake.
func (h *harness) connect(playerID string) *fakePeer {
	peer := &fakePeer{}
	h.manager.Register(playerID, peer)
	return peer
}

func (h *harness) send(playerID string, typ app.CommandType, payload any) app.CommandResponse {
	raw, err := json.Marshal(payload)
	require.NoError(h.t, err)
	return h.service.HandleFrame(context.Background(), playerID, app.Frame{
		CommandID: uuid.NewString(),
		Type:      typ,
		Payload:   raw,
	})
}

func (h *harness) join(playerID string, rt domain.RoomType) app.CommandResponse {
	return h.send(playerID, app.CmdJoinMatchmaking, app.JoinMatchmakingPayload{RoomType: rt})
}

// gameOf waits until the player has a game matching the predicate.
func (h *harness) gameOf(playerID string, within time.Duration, pred func(*domain.Game) bool) *domain.Game {
	h.t.Helper()
	deadline := time.Now().Add(within)
	for time.Now().Before(deadline) {
		if g, ok := h.store.FindActiveByPlayer(playerID); ok && pred(g) {
			return g
		}
		time.Sleep(10 * time.Millisecond)
	}
	h.t.Fatalf("player %s never reached the expected game state", playerID)
	return nil
}

// driveHuman plays the human side of a game: whenever control rests with
// the player, it issues the legal default command, until the game finishes.
func (h *harness) driveHuman(playerID, gameID string, within time.Duration) *domain.Game {
	h.t.Helper()
	deadline := time.Now().Add(within)
	for time.Now().Before(deadline) {
		g, ok := h.store.Get(gameID)
		require.True(h.t, ok)
		if g.Status == domain.StatusFinished {
			return g
		}
		r := g.CurrentRound
		if r == nil || r.ActivePlayerID != playerID {
			time.Sleep(10 * time.Millisecond)
			continue
		}
		switch r.FlowState {
		case domain.AwaitingHandPlay:
			hand := r.Areas[playerID].Hand
			if len(hand) == 0 {
				time.Sleep(10 * time.Millisecond)
				continue
			}
			p := app.PlayCardPayload{GameID: gameID, CardID: hand[0]}
			if targets := domain.MatchableCards(hand[0], r.Field); len(targets) >= 2 {
				p.TargetCardID = targets[0]
			}
			h.send(playerID, app.CmdPlayCard, p)
		case domain.AwaitingSelection:
			h.send(playerID, app.CmdSelectTarget, app.SelectTargetPayload{
				GameID:       gameID,
				SourceCardID: r.Pending.Card,
				TargetCardID: r.Pending.PossibleTargets[0],
			})
		case domain.AwaitingDecision:
			h.send(playerID, app.CmdMakeDecision, app.MakeDecisionPayload{
				GameID:   gameID,
				Decision: domain.DecisionEndRound,
			})
		default:
			time.Sleep(10 * time.Millisecond)
		}
	}
	h.t.Fatal("game did not finish in time")
	return nil
}
