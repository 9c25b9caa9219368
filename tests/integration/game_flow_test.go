package integration

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ychleo102615/hanahuda-server/internal/app"
	"github.com/ychleo102615/hanahuda-server/internal/config"
	"github.com/ychleo102615/hanahuda-server/internal/domain"
)

func TestImmediateHumanMatch(t *testing.T) {
	h := newHarness(t, nil)
	peer1 := h.connect("alice")
	peer2 := h.connect("bob")

	resp := h.join("alice", domain.RoomQuick)
	require.True(t, resp.Success)
	require.Equal(t, app.SearchingMessage, resp.Message)

	resp = h.join("bob", domain.RoomQuick)
	require.True(t, resp.Success)
	require.Equal(t, app.MatchedHumanMessage, resp.Message)

	g := h.gameOf("alice", 2*time.Second, func(g *domain.Game) bool {
		return g.Status == domain.StatusInProgress
	})
	assert.True(t, g.HasPlayer("alice"))
	assert.True(t, g.HasPlayer("bob"))

	waitFor(t, time.Second, func() bool {
		return peer1.sawEvent(app.EventMatchFound) && peer2.sawEvent(app.EventMatchFound)
	})
	waitFor(t, time.Second, func() bool {
		return peer1.sawEvent(app.EventRoundDealt) && peer2.sawEvent(app.EventRoundDealt)
	})
}

func TestBotFallbackAfterBoundedWait(t *testing.T) {
	h := newHarness(t, nil) // 1 s low availability, 2 s bot fallback
	peer := h.connect("loner")

	resp := h.join("loner", domain.RoomMarathon)
	require.True(t, resp.Success)
	require.Equal(t, app.SearchingMessage, resp.Message)

	waitFor(t, 2*time.Second, func() bool {
		return peer.sawEvent(app.EventMatchmakingStatus)
	})

	g := h.gameOf("loner", 4*time.Second, func(g *domain.Game) bool {
		return len(g.Players) == 2
	})
	opp, ok := g.Player(app.BotPlayerID)
	require.True(t, ok, "bot installed as second player")
	assert.True(t, opp.IsBot)
	assert.Equal(t, app.BotPlayerName, opp.Name)

	waitFor(t, time.Second, func() bool {
		return peer.sawEvent(app.EventMatchFound)
	})
}

func TestFullGameAgainstBot(t *testing.T) {
	if testing.Short() {
		t.Skip("full game takes a few seconds")
	}
	h := newHarness(t, func(cfg *config.Config) {
		cfg.BotFallbackSec = 1
		cfg.DisplayTimeoutSec = 1
		cfg.ActionTimeoutSec = 2 // auto-action backs up a stalled side
	})
	peer := h.connect("hero")

	require.True(t, h.join("hero", domain.RoomQuick).Success)

	g := h.gameOf("hero", 3*time.Second, func(g *domain.Game) bool {
		return g.Status == domain.StatusInProgress
	})
	require.True(t, g.HasPlayer(app.BotPlayerID))

	final := h.driveHuman("hero", g.ID, 60*time.Second)
	assert.Equal(t, domain.StatusFinished, final.Status)
	assert.Equal(t, final.Ruleset.TotalRounds, final.RoundsPlayed)

	waitFor(t, 2*time.Second, func() bool {
		return peer.sawEvent(app.EventGameFinished)
	})
	for _, score := range final.Scores {
		assert.GreaterOrEqual(t, score, 0)
	}
}

func TestLeaveMidGameAwardsOpponent(t *testing.T) {
	h := newHarness(t, nil)
	h.connect("alice")
	peer2 := h.connect("bob")

	require.True(t, h.join("alice", domain.RoomQuick).Success)
	require.True(t, h.join("bob", domain.RoomQuick).Success)
	g := h.gameOf("alice", 2*time.Second, func(g *domain.Game) bool {
		return g.Status == domain.StatusInProgress
	})

	resp := h.send("alice", app.CmdLeaveGame, app.LeaveGamePayload{GameID: g.ID})
	require.True(t, resp.Success)

	waitFor(t, time.Second, func() bool {
		return peer2.sawEvent(app.EventGameFinished)
	})
	final, ok := h.store.Get(g.ID)
	require.True(t, ok)
	assert.Equal(t, domain.StatusFinished, final.Status)
	assert.Equal(t, "bob", final.WinnerID)
}

func TestReconnectionReplacesPeerAndRestoresSnapshot(t *testing.T) {
	h := newHarness(t, nil)
	old := h.connect("alice")
	h.connect("bob")

	require.True(t, h.join("alice", domain.RoomQuick).Success)
	require.True(t, h.join("bob", domain.RoomQuick).Success)
	h.gameOf("alice", 2*time.Second, func(g *domain.Game) bool {
		return g.Status == domain.StatusInProgress
	})

	// A second connection for the same player replaces the first.
	fresh := h.connect("alice")

	waitFor(t, time.Second, func() bool { return old.Closed() })
	waitFor(t, time.Second, func() bool {
		return fresh.sawEvent(app.EventGameSnapshotRestore)
	})
}

func waitFor(t *testing.T, within time.Duration, pred func() bool) {
	t.Helper()
	deadline := time.Now().Add(within)
	for time.Now().Before(deadline) {
		if pred() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not reached in time")
}
