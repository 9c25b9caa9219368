package app

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ychleo102615/hanahuda-server/internal/domain"
)

func mustTwoPlayerGame(t *testing.T, id, p1, p2 string) *domain.Game {
	t.Helper()
	g := domain.NewGame(id, domain.RoomQuick, domain.GamePlayer{ID: p1, Name: p1})
	g, err := g.AddPlayer(domain.GamePlayer{ID: p2, Name: p2})
	require.NoError(t, err)
	return g
}

func dealtGame(t *testing.T, id string) *domain.Game {
	t.Helper()
	g := mustTwoPlayerGame(t, id, "p1", "p2")
	for seed := int64(1); seed < 50; seed++ {
		deck := deterministicDeck(seed)
		dealt, err := g.StartRound(deck)
		require.NoError(t, err)
		if dealt.CurrentRound.FlowState != domain.RoundEnded {
			return dealt
		}
	}
	t.Fatal("no non-instant deal found")
	return nil
}

func deterministicDeck(seed int64) []domain.CardID {
	// A seeded shuffle keeps the deck valid while varying the hands.
	return domain.ShuffleDeck(domain.NewDeck(), rand.New(rand.NewSource(seed)))
}

func TestRoundDealtIsPlayerScoped(t *testing.T) {
	m := NewEventMapper(5)
	g := dealtGame(t, "g1")

	events := m.RoundDealt(g)
	require.Len(t, events, 2)
	for _, te := range events {
		payload := te.Event.Payload.(RoundDealtPayload)
		assert.Equal(t, g.CurrentRound.Areas[te.PlayerID].Hand, payload.Hand,
			"each player sees their own hand")
		assert.Equal(t, 8, payload.OpponentCardCount)
		assert.Equal(t, EventRoundDealt, te.Event.Type)
		assert.Equal(t, "g1", te.Event.GameID)
	}
}

func TestAfterPlayMapsSelectionState(t *testing.T) {
	m := NewEventMapper(5)
	g := dealtGame(t, "g1")
	r := g.CurrentRound
	actor := r.ActivePlayerID

	// Force a pending selection without replaying the whole turn.
	pending := *r
	pending.FlowState = domain.AwaitingSelection
	pending.Pending = &domain.PendingSelection{
		Card:            "0103",
		PossibleTargets: []domain.CardID{"0101", "0102"},
	}
	g = g.WithRound(&pending)

	events := m.AfterPlay(g, actor)
	require.Len(t, events, 2)
	for _, te := range events {
		assert.Equal(t, EventSelectionRequired, te.Event.Type)
		payload := te.Event.Payload.(SelectionRequiredPayload)
		assert.Equal(t, []domain.CardID{"0101", "0102"}, payload.PossibleTargets)
	}
}

func TestGameFinishedPayloadCarriesScores(t *testing.T) {
	m := NewEventMapper(5)
	g := mustTwoPlayerGame(t, "g1", "p1", "p2")
	finished, err := g.ForceFinish("p1")
	require.NoError(t, err)

	events := m.GameFinished(finished, FinishPlayerLeft)
	require.Len(t, events, 2)
	payload := events[0].Event.Payload.(GameFinishedPayload)
	assert.Equal(t, "p2", payload.WinnerID)
	assert.Equal(t, FinishPlayerLeft, payload.Reason)
	assert.Contains(t, payload.FinalScores, "p1")
	assert.Contains(t, payload.FinalScores, "p2")
}
