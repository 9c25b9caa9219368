package domain

import (
	"errors"
	"testing"
)

// safeDeck is a fixed deal with no instant-end hands.
func safeDeck(t *testing.T) []CardID {
	t.Helper()
	return buildDeck(t, testDealerHand, testOppHand, testField, nil)
}

func twoPlayerGame(t *testing.T) *Game {
	t.Helper()
	g := NewGame("g1", RoomQuick, GamePlayer{ID: "a", Name: "Alice"})
	g, err := g.AddPlayer(GamePlayer{ID: "b", Name: "Bob"})
	if err != nil {
		t.Fatalf("add player error: %v", err)
	}
	return g
}

func TestGameLifecycle(t *testing.T) {
	g := NewGame("g1", RoomQuick, GamePlayer{ID: "a", Name: "Alice"})
	if g.Status != StatusWaiting {
		t.Fatalf("status = %s", g.Status)
	}

	g2, err := g.AddPlayer(GamePlayer{ID: "b", Name: "Bob"})
	if err != nil {
		t.Fatalf("add player error: %v", err)
	}
	if g2.Status != StatusStarting {
		t.Fatalf("status = %s", g2.Status)
	}
	if g.Status != StatusWaiting {
		t.Fatal("source snapshot mutated")
	}

	if _, err := g2.AddPlayer(GamePlayer{ID: "c"}); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("third player error = %v", err)
	}

	g3, err := g2.StartRound(safeDeck(t))
	if err != nil {
		t.Fatalf("start round error: %v", err)
	}
	if g3.Status != StatusInProgress || g3.CurrentRound == nil {
		t.Fatalf("status = %s, round = %v", g3.Status, g3.CurrentRound)
	}
	if g3.CurrentRound.DealerID != "a" {
		t.Fatalf("first dealer = %s, want first player", g3.CurrentRound.DealerID)
	}
}

func TestRulesetPerRoomType(t *testing.T) {
	if r := RulesetFor(RoomQuick); r.TotalRounds != 3 || r.Yaku.AllowViewingYaku {
		t.Fatalf("quick ruleset = %+v", r)
	}
	if r := RulesetFor(RoomStandard); r.TotalRounds != 6 || !r.Yaku.AllowViewingYaku {
		t.Fatalf("standard ruleset = %+v", r)
	}
	if r := RulesetFor(RoomMarathon); r.TotalRounds != 12 {
		t.Fatalf("marathon ruleset = %+v", r)
	}
}

func TestCompleteRoundAccumulatesAndRotatesDealer(t *testing.T) {
	g := twoPlayerGame(t)
	g, err := g.StartRound(safeDeck(t))
	if err != nil {
		t.Fatalf("start round error: %v", err)
	}

	settled := g.CurrentRound.clone()
	settled.settle("b", []Yaku{{Type: YakuAkatan, Points: 5}})
	g = g.WithRound(settled)

	g2, err := g.CompleteRound()
	if err != nil {
		t.Fatalf("complete round error: %v", err)
	}
	if g2.Scores["b"] != 5 || g2.Scores["a"] != 0 {
		t.Fatalf("scores = %v", g2.Scores)
	}
	if g2.RoundsPlayed != 1 || g2.Status != StatusInProgress {
		t.Fatalf("rounds=%d status=%s", g2.RoundsPlayed, g2.Status)
	}
	if len(g2.PendingContinue) != 2 {
		t.Fatalf("pending continue = %v", g2.PendingContinue)
	}
	if g2.NextDealerID() != "b" {
		t.Fatalf("next dealer = %s, want round winner", g2.NextDealerID())
	}
}

func TestGameFinishesAfterTotalRounds(t *testing.T) {
	g := twoPlayerGame(t) // QUICK: three rounds

	for i := 0; i < 3; i++ {
		var err error
		g, err = g.StartRound(safeDeck(t))
		if err != nil {
			t.Fatalf("round %d start error: %v", i, err)
		}
		settled := g.CurrentRound.clone()
		settled.settle("a", []Yaku{{Type: YakuSankou, Points: 6}})
		g = g.WithRound(settled)
		g, err = g.CompleteRound()
		if err != nil {
			t.Fatalf("round %d complete error: %v", i, err)
		}
	}

	if g.Status != StatusFinished {
		t.Fatalf("status = %s", g.Status)
	}
	if g.RoundsPlayed != 3 || g.WinnerID != "a" {
		t.Fatalf("rounds=%d winner=%s", g.RoundsPlayed, g.WinnerID)
	}
	if g.Scores["a"] != 18 {
		t.Fatalf("score = %d", g.Scores["a"])
	}
}

func TestForceFinishAwardsRemainingPlayer(t *testing.T) {
	g := twoPlayerGame(t)
	g, err := g.StartRound(safeDeck(t))
	if err != nil {
		t.Fatalf("start round error: %v", err)
	}

	g2, err := g.ForceFinish("a")
	if err != nil {
		t.Fatalf("force finish error: %v", err)
	}
	if g2.Status != StatusFinished || g2.WinnerID != "b" {
		t.Fatalf("status=%s winner=%s", g2.Status, g2.WinnerID)
	}
	if g2.CurrentRound.FlowState != RoundEnded || g2.CurrentRound.Settlement.Reason != EndForfeit {
		t.Fatalf("round not forfeited: %+v", g2.CurrentRound.Settlement)
	}

	if _, err := g2.ForceFinish("b"); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("double finish error = %v", err)
	}
}

func TestConfirmContinue(t *testing.T) {
	g := twoPlayerGame(t)
	g, err := g.StartRound(safeDeck(t))
	if err != nil {
		t.Fatalf("start round error: %v", err)
	}
	settled := g.CurrentRound.clone()
	settled.settleExhausted()
	g = g.WithRound(settled)
	g, err = g.CompleteRound()
	if err != nil {
		t.Fatalf("complete round error: %v", err)
	}

	g, err = g.ConfirmContinue("a")
	if err != nil {
		t.Fatalf("confirm error: %v", err)
	}
	if len(g.PendingContinue) != 1 || g.PendingContinue[0] != "b" {
		t.Fatalf("pending = %v", g.PendingContinue)
	}
	g, err = g.ConfirmContinue("b")
	if err != nil {
		t.Fatalf("confirm error: %v", err)
	}
	if len(g.PendingContinue) != 0 {
		t.Fatalf("pending = %v", g.PendingContinue)
	}

	if _, err := g.ConfirmContinue("c"); !errors.Is(err, ErrNotInGame) {
		t.Fatalf("stranger confirm error = %v", err)
	}
}

func TestScoreMonotonicity(t *testing.T) {
	g := twoPlayerGame(t)
	prev := map[string]int{"a": 0, "b": 0}

	for i := 0; i < 3; i++ {
		var err error
		g, err = g.StartRound(safeDeck(t))
		if err != nil {
			t.Fatalf("start round error: %v", err)
		}
		settled := g.CurrentRound.clone()
		if i%2 == 0 {
			settled.settle("a", []Yaku{{Type: YakuKasu, Points: 1}})
		} else {
			settled.settleExhausted()
		}
		g = g.WithRound(settled)
		g, err = g.CompleteRound()
		if err != nil {
			t.Fatalf("complete round error: %v", err)
		}
		for pid, s := range g.Scores {
			if s < prev[pid] {
				t.Fatalf("score for %s decreased: %d -> %d", pid, prev[pid], s)
			}
			prev[pid] = s
		}
	}
}
