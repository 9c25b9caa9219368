package bot

import (
	"github.com/ychleo102615/hanahuda-server/internal/domain"
)

// stopThreshold is the settled-points level at which the greedy strategy
// banks its yaku instead of calling koi-koi.
const stopThreshold = 7

// GreedyBrain captures the most valuable cards available each turn and
// risks koi-koi only while it still holds enough cards to follow through.
type GreedyBrain struct{}

// NewGreedyBrain returns the default strategy.
func NewGreedyBrain() *GreedyBrain {
	return &GreedyBrain{}
}

// cardValue ranks cards for capture preference.
func cardValue(id domain.CardID) int {
	switch domain.CategoryOf(id) {
	case domain.Bright:
		return 20
	case domain.Animal:
		return 10
	case domain.Ribbon:
		return 5
	default:
		return 1
	}
}

func bestTarget(targets []domain.CardID) domain.CardID {
	best := targets[0]
	for _, t := range targets[1:] {
		if cardValue(t) > cardValue(best) {
			best = t
		}
	}
	return best
}

// ChooseHandPlay maximizes the immediate capture value; with no capture
// available it discards the least valuable hand card.
func (b *GreedyBrain) ChooseHandPlay(hand, field []domain.CardID) (domain.CardID, domain.CardID) {
	var (
		bestCard   domain.CardID
		bestTgt    domain.CardID
		bestGain   = -1
		worstCard  domain.CardID
		worstValue = 1 << 30
	)
	for _, c := range hand {
		matches := domain.MatchableCards(c, field)
		if len(matches) == 0 {
			if v := cardValue(c); v < worstValue {
				worstValue, worstCard = v, c
			}
			continue
		}
		tgt := bestTarget(matches)
		gain := cardValue(c) + cardValue(tgt)
		if gain > bestGain {
			bestGain = gain
			bestCard = c
			if len(matches) >= 2 {
				bestTgt = tgt
			} else {
				bestTgt = ""
			}
		}
	}
	if bestGain >= 0 {
		return bestCard, bestTgt
	}
	if worstCard == "" && len(hand) > 0 {
		worstCard = hand[0]
	}
	return worstCard, ""
}

// ChooseTarget takes the most valuable candidate.
func (b *GreedyBrain) ChooseTarget(_ domain.CardID, targets []domain.CardID) domain.CardID {
	return bestTarget(targets)
}

// ChooseDecision stops on a strong score or a near-empty hand, and presses
// its luck otherwise.
func (b *GreedyBrain) ChooseDecision(activePoints, handCount int) domain.Decision {
	if activePoints >= stopThreshold || handCount <= 2 {
		return domain.DecisionEndRound
	}
	return domain.DecisionKoiKoi
}
