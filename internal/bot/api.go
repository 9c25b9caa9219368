package bot

import (
	"github.com/ychleo102615/hanahuda-server/internal/domain"
)

// Brain is the interface all bot strategies implement. Inputs are the
// bot's own view of the round, built from its event stream.
type Brain interface {
	// ChooseHandPlay picks the hand card to play and, when the card has two
	// or more field matches, the capture target ("" otherwise).
	ChooseHandPlay(hand, field []domain.CardID) (card, target domain.CardID)
	// ChooseTarget resolves a pending multi-match selection.
	ChooseTarget(source domain.CardID, targets []domain.CardID) domain.CardID
	// ChooseDecision answers a koi-koi prompt.
	ChooseDecision(activePoints, handCount int) domain.Decision
}
