package domain

import (
	"fmt"
	"math/rand"
)

// NewDeck returns the full 48-card deck in catalog order.
func NewDeck() []CardID {
	deck := make([]CardID, 0, TotalDeckCards)
	for month := 1; month <= 12; month++ {
		for idx := 1; idx <= 4; idx++ {
			deck = append(deck, CardID(fmt.Sprintf("%02d%02d", month, idx)))
		}
	}
	return deck
}

// ShuffleDeck returns a shuffled copy of the given deck using the provided rng.
func ShuffleDeck(deck []CardID, rng *rand.Rand) []CardID {
	out := make([]CardID, len(deck))
	copy(out, deck)
	rng.Shuffle(len(out), func(i, j int) { out[i], out[j] = out[j], out[i] })
	return out
}
