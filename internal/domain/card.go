package domain

import "fmt"

// CardID is a four-digit hanafuda card identifier: "MMNN" where MM is the
// month (01-12) and NN the card index within the month (01-04).
type CardID string

// Category classifies a card for yaku recognition.
type Category int

const (
	Chaff Category = iota
	Ribbon
	Animal
	Bright
)

// RibbonColor distinguishes the three ribbon groups.
type RibbonColor int

const (
	NoRibbon RibbonColor = iota
	RedRibbon
	PoetryRibbon
	BlueRibbon
)

// TotalDeckCards is the size of a full hanafuda deck.
const TotalDeckCards = 48

// Card is the static description of a single hanafuda card.
type Card struct {
	ID       CardID
	Month    int
	Index    int
	Category Category
	Ribbon   RibbonColor
}

// Named cards referenced by yaku rules.
const (
	CardCrane       CardID = "0101"
	CardCurtain     CardID = "0301"
	CardMoon        CardID = "0801"
	CardRainMan     CardID = "1101"
	CardPhoenix     CardID = "1201"
	CardBoar        CardID = "0701"
	CardDeer        CardID = "1001"
	CardButterflies CardID = "0601"
	CardSakeCup     CardID = "0901"
)

// monthSpec describes the category layout of one month's four cards, in
// index order 01..04.
type monthSpec [4]struct {
	cat    Category
	ribbon RibbonColor
}

var monthSpecs = [13]monthSpec{
	1: {{Bright, NoRibbon}, {Ribbon, PoetryRibbon}, {Chaff, NoRibbon}, {Chaff, NoRibbon}},   // pine: crane
	2: {{Animal, NoRibbon}, {Ribbon, PoetryRibbon}, {Chaff, NoRibbon}, {Chaff, NoRibbon}},   // plum: bush warbler
	3: {{Bright, NoRibbon}, {Ribbon, PoetryRibbon}, {Chaff, NoRibbon}, {Chaff, NoRibbon}},   // cherry: curtain
	4: {{Animal, NoRibbon}, {Ribbon, RedRibbon}, {Chaff, NoRibbon}, {Chaff, NoRibbon}},      // wisteria: cuckoo
	5: {{Animal, NoRibbon}, {Ribbon, RedRibbon}, {Chaff, NoRibbon}, {Chaff, NoRibbon}},      // iris: bridge
	6: {{Animal, NoRibbon}, {Ribbon, BlueRibbon}, {Chaff, NoRibbon}, {Chaff, NoRibbon}},     // peony: butterflies
	7: {{Animal, NoRibbon}, {Ribbon, RedRibbon}, {Chaff, NoRibbon}, {Chaff, NoRibbon}},      // clover: boar
	8: {{Bright, NoRibbon}, {Animal, NoRibbon}, {Chaff, NoRibbon}, {Chaff, NoRibbon}},       // pampas: moon, geese
	9: {{Animal, NoRibbon}, {Ribbon, BlueRibbon}, {Chaff, NoRibbon}, {Chaff, NoRibbon}},     // chrysanthemum: sake cup
	10: {{Animal, NoRibbon}, {Ribbon, BlueRibbon}, {Chaff, NoRibbon}, {Chaff, NoRibbon}},    // maple: deer
	11: {{Bright, NoRibbon}, {Animal, NoRibbon}, {Ribbon, RedRibbon}, {Chaff, NoRibbon}},    // willow: rain man, swallow
	12: {{Bright, NoRibbon}, {Chaff, NoRibbon}, {Chaff, NoRibbon}, {Chaff, NoRibbon}},       // paulownia: phoenix
}

var catalog = buildCatalog()

func buildCatalog() map[CardID]Card {
	m := make(map[CardID]Card, TotalDeckCards)
	for month := 1; month <= 12; month++ {
		for idx := 1; idx <= 4; idx++ {
			spec := monthSpecs[month][idx-1]
			id := CardID(fmt.Sprintf("%02d%02d", month, idx))
			m[id] = Card{
				ID:       id,
				Month:    month,
				Index:    idx,
				Category: spec.cat,
				Ribbon:   spec.ribbon,
			}
		}
	}
	return m
}

// CardByID resolves a card id against the catalog.
func CardByID(id CardID) (Card, bool) {
	c, ok := catalog[id]
	return c, ok
}

// MonthOf returns the month of a card id, or 0 for an unknown id.
func MonthOf(id CardID) int {
	c, ok := catalog[id]
	if !ok {
		return 0
	}
	return c.Month
}

// CategoryOf returns the category of a card id. Unknown ids count as chaff;
// callers validate ids before relying on this.
func CategoryOf(id CardID) Category {
	return catalog[id].Category
}

// MatchableCards returns the field cards sharing the played card's month,
// preserving field order.
func MatchableCards(played CardID, field []CardID) []CardID {
	month := MonthOf(played)
	if month == 0 {
		return nil
	}
	var out []CardID
	for _, f := range field {
		if MonthOf(f) == month {
			out = append(out, f)
		}
	}
	return out
}

// ContainsCard reports whether the list holds the given id.
func ContainsCard(cards []CardID, id CardID) bool {
	for _, c := range cards {
		if c == id {
			return true
		}
	}
	return false
}

// RemoveCard returns a copy of cards with the first occurrence of id removed.
func RemoveCard(cards []CardID, id CardID) []CardID {
	out := make([]CardID, 0, len(cards))
	removed := false
	for _, c := range cards {
		if !removed && c == id {
			removed = true
			continue
		}
		out = append(out, c)
	}
	return out
}

// RemoveCards returns a copy of cards with every id in toRemove removed once.
func RemoveCards(cards []CardID, toRemove []CardID) []CardID {
	out := cards
	for _, id := range toRemove {
		out = RemoveCard(out, id)
	}
	return out
}
