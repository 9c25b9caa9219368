package domain

// YakuType identifies a scoring pattern over a player's depository.
type YakuType string

const (
	YakuGokou       YakuType = "GOKOU"        // five brights
	YakuShikou      YakuType = "SHIKOU"       // four brights without the rain man
	YakuAmeShikou   YakuType = "AME_SHIKOU"   // four brights including the rain man
	YakuSankou      YakuType = "SANKOU"       // three brights without the rain man
	YakuInoshikacho YakuType = "INOSHIKACHO"  // boar, deer, butterflies
	YakuAkatan      YakuType = "AKATAN"       // three poetry ribbons
	YakuAotan       YakuType = "AOTAN"        // three blue ribbons
	YakuTsukimizake YakuType = "TSUKIMI_ZAKE" // moon and sake cup
	YakuHanamizake  YakuType = "HANAMI_ZAKE"  // curtain and sake cup
	YakuTane        YakuType = "TANE"         // five or more animals
	YakuTan         YakuType = "TAN"          // five or more ribbons
	YakuKasu        YakuType = "KASU"         // ten or more chaff
)

// Yaku is a recognized scoring pattern with its point value and the cards
// that formed it.
type Yaku struct {
	Type   YakuType `json:"type"`
	Points int      `json:"points"`
	Cards  []CardID `json:"cards"`
}

// YakuSettings toggles the ruleset-dependent patterns.
type YakuSettings struct {
	AllowViewingYaku bool `json:"allow_viewing_yaku"` // tsukimi-zake and hanami-zake
}

// DetectYaku inspects a depository and returns every active yaku. The bright
// yaku are mutually exclusive; only the strongest applies.
func DetectYaku(depository []CardID, settings YakuSettings) []Yaku {
	var (
		brights, animals, ribbons, chaff []CardID
		poetry, blue                     []CardID
	)
	for _, id := range depository {
		c, ok := CardByID(id)
		if !ok {
			continue
		}
		switch c.Category {
		case Bright:
			brights = append(brights, id)
		case Animal:
			animals = append(animals, id)
		case Ribbon:
			ribbons = append(ribbons, id)
			switch c.Ribbon {
			case PoetryRibbon:
				poetry = append(poetry, id)
			case BlueRibbon:
				blue = append(blue, id)
			}
		case Chaff:
			chaff = append(chaff, id)
		}
	}

	var out []Yaku

	if y, ok := brightYaku(brights); ok {
		out = append(out, y)
	}
	if ContainsCard(depository, CardBoar) && ContainsCard(depository, CardDeer) && ContainsCard(depository, CardButterflies) {
		out = append(out, Yaku{Type: YakuInoshikacho, Points: 5, Cards: []CardID{CardBoar, CardDeer, CardButterflies}})
	}
	if len(poetry) >= 3 {
		out = append(out, Yaku{Type: YakuAkatan, Points: 5, Cards: poetry})
	}
	if len(blue) >= 3 {
		out = append(out, Yaku{Type: YakuAotan, Points: 5, Cards: blue})
	}
	if settings.AllowViewingYaku {
		if ContainsCard(depository, CardMoon) && ContainsCard(depository, CardSakeCup) {
			out = append(out, Yaku{Type: YakuTsukimizake, Points: 5, Cards: []CardID{CardMoon, CardSakeCup}})
		}
		if ContainsCard(depository, CardCurtain) && ContainsCard(depository, CardSakeCup) {
			out = append(out, Yaku{Type: YakuHanamizake, Points: 5, Cards: []CardID{CardCurtain, CardSakeCup}})
		}
	}
	if len(animals) >= 5 {
		out = append(out, Yaku{Type: YakuTane, Points: 1 + len(animals) - 5, Cards: animals})
	}
	if len(ribbons) >= 5 {
		out = append(out, Yaku{Type: YakuTan, Points: 1 + len(ribbons) - 5, Cards: ribbons})
	}
	if len(chaff) >= 10 {
		out = append(out, Yaku{Type: YakuKasu, Points: 1 + len(chaff) - 10, Cards: chaff})
	}

	return out
}

func brightYaku(brights []CardID) (Yaku, bool) {
	hasRain := ContainsCard(brights, CardRainMan)
	switch {
	case len(brights) == 5:
		return Yaku{Type: YakuGokou, Points: 10, Cards: brights}, true
	case len(brights) == 4 && !hasRain:
		return Yaku{Type: YakuShikou, Points: 8, Cards: brights}, true
	case len(brights) == 4:
		return Yaku{Type: YakuAmeShikou, Points: 7, Cards: brights}, true
	case len(brights) == 3 && !hasRain:
		return Yaku{Type: YakuSankou, Points: 6, Cards: brights}, true
	}
	return Yaku{}, false
}

// BasePoints sums the point values of the given yaku list.
func BasePoints(yaku []Yaku) int {
	total := 0
	for _, y := range yaku {
		total += y.Points
	}
	return total
}

// NewlyFormed returns the yaku in current that were not active in previous.
// A yaku also counts as new when its point value grew (tane/tan/kasu extend).
func NewlyFormed(previous, current []Yaku) []Yaku {
	prev := make(map[YakuType]int, len(previous))
	for _, y := range previous {
		prev[y.Type] = y.Points
	}
	var out []Yaku
	for _, y := range current {
		if pts, ok := prev[y.Type]; !ok || y.Points > pts {
			out = append(out, y)
		}
	}
	return out
}
