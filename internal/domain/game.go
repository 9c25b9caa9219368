package domain

import "time"

// GameStatus is the lifecycle stage of a game.
type GameStatus string

const (
	StatusWaiting    GameStatus = "WAITING"
	StatusStarting   GameStatus = "STARTING"
	StatusInProgress GameStatus = "IN_PROGRESS"
	StatusFinished   GameStatus = "FINISHED"
)

// RoomType partitions matchmaking and selects a ruleset.
type RoomType string

const (
	RoomQuick    RoomType = "QUICK"
	RoomStandard RoomType = "STANDARD"
	RoomMarathon RoomType = "MARATHON"
)

// ValidRoomType reports whether the wire value names a known room type.
func ValidRoomType(rt RoomType) bool {
	switch rt {
	case RoomQuick, RoomStandard, RoomMarathon:
		return true
	}
	return false
}

// Ruleset holds the per-room-type game parameters.
type Ruleset struct {
	TotalRounds int          `json:"total_rounds"`
	DeckSize    int          `json:"deck_size"`
	Yaku        YakuSettings `json:"yaku"`
}

// RulesetFor maps a room type to its ruleset.
func RulesetFor(rt RoomType) Ruleset {
	switch rt {
	case RoomQuick:
		return Ruleset{TotalRounds: 3, DeckSize: TotalDeckCards}
	case RoomMarathon:
		return Ruleset{TotalRounds: 12, DeckSize: TotalDeckCards, Yaku: YakuSettings{AllowViewingYaku: true}}
	default:
		return Ruleset{TotalRounds: 6, DeckSize: TotalDeckCards, Yaku: YakuSettings{AllowViewingYaku: true}}
	}
}

// GamePlayer is a participant in a game.
type GamePlayer struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	IsBot     bool   `json:"is_bot"`
	Connected bool   `json:"connected"`
}

// Game is an immutable snapshot of a whole game. Operations return fresh
// snapshots; the store swaps the latest atomically.
type Game struct {
	ID              string         `json:"id"`
	RoomType        RoomType       `json:"room_type"`
	Ruleset         Ruleset        `json:"ruleset"`
	Players         []GamePlayer   `json:"players"`
	Scores          map[string]int `json:"scores"`
	RoundsPlayed    int            `json:"rounds_played"`
	CurrentRound    *Round         `json:"current_round,omitempty"`
	Status          GameStatus     `json:"status"`
	PendingContinue []string       `json:"pending_continue,omitempty"`
	LastRoundWinner string         `json:"last_round_winner,omitempty"`
	WinnerID        string         `json:"winner_id,omitempty"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
}

// NewGame creates a WAITING game with its first player installed.
func NewGame(id string, roomType RoomType, first GamePlayer) *Game {
	now := time.Now().UTC()
	first.Connected = true
	return &Game{
		ID:        id,
		RoomType:  roomType,
		Ruleset:   RulesetFor(roomType),
		Players:   []GamePlayer{first},
		Scores:    map[string]int{first.ID: 0},
		Status:    StatusWaiting,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func (g *Game) clone() *Game {
	out := *g
	out.Players = append([]GamePlayer(nil), g.Players...)
	out.Scores = make(map[string]int, len(g.Scores))
	for pid, s := range g.Scores {
		out.Scores[pid] = s
	}
	out.PendingContinue = append([]string(nil), g.PendingContinue...)
	out.UpdatedAt = time.Now().UTC()
	return &out
}

// HasPlayer reports whether the player participates in this game.
func (g *Game) HasPlayer(playerID string) bool {
	for _, p := range g.Players {
		if p.ID == playerID {
			return true
		}
	}
	return false
}

// Player returns the participant record for the given id.
func (g *Game) Player(playerID string) (GamePlayer, bool) {
	for _, p := range g.Players {
		if p.ID == playerID {
			return p, true
		}
	}
	return GamePlayer{}, false
}

// Opponent returns the other participant's id, or "" before the game fills.
func (g *Game) Opponent(playerID string) string {
	for _, p := range g.Players {
		if p.ID != playerID {
			return p.ID
		}
	}
	return ""
}

// Active reports whether the game still accepts commands.
func (g *Game) Active() bool {
	return g.Status == StatusWaiting || g.Status == StatusStarting || g.Status == StatusInProgress
}

// AddPlayer installs the second player and moves the game to STARTING.
func (g *Game) AddPlayer(p GamePlayer) (*Game, error) {
	if g.Status != StatusWaiting {
		return nil, ErrInvalidTransition
	}
	if len(g.Players) >= 2 {
		return nil, ErrGameFull
	}
	next := g.clone()
	p.Connected = true
	next.Players = append(next.Players, p)
	next.Scores[p.ID] = 0
	next.Status = StatusStarting
	return next, nil
}

// NextDealerID picks the dealer for the next round: the previous round's
// winner, or the first player before any round was won.
func (g *Game) NextDealerID() string {
	if g.LastRoundWinner != "" {
		return g.LastRoundWinner
	}
	return g.Players[0].ID
}

// StartRound deals a new round from the given shuffled deck and moves the
// game to IN_PROGRESS.
func (g *Game) StartRound(deck []CardID) (*Game, error) {
	if g.Status != StatusStarting && g.Status != StatusInProgress {
		return nil, ErrInvalidTransition
	}
	if len(g.Players) != 2 {
		return nil, ErrInvalidTransition
	}
	if g.CurrentRound != nil && g.CurrentRound.FlowState != RoundEnded {
		return nil, ErrInvalidTransition
	}
	next := g.clone()
	dealer := next.NextDealerID()
	next.CurrentRound = DealRound(dealer, next.Opponent(dealer), deck, next.Ruleset.Yaku)
	next.Status = StatusInProgress
	next.PendingContinue = nil
	return next, nil
}

// WithRound swaps in a new round snapshot.
func (g *Game) WithRound(r *Round) *Game {
	next := g.clone()
	next.CurrentRound = r
	return next
}

// CompleteRound applies the current round's settlement to the cumulative
// scores. The round snapshot is retained (ROUND_ENDED) until the next deal.
// Reaching the configured round count finishes the game.
func (g *Game) CompleteRound() (*Game, error) {
	if g.CurrentRound == nil || g.CurrentRound.Settlement == nil {
		return nil, ErrInvalidTransition
	}
	next := g.clone()
	s := next.CurrentRound.Settlement
	if s.WinnerID != "" {
		next.Scores[s.WinnerID] += s.AwardedPoints
		next.LastRoundWinner = s.WinnerID
	}
	next.RoundsPlayed++
	if next.RoundsPlayed >= next.Ruleset.TotalRounds {
		next.finish("")
	} else {
		next.PendingContinue = playerIDs(next.Players)
	}
	return next, nil
}

// ConfirmContinue removes the player from the pending-confirmation list.
func (g *Game) ConfirmContinue(playerID string) (*Game, error) {
	if g.Status != StatusInProgress {
		return nil, ErrInvalidState
	}
	if !g.HasPlayer(playerID) {
		return nil, ErrNotInGame
	}
	next := g.clone()
	out := next.PendingContinue[:0]
	for _, pid := range next.PendingContinue {
		if pid != playerID {
			out = append(out, pid)
		}
	}
	next.PendingContinue = out
	return next, nil
}

// ForceFinish ends the game because a player left or disconnected for good.
// The remaining player wins.
func (g *Game) ForceFinish(leaverID string) (*Game, error) {
	if g.Status == StatusFinished {
		return nil, ErrInvalidTransition
	}
	next := g.clone()
	if next.CurrentRound != nil && next.CurrentRound.FlowState != RoundEnded {
		next.CurrentRound = next.CurrentRound.Forfeit(next.Opponent(leaverID))
	}
	next.finish(next.Opponent(leaverID))
	return next, nil
}

// finish marks the game FINISHED. With no forced winner the cumulative
// scores decide; a tie yields no winner.
func (g *Game) finish(forcedWinner string) {
	g.Status = StatusFinished
	g.PendingContinue = nil
	if forcedWinner != "" {
		g.WinnerID = forcedWinner
		return
	}
	best, winner, tie := -1, "", false
	for pid, score := range g.Scores {
		switch {
		case score > best:
			best, winner, tie = score, pid, false
		case score == best:
			tie = true
		}
	}
	if !tie {
		g.WinnerID = winner
	}
}

// SetConnected flags a player's transport presence on the snapshot.
func (g *Game) SetConnected(playerID string, connected bool) *Game {
	next := g.clone()
	for i := range next.Players {
		if next.Players[i].ID == playerID {
			next.Players[i].Connected = connected
		}
	}
	return next
}

func playerIDs(players []GamePlayer) []string {
	out := make([]string, len(players))
	for i, p := range players {
		out[i] = p.ID
	}
	return out
}
