package domain

import "time"

// FlowState is the point reached within a single turn of a round.
type FlowState string

const (
	AwaitingHandPlay  FlowState = "AWAITING_HAND_PLAY"
	AwaitingSelection FlowState = "AWAITING_SELECTION"
	AwaitingDecision  FlowState = "AWAITING_DECISION"
	RoundEnded        FlowState = "ROUND_ENDED"
)

// Decision is the player's answer after forming a yaku.
type Decision string

const (
	DecisionKoiKoi   Decision = "KOI_KOI"
	DecisionEndRound Decision = "END_ROUND"
)

// EndReason states why a round ended.
type EndReason string

const (
	EndExhausted EndReason = "EXHAUSTED" // both hands empty, no stop
	EndStop      EndReason = "STOP"      // a stop decision after a yaku
	EndInstant   EndReason = "INSTANT"   // deal-time special rule
	EndForfeit   EndReason = "FORFEIT"   // opponent left the game
)

// PlayerArea is one player's cards within a round.
type PlayerArea struct {
	Hand       []CardID `json:"hand"`
	Depository []CardID `json:"depository"`
}

// KoiKoiStatus tracks a player's continuation state within a round.
type KoiKoiStatus struct {
	Multiplier     int `json:"multiplier"`
	TimesContinued int `json:"times_continued"`
}

// StepResult records the outcome of a single placement step (hand play or
// draw). Captured is empty when the card was placed on the field.
type StepResult struct {
	Card          CardID   `json:"card"`
	Captured      []CardID `json:"captured,omitempty"`
	PlacedOnField bool     `json:"placed_on_field"`
	FromDraw      bool     `json:"from_draw"`
}

// PendingSelection holds an unresolved multi-match. HandStep carries the
// already-resolved hand play when the selection belongs to the draw step.
type PendingSelection struct {
	Card            CardID      `json:"card"`
	FromDraw        bool        `json:"from_draw"`
	PossibleTargets []CardID    `json:"possible_targets"`
	HandStep        *StepResult `json:"hand_step,omitempty"`
}

// PendingDecision holds the yaku awaiting a koi-koi or stop choice.
type PendingDecision struct {
	PlayerID   string `json:"player_id"`
	ActiveYaku []Yaku `json:"active_yaku"`
	NewYaku    []Yaku `json:"new_yaku"`
}

// SettlementInfo describes a finished round. WinnerID is empty on a draw.
type SettlementInfo struct {
	Reason        EndReason        `json:"reason"`
	InstantReason InstantEndReason `json:"instant_reason,omitempty"`
	WinnerID      string           `json:"winner_id,omitempty"`
	Yaku          []Yaku           `json:"yaku,omitempty"`
	BasePoints    int              `json:"base_points"`
	Multiplier    int              `json:"multiplier"`
	AwardedPoints int              `json:"awarded_points"`
	EndedAt       time.Time        `json:"ended_at"`
}

// TurnResult is a transient view of the last completed turn used to build
// outbound events. It is replaced on every mutating operation.
type TurnResult struct {
	PlayerID string      `json:"player_id"`
	HandStep *StepResult `json:"hand_step,omitempty"`
	DrawStep *StepResult `json:"draw_step,omitempty"`
	NewYaku  []Yaku      `json:"new_yaku,omitempty"`
}

// Round is an immutable snapshot of one round in progress. Operations return
// fresh snapshots and never mutate the receiver.
type Round struct {
	DealerID       string                  `json:"dealer_id"`
	PlayerOrder    [2]string               `json:"player_order"` // dealer first
	Field          []CardID                `json:"field"`
	Deck           []CardID                `json:"deck"`
	Areas          map[string]PlayerArea   `json:"areas"`
	KoiKoi         map[string]KoiKoiStatus `json:"koi_koi"`
	ActiveYaku     map[string][]Yaku       `json:"active_yaku"`
	Settings       YakuSettings            `json:"settings"`
	FlowState      FlowState               `json:"flow_state"`
	ActivePlayerID string                  `json:"active_player_id"`
	Pending        *PendingSelection       `json:"pending_selection,omitempty"`
	Decision       *PendingDecision        `json:"pending_decision,omitempty"`
	Settlement     *SettlementInfo         `json:"settlement,omitempty"`
	LastTurn       *TurnResult             `json:"-"`
}

// DealRound deals a fresh round from the given deck: eight cards per hand,
// eight to the field, the rest face down. The dealer acts first. Instant-end
// rules are checked before the round opens.
func DealRound(dealerID, opponentID string, deck []CardID, settings YakuSettings) *Round {
	r := &Round{
		DealerID:       dealerID,
		PlayerOrder:    [2]string{dealerID, opponentID},
		Field:          append([]CardID(nil), deck[16:24]...),
		Deck:           append([]CardID(nil), deck[24:]...),
		Settings:       settings,
		FlowState:      AwaitingHandPlay,
		ActivePlayerID: dealerID,
		Areas: map[string]PlayerArea{
			dealerID:   {Hand: append([]CardID(nil), deck[0:8]...)},
			opponentID: {Hand: append([]CardID(nil), deck[8:16]...)},
		},
		KoiKoi: map[string]KoiKoiStatus{
			dealerID:   {Multiplier: 1},
			opponentID: {Multiplier: 1},
		},
		ActiveYaku: map[string][]Yaku{},
	}

	hands := map[string][]CardID{
		dealerID:   r.Areas[dealerID].Hand,
		opponentID: r.Areas[opponentID].Hand,
	}
	if ie := DetectInstantEnd(r.PlayerOrder[:], hands, r.Field); ie != nil {
		r.FlowState = RoundEnded
		r.ActivePlayerID = ""
		r.Settlement = &SettlementInfo{
			Reason:        EndInstant,
			InstantReason: ie.Reason,
			WinnerID:      ie.WinnerID,
			BasePoints:    ie.Points,
			Multiplier:    1,
			AwardedPoints: ie.Points,
			EndedAt:       time.Now().UTC(),
		}
	}
	return r
}

// Opponent returns the other player in the round.
func (r *Round) Opponent(playerID string) string {
	if r.PlayerOrder[0] == playerID {
		return r.PlayerOrder[1]
	}
	return r.PlayerOrder[0]
}

func (r *Round) hasPlayer(playerID string) bool {
	return r.PlayerOrder[0] == playerID || r.PlayerOrder[1] == playerID
}

// clone produces a deep copy so operations can build a new snapshot.
func (r *Round) clone() *Round {
	out := *r
	out.Field = append([]CardID(nil), r.Field...)
	out.Deck = append([]CardID(nil), r.Deck...)
	out.Areas = make(map[string]PlayerArea, len(r.Areas))
	for pid, a := range r.Areas {
		out.Areas[pid] = PlayerArea{
			Hand:       append([]CardID(nil), a.Hand...),
			Depository: append([]CardID(nil), a.Depository...),
		}
	}
	out.KoiKoi = make(map[string]KoiKoiStatus, len(r.KoiKoi))
	for pid, s := range r.KoiKoi {
		out.KoiKoi[pid] = s
	}
	out.ActiveYaku = make(map[string][]Yaku, len(r.ActiveYaku))
	for pid, ys := range r.ActiveYaku {
		out.ActiveYaku[pid] = append([]Yaku(nil), ys...)
	}
	out.LastTurn = nil
	return &out
}

// PlayHandCard plays a card from the active player's hand. With zero field
// matches the card joins the field; with one it captures; with two or more
// the play either captures the given target or parks in a pending selection.
// When the hand step resolves, the draw step runs in the same operation.
func (r *Round) PlayHandCard(playerID string, card CardID, target CardID) (*Round, error) {
	if r.FlowState != AwaitingHandPlay {
		return nil, ErrInvalidState
	}
	if !r.hasPlayer(playerID) {
		return nil, ErrNotInGame
	}
	if r.ActivePlayerID != playerID {
		return nil, ErrWrongPlayer
	}
	if !ContainsCard(r.Areas[playerID].Hand, card) {
		return nil, ErrInvalidCard
	}

	next := r.clone()
	area := next.Areas[playerID]
	area.Hand = RemoveCard(area.Hand, card)
	next.Areas[playerID] = area

	matches := MatchableCards(card, next.Field)
	switch {
	case len(matches) >= 2 && target == "":
		next.FlowState = AwaitingSelection
		next.Pending = &PendingSelection{Card: card, PossibleTargets: matches}
		return next, nil
	case len(matches) >= 2:
		if !ContainsCard(matches, target) {
			return nil, ErrInvalidTarget
		}
		step := next.capture(playerID, card, target, false)
		return next.drawStep(playerID, &step)
	case len(matches) == 1:
		step := next.capture(playerID, card, matches[0], false)
		return next.drawStep(playerID, &step)
	default:
		next.Field = append(next.Field, card)
		step := StepResult{Card: card, PlacedOnField: true}
		return next.drawStep(playerID, &step)
	}
}

// SelectTarget resolves a pending multi-match selection. A hand-step
// selection continues into the draw step; a draw-step selection completes
// the turn.
func (r *Round) SelectTarget(playerID string, source, target CardID) (*Round, error) {
	if r.FlowState != AwaitingSelection {
		return nil, ErrInvalidState
	}
	if !r.hasPlayer(playerID) {
		return nil, ErrNotInGame
	}
	if r.ActivePlayerID != playerID {
		return nil, ErrWrongPlayer
	}
	if r.Pending == nil || r.Pending.Card != source {
		return nil, ErrInvalidCard
	}
	if !ContainsCard(r.Pending.PossibleTargets, target) {
		return nil, ErrInvalidTarget
	}

	next := r.clone()
	pending := *r.Pending
	next.Pending = nil
	next.FlowState = AwaitingHandPlay
	step := next.capture(playerID, pending.Card, target, pending.FromDraw)

	if !pending.FromDraw {
		return next.drawStep(playerID, &step)
	}
	return next.finishTurn(playerID, pending.HandStep, &step)
}

// MakeDecision answers a pending koi-koi prompt. KOI_KOI keeps the turn with
// the same player; END_ROUND settles the round in their favour.
func (r *Round) MakeDecision(playerID string, decision Decision) (*Round, error) {
	if r.FlowState != AwaitingDecision {
		return nil, ErrInvalidState
	}
	if !r.hasPlayer(playerID) {
		return nil, ErrNotInGame
	}
	if r.ActivePlayerID != playerID || r.Decision == nil || r.Decision.PlayerID != playerID {
		return nil, ErrWrongPlayer
	}

	next := r.clone()
	switch decision {
	case DecisionKoiKoi:
		if len(next.Areas[playerID].Hand) == 0 {
			return nil, ErrCannotContinue
		}
		status := next.KoiKoi[playerID]
		status.Multiplier++
		status.TimesContinued++
		next.KoiKoi[playerID] = status
		next.Decision = nil
		next.FlowState = AwaitingHandPlay
		return next, nil
	case DecisionEndRound:
		yaku := append([]Yaku(nil), r.Decision.ActiveYaku...)
		next.Decision = nil
		next.settle(playerID, yaku)
		return next, nil
	default:
		return nil, ErrInvalidState
	}
}

// Forfeit settles the round in favour of the remaining player.
func (r *Round) Forfeit(winnerID string) *Round {
	next := r.clone()
	next.Pending = nil
	next.Decision = nil
	next.FlowState = RoundEnded
	next.ActivePlayerID = ""
	next.Settlement = &SettlementInfo{
		Reason:     EndForfeit,
		WinnerID:   winnerID,
		Multiplier: 1,
		EndedAt:    time.Now().UTC(),
	}
	return next
}

// capture moves the played card and its target into the player's depository.
func (r *Round) capture(playerID string, played, target CardID, fromDraw bool) StepResult {
	r.Field = RemoveCard(r.Field, target)
	area := r.Areas[playerID]
	area.Depository = append(area.Depository, played, target)
	r.Areas[playerID] = area
	return StepResult{Card: played, Captured: []CardID{target}, FromDraw: fromDraw}
}

// drawStep pops the deck and applies the same 0/1/many branching as the
// hand step. A multi-match parks the drawn card in a pending selection that
// remembers the resolved hand step.
func (r *Round) drawStep(playerID string, handStep *StepResult) (*Round, error) {
	if len(r.Deck) == 0 {
		return r.finishTurn(playerID, handStep, nil)
	}
	drawn := r.Deck[0]
	r.Deck = r.Deck[1:]

	matches := MatchableCards(drawn, r.Field)
	switch {
	case len(matches) >= 2:
		r.FlowState = AwaitingSelection
		r.Pending = &PendingSelection{Card: drawn, FromDraw: true, PossibleTargets: matches, HandStep: handStep}
		r.LastTurn = &TurnResult{PlayerID: playerID, HandStep: handStep}
		return r, nil
	case len(matches) == 1:
		step := r.capture(playerID, drawn, matches[0], true)
		return r.finishTurn(playerID, handStep, &step)
	default:
		r.Field = append(r.Field, drawn)
		step := StepResult{Card: drawn, PlacedOnField: true, FromDraw: true}
		return r.finishTurn(playerID, handStep, &step)
	}
}

// finishTurn re-scans the depository for yaku. A newly formed yaku suspends
// the turn on a decision prompt; otherwise control passes to the opponent,
// or the round settles if both hands are empty.
func (r *Round) finishTurn(playerID string, handStep, drawStep *StepResult) (*Round, error) {
	current := DetectYaku(r.Areas[playerID].Depository, r.Settings)
	newYaku := NewlyFormed(r.ActiveYaku[playerID], current)
	r.ActiveYaku[playerID] = current
	r.LastTurn = &TurnResult{PlayerID: playerID, HandStep: handStep, DrawStep: drawStep, NewYaku: newYaku}

	if len(newYaku) > 0 {
		r.FlowState = AwaitingDecision
		r.Decision = &PendingDecision{PlayerID: playerID, ActiveYaku: current, NewYaku: newYaku}
		return r, nil
	}

	if r.handsEmpty() {
		r.settleExhausted()
		return r, nil
	}

	// Koi-koi keeps the turn with one player, so hands can empty at
	// different times; control skips a player with no cards left.
	next := r.Opponent(playerID)
	if len(r.Areas[next].Hand) == 0 {
		next = playerID
	}
	r.ActivePlayerID = next
	r.FlowState = AwaitingHandPlay
	return r, nil
}

func (r *Round) handsEmpty() bool {
	for _, pid := range r.PlayerOrder {
		if len(r.Areas[pid].Hand) > 0 {
			return false
		}
	}
	return true
}

// settle ends the round in the winner's favour with their active yaku.
func (r *Round) settle(winnerID string, yaku []Yaku) {
	base := BasePoints(yaku)
	mult := r.KoiKoi[winnerID].Multiplier
	awarded := base * mult
	if r.KoiKoi[r.Opponent(winnerID)].TimesContinued > 0 {
		awarded *= 2
	}
	r.FlowState = RoundEnded
	r.ActivePlayerID = ""
	r.Settlement = &SettlementInfo{
		Reason:        EndStop,
		WinnerID:      winnerID,
		Yaku:          yaku,
		BasePoints:    base,
		Multiplier:    mult,
		AwardedPoints: awarded,
		EndedAt:       time.Now().UTC(),
	}
}

// settleExhausted ends the round as a scoreless draw.
func (r *Round) settleExhausted() {
	r.FlowState = RoundEnded
	r.ActivePlayerID = ""
	r.Settlement = &SettlementInfo{
		Reason:     EndExhausted,
		Multiplier: 1,
		EndedAt:    time.Now().UTC(),
	}
}

// CardCount sums every card in the round, including a card parked in a
// pending selection; it must equal TotalDeckCards.
func (r *Round) CardCount() int {
	n := len(r.Field) + len(r.Deck)
	for _, a := range r.Areas {
		n += len(a.Hand) + len(a.Depository)
	}
	if r.Pending != nil {
		n++
	}
	return n
}
