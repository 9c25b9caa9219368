package app

import (
	"github.com/ychleo102615/hanahuda-server/internal/domain"
)

// EventMapper projects game snapshots into player-scoped gateway events.
// Hands are only visible to their owner; everything else is shared.
type EventMapper struct {
	displaySeconds int
}

// NewEventMapper constructs a mapper; displaySeconds is echoed on the
// settlement events so clients can render the countdown.
func NewEventMapper(displaySeconds int) *EventMapper {
	return &EventMapper{displaySeconds: displaySeconds}
}

// broadcast builds one copy of the event per participant.
func broadcast(g *domain.Game, typ EventType, payload any) []TargetedEvent {
	out := make([]TargetedEvent, 0, len(g.Players))
	for _, p := range g.Players {
		out = append(out, TargetedEvent{
			PlayerID: p.ID,
			Event:    GatewayEvent{Type: typ, GameID: g.ID, Payload: payload},
		})
	}
	return out
}

// MatchFound tells both players who they were paired with.
func (m *EventMapper) MatchFound(g *domain.Game, matchType MatchType) []TargetedEvent {
	out := make([]TargetedEvent, 0, len(g.Players))
	for _, p := range g.Players {
		opp, _ := g.Player(g.Opponent(p.ID))
		out = append(out, TargetedEvent{
			PlayerID: p.ID,
			Event: GatewayEvent{
				Type:   EventMatchFound,
				GameID: g.ID,
				Payload: MatchFoundPayload{
					GameID:       g.ID,
					RoomType:     g.RoomType,
					MatchType:    matchType,
					OpponentID:   opp.ID,
					OpponentName: opp.Name,
				},
			},
		})
	}
	return out
}

// RoundDealt sends each player their private view of the fresh round.
func (m *EventMapper) RoundDealt(g *domain.Game) []TargetedEvent {
	r := g.CurrentRound
	out := make([]TargetedEvent, 0, len(g.Players))
	for _, p := range g.Players {
		out = append(out, TargetedEvent{
			PlayerID: p.ID,
			Event: GatewayEvent{
				Type:   EventRoundDealt,
				GameID: g.ID,
				Payload: RoundDealtPayload{
					RoundNumber:       g.RoundsPlayed + 1,
					TotalRounds:       g.Ruleset.TotalRounds,
					DealerID:          r.DealerID,
					ActivePlayerID:    r.ActivePlayerID,
					Hand:              r.Areas[p.ID].Hand,
					Field:             r.Field,
					OpponentCardCount: len(r.Areas[g.Opponent(p.ID)].Hand),
					DeckCount:         len(r.Deck),
					Scores:            g.Scores,
				},
			},
		})
	}
	return out
}

// AfterPlay maps the state reached by a PLAY_CARD command.
func (m *EventMapper) AfterPlay(g *domain.Game, actorID string) []TargetedEvent {
	return m.afterTurnState(g, actorID)
}

// AfterSelect maps the state reached by a SELECT_TARGET command: the
// resolved step first, then whatever the turn progressed into. fromDraw
// states which selection the command settled.
func (m *EventMapper) AfterSelect(g *domain.Game, actorID string, fromDraw bool) []TargetedEvent {
	r := g.CurrentRound
	var out []TargetedEvent
	if step := resolvedStep(r, fromDraw); step != nil {
		out = broadcast(g, EventTurnProgress, TurnProgressPayload{
			PlayerID:  actorID,
			Step:      step,
			Field:     r.Field,
			DeckCount: len(r.Deck),
		})
	}
	return append(out, m.afterTurnState(g, actorID)...)
}

// resolvedStep finds the capture a selection just settled.
func resolvedStep(r *domain.Round, fromDraw bool) *domain.StepResult {
	if fromDraw {
		if r.LastTurn != nil {
			return r.LastTurn.DrawStep
		}
		return nil
	}
	if r.LastTurn != nil && r.LastTurn.HandStep != nil {
		return r.LastTurn.HandStep
	}
	if r.Pending != nil {
		return r.Pending.HandStep
	}
	return nil
}

// AfterDecision maps the state reached by a MAKE_DECISION command.
func (m *EventMapper) AfterDecision(g *domain.Game, actorID string, decision domain.Decision) []TargetedEvent {
	r := g.CurrentRound
	out := broadcast(g, EventDecisionMade, DecisionMadePayload{
		PlayerID:   actorID,
		Decision:   decision,
		Multiplier: r.KoiKoi[actorID].Multiplier,
	})
	return out
}

// afterTurnState emits the event matching the round's flow state after a
// hand play or selection resolved.
func (m *EventMapper) afterTurnState(g *domain.Game, actorID string) []TargetedEvent {
	r := g.CurrentRound
	switch r.FlowState {
	case domain.AwaitingSelection:
		return broadcast(g, EventSelectionRequired, SelectionRequiredPayload{
			PlayerID:        actorID,
			Card:            r.Pending.Card,
			FromDraw:        r.Pending.FromDraw,
			PossibleTargets: r.Pending.PossibleTargets,
			HandStep:        r.Pending.HandStep,
		})
	case domain.AwaitingDecision:
		return broadcast(g, EventDecisionRequired, DecisionRequiredPayload{
			PlayerID:   actorID,
			NewYaku:    r.Decision.NewYaku,
			ActiveYaku: r.Decision.ActiveYaku,
		})
	default:
		return m.turnCompleted(g, actorID)
	}
}

func (m *EventMapper) turnCompleted(g *domain.Game, actorID string) []TargetedEvent {
	r := g.CurrentRound
	counts := make(map[string]int, len(r.Areas))
	for pid, a := range r.Areas {
		counts[pid] = len(a.Hand)
	}
	payload := TurnCompletedPayload{
		PlayerID:     actorID,
		Field:        r.Field,
		DeckCount:    len(r.Deck),
		HandCounts:   counts,
		NextPlayerID: r.ActivePlayerID,
	}
	if r.LastTurn != nil {
		payload.HandStep = r.LastTurn.HandStep
		payload.DrawStep = r.LastTurn.DrawStep
	}
	return broadcast(g, EventTurnCompleted, payload)
}

// RoundEnd emits the settlement event for an ended round. Callers apply the
// settlement to the game's scores before mapping.
func (m *EventMapper) RoundEnd(g *domain.Game) []TargetedEvent {
	s := g.CurrentRound.Settlement
	switch s.Reason {
	case domain.EndInstant:
		return broadcast(g, EventRoundEndedInstantly, RoundEndedInstantlyPayload{
			Reason:           s.InstantReason,
			WinnerID:         s.WinnerID,
			AwardedPoints:    s.AwardedPoints,
			Scores:           g.Scores,
			RoundsPlayed:     g.RoundsPlayed,
			CountdownSeconds: m.displaySeconds,
		})
	case domain.EndExhausted:
		return broadcast(g, EventRoundDrawn, RoundDrawnPayload{
			Scores:           g.Scores,
			RoundsPlayed:     g.RoundsPlayed,
			CountdownSeconds: m.displaySeconds,
		})
	default:
		return broadcast(g, EventRoundScored, RoundScoredPayload{
			WinnerID:         s.WinnerID,
			Yaku:             s.Yaku,
			BasePoints:       s.BasePoints,
			Multiplier:       s.Multiplier,
			AwardedPoints:    s.AwardedPoints,
			Scores:           g.Scores,
			RoundsPlayed:     g.RoundsPlayed,
			CountdownSeconds: m.displaySeconds,
		})
	}
}

// GameFinished closes the game for both players.
func (m *EventMapper) GameFinished(g *domain.Game, reason string) []TargetedEvent {
	return broadcast(g, EventGameFinished, GameFinishedPayload{
		WinnerID:    g.WinnerID,
		FinalScores: g.Scores,
		Reason:      reason,
	})
}

// Snapshot builds a reconnecting player's full resynchronisation view.
func (m *EventMapper) Snapshot(g *domain.Game, viewerID string) GatewayEvent {
	payload := SnapshotRestorePayload{
		Status:       g.Status,
		RoomType:     g.RoomType,
		Players:      g.Players,
		Scores:       g.Scores,
		RoundsPlayed: g.RoundsPlayed,
		TotalRounds:  g.Ruleset.TotalRounds,
	}
	if r := g.CurrentRound; r != nil {
		deps := make(map[string][]domain.CardID, len(r.Areas))
		for pid, a := range r.Areas {
			deps[pid] = a.Depository
		}
		view := &RoundView{
			DealerID:          r.DealerID,
			ActivePlayerID:    r.ActivePlayerID,
			FlowState:         r.FlowState,
			Hand:              r.Areas[viewerID].Hand,
			Field:             r.Field,
			OpponentCardCount: len(r.Areas[g.Opponent(viewerID)].Hand),
			DeckCount:         len(r.Deck),
			Depositories:      deps,
			KoiKoi:            r.KoiKoi,
			Settlement:        r.Settlement,
		}
		// Pending prompts are only the active player's business.
		if r.ActivePlayerID == viewerID {
			view.Pending = r.Pending
			view.Decision = r.Decision
		}
		payload.Round = view
	}
	return GatewayEvent{Type: EventGameSnapshotRestore, GameID: g.ID, Payload: payload}
}
