package app

import (
	"time"

	"github.com/ychleo102615/hanahuda-server/internal/domain"
)

// EventType tags an outbound gateway event envelope.
type EventType string

const (
	EventMatchmakingStatus    EventType = "MATCHMAKING_STATUS"
	EventMatchFound           EventType = "MATCH_FOUND"
	EventMatchmakingCancelled EventType = "MATCHMAKING_CANCELLED"

	EventRoundDealt           EventType = "ROUND_DEALT"
	EventTurnCompleted        EventType = "TURN_COMPLETED"
	EventSelectionRequired    EventType = "SELECTION_REQUIRED"
	EventTurnProgress         EventType = "TURN_PROGRESS_AFTER_SELECTION"
	EventDecisionRequired     EventType = "DECISION_REQUIRED"
	EventDecisionMade         EventType = "DECISION_MADE"
	EventRoundScored          EventType = "ROUND_SCORED"
	EventRoundDrawn           EventType = "ROUND_DRAWN"
	EventRoundEndedInstantly  EventType = "ROUND_ENDED_INSTANTLY"
	EventGameFinished         EventType = "GAME_FINISHED"
	EventTurnError            EventType = "TURN_ERROR"
	EventGameError            EventType = "GAME_ERROR"
	EventGameSnapshotRestore  EventType = "GAME_SNAPSHOT_RESTORE"
)

// GatewayEvent is the envelope delivered on a player's outbound stream.
// EventID is monotonically increasing per player stream.
type GatewayEvent struct {
	EventID   uint64    `json:"event_id"`
	Type      EventType `json:"type"`
	GameID    string    `json:"game_id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	Payload   any       `json:"payload"`
}

// TargetedEvent pairs a gateway event with its recipient, mirroring the
// recipient targeting on app events.
type TargetedEvent struct {
	PlayerID string
	Event    GatewayEvent
}

// MatchmakingStatusPayload reports an entry's status change.
type MatchmakingStatusPayload struct {
	EntryID  string          `json:"entry_id"`
	RoomType domain.RoomType `json:"room_type"`
	Status   EntryStatus     `json:"status"`
}

// MatchFoundPayload tells a player who they were paired with.
type MatchFoundPayload struct {
	GameID       string          `json:"game_id"`
	RoomType     domain.RoomType `json:"room_type"`
	MatchType    MatchType       `json:"match_type"`
	OpponentID   string          `json:"opponent_id"`
	OpponentName string          `json:"opponent_name"`
}

// MatchmakingCancelledPayload confirms an entry was withdrawn.
type MatchmakingCancelledPayload struct {
	EntryID string `json:"entry_id"`
	Reason  string `json:"reason"`
}

// RoundDealtPayload is a player-scoped view of a freshly dealt round.
type RoundDealtPayload struct {
	RoundNumber       int             `json:"round_number"`
	TotalRounds       int             `json:"total_rounds"`
	DealerID          string          `json:"dealer_id"`
	ActivePlayerID    string          `json:"active_player_id"`
	Hand              []domain.CardID `json:"hand"`
	Field             []domain.CardID `json:"field"`
	OpponentCardCount int             `json:"opponent_card_count"`
	DeckCount         int             `json:"deck_count"`
	Scores            map[string]int  `json:"scores"`
}

// TurnCompletedPayload describes a fully resolved turn.
type TurnCompletedPayload struct {
	PlayerID     string             `json:"player_id"`
	HandStep     *domain.StepResult `json:"hand_step,omitempty"`
	DrawStep     *domain.StepResult `json:"draw_step,omitempty"`
	Field        []domain.CardID    `json:"field"`
	DeckCount    int                `json:"deck_count"`
	HandCounts   map[string]int     `json:"hand_counts"`
	NextPlayerID string             `json:"next_player_id"`
}

// SelectionRequiredPayload asks the active player to pick a capture target.
type SelectionRequiredPayload struct {
	PlayerID        string             `json:"player_id"`
	Card            domain.CardID      `json:"card"`
	FromDraw        bool               `json:"from_draw"`
	PossibleTargets []domain.CardID    `json:"possible_targets"`
	HandStep        *domain.StepResult `json:"hand_step,omitempty"`
}

// TurnProgressPayload reports a resolved selection mid-turn.
type TurnProgressPayload struct {
	PlayerID  string             `json:"player_id"`
	Step      *domain.StepResult `json:"step"`
	Field     []domain.CardID    `json:"field"`
	DeckCount int                `json:"deck_count"`
}

// DecisionRequiredPayload asks the active player for koi-koi or stop.
type DecisionRequiredPayload struct {
	PlayerID   string        `json:"player_id"`
	NewYaku    []domain.Yaku `json:"new_yaku"`
	ActiveYaku []domain.Yaku `json:"active_yaku"`
}

// DecisionMadePayload announces the decision to both players.
type DecisionMadePayload struct {
	PlayerID   string          `json:"player_id"`
	Decision   domain.Decision `json:"decision"`
	Multiplier int             `json:"multiplier"`
}

// RoundScoredPayload announces a settled round.
type RoundScoredPayload struct {
	WinnerID         string        `json:"winner_id"`
	Yaku             []domain.Yaku `json:"yaku"`
	BasePoints       int           `json:"base_points"`
	Multiplier       int           `json:"multiplier"`
	AwardedPoints    int           `json:"awarded_points"`
	Scores           map[string]int `json:"scores"`
	RoundsPlayed     int           `json:"rounds_played"`
	CountdownSeconds int           `json:"countdown_seconds"`
}

// RoundDrawnPayload announces a scoreless round end.
type RoundDrawnPayload struct {
	Scores           map[string]int `json:"scores"`
	RoundsPlayed     int            `json:"rounds_played"`
	CountdownSeconds int            `json:"countdown_seconds"`
}

// RoundEndedInstantlyPayload announces a deal-time special ending.
type RoundEndedInstantlyPayload struct {
	Reason           domain.InstantEndReason `json:"reason"`
	WinnerID         string                  `json:"winner_id,omitempty"`
	AwardedPoints    int                     `json:"awarded_points"`
	Scores           map[string]int          `json:"scores"`
	RoundsPlayed     int                     `json:"rounds_played"`
	CountdownSeconds int                     `json:"countdown_seconds"`
}

// GameFinishedPayload closes a game for both players.
type GameFinishedPayload struct {
	WinnerID    string         `json:"winner_id,omitempty"`
	FinalScores map[string]int `json:"final_scores"`
	Reason      string         `json:"reason"`
}

// ErrorPayload carries a command-scoped or game-scoped failure.
type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// RoundView is the player-scoped projection of a round in progress.
type RoundView struct {
	DealerID          string                   `json:"dealer_id"`
	ActivePlayerID    string                   `json:"active_player_id"`
	FlowState         domain.FlowState         `json:"flow_state"`
	Hand              []domain.CardID          `json:"hand"`
	Field             []domain.CardID          `json:"field"`
	OpponentCardCount int                      `json:"opponent_card_count"`
	DeckCount         int                      `json:"deck_count"`
	Depositories      map[string][]domain.CardID `json:"depositories"`
	KoiKoi            map[string]domain.KoiKoiStatus `json:"koi_koi"`
	Pending           *domain.PendingSelection `json:"pending_selection,omitempty"`
	Decision          *domain.PendingDecision  `json:"pending_decision,omitempty"`
	Settlement        *domain.SettlementInfo   `json:"settlement,omitempty"`
}

// SnapshotRestorePayload resynchronises a reconnecting player.
type SnapshotRestorePayload struct {
	Status       domain.GameStatus `json:"status"`
	RoomType     domain.RoomType   `json:"room_type"`
	Players      []domain.GamePlayer `json:"players"`
	Scores       map[string]int    `json:"scores"`
	RoundsPlayed int               `json:"rounds_played"`
	TotalRounds  int               `json:"total_rounds"`
	Round        *RoundView        `json:"round,omitempty"`
}

// MatchType distinguishes human pairings from bot fallbacks.
type MatchType string

const (
	MatchHuman MatchType = "HUMAN"
	MatchBot   MatchType = "BOT"
)

// BotPlayerID is the sentinel identity installed as the second player on a
// bot fallback. The prefix keeps bot ids recognisable in logs and stats.
const BotPlayerID = "bot:computer"

// BotPlayerName is the display name shown for the AI opponent.
const BotPlayerName = "Computer"

// Internal bus topics.
type Topic string

const (
	TopicMatchFound   Topic = "MATCH_FOUND"
	TopicGameFinished Topic = "GAME_FINISHED"
)

// MatchFoundEvent crosses from matchmaking to the session service.
type MatchFoundEvent struct {
	Player1ID   string
	Player1Name string
	Player2ID   string
	Player2Name string
	RoomType    domain.RoomType
	MatchType   MatchType
	MatchedAt   time.Time
}

// GameFinishedEvent crosses from the session service to cleanup listeners.
type GameFinishedEvent struct {
	GameID      string
	WinnerID    string
	FinalScores map[string]int
	Players     []string
	FinishedAt  time.Time
}
