package app

import (
	"context"
	"encoding/json"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ychleo102615/hanahuda-server/internal/config"
	"github.com/ychleo102615/hanahuda-server/internal/domain"
	"github.com/ychleo102615/hanahuda-server/internal/metrics"
)

// Game-finish reasons carried on GAME_FINISHED payloads.
const (
	FinishCompleted    = "COMPLETED"
	FinishPlayerLeft   = "PLAYER_LEFT"
	FinishDisconnected = "DISCONNECTED"
)

// ServiceDeps bundles the collaborators of the session service. Repo, Logs,
// Stats and Identities may be nil for a pure in-memory deployment.
type ServiceDeps struct {
	Store      *GameStore
	Repo       GameRepository
	Logs       GameLogRepository
	Stats      StatsRepository
	Identities PlayerRepository
	Bus        *InternalBus
	Players    *PlayerBus
	Timers     *TimerService
	Limiter    *RateLimiter
	Matchmaker *Matchmaker
	RNG        *rand.Rand
}

// Service is the game session runtime: it serializes commands against a game
// behind a per-game lock and orchestrates validation, the domain operation,
// event fanout, timer re-arming and persistence.
type Service struct {
	log     zerolog.Logger
	cfg     *config.Config
	store   *GameStore
	repo    GameRepository
	logs    GameLogRepository
	stats   StatsRepository
	ids     PlayerRepository
	bus     *InternalBus
	players *PlayerBus
	mapper  *EventMapper
	timers  *TimerService
	limiter *RateLimiter
	mm      *Matchmaker

	mu    sync.Mutex
	locks map[string]*sync.Mutex

	seqMu  sync.Mutex
	logSeq map[string]uint64

	rngMu sync.Mutex
	rng   *rand.Rand
}

// NewService wires the session service and subscribes it to the internal
// bus for match-found handling.
func NewService(log zerolog.Logger, cfg *config.Config, d ServiceDeps) *Service {
	rng := d.RNG
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	s := &Service{
		log:     log.With().Str("component", "session_service").Logger(),
		cfg:     cfg,
		store:   d.Store,
		repo:    d.Repo,
		logs:    d.Logs,
		stats:   d.Stats,
		ids:     d.Identities,
		bus:     d.Bus,
		players: d.Players,
		mapper:  NewEventMapper(cfg.DisplayTimeoutSec),
		timers:  d.Timers,
		limiter: d.Limiter,
		mm:      d.Matchmaker,
		locks:   make(map[string]*sync.Mutex),
		logSeq:  make(map[string]uint64),
		rng:     rng,
	}
	d.Bus.Subscribe(TopicMatchFound, func(payload any) {
		if ev, ok := payload.(MatchFoundEvent); ok {
			s.handleMatchFound(ev)
		}
	})
	return s
}

// HandleFrame is the single entry point for inbound command frames.
func (s *Service) HandleFrame(ctx context.Context, playerID string, frame Frame) CommandResponse {
	if rl := s.limiter.Check(playerID); !rl.Allowed {
		metrics.CommandErrorsTotal.WithLabelValues(CodeRateLimitExceeded).Inc()
		return CommandResponse{
			CommandID:  frame.CommandID,
			Code:       CodeRateLimitExceeded,
			Message:    "command budget exhausted",
			RetryAfter: rl.RetryAfter,
		}
	}
	metrics.CommandsTotal.WithLabelValues(string(frame.Type)).Inc()

	resp := s.dispatch(ctx, playerID, frame)
	if !resp.Success {
		metrics.CommandErrorsTotal.WithLabelValues(resp.Code).Inc()
		s.log.Debug().Str("player_id", playerID).Str("type", string(frame.Type)).
			Str("code", resp.Code).Msg("command rejected")
	}
	return resp
}

func (s *Service) dispatch(ctx context.Context, playerID string, frame Frame) CommandResponse {
	ok := func(message string) CommandResponse {
		return CommandResponse{CommandID: frame.CommandID, Success: true, Message: message}
	}
	fail := func(err error, message string) CommandResponse {
		code := CodeForError(err)
		if message == "" {
			message = err.Error()
		}
		return CommandResponse{CommandID: frame.CommandID, Code: code, Message: message}
	}

	switch frame.Type {
	case CmdPing:
		return ok("PONG")

	case CmdJoinMatchmaking:
		var p JoinMatchmakingPayload
		if err := json.Unmarshal(frame.Payload, &p); err != nil {
			return CommandResponse{CommandID: frame.CommandID, Code: CodeUnknownError, Message: "malformed payload"}
		}
		if !domain.ValidRoomType(p.RoomType) {
			return CommandResponse{CommandID: frame.CommandID, Code: CodeInvalidRoomType, Message: "unknown room type"}
		}
		name, err := s.displayName(ctx, playerID)
		if err != nil {
			return CommandResponse{CommandID: frame.CommandID, Code: CodePlayerNotFound, Message: "identity unresolved"}
		}
		msg, err := s.mm.Enter(playerID, name, p.RoomType)
		if err != nil {
			return fail(err, "")
		}
		return ok(msg)

	case CmdPlayCard:
		var p PlayCardPayload
		if err := json.Unmarshal(frame.Payload, &p); err != nil {
			return CommandResponse{CommandID: frame.CommandID, Code: CodeUnknownError, Message: "malformed payload"}
		}
		if err := s.playCard(ctx, playerID, p, false); err != nil {
			return fail(err, "")
		}
		return ok("")

	case CmdSelectTarget:
		var p SelectTargetPayload
		if err := json.Unmarshal(frame.Payload, &p); err != nil {
			return CommandResponse{CommandID: frame.CommandID, Code: CodeUnknownError, Message: "malformed payload"}
		}
		if err := s.selectTarget(ctx, playerID, p, false); err != nil {
			return fail(err, "")
		}
		return ok("")

	case CmdMakeDecision:
		var p MakeDecisionPayload
		if err := json.Unmarshal(frame.Payload, &p); err != nil {
			return CommandResponse{CommandID: frame.CommandID, Code: CodeUnknownError, Message: "malformed payload"}
		}
		if err := s.makeDecision(ctx, playerID, p, false); err != nil {
			return fail(err, "")
		}
		return ok("")

	case CmdConfirmContinue:
		var p ConfirmContinuePayload
		if err := json.Unmarshal(frame.Payload, &p); err != nil {
			return CommandResponse{CommandID: frame.CommandID, Code: CodeUnknownError, Message: "malformed payload"}
		}
		if err := s.confirmContinue(ctx, playerID, p); err != nil {
			return fail(err, "")
		}
		return ok("")

	case CmdLeaveGame:
		var p LeaveGamePayload
		if err := json.Unmarshal(frame.Payload, &p); err != nil {
			return CommandResponse{CommandID: frame.CommandID, Code: CodeUnknownError, Message: "malformed payload"}
		}
		if err := s.leaveGame(ctx, playerID, p.GameID, FinishPlayerLeft); err != nil {
			return fail(err, "")
		}
		s.limiter.Reset(playerID)
		return ok("")

	default:
		return CommandResponse{CommandID: frame.CommandID, Code: CodeUnknownCommand, Message: "unrecognised command type"}
	}
}

func (s *Service) displayName(ctx context.Context, playerID string) (string, error) {
	if s.ids == nil {
		return playerID, nil
	}
	p, err := s.ids.FindByID(ctx, playerID)
	if err != nil {
		return "", err
	}
	return p.DisplayName, nil
}

// lockFor returns the per-game mutex, creating it on first use.
func (s *Service) lockFor(gameID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[gameID]
	if !ok {
		l = &sync.Mutex{}
		s.locks[gameID] = l
	}
	return l
}

// gameOp validates and applies a command against the latest snapshot,
// returning the successor snapshot and the events to publish. Returning a
// nil game means no state change.
type gameOp func(g *domain.Game) (*domain.Game, []TargetedEvent, error)

// withGame is the game command path: acquire the per-game lock, reload the
// latest snapshot, run the operation, persist, publish inside the lock,
// then re-arm timers.
func (s *Service) withGame(ctx context.Context, gameID string, arm bool, op gameOp) error {
	if gameID == "" {
		return ErrGameNotFound
	}
	lock := s.lockFor(gameID)
	lock.Lock()
	defer lock.Unlock()

	g, found := s.store.Get(gameID)
	if !found {
		return ErrGameNotFound
	}
	next, events, err := op(g)
	if err != nil {
		return err
	}
	if next == nil {
		return nil
	}
	s.store.Set(next)
	s.persist(ctx, next)
	for _, te := range events {
		s.publish(next.ID, te)
	}
	if arm {
		s.armTimers(next)
	}
	return nil
}

func (s *Service) persist(ctx context.Context, g *domain.Game) {
	if s.repo == nil {
		return
	}
	if err := s.repo.Save(ctx, g); err != nil {
		s.log.Error().Err(err).Str("game_id", g.ID).Msg("snapshot save failed")
	}
}

func (s *Service) publish(gameID string, te TargetedEvent) {
	s.players.Publish(te.PlayerID, te.Event)
	metrics.EventsPublishedTotal.WithLabelValues(string(te.Event.Type)).Inc()
	if s.logs != nil {
		s.seqMu.Lock()
		s.logSeq[gameID]++
		seq := s.logSeq[gameID]
		s.seqMu.Unlock()
		ev := te.Event
		go func() {
			if err := s.logs.Append(context.Background(), gameID, seq, string(ev.Type), ev.Payload); err != nil {
				s.log.Warn().Err(err).Str("game_id", gameID).Msg("game log append failed")
			}
		}()
	}
}

// armTimers re-arms the game's single timer slot from the snapshot it just
// reached: an action timeout while a player holds control, a display pause
// while a settlement is on screen, nothing once the game is over.
func (s *Service) armTimers(g *domain.Game) {
	if g.Status == domain.StatusFinished {
		s.timers.CancelTimeout(g.ID)
		return
	}
	r := g.CurrentRound
	if r == nil {
		return
	}
	gameID := g.ID
	switch r.FlowState {
	case domain.AwaitingHandPlay, domain.AwaitingSelection, domain.AwaitingDecision:
		// The timer remembers the state it was armed for; a command that
		// lands in the firing window must not trigger an auto-action
		// against the state it just produced.
		armedState, armedPlayer := r.FlowState, r.ActivePlayerID
		s.timers.StartTimeout(gameID, s.cfg.ActionTimeout(), func() {
			s.autoAct(gameID, armedState, armedPlayer)
		})
	case domain.RoundEnded:
		s.timers.StartTimeout(gameID, s.cfg.DisplayTimeout(), func() { s.advanceRound(gameID) })
	}
}

// handleMatchFound creates the game for a fresh pairing, announces it to
// both players, and schedules the first deal after the starting grace.
func (s *Service) handleMatchFound(ev MatchFoundEvent) {
	g := domain.NewGame(uuid.NewString(), ev.RoomType, domain.GamePlayer{
		ID:   ev.Player1ID,
		Name: ev.Player1Name,
	})
	g, err := g.AddPlayer(domain.GamePlayer{
		ID:    ev.Player2ID,
		Name:  ev.Player2Name,
		IsBot: ev.MatchType == MatchBot,
	})
	if err != nil {
		s.log.Error().Err(err).Msg("match-found game setup failed")
		return
	}
	s.store.Set(g)
	metrics.ActiveGames.Set(float64(s.store.Len()))
	s.persist(context.Background(), g)

	for _, te := range s.mapper.MatchFound(g, ev.MatchType) {
		s.publish(g.ID, te)
	}

	gameID := g.ID
	s.timers.StartTimeout(gameID, s.cfg.StartingGrace(), func() { s.dealRound(gameID) })
	s.log.Info().Str("game_id", g.ID).Str("room_type", string(ev.RoomType)).
		Str("match_type", string(ev.MatchType)).Msg("game created")
}

// dealRound deals the first round of a STARTING game or the next round
// after a settled one.
func (s *Service) dealRound(gameID string) {
	err := s.withGame(context.Background(), gameID, true, func(g *domain.Game) (*domain.Game, []TargetedEvent, error) {
		if g.Status == domain.StatusFinished {
			return nil, nil, nil
		}
		next, err := g.StartRound(s.shuffledDeck())
		if err != nil {
			return nil, nil, err
		}
		events := s.mapper.RoundDealt(next)
		if next.CurrentRound.FlowState == domain.RoundEnded {
			return s.completeEndedRound(next, events)
		}
		return next, events, nil
	})
	if err != nil {
		s.log.Error().Err(err).Str("game_id", gameID).Msg("deal failed")
		s.broadcastGameError(gameID, err)
	}
}

// broadcastGameError tells both players a background step failed for their
// game. The snapshot itself is unchanged.
func (s *Service) broadcastGameError(gameID string, cause error) {
	g, found := s.store.Get(gameID)
	if !found {
		return
	}
	for _, p := range g.Players {
		s.players.Publish(p.ID, GatewayEvent{
			Type:    EventGameError,
			GameID:  gameID,
			Payload: ErrorPayload{Code: CodeForError(cause), Message: cause.Error()},
		})
	}
}

// advanceRound is the display-timeout continuation: deal the next round.
func (s *Service) advanceRound(gameID string) {
	err := s.withGame(context.Background(), gameID, true, func(g *domain.Game) (*domain.Game, []TargetedEvent, error) {
		if g.Status != domain.StatusInProgress || g.CurrentRound == nil || g.CurrentRound.FlowState != domain.RoundEnded {
			return nil, nil, nil
		}
		next, err := g.StartRound(s.shuffledDeck())
		if err != nil {
			return nil, nil, err
		}
		events := s.mapper.RoundDealt(next)
		if next.CurrentRound.FlowState == domain.RoundEnded {
			return s.completeEndedRound(next, events)
		}
		return next, events, nil
	})
	if err != nil {
		s.log.Error().Err(err).Str("game_id", gameID).Msg("round advance failed")
		s.broadcastGameError(gameID, err)
	}
}

// completeEndedRound applies a settled round to the game: scores, round
// count, finish detection, and the settlement events built from the
// post-settlement snapshot.
func (s *Service) completeEndedRound(g *domain.Game, prior []TargetedEvent) (*domain.Game, []TargetedEvent, error) {
	next, err := g.CompleteRound()
	if err != nil {
		return nil, nil, err
	}
	events := append(prior, s.mapper.RoundEnd(next)...)
	if next.Status == domain.StatusFinished {
		events = append(events, s.mapper.GameFinished(next, FinishCompleted)...)
		s.afterGameFinished(next)
	}
	return next, events, nil
}

// afterGameFinished publishes the internal GAME_FINISHED topic and records
// player stats. Handlers must not block; stats are write-behind.
func (s *Service) afterGameFinished(g *domain.Game) {
	metrics.ActiveGames.Set(float64(s.store.Len()))
	s.bus.Publish(TopicGameFinished, GameFinishedEvent{
		GameID:      g.ID,
		WinnerID:    g.WinnerID,
		FinalScores: g.Scores,
		Players:     append([]string(nil), playerIDsOf(g)...),
		FinishedAt:  time.Now().UTC(),
	})
	if s.stats != nil {
		snapshot := g
		go func() {
			for _, p := range snapshot.Players {
				if p.IsBot {
					continue
				}
				won := snapshot.WinnerID == p.ID
				drawn := snapshot.WinnerID == ""
				if err := s.stats.RecordResult(context.Background(), p.ID, won, drawn); err != nil {
					s.log.Warn().Err(err).Str("player_id", p.ID).Msg("stats update failed")
				}
			}
		}()
	}
}

func playerIDsOf(g *domain.Game) []string {
	out := make([]string, 0, len(g.Players))
	for _, p := range g.Players {
		out = append(out, p.ID)
	}
	return out
}

// requireTurnContext is the shared validation front of the game-mutating
// commands.
func requireTurnContext(g *domain.Game, playerID string) error {
	if !g.HasPlayer(playerID) {
		return domain.ErrNotInGame
	}
	if g.Status != domain.StatusInProgress || g.CurrentRound == nil {
		return domain.ErrInvalidState
	}
	return nil
}

func (s *Service) playCard(ctx context.Context, playerID string, p PlayCardPayload, isAuto bool) error {
	return s.withGame(ctx, p.GameID, true, func(g *domain.Game) (*domain.Game, []TargetedEvent, error) {
		if err := requireTurnContext(g, playerID); err != nil {
			return nil, nil, err
		}
		r, err := g.CurrentRound.PlayHandCard(playerID, p.CardID, p.TargetCardID)
		if err != nil {
			return nil, nil, err
		}
		next := g.WithRound(r)
		events := s.mapper.AfterPlay(next, playerID)
		if r.FlowState == domain.RoundEnded {
			return s.completeEndedRound(next, events)
		}
		return next, events, nil
	})
}

func (s *Service) selectTarget(ctx context.Context, playerID string, p SelectTargetPayload, isAuto bool) error {
	return s.withGame(ctx, p.GameID, true, func(g *domain.Game) (*domain.Game, []TargetedEvent, error) {
		if err := requireTurnContext(g, playerID); err != nil {
			return nil, nil, err
		}
		fromDraw := g.CurrentRound.Pending != nil && g.CurrentRound.Pending.FromDraw
		r, err := g.CurrentRound.SelectTarget(playerID, p.SourceCardID, p.TargetCardID)
		if err != nil {
			return nil, nil, err
		}
		next := g.WithRound(r)
		events := s.mapper.AfterSelect(next, playerID, fromDraw)
		if r.FlowState == domain.RoundEnded {
			return s.completeEndedRound(next, events)
		}
		return next, events, nil
	})
}

func (s *Service) makeDecision(ctx context.Context, playerID string, p MakeDecisionPayload, isAuto bool) error {
	if p.Decision != domain.DecisionKoiKoi && p.Decision != domain.DecisionEndRound {
		return domain.ErrInvalidState
	}
	return s.withGame(ctx, p.GameID, true, func(g *domain.Game) (*domain.Game, []TargetedEvent, error) {
		if err := requireTurnContext(g, playerID); err != nil {
			return nil, nil, err
		}
		r, err := g.CurrentRound.MakeDecision(playerID, p.Decision)
		if err != nil {
			return nil, nil, err
		}
		next := g.WithRound(r)
		events := s.mapper.AfterDecision(next, playerID, p.Decision)
		if r.FlowState == domain.RoundEnded {
			return s.completeEndedRound(next, events)
		}
		return next, events, nil
	})
}

// confirmContinue removes the caller from the pending-confirmation list;
// once the list is empty the next round deals immediately. A lone
// confirmation leaves the display countdown running, so no timer is
// re-armed on that path.
func (s *Service) confirmContinue(ctx context.Context, playerID string, p ConfirmContinuePayload) error {
	if p.Decision == ContinueLeave {
		return s.leaveGame(ctx, playerID, p.GameID, FinishPlayerLeft)
	}
	if p.Decision != ContinueStay {
		return domain.ErrInvalidState
	}
	return s.withGame(ctx, p.GameID, false, func(g *domain.Game) (*domain.Game, []TargetedEvent, error) {
		if !g.HasPlayer(playerID) {
			return nil, nil, domain.ErrNotInGame
		}
		if g.CurrentRound == nil || g.CurrentRound.FlowState != domain.RoundEnded {
			return nil, nil, domain.ErrInvalidState
		}
		next, err := g.ConfirmContinue(playerID)
		if err != nil {
			return nil, nil, err
		}
		if len(next.PendingContinue) > 0 {
			return next, nil, nil
		}
		s.timers.CancelTimeout(next.ID)
		dealt, err := next.StartRound(s.shuffledDeck())
		if err != nil {
			return nil, nil, err
		}
		events := s.mapper.RoundDealt(dealt)
		if dealt.CurrentRound.FlowState == domain.RoundEnded {
			dealt, events, err = s.completeEndedRound(dealt, events)
			if err != nil {
				return nil, nil, err
			}
		}
		s.armTimers(dealt)
		return dealt, events, nil
	})
}

func (s *Service) leaveGame(ctx context.Context, playerID, gameID, reason string) error {
	return s.withGame(ctx, gameID, true, func(g *domain.Game) (*domain.Game, []TargetedEvent, error) {
		if !g.HasPlayer(playerID) {
			return nil, nil, domain.ErrNotInGame
		}
		next, err := g.ForceFinish(playerID)
		if err != nil {
			return nil, nil, err
		}
		events := s.mapper.GameFinished(next, reason)
		s.afterGameFinished(next)
		return next, events, nil
	})
}

// autoAct is the action-timeout continuation: synthesize the legal default
// command for the current flow state and push it down the normal pipeline.
func (s *Service) autoAct(gameID string, armedState domain.FlowState, armedPlayer string) {
	g, found := s.store.Get(gameID)
	if !found || g.Status != domain.StatusInProgress || g.CurrentRound == nil {
		return
	}
	r := g.CurrentRound
	playerID := r.ActivePlayerID
	if playerID == "" || r.FlowState != armedState || playerID != armedPlayer {
		return
	}
	metrics.AutoActionsTotal.Inc()
	s.log.Debug().Str("game_id", gameID).Str("player_id", playerID).
		Str("flow_state", string(r.FlowState)).Msg("action timeout auto-play")

	var err error
	switch r.FlowState {
	case domain.AwaitingHandPlay:
		hand := r.Areas[playerID].Hand
		if len(hand) == 0 {
			return
		}
		p := PlayCardPayload{GameID: gameID, CardID: hand[0]}
		if targets := domain.MatchableCards(hand[0], r.Field); len(targets) >= 2 {
			p.TargetCardID = targets[0]
		}
		err = s.playCard(context.Background(), playerID, p, true)
	case domain.AwaitingSelection:
		if r.Pending == nil || len(r.Pending.PossibleTargets) == 0 {
			return
		}
		err = s.selectTarget(context.Background(), playerID, SelectTargetPayload{
			GameID:       gameID,
			SourceCardID: r.Pending.Card,
			TargetCardID: r.Pending.PossibleTargets[0],
		}, true)
	case domain.AwaitingDecision:
		err = s.makeDecision(context.Background(), playerID, MakeDecisionPayload{
			GameID:   gameID,
			Decision: domain.DecisionEndRound,
		}, true)
	default:
		return
	}
	if err != nil {
		s.log.Warn().Err(err).Str("game_id", gameID).Msg("auto-action failed")
		s.players.Publish(playerID, GatewayEvent{
			Type:    EventTurnError,
			GameID:  gameID,
			Payload: ErrorPayload{Code: CodeForError(err), Message: err.Error()},
		})
	}
}

// HandleDisconnect reacts to a peer dropping: a waiting entry is cancelled;
// an active game is force-finished in favour of the opponent.
func (s *Service) HandleDisconnect(playerID string) {
	if err := s.mm.Cancel(playerID, "DISCONNECTED"); err == nil {
		s.log.Debug().Str("player_id", playerID).Msg("matchmaking cancelled on disconnect")
	}
	g, found := s.store.FindActiveByPlayer(playerID)
	if !found {
		return
	}
	if err := s.leaveGame(context.Background(), playerID, g.ID, FinishDisconnected); err != nil {
		s.log.Warn().Err(err).Str("player_id", playerID).Msg("disconnect force-finish failed")
	}
	s.limiter.Reset(playerID)
}

// SnapshotFor marks a reconnecting player as connected on their live game
// and returns the restore event to send them, or nil without one.
func (s *Service) SnapshotFor(playerID string) *GatewayEvent {
	g, found := s.store.FindActiveByPlayer(playerID)
	if !found {
		return nil
	}
	var ev *GatewayEvent
	err := s.withGame(context.Background(), g.ID, false, func(g *domain.Game) (*domain.Game, []TargetedEvent, error) {
		next := g.SetConnected(playerID, true)
		restored := s.mapper.Snapshot(next, playerID)
		ev = &restored
		return next, nil, nil
	})
	if err != nil {
		return nil
	}
	return ev
}

func (s *Service) shuffledDeck() []domain.CardID {
	s.rngMu.Lock()
	defer s.rngMu.Unlock()
	return domain.ShuffleDeck(domain.NewDeck(), s.rng)
}
