package bot

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ychleo102615/hanahuda-server/internal/app"
	"github.com/ychleo102615/hanahuda-server/internal/domain"
)

// Dispatcher is the command path the bot shares with every other client.
type Dispatcher interface {
	HandleFrame(ctx context.Context, playerID string, frame app.Frame) app.CommandResponse
}

// gameView is the bot's event-derived picture of one game. The runtime
// never exposes state to the bot directly; everything here comes off the
// bot player's outbound stream.
type gameView struct {
	hand  []domain.CardID
	field []domain.CardID
}

// Orchestrator subscribes to the bot player's outbound stream and answers
// every prompt through the normal command path after a short think delay.
type Orchestrator struct {
	log        zerolog.Logger
	dispatcher Dispatcher
	brain      Brain
	delay      time.Duration

	mu    sync.Mutex
	games map[string]*gameView

	unsubPlayers func()
	unsubBus     func()
}

// NewOrchestrator wires the bot collaborator onto the buses.
func NewOrchestrator(log zerolog.Logger, bus *app.InternalBus, players *app.PlayerBus, dispatcher Dispatcher, brain Brain, delay time.Duration) *Orchestrator {
	if brain == nil {
		brain = NewGreedyBrain()
	}
	o := &Orchestrator{
		log:        log.With().Str("component", "bot").Logger(),
		dispatcher: dispatcher,
		brain:      brain,
		delay:      delay,
		games:      make(map[string]*gameView),
	}
	o.unsubPlayers = players.Subscribe(app.BotPlayerID, o.onEvent)
	o.unsubBus = bus.Subscribe(app.TopicGameFinished, func(payload any) {
		if ev, ok := payload.(app.GameFinishedEvent); ok {
			o.drop(ev.GameID)
		}
	})
	return o
}

// Stop detaches the orchestrator from the buses.
func (o *Orchestrator) Stop() {
	if o.unsubPlayers != nil {
		o.unsubPlayers()
	}
	if o.unsubBus != nil {
		o.unsubBus()
	}
}

func (o *Orchestrator) drop(gameID string) {
	o.mu.Lock()
	delete(o.games, gameID)
	o.mu.Unlock()
}

func (o *Orchestrator) view(gameID string) *gameView {
	o.mu.Lock()
	defer o.mu.Unlock()
	v, ok := o.games[gameID]
	if !ok {
		v = &gameView{}
		o.games[gameID] = v
	}
	return v
}

// onEvent runs on the publisher's goroutine and must not block: every
// action is scheduled onto a timer.
func (o *Orchestrator) onEvent(ev app.GatewayEvent) {
	switch p := ev.Payload.(type) {
	case app.RoundDealtPayload:
		v := o.view(ev.GameID)
		o.mu.Lock()
		v.hand = append([]domain.CardID(nil), p.Hand...)
		v.field = append([]domain.CardID(nil), p.Field...)
		o.mu.Unlock()
		if p.ActivePlayerID == app.BotPlayerID {
			o.schedule(ev.GameID, o.playHand)
		}

	case app.TurnCompletedPayload:
		v := o.view(ev.GameID)
		o.mu.Lock()
		v.field = append([]domain.CardID(nil), p.Field...)
		o.mu.Unlock()
		if p.NextPlayerID == app.BotPlayerID {
			o.schedule(ev.GameID, o.playHand)
		}

	case app.TurnProgressPayload:
		v := o.view(ev.GameID)
		o.mu.Lock()
		v.field = append([]domain.CardID(nil), p.Field...)
		o.mu.Unlock()

	case app.SelectionRequiredPayload:
		if p.PlayerID != app.BotPlayerID {
			return
		}
		source, targets := p.Card, append([]domain.CardID(nil), p.PossibleTargets...)
		o.schedule(ev.GameID, func(gameID string) {
			o.selectTarget(gameID, source, targets)
		})

	case app.DecisionRequiredPayload:
		if p.PlayerID != app.BotPlayerID {
			return
		}
		points := domain.BasePoints(p.ActiveYaku)
		o.schedule(ev.GameID, func(gameID string) {
			o.decide(gameID, points)
		})

	case app.RoundScoredPayload:
		o.afterRound(ev.GameID, p.RoundsPlayed)
	case app.RoundDrawnPayload:
		o.afterRound(ev.GameID, p.RoundsPlayed)
	case app.RoundEndedInstantlyPayload:
		o.afterRound(ev.GameID, p.RoundsPlayed)

	case app.GameFinishedPayload:
		o.drop(ev.GameID)
	}
}

func (o *Orchestrator) afterRound(gameID string, _ int) {
	v := o.view(gameID)
	o.mu.Lock()
	v.hand = nil
	o.mu.Unlock()
	o.schedule(gameID, o.confirmContinue)
}

func (o *Orchestrator) schedule(gameID string, fn func(gameID string)) {
	time.AfterFunc(o.delay, func() {
		o.mu.Lock()
		_, live := o.games[gameID]
		o.mu.Unlock()
		if !live {
			return
		}
		fn(gameID)
	})
}

func (o *Orchestrator) playHand(gameID string) {
	o.mu.Lock()
	v, ok := o.games[gameID]
	var hand, field []domain.CardID
	if ok {
		hand = append([]domain.CardID(nil), v.hand...)
		field = append([]domain.CardID(nil), v.field...)
	}
	o.mu.Unlock()
	if !ok || len(hand) == 0 {
		return
	}

	card, target := o.brain.ChooseHandPlay(hand, field)
	payload := app.PlayCardPayload{GameID: gameID, CardID: card, TargetCardID: target}
	if resp := o.send(app.CmdPlayCard, payload); resp.Success {
		o.mu.Lock()
		if v, ok := o.games[gameID]; ok {
			v.hand = domain.RemoveCard(v.hand, card)
		}
		o.mu.Unlock()
	}
}

func (o *Orchestrator) selectTarget(gameID string, source domain.CardID, targets []domain.CardID) {
	if len(targets) == 0 {
		return
	}
	o.send(app.CmdSelectTarget, app.SelectTargetPayload{
		GameID:       gameID,
		SourceCardID: source,
		TargetCardID: o.brain.ChooseTarget(source, targets),
	})
}

func (o *Orchestrator) decide(gameID string, activePoints int) {
	o.mu.Lock()
	handCount := 0
	if v, ok := o.games[gameID]; ok {
		handCount = len(v.hand)
	}
	o.mu.Unlock()
	o.send(app.CmdMakeDecision, app.MakeDecisionPayload{
		GameID:   gameID,
		Decision: o.brain.ChooseDecision(activePoints, handCount),
	})
}

func (o *Orchestrator) confirmContinue(gameID string) {
	o.send(app.CmdConfirmContinue, app.ConfirmContinuePayload{
		GameID:   gameID,
		Decision: app.ContinueStay,
	})
}

func (o *Orchestrator) send(typ app.CommandType, payload any) app.CommandResponse {
	raw, err := json.Marshal(payload)
	if err != nil {
		o.log.Error().Err(err).Str("type", string(typ)).Msg("payload marshal failed")
		return app.CommandResponse{}
	}
	resp := o.dispatcher.HandleFrame(context.Background(), app.BotPlayerID, app.Frame{
		CommandID: uuid.NewString(),
		Type:      typ,
		Payload:   raw,
	})
	if !resp.Success {
		o.log.Debug().Str("type", string(typ)).Str("code", resp.Code).Msg("bot command rejected")
	}
	return resp
}
