// Package metrics exposes the service's prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	CommandsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "koikoi_commands_total",
		Help: "Inbound command frames by type",
	}, []string{"type"})

	CommandErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "koikoi_command_errors_total",
		Help: "Rejected commands by error code",
	}, []string{"code"})

	EventsPublishedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "koikoi_events_published_total",
		Help: "Outbound gateway events by type",
	}, []string{"type"})

	MatchmakingPoolSize = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "koikoi_matchmaking_pool_size",
		Help: "Waiting matchmaking entries per room type",
	}, []string{"room_type"})

	MatchesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "koikoi_matches_total",
		Help: "Completed pairings by match type",
	}, []string{"match_type"})

	ActiveGames = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "koikoi_active_games",
		Help: "Games currently held in the in-memory store",
	})

	ConnectedPlayers = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "koikoi_connected_players",
		Help: "Live websocket peers bound to a player",
	})

	AutoActionsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "koikoi_auto_actions_total",
		Help: "Timeout-driven auto-actions dispatched",
	})
)
