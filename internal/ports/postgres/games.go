// Package postgres implements the durable repositories over sqlx.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/ychleo102615/hanahuda-server/internal/domain"
)

// GameRepo persists game snapshots as JSON rows.
type GameRepo struct {
	db *sqlx.DB
}

// NewGameRepo constructs the repository.
func NewGameRepo(db *sqlx.DB) *GameRepo {
	return &GameRepo{db: db}
}

// Save upserts the latest snapshot for the game.
func (r *GameRepo) Save(ctx context.Context, g *domain.Game) error {
	snapshot, err := json.Marshal(g)
	if err != nil {
		return fmt.Errorf("marshal game %s: %w", g.ID, err)
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO games (id, room_type, snapshot_json, status, updated_at)
		VALUES ($1, $2, $3, $4, NOW())
		ON CONFLICT (id) DO UPDATE
		SET snapshot_json = EXCLUDED.snapshot_json,
		    status = EXCLUDED.status,
		    updated_at = NOW()
	`, g.ID, string(g.RoomType), snapshot, string(g.Status))
	if err != nil {
		return fmt.Errorf("save game %s: %w", g.ID, err)
	}
	return nil
}

// FindByID loads a snapshot back from its JSON row.
func (r *GameRepo) FindByID(ctx context.Context, gameID string) (*domain.Game, error) {
	var raw []byte
	err := r.db.QueryRowxContext(ctx,
		`SELECT snapshot_json FROM games WHERE id = $1`, gameID).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("game %s not found", gameID)
	}
	if err != nil {
		return nil, fmt.Errorf("load game %s: %w", gameID, err)
	}
	var g domain.Game
	if err := json.Unmarshal(raw, &g); err != nil {
		return nil, fmt.Errorf("decode game %s: %w", gameID, err)
	}
	return &g, nil
}

// LogRepo appends the per-game event log.
type LogRepo struct {
	db *sqlx.DB
}

// NewLogRepo constructs the repository.
func NewLogRepo(db *sqlx.DB) *LogRepo {
	return &LogRepo{db: db}
}

// Append inserts one event row.
func (r *LogRepo) Append(ctx context.Context, gameID string, seq uint64, eventType string, payload any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal log payload: %w", err)
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO game_logs (game_id, seq, event_type, payload_json, ts)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (game_id, seq) DO NOTHING
	`, gameID, int64(seq), eventType, raw, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("append game log: %w", err)
	}
	return nil
}

// StatsRepo accumulates per-player results.
type StatsRepo struct {
	db *sqlx.DB
}

// NewStatsRepo constructs the repository.
func NewStatsRepo(db *sqlx.DB) *StatsRepo {
	return &StatsRepo{db: db}
}

// RecordResult bumps the player's win/loss/draw counters.
func (r *StatsRepo) RecordResult(ctx context.Context, playerID string, won, drawn bool) error {
	wins, losses, draws := 0, 0, 0
	switch {
	case won:
		wins = 1
	case drawn:
		draws = 1
	default:
		losses = 1
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO player_stats (player_id, wins, losses, draws, updated_at)
		VALUES ($1, $2, $3, $4, NOW())
		ON CONFLICT (player_id) DO UPDATE
		SET wins = player_stats.wins + EXCLUDED.wins,
		    losses = player_stats.losses + EXCLUDED.losses,
		    draws = player_stats.draws + EXCLUDED.draws,
		    updated_at = NOW()
	`, playerID, wins, losses, draws)
	if err != nil {
		return fmt.Errorf("record result for %s: %w", playerID, err)
	}
	return nil
}

// PlayerRepo is the read-only identity collaborator.
type PlayerRepo struct {
	db *sqlx.DB
}

// NewPlayerRepo constructs the repository.
func NewPlayerRepo(db *sqlx.DB) *PlayerRepo {
	return &PlayerRepo{db: db}
}

type playerRow struct {
	ID          string    `db:"id"`
	DisplayName string    `db:"display_name"`
	IsAI        bool      `db:"is_ai"`
	CreatedAt   time.Time `db:"created_at"`
}

// FindByID resolves a player identity.
func (r *PlayerRepo) FindByID(ctx context.Context, playerID string) (domain.Player, error) {
	var row playerRow
	err := r.db.GetContext(ctx, &row,
		`SELECT id, display_name, is_ai, created_at FROM players WHERE id = $1`, playerID)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Player{}, fmt.Errorf("player %s not found", playerID)
	}
	if err != nil {
		return domain.Player{}, fmt.Errorf("load player %s: %w", playerID, err)
	}
	return domain.Player{
		ID:          row.ID,
		DisplayName: row.DisplayName,
		IsAI:        row.IsAI,
		CreatedAt:   row.CreatedAt,
	}, nil
}
