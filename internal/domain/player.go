package domain

import "time"

// Player is the identity collaborator's view of a player. The runtime only
// reads these.
type Player struct {
	ID          string    `json:"id"`
	DisplayName string    `json:"display_name"`
	IsAI        bool      `json:"is_ai"`
	CreatedAt   time.Time `json:"created_at"`
}
