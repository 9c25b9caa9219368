package app

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"time"
)

// HandoffTTL is the lifetime of a handoff token.
const HandoffTTL = 30 * time.Second

var (
	ErrHandoffExpired = errors.New("handoff token expired")
	ErrHandoffInvalid = errors.New("handoff token invalid")
)

// HandoffPayload links a player to the game they are being handed to.
type HandoffPayload struct {
	PlayerID string `json:"playerId"`
	GameID   string `json:"gameId"`
}

type handoffEnvelope struct {
	Payload HandoffPayload `json:"payload"`
	Exp     int64          `json:"exp"`
	Sig     string         `json:"sig"`
}

type handoffSigned struct {
	Payload HandoffPayload `json:"payload"`
	Exp     int64          `json:"exp"`
}

// HandoffIssuer mints and verifies the short-lived signed capability that
// authorizes a connection targeted at the game-serving instance.
type HandoffIssuer struct {
	secret []byte
	ttl    time.Duration
}

// NewHandoffIssuer constructs an issuer over the shared secret.
func NewHandoffIssuer(secret string) *HandoffIssuer {
	return &HandoffIssuer{secret: []byte(secret), ttl: HandoffTTL}
}

// Create mints a token for (playerID, gameID): base64url of a JSON envelope
// carrying the payload, an expiry, and an HMAC-SHA256 signature over both.
func (h *HandoffIssuer) Create(playerID, gameID string) (string, error) {
	env := handoffEnvelope{
		Payload: HandoffPayload{PlayerID: playerID, GameID: gameID},
		Exp:     time.Now().Add(h.ttl).Unix(),
	}
	sig, err := h.sign(handoffSigned{Payload: env.Payload, Exp: env.Exp})
	if err != nil {
		return "", err
	}
	env.Sig = sig
	raw, err := json.Marshal(env)
	if err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(raw), nil
}

// Verify checks expiry first, then the signature in constant time.
func (h *HandoffIssuer) Verify(token string) (HandoffPayload, error) {
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return HandoffPayload{}, ErrHandoffInvalid
	}
	var env handoffEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return HandoffPayload{}, ErrHandoffInvalid
	}
	if time.Now().Unix() >= env.Exp {
		return HandoffPayload{}, ErrHandoffExpired
	}
	want, err := h.sign(handoffSigned{Payload: env.Payload, Exp: env.Exp})
	if err != nil {
		return HandoffPayload{}, ErrHandoffInvalid
	}
	if !hmac.Equal([]byte(want), []byte(env.Sig)) {
		return HandoffPayload{}, ErrHandoffInvalid
	}
	return env.Payload, nil
}

func (h *HandoffIssuer) sign(s handoffSigned) (string, error) {
	raw, err := json.Marshal(s)
	if err != nil {
		return "", err
	}
	mac := hmac.New(sha256.New, h.secret)
	mac.Write(raw)
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil)), nil
}
