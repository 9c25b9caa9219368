package app

import (
	"encoding/base64"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandoffRoundTrip(t *testing.T) {
	issuer := NewHandoffIssuer("test-secret")

	token, err := issuer.Create("p1", "g1")
	require.NoError(t, err)

	payload, err := issuer.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "p1", payload.PlayerID)
	assert.Equal(t, "g1", payload.GameID)
}

func TestHandoffRejectsTampering(t *testing.T) {
	issuer := NewHandoffIssuer("test-secret")
	token, err := issuer.Create("p1", "g1")
	require.NoError(t, err)

	raw, err := base64.RawURLEncoding.DecodeString(token)
	require.NoError(t, err)

	// Flip a payload byte and re-encode.
	for i := range raw {
		if raw[i] == 'p' {
			raw[i] = 'q'
			break
		}
	}
	tampered := base64.RawURLEncoding.EncodeToString(raw)

	_, err = issuer.Verify(tampered)
	assert.Error(t, err)
}

func TestHandoffRejectsWrongSecret(t *testing.T) {
	token, err := NewHandoffIssuer("secret-a").Create("p1", "g1")
	require.NoError(t, err)

	_, err = NewHandoffIssuer("secret-b").Verify(token)
	assert.ErrorIs(t, err, ErrHandoffInvalid)
}

func TestHandoffExpires(t *testing.T) {
	issuer := NewHandoffIssuer("test-secret")
	issuer.ttl = -time.Second

	token, err := issuer.Create("p1", "g1")
	require.NoError(t, err)

	_, err = issuer.Verify(token)
	assert.ErrorIs(t, err, ErrHandoffExpired)
}

func TestHandoffRejectsGarbage(t *testing.T) {
	issuer := NewHandoffIssuer("test-secret")

	_, err := issuer.Verify("not-base64!!!")
	assert.ErrorIs(t, err, ErrHandoffInvalid)

	_, err = issuer.Verify(base64.RawURLEncoding.EncodeToString([]byte("{}")))
	assert.Error(t, err)
}
