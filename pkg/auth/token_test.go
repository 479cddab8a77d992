package auth_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/snapforge/snapforge/pkg/auth"
)

func TestNewSessionToken_Unique(t *testing.T) {
	t.Parallel()

	t1, err := auth.NewSessionToken()
	require.NoError(t, err)

	t2, err := auth.NewSessionToken()
	require.NoError(t, err)

	assert.NotEqual(t, t1, t2)
	assert.NotEqual(t, auth.HashSessionToken(t1), auth.HashSessionToken(t2))
}

func TestHashSessionToken_Deterministic(t *testing.T) {
	t.Parallel()

	token, err := auth.NewSessionToken()
	require.NoError(t, err)

	h1 := auth.HashSessionToken(token)
	h2 := auth.HashSessionToken(token)

	assert.Equal(t, h1, h2)
	assert.NotEqual(t, token, h1)
}

func TestNewInviteToken_URLSafe(t *testing.T) {
	t.Parallel()

	token, err := auth.NewInviteToken()
	require.NoError(t, err)

	assert.NotContains(t, token, "+")
	assert.NotContains(t, token, "/")
	assert.NotContains(t, token, "=")
	assert.GreaterOrEqual(t, len(token), 32)
}

func TestNewAccessToken_Unique(t *testing.T) {
	t.Parallel()

	seen := make(map[string]struct{}, 16)

	for range 16 {
		token, err := auth.NewAccessToken()
		require.NoError(t, err)

		_, dup := seen[token]
		require.False(t, dup, "access tokens must not repeat")

		seen[token] = struct{}{}
	}
}
