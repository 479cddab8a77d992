package auth_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/snapforge/snapforge/pkg/auth"
)

func TestHashPassword_RoundTrip(t *testing.T) {
	t.Parallel()

	hash, err := auth.HashPassword("correct horse battery staple")
	require.NoError(t, err)

	assert.True(t, auth.VerifyPassword("correct horse battery staple", hash))
	assert.False(t, auth.VerifyPassword("correct horse battery stable", hash))
	assert.False(t, auth.VerifyPassword("", hash))
}

func TestHashPassword_Format(t *testing.T) {
	t.Parallel()

	hash, err := auth.HashPassword("hunter22")
	require.NoError(t, err)

	salt, key, ok := strings.Cut(hash, ":")
	require.True(t, ok, "hash must be salt:key")
	assert.NotEmpty(t, salt)
	assert.NotEmpty(t, key)
}

func TestHashPassword_UniqueSalts(t *testing.T) {
	t.Parallel()

	h1, err := auth.HashPassword("same password")
	require.NoError(t, err)

	h2, err := auth.HashPassword("same password")
	require.NoError(t, err)

	assert.NotEqual(t, h1, h2)
	assert.True(t, auth.VerifyPassword("same password", h1))
	assert.True(t, auth.VerifyPassword("same password", h2))
}

func TestVerifyPassword_MalformedHash(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		stored string
	}{
		{"empty", ""},
		{"missing separator", "bm9zZXBhcmF0b3I="},
		{"bad salt base64", "!!!:bm90YXNhbHQ="},
		{"bad key base64", "c2FsdHNhbHQ=:???"},
		{"only separator", ":"},
		{"valid salt, empty key", "AAAAAAAAAAAAAAAAAAAAAA==:"},
		{"valid salt, truncated key", "AAAAAAAAAAAAAAAAAAAAAA==:c2hvcnRrZXk="},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			assert.False(t, auth.VerifyPassword("anything", tt.stored))
		})
	}
}
