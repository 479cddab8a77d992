package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
)

const (
	sessionTokenBytes = 32
	inviteTokenBytes  = 24
	accessTokenBytes  = 24
)

// NewSessionToken creates a cryptographically random session bearer token.
// Only its hash (HashSessionToken) is ever persisted.
func NewSessionToken() (string, error) {
	b, err := randomBytes(sessionTokenBytes)
	if err != nil {
		return "", err
	}

	return base64.StdEncoding.EncodeToString(b), nil
}

// HashSessionToken derives the session storage key from a bearer token.
func HashSessionToken(token string) string {
	sum := sha256.Sum256([]byte(token))

	return base64.StdEncoding.EncodeToString(sum[:])
}

// NewInviteToken creates a URL-safe invitation token without padding, so it
// can be embedded in accept URLs verbatim.
func NewInviteToken() (string, error) {
	b, err := randomBytes(inviteTokenBytes)
	if err != nil {
		return "", err
	}

	return base64.RawURLEncoding.EncodeToString(b), nil
}

// NewAccessToken creates a gallery capability token for the bearer API.
func NewAccessToken() (string, error) {
	b, err := randomBytes(accessTokenBytes)
	if err != nil {
		return "", err
	}

	return base64.StdEncoding.EncodeToString(b), nil
}

func randomBytes(n int) ([]byte, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return nil, fmt.Errorf("generating random bytes: %w", err)
	}

	return b, nil
}
