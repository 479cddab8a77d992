// Package auth implements password hashing and the random tokens used for
// sessions, invitations, and gallery access.
package auth

import (
	"crypto/rand"
	"crypto/sha512"
	"encoding/base64"
	"fmt"
	"strings"

	"golang.org/x/crypto/pbkdf2"
)

const (
	pbkdf2Iterations = 100_000
	keyLength        = 64
	saltLength       = 16
)

// HashPassword derives a PBKDF2-SHA512 key from the password with a fresh
// random salt. The stored format is "base64(salt):base64(key)".
func HashPassword(password string) (string, error) {
	salt := make([]byte, saltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("generating salt: %w", err)
	}

	key := pbkdf2.Key(
		[]byte(password), salt, pbkdf2Iterations, keyLength, sha512.New,
	)

	return base64.StdEncoding.EncodeToString(salt) + ":" +
		base64.StdEncoding.EncodeToString(key), nil
}

// VerifyPassword re-derives the key with the stored salt and compares in
// constant time. Malformed stored hashes verify false, never error.
func VerifyPassword(password, stored string) bool {
	saltB64, keyB64, ok := strings.Cut(stored, ":")
	if !ok {
		return false
	}

	salt, err := base64.StdEncoding.DecodeString(saltB64)
	if err != nil {
		return false
	}

	expected, err := base64.StdEncoding.DecodeString(keyB64)
	if err != nil {
		return false
	}

	// A stored key of the wrong length can never match; rejecting it up
	// front also keeps a degenerate empty key from comparing equal.
	if len(expected) != keyLength {
		return false
	}

	key := pbkdf2.Key(
		[]byte(password), salt, pbkdf2Iterations, keyLength, sha512.New,
	)

	var diff byte
	for i := range key {
		diff |= key[i] ^ expected[i]
	}

	return diff == 0
}
