// Package auth verifies the shared API key sent by webhook callers.
package auth

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"

	cmap "github.com/orcaman/concurrent-map/v2"
	"golang.org/x/crypto/bcrypt"
)

const (
	bcryptCostFactor = 12
)

// HashAPIKey generates a bcrypt hash for the given API key secret.
// The result goes into WEBHOOK_KEY_HASH.
func HashAPIKey(apiKeySecret string) (string, error) {
	hashedBytes, err := bcrypt.GenerateFromPassword([]byte(apiKeySecret), bcryptCostFactor)
	if err != nil {
		slog.Error("Failed to generate bcrypt hash for API key", slog.Any("error", err))
		return "", fmt.Errorf("failed to hash api key: %w", err)
	}
	return string(hashedBytes), nil
}

// CheckAPIKey compares a plaintext API key secret with a stored bcrypt hash.
func CheckAPIKey(apiKeySecret, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(apiKeySecret))
	if err != nil {
		if !errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			slog.Warn("Error comparing API key hash", slog.Any("error", err))
		}
		return false
	}
	return true
}

// KeyVerifier checks webhook keys against one bcrypt hash. Keys that passed
// once are remembered by digest so busy webhooks skip the bcrypt cost.
type KeyVerifier struct {
	hash     string
	verified cmap.ConcurrentMap[string, struct{}]
}

func NewKeyVerifier(hash string) *KeyVerifier {
	return &KeyVerifier{hash: hash, verified: cmap.New[struct{}]()}
}

// Enabled is false when no hash is configured; webhooks are then open.
func (v *KeyVerifier) Enabled() bool {
	return v != nil && v.hash != ""
}

func (v *KeyVerifier) Verify(key string) bool {
	if key == "" {
		return false
	}
	sum := sha256.Sum256([]byte(key))
	digest := hex.EncodeToString(sum[:])
	if v.verified.Has(digest) {
		return true
	}
	if !CheckAPIKey(key, v.hash) {
		return false
	}
	v.verified.Set(digest, struct{}{})
	return true
}
