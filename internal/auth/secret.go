package auth

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
)

// GenerateTokenKey returns a random key suitable for NewTokenService.
func GenerateTokenKey() (string, error) {
	b := make([]byte, keyBytesSize)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate token key: %w", err)
	}
	return hex.EncodeToString(b), nil
}
