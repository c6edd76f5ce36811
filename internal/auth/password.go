// Package auth provides password hashing, access tokens and request principals.
package auth

import (
	"errors"
	"fmt"
	"sync"

	"golang.org/x/crypto/bcrypt"
)

// DefaultCost is the bcrypt work factor (2^12 rounds).
const DefaultCost = 12

// MaxPasswordBytes is the longest secret bcrypt will accept.
const MaxPasswordBytes = 72

var (
	// ErrMismatch indicates the secret does not match the hash.
	ErrMismatch = errors.New("password does not match")
	// ErrPasswordTooLong indicates the secret exceeds MaxPasswordBytes.
	ErrPasswordTooLong = errors.New("password exceeds 72 bytes")
)

// BcryptHasher hashes and verifies secrets with bcrypt.
type BcryptHasher struct {
	cost int

	dummyOnce sync.Once
	dummy     []byte
	dummyErr  error
}

// NewBcryptHasher returns a hasher using cost, or DefaultCost when cost is zero.
func NewBcryptHasher(cost int) *BcryptHasher {
	if cost == 0 {
		cost = DefaultCost
	}
	return &BcryptHasher{cost: cost}
}

// Hash returns a salted bcrypt hash of secret.
func (h *BcryptHasher) Hash(secret string) (string, error) {
	if len(secret) > MaxPasswordBytes {
		return "", ErrPasswordTooLong
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(secret), h.cost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

// Compare checks secret against hash in constant time.
// It returns ErrMismatch when they differ and another error when hash is malformed.
func (h *BcryptHasher) Compare(hash, secret string) error {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(secret))
	if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
		return ErrMismatch
	}
	if err != nil {
		return fmt.Errorf("compare password: %w", err)
	}
	return nil
}

// CompareDummy burns the same work as Compare against a fixed hash. Callers use
// it when no account exists so lookups take as long as real comparisons.
func (h *BcryptHasher) CompareDummy(secret string) {
	h.dummyOnce.Do(func() {
		h.dummy, h.dummyErr = bcrypt.GenerateFromPassword([]byte("inkpost-dummy-secret"), h.cost)
	})
	if h.dummyErr != nil {
		return
	}
	_ = bcrypt.CompareHashAndPassword(h.dummy, []byte(secret))
}
