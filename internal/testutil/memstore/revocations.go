package memstore

import (
	"context"
	"sync"
	"time"
)

// Revocations is an in-memory token revocation list. It satisfies the
// service's TokenRevoker and the auth middleware's RevocationChecker.
type Revocations struct {
	mu      sync.Mutex
	revoked map[string]time.Time

	// Err, when set, is returned by every call.
	Err error
}

// NewRevocations returns an empty revocation list.
func NewRevocations() *Revocations {
	return &Revocations{revoked: map[string]time.Time{}}
}

// RevokeToken marks tokenID revoked until the given time.
func (r *Revocations) RevokeToken(_ context.Context, tokenID string, until time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return r.Err
	}
	r.revoked[tokenID] = until
	return nil
}

// IsTokenRevoked reports whether tokenID is revoked and not yet past its expiry.
func (r *Revocations) IsTokenRevoked(_ context.Context, tokenID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return false, r.Err
	}
	until, ok := r.revoked[tokenID]
	return ok && time.Now().Before(until), nil
}
