// Package revoke maintains the TTL-backed denylist of tokens invalidated
// before their natural expiry. A marker's lifetime equals the revoked token's
// remaining lifetime, so the ledger prunes itself and is never compacted.
package revoke

import (
	"context"
	"errors"
	"time"

	"github.com/BDuong31/posauth/store"
)

// Key prefixes are fixed wire contract; existing collaborators read these
// keys verbatim.
const (
	accessKeyPrefix  = "revoked_access_token:"
	refreshKeyPrefix = "revoked_refresh_token:"
)

const marker = "1"

// Ledger records revocations in a TTL store.
type Ledger struct {
	store store.TTL
}

// NewLedger builds a Ledger on the given store.
func NewLedger(s store.TTL) *Ledger {
	return &Ledger{store: s}
}

// RevokeAccess marks an access token revoked for its remaining lifetime.
// A non-positive remaining duration is a no-op: the token is already expired
// and there is nothing to revoke.
func (l *Ledger) RevokeAccess(ctx context.Context, token string, remaining time.Duration) error {
	return l.revoke(ctx, accessKeyPrefix+token, remaining)
}

// RevokeRefresh marks a refresh token's jti revoked for its remaining
// lifetime. Revoking the jti rather than the token string keeps the marker
// small and independent of the signature encoding.
func (l *Ledger) RevokeRefresh(ctx context.Context, jti string, remaining time.Duration) error {
	return l.revoke(ctx, refreshKeyPrefix+jti, remaining)
}

func (l *Ledger) revoke(ctx context.Context, key string, remaining time.Duration) error {
	if remaining <= 0 {
		return nil
	}
	// Write failures propagate: a revocation that cannot be recorded must
	// fail the calling flow, never silently leave the token live.
	return l.store.Set(ctx, key, marker, remaining)
}

// IsAccessRevoked reports whether the access token is on the ledger.
// Store errors propagate so a revoked-but-unverifiable token is never
// treated as valid.
func (l *Ledger) IsAccessRevoked(ctx context.Context, token string) (bool, error) {
	return l.exists(ctx, accessKeyPrefix+token)
}

// IsRefreshRevoked reports whether the refresh jti is on the ledger.
func (l *Ledger) IsRefreshRevoked(ctx context.Context, jti string) (bool, error) {
	return l.exists(ctx, refreshKeyPrefix+jti)
}

func (l *Ledger) exists(ctx context.Context, key string) (bool, error) {
	_, err := l.store.Get(ctx, key)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, store.ErrNotFound) {
		return false, nil
	}
	return false, err
}
