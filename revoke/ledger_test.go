package revoke

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/BDuong31/posauth/store"
)

func newTestLedger(t *testing.T) (*miniredis.Miniredis, *Ledger) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run failed: %v", err)
	}
	t.Cleanup(mr.Close)

	return mr, NewLedger(store.NewRedis(redis.NewClient(&redis.Options{Addr: mr.Addr()})))
}

func TestRevokeAccessRoundTrip(t *testing.T) {
	mr, l := newTestLedger(t)
	ctx := context.Background()

	if err := l.RevokeAccess(ctx, "tok", time.Minute); err != nil {
		t.Fatalf("RevokeAccess failed: %v", err)
	}

	// Key shape is wire contract.
	if !mr.Exists("revoked_access_token:tok") {
		t.Fatal("expected revoked_access_token:tok to exist")
	}

	revoked, err := l.IsAccessRevoked(ctx, "tok")
	if err != nil {
		t.Fatalf("IsAccessRevoked failed: %v", err)
	}
	if !revoked {
		t.Fatal("expected token to be revoked")
	}
}

func TestRevokeRefreshRoundTrip(t *testing.T) {
	mr, l := newTestLedger(t)
	ctx := context.Background()

	if err := l.RevokeRefresh(ctx, "jti-1", time.Minute); err != nil {
		t.Fatalf("RevokeRefresh failed: %v", err)
	}
	if !mr.Exists("revoked_refresh_token:jti-1") {
		t.Fatal("expected revoked_refresh_token:jti-1 to exist")
	}

	revoked, err := l.IsRefreshRevoked(ctx, "jti-1")
	if err != nil || !revoked {
		t.Fatalf("expected jti revoked, got %v %v", revoked, err)
	}
}

func TestRevokeExpiredTokenNoOp(t *testing.T) {
	mr, l := newTestLedger(t)
	ctx := context.Background()

	if err := l.RevokeAccess(ctx, "tok", 0); err != nil {
		t.Fatalf("RevokeAccess failed: %v", err)
	}
	if err := l.RevokeAccess(ctx, "tok", -time.Minute); err != nil {
		t.Fatalf("RevokeAccess failed: %v", err)
	}
	if mr.Exists("revoked_access_token:tok") {
		t.Fatal("expected no marker for an already-expired token")
	}
}

func TestMarkerLapsesWithToken(t *testing.T) {
	mr, l := newTestLedger(t)
	ctx := context.Background()

	if err := l.RevokeAccess(ctx, "tok", time.Minute); err != nil {
		t.Fatalf("RevokeAccess failed: %v", err)
	}

	mr.FastForward(2 * time.Minute)

	revoked, err := l.IsAccessRevoked(ctx, "tok")
	if err != nil {
		t.Fatalf("IsAccessRevoked failed: %v", err)
	}
	if revoked {
		t.Fatal("expected marker to lapse with the token's lifetime")
	}
}

func TestNotRevoked(t *testing.T) {
	_, l := newTestLedger(t)

	revoked, err := l.IsAccessRevoked(context.Background(), "never-seen")
	if err != nil || revoked {
		t.Fatalf("expected clean miss, got %v %v", revoked, err)
	}
}

func TestStoreErrorsPropagate(t *testing.T) {
	mr, l := newTestLedger(t)
	mr.Close()
	ctx := context.Background()

	if err := l.RevokeAccess(ctx, "tok", time.Minute); !errors.Is(err, store.ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable from revoke, got %v", err)
	}
	if _, err := l.IsAccessRevoked(ctx, "tok"); !errors.Is(err, store.ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable from lookup, got %v", err)
	}
}
