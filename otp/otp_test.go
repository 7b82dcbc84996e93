package otp

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/BDuong31/posauth/store"
)

func newTestManager(t *testing.T) (*miniredis.Miniredis, *Manager) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run failed: %v", err)
	}
	t.Cleanup(mr.Close)

	s := store.NewRedis(redis.NewClient(&redis.Options{Addr: mr.Addr()}))

	cfg := DefaultConfig()
	cfg.HashCost = 4 // MinCost, keeps the test fast
	m, err := NewManager(s, cfg)
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}
	return mr, m
}

func TestStartWritesKeyLayout(t *testing.T) {
	mr, m := newTestManager(t)

	started, err := m.Start(context.Background(), "u1", PurposeVerifyAccount)
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if started.Token == "" || started.OTP == "" {
		t.Fatal("expected non-empty token and code")
	}
	if len(started.OTP) != 6 {
		t.Fatalf("expected 6-digit code, got %q", started.OTP)
	}

	// The key layout is wire contract with existing consumers.
	for _, key := range []string{
		"verify-account:session:" + started.Token,
		"verify-account:" + started.Token,
		"verify-account:rate:" + started.Token,
	} {
		if !mr.Exists(key) {
			t.Fatalf("expected key %q to exist", key)
		}
	}
	if got := mr.TTL("verify-account:session:" + started.Token); got != 60*time.Minute {
		t.Fatalf("session TTL = %v", got)
	}
	if got := mr.TTL("verify-account:" + started.Token); got != 5*time.Minute {
		t.Fatalf("challenge TTL = %v", got)
	}
	if got := mr.TTL("verify-account:rate:" + started.Token); got != 10*time.Minute {
		t.Fatalf("rate TTL = %v", got)
	}
}

func TestStartInvalidPurpose(t *testing.T) {
	_, m := newTestManager(t)

	if _, err := m.Start(context.Background(), "u1", Purpose("bogus")); !errors.Is(err, ErrSessionInvalid) {
		t.Fatalf("expected ErrSessionInvalid, got %v", err)
	}
}

func TestVerifySuccessConsumesSession(t *testing.T) {
	mr, m := newTestManager(t)
	ctx := context.Background()

	started, err := m.Start(ctx, "u1", PurposeVerifyAccount)
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	subject, err := m.Verify(ctx, started.Token, PurposeVerifyAccount, started.OTP)
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	if subject != "u1" {
		t.Fatalf("expected subject u1, got %q", subject)
	}

	for _, key := range []string{
		"verify-account:session:" + started.Token,
		"verify-account:" + started.Token,
		"verify-account:rate:" + started.Token,
	} {
		if mr.Exists(key) {
			t.Fatalf("expected key %q to be deleted after verify", key)
		}
	}

	// The session is consumed; a replay must fail.
	if _, err := m.Verify(ctx, started.Token, PurposeVerifyAccount, started.OTP); !errors.Is(err, ErrSessionInvalid) {
		t.Fatalf("expected ErrSessionInvalid on replay, got %v", err)
	}
}

func TestVerifyWrongCodeLeavesRecords(t *testing.T) {
	mr, m := newTestManager(t)
	ctx := context.Background()

	started, err := m.Start(ctx, "u1", PurposeVerifyAccount)
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	wrong := "000000"
	if wrong == started.OTP {
		wrong = "000001"
	}
	if _, err := m.Verify(ctx, started.Token, PurposeVerifyAccount, wrong); !errors.Is(err, ErrMismatch) {
		t.Fatalf("expected ErrMismatch, got %v", err)
	}

	for _, key := range []string{
		"verify-account:session:" + started.Token,
		"verify-account:" + started.Token,
		"verify-account:rate:" + started.Token,
	} {
		if !mr.Exists(key) {
			t.Fatalf("expected key %q to survive a failed verify", key)
		}
	}
	// A failed attempt must not burn the resend budget.
	if got, _ := mr.Get("verify-account:rate:" + started.Token); got != "1" {
		t.Fatalf("expected send counter 1, got %q", got)
	}

	// The original code still works afterwards.
	if _, err := m.Verify(ctx, started.Token, PurposeVerifyAccount, started.OTP); err != nil {
		t.Fatalf("Verify with correct code failed: %v", err)
	}
}

func TestVerifyMalformedCode(t *testing.T) {
	_, m := newTestManager(t)
	ctx := context.Background()

	started, err := m.Start(ctx, "u1", PurposeVerifyAccount)
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	for _, candidate := range []string{"", "12345", "1234567", "12a456"} {
		if _, err := m.Verify(ctx, started.Token, PurposeVerifyAccount, candidate); !errors.Is(err, ErrMismatch) {
			t.Fatalf("candidate %q: expected ErrMismatch, got %v", candidate, err)
		}
	}
}

func TestVerifyWrongPurpose(t *testing.T) {
	_, m := newTestManager(t)
	ctx := context.Background()

	started, err := m.Start(ctx, "u1", PurposeVerifyAccount)
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	if _, err := m.Verify(ctx, started.Token, PurposeForgotPassword, started.OTP); !errors.Is(err, ErrSessionInvalid) {
		t.Fatalf("expected ErrSessionInvalid across purposes, got %v", err)
	}
}

func TestVerifyChallengeExpired(t *testing.T) {
	mr, m := newTestManager(t)
	ctx := context.Background()

	started, err := m.Start(ctx, "u1", PurposeVerifyAccount)
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	// Past the challenge TTL but well within the session TTL.
	mr.FastForward(6 * time.Minute)

	if _, err := m.Verify(ctx, started.Token, PurposeVerifyAccount, started.OTP); !errors.Is(err, ErrExpired) {
		t.Fatalf("expected ErrExpired, got %v", err)
	}
	if !mr.Exists("verify-account:session:" + started.Token) {
		t.Fatal("expected session to outlive the challenge")
	}
}

func TestVerifySessionExpired(t *testing.T) {
	mr, m := newTestManager(t)
	ctx := context.Background()

	started, err := m.Start(ctx, "u1", PurposeVerifyAccount)
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	mr.FastForward(61 * time.Minute)

	if _, err := m.Verify(ctx, started.Token, PurposeVerifyAccount, started.OTP); !errors.Is(err, ErrSessionInvalid) {
		t.Fatalf("expected ErrSessionInvalid, got %v", err)
	}
}

func TestResendCooldown(t *testing.T) {
	_, m := newTestManager(t)
	ctx := context.Background()

	base := time.Now()
	m.now = func() time.Time { return base }

	started, err := m.Start(ctx, "u1", PurposeVerifyAccount)
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	// Immediately after the initial send the challenge is too fresh.
	if _, _, err := m.Resend(ctx, started.Token, PurposeVerifyAccount); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited inside cooldown, got %v", err)
	}

	m.now = func() time.Time { return base.Add(61 * time.Second) }

	subject, code, err := m.Resend(ctx, started.Token, PurposeVerifyAccount)
	if err != nil {
		t.Fatalf("Resend failed: %v", err)
	}
	if subject != "u1" || len(code) != 6 {
		t.Fatalf("unexpected resend result %q %q", subject, code)
	}

	// The rotation destroyed the old code.
	if code != started.OTP {
		if _, err := m.Verify(ctx, started.Token, PurposeVerifyAccount, started.OTP); !errors.Is(err, ErrMismatch) {
			t.Fatalf("expected old code to stop matching, got %v", err)
		}
	}
	if _, err := m.Verify(ctx, started.Token, PurposeVerifyAccount, code); err != nil {
		t.Fatalf("Verify with rotated code failed: %v", err)
	}
}

func TestResendCeiling(t *testing.T) {
	_, m := newTestManager(t)
	ctx := context.Background()

	base := time.Now()
	m.now = func() time.Time { return base }

	started, err := m.Start(ctx, "u1", PurposeVerifyAccount)
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	// The initial send plus five resends is the full budget.
	for i := 1; i <= 5; i++ {
		m.now = func() time.Time { return base.Add(time.Duration(i) * 2 * time.Minute) }
		if _, _, err := m.Resend(ctx, started.Token, PurposeVerifyAccount); err != nil {
			t.Fatalf("resend %d failed: %v", i, err)
		}
	}

	m.now = func() time.Time { return base.Add(20 * time.Minute) }
	if _, _, err := m.Resend(ctx, started.Token, PurposeVerifyAccount); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited past the ceiling, got %v", err)
	}
}

func TestResendAfterWindowLapse(t *testing.T) {
	mr, m := newTestManager(t)
	ctx := context.Background()

	base := time.Now()
	m.now = func() time.Time { return base }

	started, err := m.Start(ctx, "u1", PurposeVerifyAccount)
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	// The counter's window lapses independently of the session; the budget
	// resets while the session stays live.
	mr.FastForward(11 * time.Minute)
	m.now = func() time.Time { return base.Add(11 * time.Minute) }

	if _, _, err := m.Resend(ctx, started.Token, PurposeVerifyAccount); err != nil {
		t.Fatalf("Resend after window lapse failed: %v", err)
	}
	if got, _ := mr.Get("verify-account:rate:" + started.Token); got != "1" {
		t.Fatalf("expected recreated counter at 1, got %q", got)
	}
}

func TestResendUnknownSession(t *testing.T) {
	_, m := newTestManager(t)

	if _, _, err := m.Resend(context.Background(), "no-such-token", PurposeVerifyAccount); !errors.Is(err, ErrSessionInvalid) {
		t.Fatalf("expected ErrSessionInvalid, got %v", err)
	}
}

func TestConcurrentVerifySingleWinner(t *testing.T) {
	_, m := newTestManager(t)
	ctx := context.Background()

	started, err := m.Start(ctx, "u1", PurposeVerifyAccount)
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	const racers = 8
	results := make([]error, racers)

	var wg sync.WaitGroup
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, results[i] = m.Verify(ctx, started.Token, PurposeVerifyAccount, started.OTP)
		}(i)
	}
	wg.Wait()

	winners := 0
	for i, err := range results {
		switch {
		case err == nil:
			winners++
		// Losers observe the teardown at different points: a consumed
		// session or an already-deleted challenge.
		case errors.Is(err, ErrSessionInvalid), errors.Is(err, ErrExpired):
		default:
			t.Fatalf("racer %d: unexpected error %v", i, err)
		}
	}
	if winners != 1 {
		t.Fatalf("expected exactly one winner, got %d", winners)
	}
}
