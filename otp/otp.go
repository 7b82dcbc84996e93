// Package otp implements the time-boxed, rate-limited one-time-passcode
// session machine used for account verification and password reset.
//
// One logical session is three independently-expiring records in the TTL
// store, co-located under an opaque session token:
//
//	{purpose}:session:{token}  session metadata, long TTL (~60 min)
//	{purpose}:{token}          hashed challenge, short TTL (~5 min)
//	{purpose}:rate:{token}     send counter, its own window (~10 min)
//
// The challenge rotates and expires much faster than the enclosing session,
// and the send budget outlives any single challenge. Collapsing the three
// into one record would either let codes live too long or let resends reset
// the abuse counter. The key layout is fixed wire contract with existing
// collaborators and must not change.
//
// The plaintext code is returned to the caller for delivery and never
// written to the store; only a bcrypt hash is persisted.
package otp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/BDuong31/posauth/internal"
	"github.com/BDuong31/posauth/store"
)

// Purpose names the flow a session belongs to. It is part of every key the
// session writes, so sessions of different flows can never collide or be
// replayed across flows.
type Purpose string

const (
	// PurposeVerifyAccount is the registration email-verification flow.
	PurposeVerifyAccount Purpose = "verify-account"
	// PurposeForgotPassword is the password-reset flow.
	PurposeForgotPassword Purpose = "forgot-password"
)

// Valid reports whether p is a known purpose.
func (p Purpose) Valid() bool {
	return p == PurposeVerifyAccount || p == PurposeForgotPassword
}

// StatusPending is the only non-terminal session status. Terminal outcomes
// are implicit: success deletes the records, expiry lets them lapse.
const StatusPending = "OTP_PENDING"

var (
	// ErrSessionInvalid reports a missing, wrong-purpose, or already-consumed
	// session.
	ErrSessionInvalid = errors.New("otp: session invalid")
	// ErrExpired reports that the challenge lapsed while the enclosing
	// session is still live. The flow can recover with a resend.
	ErrExpired = errors.New("otp: challenge expired")
	// ErrMismatch reports a wrong code. The session is left untouched.
	ErrMismatch = errors.New("otp: code mismatch")
	// ErrRateLimited reports that the resend budget is exhausted or that the
	// current challenge is too fresh to rotate.
	ErrRateLimited = errors.New("otp: rate limited")
)

// Config bounds a Manager. Zero fields are filled from DefaultConfig by
// NewManager.
type Config struct {
	// SessionTTL is the outer envelope; once it lapses the whole flow
	// restarts.
	SessionTTL time.Duration
	// ChallengeTTL bounds a single code.
	ChallengeTTL time.Duration
	// RateWindow bounds the send counter, independent of SessionTTL.
	RateWindow time.Duration
	// ResendCeiling caps resends beyond the initial send within RateWindow.
	ResendCeiling int
	// ResendCooldown is the minimum age of the current challenge before it
	// may be rotated.
	ResendCooldown time.Duration
	// Digits is the code length.
	Digits int
	// HashCost is the bcrypt cost for challenge hashes.
	HashCost int
}

// DefaultConfig returns the production windows.
func DefaultConfig() Config {
	return Config{
		SessionTTL:     60 * time.Minute,
		ChallengeTTL:   5 * time.Minute,
		RateWindow:     10 * time.Minute,
		ResendCeiling:  5,
		ResendCooldown: 60 * time.Second,
		Digits:         6,
		HashCost:       bcrypt.DefaultCost,
	}
}

// Manager drives OTP sessions against a TTL store. Safe for concurrent use.
type Manager struct {
	store  store.TTL
	config Config
	now    func() time.Time
}

// NewManager builds a Manager. Unset config fields take defaults.
func NewManager(s store.TTL, cfg Config) (*Manager, error) {
	def := DefaultConfig()
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = def.SessionTTL
	}
	if cfg.ChallengeTTL <= 0 {
		cfg.ChallengeTTL = def.ChallengeTTL
	}
	if cfg.RateWindow <= 0 {
		cfg.RateWindow = def.RateWindow
	}
	if cfg.ResendCeiling <= 0 {
		cfg.ResendCeiling = def.ResendCeiling
	}
	if cfg.ResendCooldown <= 0 {
		cfg.ResendCooldown = def.ResendCooldown
	}
	if cfg.Digits <= 0 {
		cfg.Digits = def.Digits
	}
	if cfg.HashCost <= 0 {
		cfg.HashCost = def.HashCost
	}
	if cfg.ChallengeTTL > cfg.SessionTTL {
		return nil, errors.New("otp: challenge TTL exceeds session TTL")
	}
	return &Manager{store: s, config: cfg, now: time.Now}, nil
}

// Started is the result of Start: the opaque session token handed to the
// client, the session expiry, and the plaintext code for delivery.
type Started struct {
	Token     string
	ExpiresAt time.Time
	OTP       string
}

type sessionRecord struct {
	Subject   string `json:"subject"`
	Purpose   string `json:"purpose"`
	Status    string `json:"status"`
	CreatedAt int64  `json:"createdAt"`
}

type challengeRecord struct {
	Hash      string `json:"hash"`
	CreatedAt int64  `json:"createdAt"`
}

func sessionKey(p Purpose, token string) string   { return string(p) + ":session:" + token }
func challengeKey(p Purpose, token string) string { return string(p) + ":" + token }
func rateKey(p Purpose, token string) string      { return string(p) + ":rate:" + token }

// Start opens a session for the subject: writes metadata, the first hashed
// challenge, and the send counter seeded at one. The plaintext code is only
// in the returned Started value.
func (m *Manager) Start(ctx context.Context, subject string, purpose Purpose) (Started, error) {
	if !purpose.Valid() {
		return Started{}, ErrSessionInvalid
	}

	token, err := internal.NewSessionToken()
	if err != nil {
		return Started{}, err
	}
	code, err := internal.NewOTP(m.config.Digits)
	if err != nil {
		return Started{}, err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(code), m.config.HashCost)
	if err != nil {
		return Started{}, err
	}

	now := m.now()
	meta, err := json.Marshal(sessionRecord{
		Subject:   subject,
		Purpose:   string(purpose),
		Status:    StatusPending,
		CreatedAt: now.Unix(),
	})
	if err != nil {
		return Started{}, err
	}
	chal, err := json.Marshal(challengeRecord{
		Hash:      string(hash),
		CreatedAt: now.Unix(),
	})
	if err != nil {
		return Started{}, err
	}

	// Metadata first: a crash mid-sequence leaves at worst a challenge-less
	// session that self-expires.
	if err := m.store.Set(ctx, sessionKey(purpose, token), string(meta), m.config.SessionTTL); err != nil {
		return Started{}, err
	}
	if err := m.store.Set(ctx, challengeKey(purpose, token), string(chal), m.config.ChallengeTTL); err != nil {
		return Started{}, err
	}
	if _, err := m.store.Incr(ctx, rateKey(purpose, token), m.config.RateWindow); err != nil {
		return Started{}, err
	}

	return Started{
		Token:     token,
		ExpiresAt: now.Add(m.config.SessionTTL),
		OTP:       code,
	}, nil
}

// Resend rotates the challenge: the old record is destroyed, a fresh code is
// hashed and written with a full challenge TTL, and the send counter is
// incremented (recreated with a new window if it had independently expired).
// It returns the session subject and the new plaintext code for delivery.
//
// Rejections, in order: unknown/wrong-purpose session, exhausted send budget,
// current challenge younger than the cooldown.
func (m *Manager) Resend(ctx context.Context, token string, purpose Purpose) (string, string, error) {
	meta, err := m.loadSession(ctx, token, purpose)
	if err != nil {
		return "", "", err
	}

	maxSends := int64(1 + m.config.ResendCeiling)

	if count, err := m.sendCount(ctx, token, purpose); err != nil {
		return "", "", err
	} else if count >= maxSends {
		return "", "", ErrRateLimited
	}

	// Cooldown is measured against the current challenge, not the session:
	// it prevents thrash even while budget remains.
	current, err := m.loadChallenge(ctx, token, purpose)
	if err == nil {
		age := m.now().Sub(time.Unix(current.CreatedAt, 0))
		if age < m.config.ResendCooldown {
			return "", "", ErrRateLimited
		}
	} else if !errors.Is(err, store.ErrNotFound) {
		return "", "", err
	}

	// The atomic increment is the authoritative budget check; the read above
	// only short-circuits the common case without burning an increment.
	count, err := m.store.Incr(ctx, rateKey(purpose, token), m.config.RateWindow)
	if err != nil {
		return "", "", err
	}
	if count > maxSends {
		return "", "", ErrRateLimited
	}

	code, err := internal.NewOTP(m.config.Digits)
	if err != nil {
		return "", "", err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(code), m.config.HashCost)
	if err != nil {
		return "", "", err
	}
	chal, err := json.Marshal(challengeRecord{
		Hash:      string(hash),
		CreatedAt: m.now().Unix(),
	})
	if err != nil {
		return "", "", err
	}

	if err := m.store.Delete(ctx, challengeKey(purpose, token)); err != nil {
		return "", "", err
	}
	if err := m.store.Set(ctx, challengeKey(purpose, token), string(chal), m.config.ChallengeTTL); err != nil {
		return "", "", err
	}

	return meta.Subject, code, nil
}

// Verify checks the candidate code against the stored hash and, on match,
// consumes the session. Exactly one concurrent Verify can win: the winner is
// whoever consumes the session metadata; every loser sees ErrSessionInvalid.
// It returns the session subject for the caller to act on.
//
// A wrong code leaves all three records untouched and does not count against
// the resend budget.
func (m *Manager) Verify(ctx context.Context, token string, purpose Purpose, candidate string) (string, error) {
	if _, err := m.loadSession(ctx, token, purpose); err != nil {
		return "", err
	}

	chal, err := m.loadChallenge(ctx, token, purpose)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return "", ErrExpired
		}
		return "", err
	}

	if len(candidate) != m.config.Digits || !internal.IsNumeric(candidate) {
		return "", ErrMismatch
	}
	// The comparison result must be fully computed before branching.
	if err := bcrypt.CompareHashAndPassword([]byte(chal.Hash), []byte(candidate)); err != nil {
		return "", ErrMismatch
	}

	// Consuming the metadata decides the race between concurrent verifies.
	raw, err := m.store.GetDel(ctx, sessionKey(purpose, token))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return "", ErrSessionInvalid
		}
		return "", err
	}
	var meta sessionRecord
	if err := json.Unmarshal([]byte(raw), &meta); err != nil {
		return "", fmt.Errorf("otp: corrupt session record: %w", err)
	}

	// Best-effort teardown; a leftover record self-expires harmlessly.
	_ = m.store.Delete(ctx, challengeKey(purpose, token))
	_ = m.store.Delete(ctx, rateKey(purpose, token))

	return meta.Subject, nil
}

func (m *Manager) loadSession(ctx context.Context, token string, purpose Purpose) (*sessionRecord, error) {
	raw, err := m.store.Get(ctx, sessionKey(purpose, token))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrSessionInvalid
		}
		return nil, err
	}

	var meta sessionRecord
	if err := json.Unmarshal([]byte(raw), &meta); err != nil {
		return nil, fmt.Errorf("otp: corrupt session record: %w", err)
	}
	if meta.Purpose != string(purpose) || meta.Status != StatusPending {
		return nil, ErrSessionInvalid
	}
	return &meta, nil
}

func (m *Manager) loadChallenge(ctx context.Context, token string, purpose Purpose) (*challengeRecord, error) {
	raw, err := m.store.Get(ctx, challengeKey(purpose, token))
	if err != nil {
		return nil, err
	}
	var chal challengeRecord
	if err := json.Unmarshal([]byte(raw), &chal); err != nil {
		return nil, fmt.Errorf("otp: corrupt challenge record: %w", err)
	}
	return &chal, nil
}

func (m *Manager) sendCount(ctx context.Context, token string, purpose Purpose) (int64, error) {
	raw, err := m.store.Get(ctx, rateKey(purpose, token))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return 0, nil
		}
		return 0, err
	}
	count, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("otp: corrupt rate counter: %w", err)
	}
	return count, nil
}
