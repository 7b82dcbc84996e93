package posauth

import (
	"errors"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/BDuong31/posauth/events"
	internalaudit "github.com/BDuong31/posauth/internal/audit"
	"github.com/BDuong31/posauth/otp"
	"github.com/BDuong31/posauth/password"
	"github.com/BDuong31/posauth/token"
)

// Config configures a Service. Zero-value sections take the defaults from
// defaultConfig; call Validate (or Builder.Build, which does) before use.
type Config struct {
	Token    TokenConfig
	OTP      OTPConfig
	Password PasswordConfig
	Reset    ResetConfig
	Audit    AuditConfig
	Events   EventsConfig
}

// TokenConfig bounds issued access and refresh tokens.
type TokenConfig struct {
	// Secret is the HS256 signing key. Required.
	Secret []byte
	// AccessTTL bounds access tokens.
	AccessTTL time.Duration
	// RefreshTTL bounds refresh tokens.
	RefreshTTL time.Duration
	// Issuer is embedded in every token and enforced when non-empty.
	Issuer string
}

// OTPConfig bounds the verification and password-reset code flows.
type OTPConfig struct {
	SessionTTL     time.Duration
	ChallengeTTL   time.Duration
	RateWindow     time.Duration
	ResendCeiling  int
	ResendCooldown time.Duration
	Digits         int
	HashCost       int
}

// PasswordConfig bounds credential hashing.
type PasswordConfig struct {
	// Cost is the bcrypt work factor.
	Cost int
}

// ResetConfig bounds the single-use reset credential minted after a
// successful forgot-password OTP verification.
type ResetConfig struct {
	TokenTTL time.Duration
}

// AuditConfig controls the audit trail.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// EventsConfig controls domain-event dispatch buffering.
type EventsConfig struct {
	BufferSize int
	DropIfFull bool
}

func defaultConfig() Config {
	return Config{
		Token: TokenConfig{
			AccessTTL:  15 * time.Minute,
			RefreshTTL: 7 * 24 * time.Hour,
		},
		OTP: OTPConfig{
			SessionTTL:     60 * time.Minute,
			ChallengeTTL:   5 * time.Minute,
			RateWindow:     10 * time.Minute,
			ResendCeiling:  5,
			ResendCooldown: 60 * time.Second,
			Digits:         6,
			HashCost:       bcrypt.DefaultCost,
		},
		Password: PasswordConfig{
			Cost: bcrypt.DefaultCost,
		},
		Reset: ResetConfig{
			TokenTTL: 15 * time.Minute,
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Events: EventsConfig{
			BufferSize: 256,
			DropIfFull: true,
		},
	}
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.Token.Secret = cloneBytes(cfg.Token.Secret)
	return out
}

func cloneBytes(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

// Validate checks the configuration for internal consistency.
func (c *Config) Validate() error {
	if len(c.Token.Secret) == 0 {
		return errors.New("Token Secret is required")
	}
	if len(c.Token.Secret) < 32 {
		return errors.New("Token Secret must be at least 256 bits")
	}
	if c.Token.AccessTTL <= 0 {
		return errors.New("Token AccessTTL must be > 0")
	}
	if c.Token.RefreshTTL <= 0 {
		return errors.New("Token RefreshTTL must be > 0")
	}
	if c.Token.AccessTTL >= c.Token.RefreshTTL {
		return errors.New("Token AccessTTL must be shorter than RefreshTTL")
	}

	if c.OTP.SessionTTL <= 0 {
		return errors.New("OTP SessionTTL must be > 0")
	}
	if c.OTP.ChallengeTTL <= 0 || c.OTP.ChallengeTTL > c.OTP.SessionTTL {
		return errors.New("OTP ChallengeTTL must be > 0 and <= SessionTTL")
	}
	if c.OTP.RateWindow <= 0 {
		return errors.New("OTP RateWindow must be > 0")
	}
	if c.OTP.ResendCeiling <= 0 {
		return errors.New("OTP ResendCeiling must be > 0")
	}
	if c.OTP.ResendCooldown <= 0 {
		return errors.New("OTP ResendCooldown must be > 0")
	}
	if c.OTP.Digits < 4 || c.OTP.Digits > 10 {
		return errors.New("OTP Digits must be between 4 and 10")
	}

	if c.Password.Cost < bcrypt.MinCost || c.Password.Cost > bcrypt.MaxCost {
		return errors.New("Password Cost is out of range")
	}

	if c.Reset.TokenTTL <= 0 {
		return errors.New("Reset TokenTTL must be > 0")
	}

	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0 when audit is enabled")
	}
	if c.Events.BufferSize <= 0 {
		return errors.New("Events BufferSize must be > 0")
	}

	return nil
}

func (c Config) tokenConfig() token.Config {
	return token.Config{
		Secret:     c.Token.Secret,
		AccessTTL:  c.Token.AccessTTL,
		RefreshTTL: c.Token.RefreshTTL,
		Issuer:     c.Token.Issuer,
	}
}

func (c Config) otpConfig() otp.Config {
	return otp.Config{
		SessionTTL:     c.OTP.SessionTTL,
		ChallengeTTL:   c.OTP.ChallengeTTL,
		RateWindow:     c.OTP.RateWindow,
		ResendCeiling:  c.OTP.ResendCeiling,
		ResendCooldown: c.OTP.ResendCooldown,
		Digits:         c.OTP.Digits,
		HashCost:       c.OTP.HashCost,
	}
}

func (c Config) passwordConfig() password.Config {
	return password.Config{Cost: c.Password.Cost}
}

func (c Config) auditConfig() internalaudit.Config {
	return internalaudit.Config{
		Enabled:    c.Audit.Enabled,
		BufferSize: c.Audit.BufferSize,
		DropIfFull: c.Audit.DropIfFull,
	}
}

func (c Config) eventsConfig() events.Config {
	return events.Config{
		BufferSize: c.Events.BufferSize,
		DropIfFull: c.Events.DropIfFull,
	}
}
