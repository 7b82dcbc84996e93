// Package password wraps bcrypt hashing behind a small, substitutable
// hasher. bcrypt keeps the stored hashes wire-compatible with the credential
// records the surrounding system already holds.
package password

import (
	"errors"

	"golang.org/x/crypto/bcrypt"
)

// Config parameterizes a Hasher.
type Config struct {
	// Cost is the bcrypt work factor. Zero takes bcrypt.DefaultCost.
	Cost int
}

// Hasher hashes and verifies passwords. Safe for concurrent use.
type Hasher struct {
	cost int
}

// NewHasher validates cfg and builds a Hasher.
func NewHasher(cfg Config) (*Hasher, error) {
	cost := cfg.Cost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		return nil, errors.New("password: cost out of range")
	}
	return &Hasher{cost: cost}, nil
}

// Hash returns the salted bcrypt hash of plaintext.
func (h *Hasher) Hash(plaintext string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(plaintext), h.cost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// Verify reports whether plaintext matches hash. The comparison runs to
// completion before the result is returned; a malformed hash is a mismatch,
// not an error the caller can distinguish.
func (h *Hasher) Verify(plaintext, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plaintext)) == nil
}
