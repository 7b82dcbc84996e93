package posauth

import (
	"context"
	"errors"
)

// Login wasted-compare target: a valid bcrypt hash of an unguessable value,
// so unknown identifiers cost the same as a wrong password.
const dummyHash = "$2a$10$N9qo8uLOickgx2ZMRZoMyeIjZAgcfl7p92ldGxad68LJZdL17lhWy"

// Login authenticates by username or email and issues a token pair. Every
// credential failure is ErrInvalidCredentials; the caller can never learn
// whether the identifier or the password was wrong. Status gates fire only
// after the password has matched.
func (s *Service) Login(ctx context.Context, identifier, pass string) (pair TokenPair, err error) {
	defer func() { s.emitAudit(ctx, ActionLogin, identifier, err) }()

	record, err := s.users.FindByAnyOf(ctx, map[string]string{
		FieldUsername: identifier,
		FieldEmail:    identifier,
	})
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			// Burn a comparison anyway so the miss is not observable by timing.
			s.hasher.Verify(pass, dummyHash)
			return TokenPair{}, ErrInvalidCredentials
		}
		return TokenPair{}, err
	}

	if !s.hasher.Verify(pass, record.PasswordHash) {
		return TokenPair{}, ErrInvalidCredentials
	}
	if err := statusGate(record.Status); err != nil {
		return TokenPair{}, err
	}

	return s.issuePair(record)
}

func (s *Service) issuePair(record UserRecord) (TokenPair, error) {
	access, err := s.tokens.IssueAccess(record.ID, record.Role)
	if err != nil {
		return TokenPair{}, err
	}
	refresh, _, err := s.tokens.IssueRefresh(record.ID)
	if err != nil {
		return TokenPair{}, err
	}
	return TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}
