package posauth

import (
	"context"
	"errors"
	"time"

	"github.com/BDuong31/posauth/token"
)

// Refresh rotates a refresh token: the presented token's jti is revoked for
// its remaining lifetime before a new pair is issued, so each refresh token
// authenticates at most one rotation. A replayed token fails exactly like a
// forged one.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (pair TokenPair, err error) {
	var subject string
	defer func() { s.emitAudit(ctx, ActionRefresh, subject, err) }()

	claims, err := s.tokens.VerifyRefresh(refreshToken)
	if err != nil {
		return TokenPair{}, ErrTokenInvalid
	}
	subject = claims.Subject

	revoked, err := s.ledger.IsRefreshRevoked(ctx, claims.ID)
	if err != nil {
		return TokenPair{}, err
	}
	if revoked {
		return TokenPair{}, ErrTokenInvalid
	}

	record, err := s.users.Get(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			return TokenPair{}, ErrTokenInvalid
		}
		return TokenPair{}, err
	}
	if err := statusGate(record.Status); err != nil {
		return TokenPair{}, err
	}

	// Revoke before issuing: if the revocation write fails, no new pair
	// exists and the old token stays replayable but singular.
	if err := s.ledger.RevokeRefresh(ctx, claims.ID, token.Remaining(claims, time.Now())); err != nil {
		return TokenPair{}, err
	}

	return s.issuePair(record)
}

// Logout revokes a presented access/refresh pair for the remainder of their
// lifetimes. The refresh token is the authenticator: if it does not verify,
// or the two tokens name different subjects, nothing is revoked and the
// call fails with ErrTokenInvalid.
func (s *Service) Logout(ctx context.Context, accessToken, refreshToken string) (err error) {
	var subject string
	defer func() { s.emitAudit(ctx, ActionLogout, subject, err) }()

	refreshClaims, err := s.tokens.VerifyRefresh(refreshToken)
	if err != nil {
		return ErrTokenInvalid
	}
	subject = refreshClaims.Subject

	accessClaims, err := s.tokens.VerifyAccess(accessToken)
	if err != nil {
		return ErrTokenInvalid
	}
	if accessClaims.Subject != refreshClaims.Subject {
		return ErrTokenInvalid
	}

	revoked, err := s.ledger.IsRefreshRevoked(ctx, refreshClaims.ID)
	if err != nil {
		return err
	}
	if revoked {
		return ErrTokenInvalid
	}

	now := time.Now()
	if err := s.ledger.RevokeRefresh(ctx, refreshClaims.ID, token.Remaining(refreshClaims, now)); err != nil {
		return err
	}
	return s.ledger.RevokeAccess(ctx, accessToken, token.Remaining(accessClaims, now))
}

// Validate checks an access token: signature, expiry, and the revocation
// ledger. It is the per-request gate transports call on every protected
// operation.
func (s *Service) Validate(ctx context.Context, accessToken string) (Identity, error) {
	claims, err := s.tokens.VerifyAccess(accessToken)
	if err != nil {
		return Identity{}, ErrTokenInvalid
	}

	revoked, err := s.ledger.IsAccessRevoked(ctx, accessToken)
	if err != nil {
		return Identity{}, err
	}
	if revoked {
		return Identity{}, ErrTokenInvalid
	}

	return Identity{UserID: claims.Subject, Role: claims.Role}, nil
}
