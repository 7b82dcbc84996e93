package posauth

import (
	"context"
	"errors"
	"time"

	"github.com/BDuong31/posauth/events"
	"github.com/BDuong31/posauth/token"
)

// ProfileUpdate carries the profile fields an account may change about
// itself. Nil fields are left untouched.
type ProfileUpdate struct {
	Username *string
	Email    *string
}

// UpdateProfile changes an account's profile fields, enforcing the same
// uniqueness rules as registration.
func (s *Service) UpdateProfile(ctx context.Context, userID string, update ProfileUpdate) (err error) {
	defer func() { s.emitAudit(ctx, ActionUpdateProfile, userID, err) }()

	record, err := s.users.Get(ctx, userID)
	if err != nil {
		return err
	}

	if update.Email != nil && *update.Email != record.Email {
		other, err := s.lookupByEmail(ctx, *update.Email)
		if err == nil && other.ID != userID {
			return ErrDuplicateEmail
		}
		if err != nil && !errors.Is(err, ErrAccountNotFound) {
			return err
		}
	}
	if update.Username != nil && *update.Username != record.Username {
		other, err := s.users.FindByUniqueField(ctx, FieldUsername, *update.Username)
		if err == nil && other.ID != userID {
			return ErrDuplicateUsername
		}
		if err != nil && !errors.Is(err, ErrAccountNotFound) {
			return err
		}
	}

	record, err = s.users.Update(ctx, userID, UserPatch{
		Username: update.Username,
		Email:    update.Email,
	})
	if err != nil {
		return err
	}

	s.publish(ctx, events.UserUpdatedProfile, events.Payload{
		UserID:   record.ID,
		Email:    record.Email,
		Username: record.Username,
	})

	return nil
}

// DeleteAccount removes an account and revokes the presented token pair for
// the remainder of its lifetime. The pair must verify and name the deleted
// account; otherwise nothing happens and the call fails with
// ErrTokenInvalid. Revocation is recorded before the record is deleted, so
// a failed delete leaves a live account with dead tokens rather than the
// reverse.
func (s *Service) DeleteAccount(ctx context.Context, userID, accessToken, refreshToken string) (err error) {
	defer func() { s.emitAudit(ctx, ActionDeleteAccount, userID, err) }()

	record, err := s.users.Get(ctx, userID)
	if err != nil {
		return err
	}

	refreshClaims, err := s.tokens.VerifyRefresh(refreshToken)
	if err != nil {
		return ErrTokenInvalid
	}
	accessClaims, err := s.tokens.VerifyAccess(accessToken)
	if err != nil {
		return ErrTokenInvalid
	}
	if refreshClaims.Subject != userID || accessClaims.Subject != userID {
		return ErrTokenInvalid
	}

	now := time.Now()
	if err := s.ledger.RevokeRefresh(ctx, refreshClaims.ID, token.Remaining(refreshClaims, now)); err != nil {
		return err
	}
	if err := s.ledger.RevokeAccess(ctx, accessToken, token.Remaining(accessClaims, now)); err != nil {
		return err
	}

	if err := s.users.Delete(ctx, userID); err != nil {
		return err
	}

	s.publish(ctx, events.UserDeleted, events.Payload{
		UserID:   record.ID,
		Email:    record.Email,
		Username: record.Username,
	})

	return nil
}
