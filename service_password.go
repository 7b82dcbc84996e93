package posauth

import (
	"context"
	"errors"

	"github.com/BDuong31/posauth/events"
	"github.com/BDuong31/posauth/internal"
	"github.com/BDuong31/posauth/store"
)

// ForgotPassword opens a password-reset OTP session for the account behind
// the email. It is enumeration safe: an unknown email, and an account that
// is not active, both receive a challenge with no session behind it, and
// nothing is published.
func (s *Service) ForgotPassword(ctx context.Context, email string) (challenge OTPChallenge, err error) {
	defer func() { s.emitAudit(ctx, ActionForgotPassword, email, err) }()

	record, err := s.lookupByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			return s.decoyChallenge()
		}
		return OTPChallenge{}, err
	}
	if record.Status != StatusActive {
		return s.decoyChallenge()
	}

	started, err := s.otp.Start(ctx, record.ID, PurposeForgotPassword)
	if err != nil {
		return OTPChallenge{}, err
	}

	s.publish(ctx, events.UserForgotPassword, events.Payload{
		UserID:   record.ID,
		Email:    record.Email,
		Username: record.Username,
		OTP:      started.OTP,
	})

	return OTPChallenge{
		SessionToken: started.Token,
		ExpiresAt:    started.ExpiresAt,
	}, nil
}

// VerifyPasswordReset consumes a password-reset OTP session and mints the
// single-use reset credential ResetPassword requires. The credential is an
// opaque token with its own short lifetime; the OTP session is gone whether
// or not the credential is ever used.
func (s *Service) VerifyPasswordReset(ctx context.Context, sessionToken, code string) (resetToken string, err error) {
	var subject string
	defer func() { s.emitAudit(ctx, ActionVerifyReset, subject, err) }()

	subject, err = s.otp.Verify(ctx, sessionToken, PurposeForgotPassword, code)
	if err != nil {
		return "", mapOTPErr(err)
	}

	resetToken, err = internal.NewSessionToken()
	if err != nil {
		return "", err
	}
	if err := s.store.Set(ctx, resetKeyPrefix+resetToken, subject, s.config.Reset.TokenTTL); err != nil {
		return "", err
	}

	return resetToken, nil
}

// ResetPassword redeems a reset credential and installs the new password.
// The credential is consumed atomically before the password is touched, so
// concurrent redemptions of the same credential admit exactly one winner.
func (s *Service) ResetPassword(ctx context.Context, resetToken, newPassword string) (err error) {
	var subject string
	defer func() { s.emitAudit(ctx, ActionResetPassword, subject, err) }()

	subject, err = s.store.GetDel(ctx, resetKeyPrefix+resetToken)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrTokenInvalid
		}
		return err
	}

	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return err
	}
	record, err := s.users.Update(ctx, subject, UserPatch{PasswordHash: &hash})
	if err != nil {
		return err
	}

	s.publish(ctx, events.UserCompleteResetPassword, events.Payload{
		UserID:   record.ID,
		Email:    record.Email,
		Username: record.Username,
	})

	return nil
}

// ChangePassword rotates the password of an authenticated account. The
// current password must match, and the new password must differ from it.
func (s *Service) ChangePassword(ctx context.Context, userID, oldPassword, newPassword string) (err error) {
	defer func() { s.emitAudit(ctx, ActionChangePassword, userID, err) }()

	record, err := s.users.Get(ctx, userID)
	if err != nil {
		return err
	}

	if !s.hasher.Verify(oldPassword, record.PasswordHash) {
		return ErrInvalidCredentials
	}
	if newPassword == oldPassword {
		return ErrPasswordReuse
	}

	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return err
	}
	record, err = s.users.Update(ctx, userID, UserPatch{PasswordHash: &hash})
	if err != nil {
		return err
	}

	s.publish(ctx, events.UserCompleteChangePass, events.Payload{
		UserID:   record.ID,
		Email:    record.Email,
		Username: record.Username,
	})

	return nil
}
