package posauth

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/BDuong31/posauth/events"
	"github.com/BDuong31/posauth/internal"
)

// Register creates a pending account and opens its verification OTP session.
// The account cannot log in until VerifyAccount succeeds. The plaintext code
// leaves the core only inside the published user.created event.
func (s *Service) Register(ctx context.Context, input RegisterInput) (result RegisterResult, err error) {
	defer func() { s.emitAudit(ctx, ActionRegister, input.Email, err) }()

	if input.Username == "" || input.Email == "" || input.Password == "" {
		return RegisterResult{}, errors.New("posauth: username, email, and password are required")
	}

	// Email is checked before username, so a request violating both reports
	// the email conflict.
	if _, err := s.lookupByEmail(ctx, input.Email); err == nil {
		return RegisterResult{}, ErrDuplicateEmail
	} else if !errors.Is(err, ErrAccountNotFound) {
		return RegisterResult{}, err
	}
	if _, err := s.users.FindByUniqueField(ctx, FieldUsername, input.Username); err == nil {
		return RegisterResult{}, ErrDuplicateUsername
	} else if !errors.Is(err, ErrAccountNotFound) {
		return RegisterResult{}, err
	}

	hash, err := s.hasher.Hash(input.Password)
	if err != nil {
		return RegisterResult{}, err
	}

	now := time.Now()
	created, err := s.users.Insert(ctx, UserRecord{
		ID:           uuid.NewString(),
		Username:     input.Username,
		Email:        input.Email,
		PasswordHash: hash,
		Status:       StatusPending,
		Role:         input.Role,
		CreatedAt:    now,
		UpdatedAt:    now,
	})
	if err != nil {
		return RegisterResult{}, err
	}

	// A failure past this point leaves a pending account without a live OTP
	// session; RequestVerification recovers it.
	started, err := s.otp.Start(ctx, created.ID, PurposeVerifyAccount)
	if err != nil {
		return RegisterResult{}, err
	}

	s.publish(ctx, events.UserCreated, events.Payload{
		UserID:   created.ID,
		Email:    created.Email,
		Username: created.Username,
		OTP:      started.OTP,
	})

	return RegisterResult{
		UserID: created.ID,
		Challenge: OTPChallenge{
			SessionToken: started.Token,
			ExpiresAt:    started.ExpiresAt,
		},
	}, nil
}

// RequestVerification reopens the verification flow for a pending account,
// for example after the session from Register lapsed. It is enumeration
// safe: an unknown email, and an account that is past pending, both receive
// a challenge that is not backed by any session, and nothing is published.
func (s *Service) RequestVerification(ctx context.Context, email string) (challenge OTPChallenge, err error) {
	defer func() { s.emitAudit(ctx, ActionRequestVerification, email, err) }()

	record, err := s.lookupByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			return s.decoyChallenge()
		}
		return OTPChallenge{}, err
	}
	if record.Status != StatusPending {
		return s.decoyChallenge()
	}

	started, err := s.otp.Start(ctx, record.ID, PurposeVerifyAccount)
	if err != nil {
		return OTPChallenge{}, err
	}

	s.publish(ctx, events.UserCreated, events.Payload{
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

// VerifyAccount consumes a verification OTP session and activates the
// account. Exactly one concurrent call for the same session can succeed.
func (s *Service) VerifyAccount(ctx context.Context, sessionToken, code string) (err error) {
	var subject string
	defer func() { s.emitAudit(ctx, ActionVerifyAccount, subject, err) }()

	subject, err = s.otp.Verify(ctx, sessionToken, PurposeVerifyAccount, code)
	if err != nil {
		return mapOTPErr(err)
	}

	record, err := s.users.Get(ctx, subject)
	if err != nil {
		return err
	}
	// Only a pending account transitions; a record that moved past pending
	// while the session was open keeps its status, and no event fires. The
	// session is consumed either way.
	if record.Status != StatusPending {
		return nil
	}

	status := StatusActive
	record, err = s.users.Update(ctx, record.ID, UserPatch{Status: &status})
	if err != nil {
		return err
	}

	s.publish(ctx, events.UserVerified, events.Payload{
		UserID:   record.ID,
		Email:    record.Email,
		Username: record.Username,
	})

	return nil
}

// ResendOTP rotates the code of a live OTP session and re-notifies through
// the event that opened the flow. Rejections mirror the session machine:
// unknown session, exhausted send budget, or a code younger than the
// cooldown.
func (s *Service) ResendOTP(ctx context.Context, sessionToken string, purpose Purpose) (err error) {
	var subject string
	defer func() { s.emitAudit(ctx, ActionResendOTP, subject, err) }()

	if !purpose.Valid() {
		return ErrSessionInvalid
	}

	subject, code, err := s.otp.Resend(ctx, sessionToken, purpose)
	if err != nil {
		return mapOTPErr(err)
	}

	record, err := s.users.Get(ctx, subject)
	if err != nil {
		return err
	}

	name := events.UserCreated
	if purpose == PurposeForgotPassword {
		name = events.UserForgotPassword
	}
	s.publish(ctx, name, events.Payload{
		UserID:   record.ID,
		Email:    record.Email,
		Username: record.Username,
		OTP:      code,
	})

	return nil
}

// decoyChallenge mints a challenge with no session behind it. Presented
// back, it behaves exactly like a session that has already expired.
func (s *Service) decoyChallenge() (OTPChallenge, error) {
	token, err := internal.NewSessionToken()
	if err != nil {
		return OTPChallenge{}, err
	}
	return OTPChallenge{
		SessionToken: token,
		ExpiresAt:    time.Now().Add(s.config.OTP.SessionTTL),
	}, nil
}
