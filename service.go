package posauth

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/BDuong31/posauth/events"
	internalaudit "github.com/BDuong31/posauth/internal/audit"
	"github.com/BDuong31/posauth/otp"
	"github.com/BDuong31/posauth/password"
	"github.com/BDuong31/posauth/revoke"
	"github.com/BDuong31/posauth/store"
	"github.com/BDuong31/posauth/token"
)

// Audit action names recorded with every security-relevant operation.
const (
	ActionRegister            = "register"
	ActionRequestVerification = "request_verification"
	ActionVerifyAccount       = "verify_account"
	ActionResendOTP           = "otp_resend"
	ActionLogin               = "login"
	ActionRefresh             = "refresh"
	ActionLogout              = "logout"
	ActionForgotPassword      = "forgot_password"
	ActionVerifyReset         = "verify_password_reset"
	ActionResetPassword       = "reset_password"
	ActionChangePassword      = "change_password"
	ActionUpdateProfile       = "update_profile"
	ActionDeleteAccount       = "delete_account"
)

// Key prefix for single-use password-reset credentials, fixed wire contract.
const resetKeyPrefix = "reset_password:"

// Service is the authentication core: registration and OTP verification,
// login and the token lifecycle, and the password flows. Build one through
// the Builder; a Service is immutable and safe for concurrent use.
type Service struct {
	config Config
	users  UserRepository
	store  store.TTL
	tokens *token.Provider
	otp    *otp.Manager
	ledger *revoke.Ledger
	hasher *password.Hasher
	events *events.Dispatcher
	audit  *internalaudit.Dispatcher
	log    *zap.Logger
}

// Close drains the event and audit dispatchers. Call it on shutdown; the
// Service must not be used afterwards.
func (s *Service) Close() {
	if s == nil {
		return
	}
	s.events.Close()
	s.audit.Close()
	s.log.Debug("auth core closed",
		zap.Uint64("events_dropped", s.events.Dropped()),
		zap.Uint64("events_failed", s.events.Failed()),
		zap.Uint64("audit_dropped", s.audit.Dropped()),
	)
}

// EventsDropped reports domain events discarded under buffer pressure.
func (s *Service) EventsDropped() uint64 {
	return s.events.Dropped()
}

// AuditDropped reports audit records discarded under buffer pressure.
func (s *Service) AuditDropped() uint64 {
	return s.audit.Dropped()
}

func (s *Service) publish(ctx context.Context, name string, payload events.Payload) {
	s.events.Emit(ctx, name, payload, uuid.NewString())
}

func (s *Service) emitAudit(ctx context.Context, action, subject string, opErr error) {
	event := internalaudit.Event{
		Timestamp: time.Now(),
		Action:    action,
		Subject:   subject,
		Success:   opErr == nil,
		Origin:    clientIPFromContext(ctx),
	}
	if opErr != nil {
		event.Error = opErr.Error()
	}
	s.audit.Emit(ctx, event)
}

// statusGate rejects accounts that must not authenticate.
func statusGate(status AccountStatus) error {
	switch status {
	case StatusActive:
		return nil
	case StatusPending:
		return ErrAccountPending
	case StatusInactive:
		return ErrAccountInactive
	case StatusBanned:
		return ErrAccountBanned
	default:
		return ErrAccountInactive
	}
}

// mapOTPErr translates otp package sentinels into the public taxonomy.
func mapOTPErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, otp.ErrSessionInvalid):
		return ErrSessionInvalid
	case errors.Is(err, otp.ErrExpired):
		return ErrOTPExpired
	case errors.Is(err, otp.ErrMismatch):
		return ErrOTPInvalid
	case errors.Is(err, otp.ErrRateLimited):
		return ErrRateLimited
	default:
		return err
	}
}

// lookupByEmail loads a user by email; store connectivity errors propagate.
func (s *Service) lookupByEmail(ctx context.Context, email string) (UserRecord, error) {
	return s.users.FindByUniqueField(ctx, FieldEmail, email)
}
