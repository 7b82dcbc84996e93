package posauth

import (
	"context"
	"io"
	"time"

	"github.com/BDuong31/posauth/events"
	internalaudit "github.com/BDuong31/posauth/internal/audit"
	"github.com/BDuong31/posauth/otp"
)

// AccountStatus is the lifecycle state of a credential record.
//
// The only forward transition this core performs is pending to active on
// successful verification. Moves between active, inactive, and banned are
// administrative actions owned by the surrounding system; a record never
// regresses to pending.
type AccountStatus string

const (
	// StatusPending marks a registered but unverified account.
	StatusPending AccountStatus = "pending"
	// StatusActive marks a verified, usable account.
	StatusActive AccountStatus = "active"
	// StatusInactive marks an administratively deactivated account.
	StatusInactive AccountStatus = "inactive"
	// StatusBanned marks a banned account.
	StatusBanned AccountStatus = "banned"
)

// UserRecord is the credential record owned by the UserRepository.
type UserRecord struct {
	ID           string
	Username     string
	Email        string
	PasswordHash string
	Status       AccountStatus
	Role         string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// UserPatch is a partial update; nil fields are left untouched.
type UserPatch struct {
	Username     *string
	Email        *string
	PasswordHash *string
	Status       *AccountStatus
}

// UserRepository is the credential store collaborator that callers must
// implement to integrate posauth with their user database. Implementations
// return ErrAccountNotFound for missing records; any other error is treated
// as a connectivity failure and aborts the calling flow.
type UserRepository interface {
	Get(ctx context.Context, id string) (UserRecord, error)
	FindByUniqueField(ctx context.Context, field, value string) (UserRecord, error)
	FindByAnyOf(ctx context.Context, fields map[string]string) (UserRecord, error)
	Insert(ctx context.Context, record UserRecord) (UserRecord, error)
	Update(ctx context.Context, id string, patch UserPatch) (UserRecord, error)
	Delete(ctx context.Context, id string) error
}

// Unique field names accepted by UserRepository lookups.
const (
	FieldEmail    = "email"
	FieldUsername = "username"
)

// Purpose names an OTP flow.
type Purpose = otp.Purpose

const (
	// PurposeVerifyAccount is the registration verification flow.
	PurposeVerifyAccount = otp.PurposeVerifyAccount
	// PurposeForgotPassword is the password-reset flow.
	PurposeForgotPassword = otp.PurposeForgotPassword
)

// TokenPair is an access/refresh couple issued on login and refresh.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
}

// Identity is the verified payload of an access token.
type Identity struct {
	UserID string
	Role   string
}

// RegisterInput is the input for Service.Register.
type RegisterInput struct {
	Username string
	Email    string
	Password string
	Role     string
}

// OTPChallenge names a started or restarted OTP session: the opaque session
// token the client presents back, and when the session lapses.
type OTPChallenge struct {
	SessionToken string
	ExpiresAt    time.Time
}

// RegisterResult is returned by Service.Register.
type RegisterResult struct {
	UserID    string
	Challenge OTPChallenge
}

// EventPayload is the body published with every domain event.
type EventPayload = events.Payload

// AuditEvent is a structured audit record emitted by the service.
type AuditEvent = internalaudit.Event

// AuditSink receives AuditEvent values from the audit dispatcher.
type AuditSink = internalaudit.Sink

// NoOpSink is an AuditSink that silently discards all events.
type NoOpSink = internalaudit.NoOpSink

// ChannelSink is a buffered channel-based AuditSink.
type ChannelSink = internalaudit.ChannelSink

// JSONWriterSink is an AuditSink that writes JSON-encoded events to an
// io.Writer.
type JSONWriterSink = internalaudit.JSONWriterSink

// NewChannelSink creates a ChannelSink with the given buffer capacity.
func NewChannelSink(buffer int) *ChannelSink {
	return internalaudit.NewChannelSink(buffer)
}

// NewJSONWriterSink creates a JSONWriterSink that writes to w.
func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return internalaudit.NewJSONWriterSink(w)
}
