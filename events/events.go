// Package events defines the domain-event contract toward the mail and
// notification collaborators, and the fire-and-forget dispatch machinery the
// auth core publishes through.
//
// The core decides when a notification is warranted; rendering and delivery
// belong to the consumer. Publishing is detached from the operation of
// record: a failed or slow publish is logged and dropped, never rolled back
// into the primary flow.
package events

import (
	"context"
)

// Event names are fixed wire contract with existing consumers.
const (
	UserCreated               = "user.created"
	UserVerified              = "user.verified"
	UserForgotPassword        = "user.forgot_password"
	UserCompleteResetPassword = "user.complete_reset_password"
	UserCompleteChangePass    = "user.complete_change_password"
	UserUpdatedProfile        = "user.updated_profile"
	UserDeleted               = "user.deleted"
)

// Payload is the body of every event. OTP is set only on the two
// notification events that deliver a code; it exists nowhere else.
type Payload struct {
	UserID   string `json:"userId"`
	Email    string `json:"email"`
	Username string `json:"username,omitempty"`
	OTP      string `json:"otp,omitempty"`
}

// Publisher delivers events to the outside world. At-least-once is
// acceptable; implementations may retry internally but must eventually
// return.
type Publisher interface {
	Publish(ctx context.Context, name string, payload Payload, causationID string) error
}

// Published is one delivered event as seen by ChannelPublisher consumers.
type Published struct {
	Name        string
	Payload     Payload
	CausationID string
}

// NoOpPublisher discards all events.
type NoOpPublisher struct{}

func (NoOpPublisher) Publish(context.Context, string, Payload, string) error { return nil }

// ChannelPublisher forwards events into a buffered channel. Intended for
// tests and in-process consumers.
type ChannelPublisher struct {
	events chan Published
}

func NewChannelPublisher(buffer int) *ChannelPublisher {
	if buffer <= 0 {
		buffer = 1
	}
	return &ChannelPublisher{
		events: make(chan Published, buffer),
	}
}

func (p *ChannelPublisher) Publish(ctx context.Context, name string, payload Payload, causationID string) error {
	select {
	case p.events <- Published{Name: name, Payload: payload, CausationID: causationID}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *ChannelPublisher) Events() <-chan Published {
	return p.events
}
