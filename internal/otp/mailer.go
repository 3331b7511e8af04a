package otp

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

// Message is what a Mailer delivers to the member.
type Message struct {
	Email     string
	Subject   string
	Code      string
	ExpiresAt time.Time
}

// Mailer abstracts delivery of one-time codes.
type Mailer interface {
	SendOTP(ctx context.Context, msg Message) error
}

// LogMailer logs codes instead of sending them. Development only.
type LogMailer struct{}

func (LogMailer) SendOTP(ctx context.Context, msg Message) error {
	log.Info().
		Str("email", msg.Email).
		Str("subject", msg.Subject).
		Time("expires_at", msg.ExpiresAt).
		Msg("deliver one-time code")
	return nil
}
