package magi

import "context"

// Email is a fully composed outbound message.
type Email struct {
	From    string
	To      []string
	ReplyTo string
	Subject string
	Text    string
	HTML    string
}

// Mailer delivers composed email and returns the delivery identifier.
type Mailer interface {
	Send(ctx context.Context, e Email) (string, error)
}
