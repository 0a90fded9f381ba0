package auth

import "context"

// Notifier delivers the welcome email on first login. The template
// engine and delivery provider live outside the auth core; a failure
// here is audited but never fails the login.
type Notifier interface {
	SendWelcome(ctx context.Context, user *User) error
}

// NoopNotifier is used when no mail transport is configured.
type NoopNotifier struct{}

func (NoopNotifier) SendWelcome(context.Context, *User) error { return nil }
