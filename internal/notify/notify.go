// Package notify delivers verification, welcome and password-reset messages
// and publishes auth audit events. Every delivery is best-effort.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Recipient identifies who a message is for. Either Email or Phone may be empty.
type Recipient struct {
	UserID int64
	Name   string
	Email  string
	Phone  string
}

type Notifier interface {
	SendVerificationCode(ctx context.Context, to Recipient, code, link string, ttl time.Duration) error
	SendWelcome(ctx context.Context, to Recipient) error
	SendPasswordReset(ctx context.Context, to Recipient, link string, ttl time.Duration) error
}

var (
	_ Notifier = (*LogNotifier)(nil)
	_ Notifier = (*QueueNotifier)(nil)
)

// LogNotifier only logs. It is used when no message broker is configured.
type LogNotifier struct {
	logger *slog.Logger
}

func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) SendVerificationCode(ctx context.Context, to Recipient, _, _ string, ttl time.Duration) error {
	n.logger.InfoContext(ctx, "Verification code issued",
		slog.Int64("userID", to.UserID),
		slog.Bool("email", to.Email != ""),
		slog.Duration("ttl", ttl))
	return nil
}

func (n *LogNotifier) SendWelcome(ctx context.Context, to Recipient) error {
	n.logger.InfoContext(ctx, "Welcome message", slog.Int64("userID", to.UserID))
	return nil
}

func (n *LogNotifier) SendPasswordReset(ctx context.Context, to Recipient, _ string, ttl time.Duration) error {
	n.logger.InfoContext(ctx, "Password reset link issued", slog.Int64("userID", to.UserID), slog.Duration("ttl", ttl))
	return nil
}

func minutes(d time.Duration) string {
	return fmt.Sprintf("%d", int(d.Minutes()))
}
