package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Publisher puts a message body on a named queue.
type Publisher interface {
	Publish(ctx context.Context, queue string, body []byte) error
}

// EmailJob is consumed by the communications worker from the email queue.
type EmailJob struct {
	Template string            `json:"template"`
	To       string            `json:"to"`
	Subject  string            `json:"subject"`
	Data     map[string]string `json:"data"`
}

// SMSJob is consumed from the SMS queue.
type SMSJob struct {
	To   string `json:"to"`
	Body string `json:"body"`
}

var errNoChannel = errors.New("recipient has neither email nor phone")

// QueueNotifier turns notifications into email/SMS jobs on a message queue.
type QueueNotifier struct {
	pub        Publisher
	emailQueue string
	smsQueue   string
}

func NewQueueNotifier(pub Publisher, emailQueue, smsQueue string) *QueueNotifier {
	return &QueueNotifier{pub: pub, emailQueue: emailQueue, smsQueue: smsQueue}
}

func (n *QueueNotifier) SendVerificationCode(ctx context.Context, to Recipient, code, link string, ttl time.Duration) error {
	if to.Email != "" {
		return n.email(ctx, EmailJob{
			Template: "email_verification",
			To:       to.Email,
			Subject:  "Verify your email address",
			Data: map[string]string{
				"name":    to.Name,
				"code":    code,
				"link":    link,
				"minutes": minutes(ttl),
			},
		})
	}
	if to.Phone != "" {
		return n.sms(ctx, SMSJob{
			To:   to.Phone,
			Body: fmt.Sprintf("Your verification code is %s. It expires in %s minutes.", code, minutes(ttl)),
		})
	}
	return errNoChannel
}

func (n *QueueNotifier) SendWelcome(ctx context.Context, to Recipient) error {
	if to.Email != "" {
		return n.email(ctx, EmailJob{
			Template: "welcome",
			To:       to.Email,
			Subject:  "Welcome",
			Data:     map[string]string{"name": to.Name},
		})
	}
	if to.Phone != "" {
		return n.sms(ctx, SMSJob{To: to.Phone, Body: "Your account is now active."})
	}
	return errNoChannel
}

func (n *QueueNotifier) SendPasswordReset(ctx context.Context, to Recipient, link string, ttl time.Duration) error {
	if to.Email == "" {
		return errNoChannel
	}
	return n.email(ctx, EmailJob{
		Template: "password_reset",
		To:       to.Email,
		Subject:  "Reset your password",
		Data: map[string]string{
			"name":    to.Name,
			"link":    link,
			"minutes": minutes(ttl),
		},
	})
}

func (n *QueueNotifier) email(ctx context.Context, job EmailJob) error {
	return n.publish(ctx, n.emailQueue, job)
}

func (n *QueueNotifier) sms(ctx context.Context, job SMSJob) error {
	return n.publish(ctx, n.smsQueue, job)
}

func (n *QueueNotifier) publish(ctx context.Context, queue string, v interface{}) error {
	body, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal job for %s: %w", queue, err)
	}
	if err := n.pub.Publish(ctx, queue, body); err != nil {
		return fmt.Errorf("publish to %s: %w", queue, err)
	}
	return nil
}
