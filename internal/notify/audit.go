package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/segmentio/kafka-go"
)

type EventType string

const (
	EventUserRegistered    EventType = "user.registered"
	EventUserVerified      EventType = "user.verified"
	EventLoginSucceeded    EventType = "user.login"
	EventPasswordResetReq  EventType = "password.reset_requested"
	EventPasswordReset     EventType = "password.reset"
	EventPasswordChanged   EventType = "password.changed"
	EventSessionsRevoked   EventType = "sessions.revoked"
	EventPendingUsersPurge EventType = "users.pending_purged"
)

// Event is one auth lifecycle record. It never carries secrets.
type Event struct {
	Type       EventType         `json:"type"`
	UserID     int64             `json:"userId,omitempty"`
	OccurredAt time.Time         `json:"occurredAt"`
	Attributes map[string]string `json:"attributes,omitempty"`
}

type Auditor interface {
	Publish(ctx context.Context, e Event) error
}

// Writer is the subset of kafka.Writer the auditor needs.
type Writer interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

var (
	_ Auditor = (*KafkaAuditor)(nil)
	_ Auditor = NopAuditor{}
)

// auditBatchTimeout bounds how long a single event waits for batch peers.
const auditBatchTimeout = 10 * time.Millisecond

// KafkaAuditor writes events keyed by user id so one user's events stay ordered.
type KafkaAuditor struct {
	writer Writer
}

func NewKafkaAuditor(brokers []string, topic string) *KafkaAuditor {
	return &KafkaAuditor{writer: &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		BatchTimeout: auditBatchTimeout,
	}}
}

func NewKafkaAuditorWithWriter(w Writer) *KafkaAuditor {
	return &KafkaAuditor{writer: w}
}

func (a *KafkaAuditor) Publish(ctx context.Context, e Event) error {
	b, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal audit event: %w", err)
	}
	msg := kafka.Message{Key: []byte(strconv.FormatInt(e.UserID, 10)), Value: b}
	if err := a.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("write audit event: %w", err)
	}
	return nil
}

func (a *KafkaAuditor) Close() error {
	return a.writer.Close()
}

type NopAuditor struct{}

func (NopAuditor) Publish(context.Context, Event) error { return nil }
