package notify

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) Publish(ctx context.Context, queue string, body []byte) error {
	args := m.Called(ctx, queue, body)
	return args.Error(0)
}

type fakeWriter struct {
	mu   sync.Mutex
	msgs []kafka.Message
	err  error
}

func (f *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.msgs = append(f.msgs, msgs...)
	return nil
}

func (f *fakeWriter) Close() error { return nil }

func TestQueueNotifier(t *testing.T) {
	ctx := context.Background()

	t.Run("VerificationByEmail", func(t *testing.T) {
		pub := new(MockPublisher)
		n := NewQueueNotifier(pub, "email_jobs", "sms_jobs")

		pub.On("Publish", ctx, "email_jobs", mock.MatchedBy(func(body []byte) bool {
			var job EmailJob
			if err := json.Unmarshal(body, &job); err != nil {
				return false
			}
			return job.To == "rahim@example.com" && job.Data["code"] == "123456" && job.Data["minutes"] == "10"
		})).Return(nil).Once()

		err := n.SendVerificationCode(ctx, Recipient{UserID: 1, Email: "rahim@example.com", Phone: "01712345678"}, "123456", "https://x/verify/tok", 10*time.Minute)
		require.NoError(t, err)
		pub.AssertExpectations(t)
	})

	t.Run("VerificationBySMSWhenNoEmail", func(t *testing.T) {
		pub := new(MockPublisher)
		n := NewQueueNotifier(pub, "email_jobs", "sms_jobs")

		pub.On("Publish", ctx, "sms_jobs", mock.MatchedBy(func(body []byte) bool {
			var job SMSJob
			return json.Unmarshal(body, &job) == nil && job.To == "01712345678"
		})).Return(nil).Once()

		err := n.SendVerificationCode(ctx, Recipient{UserID: 1, Phone: "01712345678"}, "123456", "", 10*time.Minute)
		require.NoError(t, err)
		pub.AssertExpectations(t)
	})

	t.Run("ResetRequiresEmail", func(t *testing.T) {
		pub := new(MockPublisher)
		n := NewQueueNotifier(pub, "email_jobs", "sms_jobs")

		err := n.SendPasswordReset(ctx, Recipient{UserID: 1, Phone: "01712345678"}, "link", time.Hour)
		assert.ErrorIs(t, err, errNoChannel)
		pub.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("PublishFailureIsWrapped", func(t *testing.T) {
		pub := new(MockPublisher)
		n := NewQueueNotifier(pub, "email_jobs", "sms_jobs")
		boom := errors.New("broker down")
		pub.On("Publish", ctx, "email_jobs", mock.Anything).Return(boom).Once()

		err := n.SendWelcome(ctx, Recipient{UserID: 1, Email: "a@b.test"})
		assert.ErrorIs(t, err, boom)
	})
}

func TestKafkaAuditor(t *testing.T) {
	fw := &fakeWriter{}
	a := NewKafkaAuditorWithWriter(fw)

	err := a.Publish(context.Background(), Event{Type: EventUserRegistered, UserID: 7, OccurredAt: time.Now()})
	require.NoError(t, err)
	require.Len(t, fw.msgs, 1)
	assert.Equal(t, "7", string(fw.msgs[0].Key))

	var got Event
	require.NoError(t, json.Unmarshal(fw.msgs[0].Value, &got))
	assert.Equal(t, EventUserRegistered, got.Type)

	fw.err = errors.New("no leader")
	assert.Error(t, a.Publish(context.Background(), Event{Type: EventUserVerified}))
}

func TestNewKafkaAuditorDoesNotWaitForBatches(t *testing.T) {
	a := NewKafkaAuditor([]string{"localhost:9092"}, "auth-events")
	defer a.Close()

	w, ok := a.writer.(*kafka.Writer)
	require.True(t, ok)
	assert.Equal(t, "auth-events", w.Topic)
	assert.LessOrEqual(t, w.BatchTimeout, 50*time.Millisecond)
	assert.False(t, w.Async)
}

func TestDispatcher(t *testing.T) {
	t.Run("CloseDrainsQueuedWork", func(t *testing.T) {
		d := NewDispatcher(slog.Default(), 16, time.Second)
		var ran atomic.Int32
		for i := 0; i < 10; i++ {
			d.Go("count", func(context.Context) error {
				ran.Add(1)
				return nil
			})
		}
		d.Close()
		assert.Equal(t, int32(10), ran.Load())
	})

	t.Run("FailuresDoNotStopTheWorker", func(t *testing.T) {
		d := NewDispatcher(slog.Default(), 4, time.Second)
		var ran atomic.Int32
		d.Go("fail", func(context.Context) error { return errors.New("smtp down") })
		d.Go("ok", func(context.Context) error {
			ran.Add(1)
			return nil
		})
		d.Close()
		assert.Equal(t, int32(1), ran.Load())
	})

	t.Run("GoAfterCloseIsDropped", func(t *testing.T) {
		d := NewDispatcher(slog.Default(), 1, time.Second)
		d.Close()
		assert.NotPanics(t, func() {
			d.Go("late", func(context.Context) error { return nil })
		})
	})
}
