// Package notify publishes lesson-request lifecycle events and hosts
// the worker that consumes them. The worker currently only logs; it is
// the hook point for email or push fanout.
package notify

import (
	"context"
	"encoding/json"
	"time"

	"github.com/picourse/apiserver/internal/mq"
	"github.com/picourse/apiserver/types"
	"go.uber.org/zap"
)

// Event channels.
const (
	ChannelLessonRequestCreated       = "lesson_requests.created"
	ChannelLessonRequestStatusChanged = "lesson_requests.status_changed"
)

// Event is the JSON payload published for both channels. OldStatus is
// only set on status changes.
type Event struct {
	RequestID   int64     `json:"request_id"`
	TutorID     int       `json:"tutor"`
	StudentID   int       `json:"student"`
	SubjectID   int       `json:"subject"`
	SubjectName string    `json:"subject_name"`
	Status      string    `json:"status"`
	OldStatus   string    `json:"old_status,omitempty"`
	StartTime   time.Time `json:"start_time"`
	OccurredAt  time.Time `json:"occurred_at"`
}

// Publisher emits lesson-request events. Publishing is best-effort: a
// broker failure is logged and never propagated to the caller.
type Publisher struct {
	mq     *mq.MQ
	logger *zap.Logger
}

// NewPublisher constructs a Publisher. logger must be non-nil.
func NewPublisher(m *mq.MQ, logger *zap.Logger) *Publisher {
	return &Publisher{mq: m, logger: logger}
}

// LessonRequestCreated publishes a created event for the request.
func (p *Publisher) LessonRequestCreated(ctx context.Context, request types.LessonRequest) {
	p.publish(ctx, ChannelLessonRequestCreated, eventFor(request, ""))
}

// LessonRequestStatusChanged publishes a status-changed event for the request.
func (p *Publisher) LessonRequestStatusChanged(ctx context.Context, request types.LessonRequest, oldStatus string) {
	p.publish(ctx, ChannelLessonRequestStatusChanged, eventFor(request, oldStatus))
}

func (p *Publisher) publish(ctx context.Context, channel string, event Event) {
	data, err := json.Marshal(event)
	if err != nil {
		p.logger.Warn("marshal event failed",
			zap.String("channel", channel),
			zap.Error(err))
		return
	}

	attrs := map[string]string{"status": event.Status}
	if _, err := p.mq.Publish(ctx, channel, data, attrs); err != nil {
		p.logger.Warn("publish event failed",
			zap.String("channel", channel),
			zap.Int64("request_id", event.RequestID),
			zap.Error(err))
	}
}

func eventFor(request types.LessonRequest, oldStatus string) Event {
	return Event{
		RequestID:   request.ID,
		TutorID:     request.TutorID,
		StudentID:   request.StudentID,
		SubjectID:   request.SubjectID,
		SubjectName: request.SubjectName,
		Status:      request.Status,
		OldStatus:   oldStatus,
		StartTime:   request.StartTime,
		OccurredAt:  time.Now(),
	}
}

// Consumer subscribes to both event channels and logs each delivery.
type Consumer struct {
	mq     *mq.MQ
	logger *zap.Logger
}

// NewConsumer constructs a Consumer. logger must be non-nil.
func NewConsumer(m *mq.MQ, logger *zap.Logger) *Consumer {
	return &Consumer{mq: m, logger: logger}
}

// Run blocks consuming both channels until ctx is cancelled or a
// subscription fails.
func (c *Consumer) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	errCh := make(chan error, 2)
	for _, channel := range []string{ChannelLessonRequestCreated, ChannelLessonRequestStatusChanged} {
		go func(channel string) {
			errCh <- c.mq.Subscribe(ctx, channel, c.handle(channel))
		}(channel)
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-errCh:
		return err
	}
}

func (c *Consumer) handle(channel string) mq.Handler {
	return func(ctx context.Context, msg mq.Message) error {
		var event Event
		if err := json.Unmarshal(msg.Data, &event); err != nil {
			c.logger.Warn("drop malformed event",
				zap.String("channel", channel),
				zap.String("message_id", msg.ID),
				zap.Error(err))
			return nil
		}

		c.logger.Info("lesson request event",
			zap.String("channel", channel),
			zap.Int64("request_id", event.RequestID),
			zap.Int("tutor", event.TutorID),
			zap.Int("student", event.StudentID),
			zap.String("subject", event.SubjectName),
			zap.String("status", event.Status),
			zap.String("old_status", event.OldStatus),
			zap.Time("start_time", event.StartTime))
		return nil
	}
}
