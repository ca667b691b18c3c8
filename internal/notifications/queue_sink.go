package notifications

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/hibiken/asynq"
)

const (
	// TaskTypePrefix namespaces notification tasks on the shared queue.
	TaskTypePrefix = "groupdesk:notification:"

	defaultQueueName = "notifications"
	defaultMaxRetry  = 5
)

// TaskEnqueuer is the subset of *asynq.Client used by QueueSink.
type TaskEnqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// mailEvents are handed to the mail worker; the rest only reach live subscribers.
var mailEvents = map[EventType]struct{}{
	EventBookingConfirmed:   {},
	EventBookingCancelled:   {},
	EventInviteReceived:     {},
	EventInviteReminder:     {},
	EventParticipantRemoved: {},
}

// QueueSink enqueues e-mail worthy events as asynq tasks for an out-of-process mailer.
type QueueSink struct {
	client   TaskEnqueuer
	queue    string
	maxRetry int
}

// NewQueueSink constructs a QueueSink publishing on the named queue.
func NewQueueSink(client TaskEnqueuer, queue string) (*QueueSink, error) {
	if client == nil {
		return nil, errors.New("queue sink: client is required")
	}
	if queue == "" {
		queue = defaultQueueName
	}
	return &QueueSink{client: client, queue: queue, maxRetry: defaultMaxRetry}, nil
}

// TaskType returns the asynq task type used for an event type.
func TaskType(eventType EventType) string {
	return TaskTypePrefix + string(eventType)
}

func (s *QueueSink) Name() string { return "queue" }

func (s *QueueSink) Deliver(ctx context.Context, event Event) error {
	if _, ok := mailEvents[event.Type]; !ok {
		return nil
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}

	task := asynq.NewTask(TaskType(event.Type), payload)
	_, err = s.client.EnqueueContext(ctx, task,
		asynq.Queue(s.queue),
		asynq.MaxRetry(s.maxRetry),
		asynq.TaskID(event.ID),
	)
	if errors.Is(err, asynq.ErrTaskIDConflict) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("enqueue %s: %w", event.Type, err)
	}
	return nil
}
