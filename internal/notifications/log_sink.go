package notifications

import (
	"context"

	"go.uber.org/zap"

	"github.com/charlesng35/groupdesk/pkg/logger"
)

// LogSink writes every event to the structured log.
type LogSink struct {
	log *zap.Logger
}

// NewLogSink constructs a LogSink on the notifications module logger.
func NewLogSink() *LogSink {
	return &LogSink{log: logger.WithModule("notifications")}
}

func (s *LogSink) Name() string { return "log" }

func (s *LogSink) Deliver(_ context.Context, event Event) error {
	s.log.Info("booking event",
		zap.String("event_id", event.ID),
		zap.String("event", string(event.Type)),
		zap.String("booking_id", event.BookingID),
		zap.String("user_id", event.UserID),
		zap.String("invitation_id", event.InvitationID),
		zap.Strings("recipients", event.Recipients),
		zap.Time("occurred_at", event.OccurredAt),
	)
	return nil
}
