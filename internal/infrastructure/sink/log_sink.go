package sink

import (
	"context"

	"go.uber.org/zap"

	"github.com/fastygo/notifyagg/domain"
)

// LogSink writes payloads to the log instead of delivering them. It is the
// default for local runs.
type LogSink struct {
	logger *zap.Logger
}

func NewLogSink(logger *zap.Logger) *LogSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogSink{logger: logger}
}

func (s *LogSink) Dispatch(_ context.Context, payload domain.Payload) error {
	if payload == nil {
		return domain.ErrInvalidPayload
	}
	fields := []zap.Field{
		zap.String("kind", string(payload.Kind())),
		zap.String("user_id", payload.Recipient()),
	}
	switch p := payload.(type) {
	case *domain.SinglePayload:
		fields = append(fields,
			zap.String("notification_id", p.Notification.ID),
			zap.String("reason", string(p.Reason)),
			zap.String("title", p.Notification.Title))
	case *domain.AggregatedPayload:
		fields = append(fields,
			zap.String("group_key", p.GroupKey),
			zap.Int("count", p.Count),
			zap.String("summary", p.Summary))
	case *domain.DigestPayload:
		fields = append(fields,
			zap.String("cadence", string(p.Cadence)),
			zap.Int("count", p.TotalCount),
			zap.String("subject", p.Subject))
	}
	s.logger.Info("notification dispatched", fields...)
	return nil
}
