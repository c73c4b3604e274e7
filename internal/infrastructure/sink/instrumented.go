package sink

import (
	"context"

	"github.com/fastygo/notifyagg/domain"
	"github.com/fastygo/notifyagg/usecase"
)

// Instrumented reports every dispatch result to metrics.
type Instrumented struct {
	next    usecase.NotificationSink
	metrics usecase.Metrics
}

func NewInstrumented(next usecase.NotificationSink, metrics usecase.Metrics) *Instrumented {
	if metrics == nil {
		metrics = usecase.NopMetrics{}
	}
	return &Instrumented{next: next, metrics: metrics}
}

func (s *Instrumented) Dispatch(ctx context.Context, payload domain.Payload) error {
	err := s.next.Dispatch(ctx, payload)
	if payload != nil {
		s.metrics.DispatchObserved(payload.Kind(), err)
	}
	return err
}

var (
	_ usecase.NotificationSink = (*LogSink)(nil)
	_ usecase.NotificationSink = (*WebhookSink)(nil)
	_ usecase.NotificationSink = (*Instrumented)(nil)
)
