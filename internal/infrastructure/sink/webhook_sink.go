package sink

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/sony/gobreaker"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/fastygo/notifyagg/domain"
)

// WebhookConfig configures delivery to an HTTP endpoint. The breaker trips
// after ConsecutiveFailures and rejects calls for OpenFor before letting
// HalfOpenRequests probes through. Dial overrides the client dialer.
type WebhookConfig struct {
	URL                 string
	Timeout             time.Duration
	ConsecutiveFailures int
	OpenFor             time.Duration
	HalfOpenRequests    int
	Interval            time.Duration
	Dial                fasthttp.DialFunc
}

type envelope struct {
	Kind      domain.PayloadKind `json:"kind"`
	Recipient string             `json:"recipient"`
	SentAt    time.Time          `json:"sent_at"`
	Payload   domain.Payload     `json:"payload"`
}

// WebhookSink posts every payload as JSON to one endpoint. A circuit breaker
// stops hammering an endpoint that keeps failing.
type WebhookSink struct {
	url     string
	timeout time.Duration
	client  *fasthttp.Client
	breaker *gobreaker.CircuitBreaker
	logger  *zap.Logger
}

func NewWebhookSink(cfg WebhookConfig, logger *zap.Logger) (*WebhookSink, error) {
	if cfg.URL == "" {
		return nil, errors.New("webhook sink: url is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	if cfg.ConsecutiveFailures <= 0 {
		cfg.ConsecutiveFailures = 5
	}
	if cfg.OpenFor <= 0 {
		cfg.OpenFor = 30 * time.Second
	}
	if cfg.HalfOpenRequests <= 0 {
		cfg.HalfOpenRequests = 1
	}

	failures := uint32(cfg.ConsecutiveFailures)
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "notification-webhook",
		MaxRequests: uint32(cfg.HalfOpenRequests),
		Interval:    cfg.Interval,
		Timeout:     cfg.OpenFor,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("sink circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	})

	return &WebhookSink{
		url:     cfg.URL,
		timeout: cfg.Timeout,
		client: &fasthttp.Client{
			Name:         "notifyagg",
			ReadTimeout:  cfg.Timeout,
			WriteTimeout: cfg.Timeout,
			Dial:         cfg.Dial,
		},
		breaker: breaker,
		logger:  logger,
	}, nil
}

func (s *WebhookSink) Dispatch(ctx context.Context, payload domain.Payload) error {
	if payload == nil {
		return domain.ErrInvalidPayload
	}
	body, err := json.Marshal(envelope{
		Kind:      payload.Kind(),
		Recipient: payload.Recipient(),
		SentAt:    time.Now().UTC(),
		Payload:   payload,
	})
	if err != nil {
		return fmt.Errorf("encode payload: %w", err)
	}

	_, err = s.breaker.Execute(func() (interface{}, error) {
		return nil, s.post(ctx, body)
	})
	switch {
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		return domain.WrapError(domain.ErrCodeUnavailable, domain.ErrSinkUnavailable.Message, err)
	case err != nil:
		return err
	}
	return nil
}

// State reports the breaker state, mainly for health output.
func (s *WebhookSink) State() string {
	return s.breaker.State().String()
}

func (s *WebhookSink) post(ctx context.Context, body []byte) error {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(s.url)
	req.Header.SetMethod(fasthttp.MethodPost)
	req.Header.SetContentType("application/json")
	req.SetBody(body)

	timeout := s.timeout
	if deadline, ok := ctx.Deadline(); ok {
		if remaining := time.Until(deadline); remaining < timeout {
			timeout = remaining
		}
	}
	if timeout <= 0 {
		return context.DeadlineExceeded
	}

	if err := s.client.DoTimeout(req, resp, timeout); err != nil {
		return fmt.Errorf("post webhook: %w", err)
	}
	if status := resp.StatusCode(); status < 200 || status >= 300 {
		return fmt.Errorf("post webhook: unexpected status %d", status)
	}
	return nil
}
