package handler

import (
	"context"
	"net/http"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/fastygo/notifyagg/api/transport"
	"github.com/fastygo/notifyagg/domain"
	"github.com/fastygo/notifyagg/pkg/httpcontext"
)

// Aggregator is the engine surface the HTTP layer needs.
type Aggregator interface {
	AddNotification(ctx context.Context, event domain.NotificationEvent) domain.IntakeResult
	GetStats(ctx context.Context, userID string) domain.AggregationStats
	TriggerDigest(ctx context.Context, userID string, cadence domain.Frequency) (bool, error)
}

type NotificationHandler struct {
	baseHandler
	engine Aggregator
}

func NewNotificationHandler(engine Aggregator, adapter *httpcontext.Adapter, logger *zap.Logger) *NotificationHandler {
	return &NotificationHandler{
		baseHandler: newBaseHandler(adapter, logger),
		engine:      engine,
	}
}

// @Summary Submit a notification for delivery or aggregation
// @Tags notifications
// @Accept json
// @Produce json
// @Success 202 {object} transport.Envelope
// @Router /api/v1/notifications [post]
func (h *NotificationHandler) Create(ctx *fasthttp.RequestCtx) {
	var req transport.NotificationRequest
	if err := h.decode(ctx, &req); err != nil {
		h.respondError(ctx, err)
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	result := h.engine.AddNotification(stdCtx, req.Event())
	h.requestLogger(stdCtx).Debug("notification accepted",
		zap.String("user_id", req.UserID),
		zap.Bool("immediate", result.Immediate),
		zap.String("group_key", result.GroupKey))
	h.respondSuccess(ctx, http.StatusAccepted, result)
}
