package handler

import (
	"net/http"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/fastygo/notifyagg/api/transport"
	"github.com/fastygo/notifyagg/domain"
	"github.com/fastygo/notifyagg/pkg/httpcontext"
)

type AggregationHandler struct {
	baseHandler
	engine Aggregator
}

func NewAggregationHandler(engine Aggregator, adapter *httpcontext.Adapter, logger *zap.Logger) *AggregationHandler {
	return &AggregationHandler{
		baseHandler: newBaseHandler(adapter, logger),
		engine:      engine,
	}
}

// @Summary Pending aggregation work for a user
// @Tags aggregation
// @Success 200 {object} transport.Envelope
// @Router /api/v1/aggregation/stats/{userId} [get]
func (h *AggregationHandler) Stats(ctx *fasthttp.RequestCtx) {
	userID := pathParam(ctx, "userId")
	if err := h.authorizeUser(ctx, userID); err != nil {
		h.respondError(ctx, err)
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	h.respondSuccess(ctx, http.StatusOK, h.engine.GetStats(stdCtx, userID))
}

// @Summary Deliver a user's pending digest now
// @Tags aggregation
// @Success 200 {object} transport.Envelope
// @Router /api/v1/aggregation/digests/{cadence}/trigger/{userId} [post]
func (h *AggregationHandler) TriggerDigest(ctx *fasthttp.RequestCtx) {
	userID := pathParam(ctx, "userId")
	if err := h.authorizeUser(ctx, userID); err != nil {
		h.respondError(ctx, err)
		return
	}
	cadence, err := domain.ParseCadence(pathParam(ctx, "cadence"))
	if err != nil {
		h.respondError(ctx, err)
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	delivered, err := h.engine.TriggerDigest(stdCtx, userID, cadence)
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	h.requestLogger(stdCtx).Info("digest triggered manually",
		zap.String("user_id", userID),
		zap.String("cadence", string(cadence)),
		zap.Bool("delivered", delivered))
	h.respondSuccess(ctx, http.StatusOK, transport.TriggerResponse{
		UserID:    userID,
		Cadence:   string(cadence),
		Delivered: delivered,
	})
}
