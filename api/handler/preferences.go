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

// PreferencesService reads and replaces a user's aggregation settings.
type PreferencesService interface {
	Get(ctx context.Context, userID string) (*domain.UserAggregationPreferences, error)
	Update(ctx context.Context, prefs *domain.UserAggregationPreferences) (*domain.UserAggregationPreferences, error)
}

type PreferencesHandler struct {
	baseHandler
	prefs PreferencesService
}

func NewPreferencesHandler(prefs PreferencesService, adapter *httpcontext.Adapter, logger *zap.Logger) *PreferencesHandler {
	return &PreferencesHandler{
		baseHandler: newBaseHandler(adapter, logger),
		prefs:       prefs,
	}
}

// @Summary Get aggregation preferences
// @Tags preferences
// @Success 200 {object} transport.Envelope
// @Router /api/v1/preferences/{userId} [get]
func (h *PreferencesHandler) Get(ctx *fasthttp.RequestCtx) {
	userID := pathParam(ctx, "userId")
	if err := h.authorizeUser(ctx, userID); err != nil {
		h.respondError(ctx, err)
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	prefs, err := h.prefs.Get(stdCtx, userID)
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusOK, prefs)
}

// @Summary Replace aggregation preferences
// @Tags preferences
// @Accept json
// @Produce json
// @Router /api/v1/preferences/{userId} [put]
func (h *PreferencesHandler) Update(ctx *fasthttp.RequestCtx) {
	userID := pathParam(ctx, "userId")
	if err := h.authorizeUser(ctx, userID); err != nil {
		h.respondError(ctx, err)
		return
	}

	var req transport.PreferencesRequest
	if err := h.decode(ctx, &req); err != nil {
		h.respondError(ctx, err)
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	updated, err := h.prefs.Update(stdCtx, req.Preferences(userID))
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusOK, updated)
}
