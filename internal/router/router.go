package router

import (
	"github.com/fasthttp/router"
	"github.com/valyala/fasthttp"

	apiHandler "github.com/fastygo/notifyagg/api/handler"
)

type Handlers struct {
	Notification *apiHandler.NotificationHandler
	Aggregation  *apiHandler.AggregationHandler
	Preferences  *apiHandler.PreferencesHandler
	Health       *apiHandler.HealthHandler
	Metrics      fasthttp.RequestHandler
}

type Middleware func(fasthttp.RequestHandler) fasthttp.RequestHandler

func New(handlers Handlers, authMiddleware Middleware) *router.Router {
	r := router.New()

	r.GET("/health", handlers.Health.Check)
	if handlers.Metrics != nil {
		r.GET("/metrics", handlers.Metrics)
	}

	// Protected routes
	r.POST("/api/v1/notifications", authMiddleware(handlers.Notification.Create))

	r.GET("/api/v1/aggregation/stats/{userId}", authMiddleware(handlers.Aggregation.Stats))
	r.POST("/api/v1/aggregation/digests/{cadence}/trigger/{userId}", authMiddleware(handlers.Aggregation.TriggerDigest))

	r.GET("/api/v1/preferences/{userId}", authMiddleware(handlers.Preferences.Get))
	r.PUT("/api/v1/preferences/{userId}", authMiddleware(handlers.Preferences.Update))

	return r
}
