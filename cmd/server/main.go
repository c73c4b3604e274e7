package main

import (
	"context"
	"log"
	"time"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	apiHandler "github.com/fastygo/notifyagg/api/handler"
	"github.com/fastygo/notifyagg/domain"
	"github.com/fastygo/notifyagg/internal/config"
	"github.com/fastygo/notifyagg/internal/infrastructure/metrics"
	"github.com/fastygo/notifyagg/internal/infrastructure/monitor"
	"github.com/fastygo/notifyagg/internal/infrastructure/sink"
	"github.com/fastygo/notifyagg/internal/middleware"
	"github.com/fastygo/notifyagg/internal/router"
	"github.com/fastygo/notifyagg/internal/services"
	"github.com/fastygo/notifyagg/internal/services/lifecycle"
	"github.com/fastygo/notifyagg/pkg/httpcontext"
	"github.com/fastygo/notifyagg/pkg/logger"
	"github.com/fastygo/notifyagg/usecase/aggregation"
	"github.com/fastygo/notifyagg/usecase/digest"
	"github.com/fastygo/notifyagg/usecase/preferences"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	zapLogger, err := logger.New(logger.Config{
		Level:    cfg.Logger.Level,
		Encoding: cfg.Logger.Encoding,
		App:      cfg.AppName,
		Env:      cfg.Environment,
	})
	if err != nil {
		log.Fatalf("logger error: %v", err)
	}
	defer zapLogger.Sync()

	appCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	manager := lifecycle.New(cfg.Context.ShutdownTimeout, zapLogger)
	manager.Listen(cancel)

	rules, err := config.LoadRules(cfg.Aggregation.RulesPath)
	if err != nil {
		zapLogger.Fatal("failed to load aggregation rules", zap.Error(err))
	}
	catalog, err := aggregation.NewRuleCatalog(rules...)
	if err != nil {
		zapLogger.Fatal("invalid aggregation rules", zap.Error(err))
	}
	zapLogger.Info("aggregation rules loaded", zap.Int("count", catalog.Len()), zap.String("path", cfg.Aggregation.RulesPath))

	location, err := cfg.Location()
	if err != nil {
		zapLogger.Fatal("invalid digest timezone", zap.Error(err))
	}

	mon := monitor.New(10*time.Second, zapLogger)

	prefsRepo, err := openPreferencesStore(appCtx, cfg, mon, manager, zapLogger)
	if err != nil {
		zapLogger.Fatal("preferences store unavailable", zap.String("backend", cfg.Storage.PreferencesBackend), zap.Error(err))
	}
	digestRepo, err := openDigestStore(cfg, mon, manager, zapLogger)
	if err != nil {
		zapLogger.Fatal("digest store unavailable", zap.String("backend", cfg.Storage.DigestBackend), zap.Error(err))
	}

	collector := metrics.NewCollector(cfg.AppName)

	delivery, err := newSink(cfg.Sink, zapLogger)
	if err != nil {
		zapLogger.Fatal("failed to build notification sink", zap.Error(err))
	}
	instrumented := sink.NewInstrumented(delivery, collector)

	defaultFrequency := domain.Frequency(cfg.Aggregation.DefaultFrequency)
	prefsUseCase := preferences.New(prefsRepo, defaultFrequency, zapLogger)

	digestService := digest.New(digestRepo, prefsUseCase, instrumented, zapLogger, digest.Config{
		MaxItemsPerGroup: cfg.Digest.MaxItems,
		Concurrency:      cfg.Digest.Concurrency,
		Metrics:          collector,
	})

	windows := services.NewWindowScheduler(zapLogger)
	engine := aggregation.New(catalog, prefsUseCase, digestRepo, instrumented, windows, zapLogger, aggregation.Config{
		DefaultFrequency: defaultFrequency,
		FlushTimeout:     cfg.Aggregation.FlushTimeout,
		Metrics:          collector,
		Digester:         digestService,
	})

	digestScheduler, err := services.NewDigestScheduler(digestService, zapLogger, services.ScheduleConfig{
		HourlySpec: cfg.Digest.HourlySchedule,
		DailyTime:  cfg.Digest.DailyTime,
		WeeklyDay:  time.Weekday(cfg.Digest.WeeklyDay),
		WeeklyTime: cfg.Digest.WeeklyTime,
		Location:   location,
		RunTimeout: cfg.Digest.RunTimeout,
	})
	if err != nil {
		zapLogger.Fatal("invalid digest schedule", zap.Error(err))
	}
	digestScheduler.Start()

	mon.AddGauge("active_groups", engine.ActiveGroups)
	mon.AddGauge("pending_windows", windows.Pending)
	mon.Start()
	manager.Register("monitor", func(ctx context.Context) error {
		mon.Stop()
		return nil
	})

	// Pending groups are flushed before the stores close; registration order is reversed on shutdown.
	manager.Register("aggregation_engine", func(ctx context.Context) error {
		flushed := engine.FlushAll(ctx)
		zapLogger.Info("pending groups flushed", zap.Int("groups", flushed))
		return nil
	})
	manager.Register("window_scheduler", windows.Stop)
	manager.Register("digest_scheduler", digestScheduler.Stop)

	ctxAdapter := httpcontext.NewAdapter(context.Background(), cfg.Context.RequestTimeout)

	handlers := router.Handlers{
		Notification: apiHandler.NewNotificationHandler(engine, ctxAdapter, zapLogger),
		Aggregation:  apiHandler.NewAggregationHandler(engine, ctxAdapter, zapLogger),
		Preferences:  apiHandler.NewPreferencesHandler(prefsUseCase, ctxAdapter, zapLogger),
		Health:       apiHandler.NewHealthHandler(mon, ctxAdapter, zapLogger),
	}
	if cfg.HTTP.EnableMetrics {
		handlers.Metrics = collector.Handler()
	}

	if cfg.JWT.Secret == "" {
		zapLogger.Warn("JWT_SECRET is empty; tokens are signed with an empty key")
	}
	authMiddleware := middleware.JWTAuth(cfg.JWT.Secret, cfg.JWT.Issuer, zapLogger)
	r := router.New(handlers, authMiddleware)

	server := &fasthttp.Server{
		Handler:         r.Handler,
		ReadTimeout:     cfg.HTTP.ReadTimeout,
		WriteTimeout:    cfg.HTTP.WriteTimeout,
		IdleTimeout:     cfg.HTTP.IdleTimeout,
		Concurrency:     cfg.HTTP.MaxConn,
		Name:            cfg.AppName,
		CloseOnShutdown: true,
	}

	go func() {
		zapLogger.Info("server started", zap.String("address", cfg.Address()))
		if err := server.ListenAndServe(cfg.Address()); err != nil {
			zapLogger.Fatal("server crashed", zap.Error(err))
		}
	}()

	manager.Register("http_server", func(ctx context.Context) error {
		return server.ShutdownWithContext(ctx)
	})

	<-appCtx.Done()

	if err := manager.Shutdown(context.Background()); err != nil {
		zapLogger.Error("graceful shutdown error", zap.Error(err))
	}
}
