package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/fatflowers/posbridge/docs"
	"github.com/fatflowers/posbridge/internal/app/api/handlers"
	mw "github.com/fatflowers/posbridge/internal/app/api/middleware"
	"github.com/fatflowers/posbridge/internal/app/service/attempt"
	"github.com/fatflowers/posbridge/internal/app/service/payment"
	"github.com/fatflowers/posbridge/internal/app/service/statistics"
	"github.com/fatflowers/posbridge/internal/app/service/webhook_log"
	cfgpkg "github.com/fatflowers/posbridge/pkg/config"
	metrics "github.com/fatflowers/posbridge/pkg/metrics"
)

const shutdownTimeout = 30 * time.Second

func newEngine(cfg *cfgpkg.Config) (*gin.Engine, error) {
	if cfg.Env == cfgpkg.EnvProd {
		gin.SetMode(gin.ReleaseMode)
	}
	if err := handlers.RegisterValidators(); err != nil {
		return nil, err
	}

	r := gin.New()
	r.Use(gin.Recovery())
	// Add request tracing middleware only; request logger & access log are attached per group in registerRoutes
	r.Use(mw.TraceMiddleware())
	r.Use(cors.New(cors.Config{
		AllowOrigins:  cfg.HTTP.CORSAllowOrigins,
		AllowMethods:  []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders:  []string{"Origin", "Content-Type", "Authorization", mw.TraceHeader},
		ExposeHeaders: []string{mw.TraceHeader},
		MaxAge:        12 * time.Hour,
	}))
	return r, nil
}

type routeParams struct {
	fx.In

	Engine     *gin.Engine
	Log        *zap.SugaredLogger
	Cfg        *cfgpkg.Config
	DB         *gorm.DB
	Registerer prometheus.Registerer
	Checkout   *payment.Checkout
	Reconciler *payment.Reconciler
	Attempts   attempt.Store
	Stats      *statistics.Service
	Webhooks   *webhook_log.Service
}

func registerRoutes(lc fx.Lifecycle, p routeParams) {
	r, log, cfg := p.Engine, p.Log, p.Cfg

	prom := metrics.NewPrometheus(metrics.NewPrometheusOptions{
		URLLabelMappingFn: metrics.RouteLabel,
		Registerer:        p.Registerer,
		Logger:            log,
	})
	r.Use(prom.HandlerFunc())
	if cfg.MetricsAddr != "" {
		runMetricsServer(lc, log, cfg.MetricsAddr, prom)
	} else {
		r.GET(prom.MetricsPath, prom.Handler())
	}

	var pinger handlers.Pinger
	if sqlDB, err := p.DB.DB(); err != nil {
		log.Warnw("readiness_db_unavailable", "error", err)
	} else {
		pinger = sqlDB
	}

	// Public group: request logger + access log
	pub := r.Group("/")
	pub.Use(mw.RequestLoggerMiddleware(log), mw.AccessLogMiddleware(log))
	handlers.RegisterHealthRoutes(pub, pinger)
	// Swagger UI
	docs.SwaggerInfo.BasePath = "/"
	pub.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// Processor webhooks authenticate by signature, not by device token.
	hooks := r.Group("/webhooks")
	hooks.Use(mw.RequestLoggerMiddleware(log), mw.AccessLogMiddleware(log))
	handlers.RegisterWebhookRoutes(hooks, cfg, p.Reconciler, p.Webhooks, log)

	pos := r.Group("/payments")
	pos.Use(
		mw.RequestLoggerMiddleware(log),
		mw.AccessLogMiddleware(log),
		mw.RateLimitMiddleware(cfg.HTTP.RateLimitPerMinute, cfg.HTTP.RateLimitBurst),
		mw.DeviceAuthMiddleware(cfg.Auth.DeviceJWTSecret, log),
	)
	handlers.RegisterPaymentRoutes(pos, p.Checkout, p.Reconciler, p.Attempts, log)

	admin := r.Group("/api/v1/admin")
	admin.Use(
		mw.RequestLoggerMiddleware(log),
		mw.AccessLogMiddleware(log),
		mw.DeviceAuthMiddleware(cfg.Auth.DeviceJWTSecret, log),
	)
	handlers.RegisterAdminRoutes(admin, p.Attempts, p.Reconciler, p.Stats, p.Webhooks, log)
}

func runMetricsServer(lc fx.Lifecycle, log *zap.SugaredLogger, addr string, prom *metrics.Prometheus) {
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.GET(prom.MetricsPath, prom.Handler())
	srv := &http.Server{Addr: addr, Handler: engine, ReadHeaderTimeout: 5 * time.Second}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			log.Infow("metrics started", "addr", addr)
			go func() {
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Errorw("metrics_server_failed", "error", err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return srv.Shutdown(ctx)
		},
	})
}

func runServer(lc fx.Lifecycle, shutdowner fx.Shutdowner, log *zap.SugaredLogger, cfg *cfgpkg.Config, r *gin.Engine) {
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{Addr: addr, Handler: r, ReadHeaderTimeout: 5 * time.Second}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			log.Infow("starting HTTP server", "addr", addr)
			go func() {
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Errorw("http_server_failed", "error", err)
					_ = shutdowner.Shutdown(fx.ExitCode(1))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			log.Infow("stopping HTTP server")
			shutdownCtx, cancel := context.WithTimeout(ctx, shutdownTimeout)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

var Module = fx.Options(
	fx.Provide(newEngine),
	fx.Invoke(registerRoutes),
	fx.Invoke(runServer),
)
