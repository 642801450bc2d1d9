package app

import (
	"time"

	"go.uber.org/fx"

	"github.com/fatflowers/posbridge/internal/app/api/server"
	"github.com/fatflowers/posbridge/internal/app/service/attempt"
	"github.com/fatflowers/posbridge/internal/app/service/payment"
	"github.com/fatflowers/posbridge/internal/app/service/statistics"
	"github.com/fatflowers/posbridge/internal/app/service/terminal_notifier"
	"github.com/fatflowers/posbridge/internal/app/service/webhook_log"
	"github.com/fatflowers/posbridge/internal/platform/cache"
	"github.com/fatflowers/posbridge/internal/platform/db"
	"github.com/fatflowers/posbridge/internal/platform/kafka"
	"github.com/fatflowers/posbridge/internal/platform/shopify"
	"github.com/fatflowers/posbridge/internal/platform/sumup"
	"github.com/fatflowers/posbridge/pkg/config"
	"github.com/fatflowers/posbridge/pkg/logger"
	"github.com/fatflowers/posbridge/pkg/metrics"
)

const (
	DefaultStartTimeout = 15 * time.Second
	DefaultStopTimeout  = 10 * time.Second
)

var Module = fx.Options(
	logger.Module,
	config.Module,
	metrics.Module,
	db.Module,
	cache.Module,
	kafka.Module,
	sumup.Module,
	shopify.Module,
	attempt.Module,
	terminal_notifier.Module,
	payment.Module,
	webhook_log.Module,
	statistics.Module,
	server.Module,
)
