package main

import (
	"log"

	"boostfix/pkg/config"
	"boostfix/pkg/db"
	"boostfix/pkg/gen"
	"boostfix/pkg/health"
	"boostfix/pkg/logger"
	"boostfix/pkg/queue"
	"boostfix/pkg/redis"
	"boostfix/pkg/server"
	"boostfix/services/activity"
	"boostfix/services/api"
	"boostfix/services/deposit"
	"boostfix/services/ledger"
	"boostfix/services/reputation"
	"boostfix/services/snapshot"
	"boostfix/services/task"
	"boostfix/services/verifier"

	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	opts := []fx.Option{
		fx.Supply(cfg),
		logger.Module,
		fx.Provide(
			gen.Provide,
			reputation.Provide,
		),
		ledger.Module,
		activity.Module,
		verifier.Module,
		snapshot.Module,
		task.Module,
		health.Module,
		api.Module,
		server.Module,
		fxLogger,
	}

	if cfg.Engine.Store == config.StoreDatabase {
		opts = append(opts, db.Module)
	}

	if cfg.NeedsRedis() {
		opts = append(opts, redis.Module)
	}

	if cfg.Worker.Enabled {
		opts = append(opts,
			queue.Server,
			deposit.WorkerModule,
		)
	}

	if err := fx.ValidateApp(opts...); err != nil {
		log.Fatalf("fx validation failed: %v", err)
	}

	app := fx.New(opts...)

	app.Run()
}

var fxLogger = fx.WithLogger(func(cfg *config.Config, logger *zap.Logger) fxevent.Logger {
	return fxevent.NopLogger
})
