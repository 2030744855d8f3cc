// Command depositctl publishes a confirmed deposit event for the engine's
// worker, e.g. when replaying a transfer the wallet watcher missed.
package main

import (
	"context"
	"flag"
	"log"
	"time"

	"boostfix/pkg/config"
	"boostfix/pkg/logger"
	"boostfix/pkg/queue"
	"boostfix/pkg/redis"
	"boostfix/services/deposit"

	"github.com/shopspring/decimal"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
)

func main() {
	var (
		userID = flag.String("user", "", "user id credited with the deposit")
		amount = flag.String("amount", "", "deposit amount")
		txRef  = flag.String("tx", "", "on-chain transaction reference")
	)
	flag.Parse()

	amt, err := decimal.NewFromString(*amount)
	if err != nil {
		log.Fatalf("invalid amount %q: %v", *amount, err)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	payload := deposit.ConfirmedPayload{UserID: *userID, Amount: amt, TxRef: *txRef}

	app := fx.New(
		fx.Supply(cfg),
		logger.Module,
		redis.Module,
		queue.Client,
		deposit.PublisherModule,
		fx.WithLogger(func(logger *zap.Logger) fxevent.Logger { return fxevent.NopLogger }),
		fx.Invoke(func(p *deposit.Publisher) error {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return p.Publish(ctx, payload)
		}),
	)

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := app.Start(ctx); err != nil {
		log.Fatalf("publish deposit: %v", err)
	}
	if err := app.Stop(ctx); err != nil {
		log.Fatalf("shutdown: %v", err)
	}
}
