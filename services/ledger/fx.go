package ledger

import (
	"fmt"

	"boostfix/pkg/config"
	"boostfix/pkg/gen"

	"github.com/shopspring/decimal"
	"go.uber.org/fx"
)

var Module = fx.Module("ledger",
	fx.Provide(Provide),
)

func Provide(cfg *config.Config, ids gen.IDGenerator) (*Ledger, error) {
	var minimum decimal.Decimal
	if cfg.Engine.MinWithdrawal != "" {
		d, err := decimal.NewFromString(cfg.Engine.MinWithdrawal)
		if err != nil {
			return nil, fmt.Errorf("invalid ENGINE.MIN_WITHDRAWAL %q: %w", cfg.Engine.MinWithdrawal, err)
		}
		minimum = d
	}

	return New(Options{
		IDs:               ids,
		DefaultReputation: cfg.Engine.DefaultReputation,
		MinWithdrawal:     minimum,
	}), nil
}
