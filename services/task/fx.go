package task

import (
	"boostfix/pkg/config"
	"boostfix/pkg/gen"
	"boostfix/services/activity"
	"boostfix/services/ledger"
	"boostfix/services/reputation"
	"boostfix/services/snapshot"
	"boostfix/services/verifier"

	"go.uber.org/fx"
)

var Module = fx.Module("task.manager",
	fx.Provide(
		NewFromParams,
		NewScheduler,
	),
	fx.Invoke(StartScheduler),
)

type Params struct {
	fx.In

	Config   *config.Config
	Ledger   *ledger.Ledger
	Feed     *activity.Feed
	Verifier verifier.Verifier
	Scorer   reputation.Scorer
	Store    snapshot.Store
	IDs      gen.IDGenerator
}

func NewFromParams(p Params) *Manager {
	return NewManager(Options{
		Ledger:              p.Ledger,
		Feed:                p.Feed,
		Verifier:            p.Verifier,
		Scorer:              p.Scorer,
		Store:               p.Store,
		IDs:                 p.IDs,
		ClaimDelay:          p.Config.Engine.ClaimDelay,
		ReservationMultiple: p.Config.Engine.ReservationMultiple,
		Token:               p.Config.Engine.Token,
	})
}
