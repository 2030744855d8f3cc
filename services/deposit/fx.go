package deposit

import (
	"boostfix/services/task"

	"github.com/hibiken/asynq"
	"go.uber.org/fx"
)

// WorkerModule consumes deposit events. Requires queue.Server.
var WorkerModule = fx.Module("deposit.worker",
	fx.Provide(func(m *task.Manager) Depositor { return m }),
	fx.Provide(NewHandler),
	fx.Invoke(registerHandlers),
)

// PublisherModule requires queue.Client.
var PublisherModule = fx.Module("deposit.publisher",
	fx.Provide(NewPublisher),
)

func registerHandlers(mux *asynq.ServeMux, h *Handler) {
	mux.HandleFunc(TypeDepositConfirmed, h.HandleConfirmed)
}
