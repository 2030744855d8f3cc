package deposit

import (
	"context"

	"boostfix/pkg/config"
	"boostfix/pkg/queue"

	"go.uber.org/zap"
)

type Publisher struct {
	enqueuer queue.Enqueuer
	queue    string
}

func NewPublisher(e queue.Enqueuer, cfg *config.Config) *Publisher {
	return &Publisher{enqueuer: e, queue: cfg.Worker.Queue}
}

func (p *Publisher) Publish(ctx context.Context, payload ConfirmedPayload) error {
	t, err := NewConfirmedTask(payload, p.queue)
	if err != nil {
		return err
	}

	info, err := p.enqueuer.Enqueue(ctx, t)
	if err != nil {
		return err
	}

	zap.L().Info("deposit event published",
		zap.String("task_id", info.ID),
		zap.String("queue", info.Queue),
		zap.String("tx_ref", payload.TxRef),
	)
	return nil
}
