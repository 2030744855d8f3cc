package deposit

import (
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/shopspring/decimal"
)

const (
	TypeDepositConfirmed = "boostfix:deposit_confirmed"

	maxRetry = 5
)

// ConfirmedPayload is emitted by the wallet watcher once a transfer into the
// engine's deposit address has enough confirmations.
type ConfirmedPayload struct {
	UserID string          `json:"user_id"`
	Amount decimal.Decimal `json:"amount"`
	TxRef  string          `json:"tx_ref"`
}

// NewConfirmedTask builds the queue task for p. The tx reference doubles as
// the asynq task id so a watcher that re-publishes is deduplicated upstream.
func NewConfirmedTask(p ConfirmedPayload, queue string) (*asynq.Task, error) {
	if p.TxRef == "" {
		return nil, fmt.Errorf("tx reference is required")
	}

	payload, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}

	opts := []asynq.Option{
		asynq.TaskID(p.TxRef),
		asynq.MaxRetry(maxRetry),
	}
	if queue != "" {
		opts = append(opts, asynq.Queue(queue))
	}

	return asynq.NewTask(TypeDepositConfirmed, payload, opts...), nil
}
