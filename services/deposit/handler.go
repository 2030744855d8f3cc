package deposit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"boostfix/pkg/errutil"
	"boostfix/services/ledger"
	"boostfix/services/task"

	"github.com/hibiken/asynq"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type Depositor interface {
	Deposit(ctx context.Context, userID string, amount decimal.Decimal, txRef string) (task.DepositResult, error)
}

type Handler struct {
	depositor Depositor
}

func NewHandler(d Depositor) *Handler {
	return &Handler{depositor: d}
}

// HandleConfirmed credits a confirmed wallet deposit to the user's budget.
// Replays of an already applied tx reference are acknowledged without effect.
func (h *Handler) HandleConfirmed(ctx context.Context, t *asynq.Task) error {
	var payload ConfirmedPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("invalid payload: %v: %w", err, asynq.SkipRetry)
	}

	zapLog := zap.L().With(
		zap.String("task_type", t.Type()),
		zap.String("user_id", payload.UserID),
		zap.String("tx_ref", payload.TxRef),
	)

	res, err := h.depositor.Deposit(ctx, payload.UserID, payload.Amount, payload.TxRef)
	switch {
	case err == nil:
	case errors.Is(err, ledger.ErrDuplicateDeposit):
		zapLog.Info("deposit already applied")
		return nil
	case permanent(err):
		zapLog.Warn("deposit rejected", zap.Error(err))
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	default:
		zapLog.Error("failed to apply deposit", zap.Error(err))
		return err
	}

	zapLog.Info("deposit applied",
		zap.String("amount", payload.Amount.String()),
		zap.String("budget", res.Account.Budget.String()),
	)
	return nil
}

func permanent(err error) bool {
	switch errutil.StatusOf(err) {
	case errutil.StatusBadRequest, errutil.StatusValidationFailed, errutil.StatusUnauthorized:
		return true
	}
	return false
}
