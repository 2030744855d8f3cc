package task

import (
	"context"
	"fmt"

	"boostfix/pkg/db/pagination"
	"boostfix/pkg/errutil"
	"boostfix/services/activity"
	"boostfix/services/ledger"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type DepositResult struct {
	Account ledger.Account  `json:"account"`
	Record  activity.Record `json:"activity"`
}

type WithdrawResult struct {
	Amount  decimal.Decimal `json:"amount"`
	Account ledger.Account  `json:"account"`
}

// Deposit increases userID's campaign budget for a confirmed wallet deposit.
// A txRef that was already processed is rejected with a conflict.
func (m *Manager) Deposit(ctx context.Context, userID string, amount decimal.Decimal, txRef string) (DepositResult, error) {
	if userID == "" {
		return DepositResult{}, errutil.Unauthorized("user identity required", nil)
	}

	end := m.beginCommit()
	defer end()

	acc, err := m.ledger.Deposit(userID, amount, txRef)
	if err != nil {
		return DepositResult{}, err
	}

	rec := m.feed.Append(activity.Record{
		Kind:   activity.KindDeposit,
		UserID: userID,
		Amount: amount,
		Token:  m.token,
		TxRef:  txRef,
	})
	m.dirty.Store(true)

	zap.L().Info("account.deposit",
		zap.String("user_id", userID),
		zap.String("amount", amount.String()),
		zap.String("tx_ref", txRef),
	)

	return DepositResult{Account: acc, Record: rec}, nil
}

// Withdraw pays out of userID's earnings. A zero amount withdraws everything.
func (m *Manager) Withdraw(ctx context.Context, userID string, amount decimal.Decimal) (WithdrawResult, error) {
	if userID == "" {
		return WithdrawResult{}, errutil.Unauthorized("user identity required", nil)
	}

	ref := fmt.Sprintf("withdraw-%s", m.ids.GenerateID())
	paid, acc, err := m.ledger.Withdraw(userID, amount, ref)
	if err != nil {
		return WithdrawResult{}, err
	}
	m.dirty.Store(true)

	zap.L().Info("account.withdraw",
		zap.String("user_id", userID),
		zap.String("amount", paid.String()),
	)

	return WithdrawResult{Amount: paid, Account: acc}, nil
}

func (m *Manager) Account(userID string) ledger.Account {
	return m.ledger.Account(userID)
}

func (m *Manager) Entries(userID string) []ledger.Entry {
	return m.ledger.Entries(userID)
}

func (m *Manager) Activity(userID string, p pagination.Pagination) ([]activity.Record, *pagination.PageInfo, error) {
	return m.feed.List(userID, p)
}

// Reset wipes tasks, balances, reputation, activity, deposit references and
// the persisted snapshot.
func (m *Manager) Reset(ctx context.Context) error {
	m.commit.Lock()
	defer m.commit.Unlock()

	m.mu.Lock()
	m.tasks = make(map[string]*Task)
	m.mu.Unlock()

	m.ledger.Reset()
	m.feed.Reset()

	if err := m.store.Clear(ctx); err != nil {
		m.dirty.Store(true)
		return errutil.Internal("failed to clear state store", err)
	}
	m.dirty.Store(false)

	zap.L().Warn("engine.reset")
	return nil
}

func (m *Manager) MinWithdrawal() decimal.Decimal {
	return m.ledger.MinWithdrawal()
}

func (m *Manager) VerifyChain(userID string) error {
	return m.ledger.VerifyChain(userID)
}
