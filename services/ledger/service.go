package ledger

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"boostfix/pkg/errutil"
	"boostfix/pkg/gen"
	"boostfix/services/reputation"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

var (
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrInvalidAmount     = errors.New("amount must be positive")
	ErrBelowMinimum      = errors.New("amount below minimum withdrawal")
	ErrDuplicateDeposit  = errors.New("deposit reference already processed")
	ErrChainBroken       = errors.New("ledger chain broken")
)

// DefaultMinWithdrawal applies when no minimum is configured.
var DefaultMinWithdrawal = decimal.RequireFromString("0.50")

type account struct {
	mu      sync.Mutex
	data    Account
	entries []Entry
}

// Ledger keeps every user's earning balance, campaign budget and reputation.
// Mutations of one account are serialized by that account's mutex; different
// accounts never contend.
type Ledger struct {
	mu       sync.Mutex
	accounts map[string]*account

	depMu    sync.Mutex
	deposits map[string]struct{}

	ids           gen.IDGenerator
	defaultRep    int
	minWithdrawal decimal.Decimal
	now           func() time.Time
}

type Options struct {
	IDs               gen.IDGenerator
	DefaultReputation int
	MinWithdrawal     decimal.Decimal
	Now               func() time.Time
}

func New(opts Options) *Ledger {
	l := &Ledger{
		accounts:      make(map[string]*account),
		deposits:      make(map[string]struct{}),
		ids:           opts.IDs,
		defaultRep:    reputation.Clamp(opts.DefaultReputation),
		minWithdrawal: opts.MinWithdrawal,
		now:           opts.Now,
	}
	if opts.DefaultReputation == 0 {
		l.defaultRep = reputation.Default
	}
	if l.minWithdrawal.IsZero() {
		l.minWithdrawal = DefaultMinWithdrawal
	}
	if l.now == nil {
		l.now = time.Now
	}
	return l
}

func (l *Ledger) DefaultReputation() int {
	return l.defaultRep
}

func (l *Ledger) MinWithdrawal() decimal.Decimal {
	return l.minWithdrawal
}

func (l *Ledger) account(userID string) *account {
	l.mu.Lock()
	defer l.mu.Unlock()

	a, ok := l.accounts[userID]
	if !ok {
		a = &account{data: Account{
			UserID:     userID,
			Earnings:   decimal.Zero,
			Budget:     decimal.Zero,
			Reputation: l.defaultRep,
		}}
		l.accounts[userID] = a
	}
	return a
}

func (l *Ledger) lookup(userID string) (*account, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	a, ok := l.accounts[userID]
	return a, ok
}

// append records a movement on a locked account.
func (l *Ledger) append(a *account, typ EntryType, bucket Bucket, amount, balance decimal.Decimal, ref string) {
	now := l.now()
	e := Entry{
		ID:        l.ids.GenerateID(),
		UserID:    a.data.UserID,
		Type:      typ,
		Bucket:    bucket,
		Amount:    amount,
		Balance:   balance,
		Reference: ref,
		CreatedAt: now,
	}
	if n := len(a.entries); n > 0 {
		e.PreviousHash = a.entries[n-1].Hash
	}
	e.Hash = e.GenerateHash()

	a.entries = append(a.entries, e)
	a.data.UpdatedAt = now
}

func positive(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return errutil.BadRequest("amount must be positive", ErrInvalidAmount)
	}
	return nil
}

func insufficient(have, want decimal.Decimal) error {
	return errutil.UnprocessableEntity("insufficient funds", ErrInsufficientFunds,
		errutil.WithDetails(errutil.Detail{
			Field:   "amount",
			Message: fmt.Sprintf("requested %s, available %s", want, have),
		}))
}

// Reserve takes amount out of the user's campaign budget.
func (l *Ledger) Reserve(userID string, amount decimal.Decimal, ref string) (Account, error) {
	if err := positive(amount); err != nil {
		return Account{}, err
	}

	a := l.account(userID)
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.data.Budget.LessThan(amount) {
		return a.data, insufficient(a.data.Budget, amount)
	}
	a.data.Budget = a.data.Budget.Sub(amount)
	l.append(a, EntryReserve, BucketBudget, amount.Neg(), a.data.Budget, ref)

	return a.data, nil
}

// Credit adds amount to the user's earning balance.
func (l *Ledger) Credit(userID string, amount decimal.Decimal, ref string) (Account, error) {
	if err := positive(amount); err != nil {
		return Account{}, err
	}

	a := l.account(userID)
	a.mu.Lock()
	defer a.mu.Unlock()

	a.data.Earnings = a.data.Earnings.Add(amount)
	l.append(a, EntryCredit, BucketEarnings, amount, a.data.Earnings, ref)

	return a.data, nil
}

func (l *Ledger) Debit(userID string, amount decimal.Decimal, ref string) (Account, error) {
	if err := positive(amount); err != nil {
		return Account{}, err
	}

	a := l.account(userID)
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.data.Earnings.LessThan(amount) {
		return a.data, insufficient(a.data.Earnings, amount)
	}
	a.data.Earnings = a.data.Earnings.Sub(amount)
	l.append(a, EntryDebit, BucketEarnings, amount.Neg(), a.data.Earnings, ref)

	return a.data, nil
}

// Withdraw pays out of the earning balance. A zero amount withdraws the whole
// balance. The amount paid must reach the minimum withdrawal.
func (l *Ledger) Withdraw(userID string, amount decimal.Decimal, ref string) (decimal.Decimal, Account, error) {
	if amount.IsNegative() {
		return decimal.Zero, Account{}, errutil.BadRequest("amount must not be negative", ErrInvalidAmount)
	}

	a := l.account(userID)
	a.mu.Lock()
	defer a.mu.Unlock()

	if amount.IsZero() {
		amount = a.data.Earnings
	}
	if amount.LessThan(l.minWithdrawal) {
		return decimal.Zero, a.data, errutil.UnprocessableEntity(
			fmt.Sprintf("minimum withdrawal is %s", l.minWithdrawal), ErrBelowMinimum)
	}
	if a.data.Earnings.LessThan(amount) {
		return decimal.Zero, a.data, insufficient(a.data.Earnings, amount)
	}

	a.data.Earnings = a.data.Earnings.Sub(amount)
	l.append(a, EntryWithdraw, BucketEarnings, amount.Neg(), a.data.Earnings, ref)

	return amount, a.data, nil
}

// Deposit adds amount to the user's campaign budget once per txRef.
func (l *Ledger) Deposit(userID string, amount decimal.Decimal, txRef string) (Account, error) {
	if err := positive(amount); err != nil {
		return Account{}, err
	}
	if txRef == "" {
		return Account{}, errutil.BadRequest("tx reference is required", nil)
	}

	l.depMu.Lock()
	if _, seen := l.deposits[txRef]; seen {
		l.depMu.Unlock()
		return Account{}, errutil.Conflict("deposit already processed", ErrDuplicateDeposit)
	}
	l.deposits[txRef] = struct{}{}
	l.depMu.Unlock()

	a := l.account(userID)
	a.mu.Lock()
	defer a.mu.Unlock()

	a.data.Budget = a.data.Budget.Add(amount)
	l.append(a, EntryDeposit, BucketBudget, amount, a.data.Budget, txRef)

	return a.data, nil
}

// ApplyReputation moves the user's score by delta, clamped to the valid range.
func (l *Ledger) ApplyReputation(userID string, delta int) int {
	a := l.account(userID)
	a.mu.Lock()
	defer a.mu.Unlock()

	a.data.Reputation = reputation.Apply(a.data.Reputation, delta)
	a.data.UpdatedAt = l.now()
	return a.data.Reputation
}

// Account returns the user's balances. Unknown users read as a fresh account.
func (l *Ledger) Account(userID string) Account {
	a, ok := l.lookup(userID)
	if !ok {
		return Account{UserID: userID, Earnings: decimal.Zero, Budget: decimal.Zero, Reputation: l.defaultRep}
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.data
}

func (l *Ledger) Entries(userID string) []Entry {
	a, ok := l.lookup(userID)
	if !ok {
		return nil
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]Entry(nil), a.entries...)
}

// VerifyChain recomputes every entry hash of the user's chain.
func (l *Ledger) VerifyChain(userID string) error {
	return verifyChain(l.Entries(userID))
}

func verifyChain(entries []Entry) error {
	prev := ""
	for i := range entries {
		e := entries[i]
		if e.PreviousHash != prev {
			return fmt.Errorf("%w: entry %d (%s) previous hash mismatch", ErrChainBroken, i, e.ID)
		}
		if e.GenerateHash() != e.Hash {
			return fmt.Errorf("%w: entry %d (%s) hash mismatch", ErrChainBroken, i, e.ID)
		}
		prev = e.Hash
	}
	return nil
}

func (l *Ledger) Snapshot() State {
	l.mu.Lock()
	accounts := make([]*account, 0, len(l.accounts))
	for _, a := range l.accounts {
		accounts = append(accounts, a)
	}
	l.mu.Unlock()

	st := State{Accounts: make([]AccountState, 0, len(accounts))}
	for _, a := range accounts {
		a.mu.Lock()
		st.Accounts = append(st.Accounts, AccountState{
			Account: a.data,
			Entries: append([]Entry(nil), a.entries...),
		})
		a.mu.Unlock()
	}
	sort.Slice(st.Accounts, func(i, j int) bool { return st.Accounts[i].UserID < st.Accounts[j].UserID })

	l.depMu.Lock()
	for ref := range l.deposits {
		st.Deposits = append(st.Deposits, ref)
	}
	l.depMu.Unlock()
	sort.Strings(st.Deposits)

	return st
}

// Restore replaces all accounts with st. Accounts whose chain fails to verify
// are still loaded, the break is logged.
func (l *Ledger) Restore(st State) {
	accounts := make(map[string]*account, len(st.Accounts))
	for _, as := range st.Accounts {
		if as.UserID == "" {
			continue
		}
		if err := verifyChain(as.Entries); err != nil {
			zap.L().Warn("ledger.restore: chain verification failed", zap.String("user_id", as.UserID), zap.Error(err))
		}
		data := as.Account
		data.Reputation = reputation.Clamp(data.Reputation)
		if data.Earnings.IsNegative() {
			data.Earnings = decimal.Zero
		}
		if data.Budget.IsNegative() {
			data.Budget = decimal.Zero
		}
		accounts[as.UserID] = &account{data: data, entries: append([]Entry(nil), as.Entries...)}
	}

	deposits := make(map[string]struct{}, len(st.Deposits))
	for _, ref := range st.Deposits {
		deposits[ref] = struct{}{}
	}

	l.mu.Lock()
	l.accounts = accounts
	l.mu.Unlock()

	l.depMu.Lock()
	l.deposits = deposits
	l.depMu.Unlock()
}

func (l *Ledger) Reset() {
	l.Restore(State{})
}
