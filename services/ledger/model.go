package ledger

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type EntryType string

const (
	EntryReserve  EntryType = "reserve"
	EntryCredit   EntryType = "credit"
	EntryDebit    EntryType = "debit"
	EntryWithdraw EntryType = "withdraw"
	EntryDeposit  EntryType = "deposit"
)

// Bucket names the balance an entry moved.
type Bucket string

const (
	BucketEarnings Bucket = "earnings"
	BucketBudget   Bucket = "budget"
)

// Entry is one balance movement. Entries of an account form a chain: each
// entry's PreviousHash is the Hash of the entry before it.
type Entry struct {
	ID           string          `json:"id"`
	UserID       string          `json:"user_id"`
	Type         EntryType       `json:"type"`
	Bucket       Bucket          `json:"bucket"`
	Amount       decimal.Decimal `json:"amount"`
	Balance      decimal.Decimal `json:"balance"`
	Reference    string          `json:"reference,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
	PreviousHash string          `json:"previous_hash"`
	Hash         string          `json:"hash"`
}

func (e *Entry) HashFields() map[string]string {
	return map[string]string{
		"id":            e.ID,
		"user_id":       e.UserID,
		"type":          string(e.Type),
		"bucket":        string(e.Bucket),
		"amount":        e.Amount.String(),
		"balance":       e.Balance.String(),
		"reference":     e.Reference,
		"created_at":    e.CreatedAt.UTC().Format(time.RFC3339Nano),
		"previous_hash": e.PreviousHash,
	}
}

func (e *Entry) GenerateHash() string {
	fields := e.HashFields()
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%s", k, fields[k]))
	}

	sum := sha256.Sum256([]byte(strings.Join(parts, "|")))
	return hex.EncodeToString(sum[:])
}

// Account is a point-in-time copy of one user's balances.
type Account struct {
	UserID     string          `json:"user_id"`
	Earnings   decimal.Decimal `json:"earnings"`
	Budget     decimal.Decimal `json:"budget"`
	Reputation int             `json:"reputation"`
	UpdatedAt  time.Time       `json:"updated_at,omitempty"`
}

// AccountState is the persisted form of an account, entries included.
type AccountState struct {
	Account
	Entries []Entry `json:"entries,omitempty"`
}

type State struct {
	Accounts []AccountState `json:"accounts"`
	Deposits []string       `json:"deposits,omitempty"`
}
