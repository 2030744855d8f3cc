// Package activity keeps the append-only feed of deposits and completed tasks.
package activity

import (
	"errors"
	"sync"
	"time"

	"boostfix/pkg/db/pagination"
	"boostfix/pkg/errutil"
	"boostfix/pkg/gen"
	"boostfix/services/verifier"

	"github.com/shopspring/decimal"
)

var ErrCursorNotFound = errors.New("cursor record not found")

type Kind string

const (
	KindDeposit   Kind = "deposit"
	KindTipLike   Kind = "tip_like"
	KindTipRepost Kind = "tip_repost"
	KindTipReply  Kind = "tip_reply"
)

// TipKind maps a verified action to the feed kind of its payout.
func TipKind(k verifier.ActionKind) Kind {
	switch k {
	case verifier.Repost:
		return KindTipRepost
	case verifier.Reply:
		return KindTipReply
	default:
		return KindTipLike
	}
}

type Record struct {
	ID        string          `json:"id"`
	Kind      Kind            `json:"kind"`
	UserID    string          `json:"user_id"`
	Amount    decimal.Decimal `json:"amount"`
	Token     string          `json:"token"`
	TxRef     string          `json:"tx_ref,omitempty"`
	Handle    string          `json:"handle,omitempty"`
	TaskID    string          `json:"task_id,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

// Feed stores records oldest first and serves them newest first.
type Feed struct {
	mu      sync.RWMutex
	records []Record
	ids     gen.IDGenerator
	now     func() time.Time
}

func NewFeed(ids gen.IDGenerator) *Feed {
	return &Feed{ids: ids, now: time.Now}
}

// Append stamps r with an id and time when missing and adds it to the feed.
func (f *Feed) Append(r Record) Record {
	if r.ID == "" {
		r.ID = f.ids.GenerateID()
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = f.now()
	}

	f.mu.Lock()
	f.records = append(f.records, r)
	f.mu.Unlock()

	return r
}

// List pages through the feed newest first. A non-empty userID restricts the
// feed to that user's records.
func (f *Feed) List(userID string, p pagination.Pagination) ([]Record, *pagination.PageInfo, error) {
	p = p.Normalize()

	var after string
	if p.Cursor != "" {
		c, err := pagination.DecodeCursor(p.Cursor)
		if err != nil {
			return nil, nil, errutil.BadRequest("invalid cursor", err)
		}
		after = c.ID
	}

	f.mu.RLock()
	out := make([]Record, 0, p.Limit+1)
	skipping := after != ""
	for i := len(f.records) - 1; i >= 0 && len(out) <= p.Limit; i-- {
		r := f.records[i]
		if skipping {
			if r.ID == after {
				skipping = false
			}
			continue
		}
		if userID != "" && r.UserID != userID {
			continue
		}
		out = append(out, r)
	}
	f.mu.RUnlock()

	if skipping {
		return nil, nil, errutil.BadRequest("invalid cursor", ErrCursorNotFound)
	}

	return pagination.BuildCursorPageInfo(out, p.Limit, func(r Record) pagination.Cursor {
		return pagination.Cursor{ID: r.ID, CreatedAt: r.CreatedAt.UTC().Format(time.RFC3339Nano)}
	})
}

// Snapshot returns every record, newest first.
func (f *Feed) Snapshot() []Record {
	f.mu.RLock()
	defer f.mu.RUnlock()

	out := make([]Record, len(f.records))
	for i, r := range f.records {
		out[len(f.records)-1-i] = r
	}
	return out
}

// Restore replaces the feed with records given newest first.
func (f *Feed) Restore(records []Record) {
	rs := make([]Record, len(records))
	for i, r := range records {
		rs[len(records)-1-i] = r
	}

	f.mu.Lock()
	f.records = rs
	f.mu.Unlock()
}

func (f *Feed) Reset() {
	f.mu.Lock()
	f.records = nil
	f.mu.Unlock()
}

func (f *Feed) Len() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.records)
}
