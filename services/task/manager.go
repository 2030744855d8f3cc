// Package task owns the earn-task lifecycle: action recording, the claim
// window, verification and settlement.
package task

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"boostfix/pkg/gen"
	"boostfix/pkg/keylock"
	"boostfix/services/activity"
	"boostfix/services/ledger"
	"boostfix/services/reputation"
	"boostfix/services/snapshot"
	"boostfix/services/verifier"

	"github.com/shopspring/decimal"
)

const (
	DefaultClaimDelay          = 5 * time.Second
	DefaultReservationMultiple = 10
	DefaultToken               = "USDT"
)

// Manager is the only component allowed to move a task between states. All
// work on one task is serialized by a per-task lock that is held across the
// platform verification call.
type Manager struct {
	mu    sync.RWMutex
	tasks map[string]*Task

	// commit is held shared by every step that moves ledger and task state
	// together, and exclusively by Snapshot, Restore and Reset.
	commit sync.RWMutex

	locks    *keylock.Mutex
	ledger   *ledger.Ledger
	feed     *activity.Feed
	verifier verifier.Verifier
	scorer   reputation.Scorer
	store    snapshot.Store
	ids      gen.IDGenerator

	claimDelay          time.Duration
	reservationMultiple decimal.Decimal
	token               string

	now   func() time.Time
	dirty atomic.Bool
}

type Options struct {
	Ledger              *ledger.Ledger
	Feed                *activity.Feed
	Verifier            verifier.Verifier
	Scorer              reputation.Scorer
	Store               snapshot.Store
	IDs                 gen.IDGenerator
	ClaimDelay          time.Duration
	ReservationMultiple int64
	Token               string
	Now                 func() time.Time
}

func NewManager(opts Options) *Manager {
	m := &Manager{
		tasks:               make(map[string]*Task),
		locks:               keylock.New(),
		ledger:              opts.Ledger,
		feed:                opts.Feed,
		verifier:            opts.Verifier,
		scorer:              opts.Scorer,
		store:               opts.Store,
		ids:                 opts.IDs,
		claimDelay:          opts.ClaimDelay,
		reservationMultiple: decimal.NewFromInt(opts.ReservationMultiple),
		token:               opts.Token,
		now:                 opts.Now,
	}
	if m.claimDelay <= 0 {
		m.claimDelay = DefaultClaimDelay
	}
	if opts.ReservationMultiple <= 0 {
		m.reservationMultiple = decimal.NewFromInt(DefaultReservationMultiple)
	}
	if m.token == "" {
		m.token = DefaultToken
	}
	if m.scorer == (reputation.Scorer{}) {
		m.scorer = reputation.NewScorer()
	}
	if m.store == nil {
		m.store = snapshot.NewMemoryStore()
	}
	if m.now == nil {
		m.now = time.Now
	}
	return m
}

func (m *Manager) beginCommit() (end func()) {
	m.commit.RLock()
	return m.commit.RUnlock
}

func (m *Manager) get(id string) (Task, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.tasks[id]
	if !ok {
		return Task{}, false
	}
	return *t, true
}

// put stores an updated copy of an existing task. Updates to tasks removed
// by a concurrent Reset are dropped.
func (m *Manager) put(t Task) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.tasks[t.ID]; !ok {
		return
	}
	m.tasks[t.ID] = &t
	m.dirty.Store(true)
}

func (m *Manager) insert(t Task) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tasks[t.ID] = &t
	m.dirty.Store(true)
}

func (m *Manager) Task(id string) (View, error) {
	t, ok := m.get(id)
	if !ok {
		return View{}, notFound(id)
	}
	return newView(t, m.now()), nil
}

// Tasks lists every task, newest first.
func (m *Manager) Tasks() []View {
	m.mu.RLock()
	tasks := make([]Task, 0, len(m.tasks))
	for _, t := range m.tasks {
		tasks = append(tasks, *t)
	}
	m.mu.RUnlock()

	sortNewestFirst(tasks)

	now := m.now()
	out := make([]View, 0, len(tasks))
	for _, t := range tasks {
		out = append(out, newView(t, now))
	}
	return out
}

func sortNewestFirst(tasks []Task) {
	sort.SliceStable(tasks, func(i, j int) bool {
		if !tasks[i].CreatedAt.Equal(tasks[j].CreatedAt) {
			return tasks[i].CreatedAt.After(tasks[j].CreatedAt)
		}
		return tasks[i].ID > tasks[j].ID
	})
}

func (m *Manager) Token() string {
	return m.token
}

// Dirty reports whether state changed since the last successful flush.
func (m *Manager) Dirty() bool {
	return m.dirty.Load()
}
