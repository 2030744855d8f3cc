package task

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"time"

	"boostfix/pkg/rediskey"
	"boostfix/services/activity"
	"boostfix/services/ledger"
	"boostfix/services/snapshot"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Snapshot encodes the engine state into flat namespaced keys.
func (m *Manager) Snapshot() (snapshot.Snapshot, error) {
	m.commit.Lock()
	defer m.commit.Unlock()

	m.mu.RLock()
	tasks := make([]Task, 0, len(m.tasks))
	for _, t := range m.tasks {
		tasks = append(tasks, *t)
	}
	m.mu.RUnlock()
	sortNewestFirst(tasks)

	out := snapshot.Snapshot{}
	if err := putJSON(out, rediskey.TasksKey, tasks); err != nil {
		return nil, err
	}
	if err := putJSON(out, rediskey.ActivitiesKey, m.feed.Snapshot()); err != nil {
		return nil, err
	}

	st := m.ledger.Snapshot()
	if err := putJSON(out, rediskey.DepositsKey, st.Deposits); err != nil {
		return nil, err
	}

	for _, acc := range st.Accounts {
		id := acc.UserID
		out[rediskey.BuildUserKey(id, rediskey.FieldEarnings)] = acc.Earnings.String()
		out[rediskey.BuildUserKey(id, rediskey.FieldBudget)] = acc.Budget.String()
		out[rediskey.BuildUserKey(id, rediskey.FieldReputation)] = strconv.Itoa(acc.Reputation)
		if !acc.UpdatedAt.IsZero() {
			out[rediskey.BuildUserKey(id, rediskey.FieldUpdatedAt)] = acc.UpdatedAt.UTC().Format(time.RFC3339Nano)
		}
		if len(acc.Entries) > 0 {
			if err := putJSON(out, rediskey.BuildUserKey(id, rediskey.FieldEntries), acc.Entries); err != nil {
				return nil, err
			}
		}
	}

	return out, nil
}

func putJSON(s snapshot.Snapshot, key string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	s[key] = string(b)
	return nil
}

func getJSON(s snapshot.Snapshot, key string, v any) error {
	raw, ok := s[key]
	if !ok || raw == "" {
		return nil
	}
	if err := json.Unmarshal([]byte(raw), v); err != nil {
		return fmt.Errorf("decode %s: %w", key, err)
	}
	return nil
}

// Restore replaces the engine state with s. Nothing changes if s cannot be
// decoded.
func (m *Manager) Restore(s snapshot.Snapshot) error {
	var (
		tasks    []Task
		records  []activity.Record
		deposits []string
	)
	if err := getJSON(s, rediskey.TasksKey, &tasks); err != nil {
		return err
	}
	if err := getJSON(s, rediskey.ActivitiesKey, &records); err != nil {
		return err
	}
	if err := getJSON(s, rediskey.DepositsKey, &deposits); err != nil {
		return err
	}

	accounts, err := decodeAccounts(s, m.ledger.DefaultReputation())
	if err != nil {
		return err
	}

	m.commit.Lock()
	defer m.commit.Unlock()

	now := m.now()
	restored := make(map[string]*Task, len(tasks))
	for i := range tasks {
		t := tasks[i]
		if !normalizeTask(&t, now) {
			zap.L().Warn("task.restore: dropping unreadable task", zap.String("task_id", t.ID), zap.String("status", string(t.Status)))
			continue
		}
		restored[t.ID] = &t
	}

	m.mu.Lock()
	m.tasks = restored
	m.mu.Unlock()

	m.feed.Restore(records)
	m.ledger.Restore(ledger.State{Accounts: accounts, Deposits: deposits})
	m.dirty.Store(false)

	zap.L().Info("engine.restored",
		zap.Int("tasks", len(restored)),
		zap.Int("accounts", len(accounts)),
		zap.Int("activities", len(records)),
	)
	return nil
}

func decodeAccounts(s snapshot.Snapshot, defaultRep int) ([]ledger.AccountState, error) {
	byUser := map[string]*ledger.AccountState{}
	hasRep := map[string]bool{}

	for key, raw := range s {
		userID, field, ok := rediskey.ParseUserKey(key)
		if !ok {
			continue
		}
		acc, ok := byUser[userID]
		if !ok {
			acc = &ledger.AccountState{Account: ledger.Account{
				UserID:   userID,
				Earnings: decimal.Zero,
				Budget:   decimal.Zero,
			}}
			byUser[userID] = acc
		}

		var err error
		switch field {
		case rediskey.FieldEarnings:
			acc.Earnings, err = decimal.NewFromString(raw)
		case rediskey.FieldBudget:
			acc.Budget, err = decimal.NewFromString(raw)
		case rediskey.FieldReputation:
			acc.Reputation, err = strconv.Atoi(raw)
			hasRep[userID] = true
		case rediskey.FieldUpdatedAt:
			acc.UpdatedAt, err = time.Parse(time.RFC3339Nano, raw)
		case rediskey.FieldEntries:
			err = json.Unmarshal([]byte(raw), &acc.Entries)
		}
		if err != nil {
			return nil, fmt.Errorf("decode %s: %w", key, err)
		}
	}

	out := make([]ledger.AccountState, 0, len(byUser))
	for id, acc := range byUser {
		if !hasRep[id] {
			acc.Reputation = defaultRep
		}
		out = append(out, *acc)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out, nil
}

// normalizeTask repairs a decoded task so that claimableAt is set exactly
// while the task is verifying. It reports false for tasks that cannot be kept.
func normalizeTask(t *Task, now time.Time) bool {
	if t.ID == "" {
		return false
	}
	switch t.Status {
	case StatusClaimable:
		t.Status = StatusVerifying
	case StatusPending, StatusVerifying, StatusCompleted, StatusFailed:
	default:
		return false
	}

	if t.Status == StatusVerifying {
		if t.ClaimableAt == nil {
			t.ClaimableAt = &now
		}
		// without an actor nobody could record or claim; the task is offered again
		if !t.Actions.Any() || t.ActorID == "" {
			t.Status = StatusPending
			t.ClaimableAt = nil
			t.ActorID = ""
			t.Actions = Actions{}
		}
	} else {
		t.ClaimableAt = nil
	}
	return true
}

// Load restores the engine from the state store. An empty store leaves the
// engine untouched.
func (m *Manager) Load(ctx context.Context) error {
	s, err := m.store.Load(ctx)
	if err != nil {
		return fmt.Errorf("load state: %w", err)
	}
	if len(s) == 0 {
		return nil
	}
	return m.Restore(s)
}

// Flush saves a snapshot if anything changed since the last flush.
func (m *Manager) Flush(ctx context.Context) error {
	if !m.dirty.Swap(false) {
		return nil
	}

	s, err := m.Snapshot()
	if err == nil {
		err = m.store.Save(ctx, s)
	}
	if err != nil {
		m.dirty.Store(true)
		flushesTotal.WithLabelValues("error").Inc()
		return fmt.Errorf("flush state: %w", err)
	}

	flushesTotal.WithLabelValues("ok").Inc()
	return nil
}
