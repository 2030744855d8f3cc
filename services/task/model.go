package task

import (
	"time"

	"boostfix/services/verifier"

	"github.com/shopspring/decimal"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusVerifying Status = "verifying"
	// StatusClaimable is never stored. Views report it through View.Claimable.
	StatusClaimable Status = "claimable"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Actions holds the user's recorded action flags. Flags are only ever set.
type Actions struct {
	Like   bool `json:"like"`
	Repost bool `json:"repost"`
	Reply  bool `json:"reply"`
}

func (a Actions) Has(k verifier.ActionKind) bool {
	switch k {
	case verifier.Like:
		return a.Like
	case verifier.Repost:
		return a.Repost
	case verifier.Reply:
		return a.Reply
	}
	return false
}

func (a *Actions) set(k verifier.ActionKind) {
	switch k {
	case verifier.Like:
		a.Like = true
	case verifier.Repost:
		a.Repost = true
	case verifier.Reply:
		a.Reply = true
	}
}

func (a Actions) Any() bool {
	return a.Like || a.Repost || a.Reply
}

// First returns the recorded action with the highest verification priority.
func (a Actions) First() (verifier.ActionKind, bool) {
	for _, k := range verifier.Priority {
		if a.Has(k) {
			return k, true
		}
	}
	return "", false
}

type Task struct {
	ID            string          `json:"id"`
	SponsorID     string          `json:"sponsor_id"`
	SponsorHandle string          `json:"sponsor_handle"`
	PostURL       string          `json:"post_url"`
	PostID        string          `json:"post_id"`
	Content       string          `json:"content,omitempty"`
	Reward        decimal.Decimal `json:"reward"`
	Reservation   decimal.Decimal `json:"reservation"`
	Actions       Actions         `json:"actions"`
	Status        Status          `json:"status"`
	ClaimableAt   *time.Time      `json:"claimable_at,omitempty"`
	ActorID       string          `json:"actor_id,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	SettledAt     *time.Time      `json:"settled_at,omitempty"`
}

// View is a task as reported to callers at a given instant.
type View struct {
	Task
	Claimable       bool  `json:"claimable"`
	RemainingMillis int64 `json:"remaining_ms,omitempty"`
}

func newView(t Task, now time.Time) View {
	v := View{Task: t}
	if t.Status == StatusVerifying && t.ClaimableAt != nil {
		if remaining := t.ClaimableAt.Sub(now); remaining > 0 {
			v.RemainingMillis = ceilMillis(remaining)
		} else {
			v.Claimable = true
		}
	}
	return v
}

// DisplayStatus folds the derived claimable state into the status.
func (v View) DisplayStatus() Status {
	if v.Claimable {
		return StatusClaimable
	}
	return v.Status
}

type ClaimResult struct {
	TaskID         string              `json:"task_id"`
	Status         Status              `json:"status"`
	Kind           verifier.ActionKind `json:"action_type,omitempty"`
	Reward         decimal.Decimal     `json:"reward"`
	Reputation     int                 `json:"reputation"`
	AlreadySettled bool                `json:"already_settled,omitempty"`
}

type CampaignParams struct {
	SponsorID     string
	SponsorHandle string
	PostURL       string
	Reward        decimal.Decimal
	Content       string
}

func ceilMillis(d time.Duration) int64 {
	return int64((d + time.Millisecond - 1) / time.Millisecond)
}
