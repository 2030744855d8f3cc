package task

import (
	"errors"
	"fmt"
	"time"

	"boostfix/pkg/errutil"
	"boostfix/services/verifier"
)

var (
	ErrTaskNotFound     = errors.New("task not found")
	ErrNotEligible      = errors.New("claim window has not elapsed")
	ErrAlreadySettled   = errors.New("task already settled")
	ErrNoActionRecorded = errors.New("no action recorded on task")
	ErrNotActor         = errors.New("task is being claimed by another user")
	ErrInvalidReward    = errors.New("reward must be positive")
)

// NotEligibleError reports a claim made before the claim window elapsed. It is
// control flow for callers, not a failure: nothing changed.
type NotEligibleError struct {
	Remaining time.Duration
}

func (e *NotEligibleError) Error() string {
	return fmt.Sprintf("%s, %dms remaining", ErrNotEligible, e.RemainingMillis())
}

func (e *NotEligibleError) Is(target error) bool {
	return target == ErrNotEligible
}

func (e *NotEligibleError) Status() errutil.CoreStatus {
	return errutil.StatusTooEarly
}

func (e *NotEligibleError) RemainingMillis() int64 {
	return ceilMillis(e.Remaining)
}

func notFound(id string) error {
	return errutil.NotFound(fmt.Sprintf("task %s not found", id), ErrTaskNotFound)
}

func alreadySettled(status Status) error {
	return errutil.Conflict(fmt.Sprintf("task already %s", status), ErrAlreadySettled)
}

// verificationError translates verifier failures. None of them settle the task.
func verificationError(err error) error {
	switch {
	case errors.Is(err, verifier.ErrRateLimited):
		return errutil.TooManyRequest("platform rate limit reached, retry later", err)
	case errors.Is(err, verifier.ErrUnauthorized):
		return errutil.Unauthorized("platform credential expired, reconnect your account", err)
	case errors.Is(err, verifier.ErrTransient):
		return errutil.ServiceUnavailable("platform temporarily unavailable, retry later", err)
	default:
		return errutil.Internal("verification failed", err)
	}
}

// RetryAfter extracts the platform's retry hint from a rate-limited claim.
func RetryAfter(err error) (time.Duration, bool) {
	var rl *verifier.RateLimitError
	if errors.As(err, &rl) {
		return rl.RetryAfter, true
	}
	return 0, false
}
