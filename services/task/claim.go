package task

import (
	"context"
	"time"

	"boostfix/pkg/errutil"
	"boostfix/services/activity"
	"boostfix/services/reputation"
	"boostfix/services/verifier"

	"go.uber.org/zap"
)

// RecordAction sets one action flag on behalf of userID. The first action
// moves a pending task to verifying and opens the claim window; later actions
// leave the window untouched.
func (m *Manager) RecordAction(ctx context.Context, taskID, userID string, kind verifier.ActionKind) (View, error) {
	if userID == "" {
		return View{}, errutil.Unauthorized("user identity required", nil)
	}
	if !kind.Valid() {
		return View{}, errutil.BadRequest("unknown action type", verifier.ErrUnknownAction)
	}

	unlock := m.locks.Lock(taskID)
	defer unlock()

	t, ok := m.get(taskID)
	if !ok {
		return View{}, notFound(taskID)
	}
	if t.Status.Terminal() {
		return newView(t, m.now()), alreadySettled(t.Status)
	}
	if t.Status == StatusVerifying && t.ActorID != userID {
		return View{}, errutil.Forbidden("task is being claimed by another user", ErrNotActor)
	}

	now := m.now()
	changed := !t.Actions.Has(kind)
	t.Actions.set(kind)

	if t.Status == StatusPending {
		claimableAt := now.Add(m.claimDelay)
		t.Status = StatusVerifying
		t.ClaimableAt = &claimableAt
		t.ActorID = userID
		changed = true

		zap.L().Info("task.verifying",
			zap.String("task_id", t.ID),
			zap.String("user_id", userID),
			zap.String("kind", string(kind)),
			zap.Time("claimable_at", claimableAt),
		)
	}

	if changed {
		m.put(t)
	}

	return newView(t, now), nil
}

// Claim settles a verifying task whose claim window has elapsed. It makes
// exactly one verification call and at most one state transition. Claims on a
// settled task return ErrAlreadySettled together with the settled status.
func (m *Manager) Claim(ctx context.Context, taskID string, cred verifier.Credential) (ClaimResult, error) {
	userID := cred.UserID
	if userID == "" {
		return ClaimResult{}, errutil.Unauthorized("user identity required", nil)
	}

	unlock := m.locks.Lock(taskID)
	defer unlock()

	t, ok := m.get(taskID)
	if !ok {
		claimsTotal.WithLabelValues("not_found").Inc()
		return ClaimResult{}, notFound(taskID)
	}

	res := ClaimResult{TaskID: t.ID, Status: t.Status}

	if t.Status.Terminal() {
		claimsTotal.WithLabelValues("already_settled").Inc()
		res.AlreadySettled = true
		if k, ok := t.Actions.First(); ok {
			res.Kind = k
		}
		if t.ActorID != "" {
			res.Reputation = m.ledger.Account(t.ActorID).Reputation
		}
		return res, alreadySettled(t.Status)
	}
	if t.Status == StatusPending || !t.Actions.Any() {
		return res, errutil.UnprocessableEntity("record an action before claiming", ErrNoActionRecorded)
	}
	if t.ActorID != userID {
		return res, errutil.Forbidden("task is being claimed by another user", ErrNotActor)
	}

	now := m.now()
	if remaining := t.ClaimableAt.Sub(now); remaining > 0 {
		claimsTotal.WithLabelValues("not_eligible").Inc()
		return res, &NotEligibleError{Remaining: remaining}
	}

	kind, _ := t.Actions.First()
	res.Kind = kind

	start := time.Now()
	vr, err := m.verifier.Verify(ctx, cred, kind, t.PostID)
	verificationSeconds.WithLabelValues(string(kind)).Observe(time.Since(start).Seconds())
	verificationsTotal.WithLabelValues(string(kind), verificationResult(vr.Confirmed, err)).Inc()

	log := zap.L().With(
		zap.String("task_id", t.ID),
		zap.String("user_id", userID),
		zap.String("kind", string(kind)),
		zap.String("post_id", t.PostID),
	)

	if err != nil {
		claimsTotal.WithLabelValues("verification_error").Inc()
		log.Warn("task.claim: verification did not complete", zap.Error(err))
		res.Reputation = m.ledger.Account(userID).Reputation
		return res, verificationError(err)
	}

	end := m.beginCommit()
	defer end()

	if !vr.Confirmed {
		res.Reputation = m.ledger.ApplyReputation(userID, m.scorer.Delta(reputation.Failure))
		m.settle(&t, StatusFailed)
		res.Status = t.Status

		claimsTotal.WithLabelValues("failed").Inc()
		log.Info("task.failed", zap.Int("reputation", res.Reputation), zap.Int("scanned", vr.Scanned))
		return res, nil
	}

	if _, err := m.ledger.Credit(userID, t.Reward, t.ID); err != nil {
		claimsTotal.WithLabelValues("credit_error").Inc()
		log.Error("task.claim: credit failed", zap.Error(err))
		return res, errutil.Internal("failed to credit reward", err)
	}
	res.Reputation = m.ledger.ApplyReputation(userID, m.scorer.Delta(reputation.Success))
	m.feed.Append(activity.Record{
		Kind:   activity.TipKind(kind),
		UserID: userID,
		Amount: t.Reward,
		Token:  m.token,
		Handle: t.SponsorHandle,
		TaskID: t.ID,
	})
	m.settle(&t, StatusCompleted)

	res.Status = t.Status
	res.Reward = t.Reward

	rewardsCredited.Add(t.Reward.InexactFloat64())
	claimsTotal.WithLabelValues("completed").Inc()
	log.Info("task.completed", zap.String("reward", t.Reward.String()), zap.Int("reputation", res.Reputation))

	return res, nil
}

// settle moves t to a terminal status, clearing the claim window in the same step.
func (m *Manager) settle(t *Task, status Status) {
	settledAt := m.now()
	t.Status = status
	t.ClaimableAt = nil
	t.SettledAt = &settledAt
	m.put(*t)
}
