package task

import (
	"context"

	"boostfix/pkg/errutil"
	"boostfix/services/verifier"

	"go.uber.org/zap"
)

// CreateCampaign reserves reward × reservation multiple from the sponsor's
// budget and opens a pending task for the post.
func (m *Manager) CreateCampaign(ctx context.Context, p CampaignParams) (View, error) {
	if p.SponsorID == "" {
		return View{}, errutil.Unauthorized("sponsor identity required", nil)
	}
	if !p.Reward.IsPositive() {
		return View{}, errutil.BadRequest("reward must be positive", ErrInvalidReward)
	}
	postID, err := verifier.ParsePostURL(p.PostURL)
	if err != nil {
		return View{}, errutil.BadRequest("post url must be a twitter.com or x.com status link", err)
	}

	id := m.ids.GenerateID()
	reservation := p.Reward.Mul(m.reservationMultiple)

	end := m.beginCommit()
	defer end()

	if _, err := m.ledger.Reserve(p.SponsorID, reservation, id); err != nil {
		zap.L().Info("task.create: reservation refused",
			zap.String("sponsor_id", p.SponsorID),
			zap.String("reservation", reservation.String()),
			zap.Error(err),
		)
		return View{}, err
	}

	t := Task{
		ID:            id,
		SponsorID:     p.SponsorID,
		SponsorHandle: p.SponsorHandle,
		PostURL:       p.PostURL,
		PostID:        postID,
		Content:       p.Content,
		Reward:        p.Reward,
		Reservation:   reservation,
		Status:        StatusPending,
		CreatedAt:     m.now(),
	}
	m.insert(t)

	zap.L().Info("task.created",
		zap.String("task_id", t.ID),
		zap.String("sponsor_id", t.SponsorID),
		zap.String("post_id", t.PostID),
		zap.String("reward", t.Reward.String()),
	)

	return newView(t, t.CreatedAt), nil
}
