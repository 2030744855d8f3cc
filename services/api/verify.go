package api

import (
	"errors"
	"net/http"

	"boostfix/pkg/errutil"
	"boostfix/services/task"
	"boostfix/services/verifier"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type verifyRequest struct {
	TaskID     string `json:"taskId" binding:"required"`
	ActionType string `json:"actionType" binding:"required"`
	TweetURL   string `json:"tweetUrl" binding:"required"`
}

type verifyResponse struct {
	Success        bool                `json:"success"`
	Error          string              `json:"error,omitempty"`
	Status         task.Status         `json:"status,omitempty"`
	ActionType     verifier.ActionKind `json:"action_type,omitempty"`
	Reward         string              `json:"reward,omitempty"`
	Reputation     int                 `json:"reputation"`
	RetryAfterMs   int64               `json:"retry_after_ms,omitempty"`
	AlreadySettled bool                `json:"already_settled,omitempty"`
}

// Verify is the claim endpoint used by the web client. It records actionType
// on the task if it is not recorded yet and then attempts the claim.
func (h *Handler) Verify(c *gin.Context) {
	var req verifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, verifyResponse{Error: "taskId, actionType and tweetUrl are required"})
		return
	}

	kind, err := verifier.ParseActionKind(req.ActionType)
	if err != nil {
		c.JSON(http.StatusBadRequest, verifyResponse{Error: "actionType must be like, repost or reply"})
		return
	}
	postID, err := verifier.ParsePostURL(req.TweetURL)
	if err != nil {
		c.JSON(http.StatusBadRequest, verifyResponse{Error: "invalid tweet url"})
		return
	}

	ctx := c.Request.Context()
	cred := credential(c)

	t, err := h.manager.Task(req.TaskID)
	if err != nil {
		h.verifyError(c, err)
		return
	}
	if t.PostID != postID {
		c.JSON(http.StatusBadRequest, verifyResponse{Error: "tweet url does not match the task"})
		return
	}

	if !t.Status.Terminal() && !t.Actions.Has(kind) {
		if _, err := h.manager.RecordAction(ctx, t.ID, cred.UserID, kind); err != nil {
			h.verifyError(c, err)
			return
		}
	}

	res, err := h.manager.Claim(ctx, t.ID, cred)
	if err != nil && !errors.Is(err, task.ErrAlreadySettled) {
		h.verifyError(c, err)
		return
	}

	out := verifyResponse{
		Success:        res.Status == task.StatusCompleted,
		Status:         res.Status,
		ActionType:     res.Kind,
		Reputation:     res.Reputation,
		AlreadySettled: res.AlreadySettled,
	}
	if !res.Reward.IsZero() {
		out.Reward = res.Reward.String()
	}
	if res.Status == task.StatusFailed {
		out.Error = "action not found on your timeline"
	}
	c.JSON(http.StatusOK, out)
}

func (h *Handler) verifyError(c *gin.Context, err error) {
	var ne *task.NotEligibleError
	if errors.As(err, &ne) {
		c.JSON(http.StatusOK, verifyResponse{
			Status:       task.StatusVerifying,
			Error:        "verification window still open, try again shortly",
			RetryAfterMs: ne.RemainingMillis(),
		})
		return
	}

	status := errutil.StatusOf(err)
	out := verifyResponse{Error: "verification failed"}

	var be errutil.BaseError
	if errors.As(err, &be) {
		out.Error = be.Message
	}
	if d, ok := task.RetryAfter(err); ok {
		out.RetryAfterMs = d.Milliseconds()
	}
	if status == errutil.StatusInternal {
		zap.L().Error("verify failed", zap.Error(err))
	}

	c.JSON(status.HTTPStatus(), out)
}
