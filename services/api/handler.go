package api

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"boostfix/pkg/db/pagination"
	"boostfix/pkg/errutil"
	"boostfix/pkg/middleware"
	"boostfix/services/ledger"
	"boostfix/services/task"
	"boostfix/services/verifier"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

func credential(c *gin.Context) verifier.Credential {
	s := middleware.GetSession(c.Request.Context())
	return verifier.Credential{AccessToken: s.AccessToken, UserID: s.UserID, Handle: s.Handle}
}

// fail hands err to the error middleware, adding Retry-After when the error
// carries a retry hint.
func fail(c *gin.Context, err error) {
	var ne *task.NotEligibleError
	if errors.As(err, &ne) {
		c.Header("Retry-After", strconv.FormatInt((ne.RemainingMillis()+999)/1000, 10))
	} else if d, ok := task.RetryAfter(err); ok && d > 0 {
		c.Header("Retry-After", strconv.FormatInt(int64(d.Seconds()+0.5), 10))
	}
	_ = c.Error(err)
}

func badRequest(c *gin.Context, err error) {
	_ = c.Error(errutil.BadRequest("invalid request body", err,
		errutil.WithDetails(errutil.Detail{Field: "body", Message: err.Error()})))
}

type taskResponse struct {
	task.View
	DisplayStatus task.Status `json:"display_status"`
}

func newTaskResponse(v task.View) taskResponse {
	return taskResponse{View: v, DisplayStatus: v.DisplayStatus()}
}

func (h *Handler) ListTasks(c *gin.Context) {
	views := h.manager.Tasks()
	out := make([]taskResponse, 0, len(views))
	for _, v := range views {
		out = append(out, newTaskResponse(v))
	}
	c.JSON(http.StatusOK, gin.H{"data": out})
}

func (h *Handler) GetTask(c *gin.Context) {
	v, err := h.manager.Task(c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, newTaskResponse(v))
}

type createTaskRequest struct {
	PostURL string          `json:"post_url" binding:"required"`
	Reward  decimal.Decimal `json:"reward"`
	Content string          `json:"content"`
}

func (h *Handler) CreateTask(c *gin.Context) {
	var req createTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	s := middleware.GetSession(c.Request.Context())
	v, err := h.manager.CreateCampaign(c.Request.Context(), task.CampaignParams{
		SponsorID:     s.UserID,
		SponsorHandle: s.Handle,
		PostURL:       req.PostURL,
		Reward:        req.Reward,
		Content:       req.Content,
	})
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, newTaskResponse(v))
}

type actionRequest struct {
	ActionType string `json:"action_type" binding:"required"`
}

func (h *Handler) RecordAction(c *gin.Context) {
	var req actionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	kind, err := verifier.ParseActionKind(req.ActionType)
	if err != nil {
		_ = c.Error(errutil.BadRequest("action_type must be like, repost or reply", err))
		return
	}

	s := middleware.GetSession(c.Request.Context())
	v, err := h.manager.RecordAction(c.Request.Context(), c.Param("id"), s.UserID, kind)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, newTaskResponse(v))
}

func (h *Handler) Claim(c *gin.Context) {
	res, err := h.manager.Claim(c.Request.Context(), c.Param("id"), credential(c))
	if err != nil {
		if errors.Is(err, task.ErrAlreadySettled) {
			c.JSON(http.StatusOK, res)
			return
		}
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) GetAccount(c *gin.Context) {
	s := middleware.GetSession(c.Request.Context())
	c.JSON(http.StatusOK, gin.H{
		"account":        h.manager.Account(s.UserID),
		"token":          h.manager.Token(),
		"min_withdrawal": h.manager.MinWithdrawal(),
	})
}

func (h *Handler) ListEntries(c *gin.Context) {
	s := middleware.GetSession(c.Request.Context())
	entries := h.manager.Entries(s.UserID)
	if entries == nil {
		entries = []ledger.Entry{}
	}
	c.JSON(http.StatusOK, gin.H{
		"data":           entries,
		"chain_verified": h.manager.VerifyChain(s.UserID) == nil,
	})
}

type depositRequest struct {
	UserID string          `json:"user_id" binding:"required"`
	Amount decimal.Decimal `json:"amount"`
	TxRef  string          `json:"tx_ref" binding:"required"`
}

// Deposit applies a confirmed wallet transfer on the operator's behalf, for
// transfers the deposit worker did not receive.
func (h *Handler) Deposit(c *gin.Context) {
	var req depositRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	res, err := h.manager.Deposit(c.Request.Context(), req.UserID, req.Amount, req.TxRef)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, res)
}

type withdrawRequest struct {
	Amount decimal.Decimal `json:"amount"`
}

// Withdraw pays out earnings. An empty body withdraws the whole balance.
func (h *Handler) Withdraw(c *gin.Context) {
	var req withdrawRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		badRequest(c, err)
		return
	}

	s := middleware.GetSession(c.Request.Context())
	res, err := h.manager.Withdraw(c.Request.Context(), s.UserID, req.Amount)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) ListActivity(c *gin.Context) {
	var p pagination.Pagination
	if err := c.ShouldBindQuery(&p); err != nil {
		badRequest(c, err)
		return
	}

	userID := ""
	if c.Query("mine") == "true" {
		userID = middleware.GetSession(c.Request.Context()).UserID
		if userID == "" {
			_ = c.Error(errutil.Unauthorized("not connected, reconnect your account", nil))
			return
		}
	}

	records, info, err := h.manager.Activity(userID, p)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": records, "page_info": info})
}

func (h *Handler) Reset(c *gin.Context) {
	if err := h.manager.Reset(c.Request.Context()); err != nil {
		fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
