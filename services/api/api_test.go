package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"boostfix/pkg/config"
	"boostfix/pkg/gen"
	"boostfix/pkg/health"
	"boostfix/pkg/middleware"
	"boostfix/services/activity"
	"boostfix/services/ledger"
	"boostfix/services/task"
	"boostfix/services/verifier"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
	gin.SetMode(gin.TestMode)
}

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type env struct {
	router  http.Handler
	manager *task.Manager
	clock   *clock
	result  func() (bool, error)
}

func newEnv(t *testing.T) *env {
	t.Helper()

	node, err := gen.NewSnowflakeNode(1)
	require.NoError(t, err)

	e := &env{
		clock:  &clock{now: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)},
		result: func() (bool, error) { return true, nil },
	}
	v := verifier.Func(func(ctx context.Context, cred verifier.Credential, kind verifier.ActionKind, postID string) (verifier.Result, error) {
		ok, err := e.result()
		return verifier.Result{Confirmed: ok, Kind: kind, PostID: postID}, err
	})

	e.manager = task.NewManager(task.Options{
		Ledger:   ledger.New(ledger.Options{IDs: node, Now: e.clock.Now}),
		Feed:     activity.NewFeed(node),
		Verifier: v,
		IDs:      node,
		Now:      e.clock.Now,
	})
	cfg := &config.Config{}
	cfg.Engine.AdminToken = adminToken
	e.router = NewRouter(RouterParams{
		Config:  cfg,
		Handler: NewHandler(e.manager),
		Health:  health.ProvideHealth(health.HealthParams{}),
	})
	return e
}

func (e *env) do(t *testing.T, method, path, user string, body any) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	return e.request(t, method, path, user, "", body)
}

func (e *env) request(t *testing.T, method, path, user, admin string, body any) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if user != "" {
		req.Header.Set("Authorization", "Bearer "+user+"-token")
		req.Header.Set(middleware.HeaderUserID, user)
		req.Header.Set(middleware.HeaderUserHandle, "@"+user)
	}
	if admin != "" {
		req.Header.Set(middleware.HeaderAdminToken, admin)
	}

	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)

	out := map[string]any{}
	if w.Body.Len() > 0 {
		_ = json.Unmarshal(w.Body.Bytes(), &out)
	}
	return w, out
}

const (
	postURL    = "https://x.com/brand/status/1234567890"
	adminToken = "ops-secret"
)

// operator calls a route with the operator credential and no user session.
func (e *env) operator(t *testing.T, method, path string, body any) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	return e.request(t, method, path, "", adminToken, body)
}

func (e *env) deposit(t *testing.T, user, amount, txRef string) *httptest.ResponseRecorder {
	t.Helper()
	w, _ := e.operator(t, http.MethodPost, "/deposits", map[string]any{"user_id": user, "amount": amount, "tx_ref": txRef})
	return w
}

func (e *env) createTask(t *testing.T) string {
	t.Helper()
	require.Equal(t, http.StatusCreated, e.deposit(t, "sponsor", "1", "0xfund").Code)

	w, body := e.do(t, http.MethodPost, "/tasks", "sponsor", map[string]any{"post_url": postURL, "reward": "0.01", "content": "gm"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	return body["id"].(string)
}

func TestVerifyFlow(t *testing.T) {
	e := newEnv(t)
	id := e.createTask(t)
	req := map[string]any{"taskId": id, "actionType": "like", "tweetUrl": postURL}

	w, body := e.do(t, http.MethodPost, "/verify", "alice", req)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, false, body["success"])
	require.Greater(t, body["retry_after_ms"].(float64), float64(0))

	e.clock.Advance(task.DefaultClaimDelay)
	w, body = e.do(t, http.MethodPost, "/verify", "alice", req)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, true, body["success"])
	require.Equal(t, "completed", body["status"])
	require.Equal(t, "0.01", body["reward"])
	require.Equal(t, float64(51), body["reputation"])

	w, body = e.do(t, http.MethodPost, "/verify", "alice", req)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, true, body["already_settled"])
	require.Equal(t, "0.01", e.manager.Account("alice").Earnings.String())
}

func TestVerifyRejections(t *testing.T) {
	e := newEnv(t)
	id := e.createTask(t)

	w, _ := e.do(t, http.MethodPost, "/verify", "", map[string]any{"taskId": id, "actionType": "like", "tweetUrl": postURL})
	require.Equal(t, http.StatusUnauthorized, w.Code)

	w, _ = e.do(t, http.MethodPost, "/verify", "alice", map[string]any{"taskId": id, "actionType": "like", "tweetUrl": "https://example.com/1"})
	require.Equal(t, http.StatusBadRequest, w.Code)

	w, _ = e.do(t, http.MethodPost, "/verify", "alice", map[string]any{"taskId": id, "actionType": "like", "tweetUrl": "https://x.com/brand/status/999"})
	require.Equal(t, http.StatusBadRequest, w.Code)

	w, _ = e.do(t, http.MethodPost, "/verify", "alice", map[string]any{"taskId": id, "actionType": "bookmark", "tweetUrl": postURL})
	require.Equal(t, http.StatusBadRequest, w.Code)

	w, _ = e.do(t, http.MethodPost, "/verify", "alice", map[string]any{"taskId": "nope", "actionType": "like", "tweetUrl": postURL})
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestVerifyPlatformErrors(t *testing.T) {
	cases := []struct {
		err  error
		code int
	}{
		{&verifier.RateLimitError{RetryAfter: 30 * time.Second}, http.StatusTooManyRequests},
		{verifier.ErrTransient, http.StatusServiceUnavailable},
		{verifier.ErrUnauthorized, http.StatusUnauthorized},
	}
	for _, tc := range cases {
		e := newEnv(t)
		id := e.createTask(t)
		req := map[string]any{"taskId": id, "actionType": "repost", "tweetUrl": postURL}

		_, _ = e.do(t, http.MethodPost, "/verify", "alice", req)
		e.clock.Advance(task.DefaultClaimDelay)

		e.result = func() (bool, error) { return false, tc.err }
		w, body := e.do(t, http.MethodPost, "/verify", "alice", req)
		require.Equal(t, tc.code, w.Code)
		require.Equal(t, false, body["success"])

		v, err := e.manager.Task(id)
		require.NoError(t, err)
		require.Equal(t, task.StatusVerifying, v.Status)
	}
}

func TestTaskEndpoints(t *testing.T) {
	e := newEnv(t)
	id := e.createTask(t)

	w, body := e.do(t, http.MethodGet, "/tasks", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Len(t, body["data"], 1)

	w, _ = e.do(t, http.MethodGet, "/tasks/missing", "", nil)
	require.Equal(t, http.StatusNotFound, w.Code)

	w, _ = e.do(t, http.MethodPost, "/tasks/"+id+"/claim", "alice", nil)
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w, body = e.do(t, http.MethodPost, "/tasks/"+id+"/actions", "alice", map[string]any{"action_type": "reply"})
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "verifying", body["status"])

	w, _ = e.do(t, http.MethodPost, "/tasks/"+id+"/actions", "bob", map[string]any{"action_type": "like"})
	require.Equal(t, http.StatusForbidden, w.Code)

	w, _ = e.do(t, http.MethodPost, "/tasks/"+id+"/claim", "alice", nil)
	require.Equal(t, http.StatusTooEarly, w.Code)
	require.NotEmpty(t, w.Header().Get("Retry-After"))

	e.clock.Advance(task.DefaultClaimDelay)
	w, body = e.do(t, http.MethodGet, "/tasks/"+id, "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "claimable", body["display_status"])

	w, body = e.do(t, http.MethodPost, "/tasks/"+id+"/claim", "alice", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "completed", body["status"])
	require.Equal(t, "reply", body["action_type"])
}

func TestCreateTaskInsufficientFunds(t *testing.T) {
	e := newEnv(t)
	require.Equal(t, http.StatusCreated, e.deposit(t, "sponsor", "0.05", "0x1").Code)

	w, body := e.do(t, http.MethodPost, "/tasks", "sponsor", map[string]any{"post_url": postURL, "reward": "0.01"})
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)
	require.Equal(t, "UNPROCESSABLE_ENTITY", body["error"].(map[string]any)["code"])
}

func TestAccountEndpoints(t *testing.T) {
	e := newEnv(t)

	require.Equal(t, http.StatusCreated, e.deposit(t, "sponsor", "2", "0xabc").Code)
	require.Equal(t, http.StatusConflict, e.deposit(t, "sponsor", "2", "0xabc").Code)

	w, body := e.do(t, http.MethodGet, "/account", "sponsor", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "2", body["account"].(map[string]any)["budget"])

	w, body = e.do(t, http.MethodGet, "/account/entries", "sponsor", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, true, body["chain_verified"])
	require.Len(t, body["data"], 1)

	w, _ = e.do(t, http.MethodPost, "/withdrawals", "alice", nil)
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w, body = e.do(t, http.MethodGet, "/activity?limit=5", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Len(t, body["data"], 1)

	w, _ = e.do(t, http.MethodGet, "/activity?mine=true", "", nil)
	require.Equal(t, http.StatusUnauthorized, w.Code)

	w, _ = e.operator(t, http.MethodPost, "/reset", nil)
	require.Equal(t, http.StatusNoContent, w.Code)
	require.True(t, e.manager.Account("sponsor").Budget.IsZero())
}

func TestOperatorRoutesRejectSessions(t *testing.T) {
	e := newEnv(t)
	id := e.createTask(t)

	w, _ := e.do(t, http.MethodPost, "/deposits", "mallory", map[string]any{"user_id": "mallory", "amount": "1000000", "tx_ref": "made-up"})
	require.Equal(t, http.StatusForbidden, w.Code)
	require.True(t, e.manager.Account("mallory").Budget.IsZero())

	w, _ = e.do(t, http.MethodPost, "/reset", "mallory", nil)
	require.Equal(t, http.StatusForbidden, w.Code)

	w, _ = e.request(t, http.MethodPost, "/reset", "mallory", "guess", nil)
	require.Equal(t, http.StatusForbidden, w.Code)

	_, err := e.manager.Task(id)
	require.NoError(t, err)
	require.Equal(t, "0.9", e.manager.Account("sponsor").Budget.String())
}

func TestOperatorRoutesDisabledWithoutToken(t *testing.T) {
	e := newEnv(t)
	e.router = NewRouter(RouterParams{
		Config:  &config.Config{},
		Handler: NewHandler(e.manager),
		Health:  health.ProvideHealth(health.HealthParams{}),
	})

	w, _ := e.operator(t, http.MethodPost, "/reset", nil)
	require.Equal(t, http.StatusForbidden, w.Code)
}

func TestOperationalEndpoints(t *testing.T) {
	e := newEnv(t)

	w, _ := e.do(t, http.MethodGet, "/healthz", "", nil)
	require.Equal(t, http.StatusOK, w.Code)

	w, _ = e.do(t, http.MethodGet, "/readyz", "", nil)
	require.Equal(t, http.StatusOK, w.Code)

	w, _ = e.do(t, http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
}
