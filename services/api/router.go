// Package api is the HTTP adapter in front of the task manager. It holds no
// lifecycle logic of its own.
package api

import (
	"net/http"

	"boostfix/pkg/config"
	"boostfix/pkg/health"
	"boostfix/pkg/middleware"
	"boostfix/services/task"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/fx"
)

var Module = fx.Module("api",
	fx.Provide(
		NewHandler,
		NewRouter,
	),
)

type Handler struct {
	manager *task.Manager
}

func NewHandler(m *task.Manager) *Handler {
	return &Handler{manager: m}
}

type RouterParams struct {
	fx.In

	Config  *config.Config
	Handler *Handler
	Health  health.HealthService
}

func NewRouter(p RouterParams) http.Handler {
	if p.Config.AppEnv == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery(), middleware.RequestLogger(), middleware.Error(), middleware.Sessions())

	r.GET("/healthz", p.Health.Liveness)
	r.GET("/readyz", p.Health.Readiness)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	h := p.Handler
	r.GET("/tasks", h.ListTasks)
	r.GET("/tasks/:id", h.GetTask)
	r.GET("/activity", h.ListActivity)

	auth := r.Group("/", middleware.RequireSession())
	auth.POST("/verify", h.Verify)
	auth.POST("/tasks", h.CreateTask)
	auth.POST("/tasks/:id/actions", h.RecordAction)
	auth.POST("/tasks/:id/claim", h.Claim)
	auth.GET("/account", h.GetAccount)
	auth.GET("/account/entries", h.ListEntries)
	auth.POST("/withdrawals", h.Withdraw)

	// wallet reconciliation and full reset; user sessions never reach these
	ops := r.Group("/", middleware.RequireOperator(p.Config.Engine.AdminToken))
	ops.POST("/deposits", h.Deposit)
	ops.POST("/reset", h.Reset)

	return r
}
