package health

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

var Module = fx.Module("health", fx.Provide(ProvideHealth))

const (
	StatusHealthy   = "healthy"
	StatusUnhealthy = "unhealthy"
)

type Dependency struct {
	Name    string `json:"name"`
	Status  string `json:"status"`
	Message string `json:"message"`
}

type Health struct {
	Status  string       `json:"status"`
	Message string       `json:"message"`
	Deps    []Dependency `json:"deps,omitempty"`
}

type HealthService interface {
	Liveness(c *gin.Context)
	Readiness(c *gin.Context)
}

type health struct {
	db      *gorm.DB
	redis   *redis.Client
	timeout time.Duration
}

type HealthParams struct {
	fx.In
	DB    *gorm.DB      `optional:"true"`
	Redis *redis.Client `optional:"true"`
}

func ProvideHealth(p HealthParams) HealthService {
	return &health{
		db:      p.DB,
		redis:   p.Redis,
		timeout: 2 * time.Second,
	}
}

func (h *health) Liveness(c *gin.Context) {
	c.JSON(http.StatusOK, &Health{
		Status:  StatusHealthy,
		Message: "OK",
	})
}

// Readiness pings every configured backend concurrently.
func (h *health) Readiness(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout)
	defer cancel()

	var (
		mu   sync.Mutex
		deps []Dependency
	)
	record := func(name string, err error) {
		dep := Dependency{Name: name, Status: StatusHealthy, Message: "OK"}
		if err != nil {
			dep.Status = StatusUnhealthy
			dep.Message = err.Error()
		}
		mu.Lock()
		deps = append(deps, dep)
		mu.Unlock()
	}

	var g errgroup.Group
	if h.db != nil {
		g.Go(func() error {
			sqlDB, err := h.db.DB()
			if err == nil {
				err = sqlDB.PingContext(ctx)
			}
			record(h.db.Name(), err)
			return err
		})
	}
	if h.redis != nil {
		g.Go(func() error {
			err := h.redis.Ping(ctx).Err()
			record("redis", err)
			return err
		})
	}

	this := &Health{Status: StatusHealthy, Message: "OK"}
	code := http.StatusOK
	if err := g.Wait(); err != nil {
		this.Status = StatusUnhealthy
		this.Message = "dependency unavailable"
		code = http.StatusServiceUnavailable
	}
	this.Deps = deps

	c.JSON(code, this)
}
