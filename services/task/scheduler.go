package task

import (
	"context"
	"sync"
	"time"

	"boostfix/pkg/config"

	"go.uber.org/fx"
	"go.uber.org/zap"
)

const DefaultFlushInterval = 5 * time.Second

// Scheduler restores state when the engine starts, flushes dirty state on an
// interval and once more on shutdown.
type Scheduler struct {
	manager  *Manager
	interval time.Duration

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewScheduler(m *Manager, cfg *config.Config) *Scheduler {
	interval := cfg.Engine.FlushInterval
	if interval <= 0 {
		interval = DefaultFlushInterval
	}
	return &Scheduler{manager: m, interval: interval}
}

func StartScheduler(lc fx.Lifecycle, s *Scheduler) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if err := s.manager.Load(ctx); err != nil {
				return err
			}
			s.Start()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return s.Stop(ctx)
		},
	})
}

func (s *Scheduler) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.run(ctx)
	}()
}

// Stop ends the loop and performs a final flush.
func (s *Scheduler) Stop(ctx context.Context) error {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()

	if err := s.manager.Flush(ctx); err != nil {
		zap.L().Error("[Scheduler] final flush failed", zap.Error(err))
		return err
	}
	zap.L().Info("[Scheduler] stopped")
	return nil
}

func (s *Scheduler) run(ctx context.Context) {
	zap.L().Info("[Scheduler] started state flush scheduler", zap.Duration("interval", s.interval))

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.flush(ctx)
		case <-ctx.Done():
			return
		}
	}
}

func (s *Scheduler) flush(ctx context.Context) {
	if !s.manager.Dirty() {
		return
	}

	start := time.Now()
	if err := s.manager.Flush(ctx); err != nil {
		zap.L().Error("[Scheduler] flush failed", zap.Error(err))
		return
	}
	zap.L().Debug("[Scheduler] state flushed", zap.Duration("duration", time.Since(start)))
}
