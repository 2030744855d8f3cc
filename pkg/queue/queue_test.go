package queue

import (
	"context"
	"testing"

	"boostfix/pkg/config"

	"github.com/alicebob/miniredis/v2"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

func TestServerConfig(t *testing.T) {
	cfg := &config.Config{}
	sc := ServerConfig(cfg)
	require.Equal(t, 10, sc.Concurrency)
	require.Equal(t, map[string]int{"default": 1}, sc.Queues)

	cfg.Worker.Concurrency = 3
	cfg.Worker.Queue = "deposits"
	sc = ServerConfig(cfg)
	require.Equal(t, 3, sc.Concurrency)
	require.Equal(t, map[string]int{"deposits": 1}, sc.Queues)
}

func TestEnqueue(t *testing.T) {
	srv := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	client, err := registerClient(rdb)
	require.NoError(t, err)

	info, err := NewEnqueuer(client).Enqueue(context.Background(), asynq.NewTask("boostfix:test", []byte(`{}`)), asynq.Queue("deposits"))
	require.NoError(t, err)
	require.Equal(t, "deposits", info.Queue)
	require.Equal(t, "boostfix:test", info.Type)
}
