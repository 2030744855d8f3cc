package snapshot

import (
	"context"
	"testing"

	"boostfix/pkg/config"
	"boostfix/pkg/rediskey"
	"boostfix/services/testutil"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

func exerciseStore(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()

	got, err := s.Load(ctx)
	require.NoError(t, err)
	require.Empty(t, got)

	earnings := rediskey.BuildUserKey("alice", rediskey.FieldEarnings)
	rep := rediskey.BuildUserKey("alice", rediskey.FieldReputation)

	first := Snapshot{
		rediskey.TasksKey: `[{"id":"1"}]`,
		earnings:          "0.1",
		rep:               "51",
	}
	require.NoError(t, s.Save(ctx, first))

	got, err = s.Load(ctx)
	require.NoError(t, err)
	require.Equal(t, first, got)

	second := Snapshot{
		rediskey.TasksKey: `[]`,
		earnings:          "0.2",
	}
	require.NoError(t, s.Save(ctx, second))

	got, err = s.Load(ctx)
	require.NoError(t, err)
	require.Equal(t, second, got)

	require.NoError(t, s.Clear(ctx))
	got, err = s.Load(ctx)
	require.NoError(t, err)
	require.Empty(t, got)
}

func TestMemoryStore(t *testing.T) {
	exerciseStore(t, NewMemoryStore())
}

func TestMemoryStoreCopies(t *testing.T) {
	s := NewMemoryStore()
	snap := Snapshot{"k": "v"}
	require.NoError(t, s.Save(context.Background(), snap))
	snap["k"] = "changed"

	got, err := s.Load(context.Background())
	require.NoError(t, err)
	require.Equal(t, "v", got["k"])
}

func TestRedisStore(t *testing.T) {
	rdb, srv := testutil.NewTestRedis(t)
	exerciseStore(t, NewRedisStore(rdb))
	require.False(t, srv.Exists(rediskey.TasksKey))
}

func TestRedisStoreIndex(t *testing.T) {
	rdb, srv := testutil.NewTestRedis(t)
	s := NewRedisStore(rdb)

	require.NoError(t, s.Save(context.Background(), Snapshot{rediskey.DepositsKey: `["0x1"]`}))
	members, err := srv.Members(rediskey.IndexKey)
	require.NoError(t, err)
	require.Equal(t, []string{rediskey.DepositsKey}, members)
}

func TestDatabaseStore(t *testing.T) {
	db := testutil.NewTestDB(t)
	s, err := NewDatabaseStore(db)
	require.NoError(t, err)
	exerciseStore(t, s)
}

func TestProvide(t *testing.T) {
	cfg := &config.Config{}
	cfg.Engine.Store = config.StoreMemory
	s, err := Provide(Params{Config: cfg})
	require.NoError(t, err)
	require.IsType(t, &MemoryStore{}, s)

	cfg.Engine.Store = config.StoreRedis
	_, err = Provide(Params{Config: cfg})
	require.Error(t, err)

	rdb, _ := testutil.NewTestRedis(t)
	s, err = Provide(Params{Config: cfg, Redis: rdb})
	require.NoError(t, err)
	require.IsType(t, &RedisStore{}, s)

	cfg.Engine.Store = config.StoreDatabase
	s, err = Provide(Params{Config: cfg, DB: testutil.NewTestDB(t)})
	require.NoError(t, err)
	require.IsType(t, &DatabaseStore{}, s)
}
