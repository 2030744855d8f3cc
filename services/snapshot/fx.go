package snapshot

import (
	"fmt"

	"boostfix/pkg/config"

	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var Module = fx.Module("snapshot",
	fx.Provide(Provide),
)

type Params struct {
	fx.In

	Config *config.Config
	Redis  *redis.Client `optional:"true"`
	DB     *gorm.DB      `optional:"true"`
}

// Provide selects the store from ENGINE.STORE.
func Provide(p Params) (Store, error) {
	switch p.Config.Engine.Store {
	case config.StoreRedis:
		if p.Redis == nil {
			return nil, fmt.Errorf("ENGINE.STORE=%s requires a redis client", config.StoreRedis)
		}
		zap.L().Info("snapshot store: redis", zap.String("addr", p.Config.Redis.Addr))
		return NewRedisStore(p.Redis), nil
	case config.StoreDatabase:
		if p.DB == nil {
			return nil, fmt.Errorf("ENGINE.STORE=%s requires a database", config.StoreDatabase)
		}
		zap.L().Info("snapshot store: database", zap.String("type", p.Config.Database.Type))
		return NewDatabaseStore(p.DB)
	default:
		zap.L().Info("snapshot store: memory, state is lost on restart")
		return NewMemoryStore(), nil
	}
}
