package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	StoreMemory   = "memory"
	StoreRedis    = "redis"
	StoreDatabase = "database"

	VerifierStrict     = "strict"
	VerifierPermissive = "permissive"
)

type Config struct {
	AppEnv     string `mapstructure:"APP_ENV"`
	AppName    string `mapstructure:"APP_NAME"`
	AppVersion string `mapstructure:"APP_VERSION"`
	LogLevel   string `mapstructure:"LOG_LEVEL"`
	TLS        struct {
		Enable   bool   `mapstructure:"ENABLE"`
		CertPath string `mapstructure:"CERT_PATH"`
		KeyPath  string `mapstructure:"KEY_PATH"`
	} `mapstructure:"TLS"`
	Server struct {
		Addr         string        `mapstructure:"ADDR"`
		ReadTimeout  time.Duration `mapstructure:"READ_TIMEOUT"`
		WriteTimeout time.Duration `mapstructure:"WRITE_TIMEOUT"`
		IdleTimeout  time.Duration `mapstructure:"IDLE_TIMEOUT"`
	} `mapstructure:"HTTP_SERVER"`
	Database struct {
		Type           string `mapstructure:"TYPE"`
		Host           string `mapstructure:"HOST"`
		Port           string `mapstructure:"PORT"`
		DBName         string `mapstructure:"DBNAME"`
		User           string `mapstructure:"USER"`
		Password       string `mapstructure:"PASSWORD"`
		SSLMode        string `mapstructure:"SSLMODE"`
		Timezone       string `mapstructure:"TIMEZONE"`
		Path           string `mapstructure:"PATH"`
		ConnectionPool struct {
			MaxIdleConn     int           `mapstructure:"MAX_IDLE_CONN"`
			MaxOpenConns    int           `mapstructure:"MAX_OPEN_CONNS"`
			ConnMaxLifetime time.Duration `mapstructure:"CONN_MAX_LIFETIME"`
			ConnMaxIdleTime time.Duration `mapstructure:"CONN_MAX_IDLE_TIME"`
		} `mapstructure:"CONNECTION_POOL"`
	} `mapstructure:"DATABASE"`
	Redis struct {
		Addr        string        `mapstructure:"ADDR"`
		Password    string        `mapstructure:"PASSWORD"`
		DB          int           `mapstructure:"DB"`
		PoolSize    int           `mapstructure:"POOL_SIZE"`
		PoolTimeout time.Duration `mapstructure:"POOL_TIMEOUT"`
	} `mapstructure:"REDIS"`
	Engine struct {
		NodeID              int64         `mapstructure:"NODE_ID"`
		ClaimDelay          time.Duration `mapstructure:"CLAIM_DELAY"`
		ReservationMultiple int64         `mapstructure:"RESERVATION_MULTIPLE"`
		MinWithdrawal       string        `mapstructure:"MIN_WITHDRAWAL"`
		DefaultReputation   int           `mapstructure:"DEFAULT_REPUTATION"`
		SuccessDelta        int           `mapstructure:"SUCCESS_DELTA"`
		FailureDelta        int           `mapstructure:"FAILURE_DELTA"`
		Token               string        `mapstructure:"TOKEN"`
		Store               string        `mapstructure:"STORE"`
		FlushInterval       time.Duration `mapstructure:"FLUSH_INTERVAL"`
		AdminToken          string        `mapstructure:"ADMIN_TOKEN"`
	} `mapstructure:"ENGINE"`
	Verifier struct {
		Mode        string        `mapstructure:"MODE"`
		BaseURL     string        `mapstructure:"BASE_URL"`
		Timeout     time.Duration `mapstructure:"TIMEOUT"`
		PageSize    int           `mapstructure:"PAGE_SIZE"`
		RateLimit   float64       `mapstructure:"RATE_LIMIT"`
		Burst       int           `mapstructure:"BURST"`
		IdentityTTL time.Duration `mapstructure:"IDENTITY_TTL"`
	} `mapstructure:"VERIFIER"`
	Worker struct {
		Enabled     bool   `mapstructure:"ENABLED"`
		Concurrency int    `mapstructure:"CONCURRENCY"`
		Queue       string `mapstructure:"QUEUE"`
	} `mapstructure:"WORKER"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("APP_ENV", "development")
	v.SetDefault("APP_NAME", "boostfix-engine")

	v.SetDefault("HTTP_SERVER.ADDR", "8080")
	v.SetDefault("HTTP_SERVER.READ_TIMEOUT", 15*time.Second)
	v.SetDefault("HTTP_SERVER.WRITE_TIMEOUT", 30*time.Second)
	v.SetDefault("HTTP_SERVER.IDLE_TIMEOUT", 60*time.Second)

	v.SetDefault("DATABASE.TYPE", "sqlite")
	v.SetDefault("DATABASE.PATH", "boostfix.db")
	v.SetDefault("DATABASE.SSLMODE", "disable")
	v.SetDefault("DATABASE.TIMEZONE", "UTC")
	v.SetDefault("DATABASE.CONNECTION_POOL.MAX_IDLE_CONN", 5)
	v.SetDefault("DATABASE.CONNECTION_POOL.MAX_OPEN_CONNS", 10)
	v.SetDefault("DATABASE.CONNECTION_POOL.CONN_MAX_LIFETIME", time.Hour)

	v.SetDefault("REDIS.ADDR", "127.0.0.1:6379")
	v.SetDefault("REDIS.POOL_SIZE", 10)
	v.SetDefault("REDIS.POOL_TIMEOUT", 4*time.Second)

	v.SetDefault("ENGINE.NODE_ID", 1)
	v.SetDefault("ENGINE.CLAIM_DELAY", 5*time.Second)
	v.SetDefault("ENGINE.RESERVATION_MULTIPLE", 10)
	v.SetDefault("ENGINE.MIN_WITHDRAWAL", "0.50")
	v.SetDefault("ENGINE.DEFAULT_REPUTATION", 50)
	v.SetDefault("ENGINE.SUCCESS_DELTA", 1)
	v.SetDefault("ENGINE.FAILURE_DELTA", -5)
	v.SetDefault("ENGINE.TOKEN", "USDT")
	v.SetDefault("ENGINE.STORE", StoreMemory)
	v.SetDefault("ENGINE.FLUSH_INTERVAL", 5*time.Second)

	v.SetDefault("VERIFIER.MODE", VerifierStrict)
	v.SetDefault("VERIFIER.BASE_URL", "https://api.twitter.com")
	v.SetDefault("VERIFIER.TIMEOUT", 10*time.Second)
	v.SetDefault("VERIFIER.PAGE_SIZE", 100)
	v.SetDefault("VERIFIER.RATE_LIMIT", 1.0)
	v.SetDefault("VERIFIER.BURST", 5)
	v.SetDefault("VERIFIER.IDENTITY_TTL", 10*time.Minute)

	v.SetDefault("WORKER.ENABLED", false)
	v.SetDefault("WORKER.CONCURRENCY", 10)
	v.SetDefault("WORKER.QUEUE", "deposits")
}

// Load reads config.yaml from the working directory (optional) and applies
// environment overrides, e.g. ENGINE_CLAIM_DELAY=3s.
func Load() (*Config, error) {
	return load(viper.New(), ".")
}

func load(v *viper.Viper, paths ...string) (*Config, error) {
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	for _, p := range paths {
		v.AddConfigPath(p)
	}

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) validate() error {
	switch c.Engine.Store {
	case StoreMemory, StoreRedis, StoreDatabase:
	default:
		return fmt.Errorf("unsupported ENGINE.STORE %q", c.Engine.Store)
	}

	switch c.Verifier.Mode {
	case VerifierStrict, VerifierPermissive:
	default:
		return fmt.Errorf("unsupported VERIFIER.MODE %q", c.Verifier.Mode)
	}

	if c.TLS.Enable && (c.TLS.CertPath == "" || c.TLS.KeyPath == "") {
		return fmt.Errorf("tls enabled but TLS.CERT_PATH or TLS.KEY_PATH not provided")
	}

	return nil
}

// NeedsRedis reports whether any configured component talks to Redis.
func (c *Config) NeedsRedis() bool {
	return c.Engine.Store == StoreRedis || c.Worker.Enabled
}
