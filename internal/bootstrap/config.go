package bootstrap

import (
	"errors"
	"io/fs"
	"time"

	"github.com/spf13/viper"
)

const (
	BroadcastLocal = "local"
	BroadcastRedis = "redis"
)

type Config struct {
	ServerPort       string        `mapstructure:"SERVER_PORT"`
	GrpcPort         string        `mapstructure:"GRPC_PORT"`
	RedisUrl         string        `mapstructure:"REDIS_URL"`
	MongoUri         string        `mapstructure:"MONGO_URI"`
	MongoDatabase    string        `mapstructure:"MONGO_DATABASE"`
	LogLevel         string        `mapstructure:"LOG_LEVEL"`
	RegistryCapacity int           `mapstructure:"REGISTRY_CAPACITY"`
	SessionTTL       time.Duration `mapstructure:"SESSION_TTL"`
	EvictionInterval time.Duration `mapstructure:"EVICTION_INTERVAL"`
	WaitingTimeout   time.Duration `mapstructure:"WAITING_TIMEOUT"`
	CleanupInterval  time.Duration `mapstructure:"CLEANUP_INTERVAL"`
	RateLimitEvents  int           `mapstructure:"RATE_LIMIT_EVENTS"`
	RateLimitWindow  time.Duration `mapstructure:"RATE_LIMIT_WINDOW"`
	DefaultKomi      float64       `mapstructure:"DEFAULT_KOMI"`
	BroadcastMode    string        `mapstructure:"BROADCAST_MODE"`
	StoreTimeout     time.Duration `mapstructure:"STORE_TIMEOUT"`
}

var defaults = map[string]any{
	"SERVER_PORT":       "8080",
	"GRPC_PORT":         "8082",
	"REDIS_URL":         "localhost:6379",
	"MONGO_URI":         "mongodb://localhost:27017",
	"MONGO_DATABASE":    "goplay",
	"LOG_LEVEL":         "info",
	"REGISTRY_CAPACITY": 500,
	"SESSION_TTL":       time.Hour,
	"EVICTION_INTERVAL": 5 * time.Minute,
	"WAITING_TIMEOUT":   30 * time.Minute,
	"CLEANUP_INTERVAL":  10 * time.Minute,
	"RATE_LIMIT_EVENTS": 30,
	"RATE_LIMIT_WINDOW": time.Second,
	"DEFAULT_KOMI":      6.5,
	"BROADCAST_MODE":    BroadcastLocal,
	"STORE_TIMEOUT":     5 * time.Second,
}

// Setup reads cfgPath if it exists. Environment variables win over the file
// and every key has a default, so a missing file is not an error.
func Setup(cfgPath string) (*Config, error) {
	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	v.AutomaticEnv()

	if cfgPath != "" {
		v.SetConfigFile(cfgPath)
		v.SetConfigType("env")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			var pathErr *fs.PathError
			if !errors.As(err, &notFound) && !errors.As(err, &pathErr) {
				return nil, err
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) validate() error {
	switch {
	case c.RegistryCapacity <= 0:
		return errors.New("REGISTRY_CAPACITY must be positive")
	case c.SessionTTL <= 0:
		return errors.New("SESSION_TTL must be positive")
	case c.RateLimitEvents <= 0 || c.RateLimitWindow <= 0:
		return errors.New("rate limit must be positive")
	case c.BroadcastMode != BroadcastLocal && c.BroadcastMode != BroadcastRedis:
		return errors.New("BROADCAST_MODE must be local or redis")
	}
	return nil
}
