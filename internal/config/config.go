package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v6"
	"github.com/docker/go-units"
)

const (
	StoreDriverMongo    = "mongo"
	StoreDriverPostgres = "postgres"
)

const (
	PhotoStorageGridFS     = "gridfs"
	PhotoStorageFilesystem = "filesystem"
)

type HTTPCfg struct {
	Port            int           `env:"HTTP_PORT" envDefault:"3000"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`
	RateLimitRPS    float64       `env:"RATE_LIMIT_RPS" envDefault:"20"`
}

type LogCfg struct {
	Level  string `env:"LOG_LEVEL" envDefault:"info"`
	Format string `env:"LOG_FORMAT" envDefault:"text"`
}

type MongoCfg struct {
	URI         string `env:"MONGO_URI" envDefault:"mongodb://mongo-customers:27017"`
	Database    string `env:"MONGO_DATABASE" envDefault:"customers"`
	MaxPoolSize uint64 `env:"MONGO_MAX_POOL_SIZE" envDefault:"100"`
}

type PostgresCfg struct {
	User        string `env:"POSTGRES_USER" envDefault:"postgres"`
	Password    string `env:"POSTGRES_PASSWORD" envDefault:""`
	Database    string `env:"POSTGRES_DB" envDefault:"customers"`
	Host        string `env:"POSTGRES_HOST" envDefault:"pg-customers"`
	Port        int    `env:"POSTGRES_PORT" envDefault:"5432"`
	SslMode     string `env:"POSTGRES_SLL_MODE" envDefault:"disable"`
	PoolMaxConn int    `env:"POSTGRES_POOL_MAX_CONN" envDefault:"100"`
}

// DSN builds pgx connection string
func (c PostgresCfg) DSN() string {
	return fmt.Sprintf("user=%s password=%s host=%s port=%d dbname=%s sslmode=%s pool_max_conns=%d",
		c.User, c.Password, c.Host, c.Port, c.Database, c.SslMode, c.PoolMaxConn)
}

// URL builds connection url accepted by migrations driver
func (c PostgresCfg) URL() string {
	return fmt.Sprintf("pgx://%s:%s@%s:%d/%s?sslmode=%s", c.User, c.Password, c.Host, c.Port, c.Database, c.SslMode)
}

type RedisCfg struct {
	Enabled    bool          `env:"REDIS_ENABLED" envDefault:"true"`
	Addr       string        `env:"REDIS_ADDR" envDefault:"redis-customers:6379"`
	Password   string        `env:"REDIS_PASSWORD" envDefault:""`
	DB         int           `env:"REDIS_DB" envDefault:"0"`
	TimeToLive time.Duration `env:"REDIS_CACHE_TTL" envDefault:"10m"`
}

type PhotoCfg struct {
	Driver        string `env:"PHOTO_STORAGE_DRIVER" envDefault:"gridfs"`
	Path          string `env:"PHOTO_STORAGE_PATH" envDefault:"./images"`
	PublicBaseURL string `env:"PHOTO_PUBLIC_BASE_URL" envDefault:"http://localhost:3000"`
	MaxSizeRaw    string `env:"PHOTO_MAX_SIZE" envDefault:"5MB"`
	maxSize       int64
}

// MaxSize returns photo size limit in bytes
func (c PhotoCfg) MaxSize() int64 {
	return c.maxSize
}

type ListCfg struct {
	DefaultPageSize int `env:"LIST_DEFAULT_PAGE_SIZE" envDefault:"9"`
	MaxPageSize     int `env:"LIST_MAX_PAGE_SIZE" envDefault:"100"`
}

type StatsCfg struct {
	RefreshSchedule string        `env:"STATS_REFRESH_SCHEDULE" envDefault:"@every 1m"`
	RefreshTimeout  time.Duration `env:"STATS_REFRESH_TIMEOUT" envDefault:"30s"`
}

type Config struct {
	StoreDriver string `env:"STORE_DRIVER" envDefault:"mongo"`
	HTTPCfg     HTTPCfg
	LogCfg      LogCfg
	MongoCfg    MongoCfg
	PostgresCfg PostgresCfg
	RedisCfg    RedisCfg
	PhotoCfg    PhotoCfg
	ListCfg     ListCfg
	StatsCfg    StatsCfg
}

func Build() (Config, error) {
	var cfg Config
	opts := env.Options{RequiredIfNoDef: true}

	if err := env.Parse(&cfg, opts); err != nil {
		return cfg, fmt.Errorf("failed to parse environment variables - %w", err)
	}

	switch cfg.StoreDriver {
	case StoreDriverMongo, StoreDriverPostgres:
	default:
		return cfg, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
	}

	switch cfg.PhotoCfg.Driver {
	case PhotoStorageFilesystem:
	case PhotoStorageGridFS:
		if cfg.StoreDriver != StoreDriverMongo {
			return cfg, fmt.Errorf("photo storage %q requires %q store driver", PhotoStorageGridFS, StoreDriverMongo)
		}
	default:
		return cfg, fmt.Errorf("unknown photo storage driver %q", cfg.PhotoCfg.Driver)
	}

	maxSize, err := units.RAMInBytes(cfg.PhotoCfg.MaxSizeRaw)
	if err != nil {
		return cfg, fmt.Errorf("failed to parse photo max size - %w", err)
	}
	cfg.PhotoCfg.maxSize = maxSize

	if cfg.ListCfg.DefaultPageSize <= 0 || cfg.ListCfg.MaxPageSize < cfg.ListCfg.DefaultPageSize {
		return cfg, fmt.Errorf("invalid page size limits: default %d, max %d", cfg.ListCfg.DefaultPageSize, cfg.ListCfg.MaxPageSize)
	}

	if cfg.RedisCfg.Enabled && cfg.RedisCfg.TimeToLive < time.Millisecond {
		return cfg, fmt.Errorf("redis cache ttl must be at least 1ms, got %s", cfg.RedisCfg.TimeToLive)
	}

	return cfg, nil
}
