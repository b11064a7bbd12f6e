package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App     AppConfig
	DB      DBConfig
	Blob    BlobConfig
	Cache   CacheConfig
	Pointer PointerConfig
	Redis   RedisConfig
	JWT     JWTConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate enforces requirements that depend on more than one field.
func (c *Config) Validate() error {
	switch c.DB.Driver {
	case DriverSQLite, DriverPostgres:
	default:
		return fmt.Errorf("unsupported %s %q", EnvDBDriver, c.DB.Driver)
	}
	if strings.TrimSpace(c.DB.DSN) == "" {
		return fmt.Errorf("%s is required", EnvDBDSN)
	}
	if c.Blob.ImageMaxDimension <= 0 {
		return fmt.Errorf("%s must be positive", EnvBlobImageMaxDimension)
	}
	if c.Blob.ImageQuality < 1 || c.Blob.ImageQuality > 100 {
		return fmt.Errorf("%s must be within 1..100", EnvBlobImageQuality)
	}
	if c.Cache.MemoryCapacity <= 0 {
		return fmt.Errorf("%s must be positive", EnvCacheMemoryCapacity)
	}

	switch c.Pointer.Backend {
	case PointerBackendFile:
		if c.Pointer.Path == "" {
			return fmt.Errorf("%s is required for the file pointer backend", EnvPointerPath)
		}
		if c.Pointer.Passphrase == "" {
			return fmt.Errorf("%s is required for the file pointer backend", EnvPointerPassphrase)
		}
	case PointerBackendRedis:
		if c.Redis.URL == "" && c.Redis.Address == "" {
			return fmt.Errorf("either %s or %s is required for the redis pointer backend", EnvRedisURL, EnvRedisAddr)
		}
	case PointerBackendMemory:
	default:
		return fmt.Errorf("unsupported %s %q", EnvPointerBackend, c.Pointer.Backend)
	}
	return nil
}

type AppConfig struct {
	Env             string `envconfig:"STOREFRONT_APP_ENV" default:"dev"`
	LogLevel        string `envconfig:"STOREFRONT_LOG_LEVEL" default:"info"`
	LogWarnStack    bool   `envconfig:"STOREFRONT_LOG_WARN_STACK" default:"false"`
	DiagnosticsAddr string `envconfig:"STOREFRONT_DIAGNOSTICS_ADDR" default:"127.0.0.1:9464"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	Driver string `envconfig:"STOREFRONT_DB_DRIVER" default:"sqlite"`
	DSN    string `envconfig:"STOREFRONT_DB_DSN" default:"storefront.db"`

	MaxOpenConns    int           `envconfig:"STOREFRONT_DB_MAX_OPEN_CONNS" default:"4"`
	MaxIdleConns    int           `envconfig:"STOREFRONT_DB_MAX_IDLE_CONNS" default:"2"`
	ConnMaxLifetime time.Duration `envconfig:"STOREFRONT_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"STOREFRONT_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

func (d DBConfig) IsSQLite() bool {
	return d.Driver == DriverSQLite
}

type BlobConfig struct {
	Dir               string `envconfig:"STOREFRONT_BLOB_DIR" default:"data/profile_images"`
	ImageMaxDimension int    `envconfig:"STOREFRONT_BLOB_IMAGE_MAX_DIMENSION" default:"512"`
	ImageQuality      int    `envconfig:"STOREFRONT_BLOB_IMAGE_QUALITY" default:"80"`
}

type CacheConfig struct {
	MemoryCapacity int `envconfig:"STOREFRONT_CACHE_MEMORY_CAPACITY" default:"1"`
}

type PointerConfig struct {
	Backend    string `envconfig:"STOREFRONT_POINTER_BACKEND" default:"file"`
	Path       string `envconfig:"STOREFRONT_POINTER_PATH" default:"data/pointers.bin"`
	Passphrase string `envconfig:"STOREFRONT_POINTER_PASSPHRASE"`

	ArgonMemoryKB    int `envconfig:"STOREFRONT_POINTER_ARGON_MEMORY_KB" default:"65536"`
	ArgonTime        int `envconfig:"STOREFRONT_POINTER_ARGON_TIME" default:"3"`
	ArgonParallelism int `envconfig:"STOREFRONT_POINTER_ARGON_PARALLELISM" default:"2"`
	ArgonSaltLen     int `envconfig:"STOREFRONT_POINTER_ARGON_SALT_LEN" default:"16"`
}

type RedisConfig struct {
	URL          string        `envconfig:"STOREFRONT_REDIS_URL"`
	Address      string        `envconfig:"STOREFRONT_REDIS_ADDR"`
	Password     string        `envconfig:"STOREFRONT_REDIS_PASSWORD"`
	DB           int           `envconfig:"STOREFRONT_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"STOREFRONT_REDIS_POOL_SIZE" default:"4"`
	MinIdleConns int           `envconfig:"STOREFRONT_REDIS_MIN_IDLE_CONNS" default:"1"`
	DialTimeout  time.Duration `envconfig:"STOREFRONT_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"STOREFRONT_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"STOREFRONT_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret string `envconfig:"STOREFRONT_JWT_SECRET"`
	Issuer string `envconfig:"STOREFRONT_JWT_ISSUER" default:"storefront"`

	ExpirationMinutes int `envconfig:"STOREFRONT_JWT_EXPIRATION_MINUTES" default:"60"`
}

func (j JWTConfig) TTL() time.Duration {
	return time.Duration(j.ExpirationMinutes) * time.Minute
}
