package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/nevc-media/vidstream/catalog/internal/models"
	"github.com/nevc-media/vidstream/common/httputil"
)

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Redis     RedisConfig     `mapstructure:"redis"`
	NATS      NATSConfig      `mapstructure:"nats"`
	Storage   StorageConfig   `mapstructure:"storage"`
	RateLimit RateLimitConfig `mapstructure:"ratelimit"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

type ServerConfig struct {
	Port           int           `mapstructure:"port"`
	ReadTimeout    time.Duration `mapstructure:"read_timeout"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout"`
	IdleTimeout    time.Duration `mapstructure:"idle_timeout"`
	MaxUploadBytes int64         `mapstructure:"max_upload_bytes"`
	AllowedOrigins []string      `mapstructure:"allowed_origins"`
	// TrustedProxies are CIDRs whose X-Forwarded-For and X-Real-IP headers
	// are believed. Empty means the connecting peer is always the client.
	TrustedProxies []string `mapstructure:"trusted_proxies"`
}

type AuthConfig struct {
	JWTSecret   string        `mapstructure:"jwt_secret"`
	TokenTTL    time.Duration `mapstructure:"token_ttl"`
	AuditSecret string        `mapstructure:"audit_secret"`
	DefaultRole string        `mapstructure:"default_role"`
	BcryptCost  int           `mapstructure:"bcrypt_cost"`

	// RevocationSweepInterval applies to the in-memory revocation store.
	RevocationSweepInterval time.Duration `mapstructure:"revocation_sweep_interval"`
}

type DatabaseConfig struct {
	Type     string         `mapstructure:"type"`
	Postgres PostgresConfig `mapstructure:"postgres"`

	// Migrations is a golang-migrate source URL.
	Migrations string `mapstructure:"migrations"`
}

type PostgresConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Database string `mapstructure:"database"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	SSLMode  string `mapstructure:"sslmode"`
}

// ConnString builds a postgres:// URL usable by both pgx and migrate.
func (p PostgresConfig) ConnString() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		p.User, p.Password, p.Host, p.Port, p.Database, p.SSLMode)
}

type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type NATSConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	URL     string `mapstructure:"url"`
}

type StorageConfig struct {
	Backend string   `mapstructure:"backend"`
	FS      FSConfig `mapstructure:"fs"`
	S3      S3Config `mapstructure:"s3"`
}

type FSConfig struct {
	Root string `mapstructure:"root"`
}

type S3Config struct {
	Bucket   string `mapstructure:"bucket"`
	Region   string `mapstructure:"region"`
	Endpoint string `mapstructure:"endpoint"`
	Prefix   string `mapstructure:"prefix"`
}

type RateLimitConfig struct {
	Enabled bool          `mapstructure:"enabled"`
	Login   int           `mapstructure:"login_requests"`
	Window  time.Duration `mapstructure:"login_window"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

func Load(configPath string) (*Config, error) {
	v := viper.New()

	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "0s")
	v.SetDefault("server.idle_timeout", "120s")
	v.SetDefault("server.max_upload_bytes", int64(2)<<30)
	v.SetDefault("server.allowed_origins", []string{"http://localhost:3000", "http://localhost:5173", "http://localhost:8080"})
	v.SetDefault("server.trusted_proxies", []string{})
	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.token_ttl", "10h")
	v.SetDefault("auth.audit_secret", "")
	v.SetDefault("auth.default_role", string(models.RoleCreator))
	v.SetDefault("auth.bcrypt_cost", 12)
	v.SetDefault("auth.revocation_sweep_interval", "1m")
	v.SetDefault("database.type", "memory")
	v.SetDefault("database.migrations", "file://migrations")
	v.SetDefault("database.postgres.host", "localhost")
	v.SetDefault("database.postgres.port", 5432)
	v.SetDefault("database.postgres.database", "vidstream")
	v.SetDefault("database.postgres.user", "vidstream")
	v.SetDefault("database.postgres.password", "")
	v.SetDefault("database.postgres.sslmode", "disable")
	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("nats.enabled", false)
	v.SetDefault("nats.url", "nats://localhost:4222")
	v.SetDefault("storage.backend", "fs")
	v.SetDefault("storage.fs.root", "./data/videos")
	v.SetDefault("storage.s3.bucket", "")
	v.SetDefault("storage.s3.region", "us-east-1")
	v.SetDefault("storage.s3.endpoint", "")
	v.SetDefault("storage.s3.prefix", "videos")
	v.SetDefault("ratelimit.enabled", true)
	v.SetDefault("ratelimit.login_requests", 10)
	v.SetDefault("ratelimit.login_window", "1m")
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/vidstream/catalog")
	}

	v.SetEnvPrefix("CATALOG")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects configurations the service cannot start with.
func (c *Config) Validate() error {
	var errs []error
	if len(c.Auth.JWTSecret) < 32 {
		errs = append(errs, errors.New("auth.jwt_secret must be at least 32 bytes"))
	}
	if c.Auth.TokenTTL <= 0 {
		errs = append(errs, errors.New("auth.token_ttl must be positive"))
	}
	if c.Auth.RevocationSweepInterval <= 0 {
		errs = append(errs, errors.New("auth.revocation_sweep_interval must be positive"))
	}
	if _, err := httputil.ParseTrustedProxies(c.Server.TrustedProxies); err != nil {
		errs = append(errs, fmt.Errorf("server.trusted_proxies: %w", err))
	}
	if _, err := models.ParseRole(c.Auth.DefaultRole); err != nil {
		errs = append(errs, fmt.Errorf("auth.default_role: %w", err))
	}
	switch c.Database.Type {
	case "memory", "postgres":
	default:
		errs = append(errs, fmt.Errorf("database.type %q must be memory or postgres", c.Database.Type))
	}
	switch c.Storage.Backend {
	case "fs":
		if c.Storage.FS.Root == "" {
			errs = append(errs, errors.New("storage.fs.root is required"))
		}
	case "s3":
		if c.Storage.S3.Bucket == "" {
			errs = append(errs, errors.New("storage.s3.bucket is required"))
		}
	default:
		errs = append(errs, fmt.Errorf("storage.backend %q must be fs or s3", c.Storage.Backend))
	}
	if c.RateLimit.Enabled && (c.RateLimit.Login <= 0 || c.RateLimit.Window <= 0) {
		errs = append(errs, errors.New("ratelimit.login_requests and ratelimit.login_window must be positive"))
	}
	return errors.Join(errs...)
}
