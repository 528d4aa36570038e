package config

import (
	"fmt"
	"time"

	pkgconfig "github.com/utafrali/DeliveryGo/pkg/config"
	"github.com/utafrali/DeliveryGo/pkg/database"
)

const defaultJWTSecret = "change-this-to-a-secure-secret"

// Config holds all configuration for the delivery API.
type Config struct {
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`

	// HTTP server
	HTTPPort        int           `env:"HTTP_PORT" envDefault:"8000"`
	RequestTimeout  time.Duration `env:"HTTP_REQUEST_TIMEOUT" envDefault:"30s"`
	ShutdownTimeout time.Duration `env:"HTTP_SHUTDOWN_TIMEOUT" envDefault:"5s"`

	// PostgreSQL
	PostgresHost         string        `env:"POSTGRES_HOST" envDefault:"localhost"`
	PostgresPort         int           `env:"POSTGRES_PORT" envDefault:"5432"`
	PostgresUser         string        `env:"POSTGRES_USER" envDefault:"delivery"`
	PostgresPass         string        `env:"POSTGRES_PASSWORD" envDefault:"delivery_secret"`
	PostgresDB           string        `env:"POSTGRES_DB" envDefault:"delivery"`
	PostgresSSL          string        `env:"POSTGRES_SSL_MODE" envDefault:"disable"`
	DBMaxConns           int32         `env:"DB_MAX_CONNS" envDefault:"20"`
	DBMinConns           int32         `env:"DB_MIN_CONNS" envDefault:"2"`
	DBMaxConnLifetime    time.Duration `env:"DB_MAX_CONN_LIFETIME" envDefault:"30m"`
	DBMaxConnIdleTime    time.Duration `env:"DB_MAX_CONN_IDLE_TIME" envDefault:"5m"`
	SlowQueryThresholdMs int           `env:"DB_SLOW_QUERY_THRESHOLD_MS" envDefault:"200"`

	// Redis
	RedisAddr       string        `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	RedisPassword   string        `env:"REDIS_PASSWORD"`
	RedisDB         int           `env:"REDIS_DB" envDefault:"0"`
	ProductCacheTTL time.Duration `env:"PRODUCT_CACHE_TTL" envDefault:"5m"`

	// Kafka
	KafkaBrokers []string `env:"KAFKA_BROKERS" envDefault:"localhost:9092" envSeparator:","`

	// OpenTelemetry
	OTELEnabled    bool    `env:"OTEL_ENABLED" envDefault:"false"`
	OTELEndpoint   string  `env:"OTEL_EXPORTER_OTLP_ENDPOINT" envDefault:"localhost:4318"`
	OTELSampleRate float64 `env:"OTEL_SAMPLE_RATE" envDefault:"1.0"`

	// Auth
	JWTSecret         string        `env:"JWT_SECRET" envDefault:"change-this-to-a-secure-secret"`
	AccessTokenExpiry time.Duration `env:"ACCESS_TOKEN_EXPIRE" envDefault:"192h"`

	// First superuser, created at startup when absent.
	FirstSuperuser         string `env:"FIRST_SUPERUSER" envDefault:"admin@example.com"`
	FirstSuperuserPassword string `env:"FIRST_SUPERUSER_PASSWORD" envDefault:"admin"`

	// Login throttling, per client IP.
	LoginRateLimit float64 `env:"LOGIN_RATE_LIMIT" envDefault:"1"`
	LoginRateBurst int     `env:"LOGIN_RATE_BURST" envDefault:"5"`

	// CORS
	CORSAllowedOrigins []string `env:"CORS_ORIGINS" envDefault:"*" envSeparator:","`

	// pprof
	PprofEnabled      bool     `env:"PPROF_ENABLED" envDefault:"false"`
	PprofAllowedCIDRs []string `env:"PPROF_ALLOWED_CIDRS" envDefault:"127.0.0.1/32,::1/128" envSeparator:","`
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := pkgconfig.Load(cfg); err != nil {
		return nil, fmt.Errorf("load delivery config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// validate checks configuration invariants.
func (c *Config) validate() error {
	if c.HTTPPort < 1 || c.HTTPPort > 65535 {
		return fmt.Errorf("invalid HTTP port: %d", c.HTTPPort)
	}
	if c.AccessTokenExpiry <= 0 {
		return fmt.Errorf("ACCESS_TOKEN_EXPIRE must be positive, got %s", c.AccessTokenExpiry)
	}
	if c.DBMinConns > c.DBMaxConns {
		return fmt.Errorf("DB_MIN_CONNS (%d) exceeds DB_MAX_CONNS (%d)", c.DBMinConns, c.DBMaxConns)
	}
	if c.LoginRateLimit <= 0 || c.LoginRateBurst < 1 {
		return fmt.Errorf("invalid login rate limit: %g/s burst %d", c.LoginRateLimit, c.LoginRateBurst)
	}

	// Outside development, require an explicitly set, strong JWT secret.
	if c.Environment != "development" {
		if c.JWTSecret == defaultJWTSecret {
			return fmt.Errorf("JWT_SECRET must be explicitly set via environment variable in %q mode", c.Environment)
		}
		if len(c.JWTSecret) < 32 {
			return fmt.Errorf("JWT_SECRET must be at least 32 characters long, got %d", len(c.JWTSecret))
		}
	}
	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET must not be empty")
	}
	return nil
}

// Postgres returns the connection pool settings.
func (c *Config) Postgres() *database.PostgresConfig {
	return &database.PostgresConfig{
		Host:            c.PostgresHost,
		Port:            c.PostgresPort,
		User:            c.PostgresUser,
		Password:        c.PostgresPass,
		DBName:          c.PostgresDB,
		SSLMode:         c.PostgresSSL,
		MaxConns:        c.DBMaxConns,
		MinConns:        c.DBMinConns,
		MaxConnLifetime: c.DBMaxConnLifetime,
		MaxConnIdleTime: c.DBMaxConnIdleTime,
	}
}

// Redis returns the Redis client settings.
func (c *Config) Redis() database.RedisConfig {
	return database.RedisConfig{
		Addr:         c.RedisAddr,
		Password:     c.RedisPassword,
		DB:           c.RedisDB,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  500 * time.Millisecond,
		WriteTimeout: 500 * time.Millisecond,
	}
}
