package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

// Config aggregates all runtime settings required by the application.
type Config struct {
	AppName     string
	Environment string
	HTTP        HTTPConfig
	Database    DatabaseConfig
	Redis       RedisConfig
	JWT         JWTConfig
	Storage     StorageConfig
	Aggregation AggregationConfig
	Digest      DigestConfig
	Sink        SinkConfig
	Context     ContextConfig
	Logger      LoggerConfig
	Migrations  MigrationsConfig
}

type HTTPConfig struct {
	Host          string
	Port          string
	ReadTimeout   time.Duration
	WriteTimeout  time.Duration
	IdleTimeout   time.Duration
	MaxConn       int
	EnableMetrics bool
}

type DatabaseConfig struct {
	URL             string
	Host            string
	Port            string
	Name            string
	User            string
	Password        string
	MaxOpenConns    int
	MaxIdleConns    int
	MaxConnLifetime time.Duration
	SSLMode         string
}

type RedisConfig struct {
	URL            string
	Password       string
	DB             int
	PreferencesTTL time.Duration
}

type JWTConfig struct {
	Secret string
	Issuer string
}

// StorageConfig picks the backends behind the preferences and digest stores.
type StorageConfig struct {
	PreferencesBackend string `validate:"oneof=memory redis postgres"`
	DigestBackend      string `validate:"oneof=memory bolt"`
	BoltPath           string `validate:"required_if=DigestBackend bolt"`
	BoltBucket         string
}

type AggregationConfig struct {
	RulesPath        string
	DefaultFrequency string `validate:"oneof=instant hourly daily weekly"`
	FlushTimeout     time.Duration
}

type DigestConfig struct {
	HourlySchedule string `validate:"required"`
	DailyTime      string `validate:"required"`
	WeeklyDay      int    `validate:"gte=0,lte=6"`
	WeeklyTime     string `validate:"required"`
	Timezone       string
	Concurrency    int `validate:"gt=0"`
	RunTimeout     time.Duration
	MaxItems       int `validate:"gt=0"`
}

type SinkConfig struct {
	Kind             string `validate:"oneof=log webhook"`
	WebhookURL       string `validate:"required_if=Kind webhook,omitempty,url"`
	Timeout          time.Duration
	BreakerFailures  int `validate:"gt=0"`
	BreakerOpenFor   time.Duration
	BreakerHalfOpen  int `validate:"gt=0"`
	BreakerResetTime time.Duration
}

type ContextConfig struct {
	RequestTimeout  time.Duration
	ShutdownTimeout time.Duration
}

type LoggerConfig struct {
	Level    string
	Encoding string
}

type MigrationsConfig struct {
	Enabled bool
	Path    string
}

// Load reads configuration from environment variables (optionally .env)
// and applies sane defaults so the service can boot in any environment.
func Load() (*Config, error) {
	_ = godotenv.Load(".env")

	cfg := &Config{
		AppName:     getString("APP_NAME", "notifyagg"),
		Environment: getString("APP_ENV", "development"),
		HTTP: HTTPConfig{
			Host:          getString("SERVER_HOST", "0.0.0.0"),
			Port:          getString("SERVER_PORT", "8080"),
			ReadTimeout:   getDuration("SERVER_READ_TIMEOUT", 10*time.Second),
			WriteTimeout:  getDuration("SERVER_WRITE_TIMEOUT", 10*time.Second),
			IdleTimeout:   getDuration("SERVER_IDLE_TIMEOUT", 120*time.Second),
			MaxConn:       getInt("SERVER_MAX_CONN", 0),
			EnableMetrics: getBool("SERVER_ENABLE_METRICS", true),
		},
		Database: DatabaseConfig{
			URL:             os.Getenv("DATABASE_URL"),
			Host:            getString("DB_HOST", "localhost"),
			Port:            getString("DB_PORT", "5432"),
			Name:            getString("DB_NAME", "notifyagg"),
			User:            getString("DB_USER", "notifyagg"),
			Password:        os.Getenv("DB_PASSWORD"),
			MaxOpenConns:    getInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    getInt("DB_MAX_IDLE_CONNS", 10),
			MaxConnLifetime: getDuration("DB_CONN_LIFETIME", time.Hour),
			SSLMode:         getString("DB_SSLMODE", "disable"),
		},
		Redis: RedisConfig{
			URL:            getString("REDIS_URL", "redis://localhost:6379"),
			Password:       os.Getenv("REDIS_PASSWORD"),
			DB:             getInt("REDIS_DB", 0),
			PreferencesTTL: getDuration("REDIS_PREFERENCES_TTL", 0),
		},
		JWT: JWTConfig{
			Secret: os.Getenv("JWT_SECRET"),
			Issuer: getString("JWT_ISSUER", "notifyagg"),
		},
		Storage: StorageConfig{
			PreferencesBackend: getString("PREFERENCES_BACKEND", "memory"),
			DigestBackend:      getString("DIGEST_BACKEND", "memory"),
			BoltPath:           getString("BOLTDB_PATH", "./data/digests.db"),
			BoltBucket:         getString("BOLTDB_BUCKET", "digests"),
		},
		Aggregation: AggregationConfig{
			RulesPath:        os.Getenv("RULES_PATH"),
			DefaultFrequency: getString("DEFAULT_FREQUENCY", "hourly"),
			FlushTimeout:     getDuration("FLUSH_TIMEOUT", 30*time.Second),
		},
		Digest: DigestConfig{
			HourlySchedule: getString("DIGEST_HOURLY_SCHEDULE", "0 0 * * * *"),
			DailyTime:      getString("DIGEST_DAILY_TIME", "09:00"),
			WeeklyDay:      getInt("DIGEST_WEEKLY_DAY", int(time.Monday)),
			WeeklyTime:     getString("DIGEST_WEEKLY_TIME", "09:00"),
			Timezone:       getString("DIGEST_TIMEZONE", "UTC"),
			Concurrency:    getInt("DIGEST_CONCURRENCY", 8),
			RunTimeout:     getDuration("DIGEST_RUN_TIMEOUT", 5*time.Minute),
			MaxItems:       getInt("DIGEST_MAX_ITEMS", 5),
		},
		Sink: SinkConfig{
			Kind:             getString("SINK_KIND", "log"),
			WebhookURL:       os.Getenv("SINK_WEBHOOK_URL"),
			Timeout:          getDuration("SINK_TIMEOUT", 5*time.Second),
			BreakerFailures:  getInt("SINK_BREAKER_FAILURES", 5),
			BreakerOpenFor:   getDuration("SINK_BREAKER_OPEN_FOR", 30*time.Second),
			BreakerHalfOpen:  getInt("SINK_BREAKER_HALF_OPEN_REQUESTS", 1),
			BreakerResetTime: getDuration("SINK_BREAKER_INTERVAL", time.Minute),
		},
		Context: ContextConfig{
			RequestTimeout:  getDuration("REQUEST_TIMEOUT_SECONDS", 5*time.Second),
			ShutdownTimeout: getDuration("SHUTDOWN_TIMEOUT_SECONDS", 15*time.Second),
		},
		Logger: LoggerConfig{
			Level:    getString("LOG_LEVEL", "info"),
			Encoding: getString("LOG_ENCODING", "json"),
		},
		Migrations: MigrationsConfig{
			Enabled: getBool("RUN_MIGRATIONS", false),
			Path:    getString("MIGRATIONS_PATH", "./assets/migrations"),
		},
	}

	if cfg.Database.URL == "" {
		cfg.Database.URL = buildPostgresURL(cfg)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks enumerations and cross-field requirements.
func (c *Config) Validate() error {
	v := validator.New()
	for name, section := range map[string]any{
		"storage":     c.Storage,
		"aggregation": c.Aggregation,
		"digest":      c.Digest,
		"sink":        c.Sink,
	} {
		if err := v.Struct(section); err != nil {
			return fmt.Errorf("config %s: %w", name, err)
		}
	}
	if _, err := c.Location(); err != nil {
		return fmt.Errorf("config digest: %w", err)
	}
	return nil
}

// Location resolves the digest timezone.
func (c *Config) Location() (*time.Location, error) {
	if c.Digest.Timezone == "" {
		return time.UTC, nil
	}
	return time.LoadLocation(c.Digest.Timezone)
}

// MustLoad panics if configuration cannot be loaded.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

func buildPostgresURL(cfg *Config) string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
		cfg.Database.User,
		cfg.Database.Password,
		cfg.Database.Host,
		cfg.Database.Port,
		cfg.Database.Name,
		cfg.Database.SSLMode,
	)
}

func getString(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil {
			return parsed
		}
	}
	return fallback
}

func getBool(key string, fallback bool) bool {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.ParseBool(val); err == nil {
			return parsed
		}
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if parsed, err := time.ParseDuration(val); err == nil {
			return parsed
		}
		if seconds, err := strconv.Atoi(val); err == nil {
			return time.Duration(seconds) * time.Second
		}
	}
	return fallback
}

// Address returns the HTTP listen address for the fasthttp server.
func (c *Config) Address() string {
	return fmt.Sprintf("%s:%s", c.HTTP.Host, c.HTTP.Port)
}
