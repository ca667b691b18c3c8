package app

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

// Config represents the runtime configuration for the GroupDesk backend.
type Config struct {
	Server        ServerConfig        `mapstructure:"server"`
	Database      DatabaseConfig      `mapstructure:"database"`
	Auth          AuthConfig          `mapstructure:"auth"`
	Booking       BookingConfig       `mapstructure:"booking"`
	Maintenance   MaintenanceConfig   `mapstructure:"maintenance"`
	Notifications NotificationsConfig `mapstructure:"notifications"`
	Cache         CacheConfig         `mapstructure:"cache"`
	Monitoring    MonitoringConfig    `mapstructure:"monitoring"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Port      int    `mapstructure:"port"`
	LogLevel  string `mapstructure:"log_level"`
	LogFormat string `mapstructure:"log_format"`
	HSTS      bool   `mapstructure:"hsts"`
}

// DatabaseConfig describes connection options for the supported databases.
type DatabaseConfig struct {
	Driver   string       `mapstructure:"driver"`
	Path     string       `mapstructure:"path"`
	DSN      string       `mapstructure:"dsn"`
	Postgres DBAuthConfig `mapstructure:"postgres"`
	MySQL    DBAuthConfig `mapstructure:"mysql"`

	MaxOpenConns       int           `mapstructure:"max_open_conns"`
	MaxIdleConns       int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime    time.Duration `mapstructure:"conn_max_lifetime"`
	SlowQueryThreshold time.Duration `mapstructure:"slow_query_threshold"`
}

// DBAuthConfig represents host based database parameters.
type DBAuthConfig struct {
	Host     string            `mapstructure:"host"`
	Port     int               `mapstructure:"port"`
	Database string            `mapstructure:"database"`
	Username string            `mapstructure:"username"`
	Password string            `mapstructure:"password"`
	Options  map[string]string `mapstructure:"options"`
}

// AuthConfig captures token verification settings. Identities are issued elsewhere.
type AuthConfig struct {
	JWT JWTSettings `mapstructure:"jwt"`
}

// JWTSettings configures JWT access tokens.
type JWTSettings struct {
	Secret   string        `mapstructure:"secret"`
	Issuer   string        `mapstructure:"issuer"`
	Audience string        `mapstructure:"audience"`
	TTL      time.Duration `mapstructure:"access_token_ttl"`
	Leeway   time.Duration `mapstructure:"leeway"`
}

// BookingConfig tunes the coordination engine.
type BookingConfig struct {
	ParticipantCeiling int           `mapstructure:"participant_ceiling"`
	InviteTTL          time.Duration `mapstructure:"invite_ttl"`
	InviteCodeLength   int           `mapstructure:"invite_code_length"`
	InviteCodeAttempts int           `mapstructure:"invite_code_attempts"`
	LockTimeout        time.Duration `mapstructure:"lock_timeout"`
	ReminderWindow     time.Duration `mapstructure:"reminder_window"`
	Timezone           string        `mapstructure:"timezone"`
	JoinRateLimit      RateLimitRule `mapstructure:"join_rate_limit"`
}

// RateLimitRule bounds requests per key inside a fixed window.
type RateLimitRule struct {
	Requests int           `mapstructure:"requests"`
	Window   time.Duration `mapstructure:"window"`
}

// MaintenanceConfig holds cron expressions for background sweeps. "-" disables a job.
type MaintenanceConfig struct {
	ExpireSchedule   string `mapstructure:"expire_schedule"`
	CompleteSchedule string `mapstructure:"complete_schedule"`
	ReminderSchedule string `mapstructure:"reminder_schedule"`
	PurgeSchedule    string `mapstructure:"purge_schedule"`
}

// NotificationsConfig controls post-commit event delivery.
type NotificationsConfig struct {
	Workers         int           `mapstructure:"workers"`
	Buffer          int           `mapstructure:"buffer"`
	DeliveryTimeout time.Duration `mapstructure:"delivery_timeout"`
	Queue           QueueConfig   `mapstructure:"queue"`
	SMTP            SMTPConfig    `mapstructure:"smtp"`
}

// QueueConfig configures the asynq hand-off used by the mail worker.
type QueueConfig struct {
	Enabled      bool   `mapstructure:"enabled"`
	RedisAddress string `mapstructure:"redis_address"`
	RedisDB      int    `mapstructure:"redis_db"`
	Password     string `mapstructure:"password"`
	Name         string `mapstructure:"name"`
}

// SMTPConfig configures outbound mail for the queue worker.
type SMTPConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Host     string        `mapstructure:"host"`
	Port     int           `mapstructure:"port"`
	Username string        `mapstructure:"username"`
	Password string        `mapstructure:"password"`
	From     string        `mapstructure:"from"`
	UseTLS   bool          `mapstructure:"use_tls"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// CacheConfig selects where rate limit counters are kept: memory, database or redis.
type CacheConfig struct {
	Driver string      `mapstructure:"driver"`
	Redis  RedisConfig `mapstructure:"redis"`
}

// RedisConfig configures the Redis counter store.
type RedisConfig struct {
	Address  string        `mapstructure:"address"`
	Username string        `mapstructure:"username"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	TLS      bool          `mapstructure:"tls"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// MonitoringConfig enables metrics.
type MonitoringConfig struct {
	Prometheus PrometheusConfig `mapstructure:"prometheus"`
}

// PrometheusConfig toggles metrics endpoints.
type PrometheusConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Endpoint string `mapstructure:"endpoint"`
}

// LoadConfig initialises application configuration using Viper with sensible defaults.
func LoadConfig(paths ...string) (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	v.AddConfigPath("./config")
	for _, path := range paths {
		v.AddConfigPath(path)
	}

	setDefaults(v)

	v.SetEnvPrefix("GROUPDESK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var cfgErr viper.ConfigFileNotFoundError
		if !errors.As(err, &cfgErr) {
			return nil, fmt.Errorf("config: read file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config, decodeHook()); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}

	return &config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8000)
	v.SetDefault("server.log_level", "info")
	v.SetDefault("server.log_format", "json")
	v.SetDefault("server.hsts", false)

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.path", "./data/groupdesk.sqlite")
	v.SetDefault("database.dsn", "")
	v.SetDefault("database.postgres.host", "localhost")
	v.SetDefault("database.postgres.port", 5432)
	v.SetDefault("database.postgres.database", "groupdesk")
	v.SetDefault("database.postgres.username", "groupdesk")
	v.SetDefault("database.postgres.password", "")
	v.SetDefault("database.mysql.host", "127.0.0.1")
	v.SetDefault("database.mysql.port", 3306)
	v.SetDefault("database.mysql.database", "groupdesk")
	v.SetDefault("database.mysql.username", "groupdesk")
	v.SetDefault("database.mysql.password", "")
	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", "30m")
	v.SetDefault("database.slow_query_threshold", "200ms")

	v.SetDefault("auth.jwt.secret", "")
	v.SetDefault("auth.jwt.issuer", "groupdesk")
	v.SetDefault("auth.jwt.audience", "")
	v.SetDefault("auth.jwt.access_token_ttl", "15m")
	v.SetDefault("auth.jwt.leeway", "30s")

	v.SetDefault("booking.participant_ceiling", 50)
	v.SetDefault("booking.invite_ttl", "168h")
	v.SetDefault("booking.invite_code_length", 8)
	v.SetDefault("booking.invite_code_attempts", 10)
	v.SetDefault("booking.lock_timeout", "5s")
	v.SetDefault("booking.reminder_window", "24h")
	v.SetDefault("booking.timezone", "UTC")
	v.SetDefault("booking.join_rate_limit.requests", 10)
	v.SetDefault("booking.join_rate_limit.window", "1m")

	v.SetDefault("maintenance.expire_schedule", "@every 1m")
	v.SetDefault("maintenance.complete_schedule", "@every 5m")
	v.SetDefault("maintenance.reminder_schedule", "@hourly")
	v.SetDefault("maintenance.purge_schedule", "@every 10m")

	v.SetDefault("notifications.workers", 2)
	v.SetDefault("notifications.buffer", 256)
	v.SetDefault("notifications.delivery_timeout", "5s")
	v.SetDefault("notifications.queue.enabled", false)
	v.SetDefault("notifications.queue.redis_address", "127.0.0.1:6379")
	v.SetDefault("notifications.queue.redis_db", 0)
	v.SetDefault("notifications.queue.password", "")
	v.SetDefault("notifications.queue.name", "notifications")
	v.SetDefault("notifications.smtp.enabled", false)
	v.SetDefault("notifications.smtp.port", 587)
	v.SetDefault("notifications.smtp.from", "")
	v.SetDefault("notifications.smtp.use_tls", false)
	v.SetDefault("notifications.smtp.timeout", "10s")

	v.SetDefault("cache.driver", "memory")
	v.SetDefault("cache.redis.address", "127.0.0.1:6379")
	v.SetDefault("cache.redis.db", 0)
	v.SetDefault("cache.redis.timeout", "5s")

	v.SetDefault("monitoring.prometheus.enabled", true)
	v.SetDefault("monitoring.prometheus.endpoint", "/metrics")
}

func decodeHook() viper.DecoderConfigOption {
	return func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}
}
