package app

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/charlesng35/groupdesk/internal/auth"
)

func TestLoadConfigFromFile(t *testing.T) {
	path := filepath.Join("testdata")
	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	require.Equal(t, 9090, cfg.Server.Port)
	require.Equal(t, "debug", cfg.Server.LogLevel)

	require.Equal(t, "postgres", cfg.Database.Driver)
	require.Equal(t, "db.example.com", cfg.Database.Postgres.Host)
	require.Equal(t, 6432, cfg.Database.Postgres.Port)
	require.Equal(t, "require", cfg.Database.Postgres.Options["sslmode"])

	require.Equal(t, "jwt-secret", cfg.Auth.JWT.Secret)
	require.Equal(t, "example-idp", cfg.Auth.JWT.Issuer)
	require.Equal(t, 30*time.Minute, cfg.Auth.JWT.TTL)

	require.Equal(t, 25, cfg.Booking.ParticipantCeiling)
	require.Equal(t, 72*time.Hour, cfg.Booking.InviteTTL)
	require.Equal(t, 10, cfg.Booking.InviteCodeLength)
	require.Equal(t, 10, cfg.Booking.InviteCodeAttempts)
	require.Equal(t, 2*time.Second, cfg.Booking.LockTimeout)
	require.Equal(t, 24*time.Hour, cfg.Booking.ReminderWindow)
	require.Equal(t, "Europe/Berlin", cfg.Booking.Timezone)
	require.Equal(t, RateLimitRule{Requests: 5, Window: 30 * time.Second}, cfg.Booking.JoinRateLimit)

	require.Equal(t, "@every 1m", cfg.Maintenance.ExpireSchedule)
	require.Equal(t, "@every 5m", cfg.Maintenance.CompleteSchedule)
	require.Equal(t, "0 */2 * * *", cfg.Maintenance.ReminderSchedule)

	require.Equal(t, 4, cfg.Notifications.Workers)
	require.Equal(t, 256, cfg.Notifications.Buffer)
	require.True(t, cfg.Notifications.Queue.Enabled)
	require.Equal(t, "redis:6379", cfg.Notifications.Queue.RedisAddress)
	require.Equal(t, "mail", cfg.Notifications.Queue.Name)

	require.Equal(t, "redis", cfg.Cache.Driver)
	require.Equal(t, "redis:6379", cfg.Cache.Redis.Address)
	require.Equal(t, 1, cfg.Cache.Redis.DB)
	require.Equal(t, 5*time.Second, cfg.Cache.Redis.Timeout)

	require.True(t, cfg.Monitoring.Prometheus.Enabled)
}

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig(t.TempDir())
	require.NoError(t, err)

	require.Equal(t, 8000, cfg.Server.Port)
	require.Equal(t, "sqlite", cfg.Database.Driver)
	require.Equal(t, "./data/groupdesk.sqlite", cfg.Database.Path)
	require.Equal(t, 10, cfg.Database.MaxOpenConns)
	require.Equal(t, 200*time.Millisecond, cfg.Database.SlowQueryThreshold)
	require.Equal(t, 50, cfg.Booking.ParticipantCeiling)
	require.Equal(t, 168*time.Hour, cfg.Booking.InviteTTL)
	require.Equal(t, 5*time.Second, cfg.Booking.LockTimeout)
	require.Equal(t, RateLimitRule{Requests: 10, Window: time.Minute}, cfg.Booking.JoinRateLimit)
	require.False(t, cfg.Notifications.Queue.Enabled)
	require.Equal(t, "memory", cfg.Cache.Driver)
	require.Equal(t, 30*time.Second, cfg.Auth.JWT.Leeway)
	require.Empty(t, cfg.Auth.JWT.Audience)
}

func TestLoadConfigEnvironmentOverride(t *testing.T) {
	t.Setenv("GROUPDESK_BOOKING_PARTICIPANT_CEILING", "12")
	t.Setenv("GROUPDESK_SERVER_PORT", "7070")

	cfg, err := LoadConfig(t.TempDir())
	require.NoError(t, err)

	require.Equal(t, 12, cfg.Booking.ParticipantCeiling)
	require.Equal(t, 7070, cfg.Server.Port)
}

func TestAuthConfigAdapters(t *testing.T) {
	cfg := AuthConfig{
		JWT: JWTSettings{
			Secret:   "secret",
			Issuer:   " issuer ",
			Audience: "bookings",
			TTL:      30 * time.Minute,
			Leeway:   -time.Second,
		},
	}

	require.Equal(t, auth.JWTConfig{
		Secret:         "secret",
		Issuer:         "issuer",
		Audience:       "bookings",
		AccessTokenTTL: 30 * time.Minute,
	}, cfg.JWTServiceConfig())

	var empty AuthConfig
	require.Equal(t, auth.DefaultAccessTokenTTL, empty.JWTServiceConfig().AccessTokenTTL)

	_, err := empty.TokenService()
	require.ErrorIs(t, err, auth.ErrMissingSecret)

	svc, err := cfg.TokenService()
	require.NoError(t, err)
	require.NotNil(t, svc)
}

func TestDatabaseSettings(t *testing.T) {
	cfg := DatabaseConfig{
		Driver:             " PostgreSQL ",
		Path:               "./ignored.sqlite",
		MaxOpenConns:       12,
		SlowQueryThreshold: time.Second,
		Postgres: DBAuthConfig{
			Host:     " db ",
			Port:     5432,
			Database: "bookings",
			Username: "booker",
			Password: "pw",
			Options:  map[string]string{"sslmode": "require"},
		},
	}

	settings := cfg.DatabaseSettings()
	require.Equal(t, "postgres", settings.Driver)
	require.Equal(t, "db", settings.Host)
	require.Equal(t, 5432, settings.Port)
	require.Equal(t, "bookings", settings.Name)
	require.Equal(t, "booker", settings.User)
	require.Equal(t, "require", settings.Options["sslmode"])
	require.Equal(t, 12, settings.MaxOpenConns)
	require.Equal(t, time.Second, settings.SlowQueryThreshold)

	sqlite := DatabaseConfig{Path: "./data/test.sqlite"}.DatabaseSettings()
	require.Equal(t, "sqlite", sqlite.Driver)
	require.Equal(t, "./data/test.sqlite", sqlite.Path)
	require.Empty(t, sqlite.Host)

	unknown := DatabaseConfig{Driver: "oracle"}.DatabaseSettings()
	require.Equal(t, "oracle", unknown.Driver)
}

func TestBookingServiceOptions(t *testing.T) {
	opts, err := BookingConfig{
		ParticipantCeiling: 20,
		InviteTTL:          time.Hour,
		LockTimeout:        time.Second,
		Timezone:           "UTC",
	}.ServiceOptions()
	require.NoError(t, err)
	require.Len(t, opts, 5)

	_, err = BookingConfig{Timezone: "Mars/Olympus"}.ServiceOptions()
	require.Error(t, err)

	loc, err := BookingConfig{}.Location()
	require.NoError(t, err)
	require.Equal(t, time.UTC, loc)
}
