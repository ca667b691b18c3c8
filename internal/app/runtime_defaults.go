package app

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/multierr"
)

const (
	jwtSecretBytes = 48
	// minJWTSecretLen rejects configured HS256 secrets shorter than 256 bits.
	minJWTSecretLen = 32
)

// ApplyRuntimeDefaults fills values that cannot have a static default and
// returns the config keys it generated, sorted. A generated JWT secret only
// verifies tokens issued by this process, which suits local development.
func ApplyRuntimeDefaults(cfg *Config) ([]string, error) {
	if cfg == nil {
		return nil, errors.New("config is nil")
	}

	var generated []string
	if strings.TrimSpace(cfg.Auth.JWT.Secret) == "" {
		buf := make([]byte, jwtSecretBytes)
		if _, err := rand.Read(buf); err != nil {
			return nil, fmt.Errorf("generate jwt secret: %w", err)
		}
		cfg.Auth.JWT.Secret = hex.EncodeToString(buf)
		generated = append(generated, "auth.jwt.secret")
	}
	if strings.TrimSpace(cfg.Notifications.Queue.Name) == "" {
		cfg.Notifications.Queue.Name = "notifications"
	}

	sort.Strings(generated)
	return generated, nil
}

// Validate reports every setting the process cannot start with.
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("config is nil")
	}

	var errs error
	check := func(ok bool, format string, args ...any) {
		if !ok {
			errs = multierr.Append(errs, fmt.Errorf(format, args...))
		}
	}

	check(c.Server.Port > 0 && c.Server.Port < 65536, "server.port %d is out of range", c.Server.Port)
	check(len(c.Auth.JWT.Secret) >= minJWTSecretLen, "auth.jwt.secret must be at least %d characters", minJWTSecretLen)
	check(c.Booking.ParticipantCeiling >= 1, "booking.participant_ceiling must be positive")
	check(c.Booking.InviteTTL > 0, "booking.invite_ttl must be positive")
	check(c.Booking.InviteCodeLength >= 4 && c.Booking.InviteCodeLength <= 16,
		"booking.invite_code_length must be between 4 and 16")

	switch driver := strings.ToLower(strings.TrimSpace(c.Cache.Driver)); driver {
	case "", "memory", "database":
	case "redis":
		check(strings.TrimSpace(c.Cache.Redis.Address) != "", "cache.redis.address is required for the redis driver")
	default:
		check(false, "cache.driver %q is not supported", driver)
	}

	if c.Notifications.Queue.Enabled {
		check(strings.TrimSpace(c.Notifications.Queue.RedisAddress) != "",
			"notifications.queue.redis_address is required when the queue is enabled")
	}
	if c.Notifications.SMTP.Enabled {
		check(strings.TrimSpace(c.Notifications.SMTP.Host) != "", "notifications.smtp.host is required when smtp is enabled")
		check(strings.TrimSpace(c.Notifications.SMTP.From) != "", "notifications.smtp.from is required when smtp is enabled")
	}

	return errs
}
