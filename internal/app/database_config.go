package app

import (
	"strings"

	"github.com/charlesng35/groupdesk/internal/database"
)

// DatabaseSettings converts DatabaseConfig into database.Config. Host credentials
// come from the block matching the selected driver.
func (c DatabaseConfig) DatabaseSettings() database.Config {
	settings := database.Config{
		Driver:             strings.ToLower(strings.TrimSpace(c.Driver)),
		Path:               strings.TrimSpace(c.Path),
		DSN:                strings.TrimSpace(c.DSN),
		MaxOpenConns:       c.MaxOpenConns,
		MaxIdleConns:       c.MaxIdleConns,
		ConnMaxLifetime:    c.ConnMaxLifetime,
		SlowQueryThreshold: c.SlowQueryThreshold,
	}

	var server DBAuthConfig
	switch settings.Driver {
	case "", "sqlite":
		settings.Driver = "sqlite"
		return settings
	case "postgres", "postgresql":
		settings.Driver = "postgres"
		server = c.Postgres
	case "mysql":
		server = c.MySQL
	default:
		// database.Open reports the unsupported driver.
		return settings
	}

	settings.Host = strings.TrimSpace(server.Host)
	settings.Port = server.Port
	settings.Name = strings.TrimSpace(server.Database)
	settings.User = strings.TrimSpace(server.Username)
	settings.Password = server.Password
	settings.Options = server.Options
	return settings
}
