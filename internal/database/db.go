package database

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"gorm.io/gorm"
)

// Config contains database connection options.
type Config struct {
	Driver   string
	Path     string // SQLite database path when Driver == sqlite
	DSN      string // Optional DSN override
	Host     string
	Port     int
	Name     string
	User     string
	Password string
	Options  map[string]string

	// Pool tuning; zero keeps database/sql defaults. SQLite always uses one connection.
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	// SlowQueryThreshold logs statements slower than this; zero disables the warning.
	SlowQueryThreshold time.Duration
}

// Open initialises a gorm.DB using the provided configuration.
func Open(cfg Config) (*gorm.DB, error) {
	driver := normaliseDriver(cfg.Driver)

	var (
		dialector gorm.Dialector
		err       error
	)
	switch driver {
	case "sqlite":
		dialector, err = sqliteDialector(cfg)
	case "postgres":
		dialector, err = postgresDialector(cfg)
	case "mysql":
		dialector, err = mysqlDialector(cfg)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
	if err != nil {
		return nil, err
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:  newQueryLogger(cfg.SlowQueryThreshold),
		NowFunc: func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driver, err)
	}

	if err := configurePool(db, driver, cfg); err != nil {
		return nil, err
	}
	return db, nil
}

// Prepare runs schema migration on a freshly opened handle.
func Prepare(db *gorm.DB) error {
	if db == nil {
		return errors.New("nil database handle")
	}

	if err := AutoMigrate(db); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	return nil
}

func normaliseDriver(driver string) string {
	switch driver = strings.ToLower(strings.TrimSpace(driver)); driver {
	case "":
		return "sqlite"
	case "postgresql":
		return "postgres"
	default:
		return driver
	}
}

func configurePool(db *gorm.DB, driver string, cfg Config) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}

	if driver == "sqlite" {
		// One writer at a time; a single connection avoids SQLITE_BUSY inside
		// booking transactions.
		sqlDB.SetMaxOpenConns(1)
		return enableForeignKeys(sqlDB)
	}

	if cfg.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}
	return nil
}

// encodeOptions merges overrides into defaults and renders key=value pairs in
// key order so DSNs are stable.
func encodeOptions(defaults, overrides map[string]string) []string {
	merged := make(map[string]string, len(defaults)+len(overrides))
	for key, value := range defaults {
		merged[key] = value
	}
	for key, value := range overrides {
		merged[key] = value
	}

	keys := make([]string, 0, len(merged))
	for key := range merged {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(keys))
	for _, key := range keys {
		pairs = append(pairs, key+"="+merged[key])
	}
	return pairs
}

func requireCredentials(driver string, cfg Config) error {
	if strings.TrimSpace(cfg.User) == "" || strings.TrimSpace(cfg.Name) == "" {
		return fmt.Errorf("%s configuration requires user and database name", driver)
	}
	return nil
}
