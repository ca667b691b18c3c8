// Package testutil opens throwaway databases for package tests.
package testutil

import (
	"regexp"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/charlesng35/groupdesk/internal/database"
)

var unsafeNameChars = regexp.MustCompile(`[^A-Za-z0-9_]+`)

type TestDBOption func(*testDB)

type testDB struct {
	migrate bool
	seeds   []func(*gorm.DB) error
}

// WithAutoMigrate creates the full schema before the database is returned.
func WithAutoMigrate() TestDBOption {
	return func(o *testDB) { o.migrate = true }
}

// WithSeed runs fn after migration. Seeds run in the order given and a
// failing seed fails the test.
func WithSeed(fn func(*gorm.DB) error) TestDBOption {
	return func(o *testDB) { o.seeds = append(o.seeds, fn) }
}

// MustOpenTestDB opens a private in-memory SQLite database named after the
// test, so parallel tests never share rows. It is closed via t.Cleanup.
func MustOpenTestDB(t testing.TB, opts ...TestDBOption) *gorm.DB {
	t.Helper()

	var o testDB
	for _, opt := range opts {
		opt(&o)
	}

	db, err := database.Open(database.Config{Driver: "sqlite", DSN: memoryDSN(t.Name())})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if o.migrate {
		require.NoError(t, database.Prepare(db))
	}
	for _, seed := range o.seeds {
		require.NoError(t, seed(db))
	}
	return db
}

func memoryDSN(testName string) string {
	name := unsafeNameChars.ReplaceAllString(testName, "_")
	if len(name) > 40 {
		name = name[:40]
	}
	return "file:" + name + "_" + uuid.NewString() + "?mode=memory&cache=shared&_foreign_keys=1"
}
