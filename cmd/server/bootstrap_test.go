package main

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/charlesng35/groupdesk/internal/app"
	iauth "github.com/charlesng35/groupdesk/internal/auth"
	"github.com/charlesng35/groupdesk/internal/cache"
	"github.com/charlesng35/groupdesk/pkg/logger"
)

func testConfig(t *testing.T) *app.Config {
	t.Helper()
	cfg, err := app.LoadConfig(t.TempDir())
	require.NoError(t, err)
	cfg.Database.Path = filepath.Join(t.TempDir(), "groupdesk.sqlite")
	cfg.Auth.JWT.Secret = "bootstrap-test-secret"
	return cfg
}

func TestBootstrapRuntimeServesHealth(t *testing.T) {
	cfg := testConfig(t)
	log := logger.WithModule("bootstrap-test")

	stack, err := bootstrapRuntime(context.Background(), cfg, log)
	require.NoError(t, err)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/health", nil)
	stack.Router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	stack.Shutdown(ctx, log)
	// A second shutdown is a no-op.
	stack.Shutdown(ctx, log)
}

func TestBootstrapRuntimeRejectsBadSchedule(t *testing.T) {
	cfg := testConfig(t)
	cfg.Maintenance.ExpireSchedule = "every now and then"

	_, err := bootstrapRuntime(context.Background(), cfg, logger.WithModule("bootstrap-test"))
	require.Error(t, err)
	require.Contains(t, err.Error(), "start maintenance jobs")
}

func TestBootstrapRuntimeUsesDatabaseRateLimits(t *testing.T) {
	cfg := testConfig(t)
	cfg.Cache.Driver = "database"
	log := logger.WithModule("bootstrap-test")

	stack, err := bootstrapRuntime(context.Background(), cfg, log)
	require.NoError(t, err)
	require.IsType(t, &cache.DatabaseStore{}, stack.RateLimits)
	stack.Shutdown(context.Background(), log)
	require.Nil(t, stack.RateLimits)
}

func TestBootstrapRuntimeRejectsUnknownCacheDriver(t *testing.T) {
	cfg := testConfig(t)
	cfg.Cache.Driver = "memcached"

	_, err := bootstrapRuntime(context.Background(), cfg, logger.WithModule("bootstrap-test"))
	require.ErrorContains(t, err, "rate limit store")
}

func TestLoadApplicationConfigMissingPath(t *testing.T) {
	_, err := loadApplicationConfig(filepath.Join(t.TempDir(), "missing"))
	require.Error(t, err)
}

func TestIssueTokenRequiresSecret(t *testing.T) {
	var out bytes.Buffer
	require.ErrorIs(t, issueToken(&app.Config{}, "user-1", "", &out), iauth.ErrMissingSecret)
	require.Zero(t, out.Len())

	cfg := testConfig(t)
	require.NoError(t, issueToken(cfg, "user-1", "User@Example.com", &out))

	tokens, err := cfg.Auth.TokenService()
	require.NoError(t, err)
	claims, err := tokens.Verify(strings.TrimSpace(out.String()))
	require.NoError(t, err)
	require.Equal(t, "user-1", claims.UserID)
	require.Equal(t, "user@example.com", claims.Email)
}
