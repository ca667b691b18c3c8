package api

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/charlesng35/groupdesk/internal/app"
	iauth "github.com/charlesng35/groupdesk/internal/auth"
	"github.com/charlesng35/groupdesk/internal/cache"
	"github.com/charlesng35/groupdesk/internal/database/testutil"
	"github.com/charlesng35/groupdesk/internal/services"
)

func newTestDependencies(t *testing.T, cfg *app.Config) Dependencies {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())

	jwtSvc, err := iauth.NewJWTService(iauth.JWTConfig{Secret: "test-secret", Issuer: "test", AccessTokenTTL: 15 * time.Minute})
	require.NoError(t, err)

	bookings, err := services.NewGroupBookingService(db)
	require.NoError(t, err)

	return Dependencies{DB: db, JWT: jwtSvc, Config: cfg, Bookings: bookings}
}

func TestRouter_PublicAndProtectedRoutes(t *testing.T) {
	router, err := NewRouter(newTestDependencies(t, &app.Config{}))
	require.NoError(t, err)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/health", nil)
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	for _, path := range []string{"/api/group-bookings", "/api/events"} {
		w = httptest.NewRecorder()
		req, _ = http.NewRequest(http.MethodGet, path, nil)
		router.ServeHTTP(w, req)
		require.Equal(t, http.StatusUnauthorized, w.Code, path)
	}

	w = httptest.NewRecorder()
	req, _ = http.NewRequest(http.MethodGet, "/nope", nil)
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestRouter_MetricsEndpoint(t *testing.T) {
	cfg := &app.Config{Monitoring: app.MonitoringConfig{Prometheus: app.PrometheusConfig{Enabled: true}}}
	router, err := NewRouter(newTestDependencies(t, cfg))
	require.NoError(t, err)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/metrics", nil)
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), "groupdesk_booking_lock_timeouts_total")

	disabled, err := NewRouter(newTestDependencies(t, &app.Config{}))
	require.NoError(t, err)
	w = httptest.NewRecorder()
	disabled.ServeHTTP(w, req)
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestRouter_JoinIsRateLimited(t *testing.T) {
	cfg := &app.Config{Booking: app.BookingConfig{JoinRateLimit: app.RateLimitRule{Requests: 2, Window: time.Minute}}}
	deps := newTestDependencies(t, cfg)
	router, err := NewRouter(deps)
	require.NoError(t, err)

	token, err := deps.JWT.Issue(iauth.Identity{UserID: "guesser"})
	require.NoError(t, err)

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		w := httptest.NewRecorder()
		req, _ := http.NewRequest(http.MethodPost, "/api/group-bookings/join", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		router.ServeHTTP(w, req)
		codes = append(codes, w.Code)
	}
	require.Equal(t, []int{http.StatusBadRequest, http.StatusBadRequest, http.StatusTooManyRequests}, codes)
}

func TestNewRouterRequiresDependencies(t *testing.T) {
	_, err := NewRouter(Dependencies{})
	require.Error(t, err)
}

func TestRouter_JoinLimiterUsesSuppliedStore(t *testing.T) {
	cfg := &app.Config{Booking: app.BookingConfig{JoinRateLimit: app.RateLimitRule{Requests: 5, Window: time.Minute}}}
	deps := newTestDependencies(t, cfg)
	counters := cache.NewMemoryStore(nil)
	deps.RateLimits = counters
	router, err := NewRouter(deps)
	require.NoError(t, err)

	token, err := deps.JWT.Issue(iauth.Identity{UserID: "guesser"})
	require.NoError(t, err)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodPost, "/api/group-bookings/join", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	router.ServeHTTP(w, req)
	require.Equal(t, "4", w.Header().Get("X-RateLimit-Remaining"))
	require.Equal(t, 1, counters.Len())
}
