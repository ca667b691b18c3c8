package testutil

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/charlesng35/groupdesk/internal/api"
	"github.com/charlesng35/groupdesk/internal/app"
	iauth "github.com/charlesng35/groupdesk/internal/auth"
	sharedtestutil "github.com/charlesng35/groupdesk/internal/database/testutil"
	"github.com/charlesng35/groupdesk/internal/notifications"
	"github.com/charlesng35/groupdesk/internal/services"
	"github.com/charlesng35/groupdesk/pkg/response"
)

// Env encapsulates a fully-wired API instance backed by an in-memory database for handler tests.
type Env struct {
	T        *testing.T
	DB       *gorm.DB
	Router   *gin.Engine
	JWT      *iauth.JWTService
	Bookings *services.GroupBookingService
	Hub      *notifications.Hub
	Now      time.Time
}

// EnvOption customises the test environment before the router is built.
type EnvOption func(cfg *app.Config)

// NewEnv provisions a fresh handler test environment with migrations applied.
// The booking clock is frozen at Env.Now and can be moved by tests.
func NewEnv(t *testing.T, opts ...EnvOption) *Env {
	t.Helper()

	gin.SetMode(gin.TestMode)

	db := sharedtestutil.MustOpenTestDB(t, sharedtestutil.WithAutoMigrate())

	cfg := &app.Config{
		Auth: app.AuthConfig{
			JWT: app.JWTSettings{
				Secret: "test-suite-super-secret-key-32-bytes!!",
				Issuer: "test-suite",
				TTL:    time.Hour,
			},
		},
		Booking: app.BookingConfig{
			ParticipantCeiling: 50,
			InviteTTL:          72 * time.Hour,
			LockTimeout:        time.Second,
			JoinRateLimit:      app.RateLimitRule{Requests: 100, Window: time.Minute},
		},
	}
	for _, opt := range opts {
		opt(cfg)
	}

	jwtSvc, err := cfg.Auth.TokenService()
	require.NoError(t, err)

	env := &Env{
		T:   t,
		DB:  db,
		JWT: jwtSvc,
		Hub: notifications.NewHub(),
		Now: time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC),
	}

	dispatcher := notifications.NewDispatcher(notifications.WithSinks(env.Hub))
	dispatcher.Start()
	t.Cleanup(dispatcher.Close)

	bookingOpts, err := cfg.Booking.ServiceOptions()
	require.NoError(t, err)
	bookingOpts = append(bookingOpts,
		services.WithClock(func() time.Time { return env.Now }),
		services.WithEventPublisher(dispatcher),
	)

	env.Bookings, err = services.NewGroupBookingService(db, bookingOpts...)
	require.NoError(t, err)

	env.Router, err = api.NewRouter(api.Dependencies{
		DB:       db,
		JWT:      jwtSvc,
		Config:   cfg,
		Bookings: env.Bookings,
		Hub:      env.Hub,
	})
	require.NoError(t, err)

	return env
}

// Token issues an access token for the user.
func (e *Env) Token(userID, email string) string {
	e.T.Helper()
	token, err := e.JWT.Issue(iauth.Identity{UserID: userID, Email: email})
	require.NoError(e.T, err)
	return token
}

// APIResponse represents the canonical API envelope returned by handlers.
type APIResponse struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *ErrorPayload   `json:"error"`
	Meta    *response.Meta  `json:"meta"`
}

// ErrorPayload mirrors response.ErrorInfo with raw details.
type ErrorPayload struct {
	Code    string          `json:"code"`
	Message string          `json:"message"`
	Details json.RawMessage `json:"details"`
}

// DecodeResponse parses the standard API response object from a recorder.
func DecodeResponse(t *testing.T, w *httptest.ResponseRecorder) APIResponse {
	t.Helper()
	var resp APIResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), w.Body.String())
	return resp
}

// DecodeInto unmarshals the data payload into the provided destination.
func DecodeInto[T any](t *testing.T, raw json.RawMessage, dest *T) {
	t.Helper()
	if dest == nil {
		t.Fatal("destination must not be nil")
	}
	require.NoError(t, json.Unmarshal(raw, dest))
}

// Request executes an HTTP request against the test router, applying JSON encoding and auth headers automatically.
func (e *Env) Request(method, path string, body any, token string) *httptest.ResponseRecorder {
	e.T.Helper()

	var buf *bytes.Buffer
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(e.T, err)
		buf = bytes.NewBuffer(data)
	} else {
		buf = bytes.NewBuffer(nil)
	}

	req, err := http.NewRequest(method, path, buf)
	require.NoError(e.T, err)

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	e.Router.ServeHTTP(w, req)
	return w
}
