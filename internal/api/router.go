package api

import (
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"

	"github.com/charlesng35/groupdesk/internal/app"
	iauth "github.com/charlesng35/groupdesk/internal/auth"
	"github.com/charlesng35/groupdesk/internal/cache"
	"github.com/charlesng35/groupdesk/internal/handlers"
	"github.com/charlesng35/groupdesk/internal/middleware"
	"github.com/charlesng35/groupdesk/internal/notifications"
	"github.com/charlesng35/groupdesk/internal/services"
)

// Dependencies bundles the long-lived collaborators the router wires into handlers.
type Dependencies struct {
	DB       *gorm.DB
	JWT      *iauth.JWTService
	Config   *app.Config
	Bookings *services.GroupBookingService
	// Hub is optional; without it the event stream answers 404.
	Hub *notifications.Hub
	// RateLimits holds join limiter counters; nil keeps them in memory.
	RateLimits cache.Store
}

// NewRouter builds the Gin engine, wires middleware and registers routes.
func NewRouter(deps Dependencies) (*gin.Engine, error) {
	if deps.DB == nil {
		return nil, fmt.Errorf("database handle must be provided")
	}
	if deps.JWT == nil {
		return nil, fmt.Errorf("jwt service must be provided")
	}
	if deps.Config == nil {
		return nil, fmt.Errorf("config must be provided")
	}
	if deps.Bookings == nil {
		return nil, fmt.Errorf("booking service must be provided")
	}
	cfg := deps.Config

	r := gin.New()

	// Global middleware
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger())
	r.Use(middleware.Recovery())
	r.Use(middleware.Metrics())
	r.Use(middleware.SecurityHeaders(cfg.Server.HSTS))

	// Health endpoint (public)
	r.GET("/health", handlers.Health(deps.DB))

	if cfg.Monitoring.Prometheus.Enabled {
		endpoint := cfg.Monitoring.Prometheus.Endpoint
		if endpoint == "" {
			endpoint = "/metrics"
		}
		r.GET(endpoint, gin.WrapH(promhttp.Handler()))
	}

	api := r.Group("/api")
	api.Use(middleware.Auth(deps.JWT))

	registerGroupBookingRoutes(api, deps.Bookings, cfg.Booking.JoinRateLimit, deps.RateLimits)
	registerInvitationRoutes(api, deps.Bookings)
	registerEventRoutes(api, deps.Hub)

	// NotFound fallback
	r.NoRoute(middleware.NotFoundHandler)

	return r, nil
}
