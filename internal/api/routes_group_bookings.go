package api

import (
	"github.com/gin-gonic/gin"

	"github.com/charlesng35/groupdesk/internal/app"
	"github.com/charlesng35/groupdesk/internal/cache"
	"github.com/charlesng35/groupdesk/internal/handlers"
	"github.com/charlesng35/groupdesk/internal/middleware"
	"github.com/charlesng35/groupdesk/internal/services"
)

func registerGroupBookingRoutes(api *gin.RouterGroup, svc *services.GroupBookingService, joinLimit app.RateLimitRule, counters cache.Store) {
	handler := handlers.NewGroupBookingHandler(svc)

	// A zero rule disables the limiter.
	joinLimiter := middleware.RateLimit(joinLimit.Requests, joinLimit.Window, middleware.ByUser, counters)

	bookings := api.Group("/group-bookings")
	{
		bookings.POST("", handler.Create)
		bookings.GET("", handler.List)
		bookings.POST("/join", joinLimiter, handler.Join)
		bookings.GET("/:id", handler.Get)
		bookings.GET("/:id/stats", handler.Stats)
		bookings.POST("/:id/cancel", handler.Cancel)
		bookings.POST("/:id/leave", handler.Leave)
		bookings.POST("/:id/participants/:userID/approve", handler.Approve)
		bookings.POST("/:id/participants/:userID/reject", handler.Reject)
		bookings.DELETE("/:id/participants/:userID", handler.RemoveParticipant)
	}
}
