package api

import (
	"github.com/gin-gonic/gin"

	"github.com/charlesng35/groupdesk/internal/handlers"
	"github.com/charlesng35/groupdesk/internal/services"
)

func registerInvitationRoutes(api *gin.RouterGroup, svc *services.GroupBookingService) {
	handler := handlers.NewInvitationHandler(svc)

	api.POST("/group-bookings/:id/invitations", handler.Invite)
	api.GET("/group-bookings/:id/invitations", handler.List)

	invitations := api.Group("/invitations")
	{
		invitations.POST("/:id/respond", handler.Respond)
		invitations.POST("/:id/remind", handler.Remind)
		invitations.DELETE("/:id", handler.Cancel)
	}
}
