package api

import (
	"github.com/gin-gonic/gin"

	"github.com/charlesng35/groupdesk/internal/handlers"
	"github.com/charlesng35/groupdesk/internal/notifications"
)

func registerEventRoutes(api *gin.RouterGroup, hub *notifications.Hub) {
	handler := handlers.NewEventsHandler(hub)
	api.GET("/events", handler.Stream)
}
