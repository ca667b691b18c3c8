package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/charlesng35/groupdesk/internal/notifications"
	"github.com/charlesng35/groupdesk/pkg/errors"
	"github.com/charlesng35/groupdesk/pkg/response"
)

// EventsHandler upgrades authenticated requests into the booking event stream.
type EventsHandler struct {
	hub *notifications.Hub
}

// NewEventsHandler constructs an EventsHandler.
func NewEventsHandler(hub *notifications.Hub) *EventsHandler {
	return &EventsHandler{hub: hub}
}

// Stream handles GET /api/events.
func (h *EventsHandler) Stream(c *gin.Context) {
	if h.hub == nil {
		response.Error(c, errors.ErrNotFound)
		return
	}

	actor, ok := actorFromContext(c)
	if !ok {
		return
	}

	h.hub.Serve(actor.UserID, c.Writer, c.Request)
}
