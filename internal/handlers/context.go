package handlers

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/charlesng35/groupdesk/internal/middleware"
	"github.com/charlesng35/groupdesk/internal/services"
	"github.com/charlesng35/groupdesk/pkg/errors"
	"github.com/charlesng35/groupdesk/pkg/response"
)

// requestContext safely returns the request context with a background fallback for tests.
func requestContext(c *gin.Context) context.Context {
	if c == nil {
		return context.Background()
	}
	if req := c.Request; req != nil {
		return req.Context()
	}
	return context.Background()
}

// actorFromContext returns the verified caller placed by the auth middleware.
// It writes a 401 and returns false when the request carries no identity.
func actorFromContext(c *gin.Context) (services.Actor, bool) {
	userID := c.GetString(middleware.CtxUserIDKey)
	if userID == "" {
		response.Error(c, errors.ErrUnauthorized)
		return services.Actor{}, false
	}
	return services.Actor{
		UserID: userID,
		Email:  c.GetString(middleware.CtxUserEmailKey),
	}, true
}
