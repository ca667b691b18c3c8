package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/charlesng35/groupdesk/internal/auditctx"
	iauth "github.com/charlesng35/groupdesk/internal/auth"
	"github.com/charlesng35/groupdesk/pkg/errors"
	"github.com/charlesng35/groupdesk/pkg/response"
)

const (
	CtxClaimsKey    = "authClaims"
	CtxUserIDKey    = "userID"
	CtxUserEmailKey = "userEmail"

	// accessTokenQueryParam carries the token for websocket upgrades, where
	// browsers cannot set an Authorization header.
	accessTokenQueryParam = "access_token"
)

// Auth enforces JWT authentication using the supplied JWT service.
func Auth(jwt *iauth.JWTService) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearerToken(c)
		if !ok {
			c.Header("WWW-Authenticate", "Bearer")
			response.Error(c, errors.ErrUnauthorized)
			c.Abort()
			return
		}

		claims, err := jwt.Verify(token)
		if err != nil {
			// Normalise all validation failures to 401
			c.Header("WWW-Authenticate", "Bearer")
			response.Error(c, errors.ErrUnauthorized)
			c.Abort()
			return
		}

		c.Set(CtxClaimsKey, claims)
		c.Set(CtxUserIDKey, claims.UserID)
		if claims.Email != "" {
			c.Set(CtxUserEmailKey, claims.Email)
		}
		c.Request = c.Request.WithContext(auditctx.WithActor(c.Request.Context(), auditctx.Actor{
			UserID:    claims.UserID,
			Email:     claims.Email,
			IPAddress: c.ClientIP(),
			UserAgent: c.Request.UserAgent(),
		}))

		c.Next()
	}
}

func bearerToken(c *gin.Context) (string, bool) {
	authz := c.GetHeader("Authorization")
	if authz != "" {
		if len(authz) < 8 || !strings.EqualFold(authz[:7], "Bearer ") {
			return "", false
		}
		token := strings.TrimSpace(authz[7:])
		return token, token != ""
	}

	if websocketUpgrade(c) {
		token := strings.TrimSpace(c.Query(accessTokenQueryParam))
		return token, token != ""
	}
	return "", false
}

func websocketUpgrade(c *gin.Context) bool {
	return strings.EqualFold(c.GetHeader("Upgrade"), "websocket")
}
