// Package response writes the JSON envelope every API route answers with:
// {"success": bool, "data": ..., "error": {...}, "meta": {...}}.
package response

import (
	"github.com/gin-gonic/gin"

	appErrors "github.com/charlesng35/groupdesk/pkg/errors"
)

type Response struct {
	Success bool       `json:"success"`
	Data    any        `json:"data,omitempty"`
	Error   *ErrorInfo `json:"error,omitempty"`
	Meta    *Meta      `json:"meta,omitempty"`
}

// ErrorInfo is the client view of an AppError. Code is stable so clients can
// branch on the rejection reason.
type ErrorInfo struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// Meta accompanies list responses.
type Meta struct {
	Total int `json:"total"`
}

func Success(c *gin.Context, statusCode int, data any) {
	c.JSON(statusCode, Response{Success: true, Data: data})
}

// SuccessWithMeta writes a list with its metadata.
func SuccessWithMeta(c *gin.Context, statusCode int, data any, meta *Meta) {
	c.JSON(statusCode, Response{Success: true, Data: data, Meta: meta})
}

// Error renders err. Errors that are not AppErrors become a 500 without
// leaking their text; the cause is kept on the gin context for the logger.
func Error(c *gin.Context, err error) {
	appErr := appErrors.FromError(err)
	if appErr == nil {
		appErr = appErrors.ErrInternalServer
	}
	if appErr.Internal != nil {
		_ = c.Error(appErr.Internal)
	}

	c.JSON(appErr.Status(), Response{
		Success: false,
		Error: &ErrorInfo{
			Code:    appErr.Code,
			Message: appErr.Message,
			Details: appErr.Details,
		},
	})
}

// ErrorWithDetails renders err with details replacing any it already carries.
func ErrorWithDetails(c *gin.Context, err error, details any) {
	if err == nil {
		err = appErrors.ErrInternalServer
	}
	Error(c, appErrors.FromError(err).WithDetails(details))
}
