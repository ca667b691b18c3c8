package handlers

import (
	"errors"

	"github.com/gin-gonic/gin"

	appErrors "github.com/charlesng35/groupdesk/pkg/errors"
	"github.com/charlesng35/groupdesk/pkg/response"
	appValidator "github.com/charlesng35/groupdesk/pkg/validator"
)

// bindAndValidate decodes the JSON body into dest and checks its validate
// tags, answering 400 itself when either step fails.
func bindAndValidate[T any](c *gin.Context, dest *T) bool {
	if err := c.ShouldBindJSON(dest); err != nil {
		response.Error(c, appErrors.NewBadRequest("invalid JSON payload"))
		return false
	}

	if err := appValidator.ValidateStruct(dest); err != nil {
		response.Error(c, validationFailure(err))
		return false
	}
	return true
}

// validationFailure lists the offending fields in the error details so that
// clients can highlight them.
func validationFailure(err error) *appErrors.AppError {
	var failures appValidator.ValidationErrors
	if !errors.As(err, &failures) || len(failures) == 0 {
		return appErrors.NewBadRequest("invalid request payload")
	}
	return appErrors.NewValidation(failures.Error(), gin.H{"fields": failures.Fields()})
}
