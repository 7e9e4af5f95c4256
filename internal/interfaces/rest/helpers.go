package rest

import (
	"net/http"
	"strconv"
	"strings"
	"sync/atomic"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/bhuvesh-solnce/backend/internal/domain/models"
	"github.com/bhuvesh-solnce/backend/pkg/constants"
	"github.com/bhuvesh-solnce/backend/pkg/errors"
)

const internalErrorMessage = "Internal server error"

var hideInternalErrors atomic.Bool

// HideInternalErrors controls whether 5xx responses carry the underlying
// error message. Production deployments hide it.
func HideInternalErrors(hide bool) {
	hideInternalErrors.Store(hide)
}

// GetCallerFromContext extracts the authenticated caller from gin.Context
func GetCallerFromContext(c *gin.Context) models.Caller {
	value, exists := c.Get(constants.ContextKeyCaller)
	if !exists {
		return models.Caller{}
	}
	caller, _ := value.(models.Caller)
	return caller
}

// RespondAppError sends a standardised JSON error response using pkg/errors.
// Error details such as blocking prerequisites are merged into the body.
func RespondAppError(c *gin.Context, err error) {
	code := errors.GetHTTPStatus(err)
	errorCode := errors.GetErrorCode(err)
	message := err.Error()

	if code >= http.StatusInternalServerError {
		logrus.WithFields(logrus.Fields{
			"status":     code,
			"method":     c.Request.Method,
			"path":       c.Request.URL.Path,
			"request_id": c.GetString(constants.ContextKeyRequestID),
		}).WithError(err).Error("Request failed")
		if hideInternalErrors.Load() {
			message = internalErrorMessage
		}
	}

	body := gin.H{}
	for k, v := range errors.GetDetails(err) {
		body[k] = v
	}
	body[constants.ResponseError] = message
	body[constants.FieldMessage] = message
	body[constants.FieldCode] = errorCode
	body[constants.FieldData] = nil

	c.JSON(code, body)
}

// BindJSON binds JSON and returns true if successful. If failed, it sends bad request error.
func BindJSON(c *gin.Context, obj interface{}) bool {
	if err := c.ShouldBindJSON(obj); err != nil {
		RespondAppError(c, errors.NewValidationError("body", err.Error()))
		return false
	}
	return true
}

// ParseIDParam reads a positive integer path parameter. On failure it
// responds with a validation error and returns false.
func ParseIDParam(c *gin.Context, name string) (int64, bool) {
	raw := strings.TrimSpace(c.Param(name))
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		RespondAppError(c, errors.NewValidationError(name, "must be a positive integer"))
		return 0, false
	}
	return id, true
}
