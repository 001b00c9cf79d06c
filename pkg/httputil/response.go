package httputil

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/clinic-api/pkg/errors"
)

// Response wraps all API responses
type Response struct {
	Status  string      `json:"status"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
	Error   *Error      `json:"error,omitempty"`
}

// Error represents API error
type Error struct {
	Kind    errors.Kind    `json:"kind"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

// StatusFor maps an error kind onto an HTTP status code.
func StatusFor(kind errors.Kind) int {
	switch kind {
	case errors.KindValidation, errors.KindInvalidDate:
		return http.StatusBadRequest
	case errors.KindUnauthorized:
		return http.StatusUnauthorized
	case errors.KindForbidden:
		return http.StatusForbidden
	case errors.KindNotFound:
		return http.StatusNotFound
	case errors.KindInvalidTransition,
		errors.KindResourceConflict,
		errors.KindSequenceViolation,
		errors.KindNoResourceAvailable,
		errors.KindReferentialIntegrity:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// RespondWithSuccess sends a success response
func RespondWithSuccess(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{Status: "success", Data: data})
}

// RespondWithCreated sends a 201 success response
func RespondWithCreated(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, Response{Status: "success", Data: data})
}

// RespondWithError sends an error response. Storage and internal failures never leak their cause.
func RespondWithError(c *gin.Context, err error) {
	kind := errors.KindOf(err)
	status := StatusFor(kind)

	apiErr := &Error{Kind: kind, Message: "internal server error"}
	if appErr, ok := errors.As(err); ok && kind != errors.KindStorageFailure && kind != errors.KindInternal {
		apiErr.Message = appErr.Message
		apiErr.Details = appErr.Details
	}

	_ = c.Error(err)
	c.AbortWithStatusJSON(status, Response{
		Status:  "error",
		Message: apiErr.Message,
		Error:   apiErr,
	})
}

// RespondWithBadRequest reports a binding or parsing failure.
func RespondWithBadRequest(c *gin.Context, message string) {
	RespondWithError(c, errors.Validation(message))
}
