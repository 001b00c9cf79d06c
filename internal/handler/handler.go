// Package handler holds helpers shared by the HTTP handlers in its subpackages.
package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/clinic-api/internal/middleware"
	"github.com/jwalitptl/clinic-api/internal/model"
	"github.com/jwalitptl/clinic-api/pkg/errors"
	"github.com/jwalitptl/clinic-api/pkg/httputil"
)

// BindJSON decodes the body into req and writes a 400 on failure. It reports
// whether the handler should continue.
func BindJSON(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		appErr := errors.Validation("invalid request body")
		if fields := middleware.ValidationErrors(err); len(fields) > 0 {
			appErr = appErr.With("fields", fields)
		} else {
			appErr = appErr.With("reason", err.Error())
		}
		httputil.RespondWithError(c, appErr)
		return false
	}
	return true
}

// ParseID reads a positive integer path parameter, writing a 400 on failure.
func ParseID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		httputil.RespondWithBadRequest(c, "invalid "+name)
		return 0, false
	}
	return id, true
}

// QueryID reads an optional positive integer query parameter.
func QueryID(c *gin.Context, name string) (*int64, bool) {
	raw := c.Query(name)
	if raw == "" {
		return nil, true
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		httputil.RespondWithBadRequest(c, "invalid "+name)
		return nil, false
	}
	return &id, true
}

// Principal returns the authenticated caller, writing a 401 when absent.
func Principal(c *gin.Context) (*model.Principal, bool) {
	p, ok := middleware.PrincipalFrom(c)
	if !ok {
		httputil.RespondWithError(c, errors.Unauthorized("authentication required"))
		return nil, false
	}
	return p, true
}
