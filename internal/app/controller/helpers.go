package controller

import (
	"github.com/brroMonta/gifting/internal/errors"
	"github.com/brroMonta/gifting/internal/middleware"
	"github.com/gin-gonic/gin"
)

// requireOwner reads the authenticated owner, answering 401 when absent.
func requireOwner(c *gin.Context) (string, bool) {
	ownerID, ok := middleware.GetOwnerID(c)
	if !ok {
		middleware.GetLoggerFromContext(c).Warn("Unauthenticated request", map[string]interface{}{
			"path": c.FullPath(),
		})
		errors.Unauthorized(c, errors.AuthUnauthorized, "")
		return "", false
	}
	return ownerID, true
}

// bindJSON binds the request body, answering 400 on failure.
func bindJSON(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		middleware.GetLoggerFromContext(c).Warn("Invalid request body", map[string]interface{}{
			"path":  c.FullPath(),
			"error": err.Error(),
		})
		errors.BadRequest(c, errors.ValidationInvalidInput, "Invalid request data")
		return false
	}
	return true
}
