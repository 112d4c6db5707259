package controllers

import (
	"net/http"

	"github.com/fieldops/backend/internal/middleware"
	"github.com/fieldops/backend/internal/services"
	"github.com/gin-gonic/gin"
)

// currentActor reads the authenticated caller from the gin context.
func currentActor(c *gin.Context) (services.Actor, bool) {
	return middleware.Actor(c)
}

// respondError maps a service error to its HTTP status. Infra failures are
// returned as a generic 500 without leaking internals.
func respondError(c *gin.Context, err error) {
	if svcErr, ok := services.AsServiceError(err); ok {
		body := gin.H{
			"success": false,
			"code":    svcErr.Code,
			"error":   svcErr.Message,
		}
		if svcErr.Code == services.CodeConflict {
			body["clientVersion"] = svcErr.ClientVersion
			body["serverVersion"] = svcErr.ServerVersion
		}
		c.JSON(services.HTTPStatus(svcErr.Code), body)
		return
	}
	c.JSON(http.StatusInternalServerError, gin.H{
		"success": false,
		"error":   "Internal server error",
	})
}

// unauthenticated writes the standard missing-identity response.
func unauthenticated(c *gin.Context) {
	c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
}
