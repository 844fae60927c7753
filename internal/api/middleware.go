package api

import (
	"net/http"

	"commerce-api/internal/apperr"
	"commerce-api/internal/models"

	"github.com/gin-gonic/gin"
)

// Authentication happens at the edge; the proxy strips these headers from
// client traffic and injects the verified identity.
const (
	headerUserID   = "X-User-ID"
	headerUserRole = "X-User-Role"

	ctxUserID   = "userID"
	ctxUserRole = "userRole"
)

// identityRequired rejects requests the edge did not authenticate.
func identityRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.GetHeader(headerUserID)
		if userID == "" {
			respondWithError(c, apperr.New("UNAUTHORIZED", http.StatusUnauthorized, "authentication required"))
			c.Abort()
			return
		}

		role := c.GetHeader(headerUserRole)
		if role == "" {
			role = models.RoleCustomer
		}

		c.Set(ctxUserID, userID)
		c.Set(ctxUserRole, role)
		c.Next()
	}
}

// adminRequired guards back-office operations.
func adminRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		if callerRole(c) != models.RoleAdmin {
			respondWithError(c, apperr.Forbidden("admin access required"))
			c.Abort()
			return
		}
		c.Next()
	}
}

func callerID(c *gin.Context) string {
	return c.GetString(ctxUserID)
}

func callerRole(c *gin.Context) string {
	return c.GetString(ctxUserRole)
}
