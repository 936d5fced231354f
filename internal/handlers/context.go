package handlers

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/gfranca/barberhub/internal/middleware"
)

// requestContext returns the context of the inbound request. Handlers built
// without a request, as happens in unit tests, get a background context.
func requestContext(c *gin.Context) context.Context {
	if c != nil && c.Request != nil {
		return c.Request.Context()
	}
	return context.Background()
}

// currentUserID returns the authenticated user id set by the auth middleware.
func currentUserID(c *gin.Context) string {
	id, _ := c.Get(middleware.CtxUserIDKey)
	userID, _ := id.(string)
	return userID
}
