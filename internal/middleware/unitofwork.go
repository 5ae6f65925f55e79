package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/festy23/datajpa/internal/audit"
	"github.com/festy23/datajpa/pkg/persistence"
)

// AuditorHeader names the principal a request acts on behalf of.
const AuditorHeader = "X-Auditor"

// UnitOfWork returns a middleware that binds a fresh persistence context to
// each request, so entities loaded while handling it share identity and are
// discarded afterwards.
func UnitOfWork() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request = c.Request.WithContext(persistence.NewContext(c.Request.Context()))
		c.Next()
	}
}

// Auditor returns a middleware that records the AuditorHeader value as the
// acting principal. Requests without the header are audited as the system.
func Auditor() gin.HandlerFunc {
	return func(c *gin.Context) {
		if name := c.GetHeader(AuditorHeader); name != "" {
			c.Request = c.Request.WithContext(audit.WithAuditor(c.Request.Context(), name))
		}
		c.Next()
	}
}
