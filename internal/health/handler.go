// Package health provides liveness and readiness endpoints.
package health

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/festy23/datajpa/internal/database/database"
)

const checkTimeout = 5 * time.Second

// Handler handles health check requests.
type Handler struct {
	db     *gorm.DB
	logger *zap.SugaredLogger
}

// New creates a new health handler instance.
func New(db *gorm.DB, logger *zap.SugaredLogger) *Handler {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Handler{db: db, logger: logger}
}

// Response represents health check response.
type Response struct {
	Status string `json:"status"`
	// OpenConnections is reported by the readiness check when the database answers.
	OpenConnections *int `json:"openConnections,omitempty"`
}

// RegisterRoutes registers GET /health (readiness) and GET /health/live.
func (h *Handler) RegisterRoutes(r gin.IRouter) {
	r.GET("/health", h.Check)
	r.GET("/health/live", h.Live)
}

// Live handles GET /health/live. It only reports that the process serves requests.
func (h *Handler) Live(c *gin.Context) {
	c.JSON(http.StatusOK, Response{Status: "ok"})
}

// Check handles GET /health. It responds 503 when the database does not answer a ping.
func (h *Handler) Check(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), checkTimeout)
	defer cancel()

	if err := database.HealthCheck(ctx, h.db); err != nil {
		h.logger.Warnw("health check failed", "error", err)
		c.JSON(http.StatusServiceUnavailable, Response{Status: "unhealthy"})
		return
	}

	resp := Response{Status: "ok"}
	if stats, err := database.GetStats(h.db); err == nil {
		resp.OpenConnections = &stats.OpenConnections
	}
	c.JSON(http.StatusOK, resp)
}
