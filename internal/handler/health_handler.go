// internal/handler/health_handler.go
package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"print-service/internal/config"
	"print-service/internal/journal"
	"print-service/internal/utils"
)

// HealthHandler handles health check requests
type HealthHandler struct {
	journal   journal.Journal
	config    *config.Config
	logger    *zap.Logger
	startTime time.Time
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(jrnl journal.Journal, cfg *config.Config, logger *zap.Logger) *HealthHandler {
	return &HealthHandler{
		journal:   jrnl,
		config:    cfg,
		logger:    logger.With(zap.String("component", "health-handler")),
		startTime: time.Now(),
	}
}

// RegisterRoutes registers health check routes
func (h *HealthHandler) RegisterRoutes(router *gin.RouterGroup) {
	router.GET("/health", h.HealthCheck)
	router.GET("/health/journal", h.JournalHealthCheck)
	router.GET("/ready", h.ReadinessCheck)
	router.GET("/live", h.LivenessCheck)
}

// HealthCheck performs general health check. The journal check only applies
// when a journal database is configured; a stateless deployment is healthy
// without one.
func (h *HealthHandler) HealthCheck(c *gin.Context) {
	health := &HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now(),
		Service:   h.config.App.Name,
		Version:   h.config.App.Version,
		Uptime:    time.Since(h.startTime).String(),
		Checks:    make(map[string]CheckResult),
	}

	if h.config.Journal.Enabled {
		if err := h.journal.HealthCheck(); err != nil {
			health.Status = "unhealthy"
			health.Checks["journal"] = CheckResult{
				Status:  "unhealthy",
				Message: err.Error(),
			}
		} else {
			health.Checks["journal"] = CheckResult{
				Status:  "healthy",
				Message: "Journal database connection OK",
			}
		}
	} else {
		health.Checks["journal"] = CheckResult{
			Status:  "healthy",
			Message: "Journal disabled",
		}
	}

	statusCode := http.StatusOK
	if health.Status == "unhealthy" {
		statusCode = http.StatusServiceUnavailable
	}

	c.JSON(statusCode, health)
}

// JournalHealthCheck checks journal database connectivity
func (h *HealthHandler) JournalHealthCheck(c *gin.Context) {
	startTime := time.Now()

	if err := h.journal.HealthCheck(); err != nil {
		h.logger.Error("Journal health check failed", zap.Error(err))
		utils.ErrorResponse(c, http.StatusServiceUnavailable, "Journal unhealthy", err)
		return
	}

	response := gin.H{
		"status":           "healthy",
		"enabled":          h.config.Journal.Enabled,
		"response_time_ms": time.Since(startTime).Milliseconds(),
	}
	if pg, ok := h.journal.(*journal.Postgres); ok {
		stats := pg.Stats()
		response["stats"] = gin.H{
			"open_connections": stats.OpenConnections,
			"in_use":           stats.InUse,
			"idle":             stats.Idle,
			"wait_count":       stats.WaitCount,
		}
	}

	utils.SuccessResponse(c, http.StatusOK, "Journal is healthy", response)
}

// ReadinessCheck for Kubernetes readiness probe
func (h *HealthHandler) ReadinessCheck(c *gin.Context) {
	if h.config.Journal.Enabled {
		if err := h.journal.HealthCheck(); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status": "not ready",
				"reason": "journal database not available",
			})
			return
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"status":    "ready",
		"timestamp": time.Now(),
	})
}

// LivenessCheck for Kubernetes liveness probe
func (h *HealthHandler) LivenessCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "alive",
		"timestamp": time.Now(),
	})
}

// HealthResponse represents health check response
type HealthResponse struct {
	Status    string                 `json:"status"`
	Timestamp time.Time              `json:"timestamp"`
	Service   string                 `json:"service"`
	Version   string                 `json:"version"`
	Uptime    string                 `json:"uptime"`
	Checks    map[string]CheckResult `json:"checks"`
}

// CheckResult represents individual check result
type CheckResult struct {
	Status  string                 `json:"status"`
	Message string                 `json:"message,omitempty"`
	Data    map[string]interface{} `json:"data,omitempty"`
}
