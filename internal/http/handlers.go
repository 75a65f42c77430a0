package http

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/GriffinCanCode/agentshell/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/agentshell/internal/providers/terminal"
	"github.com/GriffinCanCode/agentshell/internal/providers/terminal/background"
	"github.com/GriffinCanCode/agentshell/internal/service"
	"github.com/GriffinCanCode/agentshell/internal/types"
)

// Handlers contains all HTTP handlers
type Handlers struct {
	manager  *terminal.Manager
	registry *service.Registry
	metrics  *monitoring.Metrics
}

// NewHandlers creates a new handler set
func NewHandlers(manager *terminal.Manager, registry *service.Registry, metrics *monitoring.Metrics) *Handlers {
	return &Handlers{
		manager:  manager,
		registry: registry,
		metrics:  metrics,
	}
}

// Health reports liveness with session and background counts
func (h *Handlers) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":             "healthy",
		"sessions":           len(h.manager.Sessions()),
		"background_running": h.manager.Background().Active(),
		"service_registry":   h.registry.Stats(),
		"metrics":            h.metrics.Snapshot(),
	})
}

// ListSessions lists every workspace session
func (h *Handlers) ListSessions(c *gin.Context) {
	sessions := h.manager.Sessions()

	c.JSON(http.StatusOK, gin.H{
		"sessions": sessions,
		"count":    len(sessions),
	})
}

// ListBackground lists every background process
func (h *Handlers) ListBackground(c *gin.Context) {
	records := h.manager.Background().List()

	c.JSON(http.StatusOK, gin.H{
		"processes": records,
		"count":     len(records),
	})
}

// GetBackground returns one background process with its rendered report
func (h *Handlers) GetBackground(c *gin.Context) {
	pid, err := strconv.Atoi(c.Param("id"))
	if err != nil || pid <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "process id must be a positive integer"})
		return
	}

	rec, err := h.manager.Background().Query(pid)
	if errors.Is(err, background.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	rendered, _ := h.manager.QueryBackground(pid)
	c.JSON(http.StatusOK, gin.H{
		"process":  rec,
		"rendered": rendered,
	})
}

// ListServices lists registered services and their tools
func (h *Handlers) ListServices(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"services": h.registry.List(nil),
		"stats":    h.registry.Stats(),
	})
}

// ExecuteService executes a service tool
func (h *Handlers) ExecuteService(c *gin.Context) {
	var req types.ExecuteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	appCtx := &types.Context{
		Workspace: req.Workspace,
		Caller:    req.Caller,
	}

	result, err := h.registry.Execute(c.Request.Context(), req.ToolID, req.Params, appCtx)
	switch {
	case errors.Is(err, service.ErrInvalidToolID):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	case errors.Is(err, service.ErrServiceNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	case err != nil:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, result)
}
