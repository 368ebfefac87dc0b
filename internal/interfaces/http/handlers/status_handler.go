package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/chatwork/chatwork/gateway/internal/domain/service"
	"github.com/chatwork/chatwork/gateway/internal/infrastructure/monitoring"
)

// StatusHandler serves health and status probes.
type StatusHandler struct {
	registry *service.WorkspaceRegistry
	monitor  *monitoring.Monitor
	version  string
	started  time.Time
}

func NewStatusHandler(registry *service.WorkspaceRegistry, monitor *monitoring.Monitor, version string) *StatusHandler {
	return &StatusHandler{
		registry: registry,
		monitor:  monitor,
		version:  version,
		started:  time.Now(),
	}
}

func (h *StatusHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *StatusHandler) Status(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":     "ok",
		"version":    h.version,
		"uptime":     time.Since(h.started).String(),
		"workspaces": len(h.registry.Workspaces()),
		"pipeline":   h.monitor.Stats(),
	})
}

// Workspace resolves one workspace by name or alias.
func (h *StatusHandler) Workspace(c *gin.Context) {
	ws, ok := h.registry.LookupWorkspace(c.Param("name"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown workspace"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"name":    ws.Name(),
		"aliases": ws.Aliases(),
		"tools":   ws.Tools(),
		"root":    ws.Root(),
	})
}
