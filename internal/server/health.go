package server

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/webscout-ai/webscout/config"
	"github.com/webscout-ai/webscout/internal/mcp"
)

// StatusReporter is the read-only slice of the connection manager the
// health routes need.
type StatusReporter interface {
	Status() mcp.State
}

// StatusHandler serves liveness and connection-state routes. These never
// fail: whatever the connection is doing, the snapshot is reportable.
type StatusHandler struct {
	Cfg        *config.Config
	MCP        StatusReporter
	AgentReady bool
}

func (h *StatusHandler) Register(e *echo.Echo) {
	e.GET("/", h.root)
	e.GET("/health", h.health)
	e.GET("/mcp/status", h.mcpStatus)
}

func (h *StatusHandler) root(c echo.Context) error {
	st := h.MCP.Status()
	return c.JSON(http.StatusOK, InfoResponse{
		Status:    "online",
		Message:   h.Cfg.General.AppName,
		Version:   h.Cfg.General.Version,
		ToolCount: st.ToolCount,
		Endpoints: map[string]string{
			"chat":          "/chat",
			"quick_compare": "/quick-compare",
			"health":        "/health",
			"mcp_status":    "/mcp/status",
			"metrics":       "/metrics",
		},
	})
}

func (h *StatusHandler) health(c echo.Context) error {
	st := h.MCP.Status()
	return c.JSON(http.StatusOK, HealthResponse{
		Status:               "healthy",
		AgentReady:           h.AgentReady,
		MCPConnected:         st.Status == mcp.StatusReady,
		MCPStatus:            string(st.Status),
		ToolsCount:           st.ToolCount,
		GeminiConfigured:     h.Cfg.Gemini.APIKey != "",
		BrightDataConfigured: h.Cfg.BrightData.APIToken != "",
	})
}

func (h *StatusHandler) mcpStatus(c echo.Context) error {
	return c.JSON(http.StatusOK, MCPStatusResponse{
		State: h.MCP.Status(),
		KnownIssues: map[string]KnownIssue{
			"list_roots_not_supported": {
				Description: "BrightData MCP server doesn't implement list_roots method",
				Impact:      "Non-critical - core functionality still works",
				ErrorCode:   "MCP-32600",
			},
		},
	})
}
