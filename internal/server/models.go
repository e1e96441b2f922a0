package server

import "github.com/webscout-ai/webscout/internal/mcp"

// ChatRequest is the body of POST /chat.
type ChatRequest struct {
	Message   string `json:"message"`
	SessionID string `json:"session_id"`
}

// QuickCompareRequest is the body of POST /quick-compare. Both fields
// are optional; sensible defaults apply.
type QuickCompareRequest struct {
	Platforms string `json:"platforms"`
	Location  string `json:"location"`
}

// ChatResponse is returned by both chat routes.
type ChatResponse struct {
	Reply     string   `json:"reply"`
	SessionID string   `json:"session_id"`
	ToolsUsed []string `json:"tools_used,omitempty"`
	ElapsedMS int64    `json:"elapsed_ms"`
	TimedOut  bool     `json:"timed_out,omitempty"`
	Degraded  bool     `json:"degraded,omitempty"`
	Status    string   `json:"status"`
}

// HealthResponse is returned by GET /health.
type HealthResponse struct {
	Status               string `json:"status"`
	AgentReady           bool   `json:"agent_ready"`
	MCPConnected         bool   `json:"mcp_connected"`
	MCPStatus            string `json:"mcp_status"`
	ToolsCount           int    `json:"tools_count"`
	GeminiConfigured     bool   `json:"gemini_configured"`
	BrightDataConfigured bool   `json:"brightdata_configured"`
}

// MCPStatusResponse is returned by GET /mcp/status: the connection
// snapshot plus the standing quirks of the tool server.
type MCPStatusResponse struct {
	mcp.State
	KnownIssues map[string]KnownIssue `json:"known_issues"`
}

// KnownIssue documents a tool-server quirk that is tolerated rather
// than treated as a failure.
type KnownIssue struct {
	Description string `json:"description"`
	Impact      string `json:"impact"`
	ErrorCode   string `json:"error_code"`
}

// InfoResponse is returned by GET /.
type InfoResponse struct {
	Status    string            `json:"status"`
	Message   string            `json:"message"`
	Version   string            `json:"version"`
	ToolCount int               `json:"tool_count"`
	Endpoints map[string]string `json:"endpoints"`
}
