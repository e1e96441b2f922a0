package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/webscout-ai/webscout/config"
	"github.com/webscout-ai/webscout/internal/mcp"
)

type stubReporter struct{ state mcp.State }

func (s stubReporter) Status() mcp.State { return s.state }

func testConfig() *config.Config {
	return &config.Config{
		General: config.GeneralConfig{AppName: "webscout", Version: "2.0.0"},
		Gemini:  config.GeminiConfig{APIKey: "key"},
		BrightData: config.BrightDataConfig{
			APIToken:    "token",
			BrowserAuth: "auth",
		},
	}
}

func doGet(t *testing.T, h func(echo.Context) error, path string) *httptest.ResponseRecorder {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	if err := h(e.NewContext(req, rec)); err != nil {
		t.Fatalf("%s: %v", path, err)
	}
	return rec
}

func TestHealthReady(t *testing.T) {
	now := time.Now()
	h := &StatusHandler{
		Cfg:        testConfig(),
		MCP:        stubReporter{state: mcp.State{Status: mcp.StatusReady, ToolCount: 48, ConnectedAt: &now}},
		AgentReady: true,
	}
	rec := doGet(t, h.health, "/health")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var resp HealthResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !resp.MCPConnected || resp.MCPStatus != "ready" || resp.ToolsCount != 48 {
		t.Fatalf("unexpected health %+v", resp)
	}
	if !resp.GeminiConfigured || !resp.BrightDataConfigured {
		t.Fatalf("credential flags wrong: %+v", resp)
	}
}

func TestHealthDegraded(t *testing.T) {
	h := &StatusHandler{
		Cfg: testConfig(),
		MCP: stubReporter{state: mcp.State{Status: mcp.StatusDegraded, LastError: "npx not found"}},
	}
	rec := doGet(t, h.health, "/health")
	if rec.Code != http.StatusOK {
		t.Fatalf("health must always return 200, got %d", rec.Code)
	}
	var resp HealthResponse
	_ = json.Unmarshal(rec.Body.Bytes(), &resp)
	if resp.MCPConnected || resp.MCPStatus != "degraded" {
		t.Fatalf("unexpected health %+v", resp)
	}
}

func TestMCPStatusSnapshot(t *testing.T) {
	h := &StatusHandler{
		Cfg: testConfig(),
		MCP: stubReporter{state: mcp.State{Status: mcp.StatusDisconnected}},
	}
	rec := doGet(t, h.mcpStatus, "/mcp/status")
	var resp MCPStatusResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.Status != mcp.StatusDisconnected {
		t.Fatalf("unexpected state %+v", resp.State)
	}
	issue, ok := resp.KnownIssues["list_roots_not_supported"]
	if !ok {
		t.Fatalf("known_issues missing list_roots entry: %+v", resp.KnownIssues)
	}
	if issue.ErrorCode != "MCP-32600" || issue.Description == "" {
		t.Fatalf("unexpected known issue %+v", issue)
	}
}

func TestRootInfo(t *testing.T) {
	h := &StatusHandler{
		Cfg: testConfig(),
		MCP: stubReporter{state: mcp.State{Status: mcp.StatusReady, ToolCount: 3}},
	}
	rec := doGet(t, h.root, "/")
	var resp InfoResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.Status != "online" || resp.ToolCount != 3 {
		t.Fatalf("unexpected info %+v", resp)
	}
	if resp.Endpoints["chat"] != "/chat" {
		t.Fatalf("endpoints missing: %+v", resp.Endpoints)
	}
}
