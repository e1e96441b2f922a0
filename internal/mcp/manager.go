package mcp

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/webscout-ai/webscout/config"
)

// Status is the lifecycle state of the tool server session.
type Status string

const (
	StatusDisconnected Status = "disconnected"
	StatusConnecting   Status = "connecting"
	StatusReady        Status = "ready"
	StatusDegraded     Status = "degraded"
)

// ErrNotConnected is returned by CallTool when no session is live.
var ErrNotConnected = fmt.Errorf("mcp: not connected")

// State is a point-in-time snapshot of the connection, safe to hand to
// health handlers.
type State struct {
	Status      Status     `json:"status"`
	LastError   string     `json:"last_error,omitempty"`
	ToolCount   int        `json:"tool_count"`
	ConnectedAt *time.Time `json:"connected_at,omitempty"`
}

// DialFunc establishes a Client. Production uses StartStdio; tests
// inject fakes.
type DialFunc func(ctx context.Context) (Client, error)

// Manager owns the single logical session to the external tool server.
// Connects lazily, one attempt per EnsureReady call; a failed attempt
// leaves the manager degraded and the next call tries again. All state
// transitions happen under mu.
type Manager struct {
	dial   DialFunc
	logger *log.Logger

	mu          sync.Mutex
	client      Client
	tools       []Tool
	status      Status
	lastErr     string
	connectedAt time.Time
	connecting  bool
	attemptDone chan struct{} // closed when the in-flight attempt commits

	// metrics hooks, optional
	OnConnectAttempt func(ok bool)
}

// NewManager builds a Manager that spawns the configured MCP subprocess.
func NewManager(cfg config.MCPConfig, bd config.BrightDataConfig, logger *log.Logger) *Manager {
	env := []string{
		"API_TOKEN=" + bd.APIToken,
		"BRIGHTDATA_API_TOKEN=" + bd.APIToken,
		"BROWSER_AUTH=" + bd.BrowserAuth,
		"WEB_UNLOCKER_ZONE=" + bd.WebUnlockerZone,
	}
	dial := func(ctx context.Context) (Client, error) {
		ctx, cancel := context.WithTimeout(ctx, cfg.ConnectTimeout)
		defer cancel()
		// The subprocess must outlive the connect call, so it is tied to
		// the background context, not the per-request one.
		c, err := StartStdio(context.Background(), cfg.Command, cfg.Args, env, cfg.ToolTimeout)
		if err != nil {
			return nil, err
		}
		if err := c.Initialize(ctx); err != nil && !IsListRootsError(err) {
			_ = c.Close()
			return nil, err
		} else if err != nil {
			logger.Printf("initialize warning (non-critical): %v", err)
		}
		return c, nil
	}
	return NewManagerWithDial(dial, logger)
}

// NewManagerWithDial builds a Manager around an arbitrary dialer.
func NewManagerWithDial(dial DialFunc, logger *log.Logger) *Manager {
	if logger == nil {
		logger = log.Default()
	}
	return &Manager{dial: dial, logger: logger, status: StatusDisconnected}
}

// EnsureReady returns the discovered tools, connecting first if needed.
// Exactly one connect attempt is made per call; on failure the manager
// goes degraded and the error is returned for the caller to decide on.
func (m *Manager) EnsureReady(ctx context.Context) ([]Tool, error) {
	// The dial can take the full connect timeout, so the lock is not
	// held across it: Status stays responsive while an attempt runs,
	// and a concurrent caller waits for the attempt instead of dialing
	// a second subprocess.
	for {
		m.mu.Lock()
		if m.status == StatusReady && m.client != nil {
			tools := m.tools
			m.mu.Unlock()
			return tools, nil
		}
		if !m.connecting {
			break
		}
		done := m.attemptDone
		m.mu.Unlock()
		select {
		case <-done:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	m.connecting = true
	m.attemptDone = make(chan struct{})
	m.status = StatusConnecting
	m.mu.Unlock()

	m.logger.Printf("connecting to tool server")
	client, err := m.dial(ctx)
	var tools []Tool
	if err == nil {
		if tools, err = client.ListTools(ctx); err != nil {
			_ = client.Close()
			err = fmt.Errorf("tools/list: %w", err)
		}
	}

	m.mu.Lock()
	m.connecting = false
	close(m.attemptDone)
	if err != nil {
		m.fail(err)
		m.mu.Unlock()
		return nil, err
	}
	m.client = client
	m.tools = tools
	m.status = StatusReady
	m.lastErr = ""
	m.connectedAt = time.Now()
	if m.OnConnectAttempt != nil {
		m.OnConnectAttempt(true)
	}
	m.mu.Unlock()
	m.logger.Printf("connected, %d tools available", len(tools))
	return tools, nil
}

// fail records a connect failure. Callers hold mu.
func (m *Manager) fail(err error) {
	m.status = StatusDegraded
	m.lastErr = err.Error()
	m.client = nil
	m.tools = nil
	if m.OnConnectAttempt != nil {
		m.OnConnectAttempt(false)
	}
	m.logger.Printf("connect failed: %v", err)
}

// CallTool proxies a tool invocation to the live session. A transport
// failure degrades the session so the next EnsureReady reconnects.
func (m *Manager) CallTool(ctx context.Context, name string, args map[string]any) (map[string]any, error) {
	m.mu.Lock()
	client := m.client
	m.mu.Unlock()
	if client == nil {
		return nil, ErrNotConnected
	}
	res, err := client.CallTool(ctx, name, args)
	if err != nil && ctx.Err() == nil {
		// Distinguish a dead transport from a tool-level error: rpc
		// errors keep the session, anything else drops it.
		if _, ok := err.(*rpcError); !ok {
			m.mu.Lock()
			if m.client == client {
				m.fail(fmt.Errorf("tools/call %s: %w", name, err))
				_ = client.Close()
			}
			m.mu.Unlock()
		}
	}
	return res, err
}

// Status returns a side-effect-free snapshot.
func (m *Manager) Status() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	st := State{Status: m.status, LastError: m.lastErr, ToolCount: len(m.tools)}
	if !m.connectedAt.IsZero() && m.status == StatusReady {
		t := m.connectedAt
		st.ConnectedAt = &t
	}
	return st
}

// Shutdown releases the session. Safe to call repeatedly.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.client != nil {
		_ = m.client.Close()
		m.client = nil
	}
	m.tools = nil
	m.status = StatusDisconnected
}
