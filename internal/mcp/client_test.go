package mcp

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"
	"time"
)

// fakeServer answers JSON-RPC requests read from its input pipe. The
// handler returns either a result or an rpc error per method.
func fakeServer(t *testing.T, handler func(req rpcReq) (map[string]any, *rpcError)) Client {
	t.Helper()
	clientOut, serverIn := io.Pipe()  // server -> client
	serverOut, clientIn := io.Pipe() // client -> server

	go func() {
		defer serverIn.Close()
		scanner := bufio.NewScanner(serverOut)
		scanner.Buffer(make([]byte, 0, MaxFrameBytes), MaxFrameBytes)
		for scanner.Scan() {
			var req rpcReq
			if err := json.Unmarshal(scanner.Bytes(), &req); err != nil {
				continue
			}
			result, rpcErr := handler(req)
			resp := rpcResp{JSONRPC: "2.0", ID: req.ID, Result: result, Error: rpcErr}
			b, _ := json.Marshal(resp)
			b = append(b, '\n')
			if _, err := serverIn.Write(b); err != nil {
				return
			}
		}
	}()

	return NewPipeClient(clientIn, clientOut, time.Second)
}

func TestClientListTools(t *testing.T) {
	c := fakeServer(t, func(req rpcReq) (map[string]any, *rpcError) {
		if req.Method != "tools/list" {
			t.Errorf("unexpected method %s", req.Method)
		}
		return map[string]any{"tools": []any{
			map[string]any{"name": "search_engine", "description": "web search", "inputSchema": map[string]any{"type": "object"}},
			map[string]any{"name": "scrape_as_markdown", "description": "scrape"},
			map[string]any{"description": "nameless, skipped"},
		}}, nil
	})
	defer c.Close()

	tools, err := c.ListTools(context.Background())
	if err != nil {
		t.Fatalf("ListTools: %v", err)
	}
	if len(tools) != 2 {
		t.Fatalf("expected 2 tools, got %d", len(tools))
	}
	if tools[0].Name != "search_engine" || tools[0].InputSchema["type"] != "object" {
		t.Fatalf("unexpected first tool: %+v", tools[0])
	}
}

func TestClientCallTool(t *testing.T) {
	c := fakeServer(t, func(req rpcReq) (map[string]any, *rpcError) {
		if req.Method != "tools/call" {
			t.Errorf("unexpected method %s", req.Method)
		}
		if req.Params["name"] != "search_engine" {
			t.Errorf("unexpected tool name %v", req.Params["name"])
		}
		return map[string]any{"content": "results"}, nil
	})
	defer c.Close()

	res, err := c.CallTool(context.Background(), "search_engine", map[string]any{"query": "iphone 15"})
	if err != nil {
		t.Fatalf("CallTool: %v", err)
	}
	if res["content"] != "results" {
		t.Fatalf("unexpected result %v", res)
	}
}

func TestClientSkipsLogNoise(t *testing.T) {
	clientOut, serverIn := io.Pipe()
	serverOut, clientIn := io.Pipe()
	go func() {
		scanner := bufio.NewScanner(serverOut)
		scanner.Scan()
		var req rpcReq
		_ = json.Unmarshal(scanner.Bytes(), &req)
		// Log noise and a notification before the real response.
		_, _ = serverIn.Write([]byte("starting tool server...\n"))
		_, _ = serverIn.Write([]byte(`{"jsonrpc":"2.0","method":"notifications/progress"}` + "\n"))
		resp := rpcResp{JSONRPC: "2.0", ID: req.ID, Result: map[string]any{"ok": true}}
		b, _ := json.Marshal(resp)
		_, _ = serverIn.Write(append(b, '\n'))
	}()

	c := NewPipeClient(clientIn, clientOut, time.Second)
	defer c.Close()

	res, err := c.CallTool(context.Background(), "x", nil)
	if err != nil {
		t.Fatalf("CallTool: %v", err)
	}
	if res["ok"] != true {
		t.Fatalf("unexpected result %v", res)
	}
}

func TestClientRPCError(t *testing.T) {
	c := fakeServer(t, func(req rpcReq) (map[string]any, *rpcError) {
		return nil, &rpcError{Code: -32600, Message: "List roots not supported"}
	})
	defer c.Close()

	_, err := c.CallTool(context.Background(), "x", nil)
	if err == nil {
		t.Fatal("expected error")
	}
	if !IsListRootsError(err) {
		t.Fatalf("expected list-roots classification for %v", err)
	}
}

// silentServer drains requests and emits only log noise, never a
// response, so the client's deadline handling is exercised.
func silentServer(t *testing.T) Client {
	t.Helper()
	clientOut, serverIn := io.Pipe()
	serverOut, clientIn := io.Pipe()
	go func() { _, _ = io.Copy(io.Discard, serverOut) }()
	done := make(chan struct{})
	t.Cleanup(func() { close(done) })
	go func() {
		ticker := time.NewTicker(10 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				_ = serverIn.Close()
				return
			case <-ticker.C:
				if _, err := serverIn.Write([]byte("still working...\n")); err != nil {
					return
				}
			}
		}
	}()
	return NewPipeClient(clientIn, clientOut, time.Minute)
}

func TestClientTimeout(t *testing.T) {
	clientOut, serverIn := io.Pipe()
	serverOut, clientIn := io.Pipe()
	go func() { _, _ = io.Copy(io.Discard, serverOut) }()
	done := make(chan struct{})
	defer close(done)
	go func() {
		ticker := time.NewTicker(10 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				if _, err := serverIn.Write([]byte("noise\n")); err != nil {
					return
				}
			}
		}
	}()

	c := NewPipeClient(clientIn, clientOut, 50*time.Millisecond)
	defer c.Close()

	start := time.Now()
	_, err := c.CallTool(context.Background(), "x", nil)
	if err == nil {
		t.Fatal("expected timeout error")
	}
	if time.Since(start) > 2*time.Second {
		t.Fatalf("timeout took too long: %s", time.Since(start))
	}
}

// muteServer drains requests and never writes a byte back, modelling a
// tool server that stalls mid-call without even log output.
func muteServer(t *testing.T, callTimeout time.Duration) Client {
	t.Helper()
	clientOut, serverIn := io.Pipe()
	serverOut, clientIn := io.Pipe()
	go func() { _, _ = io.Copy(io.Discard, serverOut) }()
	t.Cleanup(func() { _ = serverIn.Close() })
	return NewPipeClient(clientIn, clientOut, callTimeout)
}

func TestClientSilentServerContextDeadline(t *testing.T) {
	c := muteServer(t, time.Minute)
	defer c.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	start := time.Now()
	_, err := c.CallTool(ctx, "x", nil)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline error, got %v", err)
	}
	if time.Since(start) > 2*time.Second {
		t.Fatalf("call outlived its deadline by %s", time.Since(start))
	}
}

func TestClientSilentServerCallTimeout(t *testing.T) {
	c := muteServer(t, 50*time.Millisecond)
	defer c.Close()

	start := time.Now()
	_, err := c.CallTool(context.Background(), "x", nil)
	if err == nil {
		t.Fatal("expected timeout error")
	}
	if time.Since(start) > 2*time.Second {
		t.Fatalf("call outlived its timeout by %s", time.Since(start))
	}
}

func TestClientIgnoresStaleErrorFrame(t *testing.T) {
	clientOut, serverIn := io.Pipe()
	serverOut, clientIn := io.Pipe()
	go func() {
		scanner := bufio.NewScanner(serverOut)
		scanner.Scan()
		var req rpcReq
		_ = json.Unmarshal(scanner.Bytes(), &req)
		// A late error left over from an earlier, timed-out call must
		// not be attributed to this one.
		stale := rpcResp{JSONRPC: "2.0", ID: req.ID + 500, Error: &rpcError{Code: -32000, Message: "stale"}}
		b, _ := json.Marshal(stale)
		_, _ = serverIn.Write(append(b, '\n'))
		resp := rpcResp{JSONRPC: "2.0", ID: req.ID, Result: map[string]any{"ok": true}}
		b, _ = json.Marshal(resp)
		_, _ = serverIn.Write(append(b, '\n'))
	}()

	c := NewPipeClient(clientIn, clientOut, time.Second)
	defer c.Close()

	res, err := c.CallTool(context.Background(), "x", nil)
	if err != nil {
		t.Fatalf("CallTool: %v", err)
	}
	if res["ok"] != true {
		t.Fatalf("unexpected result %v", res)
	}
}

func TestClientHonorsContext(t *testing.T) {
	c := silentServer(t)
	defer c.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := c.CallTool(ctx, "x", nil)
	if err == nil {
		t.Fatal("expected error from expired context")
	}
	if !errors.Is(err, context.DeadlineExceeded) && err.Error() == "" {
		t.Fatalf("unexpected error %v", err)
	}
}

func TestCloseKillsStubbornSubprocess(t *testing.T) {
	if testing.Short() {
		t.Skip("spawns a subprocess")
	}
	// sleep ignores stdin EOF, so Close has to fall back to killing it.
	c, err := StartStdio(context.Background(), "sleep", []string{"60"}, nil, time.Second)
	if err != nil {
		t.Fatalf("StartStdio: %v", err)
	}
	start := time.Now()
	_ = c.Close()
	if elapsed := time.Since(start); elapsed > closeGrace+2*time.Second {
		t.Fatalf("Close took %s", elapsed)
	}
}

func TestIsListRootsErrorNil(t *testing.T) {
	if IsListRootsError(nil) {
		t.Fatal("nil must not classify as list-roots")
	}
}
