package mcp

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"
)

const (
	// MaxFrameBytes bounds a single JSON-RPC frame read from the server.
	MaxFrameBytes = 1 << 20

	// closeGrace is how long Close waits for the subprocess to exit on
	// its own before killing it.
	closeGrace = 3 * time.Second

	protocolVersion = "2024-11-05"
)

// Client is a JSON-RPC 2.0 client speaking the MCP wire protocol over a
// newline-delimited stream, usually the stdio of a spawned tool server.
type Client interface {
	Initialize(ctx context.Context) error
	ListTools(ctx context.Context) ([]Tool, error)
	CallTool(ctx context.Context, name string, args map[string]any) (map[string]any, error)
	Close() error
}

// Tool is a remote capability advertised by the tool server.
type Tool struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	InputSchema map[string]any `json:"inputSchema"`
}

type rpcReq struct {
	JSONRPC string         `json:"jsonrpc"`
	ID      int64          `json:"id"`
	Method  string         `json:"method"`
	Params  map[string]any `json:"params,omitempty"`
}

type rpcResp struct {
	JSONRPC string         `json:"jsonrpc"`
	ID      int64          `json:"id"`
	Result  map[string]any `json:"result,omitempty"`
	Error   *rpcError      `json:"error,omitempty"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *rpcError) Error() string {
	return fmt.Sprintf("mcp error %d: %s", e.Code, e.Message)
}

// IsListRootsError reports whether err is the BrightData server's
// handshake complaint about the unsupported list_roots method
// (JSON-RPC -32600). It is noise, not a failed connection.
func IsListRootsError(err error) bool {
	if err == nil {
		return false
	}
	var re *rpcError
	if errors.As(err, &re) && re.Code == -32600 {
		return true
	}
	return strings.Contains(err.Error(), "List roots not supported")
}

type stdioClient struct {
	cmd         *exec.Cmd // nil when built over raw pipes in tests
	in          io.WriteCloser
	frames      chan frame
	done        chan struct{}
	closeOnce   sync.Once
	closeErr    error
	mu          sync.Mutex
	seq         int64
	callTimeout time.Duration
}

// frame is one newline-delimited line off the server's stdout, or the
// read error that ended the stream.
type frame struct {
	line []byte
	err  error
}

// StartStdio spawns command with the given environment and returns a
// Client over its stdin/stdout. Stderr is passed through for the tool
// server's own diagnostics.
func StartStdio(ctx context.Context, command string, args, env []string, callTimeout time.Duration) (Client, error) {
	cmd := exec.CommandContext(ctx, command, args...)
	cmd.Env = append(os.Environ(), env...)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, err
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, err
	}
	cmd.Stderr = os.Stderr
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("mcp: starting %s: %w", command, err)
	}
	return newStdioClient(cmd, stdin, stdout, callTimeout), nil
}

// NewPipeClient builds a Client over an arbitrary stream pair. Used by
// tests to fake a tool server in-process.
func NewPipeClient(in io.WriteCloser, out io.Reader, callTimeout time.Duration) Client {
	return newStdioClient(nil, in, out, callTimeout)
}

func newStdioClient(cmd *exec.Cmd, in io.WriteCloser, out io.Reader, callTimeout time.Duration) *stdioClient {
	c := &stdioClient{
		cmd:         cmd,
		in:          in,
		frames:      make(chan frame, 8),
		done:        make(chan struct{}),
		callTimeout: callTimeout,
	}
	go c.readLoop(out)
	return c
}

// readLoop owns the server's stdout. A blocked read never stalls a
// caller: send waits on the frame channel, not the pipe.
func (c *stdioClient) readLoop(out io.Reader) {
	defer close(c.frames)
	r := bufio.NewReader(out)
	for {
		var buf bytes.Buffer
		for {
			frag, err := r.ReadBytes('\n')
			buf.Write(frag)
			if buf.Len() > MaxFrameBytes {
				c.deliver(frame{err: fmt.Errorf("mcp: frame too large")})
				return
			}
			if err == nil {
				break
			}
			if errors.Is(err, bufio.ErrBufferFull) {
				continue
			}
			c.deliver(frame{err: err})
			return
		}
		line := append([]byte(nil), bytes.TrimSpace(buf.Bytes())...)
		if !c.deliver(frame{line: line}) {
			return
		}
	}
}

func (c *stdioClient) deliver(f frame) bool {
	select {
	case c.frames <- f:
		return true
	case <-c.done:
		return false
	}
}

func (c *stdioClient) send(ctx context.Context, method string, params map[string]any) (map[string]any, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seq++
	id := c.seq
	req := rpcReq{JSONRPC: "2.0", ID: id, Method: method, Params: params}
	b, _ := json.Marshal(req)
	b = append(b, '\n')
	if _, err := c.in.Write(b); err != nil {
		return nil, fmt.Errorf("mcp: write %s: %w", method, err)
	}
	timeout := c.callTimeout
	if d, ok := ctx.Deadline(); ok {
		if r := time.Until(d); r < timeout {
			timeout = r
		}
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-timer.C:
			return nil, fmt.Errorf("mcp: timeout waiting for %s", method)
		case f, ok := <-c.frames:
			if !ok {
				return nil, io.EOF
			}
			if f.err != nil {
				return nil, f.err
			}
			// Tool servers interleave log lines and notifications on
			// stdout; skip anything that is not the response to this
			// request, including stale frames from timed-out calls.
			if len(f.line) == 0 || f.line[0] != '{' {
				continue
			}
			var resp rpcResp
			if err := json.Unmarshal(f.line, &resp); err != nil {
				continue
			}
			if resp.ID != id {
				continue
			}
			if resp.Error != nil {
				return nil, resp.Error
			}
			return resp.Result, nil
		}
	}
}

// Initialize performs the MCP handshake.
func (c *stdioClient) Initialize(ctx context.Context) error {
	_, err := c.send(ctx, "initialize", map[string]any{
		"protocolVersion": protocolVersion,
		"capabilities":    map[string]any{},
		"clientInfo":      map[string]any{"name": "webscout", "version": "2.0.0"},
	})
	return err
}

func (c *stdioClient) ListTools(ctx context.Context) ([]Tool, error) {
	res, err := c.send(ctx, "tools/list", nil)
	if err != nil {
		return nil, err
	}
	raw, ok := res["tools"].([]any)
	if !ok {
		return nil, errors.New("mcp: invalid tools/list result")
	}
	out := make([]Tool, 0, len(raw))
	for _, v := range raw {
		b, _ := json.Marshal(v)
		var t Tool
		if err := json.Unmarshal(b, &t); err != nil || t.Name == "" {
			continue
		}
		out = append(out, t)
	}
	return out, nil
}

func (c *stdioClient) CallTool(ctx context.Context, name string, args map[string]any) (map[string]any, error) {
	return c.send(ctx, "tools/call", map[string]any{"name": name, "arguments": args})
}

// Close releases the stream and reaps the subprocess. A server that
// ignores stdin EOF is killed after a grace period so Close cannot
// wedge the caller.
func (c *stdioClient) Close() error {
	c.closeOnce.Do(func() {
		close(c.done)
		_ = c.in.Close()
		if c.cmd == nil {
			return
		}
		exited := make(chan error, 1)
		go func() { exited <- c.cmd.Wait() }()
		select {
		case c.closeErr = <-exited:
		case <-time.After(closeGrace):
			_ = c.cmd.Process.Kill()
			c.closeErr = <-exited
		}
	})
	return c.closeErr
}
