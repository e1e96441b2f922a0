package agent

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/webscout-ai/webscout/internal/mcp"
	"github.com/webscout-ai/webscout/models"
	"github.com/webscout-ai/webscout/provider"
	"github.com/webscout-ai/webscout/session"
)

// DefaultMaxRounds bounds the tool-calling loop for a single query.
const DefaultMaxRounds = 8

// ToolInvoker is the slice of the connection manager the runner needs.
type ToolInvoker interface {
	EnsureReady(ctx context.Context) ([]mcp.Tool, error)
	CallTool(ctx context.Context, name string, args map[string]any) (map[string]any, error)
}

// Result is the outcome of one agent run.
type Result struct {
	Reply     string
	SessionID string
	ToolsUsed []string
	Degraded  bool
}

// Runner drives the reasoning loop: hand the conversation to the
// provider, execute whatever tool calls come back, feed the results in,
// repeat until the provider answers with text alone.
type Runner struct {
	Provider  provider.Provider
	Tools     ToolInvoker
	Logger    *log.Logger
	MaxRounds int
}

func NewRunner(p provider.Provider, tools ToolInvoker, logger *log.Logger) *Runner {
	if logger == nil {
		logger = log.Default()
	}
	return &Runner{Provider: p, Tools: tools, Logger: logger, MaxRounds: DefaultMaxRounds}
}

// Run processes one user message within a session. On context expiry it
// returns whatever text accumulated so far in Result together with the
// context error; the caller decides how to surface partial output.
func (r *Runner) Run(ctx context.Context, sess session.Session, message string) (Result, error) {
	res := Result{SessionID: sess.ID()}

	decls, degraded := r.toolDecls(ctx)
	res.Degraded = degraded

	history, err := sess.History(ctx)
	if err != nil {
		return res, fmt.Errorf("loading session history: %w", err)
	}
	history = append(history, models.Message{Role: models.RoleUser, Text: message})

	system := SystemInstruction
	if degraded {
		system = FallbackInstruction
	}

	rounds := r.MaxRounds
	if rounds <= 0 {
		rounds = DefaultMaxRounds
	}
	for round := 0; round < rounds; round++ {
		reply, err := r.Provider.Chat(ctx, system, history, decls)
		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return res, context.DeadlineExceeded
			}
			return res, err
		}
		if reply.Text != "" {
			if res.Reply != "" {
				res.Reply += "\n"
			}
			res.Reply += reply.Text
		}
		if len(reply.Calls) == 0 {
			break
		}

		history = append(history, models.Message{Role: models.RoleModel, Text: reply.Text, Calls: reply.Calls})
		results := make([]models.ToolResult, 0, len(reply.Calls))
		for _, call := range reply.Calls {
			res.ToolsUsed = append(res.ToolsUsed, call.Name)
			r.Logger.Printf("tool call: %s", call.Name)
			out, err := r.Tools.CallTool(ctx, call.Name, call.Args)
			if err != nil {
				if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
					return res, context.DeadlineExceeded
				}
				r.Logger.Printf("tool %s failed: %v", call.Name, err)
				results = append(results, models.ToolResult{Name: call.Name, Error: err.Error()})
				continue
			}
			results = append(results, models.ToolResult{Name: call.Name, Response: out})
		}
		history = append(history, models.Message{Role: models.RoleTool, Results: results})
	}

	if res.Reply == "" {
		res.Reply = "I processed your request but could not produce an answer. Please try again or rephrase your question."
	}

	// Persist only the user turn and the final text; intermediate tool
	// traffic is not replayable across requests.
	if err := sess.Append(ctx,
		models.Message{Role: models.RoleUser, Text: message},
		models.Message{Role: models.RoleModel, Text: res.Reply},
	); err != nil {
		r.Logger.Printf("session append failed: %v", err)
	}
	return res, nil
}

// toolDecls fetches the advertised tools, falling back to a tool-less
// run when the connection cannot be established.
func (r *Runner) toolDecls(ctx context.Context) ([]models.ToolDecl, bool) {
	tools, err := r.Tools.EnsureReady(ctx)
	if err != nil {
		r.Logger.Printf("tool server unavailable, running without tools: %v", err)
		return nil, true
	}
	decls := make([]models.ToolDecl, 0, len(tools))
	for _, t := range tools {
		decls = append(decls, models.ToolDecl{Name: t.Name, Description: t.Description, InputSchema: t.InputSchema})
	}
	return decls, false
}
