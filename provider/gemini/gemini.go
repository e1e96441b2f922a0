package gemini_provider

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/webscout-ai/webscout/config"
	"github.com/webscout-ai/webscout/models"
)

// client implements the provider interface over the Gemini API.
type client struct {
	genai       *genai.Client
	modelName   string
	temperature float32
	maxTokens   int32
}

// New creates a Gemini-backed provider from configuration.
func New(cfg config.GeminiConfig) (*client, error) {
	gc, err := genai.NewClient(context.Background(), option.WithAPIKey(cfg.APIKey))
	if err != nil {
		return nil, fmt.Errorf("creating gemini client: %w", err)
	}
	return &client{
		genai:       gc,
		modelName:   cfg.Model,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
	}, nil
}

func (c *client) Close() error { return c.genai.Close() }

// Chat runs one conversation turn. The final history entry is sent as
// the new message; everything before it becomes chat history.
func (c *client) Chat(ctx context.Context, system string, history []models.Message, tools []models.ToolDecl) (models.Reply, error) {
	if len(history) == 0 {
		return models.Reply{}, errors.New("empty history")
	}

	model := c.genai.GenerativeModel(c.modelName)
	model.SetTemperature(c.temperature)
	if c.maxTokens > 0 {
		model.SetMaxOutputTokens(c.maxTokens)
	}
	if system != "" {
		model.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(system)}}
	}
	if len(tools) > 0 {
		decls := make([]*genai.FunctionDeclaration, 0, len(tools))
		for _, t := range tools {
			decls = append(decls, &genai.FunctionDeclaration{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  schemaFromJSON(t.InputSchema),
			})
		}
		model.Tools = []*genai.Tool{{FunctionDeclarations: decls}}
	}

	cs := model.StartChat()
	for _, m := range history[:len(history)-1] {
		cs.History = append(cs.History, contentFromMessage(m))
	}

	last := contentFromMessage(history[len(history)-1])
	resp, err := cs.SendMessage(ctx, last.Parts...)
	if err != nil {
		return models.Reply{}, fmt.Errorf("gemini: %w", err)
	}
	return replyFromResponse(resp)
}

func contentFromMessage(m models.Message) *genai.Content {
	content := &genai.Content{}
	switch m.Role {
	case models.RoleModel:
		content.Role = "model"
		if m.Text != "" {
			content.Parts = append(content.Parts, genai.Text(m.Text))
		}
		for _, call := range m.Calls {
			content.Parts = append(content.Parts, genai.FunctionCall{Name: call.Name, Args: call.Args})
		}
	case models.RoleTool:
		content.Role = "function"
		for _, r := range m.Results {
			resp := r.Response
			if r.Error != "" {
				resp = map[string]any{"error": r.Error}
			}
			if resp == nil {
				resp = map[string]any{}
			}
			content.Parts = append(content.Parts, genai.FunctionResponse{Name: r.Name, Response: resp})
		}
	default:
		content.Role = "user"
		content.Parts = append(content.Parts, genai.Text(m.Text))
	}
	return content
}

func replyFromResponse(resp *genai.GenerateContentResponse) (models.Reply, error) {
	var out models.Reply
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return out, errors.New("gemini: empty response")
	}
	for _, part := range resp.Candidates[0].Content.Parts {
		switch p := part.(type) {
		case genai.Text:
			out.Text += string(p)
		case genai.FunctionCall:
			out.Calls = append(out.Calls, models.ToolCall{Name: p.Name, Args: p.Args})
		}
	}
	return out, nil
}

// schemaFromJSON converts a JSON-schema object, as advertised by the
// tool server, into the genai schema shape. Unknown constructs collapse
// to permissive types rather than failing the declaration.
func schemaFromJSON(js map[string]any) *genai.Schema {
	if len(js) == 0 {
		// No schema means no parameters; a nil declaration is valid.
		return nil
	}
	s := &genai.Schema{Type: typeFromJSON(js["type"])}
	if d, ok := js["description"].(string); ok {
		s.Description = d
	}
	if props, ok := js["properties"].(map[string]any); ok {
		s.Properties = make(map[string]*genai.Schema, len(props))
		for name, raw := range props {
			sub, _ := raw.(map[string]any)
			s.Properties[name] = schemaFromJSON(sub)
		}
	}
	if items, ok := js["items"].(map[string]any); ok {
		s.Items = schemaFromJSON(items)
	}
	if req, ok := js["required"].([]any); ok {
		for _, r := range req {
			if name, ok := r.(string); ok {
				s.Required = append(s.Required, name)
			}
		}
	}
	if enum, ok := js["enum"].([]any); ok {
		for _, e := range enum {
			if v, ok := e.(string); ok {
				s.Enum = append(s.Enum, v)
			}
		}
	}
	return s
}

func typeFromJSON(v any) genai.Type {
	t, _ := v.(string)
	switch t {
	case "string":
		return genai.TypeString
	case "number":
		return genai.TypeNumber
	case "integer":
		return genai.TypeInteger
	case "boolean":
		return genai.TypeBoolean
	case "array":
		return genai.TypeArray
	case "object":
		return genai.TypeObject
	default:
		return genai.TypeObject
	}
}
