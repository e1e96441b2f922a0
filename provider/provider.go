package provider

import (
	"context"
	"errors"

	"github.com/webscout-ai/webscout/config"
	"github.com/webscout-ai/webscout/models"
	gemini_provider "github.com/webscout-ai/webscout/provider/gemini"
)

// Client represents different LLM providers
type Client string

const (
	Gemini Client = "gemini"
)

// Provider is the boundary around the vendor-hosted reasoning: one
// conversation turn in, text and/or tool calls out. The tool-selection
// logic behind it is opaque.
type Provider interface {
	Chat(ctx context.Context, system string, history []models.Message, tools []models.ToolDecl) (models.Reply, error)
	Close() error
}

// NewProvider creates an LLM provider based on the provided configuration.
func NewProvider(client Client, cfg config.GeminiConfig) (Provider, error) {
	switch client {
	case Gemini:
		if cfg.APIKey == "" {
			return nil, errors.New("gemini api key not configured (GEMINI_API_KEY)")
		}
		p, err := gemini_provider.New(cfg)
		if err != nil {
			return nil, err
		}
		return p, nil
	}
	return nil, errors.New("unsupported provider: " + string(client))
}
