package ai

import (
	"context"
	"encoding/json"
	"net/http"
)

type ollamaRequest struct {
	Model  string `json:"model"`
	System string `json:"system,omitempty"`
	Prompt string `json:"prompt"`
	Format string `json:"format"`
	Stream bool   `json:"stream"`
}

type ollamaResponse struct {
	Response string `json:"response"`
}

// Ollama sends prompts to a local Ollama instance in JSON mode.
type Ollama struct {
	cfg    Config
	client *http.Client
}

// Name returns "ollama".
func (p *Ollama) Name() string { return ProviderOllama }

// Generate calls /api/generate with format=json.
func (p *Ollama) Generate(ctx context.Context, req Request) ([]byte, error) {
	body := ollamaRequest{
		Model:  p.cfg.Model,
		System: req.System,
		Prompt: req.User,
		Format: "json",
		Stream: false,
	}

	payload, err := postJSON(ctx, p.client, p.Name(), p.cfg.BaseURL+"/api/generate", nil, body)
	if err != nil {
		return nil, err
	}

	var result ollamaResponse
	if err := json.Unmarshal(payload, &result); err != nil {
		return nil, &ProviderError{Provider: p.Name(), Msg: "decode ollama response", Err: err}
	}
	return []byte(result.Response), nil
}
