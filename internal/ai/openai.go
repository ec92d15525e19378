package ai

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/openai/openai-go"
)

// OpenAI talks to any OpenAI-compatible chat completions endpoint. It
// serves the openai, doubao and custom providers.
type OpenAI struct {
	cfg    Config
	client *http.Client
}

// Name returns the configured provider id.
func (p *OpenAI) Name() string { return p.cfg.Provider }

// Generate requests a JSON object completion.
func (p *OpenAI) Generate(ctx context.Context, req Request) ([]byte, error) {
	messages := []openai.ChatCompletionMessageParamUnion{
		openai.SystemMessage(req.System),
		openai.UserMessage(req.User),
	}
	body := map[string]any{
		"model":           p.cfg.Model,
		"messages":        messages,
		"temperature":     0.2,
		"response_format": map[string]string{"type": "json_object"},
	}
	headers := map[string]string{"Authorization": "Bearer " + p.cfg.APIKey}

	payload, err := postJSON(ctx, p.client, p.Name(), p.cfg.BaseURL+chatCompletionsPath, headers, body)
	if err != nil {
		return nil, err
	}

	var completion openai.ChatCompletion
	if err := json.Unmarshal(payload, &completion); err != nil {
		return nil, &ProviderError{Provider: p.Name(), Msg: "decode completion", Err: err}
	}
	if len(completion.Choices) == 0 || completion.Choices[0].Message.Content == "" {
		return nil, &ProviderError{Provider: p.Name(), Msg: "empty response"}
	}
	return []byte(completion.Choices[0].Message.Content), nil
}
