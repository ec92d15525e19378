package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
)

// Gemini calls the generateContent endpoint with a response schema.
type Gemini struct {
	cfg    Config
	client *http.Client
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
}

type geminiRequest struct {
	Contents         []geminiContent `json:"contents"`
	GenerationConfig map[string]any  `json:"generationConfig"`
}

type geminiResponse struct {
	Candidates []struct {
		Content geminiContent `json:"content"`
	} `json:"candidates"`
}

// Name returns "gemini".
func (p *Gemini) Name() string { return ProviderGemini }

// Generate requests JSON output constrained by req.Schema.
func (p *Gemini) Generate(ctx context.Context, req Request) ([]byte, error) {
	genCfg := map[string]any{"response_mime_type": "application/json"}
	if req.Schema != nil {
		genCfg["response_schema"] = req.Schema
	}
	body := geminiRequest{
		Contents:         []geminiContent{{Parts: []geminiPart{{Text: req.System + "\n" + req.User}}}},
		GenerationConfig: genCfg,
	}
	endpoint := fmt.Sprintf("%s/models/%s:generateContent?key=%s",
		p.cfg.BaseURL, url.PathEscape(p.cfg.Model), url.QueryEscape(p.cfg.APIKey))

	payload, err := postJSON(ctx, p.client, p.Name(), endpoint, nil, body)
	if err != nil {
		return nil, err
	}

	var resp geminiResponse
	if err := json.Unmarshal(payload, &resp); err != nil {
		return nil, &ProviderError{Provider: p.Name(), Msg: "decode response", Err: err}
	}
	if len(resp.Candidates) == 0 || len(resp.Candidates[0].Content.Parts) == 0 || resp.Candidates[0].Content.Parts[0].Text == "" {
		return nil, &ProviderError{Provider: p.Name(), Msg: "empty response"}
	}
	return []byte(resp.Candidates[0].Content.Parts[0].Text), nil
}
