// Package ai sends structured completion requests to a configured LLM
// provider and returns the model's JSON output.
package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/lotas/tabgruppen/internal/applog"
	"github.com/lotas/tabgruppen/internal/retry"
)

// DefaultAttempts is the number of tries per completion.
const DefaultAttempts = 3

// DefaultBackoff is the base delay between attempts; the n-th retry waits
// n times this long.
const DefaultBackoff = time.Second

// Request is a system/user prompt pair with an optional response schema.
// Providers that support schema-constrained output use Schema; the others
// ask for a JSON object.
type Request struct {
	System string
	User   string
	Schema map[string]any
}

// Provider performs a single completion and returns the JSON content
// produced by the model.
type Provider interface {
	Name() string
	Generate(ctx context.Context, req Request) ([]byte, error)
}

// Completer is what the grouping code needs from a completion client.
type Completer interface {
	Complete(ctx context.Context, req Request, validate func([]byte) error) ([]byte, error)
}

// ConfigSource returns the current provider configuration. Settings can
// change while the daemon runs, so it is consulted on every request.
type ConfigSource func(ctx context.Context) (Config, error)

// StaticConfig returns a ConfigSource that always yields cfg.
func StaticConfig(cfg Config) ConfigSource {
	return func(context.Context) (Config, error) { return cfg, nil }
}

// Requester validates provider settings and retries transient failures.
type Requester struct {
	config     ConfigSource
	httpClient *http.Client
	provider   Provider
	attempts   int
	backoff    time.Duration
}

// Option configures a Requester.
type Option func(*Requester)

// WithProvider overrides the provider built from the configuration.
func WithProvider(p Provider) Option {
	return func(r *Requester) { r.provider = p }
}

// WithHTTPClient sets the HTTP client used by the built-in providers.
func WithHTTPClient(c *http.Client) Option {
	return func(r *Requester) { r.httpClient = c }
}

// WithBackoff sets the base retry delay.
func WithBackoff(d time.Duration) Option {
	return func(r *Requester) { r.backoff = d }
}

// WithAttempts sets the number of tries per completion.
func WithAttempts(n int) Option {
	return func(r *Requester) { r.attempts = n }
}

// NewRequester creates a Requester reading its provider settings from src.
func NewRequester(src ConfigSource, opts ...Option) *Requester {
	r := &Requester{
		config:     src,
		httpClient: &http.Client{Timeout: 60 * time.Second},
		attempts:   DefaultAttempts,
		backoff:    DefaultBackoff,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// NewProvider builds the provider implementation for a normalized config.
func NewProvider(cfg Config, client *http.Client) Provider {
	switch cfg.Provider {
	case ProviderGemini:
		return &Gemini{cfg: cfg, client: client}
	case ProviderOllama:
		return &Ollama{cfg: cfg, client: client}
	default:
		return &OpenAI{cfg: cfg, client: client}
	}
}

// Complete sends req and returns the model's JSON output once validate
// accepts it. Missing credentials or settings fail before any request is
// made. Provider errors and validation failures are retried with an
// exponential backoff that doubles the base delay after each attempt; auth
// and config errors are returned immediately.
func (r *Requester) Complete(ctx context.Context, req Request, validate func([]byte) error) ([]byte, error) {
	cfg, err := r.config(ctx)
	if err != nil {
		return nil, err
	}
	cfg = cfg.Normalize()
	if err := cfg.Check(); err != nil {
		applog.Error("ai.config", err, "provider", cfg.Provider)
		return nil, err
	}

	provider := r.provider
	if provider == nil {
		provider = NewProvider(cfg, r.httpClient)
	}

	var result []byte
	policy := retry.Policy{
		Attempts:  r.attempts,
		Backoff:   retry.Exponential(r.backoff),
		Retryable: Retryable,
		OnRetry: func(attempt int, err error) {
			applog.Warn("ai.retry", err, "provider", provider.Name(), "attempt", attempt)
		},
	}
	err = retry.Do(ctx, policy, func(ctx context.Context, attempt int) error {
		applog.Info("ai.attempt", "provider", provider.Name(), "model", cfg.Model, "attempt", attempt)
		raw, err := provider.Generate(ctx, req)
		if err != nil {
			return err
		}
		raw = trimFences(raw)
		if len(raw) == 0 {
			return &ProviderError{Provider: provider.Name(), Msg: "empty response"}
		}
		if !json.Valid(raw) {
			return &ProviderError{Provider: provider.Name(), Msg: "response is not valid JSON"}
		}
		if validate != nil {
			if err := validate(raw); err != nil {
				return Invalid(err)
			}
		}
		result = raw
		return nil
	})
	if err != nil {
		applog.Error("ai.complete", err, "provider", provider.Name())
		return nil, err
	}
	return result, nil
}

// trimFences strips a surrounding markdown code fence, which some local
// models emit even when asked for bare JSON.
func trimFences(raw []byte) []byte {
	s := bytes.TrimSpace(raw)
	if !bytes.HasPrefix(s, []byte("```")) {
		return s
	}
	s = bytes.TrimPrefix(s, []byte("```"))
	s = bytes.TrimPrefix(s, []byte("json"))
	s = bytes.TrimSuffix(bytes.TrimSpace(s), []byte("```"))
	return bytes.TrimSpace(s)
}
