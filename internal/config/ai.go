package config

import (
	"context"
	"os"

	"github.com/lotas/tabgruppen/internal/ai"
)

// Environment variables that override the stored provider settings.
const (
	EnvProvider = "TABGRUPPEN_PROVIDER"
	EnvModel    = "TABGRUPPEN_MODEL"
	EnvAPIKey   = "TABGRUPPEN_API_KEY"
	EnvBaseURL  = "TABGRUPPEN_BASE_URL"
	EnvOllama   = "OLLAMA_HOST"
)

// AIConfig returns the provider configuration in s, with environment
// overrides applied. OLLAMA_HOST sets the base URL of the ollama provider
// unless TABGRUPPEN_BASE_URL is also set.
func AIConfig(s Settings) ai.Config {
	cfg := ai.Config{
		Provider: s.AIProvider,
		Model:    s.ModelName,
		APIKey:   s.APIKey,
		BaseURL:  s.CustomAPIBaseURL,
	}
	if v := os.Getenv(EnvProvider); v != "" {
		cfg.Provider = v
	}
	if v := os.Getenv(EnvModel); v != "" {
		cfg.Model = v
	}
	if v := os.Getenv(EnvAPIKey); v != "" {
		cfg.APIKey = v
	}
	if v := os.Getenv(EnvBaseURL); v != "" {
		cfg.BaseURL = v
	} else if v := os.Getenv(EnvOllama); v != "" && cfg.Provider == ai.ProviderOllama {
		cfg.BaseURL = v
	}
	return cfg
}

// AISource adapts a settings Source for ai.NewRequester.
func AISource(src Source) ai.ConfigSource {
	return func(ctx context.Context) (ai.Config, error) {
		s, err := src.Settings(ctx)
		if err != nil {
			return ai.Config{}, err
		}
		return AIConfig(s), nil
	}
}
