package ai

import "strings"

// Provider ids accepted in settings.
const (
	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"
	ProviderDoubao = "doubao"
	ProviderCustom = "custom"
	ProviderOllama = "ollama"
)

// Default models and endpoints per provider.
const (
	DefaultOpenAIModel  = "gpt-4o-mini"
	DefaultGeminiModel  = "gemini-2.0-flash"
	DefaultDoubaoModel  = "doubao-seed-1.6-flash"
	DefaultOllamaModel  = "llama3.2"
	DefaultOpenAIURL    = "https://api.openai.com/v1"
	DefaultDoubaoURL    = "https://ark.cn-beijing.volces.com/api/v3"
	DefaultGeminiURL    = "https://generativelanguage.googleapis.com/v1beta"
	DefaultOllamaURL    = "http://localhost:11434"
	chatCompletionsPath = "/chat/completions"
)

// Config selects and authenticates an AI provider.
type Config struct {
	Provider string
	Model    string
	APIKey   string
	BaseURL  string
}

// Normalize fills defaults and repairs obviously mismatched settings: an
// unknown provider becomes gemini, a model belonging to another provider is
// replaced by the provider default, and custom base URLs lose a trailing
// /chat/completions and slash.
func (c Config) Normalize() Config {
	switch c.Provider {
	case ProviderOpenAI, ProviderGemini, ProviderDoubao, ProviderCustom, ProviderOllama:
	default:
		c.Provider = ProviderGemini
	}
	c.APIKey = strings.TrimSpace(c.APIKey)
	c.Model = normalizeModel(c.Provider, strings.TrimSpace(c.Model))

	switch c.Provider {
	case ProviderCustom:
		c.BaseURL = normalizeBaseURL(c.BaseURL)
	case ProviderDoubao:
		c.BaseURL = DefaultDoubaoURL
	case ProviderOpenAI:
		c.BaseURL = DefaultOpenAIURL
	case ProviderGemini:
		c.BaseURL = DefaultGeminiURL
	case ProviderOllama:
		c.BaseURL = normalizeBaseURL(c.BaseURL)
		if c.BaseURL == "" {
			c.BaseURL = DefaultOllamaURL
		}
	}
	return c
}

// Check reports missing credentials or settings for the configured
// provider. It is run before any request is attempted.
func (c Config) Check() error {
	if c.APIKey == "" && c.Provider != ProviderOllama {
		return &AuthError{Provider: c.Provider, Msg: "missing API key, add one in settings"}
	}
	if c.Model == "" {
		return &ConfigError{Provider: c.Provider, Msg: "missing model, add one in settings"}
	}
	if c.Provider == ProviderCustom && c.BaseURL == "" {
		return &ConfigError{Provider: c.Provider, Msg: "missing API base URL for custom provider"}
	}
	return nil
}

func defaultModel(provider string) string {
	switch provider {
	case ProviderOpenAI:
		return DefaultOpenAIModel
	case ProviderGemini:
		return DefaultGeminiModel
	case ProviderDoubao:
		return DefaultDoubaoModel
	case ProviderOllama:
		return DefaultOllamaModel
	}
	return ""
}

func normalizeModel(provider, model string) string {
	if model == "" {
		return defaultModel(provider)
	}
	switch provider {
	case ProviderGemini:
		if !strings.HasPrefix(model, "gemini-") {
			return defaultModel(provider)
		}
	case ProviderOpenAI:
		if strings.HasPrefix(model, "gemini-") {
			return defaultModel(provider)
		}
	case ProviderDoubao:
		if !strings.HasPrefix(model, "doubao-") {
			return defaultModel(provider)
		}
	}
	return model
}

func normalizeBaseURL(baseURL string) string {
	s := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	s = strings.TrimSuffix(s, chatCompletionsPath)
	return strings.TrimRight(s, "/")
}
