package ai

import (
	"errors"
	"fmt"
)

// AuthError means the provider credentials are missing or were rejected.
// Retrying cannot fix it.
type AuthError struct {
	Provider string
	Msg      string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("%s: auth: %s", e.Provider, e.Msg)
}

// ConfigError means the provider is missing a model or endpoint.
type ConfigError struct {
	Provider string
	Msg      string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("%s: config: %s", e.Provider, e.Msg)
}

// ProviderError is a transient failure talking to the provider: a non-2xx
// status, an empty payload, or content that is not valid JSON.
type ProviderError struct {
	Provider   string
	StatusCode int // 0 when no HTTP response was received
	Msg        string
	Err        error
}

func (e *ProviderError) Error() string {
	msg := e.Msg
	if e.StatusCode != 0 {
		msg = fmt.Sprintf("HTTP %d: %s", e.StatusCode, msg)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Provider, msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Provider, msg)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// ValidationError means a well-formed JSON response failed shape or enum
// checks. Re-prompting is the only remedy, so it is retried.
type ValidationError struct {
	Err error
}

func (e *ValidationError) Error() string {
	return "invalid response: " + e.Err.Error()
}

func (e *ValidationError) Unwrap() error { return e.Err }

// Invalid wraps err as a ValidationError.
func Invalid(err error) error {
	if err == nil {
		return nil
	}
	var ve *ValidationError
	if errors.As(err, &ve) {
		return err
	}
	return &ValidationError{Err: err}
}

// Invalidf formats a ValidationError.
func Invalidf(format string, args ...any) error {
	return &ValidationError{Err: fmt.Errorf(format, args...)}
}

// Retryable reports whether another attempt might succeed.
func Retryable(err error) bool {
	var (
		ae *AuthError
		ce *ConfigError
	)
	if errors.As(err, &ae) || errors.As(err, &ce) {
		return false
	}
	var (
		pe *ProviderError
		ve *ValidationError
	)
	return errors.As(err, &pe) || errors.As(err, &ve)
}
