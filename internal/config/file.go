package config

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// DefaultFilePath returns ~/.config/tabgruppen/config.yaml.
func DefaultFilePath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "tabgruppen", "config.yaml"), nil
}

// ReadFile parses a YAML settings file. Only the keys present in the file
// are returned, so importing it leaves other stored settings alone.
func ReadFile(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var values map[string]any
	if err := yaml.Unmarshal(data, &values); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return values, nil
}

// Import stores the settings found in the YAML file at path and returns how
// many keys it set. A missing file is not an error.
func Import(ctx context.Context, s *Store, path string) (int, error) {
	values, err := ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	if err := s.SetAll(ctx, values); err != nil {
		return 0, fmt.Errorf("import %s: %w", path, err)
	}
	return len(values), nil
}

// WriteFile writes s as YAML to path, creating parent directories.
func WriteFile(path string, s Settings) error {
	data, err := yaml.Marshal(s)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

// Encode writes s as YAML to w. The API key is masked down to its last
// four characters.
func Encode(w io.Writer, s Settings) error {
	if key := s.APIKey; key != "" {
		s.APIKey = "****"
		if len(key) > 8 {
			s.APIKey += key[len(key)-4:]
		}
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(s); err != nil {
		return err
	}
	return enc.Close()
}
