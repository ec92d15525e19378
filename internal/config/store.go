package config

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/lotas/tabgruppen/internal/storage"
)

// Store reads and writes settings in the SQLite settings table, one JSON
// value per key.
type Store struct {
	db *sql.DB
}

// NewStore creates a Store on an open database.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Settings returns the stored settings over Defaults. Stored delays are
// merged field by field.
func (s *Store) Settings(ctx context.Context) (Settings, error) {
	stored, err := storage.AllSettings(ctx, s.db)
	if err != nil {
		return Settings{}, err
	}
	out := Defaults()
	for _, key := range Keys() {
		raw, ok := stored[key]
		if !ok {
			continue
		}
		if err := decodeKey(&out, key, []byte(raw)); err != nil {
			return Settings{}, fmt.Errorf("setting %s: %w", key, err)
		}
	}
	return out, nil
}

// Set stores value under key. Values that are not valid JSON are stored as
// strings. Keys of the form "delays.<name>" update a single delay.
func (s *Store) Set(ctx context.Context, key, value string) error {
	raw := []byte(strings.TrimSpace(value))
	if !json.Valid(raw) {
		raw, _ = json.Marshal(value)
	}

	if name, ok := strings.CutPrefix(key, "delays."); ok {
		current, err := s.Settings(ctx)
		if err != nil {
			return err
		}
		fields, err := jsonFields(current.Delays)
		if err != nil {
			return fmt.Errorf("setting delays: %w", err)
		}
		if _, known := fields[name]; !known {
			return fmt.Errorf("unknown delay %q", name)
		}
		fields[name] = raw
		merged, err := json.Marshal(fields)
		if err != nil {
			return fmt.Errorf("setting delays: %w", err)
		}
		return s.Set(ctx, "delays", string(merged))
	}

	if !isKey(key) {
		return fmt.Errorf("unknown setting %q", key)
	}
	check := Defaults()
	if err := decodeKey(&check, key, raw); err != nil {
		// "12" for a string setting arrives as a JSON number.
		asString, _ := json.Marshal(value)
		if decodeKey(&check, key, asString) != nil {
			return fmt.Errorf("setting %s: %w", key, err)
		}
		raw = asString
	}
	return storage.SetSetting(ctx, s.db, key, string(raw))
}

// Reset removes the stored value of key so its default applies again.
func (s *Store) Reset(ctx context.Context, key string) error {
	if !isKey(key) {
		return fmt.Errorf("unknown setting %q", key)
	}
	return storage.DeleteSetting(ctx, s.db, key)
}

// SetAll stores every key of values, marshalling each value to JSON.
func (s *Store) SetAll(ctx context.Context, values map[string]any) error {
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		raw, err := json.Marshal(values[k])
		if err != nil {
			return fmt.Errorf("setting %s: %w", k, err)
		}
		if err := s.Set(ctx, k, string(raw)); err != nil {
			return err
		}
	}
	return nil
}

// Keys lists the setting names in sorted order.
func Keys() []string {
	fields, err := jsonFields(Defaults())
	if err != nil {
		// Settings is a plain struct of JSON-safe fields.
		panic(fmt.Sprintf("config: settings keys: %v", err))
	}
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// jsonFields returns the top-level JSON fields of v.
func jsonFields(v any) (map[string]json.RawMessage, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, err
	}
	return fields, nil
}

func isKey(key string) bool {
	for _, k := range Keys() {
		if k == key {
			return true
		}
	}
	return false
}

// decodeKey decodes raw into the field of s named key. Nested objects are
// decoded into the existing value, so fields they omit keep their current
// values.
func decodeKey(s *Settings, key string, raw []byte) error {
	var buf bytes.Buffer
	buf.WriteString("{")
	k, _ := json.Marshal(key)
	buf.Write(k)
	buf.WriteString(":")
	buf.Write(raw)
	buf.WriteString("}")

	dec := json.NewDecoder(&buf)
	dec.DisallowUnknownFields()
	return dec.Decode(s)
}
