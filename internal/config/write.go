package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
)

// SetValue validates value for key and writes it into the config file at
// path, preserving any other keys already there.
func SetValue(path, key, value string) error {
	if !slices.Contains(Keys, key) {
		return fmt.Errorf("unknown config key %q (valid: %s)", key, strings.Join(Keys, ", "))
	}

	typed, err := parseValue(key, value)
	if err != nil {
		return err
	}

	current := map[string]any{}
	data, err := os.ReadFile(path) //nolint:gosec // G304: path is the user's own config file
	switch {
	case err == nil:
		if err := json.Unmarshal(data, &current); err != nil {
			return fmt.Errorf("parsing %s: %w", path, err)
		}
	case !os.IsNotExist(err):
		return fmt.Errorf("reading %s: %w", path, err)
	}

	current[key] = typed
	return writeJSONAtomic(path, current)
}

// UnsetValue removes key from the config file at path.
func UnsetValue(path, key string) error {
	data, err := os.ReadFile(path) //nolint:gosec // G304: path is the user's own config file
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}
	current := map[string]any{}
	if err := json.Unmarshal(data, &current); err != nil {
		return fmt.Errorf("parsing %s: %w", path, err)
	}
	delete(current, key)
	return writeJSONAtomic(path, current)
}

func parseValue(key, value string) (any, error) {
	switch key {
	case "page_size", "search_debounce_ms", "verbose":
		n, err := strconv.Atoi(value)
		if err != nil {
			return nil, fmt.Errorf("%s must be a whole number: %q", key, value)
		}
		if key == "page_size" && (n < 1 || n > 100) {
			return nil, fmt.Errorf("page_size must be between 1 and 100")
		}
		if key == "verbose" && (n < 0 || n > 2) {
			return nil, fmt.Errorf("verbose must be 0, 1, or 2")
		}
		if n < 0 {
			return nil, fmt.Errorf("%s must not be negative", key)
		}
		return n, nil
	case "cache_enabled", "stats":
		b, ok := parseEnvBool(value)
		if !ok {
			return nil, fmt.Errorf("%s must be true or false: %q", key, value)
		}
		return b, nil
	case "language":
		v := strings.ToLower(value)
		if !slices.Contains(Languages, v) {
			return nil, fmt.Errorf("language must be one of %s", strings.Join(Languages, ", "))
		}
		return v, nil
	case "base_url":
		if !strings.HasPrefix(value, "http://") && !strings.HasPrefix(value, "https://") {
			return nil, fmt.Errorf("base_url must start with http:// or https://")
		}
		return NormalizeBaseURL(value), nil
	default:
		return value, nil
	}
}

func writeJSONAtomic(path string, v any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("creating config dir: %w", err)
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".config-*.json")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(append(data, '\n')); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
