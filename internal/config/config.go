// Package config provides layered configuration loading.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"
)

// DefaultBaseURL is the production API endpoint.
const DefaultBaseURL = "https://api.matmarket.app"

// Config holds the resolved configuration.
type Config struct {
	// API settings
	BaseURL  string `json:"base_url"`
	Language string `json:"language"`

	// List behavior
	PageSize         int `json:"page_size"`
	SearchDebounceMS int `json:"search_debounce_ms"`

	// Cache settings
	CacheDir     string `json:"cache_dir"`
	CacheEnabled bool   `json:"cache_enabled"`

	// Output settings
	Format string `json:"format"`

	// Behavior preferences (persisted via config set, overridable by flags)
	Stats   *bool `json:"stats,omitempty"`
	Verbose *int  `json:"verbose,omitempty"`

	// Sources tracks where each value came from (for debugging).
	Sources map[string]string `json:"-"`
}

// Source indicates where a config value came from.
type Source string

const (
	SourceDefault Source = "default"
	SourceSystem  Source = "system"
	SourceGlobal  Source = "global"
	SourceRepo    Source = "repo"
	SourceLocal   Source = "local"
	SourceEnv     Source = "env"
	SourceFlag    Source = "flag"
)

// Languages are the supported content languages.
var Languages = []string{"en", "ar"}

// Keys lists every settable key, in display order.
var Keys = []string{
	"base_url",
	"language",
	"page_size",
	"search_debounce_ms",
	"cache_dir",
	"cache_enabled",
	"format",
	"stats",
	"verbose",
}

// FlagOverrides holds command-line flag values.
type FlagOverrides struct {
	BaseURL  string
	Language string
	PageSize int
	CacheDir string
	Format   string
}

// Default returns the default configuration.
func Default() *Config {
	cacheDir := os.Getenv("XDG_CACHE_HOME")
	if cacheDir == "" {
		home, _ := os.UserHomeDir()
		cacheDir = filepath.Join(home, ".cache")
	}

	cfg := &Config{
		BaseURL:          DefaultBaseURL,
		Language:         "en",
		PageSize:         10,
		SearchDebounceMS: 400,
		CacheDir:         filepath.Join(cacheDir, "market"),
		CacheEnabled:     true,
		Format:           "auto",
		Sources:          make(map[string]string),
	}
	for _, k := range Keys {
		cfg.Sources[k] = string(SourceDefault)
	}
	delete(cfg.Sources, "stats")
	delete(cfg.Sources, "verbose")
	return cfg
}

// SearchDebounce returns the search quiet period.
func (c *Config) SearchDebounce() time.Duration {
	return time.Duration(c.SearchDebounceMS) * time.Millisecond
}

// Load loads configuration from all sources with proper precedence.
// Precedence: flags > env > local > repo > global > system > defaults
func Load(overrides FlagOverrides) (*Config, error) {
	cfg := Default()

	loadFromFile(cfg, systemConfigPath(), SourceSystem)
	loadFromFile(cfg, globalConfigPath(), SourceGlobal)

	repoPath := repoConfigPath()
	if repoPath != "" {
		loadFromFile(cfg, repoPath, SourceRepo)
	}
	for _, path := range localConfigPaths(repoPath) {
		loadFromFile(cfg, path, SourceLocal)
	}

	LoadFromEnv(cfg)
	ApplyOverrides(cfg, overrides)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks values that cannot be corrected silently.
func (c *Config) Validate() error {
	if !slices.Contains(Languages, c.Language) {
		return fmt.Errorf("language %q from %s: must be one of %s", c.Language, c.Sources["language"], strings.Join(Languages, ", "))
	}
	if c.PageSize < 1 || c.PageSize > 100 {
		return fmt.Errorf("page_size %d from %s: must be between 1 and 100", c.PageSize, c.Sources["page_size"])
	}
	if c.SearchDebounceMS < 0 {
		return fmt.Errorf("search_debounce_ms %d from %s: must not be negative", c.SearchDebounceMS, c.Sources["search_debounce_ms"])
	}
	return nil
}

func loadFromFile(cfg *Config, path string, source Source) {
	data, err := os.ReadFile(path) //nolint:gosec // G304: Path is from trusted config locations
	if err != nil {
		return // File doesn't exist, skip
	}

	var fileCfg map[string]any
	if err := json.Unmarshal(data, &fileCfg); err != nil {
		fmt.Fprintf(os.Stderr, "warning: skipping malformed config at %s: %v\n", path, err)
		return
	}

	// base_url decides where the token is sent. Local/repo config must not
	// set it: a config in a cloned repo could redirect authenticated traffic.
	untrusted := source == SourceLocal || source == SourceRepo

	if v, ok := fileCfg["base_url"].(string); ok && v != "" {
		if untrusted {
			fmt.Fprintf(os.Stderr, "warning: ignoring base_url %q from %s config at %s (authority keys are not trusted from local/repo config)\n", v, source, path)
		} else {
			cfg.BaseURL = NormalizeBaseURL(v)
			cfg.Sources["base_url"] = string(source)
		}
	}
	if v, ok := fileCfg["language"].(string); ok && v != "" {
		cfg.Language = strings.ToLower(v)
		cfg.Sources["language"] = string(source)
	}
	if v, ok := getInt(fileCfg, "page_size"); ok {
		cfg.PageSize = v
		cfg.Sources["page_size"] = string(source)
	}
	if v, ok := getInt(fileCfg, "search_debounce_ms"); ok {
		cfg.SearchDebounceMS = v
		cfg.Sources["search_debounce_ms"] = string(source)
	}
	if v, ok := fileCfg["cache_dir"].(string); ok && v != "" {
		cfg.CacheDir = v
		cfg.Sources["cache_dir"] = string(source)
	}
	if v, ok := fileCfg["cache_enabled"].(bool); ok {
		cfg.CacheEnabled = v
		cfg.Sources["cache_enabled"] = string(source)
	}
	if v, ok := fileCfg["format"].(string); ok && v != "" {
		cfg.Format = v
		cfg.Sources["format"] = string(source)
	}
	if v, ok := fileCfg["stats"].(bool); ok {
		cfg.Stats = &v
		cfg.Sources["stats"] = string(source)
	}
	if v, ok := getInt(fileCfg, "verbose"); ok && v >= 0 && v <= 2 {
		cfg.Verbose = &v
		cfg.Sources["verbose"] = string(source)
	}
}

// getInt extracts a whole number that may be encoded as a JSON number or string.
func getInt(m map[string]any, key string) (int, bool) {
	switch v := m[key].(type) {
	case float64:
		if v != float64(int(v)) {
			return 0, false
		}
		return int(v), true
	case string:
		n, err := strconv.Atoi(v)
		return n, err == nil
	default:
		return 0, false
	}
}

// LoadFromEnv loads configuration from environment variables.
func LoadFromEnv(cfg *Config) {
	if v := os.Getenv("MARKET_BASE_URL"); v != "" {
		cfg.BaseURL = NormalizeBaseURL(v)
		cfg.Sources["base_url"] = string(SourceEnv)
	}
	if v := os.Getenv("MARKET_LANGUAGE"); v != "" {
		cfg.Language = strings.ToLower(v)
		cfg.Sources["language"] = string(SourceEnv)
	}
	if v := os.Getenv("MARKET_PAGE_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.PageSize = n
			cfg.Sources["page_size"] = string(SourceEnv)
		}
	}
	if v := os.Getenv("MARKET_SEARCH_DEBOUNCE_MS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.SearchDebounceMS = n
			cfg.Sources["search_debounce_ms"] = string(SourceEnv)
		}
	}
	if v := os.Getenv("MARKET_CACHE_DIR"); v != "" {
		cfg.CacheDir = v
		cfg.Sources["cache_dir"] = string(SourceEnv)
	}
	if v := os.Getenv("MARKET_CACHE_ENABLED"); v != "" {
		if b, ok := parseEnvBool(v); ok {
			cfg.CacheEnabled = b
			cfg.Sources["cache_enabled"] = string(SourceEnv)
		}
	}
	if v := os.Getenv("MARKET_FORMAT"); v != "" {
		cfg.Format = v
		cfg.Sources["format"] = string(SourceEnv)
	}
	if v := os.Getenv("MARKET_STATS"); v != "" {
		if b, ok := parseEnvBool(v); ok {
			cfg.Stats = &b
			cfg.Sources["stats"] = string(SourceEnv)
		}
	}
}

// parseEnvBool parses a boolean environment variable strictly.
// Unrecognized values are ignored to preserve three-state pointer semantics.
func parseEnvBool(v string) (bool, bool) {
	switch strings.ToLower(v) {
	case "true", "1", "yes":
		return true, true
	case "false", "0", "no":
		return false, true
	default:
		return false, false
	}
}

// ApplyOverrides applies non-empty flag overrides to cfg.
func ApplyOverrides(cfg *Config, o FlagOverrides) {
	if o.BaseURL != "" {
		cfg.BaseURL = NormalizeBaseURL(o.BaseURL)
		cfg.Sources["base_url"] = string(SourceFlag)
	}
	if o.Language != "" {
		cfg.Language = strings.ToLower(o.Language)
		cfg.Sources["language"] = string(SourceFlag)
	}
	if o.PageSize > 0 {
		cfg.PageSize = o.PageSize
		cfg.Sources["page_size"] = string(SourceFlag)
	}
	if o.CacheDir != "" {
		cfg.CacheDir = o.CacheDir
		cfg.Sources["cache_dir"] = string(SourceFlag)
	}
	if o.Format != "" {
		cfg.Format = o.Format
		cfg.Sources["format"] = string(SourceFlag)
	}
}

// Value returns the string form of key for display.
func (c *Config) Value(key string) (string, bool) {
	switch key {
	case "base_url":
		return c.BaseURL, true
	case "language":
		return c.Language, true
	case "page_size":
		return strconv.Itoa(c.PageSize), true
	case "search_debounce_ms":
		return strconv.Itoa(c.SearchDebounceMS), true
	case "cache_dir":
		return c.CacheDir, true
	case "cache_enabled":
		return strconv.FormatBool(c.CacheEnabled), true
	case "format":
		return c.Format, true
	case "stats":
		if c.Stats == nil {
			return "", true
		}
		return strconv.FormatBool(*c.Stats), true
	case "verbose":
		if c.Verbose == nil {
			return "", true
		}
		return strconv.Itoa(*c.Verbose), true
	default:
		return "", false
	}
}

// Path helpers

func systemConfigPath() string {
	return "/etc/market/config.json"
}

func globalConfigPath() string {
	return filepath.Join(GlobalConfigDir(), "config.json")
}

// GlobalConfigPath returns the path written by config set.
func GlobalConfigPath() string {
	return globalConfigPath()
}

func repoConfigPath() string {
	// Walk up to find .git, then look for .market/config.json.
	// Bounded by $HOME: outside it no repo config is trusted.
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}
	resolved, err := filepath.EvalSymlinks(dir)
	if err != nil {
		return ""
	}
	dir = resolved
	home, _ := os.UserHomeDir()
	if resolved, err := filepath.EvalSymlinks(home); err == nil {
		home = resolved
	}

	if home != "" && !isInsideDir(dir, home) {
		return ""
	}

	for {
		if _, err := os.Stat(filepath.Join(dir, ".git")); err == nil {
			cfgPath := filepath.Join(dir, ".market", "config.json")
			if _, err := os.Stat(cfgPath); err == nil {
				return cfgPath
			}
			return ""
		}

		parent := filepath.Dir(dir)
		if parent == dir || (home != "" && dir == home) {
			return ""
		}
		dir = parent
	}
}

// isInsideDir reports whether child is the same as or a subdirectory of parent.
func isInsideDir(child, parent string) bool {
	if child == parent {
		return true
	}
	prefix := parent
	if !strings.HasSuffix(prefix, string(filepath.Separator)) {
		prefix += string(filepath.Separator)
	}
	return strings.HasPrefix(child, prefix)
}

// localConfigPaths returns .market/config.json paths within the trust
// boundary, furthest ancestor first, excluding the repo config.
//
// Trust boundary:
//   - Inside a git repo: only paths at or below the repo root
//   - Outside a git repo: only the current working directory
func localConfigPaths(repoConfigPath string) []string {
	dir, err := os.Getwd()
	if err != nil {
		return nil
	}
	resolved, err := filepath.EvalSymlinks(dir)
	if err != nil {
		return nil
	}
	dir = resolved

	boundary := dir
	if repoConfigPath != "" {
		boundary = filepath.Dir(filepath.Dir(repoConfigPath))
	}
	if resolved, err := filepath.EvalSymlinks(boundary); err == nil {
		boundary = resolved
	}

	var paths []string
	for {
		cfgPath := filepath.Join(dir, ".market", "config.json")
		if _, err := os.Stat(cfgPath); err == nil && cfgPath != repoConfigPath {
			paths = append(paths, cfgPath)
		}

		parent := filepath.Dir(dir)
		if parent == dir || dir == boundary {
			break
		}
		dir = parent
	}

	slices.Reverse(paths)
	return paths
}

// GlobalConfigDir returns the global config directory path.
func GlobalConfigDir() string {
	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		home, _ := os.UserHomeDir()
		configDir = filepath.Join(home, ".config")
	}
	return filepath.Join(configDir, "market")
}

// NormalizeBaseURL ensures consistent URL format (no trailing slash).
func NormalizeBaseURL(url string) string {
	return strings.TrimSuffix(url, "/")
}
