// Package config provides configuration management for the ConnectX-7 docs
// MCP server. Settings load from defaults, environment variables, an
// optional YAML file, and command-line flags, in increasing precedence.
// The documentation source table is configuration data: it can be replaced
// without touching retrieval logic.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/nvnetdocs/connectx7-docs-mcp-server/internal/registry"
)

// envPrefix prefixes every environment variable read by this package.
const envPrefix = "CX7_DOCS_"

// SourceConfig is one entry of the documentation source table.
type SourceConfig struct {
	ID       string `mapstructure:"id"`
	URL      string `mapstructure:"url"`
	Title    string `mapstructure:"title"`
	Category string `mapstructure:"category"`
}

// Config holds all settings for the server.
type Config struct {
	// Server settings
	LogLevel  string // debug, info, warn, error (default: info)
	Transport string // stdio, sse, streamablehttp (default: stdio)
	Host      string // bind host for network transports
	Port      int    // bind port for network transports

	// Cache settings
	CacheDir          string         // on-disk cache location
	DefaultTTLSeconds int            // global cache TTL; zero disables caching
	TTLOverrides      map[string]int // per-source TTL overrides in seconds

	// Fetch settings
	FetchTimeout  int // per-request timeout in seconds (default: 10)
	MaxRetries    int // retries after the initial attempt (default: 2)
	MaxConcurrent int // concurrent fetch bound (default: 5)

	// Search settings
	MaxSearchResults int // result cap for search queries (default: 10)
	SnippetLength    int // snippet window in bytes (default: 200)

	// Source table
	Sources []SourceConfig
}

// NewConfig returns a Config populated with defaults, including the built-in
// NVIDIA networking source table.
func NewConfig() *Config {
	return &Config{
		LogLevel:  "info",
		Transport: "stdio",
		Host:      "127.0.0.1",
		Port:      8080,

		CacheDir:          defaultCacheDir(),
		DefaultTTLSeconds: 24 * 60 * 60,
		TTLOverrides:      map[string]int{},

		FetchTimeout:  10,
		MaxRetries:    2,
		MaxConcurrent: 5,

		MaxSearchResults: 10,
		SnippetLength:    200,

		Sources: DefaultSources(),
	}
}

// DefaultSources returns the built-in NVIDIA/Mellanox documentation table.
func DefaultSources() []SourceConfig {
	return []SourceConfig{
		{ID: "connectx7", URL: "https://docs.nvidia.com/networking/display/ConnectX7VPI", Title: "ConnectX-7 User Manual", Category: "primary"},
		{ID: "doca", URL: "https://docs.nvidia.com/doca/sdk", Title: "DOCA SDK", Category: "primary"},
		{ID: "vma", URL: "https://docs.nvidia.com/networking/display/VMAv98", Title: "VMA User Manual", Category: "primary"},
		{ID: "rdma", URL: "https://docs.nvidia.com/networking/display/RDMAAwareProgrammingv17", Title: "RDMA Programming Guide", Category: "primary"},
		{ID: "mlnx-ofed", URL: "https://docs.nvidia.com/networking/display/MLNXOFEDv24100700", Title: "MLNX_OFED Documentation", Category: "driver"},
		{ID: "mlx5-kernel", URL: "https://www.kernel.org/doc/html/latest/networking/device_drivers/ethernet/mellanox/mlx5/index.html", Title: "mlx5 Kernel Driver", Category: "driver"},
		{ID: "dpdk-mlx5", URL: "https://doc.dpdk.org/guides/platform/mlx5.html", Title: "DPDK mlx5 Driver", Category: "driver"},
		{ID: "doca-downloads", URL: "https://developer.nvidia.com/networking/doca", Title: "DOCA Downloads", Category: "tools"},
		{ID: "firmware-downloads", URL: "https://network.nvidia.com/support/firmware/firmware-downloads/", Title: "Firmware Downloads", Category: "tools"},
		{ID: "networking-forums", URL: "https://forums.developer.nvidia.com/c/networking/", Title: "NVIDIA Networking Forums", Category: "community"},
	}
}

// defaultCacheDir places the cache under the OS user cache directory.
func defaultCacheDir() string {
	base, err := os.UserCacheDir()
	if err != nil {
		return ".cache/connectx7-docs-mcp"
	}
	return filepath.Join(base, "connectx7-docs-mcp")
}

// Load builds configuration from environment variables over defaults.
func Load() (*Config, error) {
	cfg := NewConfig()
	loadFromEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFromFile builds configuration from a YAML file over environment
// variables over defaults.
func LoadFromFile(configPath string) (*Config, error) {
	cfg := NewConfig()
	loadFromEnv(cfg)

	v := viper.New()
	v.SetConfigFile(configPath)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := applyFile(cfg, v); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyFile overrides cfg with values present in the config file.
func applyFile(cfg *Config, v *viper.Viper) error {
	if v.IsSet("log_level") {
		cfg.LogLevel = v.GetString("log_level")
	}
	if v.IsSet("transport") {
		cfg.Transport = v.GetString("transport")
	}
	if v.IsSet("host") {
		cfg.Host = v.GetString("host")
	}
	if v.IsSet("port") {
		cfg.Port = v.GetInt("port")
	}
	if v.IsSet("cache_dir") {
		cfg.CacheDir = v.GetString("cache_dir")
	}
	if v.IsSet("default_ttl_seconds") {
		cfg.DefaultTTLSeconds = v.GetInt("default_ttl_seconds")
	}
	if v.IsSet("ttl_overrides") {
		overrides := make(map[string]int)
		if err := v.UnmarshalKey("ttl_overrides", &overrides); err != nil {
			return fmt.Errorf("invalid ttl_overrides: %w", err)
		}
		cfg.TTLOverrides = overrides
	}
	if v.IsSet("fetch_timeout") {
		cfg.FetchTimeout = v.GetInt("fetch_timeout")
	}
	if v.IsSet("max_retries") {
		cfg.MaxRetries = v.GetInt("max_retries")
	}
	if v.IsSet("max_concurrent") {
		cfg.MaxConcurrent = v.GetInt("max_concurrent")
	}
	if v.IsSet("max_search_results") {
		cfg.MaxSearchResults = v.GetInt("max_search_results")
	}
	if v.IsSet("snippet_length") {
		cfg.SnippetLength = v.GetInt("snippet_length")
	}
	if v.IsSet("sources") {
		var sources []SourceConfig
		if err := v.UnmarshalKey("sources", &sources); err != nil {
			return fmt.Errorf("invalid sources table: %w", err)
		}
		cfg.Sources = sources
	}
	return nil
}

// loadFromEnv overrides cfg with CX7_DOCS_-prefixed environment variables.
func loadFromEnv(cfg *Config) {
	if val := os.Getenv(envPrefix + "LOG_LEVEL"); val != "" {
		cfg.LogLevel = val
	}
	if val := os.Getenv(envPrefix + "TRANSPORT"); val != "" {
		cfg.Transport = val
	}
	if val := os.Getenv(envPrefix + "HOST"); val != "" {
		cfg.Host = val
	}
	if val := os.Getenv(envPrefix + "PORT"); val != "" {
		if intVal, err := strconv.Atoi(val); err == nil {
			cfg.Port = intVal
		}
	}
	if val := os.Getenv(envPrefix + "CACHE_DIR"); val != "" {
		cfg.CacheDir = val
	}
	if val := os.Getenv(envPrefix + "DEFAULT_TTL_SECONDS"); val != "" {
		if intVal, err := strconv.Atoi(val); err == nil {
			cfg.DefaultTTLSeconds = intVal
		}
	}
	if val := os.Getenv(envPrefix + "FETCH_TIMEOUT"); val != "" {
		if intVal, err := strconv.Atoi(val); err == nil {
			cfg.FetchTimeout = intVal
		}
	}
	if val := os.Getenv(envPrefix + "MAX_RETRIES"); val != "" {
		if intVal, err := strconv.Atoi(val); err == nil {
			cfg.MaxRetries = intVal
		}
	}
	if val := os.Getenv(envPrefix + "MAX_CONCURRENT"); val != "" {
		if intVal, err := strconv.Atoi(val); err == nil {
			cfg.MaxConcurrent = intVal
		}
	}
	if val := os.Getenv(envPrefix + "MAX_SEARCH_RESULTS"); val != "" {
		if intVal, err := strconv.Atoi(val); err == nil {
			cfg.MaxSearchResults = intVal
		}
	}
	if val := os.Getenv(envPrefix + "SNIPPET_LENGTH"); val != "" {
		if intVal, err := strconv.Atoi(val); err == nil {
			cfg.SnippetLength = intVal
		}
	}
}

// Validate checks all settings and reports every problem found.
func (c *Config) Validate() error {
	var errs []string

	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Sprintf("invalid log level: %s (must be one of: debug, info, warn, error)", c.LogLevel))
	}

	switch c.Transport {
	case "stdio", "sse", "streamablehttp":
	default:
		errs = append(errs, fmt.Sprintf("invalid transport: %s (must be one of: stdio, sse, streamablehttp)", c.Transport))
	}

	if c.Transport != "stdio" {
		if c.Port <= 0 || c.Port > 65535 {
			errs = append(errs, fmt.Sprintf("port must be in range 1-65535 for network transports, got: %d", c.Port))
		}
		if c.Host == "" {
			errs = append(errs, "host cannot be empty for network transports")
		}
	}

	if c.CacheDir == "" {
		errs = append(errs, "cache_dir cannot be empty")
	}
	if c.DefaultTTLSeconds < 0 {
		errs = append(errs, fmt.Sprintf("default_ttl_seconds cannot be negative, got: %d", c.DefaultTTLSeconds))
	}
	for id, ttl := range c.TTLOverrides {
		if ttl < 0 {
			errs = append(errs, fmt.Sprintf("ttl override for %s cannot be negative, got: %d", id, ttl))
		}
	}

	if c.FetchTimeout <= 0 {
		errs = append(errs, fmt.Sprintf("fetch_timeout must be positive, got: %d", c.FetchTimeout))
	}
	if c.MaxRetries < 0 {
		errs = append(errs, fmt.Sprintf("max_retries cannot be negative, got: %d", c.MaxRetries))
	}
	if c.MaxConcurrent <= 0 {
		errs = append(errs, fmt.Sprintf("max_concurrent must be positive, got: %d", c.MaxConcurrent))
	}
	if c.MaxSearchResults <= 0 {
		errs = append(errs, fmt.Sprintf("max_search_results must be positive, got: %d", c.MaxSearchResults))
	}
	if c.SnippetLength <= 0 {
		errs = append(errs, fmt.Sprintf("snippet_length must be positive, got: %d", c.SnippetLength))
	}

	if len(c.Sources) == 0 {
		errs = append(errs, "source table cannot be empty")
	}
	seen := make(map[string]bool)
	for i, src := range c.Sources {
		if src.ID == "" {
			errs = append(errs, fmt.Sprintf("source %d: id cannot be empty", i))
			continue
		}
		if seen[src.ID] {
			errs = append(errs, fmt.Sprintf("duplicate source id: %s", src.ID))
		}
		seen[src.ID] = true
		if !strings.HasPrefix(src.URL, "http://") && !strings.HasPrefix(src.URL, "https://") {
			errs = append(errs, fmt.Sprintf("source %s: url must start with http:// or https://", src.ID))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

// SourceDescriptors converts the source table into registry descriptors.
func (c *Config) SourceDescriptors() []registry.SourceDescriptor {
	out := make([]registry.SourceDescriptor, len(c.Sources))
	for i, src := range c.Sources {
		out[i] = registry.SourceDescriptor{
			ID:       src.ID,
			URL:      src.URL,
			Title:    src.Title,
			Category: registry.Category(src.Category),
		}
	}
	return out
}

// DefaultTTL returns the global TTL as a duration.
func (c *Config) DefaultTTL() time.Duration {
	return time.Duration(c.DefaultTTLSeconds) * time.Second
}

// TTLOverrideDurations returns the per-source TTL overrides as durations.
func (c *Config) TTLOverrideDurations() map[string]time.Duration {
	out := make(map[string]time.Duration, len(c.TTLOverrides))
	for id, secs := range c.TTLOverrides {
		out[id] = time.Duration(secs) * time.Second
	}
	return out
}

// GetTransportType returns the configured transport name.
func (c *Config) GetTransportType() string {
	return c.Transport
}

// GetPort returns the configured port.
func (c *Config) GetPort() int {
	return c.Port
}

// GetTransportAddress returns host:port for network transports, empty for stdio.
func (c *Config) GetTransportAddress() string {
	if c.Transport == "stdio" {
		return ""
	}
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
