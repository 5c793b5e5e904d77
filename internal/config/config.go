package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Defaults for an unconfigured service.
const (
	DefaultAddr         = ":8080"
	DefaultModel        = "o200k_base"
	DefaultWorkers      = 3
	DefaultHubEndpoint  = "https://huggingface.co"
	DefaultCacheDir     = "~/.cache/tokenizerd"
	DefaultHubRateLimit = 5
	DefaultMaxBodyBytes = 1 << 20
)

// Config holds runtime parameters for the service.
type Config struct {
	Addr string `json:"addr" yaml:"addr" toml:"addr"`

	DefaultModel string   `json:"default_model" yaml:"default_model" toml:"default_model"`
	Preload      []string `json:"preload" yaml:"preload" toml:"preload"`
	Workers      int      `json:"workers" yaml:"workers" toml:"workers"`

	TiktokenOffline bool    `json:"tiktoken_offline" yaml:"tiktoken_offline" toml:"tiktoken_offline"`
	TokenizerDir    string  `json:"tokenizer_dir" yaml:"tokenizer_dir" toml:"tokenizer_dir"`
	HubEndpoint     string  `json:"hub_endpoint" yaml:"hub_endpoint" toml:"hub_endpoint"`
	HubToken        string  `json:"hub_token" yaml:"hub_token" toml:"hub_token"`
	HubRevision     string  `json:"hub_revision" yaml:"hub_revision" toml:"hub_revision"`
	HubDisabled     bool    `json:"hub_disabled" yaml:"hub_disabled" toml:"hub_disabled"`
	HubRateLimit    float64 `json:"hub_rate_limit" yaml:"hub_rate_limit" toml:"hub_rate_limit"`
	HubTimeoutSec   int     `json:"hub_timeout_seconds" yaml:"hub_timeout_seconds" toml:"hub_timeout_seconds"`
	CacheDir        string  `json:"cache_dir" yaml:"cache_dir" toml:"cache_dir"`

	MaxBodyBytes int64 `json:"max_body_bytes" yaml:"max_body_bytes" toml:"max_body_bytes"`
	CORS         CORS  `json:"cors" yaml:"cors" toml:"cors"`

	LogLevel     string `json:"log_level" yaml:"log_level" toml:"log_level"`
	LogFormat    string `json:"log_format" yaml:"log_format" toml:"log_format"`
	LogFile      string `json:"log_file" yaml:"log_file" toml:"log_file"`
	HTTPLogLevel string `json:"http_log_level" yaml:"http_log_level" toml:"http_log_level"`
}

// CORS configures the optional CORS middleware.
type CORS struct {
	Enabled bool     `json:"enabled" yaml:"enabled" toml:"enabled"`
	Origins []string `json:"origins" yaml:"origins" toml:"origins"`
	Methods []string `json:"methods" yaml:"methods" toml:"methods"`
	Headers []string `json:"headers" yaml:"headers" toml:"headers"`
}

// Defaults returns the configuration used when nothing is set.
func Defaults() Config {
	return Config{
		Addr:         DefaultAddr,
		DefaultModel: DefaultModel,
		Workers:      DefaultWorkers,
		HubEndpoint:  DefaultHubEndpoint,
		HubRateLimit: DefaultHubRateLimit,
		CacheDir:     DefaultCacheDir,
		MaxBodyBytes: DefaultMaxBodyBytes,
		CORS: CORS{
			Methods: []string{"GET", "POST", "OPTIONS"},
			Headers: []string{"Content-Type", "Authorization"},
		},
		LogLevel:     "info",
		LogFormat:    "json",
		HTTPLogLevel: "info",
	}
}

// Load reads a configuration file based on its extension over Defaults.
// Keys absent from the file keep their default value.
// Supports: .yaml/.yml, .json, .toml
func Load(path string) (Config, error) {
	cfg := Defaults()
	if path == "" {
		return cfg, fmt.Errorf("empty config path")
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(b, &cfg)
	case ".json":
		err = json.Unmarshal(b, &cfg)
	case ".toml":
		err = toml.Unmarshal(b, &cfg)
	default:
		return cfg, fmt.Errorf("unsupported config extension: %s", ext)
	}
	if err != nil {
		return cfg, fmt.Errorf("parse %s: %w", path, err)
	}
	return cfg, nil
}

// ApplyEnv overlays environment variables read through lookup (os.LookupEnv
// in production). PRELOAD_TOKENIZERS, PORT and HF_TOKEN are honored for
// compatibility with existing deployments; TOKENIZERD_* names win over them.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	get := func(names ...string) (string, bool) {
		for _, n := range names {
			if v, ok := lookup(n); ok && strings.TrimSpace(v) != "" {
				return strings.TrimSpace(v), true
			}
		}
		return "", false
	}

	if v, ok := get("TOKENIZERD_ADDR"); ok {
		c.Addr = v
	} else if v, ok := get("PORT"); ok {
		c.Addr = ":" + v
	}
	if v, ok := get("TOKENIZERD_DEFAULT_MODEL"); ok {
		c.DefaultModel = v
	}
	if v, ok := get("TOKENIZERD_PRELOAD", "PRELOAD_TOKENIZERS"); ok {
		c.Preload = SplitCSV(v)
	}
	if v, ok := get("TOKENIZERD_TOKENIZER_DIR"); ok {
		c.TokenizerDir = v
	}
	if v, ok := get("TOKENIZERD_HUB_ENDPOINT"); ok {
		c.HubEndpoint = v
	}
	if v, ok := get("TOKENIZERD_HUB_TOKEN", "HF_TOKEN"); ok {
		c.HubToken = v
	}
	if v, ok := get("TOKENIZERD_HUB_REVISION"); ok {
		c.HubRevision = v
	}
	if v, ok := get("TOKENIZERD_CACHE_DIR"); ok {
		c.CacheDir = v
	}
	if v, ok := get("TOKENIZERD_LOG_LEVEL"); ok {
		c.LogLevel = v
	}
	if v, ok := get("TOKENIZERD_LOG_FORMAT"); ok {
		c.LogFormat = v
	}
	if v, ok := get("TOKENIZERD_LOG_FILE"); ok {
		c.LogFile = v
	}
	if v, ok := get("TOKENIZERD_HTTP_LOG_LEVEL"); ok {
		c.HTTPLogLevel = v
	}
	if v, ok := get("TOKENIZERD_CORS_ORIGINS"); ok {
		c.CORS.Enabled = true
		c.CORS.Origins = SplitCSV(v)
	}

	var err error
	if v, ok := get("TOKENIZERD_WORKERS"); ok {
		if c.Workers, err = strconv.Atoi(v); err != nil {
			return fmt.Errorf("TOKENIZERD_WORKERS: %w", err)
		}
	}
	if v, ok := get("TOKENIZERD_HUB_RATE_LIMIT"); ok {
		if c.HubRateLimit, err = strconv.ParseFloat(v, 64); err != nil {
			return fmt.Errorf("TOKENIZERD_HUB_RATE_LIMIT: %w", err)
		}
	}
	if v, ok := get("TOKENIZERD_HUB_TIMEOUT_SECONDS"); ok {
		if c.HubTimeoutSec, err = strconv.Atoi(v); err != nil {
			return fmt.Errorf("TOKENIZERD_HUB_TIMEOUT_SECONDS: %w", err)
		}
	}
	if v, ok := get("TOKENIZERD_MAX_BODY_BYTES"); ok {
		if c.MaxBodyBytes, err = strconv.ParseInt(v, 10, 64); err != nil {
			return fmt.Errorf("TOKENIZERD_MAX_BODY_BYTES: %w", err)
		}
	}
	if v, ok := get("TOKENIZERD_TIKTOKEN_OFFLINE"); ok {
		if c.TiktokenOffline, err = strconv.ParseBool(v); err != nil {
			return fmt.Errorf("TOKENIZERD_TIKTOKEN_OFFLINE: %w", err)
		}
	}
	if v, ok := get("TOKENIZERD_HUB_DISABLED"); ok {
		if c.HubDisabled, err = strconv.ParseBool(v); err != nil {
			return fmt.Errorf("TOKENIZERD_HUB_DISABLED: %w", err)
		}
	}
	return nil
}

// Validate reports the first invalid setting.
func (c Config) Validate() error {
	switch {
	case c.Addr == "":
		return fmt.Errorf("addr must not be empty")
	case strings.TrimSpace(c.DefaultModel) == "":
		return fmt.Errorf("default_model must not be empty")
	case c.Workers < 1:
		return fmt.Errorf("workers must be at least 1, got %d", c.Workers)
	case c.HubRateLimit < 0:
		return fmt.Errorf("hub_rate_limit must not be negative")
	case c.HubTimeoutSec < 0:
		return fmt.Errorf("hub_timeout_seconds must not be negative")
	}
	switch c.LogFormat {
	case "", "json", "console":
	default:
		return fmt.Errorf("log_format must be json or console, got %q", c.LogFormat)
	}
	return nil
}

// SplitCSV splits a comma-separated list, trimming blanks and dropping empty
// items.
func SplitCSV(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
