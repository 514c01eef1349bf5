package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root runtime configuration. Fields map 1:1 to the YAML
// file; environment variables override file values (see applyEnv).
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Security SecurityConfig `yaml:"security"`
	Upstream UpstreamConfig `yaml:"upstream"`
	Pool     PoolConfig     `yaml:"pool"`
	Cache    CacheConfig    `yaml:"cache"`
	Models   ModelsConfig   `yaml:"models"`
}

type ServerConfig struct {
	Host string `yaml:"host"`
	Port string `yaml:"port"`

	// CORSOrigins is a list of allowed origins; "*" allows any.
	CORSOrigins []string `yaml:"cors_origins"`

	RateLimitRPS   int `yaml:"rate_limit_rps"`
	RateLimitBurst int `yaml:"rate_limit_burst"`
}

type SecurityConfig struct {
	// ClientKeys authorize the OpenAI/Gemini surfaces. An empty set
	// disables client auth (insecure mode, logged loudly at startup).
	ClientKeys []string `yaml:"client_keys"`
	// AdminKeys authorize /admin and /stats.
	AdminKeys []string `yaml:"admin_keys"`

	Debug   bool   `yaml:"debug"`
	LogFile string `yaml:"log_file"`
}

type UpstreamConfig struct {
	// BaseURL of the generative language API, without a trailing slash.
	BaseURL string `yaml:"base_url"`
	// ProxyURL optionally routes upstream calls through an HTTP proxy.
	ProxyURL string `yaml:"proxy_url"`

	MaxAttempts        int `yaml:"max_attempts"`
	PerAttemptTimeoutS int `yaml:"per_attempt_timeout_s"`
	OverallDeadlineS   int `yaml:"overall_deadline_s"`
}

type PoolConfig struct {
	// Credentials are the upstream API keys rotated by the pool.
	Credentials []string `yaml:"credentials"`

	MaxFailuresBeforeCool int `yaml:"max_failures_before_cool"`

	CoolingAuthS      int `yaml:"cooling_auth_s"`
	CoolingQuotaS     int `yaml:"cooling_quota_s"`
	CoolingTransientS int `yaml:"cooling_transient_s"`
}

type CacheConfig struct {
	Enabled bool `yaml:"enabled"`
	MaxSize int  `yaml:"max_size"`
	TTLS    int  `yaml:"ttl_s"`

	// RedisURL switches the cache store from in-process memory to Redis
	// when non-empty (redis://host:port/db).
	RedisURL string `yaml:"redis_url"`
}

type ModelsConfig struct {
	// Mapping resolves OpenAI-style names to upstream model names.
	Mapping map[string]string `yaml:"mapping"`
	// Default is used for OpenAI-style names absent from Mapping.
	Default string `yaml:"default"`
}

// Default returns a Config with every knob at its documented default.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:        "0.0.0.0",
			Port:        "8000",
			CORSOrigins: []string{"*"},
		},
		Upstream: UpstreamConfig{
			BaseURL:            "https://generativelanguage.googleapis.com",
			MaxAttempts:        3,
			PerAttemptTimeoutS: 45,
			OverallDeadlineS:   120,
		},
		Pool: PoolConfig{
			MaxFailuresBeforeCool: 3,
			CoolingAuthS:          3600,
			CoolingQuotaS:         300,
			CoolingTransientS:     30,
		},
		Cache: CacheConfig{
			Enabled: true,
			MaxSize: 1000,
			TTLS:    300,
		},
		Models: ModelsConfig{
			Default: "gemini-1.5-pro-latest",
		},
	}
}

// Load reads the YAML file at path (a missing file is not an error) and
// applies environment overrides on top of defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("read config: %w", err)
			}
		} else if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}
	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv overlays GEMINI_ADAPTER_* environment variables. List values
// are comma-separated.
func (c *Config) applyEnv() {
	if v := os.Getenv("GEMINI_ADAPTER_PORT"); v != "" {
		c.Server.Port = v
	}
	if v := os.Getenv("GEMINI_ADAPTER_CREDENTIALS"); v != "" {
		c.Pool.Credentials = splitList(v)
	}
	if v := os.Getenv("GEMINI_ADAPTER_CLIENT_KEYS"); v != "" {
		c.Security.ClientKeys = splitList(v)
	}
	if v := os.Getenv("GEMINI_ADAPTER_ADMIN_KEYS"); v != "" {
		c.Security.AdminKeys = splitList(v)
	}
	if v := os.Getenv("GEMINI_ADAPTER_BASE_URL"); v != "" {
		c.Upstream.BaseURL = strings.TrimRight(v, "/")
	}
	if v := os.Getenv("GEMINI_ADAPTER_PROXY_URL"); v != "" {
		c.Upstream.ProxyURL = v
	}
	if v := os.Getenv("GEMINI_ADAPTER_REDIS_URL"); v != "" {
		c.Cache.RedisURL = v
	}
	if v := os.Getenv("GEMINI_ADAPTER_DEBUG"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.Security.Debug = b
		}
	}
}

// Validate checks consistency before the server starts serving.
func (c *Config) Validate() error {
	if len(c.Pool.Credentials) == 0 {
		return fmt.Errorf("no upstream credentials configured")
	}
	for i, secret := range c.Pool.Credentials {
		if strings.TrimSpace(secret) == "" {
			return fmt.Errorf("credential %d is empty", i)
		}
	}
	if c.Upstream.MaxAttempts <= 0 {
		return fmt.Errorf("upstream.max_attempts must be positive")
	}
	if c.Upstream.BaseURL == "" {
		return fmt.Errorf("upstream.base_url is required")
	}
	if c.Cache.Enabled && c.Cache.MaxSize <= 0 {
		return fmt.Errorf("cache.max_size must be positive when cache is enabled")
	}
	c.Upstream.BaseURL = strings.TrimRight(c.Upstream.BaseURL, "/")
	return nil
}

// PerAttemptTimeout returns the per-attempt timeout as a duration.
func (c *Config) PerAttemptTimeout() time.Duration {
	return time.Duration(c.Upstream.PerAttemptTimeoutS) * time.Second
}

// OverallDeadline returns the whole-request deadline as a duration.
func (c *Config) OverallDeadline() time.Duration {
	return time.Duration(c.Upstream.OverallDeadlineS) * time.Second
}

// CacheTTL returns the cache entry lifetime.
func (c *Config) CacheTTL() time.Duration {
	return time.Duration(c.Cache.TTLS) * time.Second
}

// CoolingAuth returns the cooling period after an auth rejection.
func (p PoolConfig) CoolingAuth() time.Duration {
	return time.Duration(p.CoolingAuthS) * time.Second
}

// CoolingQuota returns the cooling period after quota exhaustion.
func (p PoolConfig) CoolingQuota() time.Duration {
	return time.Duration(p.CoolingQuotaS) * time.Second
}

// CoolingTransient returns the cooling period after repeated transient
// failures.
func (p PoolConfig) CoolingTransient() time.Duration {
	return time.Duration(p.CoolingTransientS) * time.Second
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if s := strings.TrimSpace(part); s != "" {
			out = append(out, s)
		}
	}
	return out
}
