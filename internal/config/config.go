package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds the configuration for the application.
type Config struct {
	N8n struct {
		BaseURL        string `mapstructure:"base_url" validate:"required,url,startswith=http"`
		APIKey         string `mapstructure:"api_key" validate:"required,min=10"`
		Timeout        int    `mapstructure:"timeout" validate:"gt=0"`
		MaxRetries     int    `mapstructure:"max_retries" validate:"gte=0,lte=10"`
		RetryBaseDelay int    `mapstructure:"retry_base_delay_ms" validate:"gt=0"`
	} `mapstructure:"n8n"`
	MCP struct {
		ServerName  string `mapstructure:"server_name" validate:"required"`
		Version     string `mapstructure:"version" validate:"required"`
		Description string `mapstructure:"description"`
		Port        int    `mapstructure:"port" validate:"gt=0,lte=65535"`
		Transport   string `mapstructure:"transport" validate:"oneof=stdio http"`
	} `mapstructure:"mcp"`
	Logging struct {
		Level       string `mapstructure:"level"`
		Format      string `mapstructure:"format"`
		File        string `mapstructure:"file"`
		MaxBytes    int    `mapstructure:"max_bytes" validate:"gte=0"`
		BackupCount int    `mapstructure:"backup_count" validate:"gte=0"`
	} `mapstructure:"logging"`
	Security struct {
		EnableAuthentication bool   `mapstructure:"enable_authentication"`
		OIDCIssuer           string `mapstructure:"oidc_issuer" validate:"required_if=EnableAuthentication true"`
		RateLimiting         struct {
			Enabled           bool `mapstructure:"enabled"`
			RequestsPerMinute int  `mapstructure:"requests_per_minute" validate:"gte=0"`
		} `mapstructure:"rate_limiting"`
	} `mapstructure:"security"`
	Performance struct {
		CacheTTL              int `mapstructure:"cache_ttl" validate:"gte=0"`
		CacheSize             int `mapstructure:"cache_size" validate:"gte=0"`
		MaxConcurrentRequests int `mapstructure:"max_concurrent_requests" validate:"gte=0"`
		ResponseTimeout       int `mapstructure:"response_timeout" validate:"gte=0"`
	} `mapstructure:"performance"`
	TLS struct {
		Enable    bool     `mapstructure:"enable"`
		CertFile  string   `mapstructure:"cert_file"`
		KeyFile   string   `mapstructure:"key_file"`
		Hostnames []string `mapstructure:"hostnames"`
	} `mapstructure:"tls"`

	// Source is the config file that was read, empty in environment mode.
	Source string `mapstructure:"-"`
}

// Options selects where LoadConfig reads settings from.
type Options struct {
	// Path is an explicit config file. When empty the search paths are used.
	Path string
	// UseEnv skips the config file and reads the environment only.
	UseEnv bool
	// EnvFile is an optional .env file loaded before reading the environment.
	EnvFile string
}

// ErrConfigNotFound is returned when no config file exists in file mode.
var ErrConfigNotFound = errors.New("config file not found")

// SearchPaths lists the locations probed for config.json, in order.
func SearchPaths() []string {
	paths := []string{
		filepath.Join("config", "config.json"),
		"config.json",
	}
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".n8n-mcp", "config.json"))
	}
	return append(paths, filepath.Join("/etc", "n8n-mcp", "config.json"))
}

// legacyEnv maps config keys to the extra environment names accepted for them.
var legacyEnv = map[string]string{
	"logging.level":        "LOG_LEVEL",
	"logging.format":       "LOG_FORMAT",
	"logging.file":         "LOG_FILE",
	"logging.max_bytes":    "LOG_MAX_BYTES",
	"logging.backup_count": "LOG_BACKUP_COUNT",
}

// LoadConfig loads the configuration from a file and the environment.
// Environment variables override file values in both modes; the key
// n8n.base_url is read from N8N_BASE_URL, performance.cache_ttl from
// PERFORMANCE_CACHE_TTL, and so on.
func LoadConfig(opts Options) (*Config, error) {
	if opts.EnvFile != "" {
		if err := godotenv.Load(opts.EnvFile); err != nil {
			return nil, fmt.Errorf("failed to load env file %s: %w", opts.EnvFile, err)
		}
	} else if opts.UseEnv {
		// a missing .env is fine in environment mode
		_ = godotenv.Load()
	}

	v := newViper()

	if !opts.UseEnv {
		path, err := resolvePath(opts.Path)
		if err != nil {
			return nil, err
		}
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	config.Source = v.ConfigFileUsed()

	normalize(&config)

	return &config, nil
}

// Validate checks the settings needed to reach n8n and serve MCP.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// RequestTimeout is the per-attempt timeout towards n8n.
func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.N8n.Timeout) * time.Second
}

// RetryBaseDelay is the first backoff wait; later waits double it.
func (c *Config) RetryBaseDelay() time.Duration {
	return time.Duration(c.N8n.RetryBaseDelay) * time.Millisecond
}

// CacheTTL is how long a cached GET response stays fresh.
func (c *Config) CacheTTL() time.Duration {
	return time.Duration(c.Performance.CacheTTL) * time.Second
}

// ResponseTimeout is the latency above which a tool call is logged as slow.
func (c *Config) ResponseTimeout() time.Duration {
	return time.Duration(c.Performance.ResponseTimeout) * time.Second
}

// LogFilePath returns the log file as an absolute path, or "" when unset.
func (c *Config) LogFilePath() string {
	if c.Logging.File == "" {
		return ""
	}
	if abs, err := filepath.Abs(c.Logging.File); err == nil {
		return abs
	}
	return c.Logging.File
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetConfigType("json")
	setDefaults(v)

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, env := range legacyEnv {
		_ = v.BindEnv(key, strings.ToUpper(strings.ReplaceAll(key, ".", "_")), env)
	}
	return v
}

// setDefaults registers every key so AutomaticEnv can see it during Unmarshal.
func setDefaults(v *viper.Viper) {
	v.SetDefault("n8n.base_url", "")
	v.SetDefault("n8n.api_key", "")
	v.SetDefault("n8n.timeout", 30)
	v.SetDefault("n8n.max_retries", 3)
	v.SetDefault("n8n.retry_base_delay_ms", 1000)

	v.SetDefault("mcp.server_name", "n8n-workflow-manager")
	v.SetDefault("mcp.version", "1.0.0")
	v.SetDefault("mcp.description", "MCP server for managing n8n workflows")
	v.SetDefault("mcp.port", 8080)
	v.SetDefault("mcp.transport", "stdio")

	v.SetDefault("logging.level", "INFO")
	v.SetDefault("logging.format", "text")
	v.SetDefault("logging.file", "")
	v.SetDefault("logging.max_bytes", 10485760)
	v.SetDefault("logging.backup_count", 5)

	v.SetDefault("security.enable_authentication", false)
	v.SetDefault("security.oidc_issuer", "")
	v.SetDefault("security.rate_limiting.enabled", true)
	v.SetDefault("security.rate_limiting.requests_per_minute", 100)

	v.SetDefault("performance.cache_ttl", 300)
	v.SetDefault("performance.cache_size", 256)
	v.SetDefault("performance.max_concurrent_requests", 10)
	v.SetDefault("performance.response_timeout", 2)

	v.SetDefault("tls.enable", false)
	v.SetDefault("tls.cert_file", "")
	v.SetDefault("tls.key_file", "")
	v.SetDefault("tls.hostnames", []string{})
}

func resolvePath(path string) (string, error) {
	if path != "" {
		if _, err := os.Stat(path); err != nil {
			return "", fmt.Errorf("%w: %s", ErrConfigNotFound, path)
		}
		return path, nil
	}
	candidates := SearchPaths()
	for _, p := range candidates {
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}
	return "", fmt.Errorf("%w in any of these locations: %s", ErrConfigNotFound, strings.Join(candidates, ", "))
}

func normalize(c *Config) {
	c.N8n.BaseURL = strings.TrimRight(strings.TrimSpace(c.N8n.BaseURL), "/")
	c.N8n.APIKey = strings.TrimSpace(c.N8n.APIKey)
	c.Security.OIDCIssuer = strings.TrimRight(strings.TrimSpace(c.Security.OIDCIssuer), "/")
	c.MCP.Transport = strings.ToLower(strings.TrimSpace(c.MCP.Transport))
}
