package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleConfig = `{
  "n8n": {
    "base_url": "https://example.app.n8n.cloud/",
    "api_key": "abcdefghijklmnop",
    "timeout": 15,
    "max_retries": 2
  },
  "mcp": {"server_name": "test-server", "version": "2.0.0"},
  "logging": {"level": "DEBUG"},
  "performance": {"cache_ttl": 60, "max_concurrent_requests": 4}
}`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadConfig_FromFile(t *testing.T) {
	cfg, err := LoadConfig(Options{Path: writeConfig(t, sampleConfig)})
	require.NoError(t, err)

	assert.Equal(t, "https://example.app.n8n.cloud", cfg.N8n.BaseURL)
	assert.Equal(t, "abcdefghijklmnop", cfg.N8n.APIKey)
	assert.Equal(t, 15*time.Second, cfg.RequestTimeout())
	assert.Equal(t, 2, cfg.N8n.MaxRetries)
	assert.Equal(t, "test-server", cfg.MCP.ServerName)
	assert.Equal(t, "DEBUG", cfg.Logging.Level)
	assert.Equal(t, time.Minute, cfg.CacheTTL())
	assert.Equal(t, 4, cfg.Performance.MaxConcurrentRequests)

	// defaults fill the rest
	assert.Equal(t, "stdio", cfg.MCP.Transport)
	assert.Equal(t, time.Second, cfg.RetryBaseDelay())
	assert.Equal(t, 10485760, cfg.Logging.MaxBytes)
	assert.True(t, cfg.Security.RateLimiting.Enabled)
	assert.Equal(t, 100, cfg.Security.RateLimiting.RequestsPerMinute)
	assert.NotEmpty(t, cfg.Source)
	assert.NoError(t, cfg.Validate())
}

func TestLoadConfig_MissingFile(t *testing.T) {
	_, err := LoadConfig(Options{Path: filepath.Join(t.TempDir(), "nope.json")})
	assert.ErrorIs(t, err, ErrConfigNotFound)
}

func TestLoadConfig_EnvMatchesFile(t *testing.T) {
	fromFile, err := LoadConfig(Options{Path: writeConfig(t, sampleConfig)})
	require.NoError(t, err)

	t.Setenv("N8N_BASE_URL", "https://example.app.n8n.cloud")
	t.Setenv("N8N_API_KEY", "abcdefghijklmnop")
	t.Setenv("N8N_TIMEOUT", "15")
	t.Setenv("N8N_MAX_RETRIES", "2")
	t.Setenv("MCP_SERVER_NAME", "test-server")
	t.Setenv("MCP_VERSION", "2.0.0")
	t.Setenv("LOG_LEVEL", "DEBUG")
	t.Setenv("PERFORMANCE_CACHE_TTL", "60")
	t.Setenv("PERFORMANCE_MAX_CONCURRENT_REQUESTS", "4")

	fromEnv, err := LoadConfig(Options{UseEnv: true})
	require.NoError(t, err)

	fromFile.Source = ""
	assert.Equal(t, fromFile, fromEnv)
}

func TestLoadConfig_EnvFile(t *testing.T) {
	envFile := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(envFile, []byte("N8N_BASE_URL=http://localhost:5678\nN8N_API_KEY=0123456789abcdef\n"), 0o600))
	t.Cleanup(func() {
		os.Unsetenv("N8N_BASE_URL")
		os.Unsetenv("N8N_API_KEY")
	})

	cfg, err := LoadConfig(Options{UseEnv: true, EnvFile: envFile})
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:5678", cfg.N8n.BaseURL)
	assert.NoError(t, cfg.Validate())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"missing base url", func(c *Config) { c.N8n.BaseURL = "" }},
		{"non http base url", func(c *Config) { c.N8n.BaseURL = "ftp://example.com" }},
		{"short api key", func(c *Config) { c.N8n.APIKey = "short" }},
		{"unknown transport", func(c *Config) { c.MCP.Transport = "carrier-pigeon" }},
		{"auth without issuer", func(c *Config) { c.Security.EnableAuthentication = true }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := LoadConfig(Options{Path: writeConfig(t, sampleConfig)})
			require.NoError(t, err)
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestWriteExample(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config", "config.example.json")
	require.NoError(t, WriteExample(path))

	cfg, err := LoadConfig(Options{Path: path})
	require.NoError(t, err)
	assert.Equal(t, "https://your-instance.app.n8n.cloud", cfg.N8n.BaseURL)
	assert.Equal(t, 300, cfg.Performance.CacheTTL)
	assert.NoError(t, cfg.Validate())
}

func TestWriteExample_IgnoresEnvironment(t *testing.T) {
	t.Setenv("SECURITY_OIDC_ISSUER", "https://issuer.internal.example")
	t.Setenv("LOG_FILE", "/var/log/secret.log")
	t.Setenv("N8N_TIMEOUT", "99")

	path := filepath.Join(t.TempDir(), "config.example.json")
	require.NoError(t, WriteExample(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var written struct {
		N8n struct {
			Timeout int `json:"timeout"`
		} `json:"n8n"`
		Logging struct {
			File string `json:"file"`
		} `json:"logging"`
		Security struct {
			OIDCIssuer string `json:"oidc_issuer"`
		} `json:"security"`
	}
	require.NoError(t, json.Unmarshal(data, &written))

	assert.Equal(t, 30, written.N8n.Timeout)
	assert.Equal(t, "logs/n8n_mcp_server.log", written.Logging.File)
	assert.Empty(t, written.Security.OIDCIssuer)
}
