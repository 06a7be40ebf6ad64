package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

// DefaultExamplePath is where WriteExample writes when no path is given.
const DefaultExamplePath = "config/config.example.json"

// WriteExample writes a fully populated example configuration to path,
// creating parent directories as needed.
func WriteExample(path string) error {
	if path == "" {
		path = DefaultExamplePath
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create config directory: %w", err)
		}
	}

	// defaults only; environment overrides must not leak into the file
	v := viper.New()
	v.SetConfigType("json")
	setDefaults(v)
	v.Set("n8n.base_url", "https://your-instance.app.n8n.cloud")
	v.Set("n8n.api_key", "YOUR_N8N_API_KEY_HERE")
	v.Set("logging.file", "logs/n8n_mcp_server.log")

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("failed to write example config: %w", err)
	}
	return nil
}
