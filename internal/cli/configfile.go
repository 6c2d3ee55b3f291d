package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/adrg/xdg"
)

// ConfigFile is the persisted global CLI state.
type ConfigFile struct {
	Registry string `json:"registry,omitempty"`
	Token    string `json:"token,omitempty"`
}

// configPath resolves the global config location. CLAWDHUB_CONFIG_PATH
// overrides the platform default.
func configPath() (string, error) {
	if p := os.Getenv("CLAWDHUB_CONFIG_PATH"); p != "" {
		return p, nil
	}
	return xdg.ConfigFile("clawdhub/config.json")
}

// LoadConfig reads the global config; a missing file yields an empty config.
func LoadConfig() (*ConfigFile, error) {
	path, err := configPath()
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return &ConfigFile{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}
	var cfg ConfigFile
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	return &cfg, nil
}

// SaveConfig writes the global config, creating parent directories.
func SaveConfig(cfg *ConfigFile) error {
	path, err := configPath()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(data, '\n'), 0o600)
}
