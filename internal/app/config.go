package app

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// defaultConfigTOML is written on first run so every knob is discoverable
// by opening the file.
const defaultConfigTOML = `# omsg configuration.
# Relative paths resolve against the home directory.

# Shared key-bundle directory. Point every participant at the same file to
# exchange bundles without a server.
registry = "registry.json"

# Shared broadcast ledger. Same sharing rule as the registry.
ledger = "ledger.json"

# zerolog level: trace, debug, info, warn, error.
log_level = "info"
`

// Config holds runtime wiring options for building the app. Home is not a
// config key: it locates the config file, so it comes from the flag or the
// built-in default.
type Config struct {
	Home     string `toml:"-"`         // state directory, e.g. $HOME/.omsg
	Registry string `toml:"registry"`  // key-bundle directory file
	Ledger   string `toml:"ledger"`    // broadcast ledger file
	LogLevel string `toml:"log_level"` // zerolog level name
}

// DefaultHome returns the default state directory, $HOME/.omsg.
func DefaultHome() (string, error) {
	dir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("user home dir: %w", err)
	}
	return filepath.Join(dir, ".omsg"), nil
}

// LoadConfig reads the TOML file at path, creating it with the default
// contents first if it does not exist.
func LoadConfig(path string) (Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
			return Config{}, fmt.Errorf("create config dir: %w", err)
		}
		if err := os.WriteFile(path, []byte(defaultConfigTOML), 0o600); err != nil {
			return Config{}, fmt.Errorf("write default config: %w", err)
		}
	}

	var cfg Config
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// ApplyDefaults fills empty fields and resolves relative paths against Home.
// Call it after any flag overrides have been applied.
func (c *Config) ApplyDefaults() {
	if c.Registry == "" {
		c.Registry = "registry.json"
	}
	if c.Ledger == "" {
		c.Ledger = "ledger.json"
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if !filepath.IsAbs(c.Registry) {
		c.Registry = filepath.Join(c.Home, c.Registry)
	}
	if !filepath.IsAbs(c.Ledger) {
		c.Ledger = filepath.Join(c.Home, c.Ledger)
	}
}
