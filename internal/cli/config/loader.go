package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/yndnr/chunkmeta-go/internal/infra/confloader"
	"github.com/yndnr/chunkmeta-go/pkg/crypto/adaptive"
)

// EnvPrefix prefixes environment overrides, e.g. CHUNKMETA_CLI_SERVER.
const EnvPrefix = "CHUNKMETA_CLI_"

// DefaultConfigPath returns the default CLI config file path.
func DefaultConfigPath() string {
	homeDir, _ := os.UserHomeDir()
	return filepath.Join(homeDir, ".chunkmeta", "cli.yaml")
}

// Load reads the configuration file at path, then the environment, over
// the defaults. A missing file is not an error. An empty path means
// DefaultConfigPath.
func Load(path string) (*CLIConfig, error) {
	if path == "" {
		path = DefaultConfigPath()
	}

	opts := []confloader.Option{confloader.WithEnvPrefix(EnvPrefix)}
	if _, err := os.Stat(path); err == nil {
		opts = append(opts, confloader.WithConfigFile(path))
	} else if !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("config: %w", err)
	}

	cfg := Default()
	if err := confloader.NewLoader(opts...).Load(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes cfg to path as YAML readable only by the owner.
func Save(cfg *CLIConfig, path string) error {
	if path == "" {
		path = DefaultConfigPath()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("config: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("config: encode: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

// LogCipher returns the cipher for encrypted log payloads, or nil when no
// key is configured.
func (c *CLIConfig) LogCipher() (adaptive.Cipher, error) {
	if c.EncryptionKey == "" {
		return nil, nil
	}
	key, err := adaptive.ParseKey(c.EncryptionKey)
	if err != nil {
		return nil, fmt.Errorf("config: encryption_key: %w", err)
	}
	if c.Cipher == "" {
		return adaptive.New(key)
	}
	return adaptive.NewWithType(key, adaptive.CipherType(c.Cipher))
}
