package config

import (
	"path/filepath"
	"strings"
	"time"

	"github.com/yndnr/chunkmeta-go/internal/storage"
)

// CLIConfig is the configuration for chunkmeta-cli.
type CLIConfig struct {
	// Server is the admin endpoint of a running chunkmeta-server.
	Server  string        `koanf:"server" yaml:"server"`
	Timeout time.Duration `koanf:"timeout" yaml:"timeout"`
	Output  string        `koanf:"output" yaml:"output"` // table, json, yaml

	// CAFile is trusted in addition to the system roots for https servers.
	// CertFile and KeyFile present a client certificate.
	CAFile   string `koanf:"ca_file" yaml:"ca_file,omitempty"`
	CertFile string `koanf:"cert_file" yaml:"cert_file,omitempty"`
	KeyFile  string `koanf:"key_file" yaml:"key_file,omitempty"`

	// DataDir locates checkpoints and log segments for offline commands.
	// CheckpointDir and LogDir override the defaults under it.
	DataDir       string `koanf:"data_dir" yaml:"data_dir"`
	CheckpointDir string `koanf:"checkpoint_dir" yaml:"checkpoint_dir,omitempty"`
	LogDir        string `koanf:"log_dir" yaml:"log_dir,omitempty"`

	// EncryptionKey decrypts log payloads written by an encrypting server.
	EncryptionKey string `koanf:"encryption_key" yaml:"encryption_key,omitempty"`
	Cipher        string `koanf:"cipher" yaml:"cipher,omitempty"`
}

// Default returns the default CLI configuration.
func Default() *CLIConfig {
	return &CLIConfig{
		Server:  "http://127.0.0.1:20050",
		Timeout: 30 * time.Second,
		Output:  "table",
		DataDir: "/var/lib/chunkmeta",
	}
}

// UsesTLS reports whether requests need a TLS client configuration.
func (c *CLIConfig) UsesTLS() bool {
	return strings.HasPrefix(c.Server, "https://") || c.CAFile != "" || c.CertFile != ""
}

// CheckpointPath returns the checkpoint directory.
func (c *CLIConfig) CheckpointPath() string {
	if c.CheckpointDir != "" {
		return c.CheckpointDir
	}
	return filepath.Join(c.DataDir, storage.DefaultCheckpointDir)
}

// LogPath returns the log segment directory.
func (c *CLIConfig) LogPath() string {
	if c.LogDir != "" {
		return c.LogDir
	}
	return filepath.Join(c.DataDir, storage.DefaultLogDir)
}
