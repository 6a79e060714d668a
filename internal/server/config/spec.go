package config

import "time"

// ServerConfig is the root configuration for chunkmeta-server.
type ServerConfig struct {
	Server     ServerSection     `koanf:"server" yaml:"server"`
	MetaServer MetaServerSection `koanf:"metaserver" yaml:"metaserver"`
	Storage    StorageSection    `koanf:"storage" yaml:"storage"`
	Checkpoint CheckpointSection `koanf:"checkpoint" yaml:"checkpoint"`
	Security   SecuritySection   `koanf:"security" yaml:"security"`
	Metrics    MetricsSection    `koanf:"metrics" yaml:"metrics"`
	Log        LogSection        `koanf:"log" yaml:"log"`
}

// ServerSection configures server endpoints.
type ServerSection struct {
	Admin AdminConfig `koanf:"admin" yaml:"admin"`

	// ShutdownTimeout bounds graceful shutdown.
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout" yaml:"shutdown_timeout"`
}

// AdminConfig configures the admin HTTP endpoint serving health, metrics
// and checkpoint control.
type AdminConfig struct {
	Addr string `koanf:"addr" yaml:"addr"`

	// AllowList limits /admin/v1 to these IPs and CIDR blocks. Empty
	// allows everyone.
	AllowList []string `koanf:"allow_list" yaml:"allow_list"`

	TLS AdminTLSConfig `koanf:"tls" yaml:"tls"`
}

// AdminTLSConfig enables TLS on the admin endpoint when CertFile is set.
// Setting ClientCAFile additionally requires client certificates.
type AdminTLSConfig struct {
	CertFile     string `koanf:"cert_file" yaml:"cert_file"`
	KeyFile      string `koanf:"key_file" yaml:"key_file"`
	ClientCAFile string `koanf:"client_ca_file" yaml:"client_ca_file"`
}

// Enabled reports whether the admin endpoint serves TLS.
func (c AdminTLSConfig) Enabled() bool {
	return c.CertFile != ""
}

// MetaServerSection identifies the file system.
type MetaServerSection struct {
	// FSID is used when the root is created. Zero picks a random id.
	FSID int64 `koanf:"fsid" yaml:"fsid"`
}

// StorageSection configures the data directory and the operation log.
type StorageSection struct {
	DataDir string `koanf:"data_dir" yaml:"data_dir"`

	// LogDir defaults to <data_dir>/log.
	LogDir string `koanf:"log_dir" yaml:"log_dir"`

	LogMaxFileSize  int64         `koanf:"log_max_file_size" yaml:"log_max_file_size"`
	LogSyncMode     string        `koanf:"log_sync_mode" yaml:"log_sync_mode"`
	LogSyncInterval time.Duration `koanf:"log_sync_interval" yaml:"log_sync_interval"`
	LogRetain       int           `koanf:"log_retain" yaml:"log_retain"`

	// IdempotentTTL is how long completed requests are remembered.
	IdempotentTTL time.Duration `koanf:"idempotent_ttl" yaml:"idempotent_ttl"`
}

// CheckpointSection configures checkpointing.
type CheckpointSection struct {
	// Dir defaults to <data_dir>/kfscp.
	Dir        string        `koanf:"dir" yaml:"dir"`
	Interval   time.Duration `koanf:"interval" yaml:"interval"`
	MinGap     time.Duration `koanf:"min_gap" yaml:"min_gap"`
	WriteSync  bool          `koanf:"write_sync" yaml:"write_sync"`
	BufferSize int           `koanf:"buffer_size" yaml:"buffer_size"`
	Keep       int           `koanf:"keep" yaml:"keep"`
}

// SecuritySection configures log payload encryption.
type SecuritySection struct {
	// EncryptionKey enables encryption of log payloads. It is 32 bytes in
	// hex or base64, or a passphrase a key is derived from.
	EncryptionKey string `koanf:"encryption_key" yaml:"encryption_key"`

	// Cipher is aes-gcm or chacha20-poly1305. Empty picks by hardware
	// support, which must then stay the same across restarts.
	Cipher string `koanf:"cipher" yaml:"cipher"`
}

// MetricsSection configures the Prometheus endpoint.
type MetricsSection struct {
	Enabled bool   `koanf:"enabled" yaml:"enabled"`
	Path    string `koanf:"path" yaml:"path"`
}

// LogSection configures logging.
type LogSection struct {
	Level  string `koanf:"level" yaml:"level"`
	Format string `koanf:"format" yaml:"format"`
}
