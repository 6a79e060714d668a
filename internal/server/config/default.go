package config

import (
	"time"

	"github.com/yndnr/chunkmeta-go/internal/storage"
	"github.com/yndnr/chunkmeta-go/internal/storage/checkpoint"
	"github.com/yndnr/chunkmeta-go/internal/storage/oplog"
)

// Default configuration values.
const (
	DefaultAdminAddr       = "127.0.0.1:20050"
	DefaultShutdownTimeout = 30 * time.Second
	DefaultDataDir         = "/var/lib/chunkmeta"
	DefaultMetricsPath     = "/metrics"
	DefaultLogLevel        = "info"
	DefaultLogFormat       = "json"
)

// Default returns the default server configuration.
func Default() *ServerConfig {
	return &ServerConfig{
		Server: ServerSection{
			Admin:           AdminConfig{Addr: DefaultAdminAddr},
			ShutdownTimeout: DefaultShutdownTimeout,
		},
		Storage: StorageSection{
			DataDir:         DefaultDataDir,
			LogMaxFileSize:  oplog.DefaultMaxFileSize,
			LogSyncMode:     string(oplog.SyncModeBatch),
			LogSyncInterval: oplog.DefaultSyncInterval,
			LogRetain:       oplog.DefaultRetainCount,
			IdempotentTTL:   storage.DefaultIdempotentTTL,
		},
		Checkpoint: CheckpointSection{
			Interval:   storage.DefaultCheckpointInterval,
			MinGap:     storage.DefaultCheckpointMinGap,
			BufferSize: checkpoint.DefaultBufferSize,
			Keep:       checkpoint.DefaultKeep,
		},
		Metrics: MetricsSection{
			Enabled: true,
			Path:    DefaultMetricsPath,
		},
		Log: LogSection{
			Level:  DefaultLogLevel,
			Format: DefaultLogFormat,
		},
	}
}
