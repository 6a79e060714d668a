package config

import (
	"fmt"
	"log/slog"

	"github.com/yndnr/chunkmeta-go/internal/storage"
	"github.com/yndnr/chunkmeta-go/internal/storage/oplog"
	"github.com/yndnr/chunkmeta-go/internal/telemetry/metric"
	"github.com/yndnr/chunkmeta-go/pkg/crypto/adaptive"
)

// ToStorageConfig converts ServerConfig to storage.Config.
func ToStorageConfig(cfg *ServerConfig, metrics *metric.Registry, logger *slog.Logger) (storage.Config, error) {
	if cfg == nil {
		return storage.Config{}, fmt.Errorf("config: server config is nil")
	}
	if logger == nil {
		logger = slog.Default()
	}

	sc := storage.DefaultConfig(cfg.Storage.DataDir)
	if cfg.Storage.LogDir != "" {
		sc.Log.Dir = cfg.Storage.LogDir
	}
	if cfg.Storage.LogSyncMode != "" {
		sc.Log.SyncMode = oplog.SyncMode(cfg.Storage.LogSyncMode)
	}
	if cfg.Storage.LogSyncInterval > 0 {
		sc.Log.SyncInterval = cfg.Storage.LogSyncInterval
	}
	if cfg.Storage.LogMaxFileSize > 0 {
		sc.Log.MaxFileSize = cfg.Storage.LogMaxFileSize
	}
	if cfg.Storage.LogRetain > 0 {
		sc.LogRetainCount = cfg.Storage.LogRetain
	}
	if cfg.Storage.IdempotentTTL > 0 {
		sc.IdempotentTTL = cfg.Storage.IdempotentTTL
	}

	if cfg.Checkpoint.Dir != "" {
		sc.Checkpoint.Dir = cfg.Checkpoint.Dir
	}
	sc.Checkpoint.WriteSync = cfg.Checkpoint.WriteSync
	if cfg.Checkpoint.BufferSize > 0 {
		sc.Checkpoint.BufferSize = cfg.Checkpoint.BufferSize
	}
	if cfg.Checkpoint.Keep > 0 {
		sc.Checkpoint.Keep = cfg.Checkpoint.Keep
	}
	if cfg.Checkpoint.Interval > 0 {
		sc.CheckpointInterval = cfg.Checkpoint.Interval
	}
	sc.CheckpointMinGap = cfg.Checkpoint.MinGap

	sc.FSID = cfg.MetaServer.FSID
	sc.Metrics = metrics
	sc.Logger = logger

	if cfg.Security.EncryptionKey != "" {
		cipher, err := NewCipher(&cfg.Security)
		if err != nil {
			return storage.Config{}, err
		}
		sc.Cipher = cipher
		logger.Info("log payload encryption enabled", "cipher", cipher.Type())
	}
	return sc, nil
}

// NewCipher builds the log payload cipher from the security section.
func NewCipher(sec *SecuritySection) (adaptive.Cipher, error) {
	key, err := adaptive.ParseKey(sec.EncryptionKey)
	if err != nil {
		return nil, fmt.Errorf("config: security.encryption_key: %w", err)
	}
	var cipher adaptive.Cipher
	if sec.Cipher == "" {
		cipher, err = adaptive.New(key)
	} else {
		cipher, err = adaptive.NewWithType(key, adaptive.CipherType(sec.Cipher))
	}
	if err != nil {
		return nil, fmt.Errorf("config: security.cipher: %w", err)
	}
	return cipher, nil
}
