package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/yndnr/chunkmeta-go/internal/infra/confloader"
	"github.com/yndnr/chunkmeta-go/internal/storage"
	"github.com/yndnr/chunkmeta-go/internal/storage/oplog"
	"github.com/yndnr/chunkmeta-go/pkg/crypto/adaptive"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Server.Admin.Addr != DefaultAdminAddr {
		t.Errorf("Admin.Addr = %q, want %q", cfg.Server.Admin.Addr, DefaultAdminAddr)
	}
	if cfg.Storage.DataDir != DefaultDataDir {
		t.Errorf("DataDir = %q, want %q", cfg.Storage.DataDir, DefaultDataDir)
	}
	if cfg.Checkpoint.Interval != storage.DefaultCheckpointInterval {
		t.Errorf("Checkpoint.Interval = %v", cfg.Checkpoint.Interval)
	}
	if !cfg.Metrics.Enabled || cfg.Metrics.Path != DefaultMetricsPath {
		t.Errorf("Metrics = %+v", cfg.Metrics)
	}
	if err := Verify(cfg); err != nil {
		t.Errorf("Verify(Default()) = %v", err)
	}
}

func TestVerify(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*ServerConfig)
		want   string
	}{
		{"missing data dir", func(c *ServerConfig) { c.Storage.DataDir = "" }, "storage.data_dir"},
		{"bad sync mode", func(c *ServerConfig) { c.Storage.LogSyncMode = "always" }, "storage.log_sync_mode"},
		{"bad admin addr", func(c *ServerConfig) { c.Server.Admin.Addr = "localhost" }, "server.admin.addr"},
		{"keep zero", func(c *ServerConfig) { c.Checkpoint.Keep = 0 }, "checkpoint.keep"},
		{"gap over interval", func(c *ServerConfig) { c.Checkpoint.MinGap = 2 * time.Hour }, "checkpoint.min_gap"},
		{"bad cipher", func(c *ServerConfig) { c.Security.Cipher = "rot13" }, "security.cipher"},
		{"bad level", func(c *ServerConfig) { c.Log.Level = "loud" }, "log.level"},
		{"bad format", func(c *ServerConfig) { c.Log.Format = "xml" }, "log.format"},
		{"bad metrics path", func(c *ServerConfig) { c.Metrics.Path = "metrics" }, "metrics.path"},
		{"cert without key", func(c *ServerConfig) { c.Server.Admin.TLS.CertFile = "admin.crt" }, "server.admin.tls"},
		{"client CA without cert", func(c *ServerConfig) { c.Server.Admin.TLS.ClientCAFile = "ca.pem" }, "client_ca_file"},
		{"negative fsid", func(c *ServerConfig) { c.MetaServer.FSID = -1 }, "metaserver.fsid"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := Verify(cfg)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("Verify() = %v, want mention of %s", err, tt.want)
			}
		})
	}

	t.Run("all problems reported", func(t *testing.T) {
		cfg := Default()
		cfg.Storage.DataDir = ""
		cfg.Checkpoint.Keep = 0
		err := Verify(cfg)
		if err == nil || !strings.Contains(err.Error(), "storage.data_dir") || !strings.Contains(err.Error(), "checkpoint.keep") {
			t.Fatalf("Verify() = %v", err)
		}
	})
}

func TestSanitize(t *testing.T) {
	cfg := Default()
	cfg.Security.EncryptionKey = "correct horse battery staple"

	s := Sanitize(cfg)
	if s.Security.EncryptionKey == cfg.Security.EncryptionKey {
		t.Fatal("encryption key not masked")
	}
	if !strings.HasPrefix(s.Security.EncryptionKey, "co") || !strings.HasSuffix(s.Security.EncryptionKey, "le") {
		t.Errorf("masked = %q", s.Security.EncryptionKey)
	}
	if cfg.Security.EncryptionKey != "correct horse battery staple" {
		t.Error("Sanitize modified the original")
	}
	if got := maskSecret("short"); got != "****" {
		t.Errorf("maskSecret(short) = %q", got)
	}
}

func TestLoadFromFileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chunkmeta.yaml")
	content := `
storage:
  data_dir: /srv/meta
  log_sync_mode: sync
checkpoint:
  interval: 15m
  keep: 2
metaserver:
  fsid: 42
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("CHUNKMETA_LOG__LEVEL", "debug")

	cfg := Default()
	if err := confloader.NewLoader(confloader.WithConfigFile(path)).Load(cfg); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Storage.DataDir != "/srv/meta" || cfg.Storage.LogSyncMode != "sync" {
		t.Errorf("Storage = %+v", cfg.Storage)
	}
	if cfg.Checkpoint.Interval != 15*time.Minute || cfg.Checkpoint.Keep != 2 {
		t.Errorf("Checkpoint = %+v", cfg.Checkpoint)
	}
	if cfg.Checkpoint.MinGap != storage.DefaultCheckpointMinGap {
		t.Errorf("MinGap default lost: %v", cfg.Checkpoint.MinGap)
	}
	if cfg.MetaServer.FSID != 42 || cfg.Log.Level != "debug" {
		t.Errorf("FSID = %d, level = %q", cfg.MetaServer.FSID, cfg.Log.Level)
	}
}

func TestToStorageConfig(t *testing.T) {
	cfg := Default()
	cfg.Storage.DataDir = "/srv/meta"
	cfg.Storage.LogSyncMode = "sync"
	cfg.Checkpoint.Dir = "/srv/cp"
	cfg.Checkpoint.Keep = 2
	cfg.Checkpoint.MinGap = 0
	cfg.MetaServer.FSID = 9

	sc, err := ToStorageConfig(cfg, nil, nil)
	if err != nil {
		t.Fatalf("ToStorageConfig: %v", err)
	}
	if sc.Log.Dir != filepath.Join("/srv/meta", storage.DefaultLogDir) {
		t.Errorf("Log.Dir = %q", sc.Log.Dir)
	}
	if sc.Log.SyncMode != oplog.SyncModeSync {
		t.Errorf("Log.SyncMode = %q", sc.Log.SyncMode)
	}
	if sc.Checkpoint.Dir != "/srv/cp" || sc.Checkpoint.Keep != 2 {
		t.Errorf("Checkpoint = %+v", sc.Checkpoint)
	}
	if sc.CheckpointMinGap != 0 || sc.FSID != 9 || sc.Cipher != nil {
		t.Errorf("MinGap = %v, FSID = %d, Cipher = %v", sc.CheckpointMinGap, sc.FSID, sc.Cipher)
	}

	if _, err := ToStorageConfig(nil, nil, nil); err == nil {
		t.Error("nil config accepted")
	}
}

func TestNewCipher(t *testing.T) {
	tests := []struct {
		name    string
		sec     SecuritySection
		want    adaptive.CipherType
		wantErr bool
	}{
		{"chacha passphrase", SecuritySection{EncryptionKey: "passphrase", Cipher: "chacha20-poly1305"}, adaptive.CipherChaCha20, false},
		{"aes hex key", SecuritySection{EncryptionKey: strings.Repeat("ab", 32), Cipher: "aes-gcm"}, adaptive.CipherAESGCM, false},
		{"unknown cipher", SecuritySection{EncryptionKey: "passphrase", Cipher: "des"}, "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := NewCipher(&tt.sec)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("NewCipher: %v", err)
			}
			if c.Type() != tt.want {
				t.Errorf("Type() = %s, want %s", c.Type(), tt.want)
			}
		})
	}

	if _, err := NewCipher(&SecuritySection{}); err == nil {
		t.Fatal("empty key accepted")
	}
}
