package config

import (
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/yndnr/chunkmeta-go/internal/storage/oplog"
	"github.com/yndnr/chunkmeta-go/internal/telemetry/logger"
	"github.com/yndnr/chunkmeta-go/pkg/crypto/adaptive"
)

// Verify validates the configuration. All problems are reported at once.
func Verify(cfg *ServerConfig) error {
	var errs []error
	add := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf(format, args...))
	}

	if cfg.Server.Admin.Addr != "" {
		if _, _, err := net.SplitHostPort(cfg.Server.Admin.Addr); err != nil {
			add("server.admin.addr: %w", err)
		}
	}
	if tc := cfg.Server.Admin.TLS; (tc.CertFile == "") != (tc.KeyFile == "") {
		add("server.admin.tls: cert_file and key_file must be set together")
	} else if tc.ClientCAFile != "" && !tc.Enabled() {
		add("server.admin.tls.client_ca_file requires cert_file")
	}
	if cfg.MetaServer.FSID < 0 {
		add("metaserver.fsid must not be negative")
	}

	st := &cfg.Storage
	if st.DataDir == "" {
		add("storage.data_dir is required")
	}
	switch oplog.SyncMode(st.LogSyncMode) {
	case oplog.SyncModeSync, oplog.SyncModeBatch, "":
	default:
		add("storage.log_sync_mode %q: want sync or batch", st.LogSyncMode)
	}
	if st.LogMaxFileSize < 0 {
		add("storage.log_max_file_size must not be negative")
	}
	if st.LogRetain < 0 {
		add("storage.log_retain must not be negative")
	}

	cp := &cfg.Checkpoint
	if cp.Interval < 0 || cp.MinGap < 0 {
		add("checkpoint.interval and checkpoint.min_gap must not be negative")
	}
	if cp.Interval > 0 && cp.MinGap > cp.Interval {
		add("checkpoint.min_gap %v exceeds checkpoint.interval %v", cp.MinGap, cp.Interval)
	}
	if cp.Keep < 1 {
		add("checkpoint.keep must be at least 1")
	}
	if cp.BufferSize < 0 {
		add("checkpoint.buffer_size must not be negative")
	}

	switch adaptive.CipherType(cfg.Security.Cipher) {
	case adaptive.CipherAESGCM, adaptive.CipherChaCha20, "":
	default:
		add("security.cipher %q: want %s or %s", cfg.Security.Cipher, adaptive.CipherAESGCM, adaptive.CipherChaCha20)
	}

	if cfg.Metrics.Enabled && !strings.HasPrefix(cfg.Metrics.Path, "/") {
		add("metrics.path %q must start with /", cfg.Metrics.Path)
	}
	if !logger.ValidLevel(cfg.Log.Level) {
		add("log.level %q: want debug, info, warn or error", cfg.Log.Level)
	}
	switch cfg.Log.Format {
	case "json", "text", "console":
	default:
		add("log.format %q: want json or text", cfg.Log.Format)
	}

	if len(errs) > 0 {
		return fmt.Errorf("config: %w", errors.Join(errs...))
	}
	return nil
}
