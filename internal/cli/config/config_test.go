package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	if cfg.Server != "http://127.0.0.1:20050" || cfg.Output != "table" || cfg.Timeout != 30*time.Second {
		t.Errorf("Default() = %+v", cfg)
	}
	if got := cfg.CheckpointPath(); got != filepath.Join("/var/lib/chunkmeta", "kfscp") {
		t.Errorf("CheckpointPath() = %q", got)
	}
	if got := cfg.LogPath(); got != filepath.Join("/var/lib/chunkmeta", "log") {
		t.Errorf("LogPath() = %q", got)
	}

	cfg.CheckpointDir, cfg.LogDir = "/cp", "/lg"
	if cfg.CheckpointPath() != "/cp" || cfg.LogPath() != "/lg" {
		t.Errorf("explicit dirs ignored: %q %q", cfg.CheckpointPath(), cfg.LogPath())
	}
}

func TestUsesTLS(t *testing.T) {
	cfg := Default()
	if cfg.UsesTLS() {
		t.Error("plain http default uses TLS")
	}
	cfg.Server = "https://meta-1:20050"
	if !cfg.UsesTLS() {
		t.Error("https server without TLS")
	}
	cfg = Default()
	cfg.CertFile = "client.crt"
	if !cfg.UsesTLS() {
		t.Error("client certificate without TLS")
	}
}

func TestDefaultConfigPath(t *testing.T) {
	path := DefaultConfigPath()
	if want := filepath.Join(".chunkmeta", "cli.yaml"); !strings.HasSuffix(path, want) {
		t.Errorf("DefaultConfigPath() = %q, want suffix %q", path, want)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server != Default().Server {
		t.Errorf("Server = %q, want default", cfg.Server)
	}
}

func TestLoad_FileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cli.yaml")
	data := "server: http://meta-1:20050\ndata_dir: /srv/meta\ntimeout: 5s\noutput: json\n"
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("CHUNKMETA_CLI_OUTPUT", "yaml")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server != "http://meta-1:20050" || cfg.DataDir != "/srv/meta" || cfg.Timeout != 5*time.Second {
		t.Errorf("file values not applied: %+v", cfg)
	}
	if cfg.Output != "yaml" {
		t.Errorf("Output = %q, want env override yaml", cfg.Output)
	}
}

func TestSaveAndLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "cli.yaml")
	cfg := Default()
	cfg.Server = "http://meta-2:20050"
	cfg.EncryptionKey = "a passphrase"

	if err := Save(cfg, path); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	st, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if perm := st.Mode().Perm(); perm != 0o600 {
		t.Errorf("mode = %v, want 0600", perm)
	}

	got, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got.Server != cfg.Server || got.EncryptionKey != cfg.EncryptionKey || got.Timeout != cfg.Timeout {
		t.Errorf("round trip = %+v, want %+v", got, cfg)
	}
}

func TestLogCipher(t *testing.T) {
	cfg := Default()
	c, err := cfg.LogCipher()
	if err != nil || c != nil {
		t.Fatalf("no key: cipher = %v, err = %v", c, err)
	}

	cfg.EncryptionKey = "a passphrase"
	c, err = cfg.LogCipher()
	if err != nil || c == nil {
		t.Fatalf("with key: cipher = %v, err = %v", c, err)
	}

	cfg.Cipher = "rot13"
	if _, err := cfg.LogCipher(); err == nil {
		t.Error("unknown cipher accepted")
	}
}
