package confloader

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

type testConfig struct {
	Storage struct {
		DataDir     string `koanf:"data_dir"`
		MaxFileSize int64  `koanf:"log_max_file_size"`
	} `koanf:"storage"`
	Checkpoint struct {
		Interval time.Duration `koanf:"interval"`
		Keep     int           `koanf:"keep"`
	} `koanf:"checkpoint"`
	Log struct {
		Level string `koanf:"level"`
	} `koanf:"log"`
}

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "chunkmeta.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}
	return path
}

func TestNewLoader_WithOptions(t *testing.T) {
	l := NewLoader(WithEnvPrefix("TEST_"), WithConfigFile("/path/to/config.yaml"))
	if l.envPrefix != "TEST_" {
		t.Errorf("envPrefix = %q, want %q", l.envPrefix, "TEST_")
	}
	if l.FilePath() != "/path/to/config.yaml" {
		t.Errorf("FilePath() = %q", l.FilePath())
	}
	if NewLoader().envPrefix != DefaultEnvPrefix {
		t.Errorf("default envPrefix = %q", NewLoader().envPrefix)
	}
}

func TestLoader_Priority(t *testing.T) {
	path := writeFile(t, `
storage:
  data_dir: /from/file
  log_max_file_size: 1024
checkpoint:
  interval: 30m
  keep: 3
log:
  level: warn
`)
	t.Setenv("CHUNKMETA_STORAGE__DATA_DIR", "/from/env")
	t.Setenv("CHUNKMETA_CHECKPOINT__KEEP", "7")

	var cfg testConfig
	cfg.Log.Level = "info"
	cfg.Checkpoint.Interval = time.Hour

	l := NewLoader(WithConfigFile(path), WithOverrides(map[string]any{"checkpoint.keep": 9}))
	if err := l.Load(&cfg); err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Storage.DataDir != "/from/env" {
		t.Errorf("data_dir = %q, want env value", cfg.Storage.DataDir)
	}
	if cfg.Storage.MaxFileSize != 1024 {
		t.Errorf("log_max_file_size = %d", cfg.Storage.MaxFileSize)
	}
	if cfg.Checkpoint.Interval != 30*time.Minute {
		t.Errorf("interval = %v", cfg.Checkpoint.Interval)
	}
	if cfg.Checkpoint.Keep != 9 {
		t.Errorf("keep = %d, want override", cfg.Checkpoint.Keep)
	}
	if cfg.Log.Level != "warn" {
		t.Errorf("log.level = %q", cfg.Log.Level)
	}
	if l.String("storage.data_dir") != "/from/env" {
		t.Errorf("String(storage.data_dir) = %q", l.String("storage.data_dir"))
	}
}

func TestLoader_DefaultsKept(t *testing.T) {
	var cfg testConfig
	cfg.Storage.DataDir = "/default"
	if err := NewLoader(WithEnvPrefix("CHUNKMETA_TEST_NONE_")).Load(&cfg); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Storage.DataDir != "/default" {
		t.Errorf("data_dir = %q", cfg.Storage.DataDir)
	}
}

func TestLoader_Reload(t *testing.T) {
	path := writeFile(t, "log:\n  level: debug\n")
	l := NewLoader(WithConfigFile(path))

	var cfg testConfig
	if err := l.Load(&cfg); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if err := os.WriteFile(path, []byte("log:\n  level: error\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := l.Load(&cfg); err != nil {
		t.Fatalf("reload error = %v", err)
	}
	if cfg.Log.Level != "error" {
		t.Errorf("level after reload = %q", cfg.Log.Level)
	}
}

func TestLoader_Errors(t *testing.T) {
	tests := []struct {
		name string
		path string
	}{
		{"missing file", filepath.Join(t.TempDir(), "absent.yaml")},
		{"invalid yaml", writeFile(t, "storage: [unclosed")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var cfg testConfig
			if err := NewLoader(WithConfigFile(tt.path)).Load(&cfg); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestMapProvider(t *testing.T) {
	m, err := mapProvider{"a.b.c": 1, "a.d": "x", "e": true}.Read()
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	a := m["a"].(map[string]any)
	if a["d"] != "x" || a["b"].(map[string]any)["c"] != 1 || m["e"] != true {
		t.Fatalf("Read() = %v", m)
	}
	if _, err := (mapProvider{}).ReadBytes(); err == nil {
		t.Fatal("ReadBytes() should fail")
	}
}
