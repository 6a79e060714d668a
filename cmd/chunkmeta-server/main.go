package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/yndnr/chunkmeta-go/internal/infra/buildinfo"
	"github.com/yndnr/chunkmeta-go/internal/infra/confloader"
	"github.com/yndnr/chunkmeta-go/internal/infra/shutdown"
	"github.com/yndnr/chunkmeta-go/internal/infra/tlsroots"
	"github.com/yndnr/chunkmeta-go/internal/server/config"
	"github.com/yndnr/chunkmeta-go/internal/server/httpserver"
	"github.com/yndnr/chunkmeta-go/internal/storage"
	"github.com/yndnr/chunkmeta-go/internal/telemetry/logger"
	"github.com/yndnr/chunkmeta-go/internal/telemetry/metric"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		configFile  = flag.String("config", "", "Path to configuration file")
		dataDir     = flag.String("data-dir", "", "Override storage.data_dir")
		logLevel    = flag.String("log-level", "", "Override log.level")
		showVersion = flag.Bool("version", false, "Show version information")
	)
	flag.Parse()

	if *showVersion {
		fmt.Printf("chunkmeta-server %s\n", buildinfo.String())
		return nil
	}

	overrides := map[string]any{}
	if *dataDir != "" {
		overrides["storage.data_dir"] = *dataDir
	}
	if *logLevel != "" {
		overrides["log.level"] = *logLevel
	}
	loader := confloader.NewLoader(
		confloader.WithConfigFile(*configFile),
		confloader.WithOverrides(overrides),
	)

	cfg, err := loadConfig(loader)
	if err != nil {
		return err
	}

	log := logger.Setup(logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: os.Stdout,
	})
	log.Info("starting chunkmeta-server",
		"version", buildinfo.Version,
		"config", *configFile,
		"settings", config.Sanitize(cfg))

	metrics := metric.NewRegistry()
	metrics.MustRegister(buildinfo.Collector(metric.Namespace))

	storageCfg, err := config.ToStorageConfig(cfg, metrics, log)
	if err != nil {
		return err
	}
	engine, err := storage.New(storageCfg)
	if err != nil {
		return fmt.Errorf("init storage: %w", err)
	}

	shutdownHandler := shutdown.NewHandler(cfg.Server.ShutdownTimeout, log)
	shutdownHandler.OnShutdown("storage", func(context.Context) error {
		return engine.Close()
	})

	// Recovery can take long on a big log; a signal aborts it.
	recoverCtx, stopRecover := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err = engine.Recover(recoverCtx)
	stopRecover()
	if err != nil {
		engine.Close()
		return fmt.Errorf("storage recovery: %w", err)
	}

	if *configFile != "" {
		watcher, err := watchConfig(loader, log)
		if err != nil {
			log.Warn("config watcher disabled", "error", err)
		} else {
			shutdownHandler.OnShutdown("config watcher", func(context.Context) error {
				return watcher.Stop()
			})
		}
	}

	var metricsHandler = metrics.Handler()
	if !cfg.Metrics.Enabled {
		metricsHandler = nil
	}
	router := httpserver.NewRouter(&httpserver.RouterConfig{
		Engine:         engine,
		Metrics:        metricsHandler,
		MetricsPath:    cfg.Metrics.Path,
		AdminAllowList: cfg.Server.Admin.AllowList,
		Logger:         log.With("component", "admin"),
	})
	if cfg.Server.Admin.Addr != "" {
		adminServer := httpserver.New(cfg.Server.Admin.Addr, router, log)
		if tc := cfg.Server.Admin.TLS; tc.Enabled() {
			tlsConfig, certWatcher, err := tlsroots.ServerConfig(tlsroots.ServerOptions{
				CertFile:     tc.CertFile,
				KeyFile:      tc.KeyFile,
				ClientCAFile: tc.ClientCAFile,
			}, log.With("component", "tls"))
			if err != nil {
				shutdownHandler.Shutdown()
				return fmt.Errorf("admin tls: %w", err)
			}
			shutdownHandler.OnShutdown("certificate watcher", func(context.Context) error {
				return certWatcher.Stop()
			})
			adminServer.UseTLS(tlsConfig)
		}
		if err := adminServer.Start(); err != nil {
			shutdownHandler.Shutdown()
			return fmt.Errorf("start admin server: %w", err)
		}
		shutdownHandler.OnShutdown("admin server", adminServer.Shutdown)
	}

	log.Info("server started", "next_seq", engine.State().Seq+1)
	if err := shutdownHandler.Wait(context.Background()); err != nil {
		log.Error("shutdown error", "error", err)
		return err
	}
	log.Info("server stopped gracefully")
	return nil
}

// loadConfig loads defaults, the configuration file, the environment and
// flag overrides, in increasing priority.
func loadConfig(loader *confloader.Loader) (*config.ServerConfig, error) {
	cfg := config.Default()
	if err := loader.Load(cfg); err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if err := config.Verify(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// watchConfig reloads the configuration file on change and applies the
// log level.
func watchConfig(loader *confloader.Loader, log *slog.Logger) (*confloader.Watcher, error) {
	watcher, err := confloader.NewWatcher(confloader.WithWatcherLogger(log))
	if err != nil {
		return nil, err
	}
	if err := watcher.Watch(loader.FilePath()); err != nil {
		watcher.Stop()
		return nil, err
	}
	watcher.OnChange(func(path string) {
		cfg, err := loadConfig(loader)
		if err != nil {
			log.Warn("ignoring invalid configuration change", "path", path, "error", err)
			return
		}
		if cfg.Log.Level != logger.GetLevel() {
			logger.SetLevel(cfg.Log.Level)
			log.Info("log level changed", "level", cfg.Log.Level)
		}
	})
	watcher.StartAsync()
	return watcher, nil
}
