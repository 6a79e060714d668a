package command

import (
	"io"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/urfave/cli/v2"

	"github.com/yndnr/chunkmeta-go/internal/cli/config"
	"github.com/yndnr/chunkmeta-go/internal/cli/connection"
	"github.com/yndnr/chunkmeta-go/internal/cli/output"
	"github.com/yndnr/chunkmeta-go/internal/infra/buildinfo"
	"github.com/yndnr/chunkmeta-go/internal/infra/tlsroots"
)

const configKey = "config"

// App creates the CLI application.
func App() *cli.App {
	return &cli.App{
		Name:    "chunkmeta-cli",
		Usage:   "Inspect chunkmeta checkpoints and logs, and manage a running server",
		Version: buildinfo.String(),
		Flags:   globalFlags(),
		Commands: []*cli.Command{
			CheckpointCommand(),
			LogCommand(),
			AdminCommand(),
			ShellCommand(),
		},
		Before: loadConfig,
		// Errors are printed by main; the shell must survive them.
		ExitErrHandler: func(*cli.Context, error) {},
	}
}

// globalFlags returns the global CLI flags.
func globalFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			Usage:   "CLI configuration file",
			EnvVars: []string{"CHUNKMETA_CLI_CONFIG"},
			Value:   config.DefaultConfigPath(),
		},
		&cli.StringFlag{
			Name:    "server",
			Aliases: []string{"s"},
			Usage:   "Admin endpoint of chunkmeta-server",
		},
		&cli.DurationFlag{
			Name:  "timeout",
			Usage: "Admin request timeout",
		},
		&cli.StringFlag{
			Name:    "data-dir",
			Aliases: []string{"d"},
			Usage:   "Server data directory for offline commands",
		},
		&cli.StringFlag{
			Name:  "checkpoint-dir",
			Usage: "Checkpoint directory (default <data-dir>/kfscp)",
		},
		&cli.StringFlag{
			Name:  "log-dir",
			Usage: "Log segment directory (default <data-dir>/log)",
		},
		&cli.StringFlag{
			Name:    "encryption-key",
			Usage:   "Key to decrypt log payloads",
			EnvVars: []string{"CHUNKMETA_CLI_ENCRYPTION_KEY"},
		},
		&cli.StringFlag{
			Name:  "ca-file",
			Usage: "CA certificate trusted for https servers",
		},
		&cli.StringFlag{
			Name:  "cert-file",
			Usage: "Client certificate for servers requiring one",
		},
		&cli.StringFlag{
			Name:  "key-file",
			Usage: "Client certificate key",
		},
		&cli.StringFlag{
			Name:    "output",
			Aliases: []string{"o"},
			Usage:   "Output format: table, json, yaml",
		},
		&cli.BoolFlag{
			Name:    "wide",
			Aliases: []string{"w"},
			Usage:   "Show wide output (more columns)",
		},
	}
}

// loadConfig resolves the configuration file and applies explicitly set
// flags over it.
func loadConfig(c *cli.Context) error {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return err
	}
	overrides := map[string]*string{
		"server":         &cfg.Server,
		"data-dir":       &cfg.DataDir,
		"checkpoint-dir": &cfg.CheckpointDir,
		"log-dir":        &cfg.LogDir,
		"encryption-key": &cfg.EncryptionKey,
		"output":         &cfg.Output,
		"ca-file":        &cfg.CAFile,
		"cert-file":      &cfg.CertFile,
		"key-file":       &cfg.KeyFile,
	}
	for name, dst := range overrides {
		if c.IsSet(name) {
			*dst = c.String(name)
		}
	}
	if c.IsSet("timeout") {
		cfg.Timeout = c.Duration("timeout")
	}
	if _, err := output.ParseFormat(cfg.Output); err != nil {
		return err
	}
	c.App.Metadata[configKey] = cfg
	return nil
}

// Config returns the resolved configuration.
func Config(c *cli.Context) *config.CLIConfig {
	if cfg, ok := c.App.Metadata[configKey].(*config.CLIConfig); ok {
		return cfg
	}
	return config.Default()
}

// Client creates an admin client for the configured server.
func Client(c *cli.Context) (*connection.HTTPClient, error) {
	cfg := Config(c)
	if !cfg.UsesTLS() {
		return connection.NewHTTPClient(cfg.Server, cfg.Timeout), nil
	}
	tlsConfig, err := tlsroots.ClientConfig(cfg.CAFile, cfg.CertFile, cfg.KeyFile)
	if err != nil {
		return nil, err
	}
	return connection.NewHTTPClient(cfg.Server, cfg.Timeout, connection.WithTLS(tlsConfig)), nil
}

// render writes data in the configured format.
func render(c *cli.Context, data any) error {
	format, _ := output.ParseFormat(Config(c).Output)
	return output.NewFormatter(format, c.Bool("wide")).Format(c.App.Writer, data)
}

// tableOutput reports whether the human readable table format is active.
func tableOutput(c *cli.Context) bool {
	format, _ := output.ParseFormat(Config(c).Output)
	return format == output.FormatTable
}

func stderr(c *cli.Context) io.Writer {
	if c.App.ErrWriter != nil {
		return c.App.ErrWriter
	}
	return os.Stderr
}

// formatAge renders how long ago t was, e.g. "3 minutes ago".
func formatAge(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return humanize.Time(t)
}
