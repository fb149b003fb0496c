package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/breeze-rmm/patchaudit/internal/config"
	"github.com/breeze-rmm/patchaudit/internal/logging"
)

var (
	version   = "0.1.0"
	cfgFile   string
	logLevel  string
	logFormat string
)

var rootCmd = &cobra.Command{
	Use:           "patchaudit",
	Short:         "Windows patch compliance collector and aggregator",
	Long:          `patchaudit records which target patches are installed on a Windows host, merges the per-host reports on a controller, and sweeps subnets for live hosts.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("patchaudit v%s\n", version)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is patchaudit.yaml in the platform config directory)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level: debug, info, warn, error")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "log format: text or json")

	rootCmd.AddCommand(versionCmd)
}

// exitError carries a specific process exit code.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }

const exitPartial = 2

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		var ee *exitError
		if errors.As(err, &ee) {
			os.Exit(ee.code)
		}
		os.Exit(1)
	}
}

// runtimeEnv is what every command needs: a validated config and a context
// carrying the logger. Close flushes the log file.
type runtimeEnv struct {
	ctx    context.Context
	cfg    *config.Config
	log    *slog.Logger
	closer io.Closer
	stop   context.CancelFunc
}

func (e *runtimeEnv) Close() {
	e.stop()
	_ = e.closer.Close()
}

// setup loads and validates the config, opens the logger and returns a
// context that is cancelled on SIGINT or SIGTERM. mutate may apply
// command flags to the config before validation.
func setup(mutate func(cfg *config.Config)) (*runtimeEnv, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	if logFormat != "" {
		cfg.LogFormat = logFormat
	}
	if mutate != nil {
		mutate(cfg)
	}

	result := cfg.ValidateTiered()
	if result.HasFatals() {
		return nil, fmt.Errorf("invalid config: %w", errors.Join(result.Fatals...))
	}

	logger, closer, err := logging.Open(logging.Options{
		Format:     cfg.LogFormat,
		Level:      cfg.LogLevel,
		File:       cfg.LogFile,
		MaxSizeMB:  cfg.LogMaxSizeMB,
		MaxBackups: cfg.LogMaxBackups,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open log: %w", err)
	}
	for _, w := range result.Warnings {
		logger.Warn("config warning", slog.String(logging.KeyError, w.Error()))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	ctx = logging.NewContext(ctx, logger)

	return &runtimeEnv{ctx: ctx, cfg: cfg, log: logger, closer: closer, stop: stop}, nil
}
