package main

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/breeze-rmm/patchaudit/internal/baseline"
	"github.com/breeze-rmm/patchaudit/internal/collectors"
	"github.com/breeze-rmm/patchaudit/internal/config"
	"github.com/breeze-rmm/patchaudit/internal/logging"
	"github.com/breeze-rmm/patchaudit/internal/patching"
	"github.com/breeze-rmm/patchaudit/internal/report"
	"github.com/breeze-rmm/patchaudit/internal/storage"
)

var (
	collectPatches   []string
	collectBaseline  string
	collectOutputDir string
	collectFormat    string
	collectUpload    bool
)

// newFactProvider is replaced in tests to pin the host identity.
var newFactProvider = collectors.NewFactProvider

var collectCmd = &cobra.Command{
	Use:   "collect",
	Short: "Record which target patches are installed on this host",
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := setup(func(cfg *config.Config) {
			if len(collectPatches) > 0 {
				cfg.TargetPatches = collectPatches
			}
			if collectBaseline != "" {
				cfg.BaselineFile = collectBaseline
			}
			if collectOutputDir != "" {
				cfg.CollectionDir = collectOutputDir
			}
			if collectFormat != "" {
				cfg.OutputFormat = strings.ToLower(collectFormat)
			}
		})
		if err != nil {
			return err
		}
		defer env.Close()
		return runCollect(env)
	},
}

func init() {
	collectCmd.Flags().StringSliceVar(&collectPatches, "patches", nil, "target patch ids (comma separated), replacing target_patches")
	collectCmd.Flags().StringVar(&collectBaseline, "baseline", "", "baseline YAML file listing target patches")
	collectCmd.Flags().StringVar(&collectOutputDir, "output-dir", "", "directory for the per-host report")
	collectCmd.Flags().StringVar(&collectFormat, "format", "", "report format: csv or xlsx")
	collectCmd.Flags().BoolVar(&collectUpload, "upload", false, "upload the report to the configured store")

	rootCmd.AddCommand(collectCmd)
}

func runCollect(env *runtimeEnv) error {
	cfg := env.cfg

	targets, err := baseline.Resolve(cfg.TargetPatches, cfg.BaselineFile)
	if err != nil {
		return err
	}
	format, err := report.ParseFormat(cfg.OutputFormat)
	if err != nil {
		return err
	}

	provider := newFactProvider(env.ctx, cfg)
	collector := patching.NewCollector(provider, patching.Options{
		IncludeDomain:   cfg.IncludeDomain,
		RequireIdentity: cfg.RequireIdentity,
	})

	records, err := collector.Collect(env.ctx, targets)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		return errors.New("no records collected")
	}

	host := records[0].Hostname
	path := cfg.HostFilePath(host)
	if err := report.WriteFile(path, format, records); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	env.log.Info("report written", slog.String(logging.KeyPath, path), slog.Int(logging.KeyRows, len(records)))

	if collectUpload {
		store, err := storage.New(env.ctx, cfg.Store)
		if err != nil {
			return err
		}
		if err := storage.Push(env.ctx, store, cfg.Store.Prefix, path); err != nil {
			return err
		}
	}

	summary := patching.Summarize(records)
	fmt.Printf("Host:      %s\n", host)
	fmt.Printf("Report:    %s\n", path)
	fmt.Printf("Installed: %d/%d\n", summary.Installed, summary.Total)
	if !summary.Compliant() {
		fmt.Printf("Missing:   %s\n", strings.Join(summary.Missing, ", "))
	}
	return nil
}
