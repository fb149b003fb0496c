package main

import (
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/breeze-rmm/patchaudit/internal/config"
	"github.com/breeze-rmm/patchaudit/internal/logging"
	"github.com/breeze-rmm/patchaudit/internal/report"
	"github.com/breeze-rmm/patchaudit/internal/storage"
)

var (
	aggregateDedupe    bool
	aggregatePartition bool
	aggregatePull      bool
	aggregateUpload    bool

	dedupeInput  string
	dedupeOutput string
)

var aggregateCmd = &cobra.Command{
	Use:   "aggregate",
	Short: "Merge the per-host reports into one combined report",
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := setup(func(cfg *config.Config) {
			if cmd.Flags().Changed("dedupe") {
				cfg.Dedupe = aggregateDedupe
			}
			if cmd.Flags().Changed("partition") {
				cfg.Partition = aggregatePartition
			}
		})
		if err != nil {
			return err
		}
		defer env.Close()
		return runAggregate(env)
	},
}

var dedupeCmd = &cobra.Command{
	Use:   "dedupe",
	Short: "Remove duplicate rows from a combined report",
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := setup(nil)
		if err != nil {
			return err
		}
		defer env.Close()
		return runDedupe(env)
	},
}

func init() {
	aggregateCmd.Flags().BoolVar(&aggregateDedupe, "dedupe", false, "drop duplicate rows from the combined report")
	aggregateCmd.Flags().BoolVar(&aggregatePartition, "partition", false, "split the combined report by OS version and installed status")
	aggregateCmd.Flags().BoolVar(&aggregatePull, "pull", false, "download per-host reports from the configured store first")
	aggregateCmd.Flags().BoolVar(&aggregateUpload, "upload", false, "upload the combined report to the configured store")

	dedupeCmd.Flags().StringVar(&dedupeInput, "input", "", "combined report to clean (default is the configured combined file)")
	dedupeCmd.Flags().StringVar(&dedupeOutput, "output", "", "cleaned report path (default is the configured cleaned file)")

	rootCmd.AddCommand(aggregateCmd)
	rootCmd.AddCommand(dedupeCmd)
}

func runAggregate(env *runtimeEnv) error {
	cfg := env.cfg
	format, err := report.ParseFormat(cfg.OutputFormat)
	if err != nil {
		return err
	}
	exclude := []string{cfg.CombinedFile, cfg.CleanedFile}

	var store storage.Provider
	if aggregatePull || aggregateUpload {
		if store, err = storage.New(env.ctx, cfg.Store); err != nil {
			return err
		}
	}
	if aggregatePull {
		if _, err := storage.Pull(env.ctx, store, cfg.Store.Prefix, cfg.CollectionDir, format.Ext(), exclude...); err != nil {
			return err
		}
	}

	rep, err := report.Aggregate(env.ctx, cfg.CollectionDir, report.AggregateOptions{
		Format:  format,
		Exclude: exclude,
		Dedupe:  cfg.Dedupe,
	})
	if err != nil {
		return err
	}

	var partitions []report.Partition
	if cfg.Partition {
		partitions = report.PartitionBy(rep.Records, report.ByOSAndInstalled)
	}

	written, err := report.WriteCombined(cfg.CombinedPath(), format, rep.Records, partitions)
	if err != nil {
		return fmt.Errorf("write combined report: %w", err)
	}
	env.log.Info("combined report written",
		slog.String(logging.KeyPath, cfg.CombinedPath()),
		slog.Int(logging.KeyRows, len(rep.Records)),
		slog.Int("files", len(written)))

	if aggregateUpload {
		if err := storage.Push(env.ctx, store, cfg.Store.Prefix, written...); err != nil {
			return err
		}
	}

	fmt.Printf("Combined %d rows from %d files into %s\n", len(rep.Records), len(rep.Files), cfg.CombinedPath())
	for _, s := range rep.Skipped {
		fmt.Printf("Skipped %s: %v\n", filepath.Base(s.Path), s.Err)
	}
	if err := rep.Err(); err != nil {
		return &exitError{code: exitPartial, err: fmt.Errorf("%d input files skipped: %w", len(rep.Skipped), err)}
	}
	return nil
}

func runDedupe(env *runtimeEnv) error {
	cfg := env.cfg
	in, out := dedupeInput, dedupeOutput
	if in == "" {
		in = cfg.CombinedPath()
	}
	if out == "" {
		out = cfg.CleanedPath()
	}
	format, err := report.ParseFormat(filepath.Ext(out))
	if err != nil {
		return err
	}

	records, err := report.ReadFile(in)
	if err != nil {
		return err
	}
	cleaned := report.Dedupe(records)
	if err := report.WriteFile(out, format, cleaned); err != nil {
		return fmt.Errorf("write cleaned report: %w", err)
	}

	removed := len(records) - len(cleaned)
	env.log.Info("cleaned report written", slog.String(logging.KeyPath, out), slog.Int("removed", removed))
	fmt.Printf("Removed %d duplicate rows, %d remain in %s\n", removed, len(cleaned), out)
	return nil
}
