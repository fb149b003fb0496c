package main

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/breeze-rmm/patchaudit/internal/config"
	"github.com/breeze-rmm/patchaudit/internal/discovery"
)

var (
	sweepNetwork   string
	sweepTimeoutMs int
	sweepNoResolve bool
	sweepOutput    string
)

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Ping every host of a subnet and export the responders",
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := setup(func(cfg *config.Config) {
			if sweepNetwork != "" {
				cfg.Sweep.Network = sweepNetwork
			}
			if sweepTimeoutMs > 0 {
				cfg.Sweep.TimeoutMs = sweepTimeoutMs
			}
			if sweepNoResolve {
				cfg.Sweep.ResolveHostnames = false
			}
		})
		if err != nil {
			return err
		}
		defer env.Close()
		return runSweep(env)
	},
}

func init() {
	sweepCmd.Flags().StringVar(&sweepNetwork, "network", "", "IPv4 network in CIDR notation")
	sweepCmd.Flags().IntVar(&sweepTimeoutMs, "timeout-ms", 0, "per-host echo timeout in milliseconds")
	sweepCmd.Flags().BoolVar(&sweepNoResolve, "no-resolve", false, "skip reverse DNS lookups")
	sweepCmd.Flags().StringVar(&sweepOutput, "output", "", "CSV export path (default is network_scan_<timestamp>.csv in the sweep output dir)")

	rootCmd.AddCommand(sweepCmd)
}

func runSweep(env *runtimeEnv) error {
	cfg := env.cfg
	output := sweepOutput
	if output == "" {
		output = filepath.Join(cfg.Sweep.OutputDir, discovery.FileName(time.Now()))
	}

	pinger, err := discovery.NewICMPPinger()
	if err != nil {
		return err
	}
	defer pinger.Close()
	if !pinger.Privileged() {
		env.log.Debug("using unprivileged ICMP socket")
	}

	fmt.Printf("Scanning network: %s\n", cfg.Sweep.Network)
	devices, err := discovery.NewSweeper(pinger).Sweep(env.ctx, cfg.Sweep.Network, discovery.SweepOptions{
		Timeout:          time.Duration(cfg.Sweep.TimeoutMs) * time.Millisecond,
		ResolveHostnames: cfg.Sweep.ResolveHostnames,
	})
	if err != nil {
		return err
	}

	for _, d := range devices {
		fmt.Printf("IP: %s | Hostname: %s | Status: %s\n", d.IP, d.Hostname, d.Status)
	}
	path, err := discovery.Export(output, devices)
	if err != nil {
		return err
	}
	env.log.Info("sweep exported", slog.String("path", path), slog.Int("devices", len(devices)))
	fmt.Printf("Found %d devices, results saved to %s\n", len(devices), path)
	return nil
}
