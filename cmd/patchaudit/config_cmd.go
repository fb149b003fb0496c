package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/breeze-rmm/patchaudit/internal/config"
)

var configForce bool

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage the patchaudit configuration file",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a config file populated with defaults",
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfgFile != "" && !configForce {
			if _, err := os.Stat(cfgFile); err == nil {
				return fmt.Errorf("%s already exists (use --force to overwrite)", cfgFile)
			}
		}
		path, err := config.SaveTo(config.Default(), cfgFile)
		if err != nil {
			return fmt.Errorf("failed to write config: %w", err)
		}
		fmt.Printf("Config written to %s\n", path)
		return nil
	},
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check the config file and report problems",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgFile)
		if err != nil {
			return err
		}
		result := cfg.ValidateTiered()
		for _, w := range result.Warnings {
			fmt.Printf("warning: %v\n", w)
		}
		for _, f := range result.Fatals {
			fmt.Printf("error: %v\n", f)
		}
		if result.HasFatals() {
			return errors.New("config is invalid")
		}
		fmt.Println("Config is valid")
		return nil
	},
}

func init() {
	configInitCmd.Flags().BoolVar(&configForce, "force", false, "overwrite an existing config file")

	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configValidateCmd)
	rootCmd.AddCommand(configCmd)
}
