package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/spf13/viper"
)

const (
	FormatCSV  = "csv"
	FormatXLSX = "xlsx"
)

type Config struct {
	CollectionDir         string   `mapstructure:"collection_dir"`
	TargetPatches         []string `mapstructure:"target_patches"`
	BaselineFile          string   `mapstructure:"baseline_file"`
	OutputFormat          string   `mapstructure:"output_format"`
	IncludeDomain         bool     `mapstructure:"include_domain"`
	RequireIdentity       bool     `mapstructure:"require_identity"`
	PatchSources          []string `mapstructure:"patch_sources"`
	InstalledPatchesFile  string   `mapstructure:"installed_patches_file"`
	CommandTimeoutSeconds int      `mapstructure:"command_timeout_seconds"`
	CombinedFile          string   `mapstructure:"combined_file"`
	CleanedFile           string   `mapstructure:"cleaned_file"`
	Dedupe                bool     `mapstructure:"dedupe"`
	Partition             bool     `mapstructure:"partition"`
	LogLevel              string   `mapstructure:"log_level"`
	LogFormat             string   `mapstructure:"log_format"`
	LogFile               string   `mapstructure:"log_file"`
	LogMaxSizeMB          int      `mapstructure:"log_max_size_mb"`
	LogMaxBackups         int      `mapstructure:"log_max_backups"`

	Store StoreConfig `mapstructure:"store"`
	Sweep SweepConfig `mapstructure:"sweep"`
}

// StoreConfig selects where per-host files are published and pulled from.
// An empty Provider keeps everything in CollectionDir.
type StoreConfig struct {
	Provider         string `mapstructure:"provider"` // local, s3, azure, gcs, b2
	Path             string `mapstructure:"path"`
	Bucket           string `mapstructure:"bucket"`
	Prefix           string `mapstructure:"prefix"`
	Region           string `mapstructure:"region"`
	Endpoint         string `mapstructure:"endpoint"`
	AccessKeyID      string `mapstructure:"access_key_id"`
	SecretAccessKey  string `mapstructure:"secret_access_key"`
	SessionToken     string `mapstructure:"session_token"`
	ConnectionString string `mapstructure:"connection_string"`
	CredentialsFile  string `mapstructure:"credentials_file"`
}

type SweepConfig struct {
	Network          string `mapstructure:"network"`
	TimeoutMs        int    `mapstructure:"timeout_ms"`
	ResolveHostnames bool   `mapstructure:"resolve_hostnames"`
	OutputDir        string `mapstructure:"output_dir"`
}

func Default() *Config {
	return &Config{
		CollectionDir:         defaultCollectionDir(),
		OutputFormat:          FormatCSV,
		IncludeDomain:         true,
		PatchSources:          []string{"wmi", "powershell"},
		CommandTimeoutSeconds: 120,
		CombinedFile:          "aggregated_updates",
		CleanedFile:           "cleaned_updates_report",
		LogLevel:              "info",
		LogFormat:             "text",
		LogMaxSizeMB:          10,
		LogMaxBackups:         3,
		Sweep: SweepConfig{
			Network:          "192.168.1.0/24",
			TimeoutMs:        1000,
			ResolveHostnames: true,
			OutputDir:        ".",
		},
	}
}

// Load reads cfgFile (or patchaudit.yaml from the config search path) on
// top of Default(). Environment variables prefixed PATCHAUDIT_ override
// file values; nested keys use underscores (PATCHAUDIT_STORE_BUCKET).
func Load(cfgFile string) (*Config, error) {
	cfg := Default()
	v := newViper(cfg)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("patchaudit")
		v.SetConfigType("yaml")
		v.AddConfigPath(configDir())
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	return cfg, nil
}

// SaveTo writes cfg as YAML to cfgFile, or to the platform config directory
// when cfgFile is empty. Returns the path written.
func SaveTo(cfg *Config, cfgFile string) (string, error) {
	v := newViper(cfg)

	cfgPath := cfgFile
	if cfgPath == "" {
		cfgPath = filepath.Join(configDir(), "patchaudit.yaml")
	}
	if dir := filepath.Dir(cfgPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return "", err
		}
	}

	if err := v.WriteConfigAs(cfgPath); err != nil {
		return "", err
	}

	// may carry storage credentials
	return cfgPath, os.Chmod(cfgPath, 0o600)
}

// Extension returns the file extension for the configured output format.
func (c *Config) Extension() string {
	if strings.EqualFold(c.OutputFormat, FormatXLSX) {
		return "." + FormatXLSX
	}
	return "." + FormatCSV
}

// HostFileName is the per-host output file name for hostname.
func (c *Config) HostFileName(hostname string) string {
	return hostname + "_updates" + c.Extension()
}

func (c *Config) HostFilePath(hostname string) string {
	return filepath.Join(c.CollectionDir, c.HostFileName(hostname))
}

func (c *Config) CombinedPath() string {
	return filepath.Join(c.CollectionDir, c.CombinedFile+c.Extension())
}

func (c *Config) CleanedPath() string {
	return filepath.Join(c.CollectionDir, c.CleanedFile+c.Extension())
}

// newViper returns a private viper instance seeded with every key of cfg
// so that AutomaticEnv can resolve overrides for keys absent from the file.
func newViper(cfg *Config) *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix("PATCHAUDIT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("collection_dir", cfg.CollectionDir)
	v.SetDefault("target_patches", cfg.TargetPatches)
	v.SetDefault("baseline_file", cfg.BaselineFile)
	v.SetDefault("output_format", cfg.OutputFormat)
	v.SetDefault("include_domain", cfg.IncludeDomain)
	v.SetDefault("require_identity", cfg.RequireIdentity)
	v.SetDefault("patch_sources", cfg.PatchSources)
	v.SetDefault("installed_patches_file", cfg.InstalledPatchesFile)
	v.SetDefault("command_timeout_seconds", cfg.CommandTimeoutSeconds)
	v.SetDefault("combined_file", cfg.CombinedFile)
	v.SetDefault("cleaned_file", cfg.CleanedFile)
	v.SetDefault("dedupe", cfg.Dedupe)
	v.SetDefault("partition", cfg.Partition)
	v.SetDefault("log_level", cfg.LogLevel)
	v.SetDefault("log_format", cfg.LogFormat)
	v.SetDefault("log_file", cfg.LogFile)
	v.SetDefault("log_max_size_mb", cfg.LogMaxSizeMB)
	v.SetDefault("log_max_backups", cfg.LogMaxBackups)

	v.SetDefault("store.provider", cfg.Store.Provider)
	v.SetDefault("store.path", cfg.Store.Path)
	v.SetDefault("store.bucket", cfg.Store.Bucket)
	v.SetDefault("store.prefix", cfg.Store.Prefix)
	v.SetDefault("store.region", cfg.Store.Region)
	v.SetDefault("store.endpoint", cfg.Store.Endpoint)
	v.SetDefault("store.access_key_id", cfg.Store.AccessKeyID)
	v.SetDefault("store.secret_access_key", cfg.Store.SecretAccessKey)
	v.SetDefault("store.session_token", cfg.Store.SessionToken)
	v.SetDefault("store.connection_string", cfg.Store.ConnectionString)
	v.SetDefault("store.credentials_file", cfg.Store.CredentialsFile)

	v.SetDefault("sweep.network", cfg.Sweep.Network)
	v.SetDefault("sweep.timeout_ms", cfg.Sweep.TimeoutMs)
	v.SetDefault("sweep.resolve_hostnames", cfg.Sweep.ResolveHostnames)
	v.SetDefault("sweep.output_dir", cfg.Sweep.OutputDir)

	return v
}

func configDir() string {
	switch runtime.GOOS {
	case "windows":
		return filepath.Join(os.Getenv("ProgramData"), "PatchAudit")
	case "darwin":
		return "/Library/Application Support/PatchAudit"
	default:
		return "/etc/patchaudit"
	}
}

func defaultCollectionDir() string {
	if runtime.GOOS == "windows" {
		return filepath.Join(os.Getenv("ProgramData"), "PatchAudit", "updates")
	}
	return "/opt/ansible/win_updates"
}
