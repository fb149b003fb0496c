package config

import (
	"fmt"
	"net"
	"strings"
)

var knownPatchSources = map[string]bool{
	"wmi":        true,
	"wua":        true,
	"powershell": true,
	"wmic":       true,
	"file":       true,
}

var knownStoreProviders = map[string]bool{
	"local": true,
	"s3":    true,
	"azure": true,
	"gcs":   true,
	"b2":    true,
}

var validLogLevels = map[string]bool{
	"debug":   true,
	"info":    true,
	"warn":    true,
	"warning": true,
	"error":   true,
}

// ValidationResult separates problems that must stop a run from ones that
// were corrected or can be ignored.
type ValidationResult struct {
	Fatals   []error
	Warnings []error
}

func (r ValidationResult) HasFatals() bool {
	return len(r.Fatals) > 0
}

// AllErrors returns fatals followed by warnings.
func (r ValidationResult) AllErrors() []error {
	all := make([]error, 0, len(r.Fatals)+len(r.Warnings))
	all = append(all, r.Fatals...)
	return append(all, r.Warnings...)
}

// ValidateTiered checks the config and returns every problem found.
// Out-of-range numeric values are clamped in place and reported as warnings.
// Target patch ids are trimmed and blank entries dropped.
func (c *Config) ValidateTiered() ValidationResult {
	var r ValidationResult
	fatal := func(format string, args ...any) { r.Fatals = append(r.Fatals, fmt.Errorf(format, args...)) }
	warn := func(format string, args ...any) { r.Warnings = append(r.Warnings, fmt.Errorf(format, args...)) }

	if strings.TrimSpace(c.CollectionDir) == "" {
		fatal("collection_dir is required")
	}

	c.OutputFormat = strings.ToLower(strings.TrimSpace(c.OutputFormat))
	if c.OutputFormat != FormatCSV && c.OutputFormat != FormatXLSX {
		fatal("output_format %q is not valid (use csv or xlsx)", c.OutputFormat)
	}

	for name, value := range map[string]string{"combined_file": c.CombinedFile, "cleaned_file": c.CleanedFile} {
		if strings.TrimSpace(value) == "" {
			fatal("%s is required", name)
		} else if strings.ContainsAny(value, `/\`) {
			fatal("%s %q must be a bare file name", name, value)
		}
	}
	if c.CombinedFile != "" && c.CombinedFile == c.CleanedFile {
		fatal("combined_file and cleaned_file must differ")
	}

	cleaned := make([]string, 0, len(c.TargetPatches))
	for _, id := range c.TargetPatches {
		id = strings.TrimSpace(id)
		if id == "" {
			warn("target_patches contains a blank entry, ignoring")
			continue
		}
		cleaned = append(cleaned, id)
	}
	c.TargetPatches = cleaned

	for _, src := range c.PatchSources {
		if !knownPatchSources[strings.ToLower(src)] {
			warn("unknown patch source %q", src)
		}
		if strings.EqualFold(src, "file") && c.InstalledPatchesFile == "" {
			fatal("patch source \"file\" requires installed_patches_file")
		}
	}

	if c.CommandTimeoutSeconds < 5 {
		warn("command_timeout_seconds %d is below minimum 5, clamping", c.CommandTimeoutSeconds)
		c.CommandTimeoutSeconds = 5
	} else if c.CommandTimeoutSeconds > 3600 {
		warn("command_timeout_seconds %d exceeds maximum 3600, clamping", c.CommandTimeoutSeconds)
		c.CommandTimeoutSeconds = 3600
	}

	if c.LogLevel != "" && !validLogLevels[strings.ToLower(c.LogLevel)] {
		warn("log_level %q is not valid (use debug, info, warn, error)", c.LogLevel)
	}
	if c.LogFormat != "" && c.LogFormat != "text" && c.LogFormat != "json" {
		warn("log_format %q is not valid (use text or json)", c.LogFormat)
	}
	if c.LogMaxSizeMB < 1 {
		warn("log_max_size_mb %d is below minimum 1, clamping", c.LogMaxSizeMB)
		c.LogMaxSizeMB = 1
	} else if c.LogMaxSizeMB > 1024 {
		warn("log_max_size_mb %d exceeds maximum 1024, clamping", c.LogMaxSizeMB)
		c.LogMaxSizeMB = 1024
	}
	if c.LogMaxBackups < 0 {
		warn("log_max_backups %d is negative, clamping", c.LogMaxBackups)
		c.LogMaxBackups = 0
	}

	c.validateStore(fatal)

	if network := strings.TrimSpace(c.Sweep.Network); strings.Contains(network, "/") {
		if _, _, err := net.ParseCIDR(network); err != nil {
			fatal("sweep.network %q is not a valid CIDR: %v", c.Sweep.Network, err)
		}
	} else if net.ParseIP(network) == nil {
		fatal("sweep.network %q is neither a CIDR nor an address", c.Sweep.Network)
	}
	if c.Sweep.TimeoutMs < 100 {
		warn("sweep.timeout_ms %d is below minimum 100, clamping", c.Sweep.TimeoutMs)
		c.Sweep.TimeoutMs = 100
	} else if c.Sweep.TimeoutMs > 10000 {
		warn("sweep.timeout_ms %d exceeds maximum 10000, clamping", c.Sweep.TimeoutMs)
		c.Sweep.TimeoutMs = 10000
	}

	return r
}

func (c *Config) validateStore(fatal func(string, ...any)) {
	provider := strings.ToLower(strings.TrimSpace(c.Store.Provider))
	c.Store.Provider = provider
	if provider == "" {
		return
	}
	if !knownStoreProviders[provider] {
		fatal("store.provider %q is not valid (use local, s3, azure, gcs or b2)", c.Store.Provider)
		return
	}

	switch provider {
	case "local":
		if c.Store.Path == "" {
			fatal("store.path is required for the local provider")
		}
	case "s3":
		if c.Store.Bucket == "" || c.Store.Region == "" {
			fatal("store.bucket and store.region are required for the s3 provider")
		}
	case "azure":
		if c.Store.Bucket == "" {
			fatal("store.bucket (container) is required for the azure provider")
		}
		if c.Store.ConnectionString == "" && (c.Store.AccessKeyID == "" || c.Store.SecretAccessKey == "") {
			fatal("azure provider needs store.connection_string or store.access_key_id/secret_access_key")
		}
	case "gcs":
		if c.Store.Bucket == "" {
			fatal("store.bucket is required for the gcs provider")
		}
	case "b2":
		if c.Store.Bucket == "" || c.Store.AccessKeyID == "" || c.Store.SecretAccessKey == "" {
			fatal("store.bucket, store.access_key_id and store.secret_access_key are required for the b2 provider")
		}
	}
}
