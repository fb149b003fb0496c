// Package collectors gathers the host facts a compliance run needs: the
// ids of installed patches and the identity of the local machine.
package collectors

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/breeze-rmm/patchaudit/internal/config"
	"github.com/breeze-rmm/patchaudit/internal/logging"
	"github.com/breeze-rmm/patchaudit/internal/patching"
)

// NewSource returns the installed-patch source registered under name.
func NewSource(name string, cfg *config.Config) (patching.InstalledSource, error) {
	timeout := time.Duration(cfg.CommandTimeoutSeconds) * time.Second
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "wmi":
		return NewWMISource(), nil
	case "wua":
		return NewWUASource(), nil
	case "powershell":
		return NewPowerShellSource(timeout), nil
	case "wmic":
		return NewWMICSource(timeout), nil
	case "file":
		if cfg.InstalledPatchesFile == "" {
			return nil, fmt.Errorf("patch source %q requires installed_patches_file", name)
		}
		return NewFileSource(cfg.InstalledPatchesFile), nil
	default:
		return nil, fmt.Errorf("unknown patch source %q", name)
	}
}

// NewFactProvider builds the provider configured by cfg: the union of the
// named patch sources plus the local identity lookup. Unknown source names
// are logged and skipped.
func NewFactProvider(ctx context.Context, cfg *config.Config) patching.FactProvider {
	log := logging.Component(logging.FromContext(ctx), "collectors")

	var sources []patching.InstalledSource
	for _, name := range cfg.PatchSources {
		src, err := NewSource(name, cfg)
		if err != nil {
			log.Warn("ignoring patch source", logging.KeyError, err.Error())
			continue
		}
		sources = append(sources, src)
	}

	return patching.Facts{
		Installed: patching.NewSourceSet(sources...),
		Identity:  NewIdentityCollector(cfg.IncludeDomain),
	}
}
