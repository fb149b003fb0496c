package patching

import (
	"context"
	"errors"
	"log/slog"

	"github.com/breeze-rmm/patchaudit/internal/logging"
)

// InstalledSource reports installed patch ids from one OS facility
// (WMI, Windows Update Agent, Get-HotFix, ...).
type InstalledSource interface {
	Name() string
	InstalledPatchIDs(ctx context.Context) (PatchSet, error)
}

// IdentitySource reports the identity of the local host. A partial
// Identity may be returned together with an error.
type IdentitySource interface {
	HostIdentity(ctx context.Context) (Identity, error)
}

// FactProvider supplies the two facts a collection run needs.
type FactProvider interface {
	InstalledSource
	IdentitySource
}

// SourceSet unions the ids reported by several installed-patch sources.
type SourceSet struct {
	sources []InstalledSource
}

// NewSourceSet creates a SourceSet querying sources in order.
func NewSourceSet(sources ...InstalledSource) *SourceSet {
	return &SourceSet{sources: sources}
}

func (s *SourceSet) Name() string {
	return "union"
}

// InstalledPatchIDs queries every source and returns the union. A failing
// source is logged and skipped as long as at least one source succeeds;
// if all fail, the joined errors are returned.
func (s *SourceSet) InstalledPatchIDs(ctx context.Context) (PatchSet, error) {
	if len(s.sources) == 0 {
		return nil, ErrNoSources
	}

	log := logging.FromContext(ctx)
	installed := NewPatchSet()
	var errs []error
	succeeded := 0

	for _, source := range s.sources {
		ids, err := source.InstalledPatchIDs(ctx)
		if err != nil {
			errs = append(errs, &SourceError{Source: source.Name(), Err: err})
			log.Warn("installed-patch source failed", slog.String("source", source.Name()), slog.String(logging.KeyError, err.Error()))
			continue
		}

		succeeded++
		for id := range ids {
			installed[id] = struct{}{}
		}
		log.Debug("installed-patch source queried", slog.String("source", source.Name()), slog.Int("count", len(ids)))
	}

	if succeeded == 0 {
		return nil, errors.Join(errs...)
	}
	return installed, nil
}

// Facts pairs an installed-patch source with an identity source.
type Facts struct {
	Installed InstalledSource
	Identity  IdentitySource
}

func (f Facts) Name() string {
	return f.Installed.Name()
}

func (f Facts) InstalledPatchIDs(ctx context.Context) (PatchSet, error) {
	return f.Installed.InstalledPatchIDs(ctx)
}

func (f Facts) HostIdentity(ctx context.Context) (Identity, error) {
	return f.Identity.HostIdentity(ctx)
}
