package patching

import (
	"context"
	"log/slog"
	"time"

	"github.com/breeze-rmm/patchaudit/internal/logging"
)

// Options parameterizes a Collector.
type Options struct {
	// IncludeDomain enables the domain lookup. When false the domain
	// column is filled with NotCollected.
	IncludeDomain bool
	// RequireIdentity turns an incomplete host identity into an error
	// instead of filling the gaps with Unknown.
	RequireIdentity bool
}

// Collector evaluates a target patch list against the local host.
type Collector struct {
	facts FactProvider
	opts  Options
}

// NewCollector creates a Collector reading facts from provider.
func NewCollector(provider FactProvider, opts Options) *Collector {
	return &Collector{facts: provider, opts: opts}
}

// Collect gathers the installed-patch set and host identity, then builds
// one record per target id. A failed installed-patch query is always
// fatal: an empty set would report every target as missing.
func (c *Collector) Collect(ctx context.Context, targets []string) ([]Record, error) {
	log := logging.Component(logging.FromContext(ctx), "collector")
	start := time.Now()

	installed, err := c.facts.InstalledPatchIDs(ctx)
	if err != nil {
		return nil, &SourceError{Source: c.facts.Name(), Err: err}
	}
	log.Debug("retrieved installed updates", slog.Int("count", len(installed)))

	identity, idErr := c.facts.HostIdentity(ctx)
	if !c.opts.IncludeDomain {
		identity.Domain = NotCollected
	}
	if missing := identity.missing(); len(missing) > 0 || idErr != nil {
		if c.opts.RequireIdentity {
			return nil, identityError(missing, idErr)
		}
		attrs := []any{slog.Any("missing", missing)}
		if idErr != nil {
			attrs = append(attrs, slog.String(logging.KeyError, idErr.Error()))
		}
		log.Warn("host identity incomplete, substituting "+Unknown, attrs...)
	}

	records := BuildRecords(targets, installed, identity)
	for _, r := range records {
		log.Debug("collecting row",
			slog.String(logging.KeyPatchID, r.PatchID),
			slog.String("installed", r.Installed.String()))
	}

	summary := Summarize(records)
	log.Info("patch compliance collected",
		slog.String(logging.KeyHost, identity.withSentinels().Hostname),
		slog.Int(logging.KeyRows, len(records)),
		slog.Int("missing", len(summary.Missing)),
		slog.Int64(logging.KeyDurationMs, time.Since(start).Milliseconds()))

	return records, nil
}

// BuildRecords produces one record per distinct target id, in target
// order. installed is tested by exact membership. Blank identity fields
// are replaced by Unknown; every record carries the same identity.
func BuildRecords(targets []string, installed PatchSet, identity Identity) []Record {
	identity = identity.withSentinels()
	seen := make(map[string]struct{}, len(targets))
	records := make([]Record, 0, len(targets))

	for _, id := range targets {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}

		records = append(records, Record{
			PatchID:   id,
			Installed: Installed(installed.Has(id)),
			Hostname:  identity.Hostname,
			Domain:    identity.Domain,
			IPAddress: identity.IPAddress,
			OSVersion: identity.OSVersion,
		})
	}
	return records
}

// Summary counts compliance across a set of records.
type Summary struct {
	Total     int
	Installed int
	Missing   []string // patch ids not installed, in record order
}

func Summarize(records []Record) Summary {
	s := Summary{Total: len(records)}
	for _, r := range records {
		if r.Installed {
			s.Installed++
		} else {
			s.Missing = append(s.Missing, r.PatchID)
		}
	}
	return s
}

// Compliant reports whether every target patch is installed.
func (s Summary) Compliant() bool {
	return len(s.Missing) == 0
}
