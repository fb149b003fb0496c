package report

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/breeze-rmm/patchaudit/internal/logging"
	"github.com/breeze-rmm/patchaudit/internal/patching"
)

// SkippedFile is an input file left out of a report.
type SkippedFile struct {
	Path string
	Err  error
}

// Report is the combined result of an aggregation pass.
type Report struct {
	Records []patching.Record
	Files   []string // inputs that contributed rows, in read order
	Skipped []SkippedFile
}

// Err joins the errors of every skipped file, or returns nil.
func (r *Report) Err() error {
	errs := make([]error, 0, len(r.Skipped))
	for _, s := range r.Skipped {
		errs = append(errs, s.Err)
	}
	return errors.Join(errs...)
}

// AggregateOptions controls file discovery and post-processing. Exclude
// holds base names (without extension) of outputs that must not be read
// back as inputs.
type AggregateOptions struct {
	Format  Format
	Exclude []string
	Dedupe  bool
}

// Aggregate reads every per-host file in dir and concatenates their rows in
// file-name order. A directory without input files yields an empty report.
// A file that cannot be decoded, including one with a mismatched header,
// is recorded in Report.Skipped and the remaining files still contribute.
func Aggregate(ctx context.Context, dir string, opts AggregateOptions) (*Report, error) {
	log := logging.Component(logging.FromContext(ctx), "aggregator")
	start := time.Now()

	paths, err := Discover(dir, opts.Format, opts.Exclude...)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", dir, err)
	}

	report := &Report{Records: []patching.Record{}}
	if len(paths) == 0 {
		log.Warn("no per-host files found", slog.String(logging.KeyPath, dir), slog.String("format", string(opts.Format)))
		return report, nil
	}

	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		records, err := ReadFile(path)
		if err != nil {
			report.Skipped = append(report.Skipped, SkippedFile{Path: path, Err: err})
			log.Error("skipping input file", slog.String(logging.KeyPath, path), slog.String(logging.KeyError, err.Error()))
			continue
		}
		report.Records = append(report.Records, records...)
		report.Files = append(report.Files, path)
		log.Debug("read input file", slog.String(logging.KeyPath, path), slog.Int(logging.KeyRows, len(records)))
	}

	if opts.Dedupe {
		before := len(report.Records)
		report.Records = Dedupe(report.Records)
		log.Info("removed duplicate rows", slog.Int("removed", before-len(report.Records)))
	}

	log.Info("aggregation complete",
		slog.Int("files", len(report.Files)),
		slog.Int("skipped", len(report.Skipped)),
		slog.Int(logging.KeyRows, len(report.Records)),
		slog.Int64(logging.KeyDurationMs, time.Since(start).Milliseconds()))

	return report, nil
}

// Dedupe drops records identical in every field to an earlier record.
// Order of the remaining records is preserved, so Dedupe is idempotent.
func Dedupe(records []patching.Record) []patching.Record {
	seen := make(map[patching.Record]struct{}, len(records))
	out := make([]patching.Record, 0, len(records))
	for _, r := range records {
		if _, dup := seen[r]; dup {
			continue
		}
		seen[r] = struct{}{}
		out = append(out, r)
	}
	return out
}
