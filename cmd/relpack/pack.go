package main

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/desertwitch/relpack/internal/logger"
	"github.com/desertwitch/relpack/internal/release"
	"github.com/dustin/go-humanize"
)

// Pack resolves the manifest and packages every category.
//
// A summary line per archive and one line per change is written to
// standard output. Categories that failed to package are reported as a
// warning and do not fail the run; only manifest errors and a cancelled
// context do.
func (prog *Program) Pack(ctx context.Context) (*release.Report, error) {
	cfg := prog.cfg

	format, err := release.ParseFormat(cfg.Archive.Format)
	if err != nil {
		return nil, fmt.Errorf("failed to select archive format: %w", err)
	}

	res, err := prog.Resolve(ctx)
	if err != nil {
		return nil, err
	}

	packager := release.NewPackager(prog.fs, release.Options{
		Dir:        cfg.ReleaseDir,
		Format:     format,
		Level:      cfg.Archive.Level,
		Workers:    cfg.Workers,
		Changelog:  cfg.Changelog,
		DateFormat: cfg.DateFormat,
		Unpacked:   cfg.Unpacked,
		Sort:       prog.extSortConfig,
	}, prog.log)

	report, err := packager.Pack(ctx, res.Categories)
	if err != nil {
		return nil, fmt.Errorf("failed to package releases: %w", err)
	}

	for _, r := range report.Categories {
		if r.Skipped || r.Err != nil {
			continue
		}

		fmt.Fprintf(prog.stdout, "%s\t%d assets\t%s\t%d changes\n",
			filepath.Base(r.Archive), r.Assets, humanize.Bytes(uint64(r.Size)), len(r.Changes)) //nolint:gosec

		for _, c := range r.Changes {
			fmt.Fprintf(prog.stdout, "  %s\n", c)
		}
	}

	if len(report.Failed) > 0 {
		prog.log.Warn("some releases were not updated", logger.String("failed", strings.Join(report.Failed, ", ")))
	}

	return report, nil
}
