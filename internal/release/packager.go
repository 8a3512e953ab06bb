package release

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/desertwitch/relpack/internal/asset"
	"github.com/desertwitch/relpack/internal/logger"
	"github.com/dustin/go-humanize"
	"github.com/lanrat/extsort"
	"github.com/spf13/afero"
	"golang.org/x/sync/errgroup"
)

const (
	// DefaultDir is the release output directory, relative to the content root.
	DefaultDir = "release"
	// DefaultChangelog is the changelog file name inside the release directory.
	DefaultChangelog = "changelog.txt"
	// DefaultDateFormat stamps changelog blocks as day/month/year.
	DefaultDateFormat = "02/01/06"

	backupSuffix = ".old"
	readmeEntry  = "readme.txt"
)

// PackagingError reports an I/O failure while packaging one category. The
// category's previous archive, if any, stays behind as a backup.
type PackagingError struct {
	Category string
	Err      error
}

func (e *PackagingError) Error() string {
	return fmt.Sprintf("failed to package category %q: %v", e.Category, e.Err)
}

func (e *PackagingError) Unwrap() error {
	return e.Err
}

// Options configures a [Packager].
type Options struct {
	Dir        string
	Format     Format
	Level      int
	Gzip       GzipConfig
	Workers    int
	Changelog  string
	DateFormat string
	Unpacked   bool
	Now        func() time.Time
	Sort       *extsort.Config
}

//nolint:mnd
func (o Options) withDefaults() Options {
	if o.Dir == "" {
		o.Dir = DefaultDir
	}
	if o.Format == "" {
		o.Format = FormatZip
	}
	if o.Gzip.BlockSize <= 0 {
		o.Gzip.BlockSize = 1 << 20
	}
	if o.Gzip.BlockCount <= 0 {
		o.Gzip.BlockCount = runtime.GOMAXPROCS(0)
	}
	if o.Workers <= 0 {
		o.Workers = runtime.GOMAXPROCS(0)
	}
	if o.Changelog == "" {
		o.Changelog = DefaultChangelog
	}
	if o.DateFormat == "" {
		o.DateFormat = DefaultDateFormat
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	if o.Sort == nil {
		o.Sort = DefaultSortConfig()
	}

	return o
}

// CategoryReport is the outcome of packaging one category.
type CategoryReport struct {
	Name    string
	Archive string
	Assets  int
	Size    int64
	Skipped bool
	Diffed  bool
	Changes []Change
	Err     error
}

// Report is the outcome of a whole packaging run.
type Report struct {
	Categories []CategoryReport
	Failed     []string
	Changes    int
	Changelog  string
	Unpacked   int
}

// Packager turns resolved categories into release archives.
type Packager struct {
	fs   afero.Fs
	opts Options
	log  *logger.Logger
}

// NewPackager returns a pointer to a new [Packager].
func NewPackager(fs afero.Fs, opts Options, log *logger.Logger) *Packager {
	if log == nil {
		log = logger.Nop()
	}

	return &Packager{
		fs:   fs,
		opts: opts.withDefaults(),
		log:  log.With("release"),
	}
}

// Options returns the effective options.
func (p *Packager) Options() Options {
	return p.opts
}

// ArchivePath returns where the archive for a category is written.
func (p *Packager) ArchivePath(category string) string {
	return filepath.Join(p.opts.Dir, category+p.opts.Format.Ext())
}

// ChangelogPath returns the changelog location.
func (p *Packager) ChangelogPath() string {
	if filepath.IsAbs(p.opts.Changelog) {
		return p.opts.Changelog
	}

	return filepath.Join(p.opts.Dir, p.opts.Changelog)
}

// Pack builds one archive per non-empty category. Categories are packaged
// concurrently; a failing category is recorded and does not stop the others.
// The changelog is only appended once all categories are done.
func (p *Packager) Pack(ctx context.Context, cats *asset.Categories) (*Report, error) {
	if err := p.fs.MkdirAll(p.opts.Dir, baseFolderPerms); err != nil {
		return nil, fmt.Errorf("failed to create release directory: %w", err)
	}

	all := cats.All()
	reports := make([]CategoryReport, len(all))

	var g errgroup.Group
	g.SetLimit(p.opts.Workers)

	for i, c := range all {
		if c.Len() == 0 {
			p.log.Info("category has no assets, skipping", logger.String("category", c.Name))
			reports[i] = CategoryReport{Name: c.Name, Skipped: true}

			continue
		}

		g.Go(func() error {
			reports[i] = p.packCategory(ctx, c)

			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("failed to pack releases: %w", err)
	}

	report := &Report{Categories: reports}
	for _, r := range reports {
		if r.Err != nil {
			report.Failed = append(report.Failed, r.Name)
			p.log.Error("category failed", logger.String("category", r.Name), logger.Err(r.Err))

			continue
		}
		report.Changes += len(r.Changes)
	}

	if p.opts.Unpacked {
		n, err := p.copyUnpacked(ctx, all)
		if err != nil {
			report.Failed = append(report.Failed, unpackedDir)
			p.log.Error("failed to copy unpacked assets", logger.Err(err))
		} else {
			report.Unpacked = n
			p.log.Info("copied unpacked assets", logger.Int("assets", n))
		}
	}

	if report.Changes == 0 {
		p.log.Info("no changes")

		return report, nil
	}

	if err := p.appendChangelog(reports); err != nil {
		return report, err
	}
	report.Changelog = p.ChangelogPath()

	p.log.Info("changelog updated", logger.Int("changes", report.Changes), logger.String("file", report.Changelog))

	return report, nil
}

func (p *Packager) packCategory(ctx context.Context, c *asset.Category) CategoryReport {
	output := p.ArchivePath(c.Name)
	report := CategoryReport{Name: c.Name, Archive: output, Assets: c.Len()}

	fail := func(err error) CategoryReport {
		report.Err = &PackagingError{Category: c.Name, Err: err}

		return report
	}

	if err := ctx.Err(); err != nil {
		return fail(err)
	}

	backup, err := p.backup(output)
	if err != nil {
		return fail(err)
	}

	size, err := WriteArchive(p.fs, output, p.opts.Format, p.opts.Level, p.opts.Gzip, p.members(c))
	if err != nil {
		return fail(err)
	}
	report.Size = size

	p.log.Info("packed category",
		logger.String("category", c.Name),
		logger.Int("assets", c.Len()),
		logger.String("size", humanize.Bytes(uint64(size))), //nolint:gosec
	)

	if backup == "" {
		p.log.Debug("no previous archive to compare to", logger.String("category", c.Name))

		return report
	}

	changes, err := Diff(ctx, p.fs, backup, output, p.sortConfig())
	if err != nil {
		return fail(err)
	}
	report.Diffed = true
	report.Changes = changes

	p.log.Info("compared archives", logger.String("category", c.Name), logger.Int("changes", len(changes)))

	if err := p.fs.Remove(backup); err != nil {
		return fail(fmt.Errorf("failed to delete backup: %w", err))
	}

	return report
}

// sortConfig hands every diff its own copy, since categories diff in parallel.
func (p *Packager) sortConfig() *extsort.Config {
	cfg := *p.opts.Sort

	return &cfg
}

// backup moves an existing archive aside and returns the backup path, or ""
// when there was nothing to back up. A backup left behind by a failed run
// is the last good build and is reused when the archive itself is missing.
func (p *Packager) backup(output string) (string, error) {
	old := output + backupSuffix

	exists, err := afero.Exists(p.fs, output)
	if err != nil {
		return "", fmt.Errorf("failed to stat previous archive: %w", err)
	}
	if !exists {
		leftover, err := afero.Exists(p.fs, old)
		if err != nil {
			return "", fmt.Errorf("failed to stat previous backup: %w", err)
		}
		if !leftover {
			return "", nil
		}

		p.log.Warn("comparing against backup of a failed run", logger.String("backup", old))

		return old, nil
	}

	if err := p.fs.Remove(old); err != nil && !errors.Is(err, os.ErrNotExist) {
		return "", fmt.Errorf("failed to remove stale backup: %w", err)
	}

	if err := p.fs.Rename(output, old); err != nil {
		return "", fmt.Errorf("failed to back up previous archive: %w", err)
	}

	return old, nil
}

// members lists what goes into a category's archive. The first asset to
// claim a packaged path wins; the readme comes last.
func (p *Packager) members(c *asset.Category) []Member {
	assets := c.Assets()
	members := make([]Member, 0, len(assets)+1)
	claimed := make(map[string]asset.Asset, len(assets))

	claim := func(name string, a asset.Asset) bool {
		if prev, ok := claimed[name]; ok {
			p.log.Warn("duplicate packaged path, keeping first",
				logger.String("category", c.Name),
				logger.String("path", name),
				logger.String("kept", prev.Key()),
				logger.String("dropped", a.Key()),
			)

			return false
		}
		claimed[name] = a

		return true
	}

	for _, a := range assets {
		if claim(a.PackagedPath(), a) {
			members = append(members, Member{Name: a.PackagedPath(), Source: a.Abs()})
		}
	}

	if c.HasReadme() && claim(readmeEntry, asset.Asset{Path: readmeEntry}) {
		members = append(members, Member{Name: readmeEntry, Data: []byte(c.ReadmeText())})
	}

	return members
}
