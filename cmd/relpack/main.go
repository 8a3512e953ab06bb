/*
relpack compiles a release manifest into per-category archives and a changelog.

It reads a line-oriented manifest (release_assets.txt by default) that declares
release categories and the project files that belong to each. Asset expressions
may name files, directories or wildcards; scripts pull in the scripts they include.
Every category becomes one archive in the release directory. When a previous
archive exists, the two are compared entry by entry and the differences are
appended to a dated changelog. It supports these commands:

	pack   - resolve the manifest, build all archives and update the changelog
	assets - resolve the manifest and print the categories without packaging
	list   - produce a sorted or unsorted listing of the entries of an archive
	diff   - print the entry differences between two archives

All commands print their primary results (such as asset paths or differences) to standard output
(stdout). Any encountered errors and operational messages are printed to standard error (stderr).

Exit Codes:

	0 - Success
	1 - Differences found (only for 'diff')
	2 - General failure (invalid manifest, I/O errors, etc.)
*/
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/desertwitch/relpack/internal/config"
	"github.com/desertwitch/relpack/internal/logger"
	"github.com/desertwitch/relpack/internal/release"
	"github.com/lanrat/extsort"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
)

const (
	exitTimeout        = 10 * time.Second
	exitCodeSuccess    = 0
	exitCodeDiffsFound = 1
	exitCodeFailure    = 2
)

var (
	// Version is automatically populated by the build process.
	Version string

	// ErrDiffsFound is an exit-code relevant sentinel error.
	ErrDiffsFound = errors.New("differences were found")
)

// Program is the primary structure of the application.
type Program struct {
	fs afero.Fs

	stdout io.Writer
	stderr io.Writer

	cfg *config.Config
	log *logger.Logger

	extSortConfig *extsort.Config
}

// NewProgram returns a pointer to a new [Program].
func NewProgram(fs afero.Fs, stdout io.Writer, stderr io.Writer, cfg *config.Config, extsortConfig *extsort.Config) *Program {
	if fs == nil {
		fs = afero.NewOsFs()
	}

	if stdout == nil {
		stdout = os.Stdout
	}

	if stderr == nil {
		stderr = os.Stderr
	}

	if cfg == nil {
		c := config.Default()
		cfg = &c
	}

	if extsortConfig == nil {
		extsortConfig = release.DefaultSortConfig()
	}

	log := logger.New(stderr, logger.Config{
		Level:     logger.ParseLevel(cfg.Log.Level),
		JSON:      cfg.Log.JSON,
		Component: "relpack",
	})

	return &Program{
		fs:            fs,
		stdout:        stdout,
		stderr:        stderr,
		cfg:           cfg,
		log:           log,
		extSortConfig: extsortConfig,
	}
}

// loadProgram builds a [Program] from the configuration sources visible to cmd.
func loadProgram(cmd *cobra.Command, fs afero.Fs, stdout io.Writer, stderr io.Writer, extsortConfig *extsort.Config) (*Program, error) {
	dir, _ := cmd.Flags().GetString("dir")
	file, _ := cmd.Flags().GetString("config")

	cfg, err := config.Load(fs, config.Options{Dir: dir, File: file, Flags: cmd.Flags()})
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	return NewProgram(fs, stdout, stderr, cfg, extsortConfig), nil
}

// addResolveFlags registers the flags shared by commands that read a manifest.
func addResolveFlags(cmd *cobra.Command) {
	d := config.Default()

	cmd.Flags().String("manifest", d.Manifest, "manifest file, relative to the content root")
	cmd.Flags().String("content-root", "", "content root directory (default: the project directory)")
	cmd.Flags().String("game-root", "", "optional second root searched after the content root")
	cmd.Flags().Bool("gitignore", d.Index.Gitignore, "skip files matched by each root's .gitignore")
	cmd.Flags().Bool("transitive", d.Scripts.Transitive, "also add the dependencies of script dependencies")
}

func newRootCmd(ctx context.Context, fs afero.Fs, stdout io.Writer, stderr io.Writer) *cobra.Command {
	d := config.Default()

	rootCmd := &cobra.Command{
		Use:               "relpack",
		Short:             rootHelpShort,
		Long:              rootHelpLong,
		Version:           Version,
		SilenceErrors:     true,
		SilenceUsage:      true,
		CompletionOptions: cobra.CompletionOptions{DisableDefaultCmd: true},
	}
	rootCmd.SetOut(stdout)
	rootCmd.SetErr(stderr)

	rootCmd.PersistentFlags().String("dir", ".", "project directory holding relpack.yaml and .env")
	rootCmd.PersistentFlags().String("config", "", "explicit config file (default: <dir>/relpack.yaml)")
	rootCmd.PersistentFlags().String("log-level", d.Log.Level, "log level: trace, debug, info, warn or error")
	rootCmd.PersistentFlags().Bool("log-json", d.Log.JSON, "write logs as JSON lines")

	packSorterConfig := *release.DefaultSortConfig()
	packCmd := &cobra.Command{
		Use:     "pack",
		Short:   packHelpShort,
		Long:    packHelpLong,
		Example: packExample,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			prog, err := loadProgram(cmd, fs, stdout, stderr, &packSorterConfig)
			if err != nil {
				return err
			}
			_, err = prog.Pack(ctx)

			return err
		},
	}
	addResolveFlags(packCmd)
	packCmd.Flags().String("release-dir", d.ReleaseDir, "output directory, relative to the content root")
	packCmd.Flags().String("changelog", d.Changelog, "changelog file, relative to the release directory")
	packCmd.Flags().String("format", d.Archive.Format, "archive format: zip or tar.gz")
	packCmd.Flags().Int("level", d.Archive.Level, "compression level (-1 for the codec default)")
	packCmd.Flags().Int("workers", d.Workers, "categories packaged in parallel (default: all CPUs)")
	packCmd.Flags().Bool("unpacked", d.Unpacked, "also copy every asset into <release-dir>/unpacked")
	packCmd.Flags().StringVar(&packSorterConfig.TempFilesDir, "tmpdir", packSorterConfig.TempFilesDir, "on-disk location for intermediate files")

	assetsFormat := "text"
	assetsCmd := &cobra.Command{
		Use:     "assets",
		Short:   assetsHelpShort,
		Long:    assetsHelpLong,
		Example: assetsExample,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			prog, err := loadProgram(cmd, fs, stdout, stderr, nil)
			if err != nil {
				return err
			}

			return prog.Assets(ctx, assetsFormat)
		},
	}
	addResolveFlags(assetsCmd)
	assetsCmd.Flags().StringVarP(&assetsFormat, "output", "o", assetsFormat, "output format: text or yaml")

	diffSorterConfig := *release.DefaultSortConfig()
	diffCmd := &cobra.Command{
		Use:     "diff <old-archive> <new-archive>",
		Short:   diffHelpShort,
		Long:    diffHelpLong,
		Example: diffExample,
		Args:    cobra.ExactArgs(2), //nolint:mnd
		RunE: func(cmd *cobra.Command, args []string) error {
			prog, err := loadProgram(cmd, fs, stdout, stderr, &diffSorterConfig)
			if err != nil {
				return err
			}
			_, err = prog.Diff(ctx, args[0], args[1])

			return err
		},
	}
	diffCmd.Flags().StringVar(&diffSorterConfig.TempFilesDir, "tmpdir", diffSorterConfig.TempFilesDir, "on-disk location for intermediate files")
	diffCmd.Flags().IntVar(&diffSorterConfig.NumWorkers, "sort-workers", diffSorterConfig.NumWorkers, "workers for concurrent sorting")
	diffCmd.Flags().IntVar(&diffSorterConfig.ChunkSize, "chunksize", diffSorterConfig.ChunkSize, "max records per worker before spilling to disk")

	listSort := true
	listLong := false
	listSorterConfig := *release.DefaultSortConfig()
	listCmd := &cobra.Command{
		Use:     "list <archive>",
		Short:   listHelpShort,
		Long:    listHelpLong,
		Example: listExample,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			prog, err := loadProgram(cmd, fs, stdout, stderr, &listSorterConfig)
			if err != nil {
				return err
			}

			return prog.List(ctx, args[0], listSort, listLong)
		},
	}
	listCmd.Flags().BoolVar(&listSort, "sort", true, "sort the output list; for better comparability")
	listCmd.Flags().BoolVarP(&listLong, "long", "l", false, "also print checksum and size of every entry")
	listCmd.Flags().StringVar(&listSorterConfig.TempFilesDir, "tmpdir", listSorterConfig.TempFilesDir, "on-disk location for intermediate files")
	listCmd.Flags().IntVar(&listSorterConfig.NumWorkers, "sort-workers", listSorterConfig.NumWorkers, "workers for concurrent sorting")
	listCmd.Flags().IntVar(&listSorterConfig.ChunkSize, "chunksize", listSorterConfig.ChunkSize, "max records per worker before spilling to disk")

	rootCmd.AddCommand(packCmd, assetsCmd, diffCmd, listCmd)

	return rootCmd
}

func main() {
	var exitCode int

	defer func() {
		os.Exit(exitCode)
	}()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	errChan := make(chan error, 1)
	go func() {
		rootCmd := newRootCmd(ctx, afero.NewOsFs(), os.Stdout, os.Stderr)
		errChan <- rootCmd.Execute()
	}()

	select {
	case err := <-errChan:
		if err != nil {
			if errors.Is(err, ErrDiffsFound) {
				exitCode = exitCodeDiffsFound
			} else {
				exitCode = exitCodeFailure
				fmt.Fprintf(os.Stderr, "error: %v\n", err)
			}
		} else {
			exitCode = exitCodeSuccess
		}

	case <-sigChan:
		fmt.Fprintln(os.Stderr, "interrupting...")
		cancel()

		select {
		case <-errChan:
			exitCode = exitCodeFailure
			fmt.Fprintln(os.Stderr, "interrupted (exited)")
		case <-time.After(exitTimeout):
			exitCode = exitCodeFailure
			fmt.Fprintln(os.Stderr, "interrupted (killed)")
		}
	}
}
