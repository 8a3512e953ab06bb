package release

import (
	"context"
	"fmt"
	"runtime"
	"sort"
	"strings"

	"github.com/lanrat/extsort"
	"github.com/lanrat/extsort/diff"
	"github.com/spf13/afero"
)

const (
	entryStreamBuffer = 1000
	recordSep         = "\x00"
)

//nolint:mnd
var extSortConfigDefault = extsort.Config{
	ChunkSize:          100_000,                       // Records per chunk (default: 1M)
	NumWorkers:         min(4, runtime.GOMAXPROCS(0)), // Parallel sorting/merging workers (default: 2)
	ChanBuffSize:       1,                             // Channel buffer size (default: 1)
	SortedChanBuffSize: 1000,                          // Output channel buffer (default: 1000)
	TempFilesDir:       "",                            // Temporary files directory (default: intelligent selection)
}

// DefaultSortConfig returns a copy of the default external sort settings.
func DefaultSortConfig() *extsort.Config {
	cfg := extSortConfigDefault

	return &cfg
}

// ChangeKind classifies a difference between two archives.
type ChangeKind string

const (
	Created ChangeKind = "Created"
	Updated ChangeKind = "Updated"
	Deleted ChangeKind = "Deleted"
)

// Change is one entry-level difference between two archives.
type Change struct {
	Kind ChangeKind
	Path string
}

// String renders the change as a changelog message.
func (c Change) String() string {
	return string(c.Kind) + " " + c.Path
}

// entryStream streams "name NUL crc" records for every entry, optionally
// through the external sorter.
func entryStream(ctx context.Context, entries []Entry, sortConfig *extsort.Config) (<-chan string, <-chan error) {
	records := make(chan string, entryStreamBuffer)
	errs := make(chan error, 1)

	go func() {
		defer close(records)
		defer close(errs)

		for _, e := range entries {
			if err := ctx.Err(); err != nil {
				errs <- fmt.Errorf("failed to stream entries: %w", err)

				return
			}

			select {
			case records <- fmt.Sprintf("%s%s%08x", e.Name, recordSep, e.CRC32):
			case <-ctx.Done():
				errs <- fmt.Errorf("failed to stream entries: %w", ctx.Err())

				return
			}
		}
	}()

	if sortConfig == nil {
		return records, errs
	}

	return extsortStrings(ctx, records, errs, sortConfig)
}

// extsortStrings wraps [extsort.Strings] for internal use.
//
// It merges two possible error sources into a single channel:
//  1. Runtime sorting errors - any errors raised while sorting proceeds.
//  2. extErrs (optional) - errors from non-sorting work such as archive reading.
//
// Do note that only the first error observed from these sources is sent downstream.
func extsortStrings(ctx context.Context, input <-chan string, extErrs <-chan error, config *extsort.Config) (<-chan string, <-chan error) {
	sorter, sorterOut, sorterErrs := extsort.Strings(input, config)

	if sorter != nil {
		go sorter.Sort(ctx)
	}

	mergedErrs := make(chan error, 1)
	go func() {
		defer close(mergedErrs)

		for extErrs != nil || sorterErrs != nil {
			select {
			case err, ok := <-extErrs:
				if ok && err != nil {
					mergedErrs <- err

					return
				}
				extErrs = nil // channel closed, disable case.

			case err, ok := <-sorterErrs:
				if ok && err != nil {
					mergedErrs <- err

					return
				}
				sorterErrs = nil // channel closed, disable case.
			}
		}
	}()

	return sorterOut, mergedErrs
}

// DiffEntries compares two archive listings by name and content checksum.
// The result is deduplicated and sorted by message.
func DiffEntries(ctx context.Context, oldEntries, newEntries []Entry, sortConfig *extsort.Config) ([]Change, error) {
	if sortConfig == nil {
		sortConfig = DefaultSortConfig()
	}

	oldStream, oldErrs := entryStream(ctx, oldEntries, sortConfig)
	newStream, newErrs := entryStream(ctx, newEntries, sortConfig)

	oldOnly := make(map[string]struct{})
	newOnly := make(map[string]struct{})

	if _, err := diff.Strings(
		ctx,
		oldStream, newStream,
		oldErrs, newErrs,
		func(delta diff.Delta, item string) error {
			name, _, _ := strings.Cut(item, recordSep)

			switch delta {
			case diff.OLD:
				oldOnly[name] = struct{}{}
			case diff.NEW:
				newOnly[name] = struct{}{}
			}

			return nil
		},
	); err != nil {
		return nil, fmt.Errorf("failure during diff: %w", err)
	}

	changes := make([]Change, 0, len(oldOnly)+len(newOnly))
	for name := range newOnly {
		if _, ok := oldOnly[name]; ok {
			changes = append(changes, Change{Kind: Updated, Path: name})
		} else {
			changes = append(changes, Change{Kind: Created, Path: name})
		}
	}
	for name := range oldOnly {
		if _, ok := newOnly[name]; !ok {
			changes = append(changes, Change{Kind: Deleted, Path: name})
		}
	}

	sort.Slice(changes, func(i, j int) bool { return changes[i].String() < changes[j].String() })

	return changes, nil
}

// Diff compares the archives at oldPath and newPath.
func Diff(ctx context.Context, fs afero.Fs, oldPath, newPath string, sortConfig *extsort.Config) ([]Change, error) {
	oldEntries, err := ReadEntries(fs, oldPath)
	if err != nil {
		return nil, fmt.Errorf("failed to list old archive: %w", err)
	}

	newEntries, err := ReadEntries(fs, newPath)
	if err != nil {
		return nil, fmt.Errorf("failed to list new archive: %w", err)
	}

	return DiffEntries(ctx, oldEntries, newEntries, sortConfig)
}

// List returns the entries of an archive, sorted by name when requested.
func List(ctx context.Context, fs afero.Fs, name string, sorted bool, sortConfig *extsort.Config) ([]Entry, error) {
	entries, err := ReadEntries(fs, name)
	if err != nil {
		return nil, err
	}

	if !sorted {
		return entries, nil
	}

	if sortConfig == nil {
		sortConfig = DefaultSortConfig()
	}

	byRecord := make(map[string]Entry, len(entries))
	for _, e := range entries {
		byRecord[fmt.Sprintf("%s%s%08x", e.Name, recordSep, e.CRC32)] = e
	}

	records, errs := entryStream(ctx, entries, sortConfig)

	out := make([]Entry, 0, len(entries))
	for r := range records {
		out = append(out, byRecord[r])
	}

	for err := range errs {
		if err != nil {
			return nil, fmt.Errorf("failure during listing: %w", err)
		}
	}

	return out, nil
}
