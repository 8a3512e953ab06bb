package main

import (
	"context"
	"fmt"

	"github.com/desertwitch/relpack/internal/logger"
	"github.com/desertwitch/relpack/internal/release"
)

// Diff compares two archives and writes every difference to standard output.
//
// It returns:
//   - (changes, ErrDiffsFound): if any differences are found
//   - (nil, nil): if both archives hold the same entries
//   - (nil, error): if an error occurred
func (prog *Program) Diff(ctx context.Context, cmpOld string, cmpNew string) ([]release.Change, error) {
	changes, err := release.Diff(ctx, prog.fs, cmpOld, cmpNew, prog.extSortConfig)
	if err != nil {
		return nil, err //nolint:wrapcheck
	}

	for _, c := range changes {
		fmt.Fprintln(prog.stdout, c)
	}

	if len(changes) > 0 {
		prog.log.Debug("archives differ", logger.Int("changes", len(changes)))

		return changes, ErrDiffsFound
	}

	return nil, nil
}
