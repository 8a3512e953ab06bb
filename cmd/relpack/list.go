package main

import (
	"context"
	"fmt"

	"github.com/desertwitch/relpack/internal/release"
	"github.com/dustin/go-humanize"
)

// List writes to standard output the entries of an archive.
//
// The input parameter specifies the path to the archive. If sort is true, the
// entries are written in sorted order; otherwise, they are written in the
// original archive's order. With long, the checksum and size are included.
func (prog *Program) List(ctx context.Context, input string, sort bool, long bool) error {
	entries, err := release.List(ctx, prog.fs, input, sort, prog.extSortConfig)
	if err != nil {
		return fmt.Errorf("failure during listing: %w", err)
	}

	for _, e := range entries {
		if long {
			fmt.Fprintf(prog.stdout, "%08x\t%s\t%s\n", e.CRC32, humanize.Bytes(uint64(e.Size)), e.Name) //nolint:gosec
		} else {
			fmt.Fprintln(prog.stdout, e.Name)
		}
	}

	return nil
}
