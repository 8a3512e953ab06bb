package main

import (
	"bytes"
	"io"
	"testing"

	"github.com/desertwitch/relpack/internal/release"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"
)

// Expectation: Differences should be written sorted to standard output and signalled.
func Test_Program_Diff_Success(t *testing.T) {
	fs := afero.NewMemMapFs()

	createZip(t, fs, "/old.zip", map[string]string{"a": "1", "b": "2"})
	createZip(t, fs, "/new.zip", map[string]string{"a": "changed", "c": "3"})

	var stdoutBuf bytes.Buffer

	prog := NewProgram(fs, &stdoutBuf, io.Discard, nil, nil)
	changes, err := prog.Diff(t.Context(), "/old.zip", "/new.zip")
	require.ErrorIs(t, err, ErrDiffsFound)
	require.Len(t, changes, 3)

	require.Equal(t, "Created c\nDeleted b\nUpdated a\n", stdoutBuf.String())
}

// Expectation: Archives of different formats should be comparable.
func Test_Program_Diff_MixedFormats_Success(t *testing.T) {
	fs := afero.NewMemMapFs()

	createZip(t, fs, "/old.zip", map[string]string{"a": "1"})
	_, err := release.WriteArchive(fs, "/new.tar.gz", release.FormatTarGz, -1, release.GzipConfig{BlockSize: 1 << 20, BlockCount: 2},
		[]release.Member{{Name: "a", Data: []byte("1")}})
	require.NoError(t, err)

	prog := NewProgram(fs, io.Discard, io.Discard, nil, nil)
	changes, err := prog.Diff(t.Context(), "/old.zip", "/new.tar.gz")
	require.NoError(t, err)
	require.Empty(t, changes)
}

// Expectation: A missing archive should produce an error other than the differences sentinel.
func Test_Program_Diff_Missing_Error(t *testing.T) {
	fs := afero.NewMemMapFs()

	createZip(t, fs, "/old.zip", map[string]string{"a": "1"})

	prog := NewProgram(fs, io.Discard, io.Discard, nil, nil)
	_, err := prog.Diff(t.Context(), "/old.zip", "/new.zip")
	require.Error(t, err)
	require.NotErrorIs(t, err, ErrDiffsFound)
}
