package main

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"

	"github.com/desertwitch/relpack/internal/depscan"
	"github.com/desertwitch/relpack/internal/fileindex"
	"github.com/desertwitch/relpack/internal/manifest"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"
)

// A helper filesystem for tests to simulate filesystem errors.
type failingFs struct {
	afero.Fs
	failMkdirAll bool
	failOpenFile bool
}

// A helper function for tests to simulate folder creation failure.
func (f *failingFs) MkdirAll(path string, perm os.FileMode) error {
	if f.failMkdirAll {
		return errors.New("simulated mkdirall error")
	}

	return f.Fs.MkdirAll(path, perm) //nolint:wrapcheck
}

// A helper function for tests to simulate file creation failure.
func (f *failingFs) OpenFile(name string, flag int, perm os.FileMode) (afero.File, error) {
	if f.failOpenFile {
		return nil, errors.New("simulated openfile error")
	}

	return f.Fs.OpenFile(name, flag, perm) //nolint:wrapcheck
}

// Expectation: The requested project should be produced without errors.
func Test_Tool_createProject_Success(t *testing.T) {
	fs := afero.NewMemMapFs()

	require.NoError(t, createProject(t.Context(), fs, "/testroot", 250))

	var scripts int
	err := afero.Walk(fs, "/testroot", func(path string, info os.FileInfo, err error) error {
		require.NoError(t, err)

		if info.Mode().IsRegular() && strings.HasSuffix(info.Name(), ".lua") {
			scripts++
		}

		return nil
	})
	require.NoError(t, err)
	require.Equal(t, 250, scripts)

	data, err := afero.ReadFile(fs, "/testroot/release_assets.txt")
	require.NoError(t, err)
	require.Equal(t, 3, strings.Count(string(data), ":\n"))
}

// Expectation: Every category of the generated manifest should resolve to its whole module.
func Test_Tool_createProject_Resolves_Success(t *testing.T) {
	fs := afero.NewMemMapFs()

	require.NoError(t, createProject(t.Context(), fs, "/testroot", 150))

	idx, err := fileindex.New(t.Context(), fs, []string{"/testroot"}, fileindex.Options{})
	require.NoError(t, err)

	in := manifest.NewInterpreter(fs, idx, depscan.New(fs, depscan.Options{}), manifest.Options{Transitive: true})
	res, err := in.RunFile(t.Context(), "/testroot/release_assets.txt")
	require.NoError(t, err)
	require.Zero(t, res.MissingCount())

	first, err := res.Categories.Get(moduleName(0))
	require.NoError(t, err)
	require.Equal(t, 100, first.Len())

	second, err := res.Categories.Get(moduleName(1))
	require.NoError(t, err)
	require.Equal(t, 50, second.Len())
}

// Expectation: The requested project creation should fail with the correct error.
func Test_Tool_createProject_MkDirAll_Error(t *testing.T) {
	fs := &failingFs{
		Fs:           afero.NewMemMapFs(),
		failMkdirAll: true,
	}

	err := createProject(t.Context(), fs, "/fail", 1000)
	require.Error(t, err)
	require.Contains(t, err.Error(), "mkdirall")
}

// Expectation: The requested project creation should fail with the correct error.
func Test_Tool_createProject_CreateFile_Error(t *testing.T) {
	fs := &failingFs{
		Fs:           afero.NewMemMapFs(),
		failOpenFile: true,
	}

	err := createProject(t.Context(), fs, "/fail", 1000)
	require.Error(t, err)
	require.Contains(t, err.Error(), "creating file")
}

// Expectation: A context cancellation should be respected.
func Test_Tool_createProject_CtxCancel_Error(t *testing.T) {
	ctx, cancel := context.WithCancel(t.Context())
	cancel()

	err := createProject(ctx, afero.NewMemMapFs(), "/cancel", 1000)
	require.ErrorIs(t, err, context.Canceled)
}
