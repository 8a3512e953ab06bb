package main

import (
	"bytes"
	"io"
	"testing"

	"github.com/desertwitch/relpack/internal/release"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"
)

// A helper function for tests to seed a project below /proj.
func createProject(t *testing.T, files map[string]string) afero.Fs {
	t.Helper()

	fs := afero.NewMemMapFs()
	require.NoError(t, fs.MkdirAll("/proj", 0o755))

	for name, content := range files {
		require.NoError(t, afero.WriteFile(fs, "/proj/"+name, []byte(content), 0o644))
	}

	return fs
}

// A helper function for tests to write a zip archive with the given entries.
func createZip(t *testing.T, fs afero.Fs, name string, entries map[string]string) {
	t.Helper()

	members := make([]release.Member, 0, len(entries))
	for n, content := range entries {
		members = append(members, release.Member{Name: n, Data: []byte(content)})
	}

	_, err := release.WriteArchive(fs, name, release.FormatZip, -1, release.GzipConfig{}, members)
	require.NoError(t, err)
}

// A helper function for tests to run the root command with the given arguments.
func execute(t *testing.T, fs afero.Fs, args ...string) (string, error) {
	t.Helper()

	var stdoutBuf bytes.Buffer

	cmd := newRootCmd(t.Context(), fs, &stdoutBuf, io.Discard)
	cmd.SetArgs(args)
	err := cmd.Execute()

	return stdoutBuf.String(), err
}

var sampleProject = map[string]string{
	"release_assets.txt":          "main:\na.txt\nscripts/vscripts/init.lua\nextras:\n[readme]Hello\nb/*.txt\n",
	"a.txt":                       "a",
	"b/c.txt":                     "c",
	"b/d.txt":                     "d",
	"scripts/vscripts/init.lua":   `require "util"`,
	"scripts/vscripts/util.lua":   "return {}",
	"scripts/vscripts/unused.lua": "return {}",
}

// Expectation: The 'pack' subcommand should build one archive per category.
func Test_CLI_PackCommand_Success(t *testing.T) {
	fs := createProject(t, sampleProject)

	out, err := execute(t, fs, "pack", "--dir=/proj")
	require.NoError(t, err)
	require.Contains(t, out, "main.zip")
	require.Contains(t, out, "extras.zip")

	exists, err := afero.Exists(fs, "/proj/release/main.zip")
	require.NoError(t, err)
	require.True(t, exists)
}

// Expectation: The 'pack' subcommand should fail on an invalid archive format.
func Test_CLI_PackCommand_InvalidFormat_Error(t *testing.T) {
	fs := createProject(t, sampleProject)

	_, err := execute(t, fs, "pack", "--dir=/proj", "--format=rar")
	require.Error(t, err)
}

// Expectation: The 'assets' subcommand should print the resolved categories.
func Test_CLI_AssetsCommand_Success(t *testing.T) {
	fs := createProject(t, sampleProject)

	out, err := execute(t, fs, "assets", "--dir=/proj")
	require.NoError(t, err)
	require.Contains(t, out, "scripts/vscripts/util.lua")
	require.NotContains(t, out, "unused.lua")
}

// Expectation: The 'diff' subcommand should produce the correct error when differences are found.
func Test_CLI_DiffCommand_DiffsFound_Success(t *testing.T) {
	fs := afero.NewMemMapFs()

	createZip(t, fs, "/old.zip", map[string]string{"a.txt": "a"})
	createZip(t, fs, "/new.zip", map[string]string{"a.txt": "a", "b.txt": "b"})

	out, err := execute(t, fs, "diff", "/old.zip", "/new.zip")
	require.ErrorIs(t, err, ErrDiffsFound)
	require.Equal(t, "Created b.txt\n", out)
}

// Expectation: The 'diff' subcommand should not produce an error when no differences are found.
func Test_CLI_DiffCommand_NoDiffsFound_Success(t *testing.T) {
	fs := afero.NewMemMapFs()

	createZip(t, fs, "/old.zip", map[string]string{"a.txt": "a"})
	createZip(t, fs, "/new.zip", map[string]string{"a.txt": "a"})

	out, err := execute(t, fs, "diff", "/old.zip", "/new.zip")
	require.NoError(t, err)
	require.Empty(t, out)
}

// Expectation: The 'list' subcommand should not error when invoked with a valid archive.
func Test_CLI_ListCommand_Success(t *testing.T) {
	fs := afero.NewMemMapFs()

	createZip(t, fs, "/input.zip", map[string]string{"a.txt": "a", "b.txt": "b"})

	out, err := execute(t, fs, "list", "/input.zip")
	require.NoError(t, err)
	require.Equal(t, "a.txt\nb.txt\n", out)
}

// Expectation: The root command should error when given an unknown subcommand.
func Test_CLI_UnknownCommand_Error(t *testing.T) {
	fs := afero.NewMemMapFs()

	_, err := execute(t, fs, "unknown-subcommand")
	require.Error(t, err)
}

// Expectation: The 'diff' subcommand should error when missing arguments.
func Test_CLI_DiffCommand_ArgCount_Error(t *testing.T) {
	fs := afero.NewMemMapFs()

	_, err := execute(t, fs, "diff", "/only-one.zip")
	require.Error(t, err)
}

// Expectation: The 'pack' subcommand should error when the config file is broken.
func Test_CLI_PackCommand_BadConfig_Error(t *testing.T) {
	fs := createProject(t, map[string]string{"relpack.yaml": "archive: [unclosed"})

	_, err := execute(t, fs, "pack", "--dir=/proj")
	require.Error(t, err)
}
