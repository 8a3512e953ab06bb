package config

import (
	"path/filepath"
	"runtime"
	"testing"

	"github.com/spf13/afero"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/require"
)

// Expectation: Without any sources the defaults should apply, anchored at the project directory.
func Test_Load_Defaults_Success(t *testing.T) {
	fs := afero.NewMemMapFs()

	cfg, err := Load(fs, Options{Dir: "/proj"})
	require.NoError(t, err)

	require.Equal(t, "/proj", cfg.Roots.Content)
	require.Empty(t, cfg.Roots.Game)
	require.Equal(t, filepath.Join("/proj", "release_assets.txt"), cfg.Manifest)
	require.Equal(t, filepath.Join("/proj", "release"), cfg.ReleaseDir)
	require.Equal(t, "zip", cfg.Archive.Format)
	require.Equal(t, -1, cfg.Archive.Level)
	require.Equal(t, runtime.GOMAXPROCS(0), cfg.Workers)
	require.Equal(t, []string{"require", "IncludeScript", "DoIncludeScript"}, cfg.Scripts.Functions)
	require.Equal(t, []string{"/proj"}, cfg.RootList())
}

// Expectation: The project config file should override defaults.
func Test_Load_ConfigFile_Success(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/proj/relpack.yaml", []byte(`
release_dir: out
roots:
  game: ../game
archive:
  format: tar.gz
  level: 9
scripts:
  functions: [require]
  transitive: true
`), 0o644))

	cfg, err := Load(fs, Options{Dir: "/proj"})
	require.NoError(t, err)

	require.Equal(t, filepath.Join("/proj", "out"), cfg.ReleaseDir)
	require.Equal(t, "/game", cfg.Roots.Game)
	require.Equal(t, "tar.gz", cfg.Archive.Format)
	require.Equal(t, 9, cfg.Archive.Level)
	require.Equal(t, []string{"require"}, cfg.Scripts.Functions)
	require.True(t, cfg.Scripts.Transitive)
	require.Equal(t, []string{"/proj", "/game"}, cfg.RootList())
}

// Expectation: The dotenv file should override the config file but not real environment variables.
func Test_Load_DotEnv_Precedence_Success(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/proj/relpack.yaml", []byte("changelog: from-file.txt\ndate_format: '2006'\n"), 0o644))
	require.NoError(t, afero.WriteFile(fs, "/proj/.env", []byte(
		"RELPACK_CHANGELOG=from-dotenv.txt\nRELPACK_DATE_FORMAT=06\nRELPACK_ARCHIVE_LEVEL=3\nOTHER=ignored\n",
	), 0o644))
	t.Setenv("RELPACK_DATE_FORMAT", "01")

	cfg, err := Load(fs, Options{Dir: "/proj"})
	require.NoError(t, err)

	require.Equal(t, "from-dotenv.txt", cfg.Changelog)
	require.Equal(t, "01", cfg.DateFormat)
	require.Equal(t, 3, cfg.Archive.Level)
}

// Expectation: Changed flags should take precedence over every other source.
func Test_Load_Flags_Success(t *testing.T) {
	fs := afero.NewMemMapFs()
	t.Setenv("RELPACK_WORKERS", "2")

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.Int("workers", 0, "")
	flags.Bool("unpacked", false, "")
	flags.String("format", "zip", "")
	require.NoError(t, flags.Parse([]string{"--workers=7", "--format=tgz"}))

	cfg, err := Load(fs, Options{Dir: "/proj", Flags: flags})
	require.NoError(t, err)

	require.Equal(t, 7, cfg.Workers)
	require.Equal(t, "tgz", cfg.Archive.Format)
	require.False(t, cfg.Unpacked)
}

// Expectation: An explicit but missing config file should fail.
func Test_Load_MissingExplicitFile_Error(t *testing.T) {
	fs := afero.NewMemMapFs()

	_, err := Load(fs, Options{Dir: "/proj", File: "/nope.yaml"})
	require.Error(t, err)
}

// Expectation: Invalid values should be rejected.
func Test_Load_Invalid_Error(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/proj/relpack.yaml", []byte("archive:\n  format: rar\n"), 0o644))

	_, err := Load(fs, Options{Dir: "/proj"})
	require.ErrorIs(t, err, ErrInvalidConfig)

	cfg := Default()
	cfg.Archive.Level = 12
	require.ErrorIs(t, cfg.Validate(), ErrInvalidConfig)
}
