// Package config loads relpack settings from defaults, an optional project
// config file, a .env file, RELPACK_ environment variables and command line
// flags, in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/afero"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	// FileName is the project config file looked up in the project directory.
	FileName = "relpack.yaml"
	// EnvPrefix prefixes all environment overrides.
	EnvPrefix = "RELPACK"
	// DotEnvName is the dotenv file looked up in the project directory.
	DotEnvName = ".env"
)

// ErrInvalidConfig is returned when a loaded value fails validation.
var ErrInvalidConfig = errors.New("invalid configuration")

// Config holds all configuration for relpack.
type Config struct {
	Manifest   string        `mapstructure:"manifest"    yaml:"manifest"`
	ReleaseDir string        `mapstructure:"release_dir" yaml:"release_dir"`
	Changelog  string        `mapstructure:"changelog"   yaml:"changelog"`
	DateFormat string        `mapstructure:"date_format" yaml:"date_format"`
	Workers    int           `mapstructure:"workers"     yaml:"workers"`
	Unpacked   bool          `mapstructure:"unpacked"    yaml:"unpacked"`
	Roots      RootsConfig   `mapstructure:"roots"       yaml:"roots"`
	Archive    ArchiveConfig `mapstructure:"archive"     yaml:"archive"`
	Index      IndexConfig   `mapstructure:"index"       yaml:"index"`
	Scripts    ScriptsConfig `mapstructure:"scripts"     yaml:"scripts"`
	Log        LogConfig     `mapstructure:"log"         yaml:"log"`
}

// RootsConfig names the project roots. Game is optional.
type RootsConfig struct {
	Content string `mapstructure:"content" yaml:"content"`
	Game    string `mapstructure:"game"    yaml:"game"`
}

// ArchiveConfig holds archive output options. Format is "zip" or "tar.gz";
// a Level of -1 selects the codec default.
type ArchiveConfig struct {
	Format string `mapstructure:"format" yaml:"format"`
	Level  int    `mapstructure:"level"  yaml:"level"`
}

// IndexConfig holds file index options.
type IndexConfig struct {
	Ignore    []string `mapstructure:"ignore"    yaml:"ignore"`
	Gitignore bool     `mapstructure:"gitignore" yaml:"gitignore"`
}

// ScriptsConfig holds dependency scanner options.
type ScriptsConfig struct {
	Extension  string   `mapstructure:"extension"  yaml:"extension"`
	BaseDir    string   `mapstructure:"base_dir"   yaml:"base_dir"`
	Functions  []string `mapstructure:"functions"  yaml:"functions"`
	Transitive bool     `mapstructure:"transitive" yaml:"transitive"`
}

// LogConfig holds logger options.
type LogConfig struct {
	Level string `mapstructure:"level" yaml:"level"`
	JSON  bool   `mapstructure:"json"  yaml:"json"`
}

//nolint:mnd
var defaultConfig = Config{
	Manifest:   "release_assets.txt",
	ReleaseDir: "release",
	Changelog:  "changelog.txt",
	DateFormat: "02/01/06",
	Workers:    0,
	Unpacked:   false,
	Archive: ArchiveConfig{
		Format: "zip",
		Level:  -1,
	},
	Index: IndexConfig{
		Ignore:    []string{".git", ".svn", ".hg"},
		Gitignore: false,
	},
	Scripts: ScriptsConfig{
		Extension:  ".lua",
		BaseDir:    "scripts/vscripts",
		Functions:  []string{"require", "IncludeScript", "DoIncludeScript"},
		Transitive: false,
	},
	Log: LogConfig{
		Level: "info",
	},
}

// FlagKeys maps command line flag names to config keys.
var FlagKeys = map[string]string{
	"manifest":     "manifest",
	"release-dir":  "release_dir",
	"changelog":    "changelog",
	"workers":      "workers",
	"unpacked":     "unpacked",
	"content-root": "roots.content",
	"game-root":    "roots.game",
	"format":       "archive.format",
	"level":        "archive.level",
	"gitignore":    "index.gitignore",
	"transitive":   "scripts.transitive",
	"log-level":    "log.level",
	"log-json":     "log.json",
}

// Options tells [Load] where to look.
type Options struct {
	// Dir is the project directory; relative paths resolve against it.
	Dir string
	// File is an explicit config file, replacing Dir/relpack.yaml.
	File string
	// Flags are bound on top of every other source when non-nil.
	Flags *pflag.FlagSet
}

// Default returns a copy of the built-in configuration.
func Default() Config {
	cfg := defaultConfig
	cfg.Index.Ignore = append([]string(nil), defaultConfig.Index.Ignore...)
	cfg.Scripts.Functions = append([]string(nil), defaultConfig.Scripts.Functions...)

	return cfg
}

func setDefaults(v *viper.Viper) {
	d := Default()

	v.SetDefault("manifest", d.Manifest)
	v.SetDefault("release_dir", d.ReleaseDir)
	v.SetDefault("changelog", d.Changelog)
	v.SetDefault("date_format", d.DateFormat)
	v.SetDefault("workers", d.Workers)
	v.SetDefault("unpacked", d.Unpacked)
	v.SetDefault("roots.content", d.Roots.Content)
	v.SetDefault("roots.game", d.Roots.Game)
	v.SetDefault("archive.format", d.Archive.Format)
	v.SetDefault("archive.level", d.Archive.Level)
	v.SetDefault("index.ignore", d.Index.Ignore)
	v.SetDefault("index.gitignore", d.Index.Gitignore)
	v.SetDefault("scripts.extension", d.Scripts.Extension)
	v.SetDefault("scripts.base_dir", d.Scripts.BaseDir)
	v.SetDefault("scripts.functions", d.Scripts.Functions)
	v.SetDefault("scripts.transitive", d.Scripts.Transitive)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.json", d.Log.JSON)
}

// Load builds the effective configuration. Missing config and dotenv files
// are not an error.
func Load(fs afero.Fs, opts Options) (*Config, error) {
	if opts.Dir == "" {
		opts.Dir = "."
	}

	v := viper.New()
	v.SetFs(fs)
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := readConfigFile(fs, v, opts); err != nil {
		return nil, err
	}

	if err := mergeDotEnv(fs, v, filepath.Join(opts.Dir, DotEnvName)); err != nil {
		return nil, err
	}

	if opts.Flags != nil {
		for name, key := range FlagKeys {
			if f := opts.Flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("failed to bind flag %q: %w", name, err)
				}
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	cfg.resolve(opts.Dir)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func readConfigFile(fs afero.Fs, v *viper.Viper, opts Options) error {
	file := opts.File
	if file == "" {
		file = filepath.Join(opts.Dir, FileName)

		exists, err := afero.Exists(fs, file)
		if err != nil {
			return fmt.Errorf("failed to stat config file: %w", err)
		}
		if !exists {
			return nil
		}
	}

	v.SetConfigFile(file)
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	return nil
}

// mergeDotEnv layers RELPACK_ entries of a dotenv file above the config file.
// Real environment variables and flags still take precedence.
func mergeDotEnv(fs afero.Fs, v *viper.Viper, name string) error {
	f, err := fs.Open(name)
	if err != nil {
		return nil //nolint:nilerr
	}
	defer f.Close()

	env, err := godotenv.Parse(f)
	if err != nil {
		return fmt.Errorf("failed to parse %s: %w", DotEnvName, err)
	}

	envKeys := make(map[string]string)
	for _, key := range v.AllKeys() {
		envKeys[EnvPrefix+"_"+strings.ToUpper(strings.ReplaceAll(key, ".", "_"))] = key
	}

	layer := make(map[string]any)
	for name, value := range env {
		key, ok := envKeys[name]
		if !ok {
			continue
		}
		setNested(layer, strings.Split(key, "."), value)
	}

	if len(layer) == 0 {
		return nil
	}

	if err := v.MergeConfigMap(layer); err != nil {
		return fmt.Errorf("failed to merge %s: %w", DotEnvName, err)
	}

	return nil
}

func setNested(m map[string]any, path []string, value string) {
	for _, p := range path[:len(path)-1] {
		next, ok := m[p].(map[string]any)
		if !ok {
			next = make(map[string]any)
			m[p] = next
		}
		m = next
	}
	m[path[len(path)-1]] = value
}

// resolve anchors relative paths at the project directory and fills derived
// defaults.
func (c *Config) resolve(dir string) {
	if c.Roots.Content == "" {
		c.Roots.Content = dir
	}

	c.Roots.Content = anchor(dir, c.Roots.Content)
	if c.Roots.Game != "" {
		c.Roots.Game = anchor(dir, c.Roots.Game)
	}

	c.Manifest = anchor(c.Roots.Content, c.Manifest)
	c.ReleaseDir = anchor(c.Roots.Content, c.ReleaseDir)

	if c.Workers <= 0 {
		c.Workers = runtime.GOMAXPROCS(0)
	}
}

func anchor(base, p string) string {
	if filepath.IsAbs(p) {
		return filepath.Clean(p)
	}

	return filepath.Join(base, p)
}

// Validate checks values that cannot be checked by decoding alone.
//
//nolint:mnd
func (c *Config) Validate() error {
	switch strings.ToLower(strings.TrimPrefix(c.Archive.Format, ".")) {
	case "zip", "tar.gz", "tgz":
	default:
		return fmt.Errorf("%w: archive.format %q", ErrInvalidConfig, c.Archive.Format)
	}

	if c.Archive.Level < -2 || c.Archive.Level > 9 {
		return fmt.Errorf("%w: archive.level %d", ErrInvalidConfig, c.Archive.Level)
	}

	if c.Manifest == "" {
		return fmt.Errorf("%w: manifest must not be empty", ErrInvalidConfig)
	}

	if c.Scripts.Extension == "" {
		return fmt.Errorf("%w: scripts.extension must not be empty", ErrInvalidConfig)
	}

	if c.DateFormat == "" {
		return fmt.Errorf("%w: date_format must not be empty", ErrInvalidConfig)
	}

	return nil
}

// RootList returns the configured project roots, content root first.
func (c *Config) RootList() []string {
	roots := []string{c.Roots.Content}
	if c.Roots.Game != "" {
		roots = append(roots, c.Roots.Game)
	}

	return roots
}
