// Package fileindex walks one or more project roots once and answers pattern
// lookups against the resulting list of files.
//
// The index is built eagerly and afterwards only shrinks: [Index.Exclude]
// permanently removes files so that later lookups no longer see them. It is
// not safe for concurrent mutation.
package fileindex

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/go-git/go-git/v5/plumbing/format/gitignore"
	"github.com/spf13/afero"
	"golang.org/x/sync/errgroup"
)

// ErrInvalidPattern is returned for patterns that cannot be compiled.
var ErrInvalidPattern = errors.New("invalid pattern")

// DefaultIgnore lists subtree names skipped while walking.
var DefaultIgnore = []string{".git", ".svn", ".hg"}

// File is one indexed regular file.
type File struct {
	// Root is the index root the file was found under.
	Root string
	// Rel is the slash-separated path relative to Root.
	Rel string
}

// Abs returns the OS path of the file.
func (f File) Abs() string {
	return filepath.Join(f.Root, filepath.FromSlash(f.Rel))
}

// Options control how roots are walked.
type Options struct {
	// Ignore holds directory names that are never descended into.
	Ignore []string
	// Gitignore applies the top-level .gitignore of every root.
	Gitignore bool
	// Walker overrides the filesystem walker.
	Walker Walker
}

// Index is an ordered list of files beneath a set of roots.
type Index struct {
	fs    afero.Fs
	roots []string
	files []File
	lower []string
}

// New walks every root and returns the resulting [Index]. Roots are walked
// concurrently; the files of earlier roots always precede those of later ones.
func New(ctx context.Context, fsys afero.Fs, roots []string, opts Options) (*Index, error) {
	if opts.Walker == nil {
		opts.Walker = WalkerFor(fsys)
	}

	ignore := make(map[string]struct{}, len(opts.Ignore))
	for _, name := range opts.Ignore {
		ignore[strings.ToLower(name)] = struct{}{}
	}

	cleaned := make([]string, len(roots))
	for i, r := range roots {
		cleaned[i] = filepath.Clean(r)
	}

	results := make([][]File, len(cleaned))

	g, gctx := errgroup.WithContext(ctx)
	for i, root := range cleaned {
		g.Go(func() error {
			var matcher gitignore.Matcher
			if opts.Gitignore {
				m, err := loadGitignore(fsys, root)
				if err != nil {
					return err
				}
				matcher = m
			}

			files, err := walkRoot(gctx, opts.Walker, root, ignore, matcher)
			if err != nil {
				return err
			}
			results[i] = files

			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err //nolint:wrapcheck
	}

	idx := &Index{fs: fsys, roots: cleaned}

	seen := make(map[string]struct{})
	for _, files := range results {
		for _, f := range files {
			key := f.Abs()
			if _, ok := seen[key]; ok {
				continue
			}
			seen[key] = struct{}{}

			idx.files = append(idx.files, f)
			idx.lower = append(idx.lower, strings.ToLower(f.Rel))
		}
	}

	return idx, nil
}

func walkRoot(ctx context.Context, walker Walker, root string, ignore map[string]struct{}, matcher gitignore.Matcher) ([]File, error) {
	var files []File

	if err := walker.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("failed to walk filesystem: %w", err)
		}

		if err != nil {
			return fmt.Errorf("failed to walk filesystem: %w", err)
		}

		if p == root {
			return nil
		}

		relPath, err := filepath.Rel(root, p)
		if err != nil {
			return fmt.Errorf("failed to obtain relative path: %w", err)
		}
		relPath = filepath.ToSlash(relPath)

		if d.IsDir() {
			if _, ok := ignore[strings.ToLower(d.Name())]; ok {
				return filepath.SkipDir
			}
			if matcher != nil && matcher.Match(strings.Split(relPath, "/"), true) {
				return filepath.SkipDir
			}

			return nil
		}

		if !d.Type().IsRegular() {
			return nil
		}

		if matcher != nil && matcher.Match(strings.Split(relPath, "/"), false) {
			return nil
		}

		files = append(files, File{Root: root, Rel: relPath})

		return nil
	}); err != nil {
		return nil, fmt.Errorf("failed to index %q: %w", root, err)
	}

	return files, nil
}

func loadGitignore(fsys afero.Fs, root string) (gitignore.Matcher, error) {
	f, err := fsys.Open(filepath.Join(root, ".gitignore"))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil //nolint:nilnil
		}

		return nil, fmt.Errorf("failed to open gitignore: %w", err)
	}
	defer f.Close()

	var patterns []gitignore.Pattern

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), " \t\r")
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		patterns = append(patterns, gitignore.ParsePattern(line, nil))
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed reading gitignore: %w", err)
	}

	return gitignore.NewMatcher(patterns), nil
}

// Roots returns the index roots in priority order.
func (idx *Index) Roots() []string {
	out := make([]string, len(idx.roots))
	copy(out, idx.roots)

	return out
}

// Files returns a copy of all currently indexed files.
func (idx *Index) Files() []File {
	out := make([]File, len(idx.files))
	copy(out, idx.files)

	return out
}

// Len returns the number of currently indexed files.
func (idx *Index) Len() int {
	return len(idx.files)
}

// Fs returns the filesystem the index was built from.
func (idx *Index) Fs() afero.Fs {
	return idx.fs
}

type compiledPattern struct {
	glob   string
	prefix bool
}

func compilePattern(raw string) (compiledPattern, error) {
	p := strings.TrimSpace(strings.ReplaceAll(raw, `\`, "/"))
	p = strings.TrimPrefix(p, "./")

	dirOnly := strings.HasSuffix(p, "/")
	p = strings.ToLower(strings.Trim(p, "/"))

	if p == "" {
		if dirOnly {
			return compiledPattern{glob: "**"}, nil
		}

		return compiledPattern{}, fmt.Errorf("%w: empty pattern", ErrInvalidPattern)
	}

	if dirOnly {
		p += "/**"
	}

	if !doublestar.ValidatePattern(p) {
		return compiledPattern{}, fmt.Errorf("%w: %q", ErrInvalidPattern, raw)
	}

	// A literal path also selects everything below it when it is a directory.
	literal := !strings.ContainsAny(p, "*?[{")

	return compiledPattern{glob: p, prefix: literal}, nil
}

func (c compiledPattern) match(lowerRel string) bool {
	if c.prefix {
		return lowerRel == c.glob || strings.HasPrefix(lowerRel, c.glob+"/")
	}

	return doublestar.MatchUnvalidated(c.glob, lowerRel)
}

// FindFiles returns every indexed file whose root-relative path matches the
// case-insensitive glob pattern. A trailing slash selects everything below a
// directory. No match is not an error.
func (idx *Index) FindFiles(pattern string) ([]File, error) {
	c, err := compilePattern(pattern)
	if err != nil {
		return nil, err
	}

	var out []File
	for i, f := range idx.files {
		if c.match(idx.lower[i]) {
			out = append(out, f)
		}
	}

	return out, nil
}

// Match returns every indexed file whose root-relative path matches re.
func (idx *Index) Match(re *regexp.Regexp) []File {
	var out []File
	for _, f := range idx.files {
		if re.MatchString(f.Rel) {
			out = append(out, f)
		}
	}

	return out
}

// Under returns every indexed file below dir within the given root.
func (idx *Index) Under(root, dir string) []File {
	root = filepath.Clean(root)
	dir = strings.ToLower(strings.Trim(path.Clean(strings.ReplaceAll(dir, `\`, "/")), "/"))

	var out []File
	for i, f := range idx.files {
		if f.Root != root {
			continue
		}
		if dir == "." || dir == "" || strings.HasPrefix(idx.lower[i], dir+"/") {
			out = append(out, f)
		}
	}

	return out
}

// Exclude permanently removes every file matching pattern from the index and
// returns how many were removed.
func (idx *Index) Exclude(pattern string) (int, error) {
	c, err := compilePattern(pattern)
	if err != nil {
		return 0, err
	}

	files := idx.files[:0]
	lower := idx.lower[:0]

	for i, f := range idx.files {
		if c.match(idx.lower[i]) {
			continue
		}
		files = append(files, f)
		lower = append(lower, idx.lower[i])
	}

	removed := len(idx.files) - len(files)
	idx.files, idx.lower = files, lower

	return removed, nil
}

// Locate resolves a root-relative path against the roots in order and
// returns the first root where it exists.
func (idx *Index) Locate(rel string) (root string, isDir bool, ok bool) {
	rel = filepath.FromSlash(strings.ReplaceAll(rel, `\`, "/"))

	for _, r := range idx.roots {
		info, err := idx.fs.Stat(filepath.Join(r, rel))
		if err != nil {
			continue
		}

		return r, info.IsDir(), true
	}

	return "", false, false
}
