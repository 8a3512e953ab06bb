// Package manifest parses and interprets release manifests.
//
// A manifest is read top to bottom. Every non-comment line is classified by
// [ParseLine] and either changes the interpreter state (active category,
// path prefix, reroute, pending removal) or names assets that are resolved
// against a [fileindex.Index] and merged into the active category.
//
//	# comment
//	name:            declare or switch to a category
//	->path           prepend path to subsequent asset expressions
//	<-               stop prepending
//	&name            include a copy of another category
//	@path            pack subsequent assets under path, "@" alone resets
//	?path            add paths listed in README.md files below path
//	~[expr]          remove the assets of expr (or of the next expression)
//	[exclude]pattern drop matching files from the index
//	[readme]text     append a line to the category's readme.txt
//	path             a file, a directory or a wildcard expression
package manifest

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"path/filepath"
	"strings"

	"github.com/desertwitch/relpack/internal/asset"
	"github.com/desertwitch/relpack/internal/depscan"
	"github.com/desertwitch/relpack/internal/fileindex"
	"github.com/desertwitch/relpack/internal/logger"
	"github.com/spf13/afero"
)

// DefaultReadmeName is the file name inferred asset lists are read from.
const DefaultReadmeName = "README.md"

var errOutsideRoots = errors.New("path is outside of the project roots")

// Options control optional interpreter behavior.
type Options struct {
	// ReadmeName is the file name searched by infer directives.
	ReadmeName string
	// Transitive also adds the dependencies of discovered dependencies.
	Transitive bool
	// Log receives warnings and progress messages.
	Log *logger.Logger
}

// Result is the outcome of interpreting a manifest.
type Result struct {
	Categories *asset.Categories
	// Missing holds the assets dropped by the final existence check, keyed
	// by category name.
	Missing map[string][]asset.Asset
}

// MissingCount returns the total number of dropped assets.
func (r *Result) MissingCount() int {
	n := 0
	for _, m := range r.Missing {
		n += len(m)
	}

	return n
}

// Interpreter is the manifest state machine. It is not safe for concurrent
// use; every [Interpreter.Run] starts from a fresh state.
type Interpreter struct {
	fs      afero.Fs
	index   *fileindex.Index
	scanner *depscan.Scanner
	opts    Options
	log     *logger.Logger

	cats       *asset.Categories
	current    *asset.Category
	prefix     string
	reroute    string
	removeNext bool

	lineNo int
	text   string
}

// NewInterpreter returns an [Interpreter] resolving paths against index and
// expanding scripts with scanner. A nil scanner disables dependency scanning.
func NewInterpreter(fsys afero.Fs, index *fileindex.Index, scanner *depscan.Scanner, opts Options) *Interpreter {
	if opts.ReadmeName == "" {
		opts.ReadmeName = DefaultReadmeName
	}

	log := opts.Log
	if log == nil {
		log = logger.Nop()
	}

	return &Interpreter{
		fs:      fsys,
		index:   index,
		scanner: scanner,
		opts:    opts,
		log:     log,
	}
}

func (in *Interpreter) reset() {
	in.cats = asset.NewCategories()
	in.current, _ = in.cats.Get(asset.DefaultCategory)
	in.prefix = ""
	in.reroute = ""
	in.removeNext = false
	in.lineNo = 0
	in.text = ""
}

// RunFile interprets the manifest at name.
func (in *Interpreter) RunFile(ctx context.Context, name string) (*Result, error) {
	f, err := in.fs.Open(name)
	if err != nil {
		return nil, fmt.Errorf("failed to open manifest: %w", err)
	}
	defer f.Close()

	return in.Run(ctx, f)
}

// Run interprets every line of r and verifies that all resolved assets
// exist. Any returned error is fatal for the whole run.
func (in *Interpreter) Run(ctx context.Context, r io.Reader) (*Result, error) {
	in.reset()

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024) //nolint:mnd

	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("failed to interpret manifest: %w", err)
		}

		in.lineNo++
		in.text = strings.TrimRight(scanner.Text(), "\r")

		if IsSkippable(in.text) {
			continue
		}

		if err := in.exec(ParseLine(in.text)); err != nil {
			return nil, err
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed reading manifest: %w", err)
	}

	if in.removeNext {
		in.log.Warn("removal directive without a following asset expression", logger.Int("line", in.lineNo))
	}

	missing := in.cats.VerifyExistence(in.fs)
	for _, name := range in.cats.Names() {
		for _, a := range missing[name] {
			in.log.Warn("asset does not exist, dropping", logger.String("category", name), logger.String("path", a.Path))
		}
	}

	return &Result{Categories: in.cats, Missing: missing}, nil
}

func (in *Interpreter) syntaxErr(err error) error {
	return &SyntaxError{Line: in.lineNo, Text: in.text, Err: err}
}

func (in *Interpreter) exec(cmd Command) error {
	switch cmd.Kind {
	case KindCategory:
		if cmd.Arg == "" {
			return in.syntaxErr(errors.New("empty category name"))
		}
		in.current = in.cats.Declare(cmd.Arg)

	case KindPrefix:
		in.prefix = cmd.Arg

	case KindStopPrefix:
		in.prefix = ""

	case KindInclude:
		if cmd.Arg == "" {
			return in.syntaxErr(errors.New("empty category reference"))
		}
		src, err := in.cats.Get(cmd.Arg)
		if err != nil {
			return &LookupError{Line: in.lineNo, Text: in.text, Name: cmd.Arg, Err: err}
		}
		n := in.current.Extend(src)
		in.log.Debug("included category", logger.String("from", src.Name), logger.String("into", in.current.Name), logger.Int("added", n))

	case KindReroute:
		in.reroute = cmd.Arg

	case KindInfer:
		return in.infer(cmd.Arg)

	case KindRemove:
		if cmd.Arg == "" {
			in.removeNext = true

			return nil
		}

		return in.apply(cmd.Arg, true)

	case KindExclude:
		if cmd.Arg == "" {
			return in.syntaxErr(errors.New("empty exclude pattern"))
		}
		n, err := in.index.Exclude(cmd.Arg)
		if err != nil {
			return in.syntaxErr(err)
		}
		in.log.Debug("excluded from index", logger.String("pattern", cmd.Arg), logger.Int("files", n))

	case KindReadme:
		in.current.AppendReadme(DecodeEscapes(cmd.Arg))

	case KindNone:
		remove := in.removeNext
		in.removeNext = false

		return in.apply(cmd.Arg, remove)
	}

	return nil
}

// apply resolves an asset expression and adds the result to, or removes it
// from, the current category.
func (in *Interpreter) apply(expr string, remove bool) error {
	assets, err := in.resolve(expr)
	if err != nil {
		return err
	}

	if remove {
		n := in.current.RemoveMatching(assets)
		in.log.Debug("removed assets", logger.String("expr", expr), logger.Int("removed", n))

		return nil
	}

	for _, a := range assets {
		in.current.Add(a)
	}

	return nil
}

// resolve expands an asset expression into assets, including the
// dependencies of any scripts among them.
func (in *Interpreter) resolve(expr string) ([]asset.Asset, error) {
	if in.prefix != "" {
		expr = joinSlash(in.prefix, expr)
	}

	var resolved []asset.Asset

	if IsWildcard(expr) {
		root, pattern, err := in.wildcardRoot(expr)
		if err != nil {
			return nil, in.syntaxErr(err)
		}

		re, err := WildcardPattern(pattern)
		if err != nil {
			return nil, in.syntaxErr(err)
		}

		for _, f := range in.index.Match(re) {
			if root != "" && f.Root != root {
				continue
			}
			resolved = append(resolved, asset.New(f.Root, f.Rel, ""))
		}

		if len(resolved) == 0 {
			in.log.Debug("wildcard matched nothing", logger.String("expr", expr))
		}
	} else {
		root, rel, err := in.relative(expr)
		if err != nil {
			return nil, in.syntaxErr(err)
		}

		if found, isDir, ok := in.index.Locate(rel); ok {
			root = found
			if isDir {
				for _, f := range in.index.Under(root, rel) {
					resolved = append(resolved, asset.New(f.Root, f.Rel, in.reroute))
				}
			} else {
				resolved = append(resolved, asset.New(root, rel, in.reroute))
			}
		} else {
			resolved = append(resolved, asset.New(root, rel, in.reroute))
		}
	}

	return in.withDependencies(resolved)
}

func (in *Interpreter) withDependencies(resolved []asset.Asset) ([]asset.Asset, error) {
	if in.scanner == nil {
		return resolved, nil
	}

	out := resolved
	for _, a := range resolved {
		if !in.scanner.Applies(a.Path) {
			continue
		}

		if ok, _ := afero.Exists(in.fs, a.Abs()); !ok {
			continue
		}

		var (
			deps []string
			err  error
		)
		if in.opts.Transitive {
			deps, err = in.scanner.Transitive(a.Abs(), in.locate)
		} else {
			deps, err = in.scanner.Scan(a.Abs())
		}
		if err != nil {
			return nil, &LineError{Line: in.lineNo, Text: in.text, Err: err}
		}

		for _, dep := range deps {
			root := in.defaultRoot()
			if found, _, ok := in.index.Locate(dep); ok {
				root = found
			}
			out = append(out, asset.New(root, dep, ""))
		}
	}

	return out, nil
}

func (in *Interpreter) locate(rel string) (string, bool) {
	root, isDir, ok := in.index.Locate(rel)
	if !ok || isDir {
		return "", false
	}

	return filepath.Join(root, filepath.FromSlash(rel)), true
}

// infer adds every existing path listed as a "-" bullet in README files
// below dir.
func (in *Interpreter) infer(dir string) error {
	if in.prefix != "" {
		dir = joinSlash(in.prefix, dir)
	}

	owner, dir, err := in.wildcardRoot(dir)
	if err != nil {
		return in.syntaxErr(err)
	}

	pattern := "**/" + in.opts.ReadmeName
	if d := strings.Trim(strings.ReplaceAll(dir, `\`, "/"), "/"); d != "" && d != "." {
		pattern = d + "/" + pattern
	}

	readmes, err := in.index.FindFiles(pattern)
	if err != nil {
		return in.syntaxErr(err)
	}

	for _, f := range readmes {
		if owner != "" && f.Root != owner {
			continue
		}

		paths, err := in.readmePaths(f.Abs())
		if err != nil {
			return &LineError{Line: in.lineNo, Text: in.text, Err: err}
		}

		added := 0
		var (
			batchRoot string
			batch     []string
		)
		flush := func() {
			added += in.current.ExtendPaths(batchRoot, batch)
			batch = batch[:0]
		}

		for _, p := range paths {
			root, isDir, ok := in.index.Locate(p)
			if !ok || isDir {
				in.log.Debug("inferred path does not exist", logger.String("readme", f.Rel), logger.String("path", p))

				continue
			}
			if root != batchRoot && len(batch) > 0 {
				flush()
			}
			batchRoot = root
			batch = append(batch, p)
		}
		flush()

		in.log.Debug("inferred assets", logger.String("readme", f.Rel), logger.Int("added", added))
	}

	return nil
}

func (in *Interpreter) readmePaths(name string) ([]string, error) {
	f, err := in.fs.Open(name)
	if err != nil {
		return nil, fmt.Errorf("failed to open readme: %w", err)
	}
	defer f.Close()

	var paths []string

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if !strings.HasPrefix(line, "-") {
			continue
		}

		p := strings.Trim(strings.TrimSpace(line[1:]), "`")
		if p == "" {
			continue
		}
		paths = append(paths, p)
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed reading readme: %w", err)
	}

	return paths, nil
}

func (in *Interpreter) defaultRoot() string {
	roots := in.index.Roots()
	if len(roots) == 0 {
		return ""
	}

	return roots[0]
}

// relative turns an asset expression into a root-relative slash path.
// Absolute paths must lie below one of the index roots.
func (in *Interpreter) relative(expr string) (root, rel string, err error) {
	p := strings.ReplaceAll(strings.TrimSpace(expr), `\`, "/")

	if isAbsolute(p) {
		return in.stripRoot(p)
	}

	p = path.Clean(p)
	if p == ".." || strings.HasPrefix(p, "../") {
		return "", "", fmt.Errorf("%w: %s", errOutsideRoots, expr)
	}
	if p == "." {
		return "", "", errors.New("empty asset expression")
	}

	return in.defaultRoot(), p, nil
}

// wildcardRoot strips the owning root from an absolute expression that is
// matched against the index. Relative expressions match below every root
// and yield an empty root.
func (in *Interpreter) wildcardRoot(expr string) (root, pattern string, err error) {
	p := strings.ReplaceAll(strings.TrimSpace(expr), `\`, "/")
	if !isAbsolute(p) {
		return "", expr, nil
	}

	return in.stripRoot(p)
}

func (in *Interpreter) stripRoot(p string) (root, rel string, err error) {
	for _, r := range in.index.Roots() {
		rr, err := filepath.Rel(r, filepath.FromSlash(p))
		if err != nil || rr == ".." || strings.HasPrefix(rr, ".."+string(filepath.Separator)) {
			continue
		}

		return r, filepath.ToSlash(rr), nil
	}

	return "", "", fmt.Errorf("%w: %s", errOutsideRoots, p)
}

func isAbsolute(p string) bool {
	return filepath.IsAbs(filepath.FromSlash(p)) || strings.HasPrefix(p, "/")
}

func joinSlash(prefix, p string) string {
	prefix = strings.TrimRight(strings.ReplaceAll(prefix, `\`, "/"), "/")
	p = strings.TrimLeft(strings.ReplaceAll(p, `\`, "/"), "/")

	if prefix == "" {
		return p
	}

	return prefix + "/" + p
}
