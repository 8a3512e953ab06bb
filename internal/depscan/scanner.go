// Package depscan statically discovers the script files a script depends on.
//
// A source file is parsed into a syntax tree and every call whose callee is a
// bare identifier from a fixed allow-list contributes its string literal
// arguments as dependencies. The source is never executed. Results are
// memoized per absolute path for the lifetime of the [Scanner].
package depscan

import (
	"bytes"
	"errors"
	"fmt"
	"path"
	"path/filepath"
	"strings"
	"sync"

	"github.com/spf13/afero"
	"github.com/yuin/gopher-lua/parse"
)

// Default scanner settings for VScript Lua sources.
var (
	DefaultExtension = ".lua"
	DefaultBaseDir   = "scripts/vscripts"
	DefaultFunctions = []string{"require", "IncludeScript", "DoIncludeScript"}
	DefaultSeparator = "."
)

// ErrParse is wrapped by every [ParseError].
var ErrParse = errors.New("script parse error")

// ParseError is returned when a script source cannot be parsed.
type ParseError struct {
	Path string
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("failed to parse script %q: %v", e.Path, e.Err)
}

func (e *ParseError) Unwrap() []error {
	return []error{ErrParse, e.Err}
}

// Options configure what counts as a script and how references map to files.
type Options struct {
	// Extension marks script sources, compared case-insensitively.
	Extension string
	// BaseDir is the root-relative directory references are resolved in.
	BaseDir string
	// Functions are the inclusion-style callee names.
	Functions []string
	// Separator is the module separator replaced with path separators.
	Separator string
}

func (o Options) withDefaults() Options {
	if o.Extension == "" {
		o.Extension = DefaultExtension
	}
	if !strings.HasPrefix(o.Extension, ".") {
		o.Extension = "." + o.Extension
	}
	if o.BaseDir == "" {
		o.BaseDir = DefaultBaseDir
	}
	if len(o.Functions) == 0 {
		o.Functions = DefaultFunctions
	}
	if o.Separator == "" {
		o.Separator = DefaultSeparator
	}

	return o
}

// Scanner extracts and memoizes script dependencies. It is safe for
// concurrent use.
type Scanner struct {
	fs    afero.Fs
	opts  Options
	funcs map[string]struct{}

	mu     sync.Mutex
	cache  map[string][]string
	parses int
}

// New returns a [Scanner] reading sources from fsys.
func New(fsys afero.Fs, opts Options) *Scanner {
	opts = opts.withDefaults()

	funcs := make(map[string]struct{}, len(opts.Functions))
	for _, f := range opts.Functions {
		funcs[f] = struct{}{}
	}

	return &Scanner{
		fs:    fsys,
		opts:  opts,
		funcs: funcs,
		cache: make(map[string][]string),
	}
}

// Options returns the effective scanner options.
func (s *Scanner) Options() Options {
	return s.opts
}

// Applies reports whether the file at p is a script source.
func (s *Scanner) Applies(p string) bool {
	return strings.EqualFold(filepath.Ext(p), s.opts.Extension)
}

// Parses returns how many times a source was actually parsed.
func (s *Scanner) Parses() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.parses
}

// Scan returns the root-relative, slash-separated paths referenced by the
// script at abs, in first-seen order. Referenced files are not checked for
// existence. Repeated calls for the same path return the memoized result.
func (s *Scanner) Scan(abs string) ([]string, error) {
	key := filepath.Clean(abs)

	s.mu.Lock()
	if deps, ok := s.cache[key]; ok {
		s.mu.Unlock()

		return clone(deps), nil
	}
	s.mu.Unlock()

	src, err := afero.ReadFile(s.fs, key)
	if err != nil {
		return nil, fmt.Errorf("failed to read script: %w", err)
	}

	refs, err := s.references(key, src)
	if err != nil {
		return nil, err
	}

	deps := make([]string, 0, len(refs))
	seen := make(map[string]struct{}, len(refs))
	for _, ref := range refs {
		p := s.Resolve(ref)
		if p == "" {
			continue
		}
		if _, ok := seen[p]; ok {
			continue
		}
		seen[p] = struct{}{}
		deps = append(deps, p)
	}

	s.mu.Lock()
	if cached, ok := s.cache[key]; ok {
		deps = cached
	} else {
		s.cache[key] = deps
	}
	s.mu.Unlock()

	return clone(deps), nil
}

func (s *Scanner) references(name string, src []byte) ([]string, error) {
	s.mu.Lock()
	s.parses++
	s.mu.Unlock()

	chunk, err := parse.Parse(bytes.NewReader(src), name)
	if err != nil {
		return nil, &ParseError{Path: name, Err: err}
	}

	c := collector{funcs: s.funcs}
	c.stmts(chunk)

	return c.refs, nil
}

// Resolve maps a module reference to a root-relative script path, e.g.
// "util.debug" becomes "scripts/vscripts/util/debug.lua".
func (s *Scanner) Resolve(ref string) string {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return ""
	}

	if len(ref) >= len(s.opts.Extension) && strings.EqualFold(ref[len(ref)-len(s.opts.Extension):], s.opts.Extension) {
		ref = ref[:len(ref)-len(s.opts.Extension)]
	}

	ref = strings.ReplaceAll(ref, `\`, "/")
	ref = strings.ReplaceAll(ref, s.opts.Separator, "/")
	ref = strings.Trim(ref, "/")
	if ref == "" {
		return ""
	}

	return path.Join(s.opts.BaseDir, ref) + s.opts.Extension
}

func clone(in []string) []string {
	out := make([]string, len(in))
	copy(out, in)

	return out
}
