// Package asset models release assets and the named, ordered categories that
// collect them.
//
// An [Asset] is identified by its normalized source path alone. The reroute
// is output metadata and never takes part in equality, so adding the same
// file twice with different reroutes keeps only the first.
package asset

import (
	"path"
	"path/filepath"
	"strings"
)

// Asset is one file destined for a release archive.
type Asset struct {
	// Root is the directory Path is relative to.
	Root string
	// Path is the slash-separated path relative to Root.
	Path string
	// Reroute, when set, replaces the directory part of the packaged path.
	Reroute string
}

// New returns an [Asset] with normalized root and path. Both slash
// conventions are accepted for rel and reroute.
func New(root, rel, reroute string) Asset {
	return Asset{
		Root:    normalize(root),
		Path:    normalizeRel(rel),
		Reroute: normalizeRel(reroute),
	}
}

func normalize(p string) string {
	if p == "" {
		return ""
	}

	return filepath.ToSlash(filepath.Clean(p))
}

func normalizeRel(p string) string {
	p = strings.TrimSpace(strings.ReplaceAll(filepath.ToSlash(p), `\`, "/"))
	if p == "" {
		return ""
	}

	p = path.Clean(p)
	if p == "." {
		return ""
	}

	return strings.TrimPrefix(p, "/")
}

// Key is the identity of the asset.
func (a Asset) Key() string {
	if a.Root == "" {
		return a.Path
	}

	return path.Join(a.Root, a.Path)
}

// Abs returns the location of the backing file in OS form.
func (a Asset) Abs() string {
	return filepath.FromSlash(a.Key())
}

// PackagedPath is the slash-separated path the asset is stored under inside
// an archive.
func (a Asset) PackagedPath() string {
	if a.Reroute != "" {
		return path.Join(a.Reroute, path.Base(a.Path))
	}

	return a.Path
}

// Equal reports whether both assets refer to the same source file.
func (a Asset) Equal(b Asset) bool {
	return a.Key() == b.Key()
}

// Clone returns an independent copy of the asset.
func (a Asset) Clone() Asset {
	return Asset{Root: a.Root, Path: a.Path, Reroute: a.Reroute}
}

// String returns the root-relative path, with the reroute if one is set.
func (a Asset) String() string {
	if a.Reroute != "" {
		return a.Path + " -> " + a.PackagedPath()
	}

	return a.Path
}
