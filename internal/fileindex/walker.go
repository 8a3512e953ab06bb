package fileindex

import (
	"io/fs"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
)

// Walker visits a root and everything below it in lexical order.
type Walker interface {
	WalkDir(root string, fn fs.WalkDirFunc) error
}

// FsWalker walks an [afero.Fs] through its [io/fs] view, so callbacks see
// real directory entries and host paths.
type FsWalker struct {
	Fs afero.Fs
}

// WalkDir walks root with [fs.WalkDir], translating every visited path
// back into a host path beginning with root.
func (w FsWalker) WalkDir(root string, fn fs.WalkDirFunc) error {
	fsys := w.Fs
	name := filepath.ToSlash(filepath.Clean(root))

	if strings.HasPrefix(name, "/") {
		// io/fs names are unrooted.
		fsys = afero.NewBasePathFs(fsys, "/")
		name = strings.TrimPrefix(name, "/")
	}
	if name == "" {
		name = "."
	}

	return fs.WalkDir(afero.NewIOFS(fsys), name, func(p string, d fs.DirEntry, err error) error { //nolint:wrapcheck
		return fn(hostPath(root, name, p), d, err)
	})
}

func hostPath(root, name, p string) string {
	if p == name {
		return root
	}

	rel := p
	if name != "." {
		rel = strings.TrimPrefix(p, name+"/")
	}

	return filepath.Join(root, filepath.FromSlash(rel))
}

// OSWalker walks the host filesystem with [filepath.WalkDir].
type OSWalker struct{}

// WalkDir calls [filepath.WalkDir].
func (OSWalker) WalkDir(root string, fn fs.WalkDirFunc) error {
	return filepath.WalkDir(root, fn)
}

// WalkerFor picks [OSWalker] for the host filesystem and [FsWalker] for
// everything else.
func WalkerFor(fsys afero.Fs) Walker {
	if _, ok := fsys.(*afero.OsFs); ok {
		return OSWalker{}
	}

	return FsWalker{Fs: fsys}
}
