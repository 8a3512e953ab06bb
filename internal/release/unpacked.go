package release

import (
	"context"
	"fmt"
	"io"
	"path/filepath"

	"github.com/desertwitch/relpack/internal/asset"
	"github.com/desertwitch/relpack/internal/logger"
)

const unpackedDir = "unpacked"

// UnpackedPath returns the directory unpacked copies are written to.
func (p *Packager) UnpackedPath() string {
	return filepath.Join(p.opts.Dir, unpackedDir)
}

// copyUnpacked mirrors every asset of every category into the unpacked
// directory at its packaged path. The directory is recreated on each call.
func (p *Packager) copyUnpacked(ctx context.Context, cats []*asset.Category) (int, error) {
	dir := p.UnpackedPath()

	if err := p.fs.RemoveAll(dir); err != nil {
		return 0, fmt.Errorf("failed to clear unpacked directory: %w", err)
	}

	copied := make(map[string]struct{})

	for _, c := range cats {
		for _, a := range c.Assets() {
			if err := ctx.Err(); err != nil {
				return len(copied), fmt.Errorf("failed to copy unpacked assets: %w", err)
			}

			dst := filepath.Join(dir, filepath.FromSlash(a.PackagedPath()))
			if _, ok := copied[dst]; ok {
				continue
			}

			if err := p.copyFile(a.Abs(), dst); err != nil {
				return len(copied), err
			}
			copied[dst] = struct{}{}

			p.log.Trace("copied asset", logger.String("from", a.Key()), logger.String("to", dst))
		}
	}

	return len(copied), nil
}

func (p *Packager) copyFile(src, dst string) error {
	if err := p.fs.MkdirAll(filepath.Dir(dst), baseFolderPerms); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	in, err := p.fs.Open(src)
	if err != nil {
		return fmt.Errorf("failed to open asset: %w", err)
	}
	defer in.Close()

	out, err := p.fs.Create(dst)
	if err != nil {
		return fmt.Errorf("failed to create copy: %w", err)
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return fmt.Errorf("failed to copy asset: %w", err)
	}

	if err := out.Close(); err != nil {
		return fmt.Errorf("failed to close copy: %w", err)
	}

	return nil
}
