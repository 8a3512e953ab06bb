package main

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/desertwitch/relpack/internal/depscan"
	"github.com/desertwitch/relpack/internal/fileindex"
	"github.com/desertwitch/relpack/internal/logger"
	"github.com/desertwitch/relpack/internal/manifest"
)

// Resolve indexes the project roots and interprets the manifest.
//
// The release directory is excluded from the index when it lies below the
// content root, so previous archives never end up inside new ones. Assets
// dropped as missing are logged as warnings by the interpreter.
func (prog *Program) Resolve(ctx context.Context) (*manifest.Result, error) {
	cfg := prog.cfg

	idx, err := fileindex.New(ctx, prog.fs, cfg.RootList(), fileindex.Options{
		Ignore:    cfg.Index.Ignore,
		Gitignore: cfg.Index.Gitignore,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to index project: %w", err)
	}

	if rel, ok := below(cfg.Roots.Content, cfg.ReleaseDir); ok {
		if _, err := idx.Exclude(rel + "/"); err != nil {
			return nil, fmt.Errorf("failed to exclude release directory: %w", err)
		}
	}

	prog.log.Debug("indexed project", logger.Int("files", idx.Len()), logger.String("roots", strings.Join(idx.Roots(), ", ")))

	scanner := depscan.New(prog.fs, depscan.Options{
		Extension: cfg.Scripts.Extension,
		BaseDir:   cfg.Scripts.BaseDir,
		Functions: cfg.Scripts.Functions,
	})

	in := manifest.NewInterpreter(prog.fs, idx, scanner, manifest.Options{
		Transitive: cfg.Scripts.Transitive,
		Log:        prog.log,
	})

	res, err := in.RunFile(ctx, cfg.Manifest)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve manifest: %w", err)
	}

	prog.log.Info("resolved manifest",
		logger.String("manifest", cfg.Manifest),
		logger.Int("categories", res.Categories.Len()),
		logger.Int("missing", res.MissingCount()),
		logger.Int("scripts", scanner.Parses()),
	)

	return res, nil
}

// below returns dir relative to root in slash form, if dir lies below root.
func below(root, dir string) (string, bool) {
	rel, err := filepath.Rel(root, dir)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", false
	}

	return filepath.ToSlash(rel), true
}
