// mkproject is a benchmark helper tool for synthetic project creation.
//
// It writes chains of Lua scripts that require each other, a README listing
// them and a manifest with one category per chain, so a full pack run with
// --transitive touches every file.
//
//nolint:mnd
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"syscall"

	"github.com/spf13/afero"
)

const (
	scriptsPerModule = 100
	scriptBaseDir    = "scripts/vscripts"
	manifestName     = "release_assets.txt"
)

var workers = runtime.GOMAXPROCS(0) * 2

func moduleName(m int) string {
	return fmt.Sprintf("mod_%04d", m)
}

func scriptName(s int) string {
	return fmt.Sprintf("script_%04d", s)
}

func scriptCount(m int, total int) int {
	return min(scriptsPerModule, total-m*scriptsPerModule)
}

// createModule writes one chain of scripts; every script requires its successor.
func createModule(ctx context.Context, fs afero.Fs, base string, m int, total int) error {
	dir := filepath.Join(base, filepath.FromSlash(scriptBaseDir), moduleName(m))

	if err := fs.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("error creating dir: %w", err)
	}

	count := scriptCount(m, total)

	var readme strings.Builder
	readme.WriteString("# " + moduleName(m) + "\n\n")

	for s := range count {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("error during creation: %w", err)
		}

		var body string
		if s+1 < count {
			body = fmt.Sprintf("require %q\n", moduleName(m)+"."+scriptName(s+1))
		} else {
			body = "return {}\n"
		}

		path := filepath.Join(dir, scriptName(s)+".lua")
		if err := afero.WriteFile(fs, path, []byte(body), 0o644); err != nil {
			return fmt.Errorf("error creating file: %w", err)
		}

		fmt.Fprintf(&readme, "- `%s/%s/%s.lua`\n", scriptBaseDir, moduleName(m), scriptName(s))
	}

	if err := afero.WriteFile(fs, filepath.Join(dir, "README.md"), []byte(readme.String()), 0o644); err != nil {
		return fmt.Errorf("error creating file: %w", err)
	}

	return nil
}

// writeManifest declares one category per module, alternating between
// listing the chain head and inferring the module from its README.
func writeManifest(fs afero.Fs, base string, modules int) error {
	var b strings.Builder

	b.WriteString("# generated by mkproject\n")
	for m := range modules {
		fmt.Fprintf(&b, "%s:\n", moduleName(m))
		if m%2 == 0 {
			fmt.Fprintf(&b, "%s/%s/%s.lua\n", scriptBaseDir, moduleName(m), scriptName(0))
		} else {
			fmt.Fprintf(&b, "?%s/%s\n", scriptBaseDir, moduleName(m))
		}
	}

	if err := afero.WriteFile(fs, filepath.Join(base, manifestName), []byte(b.String()), 0o644); err != nil {
		return fmt.Errorf("error creating manifest: %w", err)
	}

	return nil
}

func createProject(ctx context.Context, fs afero.Fs, base string, totalScripts int) error {
	var once sync.Once
	var wg sync.WaitGroup

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	tasks := make(chan int, workers)
	errCh := make(chan error, 1)

	modulesNeeded := (totalScripts + scriptsPerModule - 1) / scriptsPerModule

	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for m := range tasks {
				if err := createModule(ctx, fs, base, m, totalScripts); err != nil {
					once.Do(func() {
						errCh <- err
						cancel()
					})

					return
				}
			}
		}()
	}

	go func() {
		defer close(tasks)
		for m := range modulesNeeded {
			select {
			case tasks <- m:
			case <-ctx.Done():
				return
			}
		}
	}()

	wg.Wait()
	close(errCh)

	if err, ok := <-errCh; ok && err != nil {
		return err
	}

	if err := ctx.Err(); err != nil {
		return fmt.Errorf("error during creation: %w", err)
	}

	return writeManifest(fs, base, modulesNeeded)
}

func main() {
	if len(os.Args) != 3 {
		fmt.Fprintf(os.Stderr, "usage: mkproject <base_dir> <script_count>\n")
		os.Exit(1)
	}

	baseDir := os.Args[1]

	totalScripts, err := strconv.Atoi(os.Args[2])
	if err != nil || totalScripts <= 0 {
		fmt.Fprintf(os.Stderr, "error: invalid script count: %v\n", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	errChan := make(chan error, 1)
	go func() {
		defer close(errChan)
		if err := createProject(ctx, afero.NewOsFs(), baseDir, totalScripts); err != nil {
			errChan <- fmt.Errorf("failed to create project: %w", err)
		}
	}()

	for {
		select {
		case <-sigChan:
			cancel()
		case err := <-errChan:
			if err != nil {
				fmt.Fprintf(os.Stderr, "error: %v\n", err)
				os.Exit(1)
			}
			os.Exit(0)
		}
	}
}
