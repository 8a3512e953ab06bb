package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/desertwitch/relpack/internal/manifest"
	"gopkg.in/yaml.v3"
)

// ErrUnknownOutput is returned for unsupported listing formats.
var ErrUnknownOutput = errors.New("unknown output format")

type assetEntry struct {
	Source   string `yaml:"source"`
	Packaged string `yaml:"packaged"`
}

type categoryListing struct {
	Category string       `yaml:"category"`
	Assets   []assetEntry `yaml:"assets"`
	Readme   string       `yaml:"readme,omitempty"`
	Missing  []string     `yaml:"missing,omitempty"`
}

// Assets resolves the manifest and writes every category to standard output,
// as plain text or as YAML.
func (prog *Program) Assets(ctx context.Context, output string) error {
	output = strings.ToLower(output)
	if output != "text" && output != "yaml" {
		return fmt.Errorf("%w: %q", ErrUnknownOutput, output)
	}

	res, err := prog.Resolve(ctx)
	if err != nil {
		return err
	}

	listings := listCategories(res)

	if output == "yaml" {
		enc := yaml.NewEncoder(prog.stdout)
		enc.SetIndent(2) //nolint:mnd

		if err := enc.Encode(listings); err != nil {
			return fmt.Errorf("failed to encode assets: %w", err)
		}

		if err := enc.Close(); err != nil {
			return fmt.Errorf("failed to encode assets: %w", err)
		}

		return nil
	}

	for _, l := range listings {
		fmt.Fprintf(prog.stdout, "%s:\n", l.Category)

		for _, a := range l.Assets {
			if a.Source == a.Packaged {
				fmt.Fprintf(prog.stdout, "  %s\n", a.Source)
			} else {
				fmt.Fprintf(prog.stdout, "  %s -> %s\n", a.Source, a.Packaged)
			}
		}

		for _, m := range l.Missing {
			fmt.Fprintf(prog.stdout, "  (missing) %s\n", m)
		}

		if l.Readme != "" {
			fmt.Fprintf(prog.stdout, "  [readme] %d lines\n", strings.Count(l.Readme, "\n"))
		}
	}

	return nil
}

func listCategories(res *manifest.Result) []categoryListing {
	cats := res.Categories.All()
	listings := make([]categoryListing, 0, len(cats))

	for _, c := range cats {
		l := categoryListing{
			Category: c.Name,
			Assets:   []assetEntry{},
			Readme:   c.ReadmeText(),
		}

		for _, a := range c.Assets() {
			l.Assets = append(l.Assets, assetEntry{Source: a.Path, Packaged: a.PackagedPath()})
		}

		for _, m := range res.Missing[c.Name] {
			l.Missing = append(l.Missing, m.Path)
		}

		listings = append(listings, l)
	}

	return listings
}
