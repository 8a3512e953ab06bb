package asset

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/afero"
)

// DefaultCategory is the category that is active before any declaration.
const DefaultCategory = "main"

// ErrCategoryNotFound is returned when looking up an undeclared category.
var ErrCategoryNotFound = errors.New("category not found")

// Category is a named, insertion-ordered set of assets.
type Category struct {
	Name string

	assets []Asset
	index  map[string]int
	readme []string
}

// NewCategory returns an empty [Category].
func NewCategory(name string) *Category {
	return &Category{
		Name:  name,
		index: make(map[string]int),
	}
}

// Add inserts the asset unless one with the same identity is present.
// It reports whether the asset was inserted.
func (c *Category) Add(a Asset) bool {
	key := a.Key()
	if _, ok := c.index[key]; ok {
		return false
	}

	c.index[key] = len(c.assets)
	c.assets = append(c.assets, a)

	return true
}

// Extend adds a clone of every asset of other, preserving its order.
func (c *Category) Extend(other *Category) int {
	added := 0
	for _, a := range other.assets {
		if c.Add(a.Clone()) {
			added++
		}
	}

	return added
}

// ExtendPaths adds plain, non-rerouted assets for root-relative paths.
func (c *Category) ExtendPaths(root string, paths []string) int {
	added := 0
	for _, p := range paths {
		if c.Add(New(root, p, "")) {
			added++
		}
	}

	return added
}

// RemoveMatching drops every asset whose identity matches one in remove.
// It returns the number of assets dropped.
func (c *Category) RemoveMatching(remove []Asset) int {
	if len(remove) == 0 {
		return 0
	}

	drop := make(map[string]struct{}, len(remove))
	for _, a := range remove {
		drop[a.Key()] = struct{}{}
	}

	return c.filter(func(a Asset) bool {
		_, ok := drop[a.Key()]

		return !ok
	})
}

// VerifyExistence drops and returns every asset whose backing file is
// missing from fs or is not a regular file.
func (c *Category) VerifyExistence(fs afero.Fs) []Asset {
	var missing []Asset

	c.filter(func(a Asset) bool {
		info, err := fs.Stat(a.Abs())
		if err != nil || info.IsDir() {
			missing = append(missing, a)

			return false
		}

		return true
	})

	return missing
}

// filter keeps the assets for which keep returns true and rebuilds the index.
func (c *Category) filter(keep func(Asset) bool) int {
	kept := c.assets[:0]
	for _, a := range c.assets {
		if keep(a) {
			kept = append(kept, a)
		}
	}

	dropped := len(c.assets) - len(kept)
	if dropped == 0 {
		return 0
	}

	clear(c.assets[len(kept):])
	c.assets = kept

	c.index = make(map[string]int, len(kept))
	for i, a := range kept {
		c.index[a.Key()] = i
	}

	return dropped
}

// Contains reports whether an asset with the same identity is present.
func (c *Category) Contains(a Asset) bool {
	_, ok := c.index[a.Key()]

	return ok
}

// Assets returns a copy of the assets in insertion order.
func (c *Category) Assets() []Asset {
	out := make([]Asset, len(c.assets))
	copy(out, c.assets)

	return out
}

// Len returns the number of assets.
func (c *Category) Len() int {
	return len(c.assets)
}

// AppendReadme appends one line of readme text.
func (c *Category) AppendReadme(line string) {
	c.readme = append(c.readme, line)
}

// HasReadme reports whether any readme text was accumulated.
func (c *Category) HasReadme() bool {
	return len(c.readme) > 0
}

// ReadmeText returns the accumulated readme lines joined by newlines.
func (c *Category) ReadmeText() string {
	if len(c.readme) == 0 {
		return ""
	}

	return strings.Join(c.readme, "\n") + "\n"
}

// Categories is an ordered collection of categories keyed by name.
// The default category is always first.
type Categories struct {
	order  []*Category
	byName map[string]*Category
}

// NewCategories returns a collection holding only the default category.
func NewCategories() *Categories {
	cs := &Categories{byName: make(map[string]*Category)}
	cs.Declare(DefaultCategory)

	return cs
}

// Declare returns the named category, creating it on first use.
func (cs *Categories) Declare(name string) *Category {
	if c, ok := cs.byName[name]; ok {
		return c
	}

	c := NewCategory(name)
	cs.byName[name] = c
	cs.order = append(cs.order, c)

	return c
}

// Get returns the named category or an error wrapping [ErrCategoryNotFound].
func (cs *Categories) Get(name string) (*Category, error) {
	c, ok := cs.byName[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrCategoryNotFound, name)
	}

	return c, nil
}

// All returns the categories in declaration order.
func (cs *Categories) All() []*Category {
	out := make([]*Category, len(cs.order))
	copy(out, cs.order)

	return out
}

// Names returns the category names in declaration order.
func (cs *Categories) Names() []string {
	names := make([]string, len(cs.order))
	for i, c := range cs.order {
		names[i] = c.Name
	}

	return names
}

// Len returns the number of categories.
func (cs *Categories) Len() int {
	return len(cs.order)
}

// VerifyExistence runs [Category.VerifyExistence] over every category and
// returns the dropped assets by category name. Categories without missing
// assets are absent from the result.
func (cs *Categories) VerifyExistence(fs afero.Fs) map[string][]Asset {
	out := make(map[string][]Asset)
	for _, c := range cs.order {
		if missing := c.VerifyExistence(fs); len(missing) > 0 {
			out[c.Name] = missing
		}
	}

	return out
}
