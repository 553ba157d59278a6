package generator

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Generator is a generator found on the search path.
type Generator struct {
	// Name is the generator name (directory name)
	Name string
	// Dir is the absolute path of the generator directory
	Dir string
	// Manifest is the absolute path to GENERATOR.md
	Manifest string
	// Source is where this generator was found
	Source Source
	// Overshadowed is set when a higher-priority source has the same name
	Overshadowed bool
	// OvershadowedBy is the manifest path of the generator that wins
	OvershadowedBy string
}

// Finder lists the generators in a single source directory.
type Finder interface {
	Find(source Source) ([]Generator, error)
}

// DirectoryFinder finds generators laid out as {source}/{name}/GENERATOR.md.
type DirectoryFinder struct{}

// Find discovers generators in source. A missing or unreadable directory
// yields no generators.
func (f *DirectoryFinder) Find(source Source) ([]Generator, error) {
	var found []Generator

	entries, err := os.ReadDir(source.Path)
	if err != nil {
		return found, nil
	}

	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}

		dir := filepath.Join(source.Path, entry.Name())
		manifest := filepath.Join(dir, ManifestFile)
		if _, err := os.Stat(manifest); err != nil {
			continue
		}

		found = append(found, Generator{
			Name:     entry.Name(),
			Dir:      dir,
			Manifest: manifest,
			Source:   source,
		})
	}

	return found, nil
}

// Discoverer finds generators across a search path.
type Discoverer struct {
	path   *SearchPath
	finder Finder
}

// NewDiscoverer creates a Discoverer using the directory layout.
func NewDiscoverer(path *SearchPath) *Discoverer {
	return &Discoverer{path: path, finder: &DirectoryFinder{}}
}

// Discover returns every generator on the path, sorted by source priority
// then name. Generators hidden by a higher-priority source of the same name
// are included and marked Overshadowed.
func (d *Discoverer) Discover() ([]Generator, error) {
	seen := make(map[string]string)
	var all []Generator

	for _, source := range d.path.Sources() {
		found, err := d.finder.Find(source)
		if err != nil {
			return nil, err
		}
		for _, g := range found {
			if winner, ok := seen[g.Name]; ok {
				g.Overshadowed = true
				g.OvershadowedBy = winner
			} else {
				seen[g.Name] = g.Manifest
			}
			all = append(all, g)
		}
	}

	sort.SliceStable(all, func(i, j int) bool {
		if all[i].Source.Priority != all[j].Source.Priority {
			return all[i].Source.Priority < all[j].Source.Priority
		}
		return all[i].Name < all[j].Name
	})

	return all, nil
}

// Active returns the generators that are not overshadowed, keyed by name.
func (d *Discoverer) Active() (map[string]Generator, error) {
	all, err := d.Discover()
	if err != nil {
		return nil, err
	}
	active := make(map[string]Generator, len(all))
	for _, g := range all {
		if !g.Overshadowed {
			active[g.Name] = g
		}
	}
	return active, nil
}

// DisplayPath shortens path relative to the home directory when possible.
func DisplayPath(path string) string {
	homeDir, err := os.UserHomeDir()
	if err != nil || homeDir == "" {
		return path
	}
	rel, err := filepath.Rel(homeDir, path)
	if err != nil || strings.HasPrefix(rel, "..") {
		return path
	}
	return filepath.Join("~", rel)
}
