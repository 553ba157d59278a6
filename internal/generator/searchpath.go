package generator

import (
	"os"
	"path/filepath"
)

const (
	// ConfigDir is the per-project and per-user configuration directory.
	ConfigDir = ".genwiz"
	// GeneratorsDir is the subdirectory of ConfigDir holding generators.
	GeneratorsDir = "generators"
	// ManifestFile names the file that marks a directory as a generator.
	ManifestFile = "GENERATOR.md"
	// TemplatesDir is the subdirectory of a generator holding its files.
	TemplatesDir = "templates"
)

// Source is a directory that may contain generators.
type Source struct {
	// Path is the absolute path to the directory
	Path string
	// Name is a human-readable name such as "project" or "user"
	Name string
	// Priority determines precedence (lower numbers = higher priority)
	Priority int
}

// SearchPath is an ordered list of sources, like a shell PATH.
type SearchPath struct {
	sources []Source
}

// NewSearchPath builds the default search path:
//  1. <workDir>/.genwiz/generators (priority 0)
//  2. ~/.genwiz/generators (priority 1)
//  3. each of extra, in order
//
// If workDir is empty, the current working directory is used.
func NewSearchPath(workDir string, extra []string) (*SearchPath, error) {
	if workDir == "" {
		var err error
		workDir, err = os.Getwd()
		if err != nil {
			return nil, err
		}
	}

	sources := []Source{{
		Path:     filepath.Join(workDir, ConfigDir, GeneratorsDir),
		Name:     "project",
		Priority: 0,
	}}

	if homeDir, err := os.UserHomeDir(); err == nil {
		sources = append(sources, Source{
			Path:     filepath.Join(homeDir, ConfigDir, GeneratorsDir),
			Name:     "user",
			Priority: 1,
		})
	}

	for _, p := range extra {
		if p == "" {
			continue
		}
		abs, err := filepath.Abs(p)
		if err != nil {
			return nil, err
		}
		sources = append(sources, Source{
			Path:     abs,
			Name:     "config",
			Priority: len(sources),
		})
	}

	return &SearchPath{sources: sources}, nil
}

// NewSearchPathWithSources creates a SearchPath with custom sources.
func NewSearchPathWithSources(sources []Source) *SearchPath {
	return &SearchPath{sources: sources}
}

// Sources returns the sources in priority order.
func (p *SearchPath) Sources() []Source {
	return p.sources
}
