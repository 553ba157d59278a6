package generator

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"text/template"

	"github.com/martinemde/genwiz/internal/protocol"
)

// templateSuffix is stripped from rendered file names.
const templateSuffix = ".tmpl"

// Overwrite answers for a conflicting file.
const (
	overwriteYes = "write"
	overwriteNo  = "skip"
	overwriteAll = "force"
)

// TemplateEngine runs generators that are a manifest plus a templates tree.
type TemplateEngine struct {
	discoverer *Discoverer
	workDir    string
}

// NewTemplateEngine creates an engine that discovers generators on path and
// writes generated files under workDir.
func NewTemplateEngine(path *SearchPath, workDir string) *TemplateEngine {
	return &TemplateEngine{
		discoverer: NewDiscoverer(path),
		workDir:    workDir,
	}
}

// Lookup reports the active generators. Generators whose manifest does not
// parse are left out.
func (e *TemplateEngine) Lookup(ctx context.Context) (map[string]Meta, error) {
	active, err := e.discoverer.Active()
	if err != nil {
		return nil, err
	}

	metas := make(map[string]Meta, len(active))
	for name, g := range active {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if _, err := LoadManifest(g.Manifest); err != nil {
			continue
		}
		metas[name] = Meta{Name: name, Resolved: DisplayPath(g.Dir)}
	}
	return metas, nil
}

// Run asks the generator's questions through adapter, then renders its
// templates into the working directory.
func (e *TemplateEngine) Run(ctx context.Context, name string, adapter Adapter) error {
	active, err := e.discoverer.Active()
	if err != nil {
		return err
	}
	g, ok := active[name]
	if !ok {
		return fmt.Errorf("%w: %q", ErrNotFound, name)
	}

	manifest, err := LoadManifest(g.Manifest)
	if err != nil {
		return err
	}

	log := adapter.Log()
	log.Invoke(manifest.Name)
	if manifest.Description != "" {
		log.Info(manifest.Description)
	}

	answers := make(map[string]any, len(manifest.Questions))
	for _, q := range manifest.Questions {
		reply, err := adapter.Prompt(ctx, q.Question())
		if err != nil {
			return fmt.Errorf("question %q: %w", q.Name, err)
		}
		answers[q.Name] = q.Answer(reply[q.Name])
	}

	r := &renderer{
		ctx:     ctx,
		adapter: adapter,
		log:     log,
		srcDir:  filepath.Join(g.Dir, TemplatesDir),
		dstDir:  e.workDir,
		data:    answers,
	}
	written, err := r.renderAll()
	if err != nil {
		return err
	}

	log.Ok(fmt.Sprintf("%s: %d file(s) written", manifest.Name, written))
	return nil
}

// renderer copies one templates tree into the destination directory.
type renderer struct {
	ctx     context.Context
	adapter Adapter
	log     Logger
	srcDir  string
	dstDir  string
	data    map[string]any
	force   bool
}

func (r *renderer) renderAll() (int, error) {
	var files []string
	err := filepath.WalkDir(r.srcDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			files = append(files, path)
		}
		return nil
	})
	if errors.Is(err, fs.ErrNotExist) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read templates: %w", err)
	}
	sort.Strings(files)

	written := 0
	for _, src := range files {
		if err := r.ctx.Err(); err != nil {
			return written, err
		}
		ok, err := r.renderFile(src)
		if err != nil {
			return written, err
		}
		if ok {
			written++
		}
	}
	return written, nil
}

// renderFile renders src and writes it unless the user declines to
// overwrite a differing file. It reports whether the file was written.
func (r *renderer) renderFile(src string) (bool, error) {
	rel, err := filepath.Rel(r.srcDir, src)
	if err != nil {
		return false, err
	}

	relOut, err := r.execute("path:"+rel, filepath.ToSlash(rel))
	if err != nil {
		return false, err
	}
	relOut = strings.TrimSuffix(string(relOut), templateSuffix)
	if relOut == "" || strings.HasPrefix(filepath.Clean(relOut), "..") {
		return false, fmt.Errorf("template %s renders to invalid path %q", rel, relOut)
	}

	raw, err := os.ReadFile(src)
	if err != nil {
		return false, fmt.Errorf("failed to read template: %w", err)
	}
	content, err := r.execute(rel, string(raw))
	if err != nil {
		return false, err
	}

	dst := filepath.Join(r.dstDir, filepath.FromSlash(relOut))
	existing, err := os.ReadFile(dst)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		if err := writeFile(dst, content); err != nil {
			return false, err
		}
		r.log.Create(relOut)
		return true, nil
	case err != nil:
		return false, fmt.Errorf("failed to read %s: %w", relOut, err)
	case bytes.Equal(existing, []byte(content)):
		r.log.Identical(relOut)
		return false, nil
	}

	r.log.Conflict(relOut)
	overwrite, err := r.confirmOverwrite(relOut)
	if err != nil {
		return false, err
	}
	if !overwrite {
		r.log.Skip(relOut)
		return false, nil
	}
	if err := writeFile(dst, content); err != nil {
		return false, err
	}
	r.log.Force(relOut)
	return true, nil
}

func (r *renderer) confirmOverwrite(rel string) (bool, error) {
	if r.force {
		return true, nil
	}

	q := &protocol.Choice{
		Name:    "overwrite",
		Message: fmt.Sprintf("Overwrite %s?", rel),
		Choices: []protocol.Option{
			{Name: "Yes", Value: overwriteYes, Detail: "overwrite this file"},
			{Name: "No", Value: overwriteNo, Detail: "keep the existing file"},
			{Name: "All", Value: overwriteAll, Detail: "overwrite this and all remaining files"},
		},
		Default: overwriteNo,
	}
	reply, err := r.adapter.Prompt(r.ctx, q)
	if err != nil {
		return false, fmt.Errorf("conflict on %s: %w", rel, err)
	}

	switch reply[q.Name] {
	case overwriteYes:
		return true, nil
	case overwriteAll:
		r.force = true
		return true, nil
	default:
		return false, nil
	}
}

func (r *renderer) execute(name, text string) (string, error) {
	tmpl, err := template.New(name).Option("missingkey=error").Parse(text)
	if err != nil {
		return "", fmt.Errorf("failed to parse template %s: %w", name, err)
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, r.data); err != nil {
		return "", fmt.Errorf("failed to render template %s: %w", name, err)
	}
	return buf.String(), nil
}

func writeFile(path, content string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}
