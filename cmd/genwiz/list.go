package main

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/martinemde/genwiz/internal/generator"
	"github.com/martinemde/genwiz/internal/ui"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newListCmd(a *app) *cobra.Command {
	var long bool
	cmd := &cobra.Command{
		Use:   "list [workspace]",
		Short: "List the generators available to a workspace",
		Args:  cobra.MaximumNArgs(1),

		ValidArgsFunction: completeWorkspace,
		RunE: func(_ *cobra.Command, args []string) error {
			workspace, err := workspaceArg(args)
			if err != nil {
				return err
			}
			if workspace == "" {
				return fmt.Errorf("list: %w", errNoWorkspace)
			}
			return a.listGenerators(a.stdout, workspace, long)
		},
	}
	cmd.Flags().BoolVarP(&long, "long", "l", false, "also print each generator's description")
	return cmd
}

var errNoWorkspace = errors.New("no workspace given")

// listGenerators prints every generator on the search path, shadowed ones
// included, in a table.
func (a *app) listGenerators(w io.Writer, workspace string, long bool) error {
	path, err := generator.NewSearchPath(workspace, a.cfg.Generators.Paths)
	if err != nil {
		return err
	}
	all, err := generator.NewDiscoverer(path).Discover()
	if err != nil {
		return fmt.Errorf("discovering generators: %w", err)
	}
	if len(all) == 0 {
		_, _ = fmt.Fprintln(w, "No generators installed.")
		return nil
	}

	dim := lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	rows := make([][]string, 0, len(all))
	shadowed := make(map[int]bool)
	for i, g := range all {
		name := g.Name
		if g.Overshadowed {
			name += " (shadowed)"
			shadowed[i] = true
		}
		rows = append(rows, []string{name, g.Source.Name, generator.DisplayPath(g.Dir)})
	}

	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(dim).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if shadowed[row] {
				return dim
			}
			return lipgloss.NewStyle()
		}).
		Headers("Generator", "Source", "Path").
		Rows(rows...)
	_, _ = fmt.Fprintln(w, t)

	if !long {
		return nil
	}

	md := ui.NewMarkdownRenderer(a.cfg.Color)
	for _, g := range all {
		if g.Overshadowed {
			continue
		}
		m, err := generator.LoadManifest(g.Manifest)
		if err != nil {
			a.logger.Debug("skipping unreadable manifest", zap.String("path", g.Manifest), zap.Error(err))
			continue
		}
		text := "## " + m.Name + "\n\n" + m.Description
		if body := strings.TrimSpace(m.Body); body != "" {
			text += "\n\n" + body
		}
		_, _ = fmt.Fprintln(w, strings.TrimRight(ui.RenderMarkdown(md, text), "\n"))
	}
	return nil
}
