package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/martinemde/genwiz/internal/ui"
)

func printHelp(w io.Writer, colorMode string) {
	useColors := ui.ShouldUseColors(colorMode, os.Stdout)

	md := ui.NewMarkdownRenderer(ui.ColorNever)
	if useColors {
		md = ui.NewMarkdownRenderer(colorMode)
	}
	renderMarkdown := func(text string) string {
		return strings.TrimSpace(ui.RenderMarkdown(md, text))
	}

	titleStyle := lipgloss.NewStyle().Bold(true).MarginBottom(1)
	sectionStyle := lipgloss.NewStyle().Bold(true).MarginTop(1)
	optionStyle := lipgloss.NewStyle()
	codeStyle := lipgloss.NewStyle().Italic(true)
	descStyle := lipgloss.NewStyle()

	if useColors {
		titleStyle = titleStyle.Foreground(lipgloss.Color("6"))     // Cyan
		sectionStyle = sectionStyle.Foreground(lipgloss.Color("3")) // Yellow
		optionStyle = optionStyle.Foreground(lipgloss.Color("2"))   // Green
		codeStyle = codeStyle.Foreground(lipgloss.Color("8"))       // Dim
		descStyle = descStyle.Foreground(lipgloss.Color("7"))       // Light gray
	}

	title := titleStyle.Render("genwiz - Run project generators as an interactive wizard")

	usage := lipgloss.JoinVertical(lipgloss.Left,
		sectionStyle.Render("Usage:"),
		"  genwiz [options] [workspace]",
		"  genwiz list [options] [workspace]",
	)

	description := lipgloss.JoinVertical(lipgloss.Left,
		sectionStyle.Render("Description:"),
		descStyle.Render("  Genwiz starts a worker process in the workspace that finds the installed"),
		descStyle.Render("  generators, asks which one to run, and walks you through its questions."),
		descStyle.Render("  Files are rendered into the workspace; existing files are never replaced"),
		descStyle.Render("  without asking."),
		"",
		"  Generators are looked up in:",
		"  • The workspace "+codeStyle.Render("(.genwiz/generators/<name>/GENERATOR.md)"),
		"  • Your home directory "+codeStyle.Render("(~/.genwiz/generators/<name>/GENERATOR.md)"),
		"  • Extra paths from config "+codeStyle.Render("(generators.paths)"),
	)

	options := lipgloss.JoinVertical(lipgloss.Left,
		sectionStyle.Render("Options:"),
		fmt.Sprintf("  %s              Show this help message", optionStyle.Render("--help")),
		fmt.Sprintf("  %s           Show version information", optionStyle.Render("--version")),
		fmt.Sprintf("  %s, %s        Config file (default: .genwiz/config.yaml)", optionStyle.Render("-c"), optionStyle.Render("--config")),
		fmt.Sprintf("  %s             Control color output (auto, always, never)", optionStyle.Render("--color")),
		fmt.Sprintf("  %s         Diagnostic log level (default: warn)", optionStyle.Render("--log-level")),
		fmt.Sprintf("  %s          Write diagnostic logs as JSON to a file", optionStyle.Render("--log-file")),
	)

	examplesBlock := `~~~sh
# Run the wizard in the current directory
genwiz

# Run the wizard in another project
genwiz ~/src/billing

# List the generators a workspace can use
genwiz list --long
~~~`

	examples := lipgloss.JoinVertical(lipgloss.Left,
		sectionStyle.Render("Examples:"),
		renderMarkdown(examplesBlock),
	)

	manifestExample := `~~~yaml
---
name: service
description: A new HTTP service
questions:
  - name: name
    message: Service name
    default: demo
  - name: tests
    message: Generate tests?
    type: confirm
---

Renders everything under templates/ with the answers.
~~~`

	manifest := lipgloss.JoinVertical(lipgloss.Left,
		sectionStyle.Render("GENERATOR.md Format:"),
		"  A GENERATOR.md file starts with YAML frontmatter naming its questions:",
		"",
		renderMarkdown(manifestExample),
	)

	help := lipgloss.JoinVertical(lipgloss.Left,
		title,
		usage,
		description,
		options,
		examples,
		manifest,
	)

	_, _ = fmt.Fprintln(w, help)
}
