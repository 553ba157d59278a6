package ui

import (
	"fmt"
	"os"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

// Colour modes accepted by --color.
const (
	ColorAuto   = "auto"
	ColorAlways = "always"
	ColorNever  = "never"
)

// ValidateColorMode rejects anything but auto, always and never.
func ValidateColorMode(mode string) error {
	switch mode {
	case ColorAuto, ColorAlways, ColorNever:
		return nil
	}
	return fmt.Errorf("invalid color mode %q (want auto, always or never)", mode)
}

// ShouldUseColors reports whether output to f should be coloured.
func ShouldUseColors(mode string, f *os.File) bool {
	switch mode {
	case ColorAlways:
		return true
	case ColorNever:
		return false
	default:
		out := termenv.NewOutput(f)
		if out.EnvNoColor() {
			return false
		}
		return out.Profile != termenv.Ascii
	}
}

// ConfigureColorProfile sets the global lipgloss profile for mode. Call it
// before rendering anything. In auto mode lipgloss keeps its own detection.
func ConfigureColorProfile(mode string) {
	switch mode {
	case ColorAlways:
		lipgloss.SetColorProfile(termenv.TrueColor)
	case ColorNever:
		lipgloss.SetColorProfile(termenv.Ascii)
	}
}

// NewMarkdownRenderer returns a glamour renderer for mode, or nil when
// markdown should be printed as plain text.
func NewMarkdownRenderer(mode string) *glamour.TermRenderer {
	opts := []glamour.TermRendererOption{glamour.WithWordWrap(0)}
	switch mode {
	case ColorNever:
		return nil
	case ColorAlways:
		opts = append(opts, glamour.WithAutoStyle(), glamour.WithColorProfile(termenv.TrueColor))
	default:
		opts = append(opts, glamour.WithAutoStyle())
	}

	r, err := glamour.NewTermRenderer(opts...)
	if err != nil {
		return nil
	}
	return r
}

// RenderMarkdown renders md with r, falling back to the source text.
func RenderMarkdown(r *glamour.TermRenderer, md string) string {
	if r == nil {
		return md
	}
	out, err := r.Render(md)
	if err != nil {
		return md
	}
	return out
}
