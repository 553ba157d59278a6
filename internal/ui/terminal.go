// Package ui renders a wizard session on the terminal and collects answers
// with interactive forms.
package ui

import (
	"context"
	"fmt"
	"io"
	"os"
	"reflect"
	"sync"

	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"github.com/martinemde/genwiz/internal/protocol"
)

var (
	successIcon = lipgloss.NewStyle().Foreground(lipgloss.Color("2")).SetString("✓")
	errorIcon   = lipgloss.NewStyle().Foreground(lipgloss.Color("1")).SetString("✗")
	dimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))

	createStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("2")).Bold(true)
	conflictStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("1")).Bold(true)
	warnStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("3"))
	infoStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("6"))
)

// prefixStyles colours the tags a generator logs with.
var prefixStyles = map[string]lipgloss.Style{
	"[CREATE]":    createStyle,
	"[FORCE]":     createStyle,
	"[OK]":        createStyle,
	"[CONFLICT]":  conflictStyle,
	"[ERROR]":     conflictStyle,
	"[SKIP]":      dimStyle,
	"[IDENTICAL]": dimStyle,
	"[WARN]":      warnStyle,
	"[INFO]":      infoStyle,
	"[INVOKE]":    infoStyle,
}

// Terminal writes session output and runs prompts. One form is open at a
// time; lines printed while it is open are held back and written once it
// closes, so output never blocks on the user and never tears a form.
type Terminal struct {
	mu      sync.Mutex // guards out, holding and held
	holding bool
	held    []string

	formMu     sync.Mutex
	out        io.Writer
	in         io.Reader
	accessible bool
}

// Option configures a Terminal.
type Option func(*Terminal)

// WithInput reads form input from r instead of stdin.
func WithInput(r io.Reader) Option {
	return func(t *Terminal) { t.in = r }
}

// WithAccessible runs forms in huh's line-based accessible mode.
func WithAccessible(on bool) Option {
	return func(t *Terminal) { t.accessible = on }
}

// NewTerminal creates a Terminal writing to out.
func NewTerminal(out io.Writer, opts ...Option) *Terminal {
	if out == nil {
		out = os.Stdout
	}
	t := &Terminal{out: out}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Output prints one log line. The prefix, when present, is styled by tag.
func (t *Terminal) Output(prefix, message string) {
	t.println(FormatOutput(prefix, message))
}

// Info prints a success notification.
func (t *Terminal) Info(message string) {
	t.println(successIcon.String() + " " + message)
}

// Error prints an error notification.
func (t *Terminal) Error(message string) {
	t.println(errorIcon.String() + " " + message)
}

func (t *Terminal) println(line string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.holding {
		t.held = append(t.held, line)
		return
	}
	_, _ = fmt.Fprintln(t.out, line)
}

// hold diverts printed lines until the returned release is called.
func (t *Terminal) hold() (release func()) {
	t.mu.Lock()
	t.holding = true
	t.mu.Unlock()

	return func() {
		t.mu.Lock()
		defer t.mu.Unlock()
		for _, line := range t.held {
			_, _ = fmt.Fprintln(t.out, line)
		}
		t.held = nil
		t.holding = false
	}
}

// FormatOutput renders a log line without printing it.
func FormatOutput(prefix, message string) string {
	if prefix == "" {
		return message
	}
	if style, ok := prefixStyles[prefix]; ok {
		prefix = style.Render(prefix)
	}
	return prefix + " " + message
}

// Choose shows q as a select list and returns the chosen index. answered
// is false when the user aborted or ctx ended.
func (t *Terminal) Choose(ctx context.Context, q *protocol.Choice) (int, bool) {
	if ctx.Err() != nil || len(q.Choices) == 0 {
		return 0, false
	}

	index := defaultIndex(q)
	field := huh.NewSelect[int]().
		Title(q.Message).
		Options(choiceOptions(q)...).
		Value(&index)

	if err := t.run(ctx, field); err != nil {
		return 0, false
	}
	return index, true
}

// Input shows q as a text field prefilled with its effective default.
func (t *Terminal) Input(ctx context.Context, q *protocol.FreeText) (string, bool) {
	if ctx.Err() != nil {
		return "", false
	}

	text := q.DefaultText()
	field := huh.NewInput().
		Title(q.Message).
		Placeholder(q.PlaceholderText()).
		Value(&text)

	if err := t.run(ctx, field); err != nil {
		return "", false
	}
	return text, true
}

func (t *Terminal) run(ctx context.Context, field huh.Field) error {
	t.formMu.Lock()
	defer t.formMu.Unlock()
	release := t.hold()
	defer release()

	form := huh.NewForm(huh.NewGroup(field)).
		WithOutput(t.out).
		WithAccessible(t.accessible).
		WithShowHelp(!t.accessible)
	if t.in != nil {
		form = form.WithInput(t.in)
	}

	// huh.ErrUserAborted and context errors both mean no answer.
	return form.RunWithContext(ctx)
}

// choiceOptions labels each option with its name and a dimmed detail.
func choiceOptions(q *protocol.Choice) []huh.Option[int] {
	options := make([]huh.Option[int], len(q.Choices))
	for i, c := range q.Choices {
		label := c.Name
		if c.Detail != "" {
			label += " " + dimStyle.Render(c.Detail)
		}
		options[i] = huh.NewOption(label, i)
	}
	return options
}

// defaultIndex finds the option whose value matches q.Default.
func defaultIndex(q *protocol.Choice) int {
	if q.Default == nil {
		return 0
	}
	for i, c := range q.Choices {
		v := c.Value
		if v == nil {
			v = c.Name
		}
		if reflect.DeepEqual(v, q.Default) {
			return i
		}
	}
	return 0
}
