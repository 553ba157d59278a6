// Package generator discovers and runs template generators. The worker only
// sees it through the Engine interface; generators only see the worker
// through Adapter.
package generator

import (
	"context"
	"errors"

	"github.com/martinemde/genwiz/internal/protocol"
)

// ErrNotFound is returned by Run for a name Lookup did not report.
var ErrNotFound = errors.New("generator: not found")

// Meta describes a discovered generator.
type Meta struct {
	// Name is the selection key.
	Name string
	// Resolved is a human-readable location, for display only.
	Resolved string
}

// Logger is the fixed set of log levels a generator writes through. Every
// method forwards a tag and the text to a single output sink.
type Logger interface {
	Write(text string)
	Writeln(text string)
	Skip(text string)
	Force(text string)
	Create(text string)
	Invoke(text string)
	Conflict(text string)
	Identical(text string)
	Info(text string)
	Ok(text string)
	Error(text string)
}

// Adapter is what a running generator may call back into.
type Adapter interface {
	// Prompt asks one question and blocks until it is answered.
	Prompt(ctx context.Context, q protocol.Question) (protocol.Reply, error)
	// Log returns the generator's logger.
	Log() Logger
}

// Engine finds and runs generators.
type Engine interface {
	Lookup(ctx context.Context) (map[string]Meta, error)
	Run(ctx context.Context, name string, adapter Adapter) error
}
