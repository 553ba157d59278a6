package worker

import "errors"

var (
	// ErrNoGenerators means discovery found nothing to run.
	ErrNoGenerators = errors.New("worker: no generators installed")

	// ErrNoSelection means the selection prompt came back without a known
	// generator.
	ErrNoSelection = errors.New("worker: no generator selected")

	// ErrGeneratorRun wraps an error reported by the generator engine.
	ErrGeneratorRun = errors.New("worker: generator run failed")

	// ErrChannelClosed is returned for prompts that can no longer be
	// answered because the channel to the host is gone.
	ErrChannelClosed = errors.New("worker: channel to host closed")
)

// User-facing notification texts.
const (
	msgNoGenerators = "Unable to launch a wizard as no generators are installed."
	msgNoSelection  = "No generator selected. Aborting."
	msgCompleted    = "Generator successfully ended."
)
