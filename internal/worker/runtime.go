// Package worker runs inside the spawned process. It selects and runs a
// generator and turns the generator's prompts and logs into messages for the
// host, blocking each prompt until the host's matching reply arrives.
package worker

import (
	"context"
	"fmt"
	"sort"

	"github.com/martinemde/genwiz/internal/generator"
	"github.com/martinemde/genwiz/internal/protocol"
	"go.uber.org/zap"
)

// Sender delivers a message to the host without waiting for it to be acted on.
type Sender interface {
	Send(msg protocol.Message) error
}

// Runtime is the worker side of a session.
type Runtime struct {
	sender  Sender
	engine  generator.Engine
	logger  *zap.Logger
	pending *pendingTable
}

var _ generator.Adapter = (*Runtime)(nil)

// New creates a Runtime sending through sender and running generators from
// engine. A nil logger disables logging.
func New(sender Sender, engine generator.Engine, logger *zap.Logger) *Runtime {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runtime{
		sender:  sender,
		engine:  engine,
		logger:  logger,
		pending: newPendingTable(),
	}
}

// DiscoverGenerators lists the generators the engine can run.
func (r *Runtime) DiscoverGenerators(ctx context.Context) (map[string]generator.Meta, error) {
	return r.engine.Lookup(ctx)
}

// SelectAndRun picks a generator and runs it. With no generators it reports
// an error and runs nothing; with one it runs it directly; with several it
// asks the host which one to run.
func (r *Runtime) SelectAndRun(ctx context.Context) error {
	metas, err := r.DiscoverGenerators(ctx)
	if err != nil {
		r.Error(fmt.Sprintf("Unable to look up generators: %v", err))
		return fmt.Errorf("lookup generators: %w", err)
	}

	switch len(metas) {
	case 0:
		r.Error(msgNoGenerators)
		return ErrNoGenerators
	case 1:
		// Nothing to choose; skip the prompt.
		for name := range metas {
			return r.run(ctx, name)
		}
	}

	name, err := r.selectGenerator(ctx, metas)
	if err != nil {
		return err
	}
	return r.run(ctx, name)
}

// selectGenerator asks the host to choose among metas.
func (r *Runtime) selectGenerator(ctx context.Context, metas map[string]generator.Meta) (string, error) {
	names := make([]string, 0, len(metas))
	for name := range metas {
		names = append(names, name)
	}
	sort.Strings(names)

	q := &protocol.Choice{
		Name:    "generator",
		Message: "Select generator",
		Choices: make([]protocol.Option, len(names)),
	}
	for i, name := range names {
		q.Choices[i] = protocol.Option{Name: name, Value: name, Detail: metas[name].Resolved}
	}

	reply, err := r.Prompt(ctx, q)
	if err != nil {
		return "", err
	}

	// A dismissed prompt replies with no value for the question.
	name, _ := reply[q.Name].(string)
	if _, ok := metas[name]; !ok {
		r.Error(msgNoSelection)
		return "", ErrNoSelection
	}
	return name, nil
}

// run executes one generator. The completion notice is sent after an engine
// error as well, following the error message, so the host always sees the
// session finish.
func (r *Runtime) run(ctx context.Context, name string) error {
	r.logger.Debug("running generator", zap.String("generator", name))

	err := r.engine.Run(ctx, name, r)
	if err != nil {
		r.Error(err.Error())
	}
	r.Info(msgCompleted)

	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrGeneratorRun, name, err)
	}
	return nil
}

// Prompt sends q to the host and blocks until the reply with the same
// correlation id arrives, ctx is done, or the channel is lost.
func (r *Runtime) Prompt(ctx context.Context, q protocol.Question) (protocol.Reply, error) {
	id, handle, err := r.pending.register()
	if err != nil {
		return nil, err
	}

	if err := r.sender.Send(protocol.NewPrompt(id, q)); err != nil {
		r.pending.remove(id)
		return nil, fmt.Errorf("send prompt %d: %w", id, err)
	}
	r.logger.Debug("prompt sent", zap.Int("promiseId", id), zap.String("question", q.QuestionName()))

	select {
	case reply, ok := <-handle:
		if !ok {
			return nil, ErrChannelClosed
		}
		return reply, nil
	case <-ctx.Done():
		r.pending.remove(id)
		// A reply may have landed just before cancellation.
		select {
		case reply, ok := <-handle:
			if ok {
				return reply, nil
			}
		default:
		}
		return nil, ctx.Err()
	}
}

// Log returns the generator-facing logger.
func (r *Runtime) Log() generator.Logger {
	return outputLogger{rt: r}
}

// Output sends a log line to the host.
func (r *Runtime) Output(prefix, message string) {
	r.send(protocol.NewOutput(prefix, message))
}

// Info sends an information notification to the host.
func (r *Runtime) Info(message string) {
	r.send(protocol.NewInformation(message))
}

// Error sends an error notification to the host.
func (r *Runtime) Error(message string) {
	r.send(protocol.NewError(message))
}

// send is fire-and-forget: failures are logged locally and dropped.
func (r *Runtime) send(msg protocol.Message) {
	if err := r.sender.Send(msg); err != nil {
		r.logger.Debug("dropping message", zap.String("action", string(msg.Action)), zap.Error(err))
	}
}

// HandleMessage dispatches one message from the host. Only replies are
// recognized; a reply whose id has no pending prompt is discarded.
func (r *Runtime) HandleMessage(msg protocol.Message) {
	switch msg.Action {
	case protocol.ActionReply:
		if !r.pending.resolve(msg.PromiseID, msg.Replies) {
			r.logger.Debug("discarding unmatched reply", zap.Int("promiseId", msg.PromiseID))
		}
	default:
		if msg.Action.Known() {
			r.logger.Debug("ignoring message", zap.String("action", string(msg.Action)))
		} else {
			r.logger.Warn("ignoring unknown action", zap.String("action", string(msg.Action)))
		}
	}
}

// Close releases every pending prompt with ErrChannelClosed and refuses new
// ones. Call it when the channel to the host ends.
func (r *Runtime) Close() {
	r.pending.close()
}
