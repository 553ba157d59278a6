package worker

import (
	"context"

	"github.com/martinemde/genwiz/internal/generator"
	"github.com/martinemde/genwiz/internal/protocol"
	"go.uber.org/zap"
)

// Channel is the worker's endpoint of the message channel.
type Channel interface {
	Sender
	ReadLoop(handler func(protocol.Message))
	Done() <-chan struct{}
	Close() error
}

// Serve runs one worker session over ch: it dispatches host replies, selects
// and runs a generator, then closes ch. Pending prompts fail with
// ErrChannelClosed if the host side goes away first. The read loop is not
// awaited; it ends when the host closes its side.
func Serve(ctx context.Context, ch Channel, engine generator.Engine, logger *zap.Logger) error {
	rt := New(ch, engine, logger)

	go ch.ReadLoop(rt.HandleMessage)

	finished := make(chan struct{})
	go func() {
		select {
		case <-ch.Done():
			rt.Close()
		case <-finished:
		}
	}()

	err := rt.SelectAndRun(ctx)
	close(finished)

	rt.Close()
	if cerr := ch.Close(); cerr != nil {
		rt.logger.Debug("closing channel", zap.Error(cerr))
	}
	return err
}
