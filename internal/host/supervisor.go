// Package host owns the terminal side of a wizard session: it spawns the
// worker process, renders what the worker sends, and answers its prompts.
package host

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/martinemde/genwiz/internal/protocol"
	"go.uber.org/zap"
)

// ErrNoWorkspaceOpen is returned by StartSession when no workspace root is given.
var ErrNoWorkspaceOpen = errors.New("host: no workspace open")

const msgNoWorkspace = "No workspace opened, Need to open a workspace first"

// DefaultWorkerArgs are passed to the worker executable when Config.Args is nil.
var DefaultWorkerArgs = []string{"worker"}

// UI renders worker output and collects answers. Choose and Input report
// answered=false when the user dismissed the question or ctx ended.
type UI interface {
	Output(prefix, message string)
	Info(message string)
	Error(message string)
	Choose(ctx context.Context, q *protocol.Choice) (index int, answered bool)
	Input(ctx context.Context, q *protocol.FreeText) (text string, answered bool)
}

// Config controls how workers are launched.
type Config struct {
	Executable  string        // empty means the running binary
	Args        []string      // nil means DefaultWorkerArgs
	Env         []string      // appended to the host environment
	GracePeriod time.Duration // SIGTERM grace before SIGKILL; zero kills at once
}

// Supervisor runs at most one worker at a time.
type Supervisor struct {
	cfg    Config
	ui     UI
	logger *zap.Logger

	mu      sync.Mutex // guards current
	current *workerProcess

	promptMu sync.Mutex // one interactive prompt at a time
}

// New creates a Supervisor. A nil logger disables logging.
func New(cfg Config, ui UI, logger *zap.Logger) (*Supervisor, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Executable == "" {
		exe, err := os.Executable()
		if err != nil {
			return nil, fmt.Errorf("locate worker executable: %w", err)
		}
		cfg.Executable = exe
	}
	if cfg.Args == nil {
		cfg.Args = DefaultWorkerArgs
	}
	return &Supervisor{cfg: cfg, ui: ui, logger: logger}, nil
}

// StartSession spawns a worker in workspaceRoot, first terminating any
// worker that is still running and waiting for it to be reaped.
func (s *Supervisor) StartSession(_ context.Context, workspaceRoot string) error {
	if workspaceRoot == "" {
		s.ui.Error(msgNoWorkspace)
		return ErrNoWorkspaceOpen
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// At most one live worker: the old one is reaped before the new one starts.
	s.stopLocked()

	w, err := spawn(s.cfg, workspaceRoot, s.logger, s.handle, s.ui.Output)
	if err != nil {
		return err
	}
	s.current = w
	return nil
}

// DestroySession kills the running worker, if any, and waits for it to be
// reaped. Calling it with no worker is a no-op.
func (s *Supervisor) DestroySession() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopLocked()
}

func (s *Supervisor) stopLocked() {
	if s.current == nil {
		return
	}
	s.current.logger.Debug("terminating worker")
	s.current.terminate(s.cfg.GracePeriod)
	s.current = nil
}

// Wait blocks until the current worker exits or ctx is done. It returns the
// worker's exit error; a worker stopped by the supervisor reports nil.
func (s *Supervisor) Wait(ctx context.Context) error {
	s.mu.Lock()
	w := s.current
	s.mu.Unlock()

	if w == nil {
		return nil
	}
	select {
	case <-w.done:
		return w.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// HandleMessage applies msg as if the current worker had sent it.
func (s *Supervisor) HandleMessage(msg protocol.Message) {
	s.mu.Lock()
	w := s.current
	s.mu.Unlock()

	if w == nil {
		s.logger.Debug("no worker for message", zap.String("action", string(msg.Action)))
		return
	}
	s.handle(w, msg)
}

// handle dispatches one message from w. It runs on w's read loop, so
// prompts are answered on their own goroutine.
func (s *Supervisor) handle(w *workerProcess, msg protocol.Message) {
	switch msg.Action {
	case protocol.ActionOutput:
		s.ui.Output(msg.Prefix, msg.Text)
	case protocol.ActionInformation:
		s.ui.Info(msg.Text)
	case protocol.ActionError:
		s.ui.Error(msg.Text)
	case protocol.ActionPrompt:
		w.prompts.Add(1)
		go func() {
			defer w.prompts.Done()
			s.answer(w, msg)
		}()
	case protocol.ActionReply:
		w.logger.Debug("ignoring reply sent to the host", zap.Int("promiseId", msg.PromiseID))
	default:
		if !msg.Action.Known() {
			w.logger.Warn("ignoring unknown action", zap.String("action", string(msg.Action)))
		}
	}
}

// answer shows msg's question and replies to w with the same promise id.
func (s *Supervisor) answer(w *workerProcess, msg protocol.Message) {
	s.promptMu.Lock()
	defer s.promptMu.Unlock()

	// The worker may have gone away while this prompt waited its turn.
	if w.ctx.Err() != nil {
		w.logger.Debug("dropping prompt for stopped worker", zap.Int("promiseId", msg.PromiseID))
		return
	}

	var reply protocol.Reply
	switch q := msg.Question.(type) {
	case *protocol.Choice:
		index, ok := s.ui.Choose(w.ctx, q)
		reply = q.Resolve(index, ok)
	case *protocol.FreeText:
		text, ok := s.ui.Input(w.ctx, q)
		reply = q.Resolve(text, ok)
	default:
		w.logger.Warn("prompt without a question", zap.Int("promiseId", msg.PromiseID))
		return
	}

	if err := w.conn.Send(protocol.NewReply(msg.PromiseID, reply)); err != nil {
		w.logger.Debug("reply not delivered", zap.Int("promiseId", msg.PromiseID), zap.Error(err))
	}
}
