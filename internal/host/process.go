package host

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/martinemde/genwiz/internal/channel"
	"github.com/martinemde/genwiz/internal/protocol"
	"go.uber.org/zap"
)

// Output prefixes for lines the worker writes to its standard streams.
const (
	StdoutPrefix = "[INFO]"
	StderrPrefix = "[WARN]"
)

// maxStreamLine bounds one rendered stdout or stderr line; longer lines are
// cut and marked with truncatedSuffix.
const (
	maxStreamLine   = 64 * 1024
	truncatedSuffix = " [truncated]"
)

// Worker channel descriptors as seen by the child: ExtraFiles start at 3.
const (
	childReadFD  = 3
	childWriteFD = 4
)

// workerProcess is one spawned worker and the goroutines serving it.
type workerProcess struct {
	id     string
	root   string
	cmd    *exec.Cmd
	conn   *channel.Conn
	logger *zap.Logger

	// ctx is canceled once the worker is gone; prompts in flight observe it.
	ctx    context.Context
	cancel context.CancelFunc

	prompts  sync.WaitGroup
	streams  sync.WaitGroup
	stopping atomic.Bool
	done     chan struct{}
	err      error
}

// spawn starts a worker in root with the channel on inherited descriptors.
// handle receives every decoded message from the worker; output receives
// every line the worker writes to stdout or stderr.
func spawn(cfg Config, root string, logger *zap.Logger, handle func(*workerProcess, protocol.Message), output func(prefix, line string)) (*workerProcess, error) {
	// Two pipes: host→worker and worker→host.
	workerIn, hostOut, err := os.Pipe()
	if err != nil {
		return nil, fmt.Errorf("create channel pipe: %w", err)
	}
	hostIn, workerOut, err := os.Pipe()
	if err != nil {
		_ = workerIn.Close()
		_ = hostOut.Close()
		return nil, fmt.Errorf("create channel pipe: %w", err)
	}
	closeChildEnds := func() {
		_ = workerIn.Close()
		_ = workerOut.Close()
	}

	cmd := exec.Command(cfg.Executable, cfg.Args...)
	cmd.Dir = root
	cmd.ExtraFiles = []*os.File{workerIn, workerOut}
	cmd.Env = append(os.Environ(), cfg.Env...)
	cmd.Env = append(cmd.Env, protocol.ChannelEnvVar+"="+channel.FormatFDs(childReadFD, childWriteFD))

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		closeChildEnds()
		_ = hostIn.Close()
		_ = hostOut.Close()
		return nil, fmt.Errorf("stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		closeChildEnds()
		_ = hostIn.Close()
		_ = hostOut.Close()
		return nil, fmt.Errorf("stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		closeChildEnds()
		_ = hostIn.Close()
		_ = hostOut.Close()
		return nil, fmt.Errorf("start worker %s: %w", cfg.Executable, err)
	}
	// The child holds its own copies now.
	closeChildEnds()

	id := uuid.NewString()
	ctx, cancel := context.WithCancel(context.Background())
	w := &workerProcess{
		id:     id,
		root:   root,
		cmd:    cmd,
		logger: logger.With(zap.String("session", id), zap.Int("pid", cmd.Process.Pid)),
		ctx:    ctx,
		cancel: cancel,
		done:   make(chan struct{}),
	}
	w.conn = channel.New(hostIn, hostOut,
		channel.WithClosers(hostOut, hostIn),
		channel.WithParseErrorHandler(func(line []byte, err error) {
			w.logger.Warn("ignoring malformed message", zap.ByteString("line", line), zap.Error(err))
		}),
	)

	w.streams.Add(2)
	go w.scan(stdout, StdoutPrefix, output)
	go w.scan(stderr, StderrPrefix, output)
	go w.conn.ReadLoop(func(msg protocol.Message) { handle(w, msg) })
	go w.reap()

	// Nothing can answer a prompt once the channel is gone, so open forms
	// are dismissed without waiting for the process and its streams.
	go func() {
		<-w.conn.Done()
		w.cancel()
	}()

	w.logger.Info("worker started", zap.String("root", root))
	return w, nil
}

// scan forwards each line of r to output with prefix. It reads until EOF so
// the worker never blocks on a full pipe.
func (w *workerProcess) scan(r io.Reader, prefix string, output func(prefix, line string)) {
	defer w.streams.Done()
	br := bufio.NewReaderSize(r, 64*1024)
	for {
		line, truncated, err := channel.ReadLine(br, maxStreamLine)
		if truncated {
			output(prefix, string(line)+truncatedSuffix)
		} else if err == nil || len(line) > 0 {
			output(prefix, string(line))
		}
		if err != nil {
			if !errors.Is(err, io.EOF) {
				w.logger.Debug("stream read failed", zap.String("prefix", prefix), zap.Error(err))
				_, _ = io.Copy(io.Discard, r)
			}
			return
		}
	}
}

// reap waits for the process and its channel, then marks the worker done.
// The stream readers must drain before cmd.Wait closes their pipes.
func (w *workerProcess) reap() {
	w.streams.Wait()
	err := w.cmd.Wait()
	w.cancel()

	<-w.conn.Done()
	w.prompts.Wait()
	_ = w.conn.Close()

	if w.stopping.Load() {
		err = nil
	}
	w.err = err
	if err != nil {
		w.logger.Warn("worker exited", zap.Error(err))
	} else {
		w.logger.Info("worker exited")
	}
	close(w.done)
}

// terminate stops the worker and waits until it has been reaped. With a
// positive grace period the worker first gets SIGTERM.
func (w *workerProcess) terminate(grace time.Duration) {
	w.stopping.Store(true)
	w.cancel()

	if grace > 0 {
		_ = signalProcess(w.cmd.Process, syscall.SIGTERM)
		select {
		case <-w.done:
			return
		case <-time.After(grace):
		}
	}
	_ = signalProcess(w.cmd.Process, os.Kill)
	<-w.done
}

// exited reports whether the worker has been reaped.
func (w *workerProcess) exited() bool {
	select {
	case <-w.done:
		return true
	default:
		return false
	}
}

// signalProcess sends sig, treating an already finished process as success.
func signalProcess(proc *os.Process, sig os.Signal) error {
	err := proc.Signal(sig)
	if errors.Is(err, os.ErrProcessDone) {
		return nil
	}
	return err
}
