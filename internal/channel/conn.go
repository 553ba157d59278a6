// Package channel carries protocol messages between the host and a worker
// as newline-delimited JSON over a pair of pipes.
package channel

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/martinemde/genwiz/internal/protocol"
)

// maxMessageSize bounds a single line on the channel.
const maxMessageSize = 1024 * 1024

var (
	// ErrClosed is returned by Send after Close.
	ErrClosed = errors.New("channel: closed")
	// ErrTooLarge marks a message longer than the channel accepts.
	ErrTooLarge = errors.New("channel: message too large")
)

// Conn is one endpoint of the message channel.
//
// Send may be called from any goroutine; writes are serialized. ReadLoop must
// be called exactly once and delivers messages to its handler in order.
type Conn struct {
	mu     sync.Mutex
	w      io.Writer
	closed bool

	r       *bufio.Reader
	closers []io.Closer

	onParseError func(line []byte, err error)

	done    chan struct{}
	readErr atomic.Value
}

// Option configures a Conn.
type Option func(*Conn)

// WithParseErrorHandler registers a hook for inbound lines that fail to
// decode. Such lines are otherwise skipped.
func WithParseErrorHandler(h func(line []byte, err error)) Option {
	return func(c *Conn) { c.onParseError = h }
}

// WithClosers registers resources released by Close.
func WithClosers(closers ...io.Closer) Option {
	return func(c *Conn) { c.closers = append(c.closers, closers...) }
}

// New creates a Conn reading messages from r and writing them to w.
func New(r io.Reader, w io.Writer, opts ...Option) *Conn {
	c := &Conn{
		w:    w,
		r:    bufio.NewReaderSize(r, 64*1024),
		done: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// FromEnv opens the worker's endpoint from the inherited file descriptors
// named by protocol.ChannelEnvVar.
func FromEnv(opts ...Option) (*Conn, error) {
	spec := os.Getenv(protocol.ChannelEnvVar)
	if spec == "" {
		return nil, fmt.Errorf("channel: %s not set; the worker must be started by the host", protocol.ChannelEnvVar)
	}

	readFD, writeFD, err := parseFDs(spec)
	if err != nil {
		return nil, err
	}

	r := os.NewFile(uintptr(readFD), "genwiz-channel-in")
	w := os.NewFile(uintptr(writeFD), "genwiz-channel-out")
	if r == nil || w == nil {
		return nil, fmt.Errorf("channel: invalid file descriptors %q", spec)
	}

	opts = append(opts, WithClosers(w, r))
	return New(r, w, opts...), nil
}

// FormatFDs renders the value of protocol.ChannelEnvVar for a child process.
func FormatFDs(readFD, writeFD int) string {
	return strconv.Itoa(readFD) + "," + strconv.Itoa(writeFD)
}

func parseFDs(spec string) (int, int, error) {
	parts := strings.Split(spec, ",")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("channel: malformed %s value %q", protocol.ChannelEnvVar, spec)
	}
	readFD, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil {
		return 0, 0, fmt.Errorf("channel: malformed read fd: %w", err)
	}
	writeFD, err := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil {
		return 0, 0, fmt.Errorf("channel: malformed write fd: %w", err)
	}
	return readFD, writeFD, nil
}

// Send writes msg as one line. It does not wait for the peer to act on it.
// Messages the peer would have to drop are refused with ErrTooLarge.
func (c *Conn) Send(msg protocol.Message) error {
	data, err := protocol.Encode(msg)
	if err != nil {
		return err
	}
	if len(data) > maxMessageSize {
		return fmt.Errorf("%w: %s of %d bytes", ErrTooLarge, msg.Action, len(data))
	}
	data = append(data, '\n')

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	if _, err := c.w.Write(data); err != nil {
		return fmt.Errorf("channel: send %s: %w", msg.Action, err)
	}
	return nil
}

// ReadLoop decodes inbound messages and passes each to handler until the
// reader is exhausted. Blank lines are skipped; undecodable or oversized
// lines go to the parse error hook and reading continues. Done is closed when
// ReadLoop returns.
func (c *Conn) ReadLoop(handler func(protocol.Message)) {
	defer close(c.done)

	for {
		line, truncated, err := ReadLine(c.r, maxMessageSize)
		switch {
		case truncated:
			c.parseError(line, fmt.Errorf("%w: %w: longer than %d bytes", protocol.ErrMalformed, ErrTooLarge, maxMessageSize))
		case len(bytes.TrimSpace(line)) > 0:
			msg, decodeErr := protocol.Decode(line)
			if decodeErr != nil {
				c.parseError(line, decodeErr)
				break
			}
			handler(msg)
		}

		if err != nil {
			if !errors.Is(err, io.EOF) {
				c.readErr.Store(err)
			}
			return
		}
	}
}

func (c *Conn) parseError(line []byte, err error) {
	if c.onParseError != nil {
		c.onParseError(append([]byte(nil), line...), err)
	}
}

// Done returns a channel closed when ReadLoop exits.
func (c *Conn) Done() <-chan struct{} {
	return c.done
}

// Err returns the error that ended ReadLoop, or nil for a clean EOF.
func (c *Conn) Err() error {
	if v := c.readErr.Load(); v != nil {
		return v.(error)
	}
	return nil
}

// Close stops further sends and releases registered closers. Closing the
// read side unblocks ReadLoop.
func (c *Conn) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()

	var errs []error
	for _, closer := range c.closers {
		if err := closer.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
