package host

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/martinemde/genwiz/internal/channel"
	"github.com/martinemde/genwiz/internal/protocol"
	"github.com/martinemde/genwiz/internal/ui"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const helperEnv = "GENWIZ_HELPER_PROCESS"

// TestMain doubles as a fake worker when the test binary is re-executed
// with helperEnv set.
func TestMain(m *testing.M) {
	if mode := os.Getenv(helperEnv); mode != "" {
		os.Exit(runHelper(mode))
	}
	os.Exit(m.Run())
}

func runHelper(mode string) int {
	conn, err := channel.FromEnv()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 2
	}
	replies := make(chan protocol.Message, 1)
	go conn.ReadLoop(func(m protocol.Message) {
		if m.Action == protocol.ActionReply {
			replies <- m
		}
	})
	defer conn.Close()

	switch mode {
	case "hello":
		fmt.Println("plain stdout")
		fmt.Fprintln(os.Stderr, "plain stderr")
		_ = conn.Send(protocol.NewOutput("[CREATE]", "a.txt"))
		_ = conn.Send(protocol.NewError("something off"))
		_ = conn.Send(protocol.NewInformation("Generator successfully ended."))
	case "pwd":
		wd, _ := os.Getwd()
		_ = conn.Send(protocol.NewInformation(wd))
	case "prompt":
		_ = conn.Send(protocol.NewPrompt(1, &protocol.Choice{
			Name:    "generator",
			Message: "Select generator",
			Choices: []protocol.Option{{Name: "app"}, {Name: "router"}},
		}))
		r := <-replies
		_ = conn.Send(protocol.NewPrompt(2, &protocol.FreeText{Name: "name", Message: "Name?", Default: true}))
		r2 := <-replies
		_ = conn.Send(protocol.NewInformation(fmt.Sprintf("%d=%v %d=%v", r.PromiseID, r.Replies["generator"], r2.PromiseID, r2.Replies["name"])))
	case "block":
		_ = conn.Send(protocol.NewInformation("ready"))
		time.Sleep(time.Minute)
	case "block-prompt":
		_ = conn.Send(protocol.NewPrompt(1, &protocol.FreeText{Name: "name"}))
		time.Sleep(time.Minute)
	case "crash-prompt":
		_ = conn.Send(protocol.NewPrompt(1, &protocol.FreeText{Name: "name", Message: "Service name"}))
		time.Sleep(200 * time.Millisecond)
		fmt.Fprintln(os.Stderr, "panic: worker crashed")
		return 2
	case "long-line":
		fmt.Println(strings.Repeat("x", 100*1024))
		for i := range 2000 {
			fmt.Printf("line %d\n", i)
		}
		_ = conn.Send(protocol.NewInformation("done"))
	case "fail":
		return 3
	}
	return 0
}

// fakeUI records what the supervisor renders and answers prompts from a
// script. Prompts block until answered or ctx ends when block is set.
type fakeUI struct {
	mu     sync.Mutex
	lines  []string
	choice int
	text   string
	block  bool
	asked  chan string
}

func newFakeUI() *fakeUI { return &fakeUI{asked: make(chan string, 8)} }

func (u *fakeUI) record(line string) {
	u.mu.Lock()
	u.lines = append(u.lines, line)
	u.mu.Unlock()
}

func (u *fakeUI) Output(prefix, message string) { u.record(prefix + " " + message) }
func (u *fakeUI) Info(message string)           { u.record("info: " + message) }
func (u *fakeUI) Error(message string)          { u.record("error: " + message) }

func (u *fakeUI) Choose(ctx context.Context, q *protocol.Choice) (int, bool) {
	u.asked <- q.Name
	if u.block {
		<-ctx.Done()
		return 0, false
	}
	return u.choice, true
}

func (u *fakeUI) Input(ctx context.Context, q *protocol.FreeText) (string, bool) {
	u.asked <- q.Name
	if u.block {
		<-ctx.Done()
		return "", false
	}
	return u.text, u.text != ""
}

func (u *fakeUI) snapshot() []string {
	u.mu.Lock()
	defer u.mu.Unlock()
	return append([]string(nil), u.lines...)
}

func (u *fakeUI) waitFor(t *testing.T, line string) {
	t.Helper()
	require.Eventually(t, func() bool {
		for _, l := range u.snapshot() {
			if l == line {
				return true
			}
		}
		return false
	}, 5*time.Second, 10*time.Millisecond, "never saw %q in %v", line, u.snapshot())
}

func newHelperSupervisor(t *testing.T, mode string, ui UI) *Supervisor {
	t.Helper()
	s, err := New(Config{
		Executable: os.Args[0],
		Args:       []string{"-test.run=^$"},
		Env:        []string{helperEnv + "=" + mode},
	}, ui, nil)
	require.NoError(t, err)
	t.Cleanup(s.DestroySession)
	return s
}

func waitSession(t *testing.T, s *Supervisor) error {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return s.Wait(ctx)
}

func TestStartSession_NoWorkspace(t *testing.T) {
	ui := newFakeUI()
	s := newHelperSupervisor(t, "hello", ui)

	err := s.StartSession(context.Background(), "")
	assert.ErrorIs(t, err, ErrNoWorkspaceOpen)
	assert.Equal(t, []string{"error: " + msgNoWorkspace}, ui.snapshot())
	assert.Nil(t, s.current)
}

func TestStartSession_RendersWorkerTraffic(t *testing.T) {
	ui := newFakeUI()
	s := newHelperSupervisor(t, "hello", ui)

	require.NoError(t, s.StartSession(context.Background(), t.TempDir()))
	require.NoError(t, waitSession(t, s))

	lines := ui.snapshot()
	assert.Contains(t, lines, "[CREATE] a.txt")
	assert.Contains(t, lines, "error: something off")
	assert.Contains(t, lines, "info: Generator successfully ended.")
	assert.Contains(t, lines, StdoutPrefix+" plain stdout")
	assert.Contains(t, lines, StderrPrefix+" plain stderr")
}

func TestStartSession_WorkerRunsInWorkspace(t *testing.T) {
	ui := newFakeUI()
	s := newHelperSupervisor(t, "pwd", ui)
	root := t.TempDir()

	require.NoError(t, s.StartSession(context.Background(), root))
	require.NoError(t, waitSession(t, s))

	want, err := filepath.EvalSymlinks(root)
	require.NoError(t, err)

	var got string
	for _, l := range ui.snapshot() {
		if strings.HasPrefix(l, "info: ") {
			got = strings.TrimPrefix(l, "info: ")
		}
	}
	got, err = filepath.EvalSymlinks(got)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestStartSession_AnswersPromptsWithSamePromiseID(t *testing.T) {
	ui := newFakeUI()
	ui.choice = 1
	s := newHelperSupervisor(t, "prompt", ui)

	require.NoError(t, s.StartSession(context.Background(), t.TempDir()))
	require.NoError(t, waitSession(t, s))

	// The free-text question has a boolean default and no typed answer.
	assert.Contains(t, ui.snapshot(), "info: 1=router 2=y")
}

func TestStartSession_ReplacesRunningWorker(t *testing.T) {
	ui := newFakeUI()
	s := newHelperSupervisor(t, "block", ui)

	require.NoError(t, s.StartSession(context.Background(), t.TempDir()))
	ui.waitFor(t, "info: ready")
	first := s.current

	require.NoError(t, s.StartSession(context.Background(), t.TempDir()))
	second := s.current

	assert.True(t, first.exited(), "previous worker must be reaped before the new one starts")
	assert.NotEqual(t, first.id, second.id)
	assert.False(t, second.exited())
}

func TestDestroySession(t *testing.T) {
	ui := newFakeUI()
	s := newHelperSupervisor(t, "block", ui)

	// No session yet.
	s.DestroySession()

	require.NoError(t, s.StartSession(context.Background(), t.TempDir()))
	ui.waitFor(t, "info: ready")
	w := s.current

	s.DestroySession()
	assert.True(t, w.exited())
	assert.Nil(t, s.current)
	assert.NoError(t, w.err, "a worker stopped by the supervisor exits cleanly")

	s.DestroySession()
	assert.NoError(t, s.Wait(context.Background()))
}

func TestDestroySession_GracePeriod(t *testing.T) {
	ui := newFakeUI()
	s, err := New(Config{
		Executable:  os.Args[0],
		Args:        []string{"-test.run=^$"},
		Env:         []string{helperEnv + "=block"},
		GracePeriod: 2 * time.Second,
	}, ui, nil)
	require.NoError(t, err)

	require.NoError(t, s.StartSession(context.Background(), t.TempDir()))
	ui.waitFor(t, "info: ready")

	start := time.Now()
	s.DestroySession()
	// SIGTERM ends the helper well before the grace period runs out.
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestDestroySession_CancelsOpenPrompt(t *testing.T) {
	ui := newFakeUI()
	ui.block = true
	s := newHelperSupervisor(t, "block-prompt", ui)

	require.NoError(t, s.StartSession(context.Background(), t.TempDir()))
	select {
	case name := <-ui.asked:
		assert.Equal(t, "name", name)
	case <-time.After(5 * time.Second):
		t.Fatal("prompt never reached the UI")
	}

	done := make(chan struct{})
	go func() {
		s.DestroySession()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("DestroySession blocked on an open prompt")
	}
}

func TestWait_ReportsWorkerFailure(t *testing.T) {
	ui := newFakeUI()
	s := newHelperSupervisor(t, "fail", ui)

	require.NoError(t, s.StartSession(context.Background(), t.TempDir()))
	assert.Error(t, waitSession(t, s))
}

func TestWait_Context(t *testing.T) {
	ui := newFakeUI()
	s := newHelperSupervisor(t, "block", ui)
	require.NoError(t, s.StartSession(context.Background(), t.TempDir()))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, s.Wait(ctx), context.DeadlineExceeded)
}

func TestHandleMessage_WithoutWorker(t *testing.T) {
	ui := newFakeUI()
	s := newHelperSupervisor(t, "hello", ui)

	assert.NotPanics(t, func() {
		s.HandleMessage(protocol.NewOutput("[OK]", "x"))
	})
	assert.Empty(t, ui.snapshot())
}

func TestNew_Defaults(t *testing.T) {
	s, err := New(Config{}, newFakeUI(), nil)
	require.NoError(t, err)
	assert.NotEmpty(t, s.cfg.Executable)
	assert.Equal(t, DefaultWorkerArgs, s.cfg.Args)
}

func TestWait_WorkerCrashDuringPromptClosesForm(t *testing.T) {
	var out lockedBuffer
	in, inw := io.Pipe()
	defer inw.Close()
	term := ui.NewTerminal(&out, ui.WithInput(in))

	s := newHelperSupervisor(t, "crash-prompt", term)
	require.NoError(t, s.StartSession(context.Background(), t.TempDir()))

	err := waitSession(t, s)
	require.Error(t, err)
	assert.NotErrorIs(t, err, context.DeadlineExceeded, "the open form kept the session alive")
	assert.Contains(t, err.Error(), "exit status 2")
	assert.Contains(t, out.String(), "panic: worker crashed")
}

func TestStartSession_LongStreamLineIsTruncated(t *testing.T) {
	fake := newFakeUI()
	s := newHelperSupervisor(t, "long-line", fake)

	require.NoError(t, s.StartSession(context.Background(), t.TempDir()))
	require.NoError(t, waitSession(t, s))

	lines := fake.snapshot()
	assert.Contains(t, lines, "info: done")
	assert.Contains(t, lines, StdoutPrefix+" "+strings.Repeat("x", maxStreamLine)+truncatedSuffix)
	assert.Contains(t, lines, StdoutPrefix+" line 0")
	assert.Contains(t, lines, StdoutPrefix+" line 1999")
}

// lockedBuffer collects terminal output written from several goroutines.
type lockedBuffer struct {
	mu  sync.Mutex
	buf strings.Builder
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}
