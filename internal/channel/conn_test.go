package channel

import (
	"bufio"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/martinemde/genwiz/internal/protocol"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// pipePair returns two connected endpoints, like the host and worker ends.
func pipePair(t *testing.T) (*Conn, *Conn) {
	t.Helper()
	aToBr, aToBw := io.Pipe()
	bToAr, bToAw := io.Pipe()

	a := New(bToAr, aToBw, WithClosers(aToBw, bToAr))
	b := New(aToBr, bToAw, WithClosers(bToAw, aToBr))
	t.Cleanup(func() {
		_ = a.Close()
		_ = b.Close()
	})
	return a, b
}

func TestConn_SendAndReceive(t *testing.T) {
	a, b := pipePair(t)

	received := make(chan protocol.Message, 4)
	go b.ReadLoop(func(msg protocol.Message) { received <- msg })

	require.NoError(t, a.Send(protocol.NewOutput("[INFO]", "one")))
	require.NoError(t, a.Send(protocol.NewInformation("two")))
	require.NoError(t, a.Send(protocol.NewReply(1, protocol.Reply{"k": "v"})))

	expected := []protocol.Message{
		protocol.NewOutput("[INFO]", "one"),
		protocol.NewInformation("two"),
		protocol.NewReply(1, protocol.Reply{"k": "v"}),
	}
	for _, want := range expected {
		select {
		case got := <-received:
			assert.Equal(t, want, got)
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for %s", want.Action)
		}
	}

	require.NoError(t, a.Close())
	select {
	case <-b.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("ReadLoop did not exit after peer closed")
	}
	assert.NoError(t, b.Err())
}

func TestConn_ReadLoopSkipsMalformedLines(t *testing.T) {
	input := strings.Join([]string{
		`{"action":"output","prefix":"","message":"first"}`,
		``,
		`not json at all`,
		`{"action":"reply","promiseId":1}`,
		`{"action":"somethingNew"}`,
		`{"action":"informationMessage","message":"last"}`,
	}, "\n") + "\n"

	var parseErrors []string
	c := New(strings.NewReader(input), io.Discard, WithParseErrorHandler(func(line []byte, err error) {
		assert.ErrorIs(t, err, protocol.ErrMalformed)
		parseErrors = append(parseErrors, string(line))
	}))

	var got []protocol.Message
	c.ReadLoop(func(msg protocol.Message) { got = append(got, msg) })

	require.Len(t, got, 3)
	assert.Equal(t, "first", got[0].Text)
	assert.Equal(t, protocol.Action("somethingNew"), got[1].Action)
	assert.Equal(t, "last", got[2].Text)
	assert.Equal(t, []string{`not json at all`, `{"action":"reply","promiseId":1}`}, parseErrors)
}

func TestConn_SendAfterClose(t *testing.T) {
	a, _ := pipePair(t)
	require.NoError(t, a.Close())
	assert.ErrorIs(t, a.Send(protocol.NewInformation("late")), ErrClosed)
	assert.NoError(t, a.Close(), "Close is idempotent")
}

func TestConn_SendRejectsUnencodableMessage(t *testing.T) {
	c := New(strings.NewReader(""), io.Discard)
	assert.Error(t, c.Send(protocol.Message{Action: protocol.ActionPrompt, PromiseID: 1}))
}

func TestParseFDs(t *testing.T) {
	tests := []struct {
		spec    string
		read    int
		write   int
		wantErr bool
	}{
		{spec: "3,4", read: 3, write: 4},
		{spec: " 5 , 6 ", read: 5, write: 6},
		{spec: "3", wantErr: true},
		{spec: "a,4", wantErr: true},
		{spec: "3,b", wantErr: true},
		{spec: "3,4,5", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.spec, func(t *testing.T) {
			r, w, err := parseFDs(tt.spec)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.read, r)
			assert.Equal(t, tt.write, w)
		})
	}
}

func TestFormatFDs(t *testing.T) {
	assert.Equal(t, "3,4", FormatFDs(3, 4))
}

func TestFromEnv_RequiresVariable(t *testing.T) {
	t.Setenv(protocol.ChannelEnvVar, "")
	_, err := FromEnv()
	assert.Error(t, err)
}

func TestConn_ReadLoopSkipsOversizedLine(t *testing.T) {
	huge := `{"action":"output","prefix":"","message":"` + strings.Repeat("x", 2*maxMessageSize) + `"}`
	input := huge + "\n" + `{"action":"reply","promiseId":1,"replies":{"generator":"app"}}` + "\n"

	var parseErrors []error
	c := New(strings.NewReader(input), io.Discard, WithParseErrorHandler(func(line []byte, err error) {
		assert.LessOrEqual(t, len(line), maxMessageSize)
		parseErrors = append(parseErrors, err)
	}))

	var got []protocol.Message
	c.ReadLoop(func(msg protocol.Message) { got = append(got, msg) })

	require.Len(t, got, 1, "the reply after an oversized line is still delivered")
	assert.Equal(t, protocol.NewReply(1, protocol.Reply{"generator": "app"}), got[0])
	require.Len(t, parseErrors, 1)
	assert.ErrorIs(t, parseErrors[0], protocol.ErrMalformed)
	assert.ErrorIs(t, parseErrors[0], ErrTooLarge)
	assert.NoError(t, c.Err())
}

func TestConn_SendRejectsOversizedMessage(t *testing.T) {
	var buf strings.Builder
	c := New(strings.NewReader(""), &buf)

	err := c.Send(protocol.NewOutput("", strings.Repeat("x", maxMessageSize)))
	assert.ErrorIs(t, err, ErrTooLarge)
	assert.Empty(t, buf.String(), "nothing is written for a refused message")
}

func TestReadLine(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		limit     int
		want      []string
		truncated []bool
	}{
		{name: "lines", input: "one\ntwo\n", limit: 10, want: []string{"one", "two"}, truncated: []bool{false, false}},
		{name: "crlf", input: "one\r\n", limit: 10, want: []string{"one"}, truncated: []bool{false}},
		{name: "blank line", input: "\nx\n", limit: 10, want: []string{"", "x"}, truncated: []bool{false, false}},
		{name: "no final newline", input: "one\ntail", limit: 10, want: []string{"one", "tail"}, truncated: []bool{false, false}},
		{name: "long line", input: "abcdefgh\nok\n", limit: 3, want: []string{"abc", "ok"}, truncated: []bool{true, false}},
		{name: "exactly limit", input: "abc\n", limit: 3, want: []string{"abc"}, truncated: []bool{false}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// A small buffer forces long lines across several reads.
			r := bufio.NewReaderSize(strings.NewReader(tt.input), 16)
			var got []string
			var truncated []bool
			for {
				line, cut, err := ReadLine(r, tt.limit)
				if err == nil || len(line) > 0 || cut {
					got = append(got, string(line))
					truncated = append(truncated, cut)
				}
				if err != nil {
					assert.ErrorIs(t, err, io.EOF)
					break
				}
			}
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.truncated, truncated)
		})
	}
}

func TestReadLine_LongerThanBuffer(t *testing.T) {
	long := strings.Repeat("y", 100)
	r := bufio.NewReaderSize(strings.NewReader(long+"\nnext\n"), 16)

	line, truncated, err := ReadLine(r, 1000)
	require.NoError(t, err)
	assert.False(t, truncated)
	assert.Equal(t, long, string(line))

	line, _, err = ReadLine(r, 1000)
	require.NoError(t, err)
	assert.Equal(t, "next", string(line))
}
