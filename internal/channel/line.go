package channel

import (
	"bufio"
	"bytes"
	"errors"
)

// ReadLine reads one newline-terminated line from r and returns at most limit
// bytes of it, without the line ending. The rest of a longer line is read and
// dropped, and truncated reports that it happened. A final line without a
// newline is returned together with the reader's error.
func ReadLine(r *bufio.Reader, limit int) (line []byte, truncated bool, err error) {
	for {
		chunk, err := r.ReadSlice('\n')
		body := bytes.TrimSuffix(chunk, []byte{'\n'})

		room := limit - len(line)
		if len(body) > room {
			body = body[:max(room, 0)]
			truncated = true
		}
		line = append(line, body...)

		if errors.Is(err, bufio.ErrBufferFull) {
			continue
		}
		if !truncated {
			line = bytes.TrimSuffix(line, []byte{'\r'})
		}
		return line, truncated, err
	}
}
