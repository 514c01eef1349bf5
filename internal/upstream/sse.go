package upstream

import (
	"bufio"
	"bytes"
	"io"

	"gemini-adapter-go/internal/constants"
)

// SSEScanner iterates the data payloads of a server-sent event stream.
// Event names and comments are skipped; only "data:" lines are surfaced.
type SSEScanner struct {
	sc *bufio.Scanner
}

func NewSSEScanner(r io.Reader) *SSEScanner {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, constants.SSEScanInitialBuffer), constants.SSEScanMaxBuffer)
	return &SSEScanner{sc: sc}
}

// Next returns the next data payload, or nil and io.EOF at end of stream.
// Any scanner error (including oversized lines) is returned as-is.
func (s *SSEScanner) Next() ([]byte, error) {
	for s.sc.Scan() {
		line := s.sc.Bytes()
		if !bytes.HasPrefix(line, []byte("data:")) {
			continue
		}
		payload := bytes.TrimSpace(line[len("data:"):])
		if len(payload) == 0 {
			continue
		}
		// Scanner reuses its buffer between calls.
		out := make([]byte, len(payload))
		copy(out, payload)
		return out, nil
	}
	if err := s.sc.Err(); err != nil {
		return nil, err
	}
	return nil, io.EOF
}
