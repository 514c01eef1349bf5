package upstream

import (
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSSEScannerYieldsDataPayloads(t *testing.T) {
	stream := strings.Join([]string{
		": comment line",
		"event: message",
		`data: {"a":1}`,
		"",
		`data: {"b":2}`,
		"",
		"data:",
		"",
	}, "\n")

	s := NewSSEScanner(strings.NewReader(stream))

	first, err := s.Next()
	require.NoError(t, err)
	require.JSONEq(t, `{"a":1}`, string(first))

	second, err := s.Next()
	require.NoError(t, err)
	require.JSONEq(t, `{"b":2}`, string(second))

	_, err = s.Next()
	require.ErrorIs(t, err, io.EOF)
}

func TestSSEScannerLargePayload(t *testing.T) {
	big := strings.Repeat("x", 100*1024)
	stream := `data: {"text":"` + big + `"}` + "\n\n"

	s := NewSSEScanner(strings.NewReader(stream))
	payload, err := s.Next()
	require.NoError(t, err)
	require.Contains(t, string(payload), big)
}
