package ingest

import (
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFrameReader(t *testing.T) {
	input := strings.Join([]string{
		": keep-alive",
		"event: ignored",
		"data: {\"a\":1}",
		"",
		"",
		"data: first",
		"data:  {\"b\":2}  ",
		"id: 7",
		"",
		"data: never dispatched",
	}, "\r\n")

	fr := NewFrameReader(strings.NewReader(input))

	f, err := fr.Next()
	require.NoError(t, err)
	assert.True(t, f.Heartbeat)

	f, err = fr.Next()
	require.NoError(t, err)
	assert.Equal(t, Frame{Data: `{"a":1}`}, f)

	f, err = fr.Next()
	require.NoError(t, err)
	assert.Equal(t, Frame{Data: `{"b":2}`}, f)

	_, err = fr.Next()
	assert.ErrorIs(t, err, io.EOF)
}

func TestClassify(t *testing.T) {
	tests := map[string]EventClass{
		"print:snapshot":  EventSnapshot,
		"orders:snapshot": EventSnapshot,
		"print:enqueue":   EventItem,
		"orders:insert":   EventItem,
		"orders:update":   EventLiveness,
		"print:noop":      EventLiveness,
		"":                EventLiveness,
		"weird":           EventLiveness,
	}
	for event, want := range tests {
		assert.Equal(t, want, classify(event), event)
	}
}

func TestEndpoint(t *testing.T) {
	got, err := Endpoint("https://origin.example/", "/api/print/stream", "printer", "12 34")
	require.NoError(t, err)
	assert.Equal(t, "https://origin.example/api/print/stream?pin=12+34&role=printer", got)
}
