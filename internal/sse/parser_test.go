package sse

import (
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func parseAll(t *testing.T, s string) []Event {
	t.Helper()
	p := NewParser(strings.NewReader(s))
	var events []Event
	for {
		ev, err := p.Next()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		events = append(events, ev)
	}
	return events
}

func TestParseEventBlockBasic(t *testing.T) {
	events := parseAll(t, "data: {\"hello\": \"world\"}\n\n")
	require.Len(t, events, 1)
	assert.Equal(t, "", events[0].EventType)
	assert.Equal(t, `{"hello": "world"}`, events[0].Data)
}

func TestParseEventBlockWithEventType(t *testing.T) {
	events := parseAll(t, "event: message_start\ndata: {\"type\": \"message_start\"}\n\n")
	require.Len(t, events, 1)
	assert.Equal(t, "message_start", events[0].EventType)
}

func TestParseEventBlockDone(t *testing.T) {
	events := parseAll(t, "data: [DONE]\n\n")
	require.Len(t, events, 1)
	assert.Equal(t, "[DONE]", events[0].Data)
}

func TestParseEventBlockMultilineData(t *testing.T) {
	events := parseAll(t, "data: line1\ndata: line2\n\n")
	require.Len(t, events, 1)
	assert.Equal(t, "line1\nline2", events[0].Data)
}

func TestParseEventBlockComment(t *testing.T) {
	events := parseAll(t, ": this is a comment\n\ndata: after\n\n")
	require.Len(t, events, 1)
	assert.Equal(t, "after", events[0].Data)
}

func TestParseTrailingBlockAtEOF(t *testing.T) {
	events := parseAll(t, "data: no-trailing-blank-line")
	require.Len(t, events, 1)
	assert.Equal(t, "no-trailing-blank-line", events[0].Data)
}

func TestParseCRLFBoundary(t *testing.T) {
	events := parseAll(t, "data: x\r\n\r\n")
	require.Len(t, events, 1)
	assert.Equal(t, "x", events[0].Data)
}
