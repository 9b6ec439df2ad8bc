// Package sse implements a minimal Server-Sent Events parser and writer:
// the parser turns a raw upstream byte stream into discrete events, and
// the writer re-serializes translated lines back into SSE framing with
// keepalive comments.
package sse

import (
	"bufio"
	"io"
	"strings"
)

// Event is one parsed SSE event block.
type Event struct {
	EventType string
	Data      string
}

// Parser incrementally parses an io.Reader into Events. It buffers partial
// blocks across Read calls and, on EOF, flushes any trailing block.
type Parser struct {
	r      *bufio.Reader
	buffer strings.Builder
}

func NewParser(r io.Reader) *Parser {
	return &Parser{r: bufio.NewReaderSize(r, 4096)}
}

// Next returns the next parsed event, or io.EOF when the stream is
// exhausted and no trailing event remains.
func (p *Parser) Next() (Event, error) {
	for {
		if block, ok := p.takeBlock(); ok {
			if ev, ok := parseEventBlock(block); ok {
				return ev, nil
			}
			// Comment-only / empty block: keep looking.
			continue
		}

		chunk := make([]byte, 4096)
		n, err := p.r.Read(chunk)
		if n > 0 {
			p.buffer.Write(chunk[:n])
		}
		if err != nil {
			if err == io.EOF {
				remaining := p.buffer.String()
				p.buffer.Reset()
				if strings.TrimSpace(remaining) == "" {
					return Event{}, io.EOF
				}
				if ev, ok := parseEventBlock(remaining); ok {
					return ev, nil
				}
				return Event{}, io.EOF
			}
			return Event{}, err
		}
	}
}

// takeBlock extracts the next complete event block (up to the first blank
// line) from the buffer, if one is present, advancing the buffer past it.
func (p *Parser) takeBlock() (string, bool) {
	s := p.buffer.String()
	pos, skip := findEventBoundary(s)
	if pos < 0 {
		return "", false
	}
	block := s[:pos]
	rest := s[pos+skip:]
	p.buffer.Reset()
	p.buffer.WriteString(rest)
	return block, true
}

func findEventBoundary(s string) (pos, skip int) {
	if i := strings.Index(s, "\n\n"); i >= 0 {
		return i, 2
	}
	if j := strings.Index(s, "\r\n\r\n"); j >= 0 {
		return j, 4
	}
	return -1, 0
}

func parseEventBlock(block string) (Event, bool) {
	var eventType string
	var dataLines []string

	for _, line := range strings.Split(block, "\n") {
		line = strings.TrimSuffix(line, "\r")
		if strings.HasPrefix(line, ":") {
			continue
		}
		if rest, ok := strings.CutPrefix(line, "event:"); ok {
			eventType = strings.TrimSpace(rest)
		} else if rest, ok := strings.CutPrefix(line, "data:"); ok {
			dataLines = append(dataLines, strings.TrimLeft(rest, " "))
		}
		// id: and retry: are ignored.
	}

	if len(dataLines) == 0 {
		return Event{}, false
	}
	return Event{EventType: eventType, Data: strings.Join(dataLines, "\n")}, true
}
