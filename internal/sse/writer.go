package sse

import (
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"
)

// Writer wraps an http.ResponseWriter, emitting already-translated "lines"
// as framed SSE output, with idle keepalive comments. The keepalive
// goroutine and the caller's WriteLine/WriteError calls both write to w and
// read/update lastActive, so every access is serialized through mu.
type Writer struct {
	mu      sync.Mutex
	w       http.ResponseWriter
	flusher http.Flusher

	keepalive  time.Duration
	lastActive time.Time
	stopCh     chan struct{}
}

func NewWriter(w http.ResponseWriter, keepalive time.Duration) *Writer {
	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")

	flusher, _ := w.(http.Flusher)
	sw := &Writer{
		w:          w,
		flusher:    flusher,
		keepalive:  keepalive,
		lastActive: time.Now(),
	}
	if keepalive > 0 {
		sw.stopCh = make(chan struct{})
		go sw.keepaliveLoop()
	}
	return sw
}

func (sw *Writer) keepaliveLoop() {
	ticker := time.NewTicker(sw.keepalive)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			sw.mu.Lock()
			if time.Since(sw.lastActive) >= sw.keepalive {
				fmt.Fprint(sw.w, ": keepalive\n\n")
				sw.flushLocked()
			}
			sw.mu.Unlock()
		case <-sw.stopCh:
			return
		}
	}
}

// flushLocked flushes sw.w and records activity. Callers must hold sw.mu.
func (sw *Writer) flushLocked() {
	if sw.flusher != nil {
		sw.flusher.Flush()
	}
	sw.lastActive = time.Now()
}

// WriteLine writes one translated line per the §4.8 rules.
func (sw *Writer) WriteLine(line string) {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" {
		return
	}

	sw.mu.Lock()
	defer sw.mu.Unlock()
	switch {
	case trimmed == "[DONE]":
		fmt.Fprint(sw.w, "data: [DONE]\n\n")
	case strings.HasPrefix(trimmed, "event:"):
		fmt.Fprintf(sw.w, "%s\n", trimmed)
	case strings.HasPrefix(trimmed, "data:"):
		fmt.Fprintf(sw.w, "%s\n\n", trimmed)
	default:
		fmt.Fprintf(sw.w, "data: %s\n\n", trimmed)
	}
	sw.flushLocked()
}

// WriteError serializes a mid-stream error as an SSE data event.
func (sw *Writer) WriteError(message string) {
	sw.mu.Lock()
	defer sw.mu.Unlock()
	fmt.Fprintf(sw.w, "data: {\"error\":{\"message\":%q}}\n\n", message)
	sw.flushLocked()
}

// Close stops the keepalive goroutine, if running.
func (sw *Writer) Close() {
	if sw.stopCh != nil {
		close(sw.stopCh)
	}
}
