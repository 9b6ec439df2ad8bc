// Package dispatch orchestrates one client request end to end: walking the
// model fallback chain, picking a credential, translating the payload,
// applying payload rules and cloaking, executing against the upstream
// provider, and handing back either a buffered response or a started
// stream, with retry and cooldown on failure.
package dispatch

import (
	"net/http"

	"github.com/relaykit/aigateway/internal/executor"
	"github.com/relaykit/aigateway/internal/router"
	"github.com/relaykit/aigateway/internal/translator"
)

// RequestDescriptor is the parsed shape of one client request, independent
// of its wire format.
type RequestDescriptor struct {
	SourceFormat router.Format
	Model        string
	Models       []string // fallback chain; overrides Model when non-empty
	Stream       bool
	UserAgent    string
	Debug        bool
	Raw          []byte

	// AllowedTargets restricts which provider formats this request may be
	// dispatched to, per §6.1 (e.g. /v1/messages is claude-only). A nil or
	// empty slice means any registered format is eligible.
	AllowedTargets []router.Format
}

// DebugInfo is populated when the request carried x-debug: true.
type DebugInfo struct {
	Provider   string
	Model      string
	Credential string
	Attempts   []string
}

// NonStreamResult is the outcome of a buffered (non-streaming) dispatch.
type NonStreamResult struct {
	Payload             []byte
	PassthroughHeaders  http.Header
	Debug               *DebugInfo
}

// StreamStart is the outcome of a streaming dispatch once the upstream's
// first event has been successfully translated. The caller owns draining
// the remainder of Stream and must call Stream.Close() when done.
type StreamStart struct {
	Stream              *executor.StreamResult
	Target              router.Format
	ResolvedModel        string
	State               *translator.State
	FirstLines          []string
	PassthroughHeaders  http.Header
	Debug               *DebugInfo
}
