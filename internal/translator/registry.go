// Package translator implements the cross-format translator registry:
// converting a client request from its source wire format into a chosen
// provider's target format, and converting provider responses (streaming
// and non-streaming) back into the client's format.
package translator

import (
	"encoding/json"

	"github.com/relaykit/aigateway/internal/apierror"
	"github.com/relaykit/aigateway/internal/router"
)

type key struct {
	From, To router.Format
}

type requestFn func(model string, raw []byte, stream bool) ([]byte, error)
type streamFn func(model string, originalRequest []byte, eventType, data string, state *State) ([]string, error)
type nonStreamFn func(model string, originalRequest []byte, data []byte) ([]byte, error)

type pair struct {
	request   requestFn
	stream    streamFn
	nonStream nonStreamFn
}

// Registry holds the registered (from, to) translator pairs.
type Registry struct {
	pairs map[key]pair
}

// New builds a Registry with every pair this gateway supports registered.
func New() *Registry {
	r := &Registry{pairs: make(map[key]pair)}

	r.pairs[key{router.FormatOpenAI, router.FormatClaude}] = pair{
		request:   openAIToClaudeRequest,
		stream:    claudeToOpenAIStream,
		nonStream: claudeToOpenAINonStream,
	}
	r.pairs[key{router.FormatOpenAI, router.FormatGemini}] = pair{
		request:   openAIToGeminiRequest,
		stream:    geminiToOpenAIStream,
		nonStream: geminiToOpenAINonStream,
	}

	return r
}

// canonical maps a wire format onto the format its translator pairs are
// registered under. openai-compat is wire-identical to openai, so it rides
// the same translator pairs rather than needing its own registrations.
func canonical(f router.Format) router.Format {
	if f == router.FormatOpenAICompat {
		return router.FormatOpenAI
	}
	return f
}

// TranslateRequest converts raw from source format "from" into "to"'s wire
// format. If from and to are wire-identical (from == to, or either is
// openai-compat standing in for openai), only the model field is rewritten.
// An unregistered pair passes the payload through unchanged, matching the
// reference translator's "no transform registered" behavior.
func (r *Registry) TranslateRequest(from, to router.Format, model string, raw []byte, stream bool) ([]byte, error) {
	if canonical(from) == canonical(to) {
		return rewriteModelField(raw, model)
	}
	p, ok := r.pairs[key{canonical(from), canonical(to)}]
	if !ok {
		return rewriteModelField(raw, model)
	}
	out, err := p.request(model, raw, stream)
	if err != nil {
		return nil, apierror.Translation("request translation failed", err)
	}
	return out, nil
}

// TranslateStream converts one upstream StreamChunk (event_type, data) from
// target format "to" back into zero or more output lines in "from" format.
func (r *Registry) TranslateStream(from, to router.Format, model string, originalRequest []byte, eventType, data string, state *State) ([]string, error) {
	if canonical(from) == canonical(to) || data == "[DONE]" {
		return []string{"data: " + data}, nil
	}
	p, ok := r.pairs[key{canonical(from), canonical(to)}]
	if !ok {
		return []string{"data: " + data}, nil
	}
	lines, err := p.stream(model, originalRequest, eventType, data, state)
	if err != nil {
		return nil, apierror.Translation("stream translation failed", err)
	}
	return lines, nil
}

// TranslateNonStream converts a full upstream response body from "to"
// format into "from" format.
func (r *Registry) TranslateNonStream(from, to router.Format, model string, originalRequest []byte, data []byte) ([]byte, error) {
	if canonical(from) == canonical(to) {
		return data, nil
	}
	p, ok := r.pairs[key{canonical(from), canonical(to)}]
	if !ok {
		return data, nil
	}
	out, err := p.nonStream(model, originalRequest, data)
	if err != nil {
		return nil, apierror.Translation("response translation failed", err)
	}
	return out, nil
}

// HasResponseTranslator reports whether a registered pair exists for
// (from, to) — wire-identical pairs are handled implicitly and report
// false, since they require no translation step.
func (r *Registry) HasResponseTranslator(from, to router.Format) bool {
	if canonical(from) == canonical(to) {
		return false
	}
	_, ok := r.pairs[key{canonical(from), canonical(to)}]
	return ok
}

func rewriteModelField(raw []byte, model string) ([]byte, error) {
	var obj map[string]any
	if err := json.Unmarshal(raw, &obj); err != nil {
		return raw, nil
	}
	obj["model"] = model
	out, err := json.Marshal(obj)
	if err != nil {
		return raw, nil
	}
	return out, nil
}
