package executor

import (
	"context"

	"github.com/relaykit/aigateway/internal/router"
)

// OpenAICompatExecutor sends requests to a self-hosted or third-party
// OpenAI-wire-compatible API. It has no default base URL — callers must
// configure one per credential.
type OpenAICompatExecutor struct{}

func NewOpenAICompatExecutor() *OpenAICompatExecutor { return &OpenAICompatExecutor{} }

func (e *OpenAICompatExecutor) Identifier() string          { return "openai-compat" }
func (e *OpenAICompatExecutor) NativeFormat() router.Format { return router.FormatOpenAICompat }
func (e *OpenAICompatExecutor) DefaultBaseURL() string      { return "" }

func (e *OpenAICompatExecutor) endpoint(auth *router.AuthRecord) string {
	base := auth.BaseURLOrDefault(e.DefaultBaseURL())
	if auth.WireAPI == router.WireAPIResponses {
		return base + "/v1/responses"
	}
	return base + "/v1/chat/completions"
}

func (e *OpenAICompatExecutor) authHeaders(auth *router.AuthRecord) map[string]string {
	return map[string]string{"authorization": "Bearer " + auth.APIKey}
}

func (e *OpenAICompatExecutor) Execute(ctx context.Context, auth *router.AuthRecord, req *Request, opts Options) (*Response, error) {
	headers := mergeAuthAndExtra(e.authHeaders(auth), req.Headers)
	resp, err := doRequest(ctx, auth, e.endpoint(auth), req.Payload, headers, opts)
	if err != nil {
		return nil, err
	}
	return bufferResponse(resp)
}

func (e *OpenAICompatExecutor) ExecuteStream(ctx context.Context, auth *router.AuthRecord, req *Request, opts Options) (*StreamResult, error) {
	headers := mergeAuthAndExtra(e.authHeaders(auth), req.Headers)
	resp, err := doRequest(ctx, auth, e.endpoint(auth), req.Payload, headers, opts)
	if err != nil {
		return nil, err
	}
	return streamResponse(resp)
}

func (e *OpenAICompatExecutor) SupportedModels(auth *router.AuthRecord) []router.ModelInfo {
	if len(auth.Models) == 0 {
		return nil
	}
	out := make([]router.ModelInfo, 0, len(auth.Models))
	for _, m := range auth.Models {
		id := m.ID
		if m.Alias != "" {
			id = m.Alias
		}
		out = append(out, router.ModelInfo{ID: auth.PrefixedModelID(id), Provider: e.Identifier(), OwnedBy: e.Identifier()})
	}
	return out
}
