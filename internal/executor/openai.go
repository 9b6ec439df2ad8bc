package executor

import (
	"context"
	"strings"

	"github.com/relaykit/aigateway/internal/router"
)

// OpenAIExecutor sends requests to an OpenAI-compatible chat/responses API
// authenticated with a bearer token.
type OpenAIExecutor struct{}

func NewOpenAIExecutor() *OpenAIExecutor { return &OpenAIExecutor{} }

func (e *OpenAIExecutor) Identifier() string          { return "openai" }
func (e *OpenAIExecutor) NativeFormat() router.Format { return router.FormatOpenAI }
func (e *OpenAIExecutor) DefaultBaseURL() string      { return "https://api.openai.com" }

func (e *OpenAIExecutor) endpoint(auth *router.AuthRecord) string {
	base := auth.BaseURLOrDefault(e.DefaultBaseURL())
	if auth.WireAPI == router.WireAPIResponses {
		return base + "/v1/responses"
	}
	return base + "/v1/chat/completions"
}

func (e *OpenAIExecutor) authHeaders(auth *router.AuthRecord) map[string]string {
	return map[string]string{"authorization": "Bearer " + auth.APIKey}
}

func (e *OpenAIExecutor) Execute(ctx context.Context, auth *router.AuthRecord, req *Request, opts Options) (*Response, error) {
	headers := mergeAuthAndExtra(e.authHeaders(auth), req.Headers)
	resp, err := doRequest(ctx, auth, e.endpoint(auth), req.Payload, headers, opts)
	if err != nil {
		return nil, err
	}
	return bufferResponse(resp)
}

func (e *OpenAIExecutor) ExecuteStream(ctx context.Context, auth *router.AuthRecord, req *Request, opts Options) (*StreamResult, error) {
	headers := mergeAuthAndExtra(e.authHeaders(auth), req.Headers)
	resp, err := doRequest(ctx, auth, e.endpoint(auth), req.Payload, headers, opts)
	if err != nil {
		return nil, err
	}
	return streamResponse(resp)
}

func (e *OpenAIExecutor) SupportedModels(auth *router.AuthRecord) []router.ModelInfo {
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

func mergeAuthAndExtra(auth map[string]string, extra map[string]string) map[string]string {
	merged := make(map[string]string, len(auth)+len(extra))
	for k, v := range auth {
		merged[strings.ToLower(k)] = v
	}
	for k, v := range extra {
		merged[strings.ToLower(k)] = v
	}
	return merged
}
