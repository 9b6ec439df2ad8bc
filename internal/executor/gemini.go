package executor

import (
	"context"

	"github.com/relaykit/aigateway/internal/router"
)

// GeminiExecutor sends requests to a Gemini-compatible generateContent API
// authenticated with the x-goog-api-key header.
type GeminiExecutor struct{}

func NewGeminiExecutor() *GeminiExecutor { return &GeminiExecutor{} }

func (e *GeminiExecutor) Identifier() string          { return "gemini" }
func (e *GeminiExecutor) NativeFormat() router.Format { return router.FormatGemini }
func (e *GeminiExecutor) DefaultBaseURL() string      { return "https://generativelanguage.googleapis.com" }

func (e *GeminiExecutor) endpoint(auth *router.AuthRecord, model string, stream bool) string {
	base := auth.BaseURLOrDefault(e.DefaultBaseURL())
	if stream {
		return base + "/v1beta/models/" + model + ":streamGenerateContent?alt=sse"
	}
	return base + "/v1beta/models/" + model + ":generateContent"
}

func (e *GeminiExecutor) authHeaders(auth *router.AuthRecord) map[string]string {
	return map[string]string{"x-goog-api-key": auth.APIKey}
}

func (e *GeminiExecutor) Execute(ctx context.Context, auth *router.AuthRecord, req *Request, opts Options) (*Response, error) {
	headers := mergeAuthAndExtra(e.authHeaders(auth), req.Headers)
	resp, err := doRequest(ctx, auth, e.endpoint(auth, req.Model, false), req.Payload, headers, opts)
	if err != nil {
		return nil, err
	}
	return bufferResponse(resp)
}

func (e *GeminiExecutor) ExecuteStream(ctx context.Context, auth *router.AuthRecord, req *Request, opts Options) (*StreamResult, error) {
	headers := mergeAuthAndExtra(e.authHeaders(auth), req.Headers)
	resp, err := doRequest(ctx, auth, e.endpoint(auth, req.Model, true), req.Payload, headers, opts)
	if err != nil {
		return nil, err
	}
	return streamResponse(resp)
}

func (e *GeminiExecutor) SupportedModels(auth *router.AuthRecord) []router.ModelInfo {
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
