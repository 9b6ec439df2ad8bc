package executor

import (
	"context"

	"github.com/relaykit/aigateway/internal/router"
)

const defaultAnthropicVersion = "2023-06-01"

// ClaudeExecutor sends requests to an Anthropic-compatible messages API
// authenticated with the x-api-key header.
type ClaudeExecutor struct{}

func NewClaudeExecutor() *ClaudeExecutor { return &ClaudeExecutor{} }

func (e *ClaudeExecutor) Identifier() string          { return "claude" }
func (e *ClaudeExecutor) NativeFormat() router.Format { return router.FormatClaude }
func (e *ClaudeExecutor) DefaultBaseURL() string      { return "https://api.anthropic.com" }

func (e *ClaudeExecutor) endpoint(auth *router.AuthRecord) string {
	return auth.BaseURLOrDefault(e.DefaultBaseURL()) + "/v1/messages"
}

func (e *ClaudeExecutor) authHeaders(auth *router.AuthRecord, opts Options) map[string]string {
	version := opts.AnthropicVersion
	if version == "" {
		version = defaultAnthropicVersion
	}
	return map[string]string{
		"x-api-key":         auth.APIKey,
		"anthropic-version": version,
	}
}

func (e *ClaudeExecutor) Execute(ctx context.Context, auth *router.AuthRecord, req *Request, opts Options) (*Response, error) {
	headers := mergeAuthAndExtra(e.authHeaders(auth, opts), req.Headers)
	resp, err := doRequest(ctx, auth, e.endpoint(auth), req.Payload, headers, opts)
	if err != nil {
		return nil, err
	}
	return bufferResponse(resp)
}

func (e *ClaudeExecutor) ExecuteStream(ctx context.Context, auth *router.AuthRecord, req *Request, opts Options) (*StreamResult, error) {
	headers := mergeAuthAndExtra(e.authHeaders(auth, opts), req.Headers)
	resp, err := doRequest(ctx, auth, e.endpoint(auth), req.Payload, headers, opts)
	if err != nil {
		return nil, err
	}
	return streamResponse(resp)
}

func (e *ClaudeExecutor) SupportedModels(auth *router.AuthRecord) []router.ModelInfo {
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
