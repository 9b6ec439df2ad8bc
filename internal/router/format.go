package router

import "fmt"

// Format identifies a wire protocol the gateway speaks.
type Format string

const (
	FormatOpenAI       Format = "openai"
	FormatClaude       Format = "claude"
	FormatGemini       Format = "gemini"
	FormatOpenAICompat Format = "openai-compat"
)

// ParseFormat parses a kebab-case format string, accepting "openai_compat"
// as an alias for "openai-compat".
func ParseFormat(s string) (Format, error) {
	switch s {
	case "openai":
		return FormatOpenAI, nil
	case "claude":
		return FormatClaude, nil
	case "gemini":
		return FormatGemini, nil
	case "openai-compat", "openai_compat":
		return FormatOpenAICompat, nil
	default:
		return "", fmt.Errorf("unknown format: %q", s)
	}
}

// WireApi selects between the classic chat endpoint and the newer
// "responses" endpoint for OpenAI-family providers.
type WireApi string

const (
	WireAPIChat      WireApi = "chat"
	WireAPIResponses WireApi = "responses"
)

// RoutingStrategy selects how pick() chooses among multiple eligible
// credentials.
type RoutingStrategy string

const (
	StrategyRoundRobin RoutingStrategy = "round-robin"
	StrategyFillFirst  RoutingStrategy = "fill-first"
)
