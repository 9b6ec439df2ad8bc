package translator

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

func claudeToOpenAINonStream(model string, originalRequest []byte, data []byte) ([]byte, error) {
	var src map[string]any
	if err := json.Unmarshal(data, &src); err != nil {
		return nil, err
	}

	id, _ := src["id"].(string)

	var textBuilder strings.Builder
	var toolCalls []any
	if content, ok := src["content"].([]any); ok {
		for _, blockRaw := range content {
			block, ok := blockRaw.(map[string]any)
			if !ok {
				continue
			}
			switch block["type"] {
			case "text":
				if t, ok := block["text"].(string); ok {
					textBuilder.WriteString(t)
				}
			case "tool_use":
				input := block["input"]
				argsBytes, _ := json.Marshal(input)
				toolCalls = append(toolCalls, map[string]any{
					"id":   block["id"],
					"type": "function",
					"function": map[string]any{
						"name":      block["name"],
						"arguments": string(argsBytes),
					},
				})
			}
		}
	}

	message := map[string]any{"role": "assistant", "content": textBuilder.String()}
	if len(toolCalls) > 0 {
		message["tool_calls"] = toolCalls
	}

	finishReason := convertStopReasonClaudeToOpenAI(stringField(src, "stop_reason"))

	choice := map[string]any{
		"index":         0,
		"message":       message,
		"finish_reason": finishReason,
	}

	out := map[string]any{
		"id":      "chatcmpl-" + id,
		"object":  "chat.completion",
		"created": time.Now().Unix(),
		"model":   model,
		"choices": []any{choice},
	}

	if usage, ok := src["usage"].(map[string]any); ok {
		input := intField(usage, "input_tokens")
		output := intField(usage, "output_tokens")
		out["usage"] = map[string]any{
			"prompt_tokens":     input,
			"completion_tokens": output,
			"total_tokens":      input + output,
		}
	}

	return json.Marshal(out)
}

func convertStopReasonClaudeToOpenAI(reason string) string {
	switch reason {
	case "end_turn", "stop_sequence":
		return "stop"
	case "max_tokens":
		return "length"
	case "tool_use":
		return "tool_calls"
	default:
		return "stop"
	}
}

func stringField(m map[string]any, key string) string {
	s, _ := m[key].(string)
	return s
}

func intField(m map[string]any, key string) int64 {
	if v, ok := m[key].(float64); ok {
		return int64(v)
	}
	return 0
}

// claudeToOpenAIStream converts one Claude SSE event into zero or more
// OpenAI-style chat.completion.chunk lines, accumulating state across the
// stream per §4.4.2.
func claudeToOpenAIStream(model string, originalRequest []byte, eventType, data string, state *State) ([]string, error) {
	var payload map[string]any
	if data != "" {
		_ = json.Unmarshal([]byte(data), &payload)
	}

	switch eventType {
	case "message_start":
		msg, _ := payload["message"].(map[string]any)
		state.ResponseID, _ = msg["id"].(string)
		state.Model, _ = msg["model"].(string)
		state.Created = time.Now().Unix()
		if usage, ok := msg["usage"].(map[string]any); ok {
			state.InputTokens = intField(usage, "input_tokens")
		}
		state.SentRole = true
		state.CurrentToolCallIndex = -1

		chunk := chatCompletionChunk(state, model, map[string]any{"role": "assistant", "content": ""}, nil)
		return []string{"data: " + mustJSON(chunk)}, nil

	case "content_block_start":
		block, _ := payload["content_block"].(map[string]any)
		if block["type"] == "tool_use" {
			state.CurrentToolCallIndex++
			delta := map[string]any{
				"tool_calls": []any{map[string]any{
					"index": state.CurrentToolCallIndex,
					"id":    block["id"],
					"type":  "function",
					"function": map[string]any{
						"name":      block["name"],
						"arguments": "",
					},
				}},
			}
			chunk := chatCompletionChunk(state, model, delta, nil)
			return []string{"data: " + mustJSON(chunk)}, nil
		}
		return nil, nil

	case "content_block_delta":
		delta, _ := payload["delta"].(map[string]any)
		switch delta["type"] {
		case "text_delta":
			text, _ := delta["text"].(string)
			chunk := chatCompletionChunk(state, model, map[string]any{"content": text}, nil)
			return []string{"data: " + mustJSON(chunk)}, nil
		case "input_json_delta":
			partial, _ := delta["partial_json"].(string)
			d := map[string]any{
				"tool_calls": []any{map[string]any{
					"index":    state.CurrentToolCallIndex,
					"function": map[string]any{"arguments": partial},
				}},
			}
			chunk := chatCompletionChunk(state, model, d, nil)
			return []string{"data: " + mustJSON(chunk)}, nil
		}
		return nil, nil

	case "message_delta":
		delta, _ := payload["delta"].(map[string]any)
		finishReason := convertStopReasonClaudeToOpenAI(stringField(delta, "stop_reason"))
		var usage map[string]any
		if u, ok := payload["usage"].(map[string]any); ok {
			output := intField(u, "output_tokens")
			usage = map[string]any{
				"prompt_tokens":     state.InputTokens,
				"completion_tokens": output,
				"total_tokens":      state.InputTokens + output,
			}
		}
		chunk := chatCompletionChunk(state, model, map[string]any{}, &finishReason)
		if usage != nil {
			chunk["usage"] = usage
		}
		return []string{"data: " + mustJSON(chunk)}, nil

	case "message_stop":
		return []string{"data: [DONE]"}, nil

	case "ping", "content_block_stop":
		return nil, nil

	default:
		return nil, nil
	}
}

func chatCompletionChunk(state *State, model string, delta map[string]any, finishReason *string) map[string]any {
	id := state.ResponseID
	if id == "" {
		id = "chatcmpl-" + uuid.NewString()
	} else {
		id = "chatcmpl-" + id
	}
	useModel := state.Model
	if useModel == "" {
		useModel = model
	}
	choice := map[string]any{"index": 0, "delta": delta}
	if finishReason != nil {
		choice["finish_reason"] = *finishReason
	} else {
		choice["finish_reason"] = nil
	}
	return map[string]any{
		"id":      id,
		"object":  "chat.completion.chunk",
		"created": state.Created,
		"model":   useModel,
		"choices": []any{choice},
	}
}

func mustJSON(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf(`{"error":%q}`, err.Error())
	}
	return string(b)
}
