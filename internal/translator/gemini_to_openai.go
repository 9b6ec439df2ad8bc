package translator

import (
	"encoding/json"
	"strings"

	"github.com/google/uuid"
)

func geminiToOpenAINonStream(model string, originalRequest []byte, data []byte) ([]byte, error) {
	var src map[string]any
	if err := json.Unmarshal(data, &src); err != nil {
		return nil, err
	}

	responseModel := model
	if m, ok := src["modelVersion"].(string); ok && m != "" {
		responseModel = m
	}

	candidates, _ := src["candidates"].([]any)

	var textBuilder strings.Builder
	var toolCalls []any
	finishReason := "stop"

	if len(candidates) > 0 {
		cand, _ := candidates[0].(map[string]any)
		content, _ := cand["content"].(map[string]any)
		parts, _ := content["parts"].([]any)
		for _, partRaw := range parts {
			part, ok := partRaw.(map[string]any)
			if !ok {
				continue
			}
			if text, ok := part["text"].(string); ok {
				textBuilder.WriteString(text)
			}
			if fc, ok := part["functionCall"].(map[string]any); ok {
				name, _ := fc["name"].(string)
				argsBytes, _ := json.Marshal(fc["args"])
				toolCalls = append(toolCalls, map[string]any{
					"id":   "call_" + uuid.NewString(),
					"type": "function",
					"function": map[string]any{
						"name":      name,
						"arguments": string(argsBytes),
					},
				})
			}
		}
		finishReason = convertFinishReasonGeminiToOpenAI(stringField(cand, "finishReason"), len(toolCalls) > 0)
	}

	message := map[string]any{"role": "assistant", "content": textBuilder.String()}
	if len(toolCalls) > 0 {
		message["tool_calls"] = toolCalls
	}

	choice := map[string]any{
		"index":         0,
		"message":       message,
		"finish_reason": finishReason,
	}

	out := map[string]any{
		"id":      "chatcmpl-" + uuid.NewString(),
		"object":  "chat.completion",
		"model":   responseModel,
		"choices": []any{choice},
	}

	if usage, ok := src["usageMetadata"].(map[string]any); ok {
		prompt := intField(usage, "promptTokenCount")
		completion := intField(usage, "candidatesTokenCount")
		total := intField(usage, "totalTokenCount")
		if total == 0 {
			total = prompt + completion
		}
		out["usage"] = map[string]any{
			"prompt_tokens":     prompt,
			"completion_tokens": completion,
			"total_tokens":      total,
		}
	}

	return json.Marshal(out)
}

func convertFinishReasonGeminiToOpenAI(reason string, hasToolCalls bool) string {
	if hasToolCalls {
		return "tool_calls"
	}
	switch reason {
	case "STOP":
		return "stop"
	case "MAX_TOKENS":
		return "length"
	case "SAFETY", "RECITATION":
		return "content_filter"
	default:
		return "stop"
	}
}

// geminiToOpenAIStream converts one Gemini streamGenerateContent SSE chunk
// (a full GenerateContentResponse JSON object per chunk, not an incremental
// event type) into zero or more OpenAI-style chat.completion.chunk lines.
func geminiToOpenAIStream(model string, originalRequest []byte, eventType, data string, state *State) ([]string, error) {
	if data == "[DONE]" {
		return []string{"data: [DONE]"}, nil
	}

	var src map[string]any
	if err := json.Unmarshal([]byte(data), &src); err != nil {
		return nil, err
	}

	var lines []string

	if !state.SentRole {
		state.ResponseID = uuid.NewString()
		state.Model = model
		if m, ok := src["modelVersion"].(string); ok && m != "" {
			state.Model = m
		}
		state.SentRole = true
		chunk := chatCompletionChunk(state, model, map[string]any{"role": "assistant", "content": ""}, nil)
		lines = append(lines, "data: "+mustJSON(chunk))
	}

	candidates, _ := src["candidates"].([]any)
	var finishReason *string
	toolCallsEmitted := false

	if len(candidates) > 0 {
		cand, _ := candidates[0].(map[string]any)
		content, _ := cand["content"].(map[string]any)
		parts, _ := content["parts"].([]any)
		for _, partRaw := range parts {
			part, ok := partRaw.(map[string]any)
			if !ok {
				continue
			}
			if text, ok := part["text"].(string); ok && text != "" {
				chunk := chatCompletionChunk(state, model, map[string]any{"content": text}, nil)
				lines = append(lines, "data: "+mustJSON(chunk))
			}
			if fc, ok := part["functionCall"].(map[string]any); ok {
				state.CurrentToolCallIndex++
				toolCallsEmitted = true
				name, _ := fc["name"].(string)
				argsBytes, _ := json.Marshal(fc["args"])
				delta := map[string]any{
					"tool_calls": []any{map[string]any{
						"index": state.CurrentToolCallIndex,
						"id":    "call_" + uuid.NewString(),
						"type":  "function",
						"function": map[string]any{
							"name":      name,
							"arguments": string(argsBytes),
						},
					}},
				}
				chunk := chatCompletionChunk(state, model, delta, nil)
				lines = append(lines, "data: "+mustJSON(chunk))
			}
		}
		if reason, ok := cand["finishReason"].(string); ok && reason != "" {
			fr := convertFinishReasonGeminiToOpenAI(reason, toolCallsEmitted)
			finishReason = &fr
		}
	}

	if finishReason != nil {
		chunk := chatCompletionChunk(state, model, map[string]any{}, finishReason)
		if usage, ok := src["usageMetadata"].(map[string]any); ok {
			prompt := intField(usage, "promptTokenCount")
			completion := intField(usage, "candidatesTokenCount")
			total := intField(usage, "totalTokenCount")
			if total == 0 {
				total = prompt + completion
			}
			chunk["usage"] = map[string]any{
				"prompt_tokens":     prompt,
				"completion_tokens": completion,
				"total_tokens":      total,
			}
		}
		lines = append(lines, "data: "+mustJSON(chunk))
		lines = append(lines, "data: [DONE]")
	}

	_ = eventType
	_ = originalRequest

	return lines, nil
}
