package translator

import (
	"encoding/json"
	"strings"
)

// openAIToClaudeRequest converts an OpenAI-style chat completion request
// body into a Claude messages request body.
func openAIToClaudeRequest(model string, raw []byte, stream bool) ([]byte, error) {
	var src map[string]any
	if err := json.Unmarshal(raw, &src); err != nil {
		return nil, err
	}

	out := map[string]any{"model": model}

	messages, _ := src["messages"].([]any)

	var systemParts []string
	var claudeMessages []any
	var pendingToolResults []any

	flushToolResults := func() {
		if len(pendingToolResults) > 0 {
			claudeMessages = append(claudeMessages, map[string]any{
				"role":    "user",
				"content": pendingToolResults,
			})
			pendingToolResults = nil
		}
	}

	for _, raw := range messages {
		msg, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		role, _ := msg["role"].(string)

		switch role {
		case "system":
			if text, ok := msg["content"].(string); ok {
				systemParts = append(systemParts, text)
			}
		case "user":
			flushToolResults()
			claudeMessages = append(claudeMessages, map[string]any{
				"role":    "user",
				"content": convertOpenAIContentToClaude(msg["content"]),
			})
		case "assistant":
			flushToolResults()
			content := convertOpenAIContentToClaude(msg["content"])
			contentList, _ := content.([]any)
			if toolCalls, ok := msg["tool_calls"].([]any); ok {
				for _, tc := range toolCalls {
					tcm, ok := tc.(map[string]any)
					if !ok {
						continue
					}
					fn, _ := tcm["function"].(map[string]any)
					name, _ := fn["name"].(string)
					argsStr, _ := fn["arguments"].(string)
					var input map[string]any
					_ = json.Unmarshal([]byte(argsStr), &input)
					id, _ := tcm["id"].(string)
					contentList = append(contentList, map[string]any{
						"type":  "tool_use",
						"id":    id,
						"name":  name,
						"input": input,
					})
				}
			}
			claudeMessages = append(claudeMessages, map[string]any{
				"role":    "assistant",
				"content": contentList,
			})
		case "tool":
			toolCallID, _ := msg["tool_call_id"].(string)
			pendingToolResults = append(pendingToolResults, map[string]any{
				"type":        "tool_result",
				"tool_use_id": toolCallID,
				"content":     msg["content"],
			})
		}
	}
	flushToolResults()

	if len(systemParts) > 0 {
		out["system"] = strings.Join(systemParts, "\n\n")
	}
	out["messages"] = claudeMessages

	if tools, ok := src["tools"].([]any); ok {
		out["tools"] = convertOpenAIToolsToClaude(tools)
	}

	if choice, ok := src["tool_choice"]; ok {
		out["tool_choice"] = convertToolChoice(choice)
	}

	maxTokens := 8192.0
	if v, ok := numberField(src, "max_tokens"); ok {
		maxTokens = v
	} else if v, ok := numberField(src, "max_completion_tokens"); ok {
		maxTokens = v
	}
	out["max_tokens"] = maxTokens

	if v, ok := src["temperature"]; ok {
		out["temperature"] = v
	}
	if v, ok := src["top_p"]; ok {
		out["top_p"] = v
	}
	if v, ok := src["stop"]; ok {
		switch s := v.(type) {
		case string:
			out["stop_sequences"] = []any{s}
		case []any:
			out["stop_sequences"] = s
		}
	}
	if v, ok := src["thinking"]; ok {
		out["thinking"] = v
	}

	out["stream"] = stream

	return json.Marshal(out)
}

func numberField(m map[string]any, key string) (float64, bool) {
	v, ok := m[key]
	if !ok {
		return 0, false
	}
	f, ok := v.(float64)
	return f, ok
}

func convertOpenAIContentToClaude(content any) any {
	switch c := content.(type) {
	case string:
		return []any{map[string]any{"type": "text", "text": c}}
	case []any:
		var out []any
		for _, part := range c {
			pm, ok := part.(map[string]any)
			if !ok {
				continue
			}
			switch pm["type"] {
			case "text":
				out = append(out, map[string]any{"type": "text", "text": pm["text"]})
			case "image_url":
				imgURL, _ := pm["image_url"].(map[string]any)
				url, _ := imgURL["url"].(string)
				out = append(out, map[string]any{"type": "image", "source": imageSourceFromURL(url)})
			}
		}
		return out
	default:
		return []any{}
	}
}

func imageSourceFromURL(url string) map[string]any {
	if strings.HasPrefix(url, "data:") {
		// data:<media-type>;base64,<data>
		rest := strings.TrimPrefix(url, "data:")
		parts := strings.SplitN(rest, ",", 2)
		mediaType := "application/octet-stream"
		data := ""
		if len(parts) == 2 {
			meta := strings.TrimSuffix(parts[0], ";base64")
			if meta != "" {
				mediaType = meta
			}
			data = parts[1]
		}
		return map[string]any{"type": "base64", "media_type": mediaType, "data": data}
	}
	return map[string]any{"type": "url", "url": url}
}

func convertOpenAIToolsToClaude(tools []any) []any {
	var out []any
	for _, t := range tools {
		tm, ok := t.(map[string]any)
		if !ok {
			continue
		}
		fn, _ := tm["function"].(map[string]any)
		out = append(out, map[string]any{
			"name":         fn["name"],
			"description":  fn["description"],
			"input_schema": fn["parameters"],
		})
	}
	return out
}

func convertToolChoice(choice any) any {
	switch c := choice.(type) {
	case string:
		switch c {
		case "none":
			return map[string]any{"type": "none"}
		case "required":
			return map[string]any{"type": "any"}
		default:
			return map[string]any{"type": "auto"}
		}
	case map[string]any:
		fn, _ := c["function"].(map[string]any)
		return map[string]any{"type": "tool", "name": fn["name"]}
	default:
		return map[string]any{"type": "auto"}
	}
}
