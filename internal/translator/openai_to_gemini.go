package translator

import (
	"encoding/json"
	"strings"
)

// openAIToGeminiRequest converts an OpenAI-style chat completion request
// body into a Gemini generateContent request body.
func openAIToGeminiRequest(model string, raw []byte, stream bool) ([]byte, error) {
	var src map[string]any
	if err := json.Unmarshal(raw, &src); err != nil {
		return nil, err
	}

	out := map[string]any{}

	messages, _ := src["messages"].([]any)

	var systemParts []string
	var contents []any
	var pendingFunctionResponses []any

	flushFunctionResponses := func() {
		if len(pendingFunctionResponses) > 0 {
			contents = append(contents, map[string]any{
				"role":  "user",
				"parts": pendingFunctionResponses,
			})
			pendingFunctionResponses = nil
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
			flushFunctionResponses()
			parts := convertOpenAIContentToGemini(msg["content"])
			appendOrMergeGeminiContent(&contents, "user", parts)
		case "assistant":
			flushFunctionResponses()
			parts := convertOpenAIContentToGemini(msg["content"])
			if toolCalls, ok := msg["tool_calls"].([]any); ok {
				for _, tc := range toolCalls {
					tcm, ok := tc.(map[string]any)
					if !ok {
						continue
					}
					fn, _ := tcm["function"].(map[string]any)
					name, _ := fn["name"].(string)
					argsStr, _ := fn["arguments"].(string)
					var args map[string]any
					_ = json.Unmarshal([]byte(argsStr), &args)
					parts = append(parts, map[string]any{
						"functionCall": map[string]any{"name": name, "args": args},
					})
				}
			}
			appendOrMergeGeminiContent(&contents, "model", parts)
		case "tool":
			name, _ := msg["name"].(string)
			pendingFunctionResponses = append(pendingFunctionResponses, map[string]any{
				"functionResponse": map[string]any{
					"name":     name,
					"response": map[string]any{"result": msg["content"]},
				},
			})
		}
	}
	flushFunctionResponses()

	if len(systemParts) > 0 {
		out["systemInstruction"] = map[string]any{
			"parts": []any{map[string]any{"text": strings.Join(systemParts, "\n\n")}},
		}
	}
	out["contents"] = contents

	if tools, ok := src["tools"].([]any); ok {
		out["tools"] = convertOpenAIToolsToGemini(tools)
	}

	generationConfig := map[string]any{}
	if v, ok := src["temperature"]; ok {
		generationConfig["temperature"] = v
	}
	if v, ok := src["top_p"]; ok {
		generationConfig["topP"] = v
	}
	if v, ok := numberField(src, "max_tokens"); ok {
		generationConfig["maxOutputTokens"] = v
	} else if v, ok := numberField(src, "max_completion_tokens"); ok {
		generationConfig["maxOutputTokens"] = v
	}
	if v, ok := src["stop"]; ok {
		switch s := v.(type) {
		case string:
			generationConfig["stopSequences"] = []any{s}
		case []any:
			generationConfig["stopSequences"] = s
		}
	}
	if v, ok := src["thinking"]; ok {
		generationConfig["thinkingConfig"] = v
	}
	if len(generationConfig) > 0 {
		out["generationConfig"] = generationConfig
	}

	_ = stream // gemini streaming is selected by endpoint (streamGenerateContent), not a body field
	_ = model

	return json.Marshal(out)
}

// appendOrMergeGeminiContent merges consecutive same-role turns into one
// Gemini content entry, since Gemini does not allow adjacent same-role
// turns the way OpenAI's per-message list does.
func appendOrMergeGeminiContent(contents *[]any, role string, parts []any) {
	if len(*contents) > 0 {
		last, ok := (*contents)[len(*contents)-1].(map[string]any)
		if ok && last["role"] == role {
			existing, _ := last["parts"].([]any)
			last["parts"] = append(existing, parts...)
			return
		}
	}
	*contents = append(*contents, map[string]any{"role": role, "parts": parts})
}

func convertOpenAIContentToGemini(content any) []any {
	switch c := content.(type) {
	case string:
		return []any{map[string]any{"text": c}}
	case []any:
		var out []any
		for _, part := range c {
			pm, ok := part.(map[string]any)
			if !ok {
				continue
			}
			switch pm["type"] {
			case "text":
				out = append(out, map[string]any{"text": pm["text"]})
			case "image_url":
				imgURL, _ := pm["image_url"].(map[string]any)
				url, _ := imgURL["url"].(string)
				out = append(out, geminiPartFromURL(url))
			}
		}
		return out
	default:
		return []any{}
	}
}

func geminiPartFromURL(url string) map[string]any {
	if strings.HasPrefix(url, "data:") {
		rest := strings.TrimPrefix(url, "data:")
		parts := strings.SplitN(rest, ",", 2)
		mimeType := "application/octet-stream"
		data := ""
		if len(parts) == 2 {
			meta := strings.TrimSuffix(parts[0], ";base64")
			if meta != "" {
				mimeType = meta
			}
			data = parts[1]
		}
		return map[string]any{"inlineData": map[string]any{"mimeType": mimeType, "data": data}}
	}
	return map[string]any{"text": url}
}

func convertOpenAIToolsToGemini(tools []any) []any {
	var declarations []any
	for _, t := range tools {
		tm, ok := t.(map[string]any)
		if !ok {
			continue
		}
		fn, _ := tm["function"].(map[string]any)
		declarations = append(declarations, map[string]any{
			"name":        fn["name"],
			"description": fn["description"],
			"parameters":  fn["parameters"],
		})
	}
	if len(declarations) == 0 {
		return nil
	}
	return []any{map[string]any{"functionDeclarations": declarations}}
}
