package llm

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// reservedOptions cannot be overridden through the open options map
var reservedOptions = map[string]bool{
	"model":    true,
	"messages": true,
	"stream":   true,
}

func buildParams(req CompletionRequest) (openai.ChatCompletionNewParams, []option.RequestOption, error) {
	parts := []openai.ChatCompletionContentPartUnionParam{
		openai.TextContentPart(req.UserPrompt),
	}
	if req.ImageURL != "" {
		parts = append(parts, openai.ImageContentPart(openai.ChatCompletionContentPartImageImageURLParam{
			URL: req.ImageURL,
		}))
	}

	params := openai.ChatCompletionNewParams{
		Model: openai.ChatModel(req.Model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(req.SystemPrompt),
			openai.UserMessage(parts),
		},
	}

	extra, err := applyOptions(&params, req.Options)
	if err != nil {
		return params, nil, &Error{Kind: KindInvalidRequest, Backend: req.Backend, Err: err}
	}
	return params, extra, nil
}

// applyOptions maps well-known sampling options onto typed params and forwards
// everything else verbatim into the request body.
func applyOptions(params *openai.ChatCompletionNewParams, opts map[string]any) ([]option.RequestOption, error) {
	keys := make([]string, 0, len(opts))
	for k := range opts {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var extra []option.RequestOption
	for _, key := range keys {
		value := opts[key]
		if reservedOptions[key] {
			return nil, fmt.Errorf("option %q cannot be set", key)
		}

		switch key {
		case "temperature", "top_p", "presence_penalty", "frequency_penalty":
			f, err := toFloat(key, value)
			if err != nil {
				return nil, err
			}
			switch key {
			case "temperature":
				params.Temperature = openai.Float(f)
			case "top_p":
				params.TopP = openai.Float(f)
			case "presence_penalty":
				params.PresencePenalty = openai.Float(f)
			case "frequency_penalty":
				params.FrequencyPenalty = openai.Float(f)
			}
		case "max_tokens", "max_completion_tokens", "seed":
			n, err := toInt(key, value)
			if err != nil {
				return nil, err
			}
			switch key {
			case "max_tokens":
				params.MaxTokens = openai.Int(n)
			case "max_completion_tokens":
				params.MaxCompletionTokens = openai.Int(n)
			case "seed":
				params.Seed = openai.Int(n)
			}
		default:
			extra = append(extra, option.WithJSONSet(key, value))
		}
	}
	return extra, nil
}

func toFloat(key string, v any) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case json.Number:
		f, err := n.Float64()
		if err != nil {
			return 0, fmt.Errorf("option %q: %w", key, err)
		}
		return f, nil
	default:
		return 0, fmt.Errorf("option %q must be a number, got %T", key, v)
	}
}

func toInt(key string, v any) (int64, error) {
	switch n := v.(type) {
	case int:
		return int64(n), nil
	case int64:
		return n, nil
	case float64:
		if n != math.Trunc(n) {
			return 0, fmt.Errorf("option %q must be an integer, got %v", key, n)
		}
		return int64(n), nil
	case json.Number:
		i, err := n.Int64()
		if err != nil {
			return 0, fmt.Errorf("option %q: %w", key, err)
		}
		return i, nil
	default:
		return 0, fmt.Errorf("option %q must be an integer, got %T", key, v)
	}
}
