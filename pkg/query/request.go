package query

import (
	"errors"
	"fmt"
	"maps"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/dan-solli/airesponse/pkg/llm"
)

// DefaultMaxParallel bounds concurrent remote calls per request
const DefaultMaxParallel = 100

// DefaultOptions are applied for keys the caller did not set
func DefaultOptions() map[string]any {
	return map[string]any{
		"temperature": 0.7,
		"max_tokens":  4000,
	}
}

var validate = validator.New()

// Prompt is one user turn. Image is optional and may be a local file path,
// an http(s) URL or a data: URL.
type Prompt struct {
	Text  string `json:"text" validate:"required_without=Image"`
	Image string `json:"image,omitempty"`
}

// Prompts builds text-only prompts
func Prompts(texts ...string) []Prompt {
	out := make([]Prompt, len(texts))
	for i, t := range texts {
		out[i] = Prompt{Text: t}
	}
	return out
}

// Request is everything that determines the model's responses. Two requests
// with equal fields (images compared by content) share a cache entry.
type Request struct {
	SystemPrompt string         `json:"system_prompt" validate:"required"`
	UserPrompts  []Prompt       `json:"user_prompts" validate:"min=1,dive"`
	Model        string         `json:"model" validate:"required"`
	Backend      llm.Backend    `json:"backend" validate:"required,oneof=openai azure"`
	Options      map[string]any `json:"options,omitempty"`
}

// RawResponse holds one reply per user prompt, in prompt order
type RawResponse []string

// CacheEntry is the value persisted in the store under the request key
type CacheEntry struct {
	Key       string    `json:"key"`
	Responses []string  `json:"responses"`
	StoredAt  time.Time `json:"stored_at"`
}

// normalize returns a copy with the backend name canonicalized and defaults
// merged into Options
func (r Request) normalize(defaults map[string]any) Request {
	out := r
	if b, err := llm.ParseBackend(string(r.Backend)); err == nil {
		out.Backend = b
	}

	out.Options = make(map[string]any, len(defaults)+len(r.Options))
	maps.Copy(out.Options, defaults)
	maps.Copy(out.Options, r.Options)

	out.UserPrompts = append([]Prompt(nil), r.UserPrompts...)
	return out
}

// Validate checks required fields
func (r Request) Validate() error {
	if err := validate.Struct(r); err != nil {
		return llm.NewError(llm.KindInvalidRequest, describeValidation(err))
	}
	return nil
}

func describeValidation(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}

	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		field := strings.TrimPrefix(fe.Namespace(), "Request.")
		if fe.Param() != "" {
			msgs = append(msgs, fmt.Sprintf("%s failed %s=%s", field, fe.Tag(), fe.Param()))
		} else {
			msgs = append(msgs, fmt.Sprintf("%s failed %s", field, fe.Tag()))
		}
	}
	return errors.New(strings.Join(msgs, "; "))
}
