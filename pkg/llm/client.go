// Package llm provides the remote model client used by the query layer
package llm

import (
	"context"
	"fmt"
	"strings"
)

// Backend selects which hosted service and credential pair a request uses
type Backend string

const (
	BackendOpenAI Backend = "openai"
	BackendAzure  Backend = "azure"
)

// ParseBackend converts a user supplied name into a Backend
func ParseBackend(s string) (Backend, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "openai":
		return BackendOpenAI, nil
	case "azure", "azureopenai", "azure-openai", "azure_openai":
		return BackendAzure, nil
	default:
		return "", NewError(KindInvalidRequest, fmt.Errorf("unknown backend %q", s))
	}
}

// CompletionRequest is a single system+user exchange sent to the remote model
type CompletionRequest struct {
	Backend      Backend
	Model        string
	SystemPrompt string
	UserPrompt   string
	// ImageURL is an http(s) or data: URL; empty when the prompt has no image
	ImageURL string
	Options  map[string]any
}

// Completer defines the interface for interacting with large language models
type Completer interface {
	// Complete sends one request to the model and returns the reply text
	Complete(ctx context.Context, req CompletionRequest) (string, error)
}
