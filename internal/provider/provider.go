// Package provider holds the model-service clients. Every configured
// endpoint speaks one of two wire dialects: OpenAI-style chat
// completions (OpenAI, Ollama, vLLM, Groq, OVH, ...) or the Anthropic
// Messages API.
package provider

import (
	"context"
	"fmt"
)

type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

type CompletionRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
	Temperature *float64  `json:"temperature,omitempty"`
}

type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

type CompletionResponse struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Content string `json:"content"`
	Usage   Usage  `json:"usage"`
}

// Provider is one configured model service. Complete blocks until the
// model produces a full turn. WithCredential returns a copy of the
// provider bound to a different credential, so credential rotation
// never mutates a provider shared by in-flight requests.
type Provider interface {
	ID() string
	Complete(ctx context.Context, req *CompletionRequest) (*CompletionResponse, error)
	WithCredential(cred string) Provider
	Models() []ModelInfo
}

// APIError is a non-2xx answer from a model service. The failover
// layer inspects the status code to decide between rotating
// credentials and giving up.
type APIError struct {
	Provider   string
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s api error (status %d): %s", e.Provider, e.StatusCode, e.Message)
}
