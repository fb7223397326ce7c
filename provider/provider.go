package provider

import (
	"context"
	"errors"
)

// Client names a planning model backend
type Client string

const (
	OpenAI Client = "openai"
	Gemini Client = "gemini"
)

// ErrMissingCredential is returned when a call is made without an API credential.
var ErrMissingCredential = errors.New("missing API credential")

// Request is a single planning-model completion request.
type Request struct {
	SystemPrompt string
	UserPrompt   string
	Temperature  float64
	MaxTokens    int
	JSON         bool // ask the backend for a JSON object response
}

// Response carries the model text and token accounting.
type Response struct {
	Text             string
	Model            string
	PromptTokens     int
	CompletionTokens int
}

// Provider is the interface that all planning model implementations must satisfy.
// The credential is supplied per call and never stored.
type Provider interface {
	Complete(ctx context.Context, credential string, req Request) (Response, error)
	Model() string
}
