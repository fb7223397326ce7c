package openai_provider

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/mohammad-safakhou/bookrec/provider"
	"github.com/sashabaranov/go-openai"
)

const (
	// GeminiBaseURL is Google's OpenAI-compatible endpoint for Gemini models.
	GeminiBaseURL = "https://generativelanguage.googleapis.com/v1beta/openai"
	OpenAIBaseURL = "https://api.openai.com/v1"
)

// client implements provider.Provider on top of an OpenAI-compatible chat API
type client struct {
	baseURL    string
	model      string
	httpClient *http.Client
}

// NewClient creates a chat client for the given endpoint and model.
// An empty baseURL falls back to the public OpenAI endpoint.
func NewClient(baseURL, model string, timeout time.Duration) provider.Provider {
	if baseURL == "" {
		baseURL = OpenAIBaseURL
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		model:      model,
		httpClient: &http.Client{Timeout: timeout},
	}
}

func (c *client) Model() string { return c.model }

// Complete sends one chat completion request using the caller's credential.
func (c *client) Complete(ctx context.Context, credential string, req provider.Request) (provider.Response, error) {
	if strings.TrimSpace(credential) == "" {
		return provider.Response{}, provider.ErrMissingCredential
	}
	cfg := openai.DefaultConfig(credential)
	cfg.BaseURL = c.baseURL
	cfg.HTTPClient = c.httpClient
	api := openai.NewClientWithConfig(cfg)

	messages := make([]openai.ChatCompletionMessage, 0, 2)
	if req.SystemPrompt != "" {
		messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: req.SystemPrompt})
	}
	messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: req.UserPrompt})

	chatReq := openai.ChatCompletionRequest{
		Model:       c.model,
		Messages:    messages,
		Temperature: float32(req.Temperature),
		MaxTokens:   req.MaxTokens,
	}
	if req.JSON {
		chatReq.ResponseFormat = &openai.ChatCompletionResponseFormat{Type: openai.ChatCompletionResponseFormatTypeJSONObject}
	}

	resp, err := api.CreateChatCompletion(ctx, chatReq)
	if err != nil {
		return provider.Response{}, fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return provider.Response{}, fmt.Errorf("no choices in response")
	}
	return provider.Response{
		Text:             resp.Choices[0].Message.Content,
		Model:            resp.Model,
		PromptTokens:     resp.Usage.PromptTokens,
		CompletionTokens: resp.Usage.CompletionTokens,
	}, nil
}
