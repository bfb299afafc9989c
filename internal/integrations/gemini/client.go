// Package gemini adapts Google's GenAI SDK to the chat interface used by the
// reasoning gateway.
package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"google.golang.org/genai"

	"vehicle-advisor/internal/domain"
)

// TokenSource supplies the API key.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// generator is the subset of *genai.Models used by Client.
type generator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// Client sends structured chat requests to Gemini. The SDK client is built
// lazily on first use so the API key is only read when needed; a failed build
// is retried on the next call.
type Client struct {
	tokens      TokenSource
	temperature *float32

	mu     sync.Mutex
	models generator
}

type Option func(*Client)

// WithTemperature pins the sampling temperature.
func WithTemperature(t float32) Option {
	return func(c *Client) { c.temperature = &t }
}

// withGenerator replaces the SDK; used in tests.
func withGenerator(g generator) Option {
	return func(c *Client) { c.models = g }
}

// NewClient creates a Client that authenticates with keys from tokens.
func NewClient(tokens TokenSource, opts ...Option) (*Client, error) {
	if tokens == nil {
		return nil, errors.New("gemini: token source must not be nil")
	}
	c := &Client{tokens: tokens}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func (c *Client) generator(ctx context.Context) (generator, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.models != nil {
		return c.models, nil
	}
	key, err := c.tokens.Token(ctx)
	if err != nil {
		return nil, err
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  key,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("gemini: create client: %w", err)
	}
	c.models = client.Models
	return c.models, nil
}

// Chat runs one completion. System messages become the system instruction;
// assistant turns are sent with the model role.
func (c *Client) Chat(ctx context.Context, req domain.ChatRequest) (string, error) {
	if strings.TrimSpace(req.Model) == "" {
		return "", errors.New("gemini: model must not be empty")
	}
	system, contents := splitMessages(req.Messages)
	if len(contents) == 0 {
		return "", errors.New("gemini: at least one user or assistant message is required")
	}

	models, err := c.generator(ctx)
	if err != nil {
		return "", err
	}

	config := &genai.GenerateContentConfig{Temperature: c.temperature}
	if system != "" {
		config.SystemInstruction = genai.NewContentFromText(system, genai.RoleUser)
	}
	if len(req.Output.Schema) > 0 {
		var schema any
		if err := json.Unmarshal(req.Output.Schema, &schema); err != nil {
			return "", fmt.Errorf("gemini: decode output schema: %w", err)
		}
		config.ResponseMIMEType = "application/json"
		config.ResponseJsonSchema = schema
	}

	resp, err := models.GenerateContent(ctx, req.Model, contents, config)
	if err != nil {
		return "", fmt.Errorf("gemini: generate content: %w", err)
	}
	if resp == nil || len(resp.Candidates) == 0 {
		return "", errors.New("gemini: no candidates in response")
	}
	if fr := resp.Candidates[0].FinishReason; fr == genai.FinishReasonMaxTokens {
		return "", errors.New("gemini: completion truncated at token limit")
	}
	text := resp.Text()
	if strings.TrimSpace(text) == "" {
		return "", errors.New("gemini: empty response text")
	}
	return text, nil
}

func splitMessages(messages []domain.ChatMessage) (string, []*genai.Content) {
	var system []string
	contents := make([]*genai.Content, 0, len(messages))
	for _, m := range messages {
		switch m.Role {
		case "system":
			system = append(system, m.Content)
		case "assistant":
			contents = append(contents, genai.NewContentFromText(m.Content, genai.RoleModel))
		default:
			contents = append(contents, genai.NewContentFromText(m.Content, genai.RoleUser))
		}
	}
	return strings.Join(system, "\n\n"), contents
}
