package gateway

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"vehicle-advisor/internal/domain"
)

// LLMClient performs one structured-output chat completion.
type LLMClient interface {
	Chat(ctx context.Context, req domain.ChatRequest) (string, error)
}

// LLM is a Gateway backed by a chat model that is instructed to follow the
// decision rules and to answer in ResponseSchema.
type LLM struct {
	client LLMClient
	model  string
}

// NewLLM creates an LLM gateway.
func NewLLM(client LLMClient, model string) (*LLM, error) {
	if client == nil {
		return nil, errors.New("gateway: llm client must not be nil")
	}
	model = strings.TrimSpace(model)
	if model == "" {
		return nil, errors.New("gateway: model must not be empty")
	}
	return &LLM{client: client, model: model}, nil
}

// Decide sends the turn to the model and decodes its answer.
func (g *LLM) Decide(ctx context.Context, req Request) (Response, error) {
	messages, err := buildPromptMessages(req)
	if err != nil {
		return Response{}, err
	}
	raw, err := g.client.Chat(ctx, domain.ChatRequest{
		Model:    g.model,
		Messages: messages,
		Output:   domain.OutputSchema{Name: SchemaName, Schema: ResponseSchema},
	})
	if err != nil {
		return Response{}, fmt.Errorf("gateway: chat: %w", err)
	}
	return Decode(raw)
}
