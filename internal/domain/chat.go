package domain

import "encoding/json"

// ChatMessage is the provider-agnostic chat message shape used by the
// reasoning gateway and the LLM integrations.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// OutputSchema names a JSON schema the model output must conform to.
type OutputSchema struct {
	Name   string
	Schema json.RawMessage
}

// ChatRequest is one structured-output completion request.
type ChatRequest struct {
	Model    string
	Messages []ChatMessage
	Output   OutputSchema
}
