package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"vehicle-advisor/internal/domain"
)

type capturingClient struct {
	answer string
	err    error
	req    domain.ChatRequest
	calls  int
}

func (c *capturingClient) Chat(_ context.Context, req domain.ChatRequest) (string, error) {
	c.calls++
	c.req = req
	return c.answer, c.err
}

func testRequest() Request {
	return Request{
		Class: domain.Bicycle,
		History: []domain.ConversationTurn{
			{Question: "What type of terrain will you primarily ride on?", Answer: "Mountain trails"},
		},
		Candidates: []domain.Candidate{
			{ID: "bike_456", Name: "Mountain Explorer", Attributes: domain.Attributes{Type: "Mountain", Terrain: []string{"Off-road"}}, Price: 90000},
			{ID: "bike_202", Name: "Gravel Adventurer", Attributes: domain.Attributes{Type: "Gravel"}},
		},
		LatestAnswer: "Mountain trails",
	}
}

func TestNewLLM_Validates(t *testing.T) {
	_, err := NewLLM(nil, "gpt-4o-mini")
	require.Error(t, err)
	_, err = NewLLM(&capturingClient{}, " ")
	require.Error(t, err)
}

func TestDecide_SendsContractAndDecodes(t *testing.T) {
	client := &capturingClient{answer: `{"status":"ASKING_QUESTION","next_question":"Full or front suspension?","next_question_options":["Full","Front"],"updated_candidate_ids":["bike_456","bike_202"],"final_recommendation":null,"error_message":null}`}
	g, err := NewLLM(client, "gpt-4o-mini")
	require.NoError(t, err)

	resp, err := g.Decide(context.Background(), testRequest())
	require.NoError(t, err)
	require.Equal(t, StatusAsking, resp.Decision.Status())

	require.Equal(t, "gpt-4o-mini", client.req.Model)
	require.Equal(t, SchemaName, client.req.Output.Name)
	require.JSONEq(t, string(ResponseSchema), string(client.req.Output.Schema))

	msgs := client.req.Messages
	require.Len(t, msgs, 4)
	require.Equal(t, "system", msgs[0].Role)
	require.Contains(t, msgs[0].Content, "bicycle recommendation assistant")
	require.Contains(t, msgs[0].Content, "Output Contract:")
	require.Contains(t, msgs[1].Content, `"id":"bike_456"`)
	require.NotContains(t, msgs[1].Content, "90000")
	require.Equal(t, domain.ChatMessage{Role: "assistant", Content: "What type of terrain will you primarily ride on?"}, msgs[2])
	require.Equal(t, domain.ChatMessage{Role: "user", Content: "Mountain trails"}, msgs[3])
}

func TestDecide_MotorcyclePersona(t *testing.T) {
	client := &capturingClient{answer: `{"status":"NO_MATCH_FOUND","next_question":null,"next_question_options":null,"updated_candidate_ids":[],"final_recommendation":null,"error_message":null}`}
	g, err := NewLLM(client, "m")
	require.NoError(t, err)

	req := testRequest()
	req.Class = domain.Motorcycle
	_, err = g.Decide(context.Background(), req)
	require.NoError(t, err)
	require.Contains(t, client.req.Messages[0].Content, "Indian market")
	require.Contains(t, client.req.Messages[0].Content, "engine_displacement")
}

func TestDecide_TransportError(t *testing.T) {
	g, err := NewLLM(&capturingClient{err: errors.New("timeout")}, "m")
	require.NoError(t, err)
	_, err = g.Decide(context.Background(), testRequest())
	require.Error(t, err)
	require.Contains(t, err.Error(), "timeout")
}

func TestDecide_MalformedOutputIsValidationError(t *testing.T) {
	g, err := NewLLM(&capturingClient{answer: "I think the Mountain Explorer."}, "m")
	require.NoError(t, err)
	_, err = g.Decide(context.Background(), testRequest())
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
}

func TestRequest_JSONShape(t *testing.T) {
	raw, err := json.Marshal(testRequest())
	require.NoError(t, err)
	var m map[string]any
	require.NoError(t, json.Unmarshal(raw, &m))
	require.Contains(t, m, "conversation_history")
	require.Contains(t, m, "candidates")
	require.Equal(t, "Mountain trails", m["latest_answer"])
}

func TestPolicyPrompt_IncludesRules(t *testing.T) {
	content := buildPolicyPrompt(domain.Bicycle)
	require.Contains(t, content, "Role:")
	require.Contains(t, content, "Decision Rules:")
	require.Contains(t, content, "more than one viable bicycle")
	require.Contains(t, content, "exactly one viable bicycle")
	require.Contains(t, content, "NO_MATCH_FOUND")
	require.Contains(t, content, "Never invent candidates")
}
