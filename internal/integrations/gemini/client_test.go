package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"google.golang.org/genai"

	"vehicle-advisor/internal/domain"
)

type fakeTokens struct {
	token string
	err   error
	calls int
}

func (f *fakeTokens) Token(context.Context) (string, error) {
	f.calls++
	return f.token, f.err
}

type fakeGenerator struct {
	resp     *genai.GenerateContentResponse
	err      error
	model    string
	contents []*genai.Content
	config   *genai.GenerateContentConfig
}

func (f *fakeGenerator) GenerateContent(_ context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	f.model = model
	f.contents = contents
	f.config = config
	return f.resp, f.err
}

func textResponse(text string, reason genai.FinishReason) *genai.GenerateContentResponse {
	return &genai.GenerateContentResponse{Candidates: []*genai.Candidate{{
		Content:      genai.NewContentFromText(text, genai.RoleModel),
		FinishReason: reason,
	}}}
}

func newTestClient(t *testing.T, g *fakeGenerator, opts ...Option) *Client {
	t.Helper()
	c, err := NewClient(&fakeTokens{token: "key"}, append([]Option{withGenerator(g)}, opts...)...)
	require.NoError(t, err)
	return c
}

func TestNewClient_NilTokens(t *testing.T) {
	_, err := NewClient(nil)
	require.ErrorContains(t, err, "nil")
}

func TestChat_MapsRolesAndSchema(t *testing.T) {
	g := &fakeGenerator{resp: textResponse(`{"status":"ASKING_QUESTION"}`, genai.FinishReasonStop)}
	c := newTestClient(t, g, WithTemperature(0.1))

	out, err := c.Chat(context.Background(), domain.ChatRequest{
		Model: "gemini-2.5-flash",
		Messages: []domain.ChatMessage{
			{Role: "system", Content: "policy"},
			{Role: "system", Content: "candidates"},
			{Role: "assistant", Content: "Terrain?"},
			{Role: "user", Content: "Trails"},
		},
		Output: domain.OutputSchema{Name: "turn", Schema: json.RawMessage(`{"type":"object","required":["status"]}`)},
	})
	require.NoError(t, err)
	require.Equal(t, `{"status":"ASKING_QUESTION"}`, out)

	require.Equal(t, "gemini-2.5-flash", g.model)
	require.Len(t, g.contents, 2)
	require.Equal(t, string(genai.RoleModel), g.contents[0].Role)
	require.Equal(t, "Terrain?", g.contents[0].Parts[0].Text)
	require.Equal(t, string(genai.RoleUser), g.contents[1].Role)

	require.Equal(t, "policy\n\ncandidates", g.config.SystemInstruction.Parts[0].Text)
	require.Equal(t, "application/json", g.config.ResponseMIMEType)
	require.Equal(t, map[string]any{"type": "object", "required": []any{"status"}}, g.config.ResponseJsonSchema)
	require.InDelta(t, 0.1, *g.config.Temperature, 0.0001)
}

func TestChat_WithoutSchema(t *testing.T) {
	g := &fakeGenerator{resp: textResponse("hello", genai.FinishReasonStop)}
	c := newTestClient(t, g)
	out, err := c.Chat(context.Background(), domain.ChatRequest{
		Model:    "m",
		Messages: []domain.ChatMessage{{Role: "user", Content: "hi"}},
	})
	require.NoError(t, err)
	require.Equal(t, "hello", out)
	require.Nil(t, g.config.SystemInstruction)
	require.Empty(t, g.config.ResponseMIMEType)
	require.Nil(t, g.config.ResponseJsonSchema)
	require.Nil(t, g.config.Temperature)
}

func TestChat_Errors(t *testing.T) {
	user := []domain.ChatMessage{{Role: "user", Content: "hi"}}
	cases := []struct {
		name    string
		gen     *fakeGenerator
		req     domain.ChatRequest
		wantErr string
	}{
		{"blank model", &fakeGenerator{}, domain.ChatRequest{Messages: user}, "model"},
		{"only system", &fakeGenerator{}, domain.ChatRequest{Model: "m", Messages: []domain.ChatMessage{{Role: "system", Content: "x"}}}, "at least one"},
		{"bad schema", &fakeGenerator{}, domain.ChatRequest{Model: "m", Messages: user, Output: domain.OutputSchema{Schema: json.RawMessage(`{`)}}, "output schema"},
		{"sdk error", &fakeGenerator{err: errors.New("quota exceeded")}, domain.ChatRequest{Model: "m", Messages: user}, "quota exceeded"},
		{"no candidates", &fakeGenerator{resp: &genai.GenerateContentResponse{}}, domain.ChatRequest{Model: "m", Messages: user}, "no candidates"},
		{"truncated", &fakeGenerator{resp: textResponse(`{"sta`, genai.FinishReasonMaxTokens)}, domain.ChatRequest{Model: "m", Messages: user}, "truncated"},
		{"empty text", &fakeGenerator{resp: textResponse("  ", genai.FinishReasonStop)}, domain.ChatRequest{Model: "m", Messages: user}, "empty response"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := newTestClient(t, tc.gen).Chat(context.Background(), tc.req)
			require.ErrorContains(t, err, tc.wantErr)
		})
	}
}

func TestChat_RetriesClientBuildAfterTokenError(t *testing.T) {
	tokens := &fakeTokens{token: "key", err: errors.New("ssm unavailable")}
	c, err := NewClient(tokens)
	require.NoError(t, err)

	req := domain.ChatRequest{Model: "m", Messages: []domain.ChatMessage{{Role: "user", Content: "hi"}}}
	_, err = c.Chat(context.Background(), req)
	require.ErrorContains(t, err, "ssm unavailable")
	require.Nil(t, c.models)

	tokens.err = nil
	g, err := c.generator(context.Background())
	require.NoError(t, err)
	require.NotNil(t, g)
	require.Equal(t, 2, tokens.calls)

	again, err := c.generator(context.Background())
	require.NoError(t, err)
	require.Same(t, g, again)
	require.Equal(t, 2, tokens.calls)
}
