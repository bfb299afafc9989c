package handler

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"github.com/aws/aws-lambda-go/events"
	"github.com/stretchr/testify/require"

	"vehicle-advisor/internal/conversation"
	"vehicle-advisor/internal/domain"
	"vehicle-advisor/internal/usecase"
)

type stubSessions struct {
	state conversation.State
	err   error

	calls []string
	class string
	id    string
	ans   string
}

func (s *stubSessions) Start(_ context.Context, class string) (string, conversation.State, error) {
	s.calls = append(s.calls, "start")
	s.class = class
	return "conv-1", s.state, s.err
}

func (s *stubSessions) Answer(_ context.Context, id, answer string) (conversation.State, error) {
	s.calls = append(s.calls, "answer")
	s.id, s.ans = id, answer
	return s.state, s.err
}

func (s *stubSessions) Reset(_ context.Context, id string) (conversation.State, error) {
	s.calls = append(s.calls, "reset")
	s.id = id
	return s.state, s.err
}

func (s *stubSessions) Get(id string) (conversation.State, error) {
	s.calls = append(s.calls, "get")
	s.id = id
	return s.state, s.err
}

func (s *stubSessions) End(_ context.Context, id string) error {
	s.calls = append(s.calls, "end")
	s.id = id
	return s.err
}

func makeEvent(method, path, body string) events.APIGatewayProxyRequest {
	return events.APIGatewayProxyRequest{
		HTTPMethod: method,
		Path:       path,
		Headers:    map[string]string{"Content-Type": "application/json"},
		Body:       body,
	}
}

func parseBody[T any](t *testing.T, body string) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal([]byte(body), &v))
	return v
}

func askingState() conversation.State {
	return conversation.State{
		Class:  domain.Bicycle,
		Status: conversation.StatusAsking,
		Candidates: []domain.Candidate{
			{ID: "bike_123", Name: "Hercules Roadeo A50", Brand: "Hercules", Price: 11999, PageURL: "https://example.com/a50"},
			{ID: "bike_456", Name: "Trek Marlin 5", Brand: "Trek"},
		},
		Question: "What type of terrain will you primarily ride on?",
	}
}

func newTestHandler(t *testing.T, s *stubSessions) *Handler {
	t.Helper()
	h, err := NewHandler(s)
	require.NoError(t, err)
	return h
}

func TestNewHandler_ValidatesDependency(t *testing.T) {
	_, err := NewHandler(nil)
	require.Error(t, err)
}

func TestHandle_StartConversation(t *testing.T) {
	s := &stubSessions{state: askingState()}
	h := newTestHandler(t, s)

	resp, err := h.Handle(context.Background(), makeEvent(http.MethodPost, "/conversations", `{"vehicleClass":"bicycle"}`))
	require.NoError(t, err)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	require.Equal(t, "bicycle", s.class)
	require.NotEmpty(t, resp.Headers["X-Correlation-Id"])

	out := parseBody[conversationResponse](t, resp.Body)
	require.Equal(t, "conv-1", out.ConversationID)
	require.Equal(t, "bicycle", out.VehicleClass)
	require.Equal(t, "ASKING", out.Status)
	require.NotNil(t, out.Question)
	require.Equal(t, "What type of terrain will you primarily ride on?", *out.Question)
	require.Len(t, out.Candidates, 2)
	require.Equal(t, "Hercules", out.Candidates[0].Brand)
	require.Equal(t, "https://example.com/a50", out.Candidates[0].PageURL)
	require.Empty(t, out.History)
	require.Nil(t, out.Recommendation)
	require.Nil(t, out.Error)
}

func TestHandle_AnswerConversation(t *testing.T) {
	state := askingState()
	state.History = []domain.ConversationTurn{{Question: "Terrain?", Answer: "hills"}}
	state.Question = "Budget?"
	state.Options = []string{"Under 15000", "Over 15000"}
	s := &stubSessions{state: state}
	h := newTestHandler(t, s)

	resp, err := h.Handle(context.Background(), makeEvent(http.MethodPost, "/conversations/conv-9/answers", `{"answer":"hills"}`))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "conv-9", s.id)
	require.Equal(t, "hills", s.ans)

	out := parseBody[conversationResponse](t, resp.Body)
	require.Equal(t, "conv-9", out.ConversationID)
	require.Equal(t, []string{"Under 15000", "Over 15000"}, out.Options)
	require.Len(t, out.History, 1)
}

func TestHandle_RecommendationIncludesCandidateDetails(t *testing.T) {
	state := askingState()
	state.Status = conversation.StatusRecommended
	state.Question = ""
	state.Candidates = state.Candidates[:1]
	state.Result = &domain.Recommendation{
		CandidateID: "bike_123",
		Details:     domain.RecommendationDetail{Name: "Hercules Roadeo A50", Brand: "Hercules"},
		Summary:     "Light and cheap.",
	}
	s := &stubSessions{state: state}
	h := newTestHandler(t, s)

	resp, err := h.Handle(context.Background(), makeEvent(http.MethodGet, "/conversations/conv-1", ""))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	out := parseBody[conversationResponse](t, resp.Body)
	require.Nil(t, out.Question)
	require.NotNil(t, out.Recommendation)
	require.Equal(t, "bike_123", out.Recommendation.ID)
	require.Equal(t, "Light and cheap.", out.Recommendation.Summary)
	require.Equal(t, float64(11999), out.Recommendation.Price)
	require.Equal(t, "https://example.com/a50", out.Recommendation.PageURL)
}

func TestHandle_RetryableErrorIsReported(t *testing.T) {
	state := askingState()
	state.Error = "reasoning gateway unavailable"
	state.Retryable = true
	h := newTestHandler(t, &stubSessions{state: state})

	resp, err := h.Handle(context.Background(), makeEvent(http.MethodPost, "/conversations/conv-1/answers", `{"answer":"hills"}`))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	out := parseBody[conversationResponse](t, resp.Body)
	require.True(t, out.Retryable)
	require.NotNil(t, out.Error)
	require.NotNil(t, out.Question)
}

func TestHandle_ResetAndEnd(t *testing.T) {
	s := &stubSessions{state: askingState()}
	h := newTestHandler(t, s)

	resp, err := h.Handle(context.Background(), makeEvent(http.MethodPost, "/conversations/conv-1/reset", ""))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = h.Handle(context.Background(), makeEvent(http.MethodDelete, "/conversations/conv-1", ""))
	require.NoError(t, err)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)
	require.Empty(t, resp.Body)
	require.Equal(t, []string{"reset", "end"}, s.calls)
}

func TestHandle_StagePrefixIsTolerated(t *testing.T) {
	s := &stubSessions{state: askingState()}
	h := newTestHandler(t, s)

	resp, err := h.Handle(context.Background(), makeEvent(http.MethodGet, "/prod/conversations/conv-7", ""))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "conv-7", s.id)
}

func TestHandle_Base64Body(t *testing.T) {
	s := &stubSessions{state: askingState()}
	h := newTestHandler(t, s)

	event := makeEvent(http.MethodPost, "/conversations", base64.StdEncoding.EncodeToString([]byte(`{"vehicleClass":"motorcycle"}`)))
	event.IsBase64Encoded = true
	resp, err := h.Handle(context.Background(), event)
	require.NoError(t, err)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	require.Equal(t, "motorcycle", s.class)
}

func TestHandle_InvalidBody(t *testing.T) {
	cases := []struct {
		name string
		path string
		body string
	}{
		{name: "not json", path: "/conversations", body: `not-json`},
		{name: "unknown field", path: "/conversations", body: `{"vehicleClass":"bicycle","extra":1}`},
		{name: "trailing data", path: "/conversations/conv-1/answers", body: `{"answer":"a"}{"answer":"b"}`},
		{name: "empty", path: "/conversations/conv-1/answers", body: ``},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := &stubSessions{}
			h := newTestHandler(t, s)

			resp, err := h.Handle(context.Background(), makeEvent(http.MethodPost, tc.path, tc.body))
			require.NoError(t, err)
			require.Equal(t, http.StatusBadRequest, resp.StatusCode)
			require.Empty(t, s.calls)

			out := parseBody[errorResponse](t, resp.Body)
			require.Equal(t, string(usecase.ErrorInvalidInput), out.Error)
		})
	}
}

func TestHandle_Routing(t *testing.T) {
	cases := []struct {
		name   string
		method string
		path   string
		status int
	}{
		{name: "unknown root", method: http.MethodGet, path: "/ask", status: http.StatusNotFound},
		{name: "empty path", method: http.MethodGet, path: "/", status: http.StatusNotFound},
		{name: "unknown action", method: http.MethodPost, path: "/conversations/conv-1/undo", status: http.StatusNotFound},
		{name: "too deep", method: http.MethodGet, path: "/conversations/conv-1/answers/2", status: http.StatusNotFound},
		{name: "list not allowed", method: http.MethodGet, path: "/conversations", status: http.StatusMethodNotAllowed},
		{name: "put not allowed", method: http.MethodPut, path: "/conversations/conv-1", status: http.StatusMethodNotAllowed},
		{name: "get answers not allowed", method: http.MethodGet, path: "/conversations/conv-1/answers", status: http.StatusMethodNotAllowed},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := &stubSessions{}
			h := newTestHandler(t, s)

			resp, err := h.Handle(context.Background(), makeEvent(tc.method, tc.path, ""))
			require.NoError(t, err)
			require.Equal(t, tc.status, resp.StatusCode)
			require.Empty(t, s.calls)
			require.NotEmpty(t, resp.Headers["X-Correlation-Id"])
		})
	}
}

func TestHandle_MapsUseCaseErrors(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{name: "invalid input", err: &usecase.Error{Code: usecase.ErrorInvalidInput, Reason: "empty_answer"}, status: http.StatusBadRequest, code: string(usecase.ErrorInvalidInput)},
		{name: "invalid answer", err: &usecase.Error{Code: usecase.ErrorInvalidAnswer, Reason: "moderation_flagged"}, status: http.StatusBadRequest, code: string(usecase.ErrorInvalidAnswer)},
		{name: "not found", err: &usecase.Error{Code: usecase.ErrorNotFound, Reason: "conversation_not_found"}, status: http.StatusNotFound, code: string(usecase.ErrorNotFound)},
		{name: "conflict", err: &usecase.Error{Code: usecase.ErrorConflict, Reason: "turn_in_progress"}, status: http.StatusConflict, code: string(usecase.ErrorConflict)},
		{name: "rate limited", err: &usecase.Error{Code: usecase.ErrorRateLimited, Reason: "moderation_rate_limited"}, status: http.StatusTooManyRequests, code: string(usecase.ErrorRateLimited)},
		{name: "upstream", err: &usecase.Error{Code: usecase.ErrorUpstream, Reason: "catalog_error"}, status: http.StatusBadGateway, code: string(usecase.ErrorUpstream)},
		{name: "internal", err: &usecase.Error{Code: usecase.ErrorInternal, Reason: "catalog_empty"}, status: http.StatusInternalServerError, code: string(usecase.ErrorInternal)},
		{name: "unexpected", err: errors.New("boom"), status: http.StatusInternalServerError, code: string(usecase.ErrorInternal)},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := newTestHandler(t, &stubSessions{err: tc.err})

			resp, err := h.Handle(context.Background(), makeEvent(http.MethodPost, "/conversations/conv-1/answers", `{"answer":"hills"}`))
			require.NoError(t, err)
			require.Equal(t, tc.status, resp.StatusCode)

			out := parseBody[errorResponse](t, resp.Body)
			require.Equal(t, tc.code, out.Error)
		})
	}
}

func TestHandle_UsesProvidedCorrelationID_CaseInsensitive(t *testing.T) {
	h := newTestHandler(t, &stubSessions{state: askingState()})

	event := makeEvent(http.MethodGet, "/conversations/conv-1", "")
	event.Headers["x-correlation-id"] = "corr-123"
	resp, err := h.Handle(context.Background(), event)
	require.NoError(t, err)
	require.Equal(t, "corr-123", resp.Headers["X-Correlation-Id"])
}
